package web

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"campusevents/internal/events"
)

var localLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
}

// parseLocal reads an ISO-8601 date-time as submitted by datetime-local
// inputs. Values without an offset are taken as UTC.
func parseLocal(v string) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, errors.New("bad date")
}

// parseForm reads an urlencoded or multipart body, capped at max bytes.
func parseForm(c *gin.Context, max int64) error {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, max)
	err := c.Request.ParseMultipartForm(max)
	if errors.Is(err, http.ErrNotMultipart) {
		return c.Request.ParseForm()
	}
	return err
}

func isTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "request body too large")
}

// applyForm copies the submitted event fields onto e. Malformed values come
// back as validation errors.
func applyForm(c *gin.Context, e *events.Event) error {
	start, err := parseLocal(c.PostForm("dateTime"))
	if err != nil {
		return &events.ValidationError{Message: "Date and Time must be a valid date"}
	}
	end, err := parseLocal(c.PostForm("endDateTime"))
	if err != nil {
		return &events.ValidationError{Message: "End date must be a valid date"}
	}
	var capacity *int
	if raw := strings.TrimSpace(c.PostForm("maxCapacity")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return &events.ValidationError{Message: "Capacity must be a whole number"}
		}
		capacity = &n
	}

	e.Title = strings.TrimSpace(c.PostForm("title"))
	e.Description = c.PostForm("description")
	e.StartsAt = start
	e.EndsAt = end
	e.Venue = strings.TrimSpace(c.PostForm("venue"))
	e.Category = strings.TrimSpace(c.PostForm("category"))
	e.RegistrationLink = strings.TrimSpace(c.PostForm("registrationLink"))
	e.MaxCapacity = capacity
	e.ResponsesLink = strings.TrimSpace(c.PostForm("responsesLink"))
	return nil
}
