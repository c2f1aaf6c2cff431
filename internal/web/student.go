package web

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"campusevents/internal/auth"
	"campusevents/internal/events"
)

// studentDashboard lists events. A non-blank search wins over the category.
func (s *Server) studentDashboard(c *gin.Context) {
	ctx := c.Request.Context()
	search := c.Query("search")
	category := c.Query("category")

	var (
		evts []events.Event
		err  error
		resp = gin.H{}
	)
	switch {
	case strings.TrimSpace(search) != "":
		evts, err = s.events.SearchEvents(ctx, search)
		resp["search"] = search
	case strings.TrimSpace(category) != "" && !strings.EqualFold(category, "all"):
		evts, err = s.events.FindEventsByCategory(ctx, category)
		resp["category"] = category
	default:
		evts, err = s.events.FindAllEvents(ctx)
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	if evts == nil {
		evts = []events.Event{}
	}
	resp["events"] = evts
	resp["user"] = auth.CurrentIdentity(c)
	resp["now"] = s.events.Now()
	resp["categories"] = events.Categories
	if open := c.Query("open"); open != "" {
		resp["open"] = open
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) registerInterest(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		return
	}
	created, err := s.events.RegisterStudent(c.Request.Context(), id, auth.CurrentIdentity(c).UserID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"registered": created})
}

// registerExternal records interest, then sends the student to the event's
// own registration form when it is a web link.
func (s *Server) registerExternal(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	who := auth.CurrentIdentity(c)
	if _, err := s.events.RegisterStudent(ctx, id, who.UserID); err != nil {
		s.log.Warn("interest tracking failed", "event_id", id, "user_id", who.UserID, "error", err)
	}

	evt, err := s.events.FindEventByID(ctx, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	if evt != nil && evt.RegistrationLink != "" {
		if link, ok := events.SafeRedirect(evt.RegistrationLink); ok {
			c.Redirect(http.StatusSeeOther, link)
			return
		}
		s.log.Warn("SECURITY: blocked redirect to untrusted URL scheme", "event_id", id, "link", evt.RegistrationLink)
	}
	c.Redirect(http.StatusSeeOther, "/student/event/"+strconv.FormatInt(id, 10))
}

func (s *Server) eventDetail(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		return
	}
	c.Redirect(http.StatusSeeOther, "/student/dashboard?open="+strconv.FormatInt(id, 10))
}
