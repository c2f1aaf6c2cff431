package web

import (
	"errors"
	"net/http"
	"runtime"
	"strconv"

	"github.com/gin-gonic/gin"

	"campusevents/internal/auth"
	"campusevents/internal/events"
)

func (s *Server) adminDashboard(c *gin.Context) {
	d, err := s.events.Dashboard(c.Request.Context(), auth.CurrentIdentity(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	if d.Events == nil {
		d.Events = []events.Event{}
	}
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	c.JSON(http.StatusOK, gin.H{
		"dashboard":  d,
		"user":       auth.CurrentIdentity(c),
		"categories": events.Categories,
		"system": gin.H{
			"memory_used_mb":  mem.HeapAlloc >> 20,
			"memory_total_mb": mem.Sys >> 20,
			"cores":           runtime.NumCPU(),
			"goroutines":      runtime.NumGoroutine(),
		},
	})
}

func (s *Server) registrations(c *gin.Context) {
	regs, err := s.events.AllRegistrations(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	if regs == nil {
		regs = []events.Registration{}
	}
	c.JSON(http.StatusOK, gin.H{"registrations": regs})
}

func (s *Server) exportEvents(c *gin.Context) {
	data, err := s.events.ExportCSV(c.Request.Context(), auth.CurrentIdentity(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=campus_events_report.csv")
	c.Data(http.StatusOK, "text/csv", data)
}

func (s *Server) addEvent(c *gin.Context) {
	if err := parseForm(c, s.maxUpload); err != nil {
		s.fail(c, err)
		return
	}
	var e events.Event
	if err := applyForm(c, &e); err != nil {
		s.fail(c, err)
		return
	}
	if err := events.Validate(e); err != nil {
		s.fail(c, err)
		return
	}
	newURL, err := s.saveImage(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	e.ImageURL = newURL

	if err := s.events.SaveEvent(c.Request.Context(), auth.CurrentIdentity(c), &e); err != nil {
		s.discardImage(c, newURL)
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Event added successfully!", "event": e})
}

func (s *Server) editEvent(c *gin.Context) {
	if err := parseForm(c, s.maxUpload); err != nil {
		s.fail(c, err)
		return
	}
	id, err := strconv.ParseInt(c.PostForm("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Event id is required"})
		return
	}
	ctx := c.Request.Context()
	e, err := s.events.FindEventByID(ctx, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	if e == nil {
		s.fail(c, events.ErrNotFound)
		return
	}
	if err := applyForm(c, e); err != nil {
		s.fail(c, err)
		return
	}
	if err := events.Validate(*e); err != nil {
		s.fail(c, err)
		return
	}

	oldURL := e.ImageURL
	newURL, err := s.saveImage(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	if newURL != "" {
		e.ImageURL = newURL
	}
	if err := s.events.SaveEvent(ctx, auth.CurrentIdentity(c), e); err != nil {
		s.discardImage(c, newURL)
		s.fail(c, err)
		return
	}
	if newURL != "" && oldURL != "" && oldURL != newURL {
		s.events.ReplaceImage(ctx, e.ID, oldURL)
		s.log.Info("AUDIT: replaced event image", "event_id", e.ID, "old_image_url", oldURL)
	}
	c.JSON(http.StatusOK, gin.H{"message": "Event updated successfully!", "event": e})
}

func (s *Server) deleteEvent(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		return
	}
	if err := s.events.DeleteEvent(c.Request.Context(), auth.CurrentIdentity(c), id); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Event deleted successfully!"})
}

// saveImage stores the optional imageFile part and returns its URL, or ""
// when no file was sent.
func (s *Server) saveImage(c *gin.Context) (string, error) {
	fh, err := c.FormFile("imageFile")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return "", nil
		}
		return "", err
	}
	if fh.Size == 0 {
		return "", nil
	}
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()
	url, err := s.uploads.Save(fh.Filename, f)
	if err != nil {
		s.log.Warn("rejected upload", "filename", fh.Filename, "error", err)
		return "", err
	}
	return url, nil
}

func (s *Server) discardImage(c *gin.Context, url string) {
	if url == "" {
		return
	}
	if err := s.uploads.Remove(c.Request.Context(), url); err != nil {
		s.log.Warn("failed to discard unsaved upload", "image_url", url, "error", err)
	}
}
