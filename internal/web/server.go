package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"campusevents/internal/auth"
	"campusevents/internal/events"
	"campusevents/internal/uploads"
)

const (
	msgUnexpected = "An unexpected error occurred. Please try again later."
	msgNotFound   = "The page you requested could not be found."
	msgTooLarge   = "File is too large! Please upload a smaller file."
)

// Pinger reports backend health.
type Pinger interface {
	Healthy(ctx context.Context) bool
}

// Deps are the collaborators the HTTP layer is built from.
type Deps struct {
	Gate     *auth.Gate
	Sessions *auth.Sessions
	Events   *events.Service
	Uploads  *uploads.Store
	DB       Pinger
	Log      *slog.Logger
	// MaxUploadBytes caps multipart request bodies; 0 means 10 MiB.
	MaxUploadBytes int64
	// LoginLimiter guards POST /admin/login; nil disables it.
	LoginLimiter gin.HandlerFunc
}

// Server holds the handlers.
type Server struct {
	gate      *auth.Gate
	sessions  *auth.Sessions
	events    *events.Service
	uploads   *uploads.Store
	db        Pinger
	log       *slog.Logger
	maxUpload int64
	limiter   gin.HandlerFunc
}

// NewServer wires handlers to their dependencies.
func NewServer(d Deps) *Server {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = 10 << 20
	}
	if d.LoginLimiter == nil {
		d.LoginLimiter = func(c *gin.Context) { c.Next() }
	}
	return &Server{
		gate:      d.Gate,
		sessions:  d.Sessions,
		events:    d.Events,
		uploads:   d.Uploads,
		db:        d.DB,
		log:       d.Log,
		maxUpload: d.MaxUploadBytes,
		limiter:   d.LoginLimiter,
	}
}

// Register installs session loading and every route on r.
func (s *Server) Register(r *gin.Engine) {
	r.Use(s.sessions.Load())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", s.healthz)
	r.Static("/uploads", s.uploads.BaseDir)

	r.GET("/", s.root)
	r.GET("/admin/login", s.loginPage)
	r.POST("/admin/login", s.limiter, s.login)
	r.GET("/logout", s.logout)

	student := r.Group("/student", auth.RequireUser())
	student.GET("/dashboard", s.studentDashboard)
	student.POST("/events/:id/interest", auth.RequireCapability(auth.CapRegisterInterest), s.registerInterest)
	student.GET("/register-external/:id", s.registerExternal)
	student.GET("/event/:id", s.eventDetail)

	admin := r.Group("/admin")
	admin.GET("/dashboard", auth.RequireCapability(auth.CapViewAnalytics), s.adminDashboard)
	admin.GET("/registrations", auth.RequireCapability(auth.CapViewAnalytics), s.registrations)
	admin.GET("/export-events", auth.RequireCapability(auth.CapExportEvents), s.exportEvents)
	manage := admin.Group("", auth.RequireCapability(auth.CapManageEvents))
	manage.POST("/add-event", s.addEvent)
	manage.POST("/edit-event", s.editEvent)
	manage.POST("/delete-event/:id", s.deleteEvent)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": msgNotFound})
	})
}

// Recovery turns panics into the generic 500 response.
func Recovery(log *slog.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, rec any) {
		log.Error("panic recovered", "path", c.Request.URL.Path, "panic", rec)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": msgUnexpected})
	})
}

func (s *Server) healthz(c *gin.Context) {
	ctx := c.Request.Context()
	dbOK := s.db != nil && s.db.Healthy(ctx)
	sessOK := s.sessions.Store().Healthy(ctx)
	status := http.StatusOK
	if !dbOK || !sessOK {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"status": http.StatusText(status), "db": dbOK, "sessions": sessOK})
}

// fail maps service errors onto responses. Internal details never reach
// the client.
func (s *Server) fail(c *gin.Context, err error) {
	var verr *events.ValidationError
	switch {
	case errors.Is(err, events.ErrForbidden):
		c.Redirect(http.StatusSeeOther, "/")
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Message})
	case errors.Is(err, events.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Event not found!"})
	case errors.Is(err, uploads.ErrInvalidImage):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid image file. Allowed: JPG, PNG, WebP, GIF."})
	case isTooLarge(err):
		s.log.Warn("file upload size exceeded", "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": msgTooLarge})
	default:
		s.log.Error("request failed", "method", c.Request.Method, "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgUnexpected})
	}
	c.Abort()
}

func eventID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": msgNotFound})
		return 0, false
	}
	return id, true
}
