package web

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"campusevents/internal/auth"
	"campusevents/internal/metrics"
)

// root signs the visitor in as the guest student.
func (s *Server) root(c *gin.Context) {
	guest, err := s.gate.GuestUser(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	if guest == nil {
		s.log.Warn("guest user not found, redirecting to admin login")
		c.Redirect(http.StatusSeeOther, "/admin/login")
		return
	}
	if err := s.sessions.Start(c, auth.IdentityOf(guest)); err != nil {
		s.fail(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/student/dashboard")
}

func (s *Server) loginPage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"action": "/admin/login",
		"fields": []string{"username", "password"},
	})
}

func (s *Server) login(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")

	u, err := s.gate.Authenticate(c.Request.Context(), username, password)
	if err != nil {
		metrics.Logins.WithLabelValues("error").Inc()
		s.fail(c, err)
		return
	}
	if u == nil || u.Role != auth.RoleAdmin {
		metrics.Logins.WithLabelValues("rejected").Inc()
		s.log.Warn("SECURITY: admin login rejected", "username", username, "client_ip", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid admin credentials!"})
		return
	}
	if err := s.sessions.Start(c, auth.IdentityOf(u)); err != nil {
		s.fail(c, err)
		return
	}
	metrics.Logins.WithLabelValues("ok").Inc()
	s.log.Info("AUDIT: admin logged in", "username", u.Username)
	c.Redirect(http.StatusSeeOther, "/admin/dashboard")
}

func (s *Server) logout(c *gin.Context) {
	s.sessions.End(c)
	c.Redirect(http.StatusSeeOther, "/")
}
