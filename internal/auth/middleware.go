package auth

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// CookieName is the browser cookie carrying the signed session id.
const CookieName = "campus_session"

const identityKey = "identity"

// Sessions ties a SessionStore to the signed browser cookie.
type Sessions struct {
	store  SessionStore
	key    string
	issuer string
	secure bool
	log    *slog.Logger
}

// NewSessions creates the cookie/session bridge used by the HTTP layer.
func NewSessions(store SessionStore, signingKey, issuer string, secure bool, logger *slog.Logger) *Sessions {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sessions{store: store, key: signingKey, issuer: issuer, secure: secure, log: logger}
}

// Store exposes the backend, mainly for health checks.
func (s *Sessions) Store() SessionStore { return s.store }

// Start replaces any session the request already carries with a new one
// for id and writes the cookie.
func (s *Sessions) Start(c *gin.Context, id Identity) error {
	s.dropCurrent(c)
	sess, err := s.store.Create(c.Request.Context(), id)
	if err != nil {
		return err
	}
	token, err := SignSessionID(sess.ID, s.issuer, s.key, sess.ExpiresAt)
	if err != nil {
		return err
	}
	maxAge := int(time.Until(sess.ExpiresAt).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, token, maxAge, "/", "", s.secure, true)
	c.Set(identityKey, id)
	return nil
}

// End deletes the current session, if any, and clears the cookie.
func (s *Sessions) End(c *gin.Context) {
	s.dropCurrent(c)
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, "", -1, "/", "", s.secure, true)
	c.Set(identityKey, Identity{})
}

func (s *Sessions) dropCurrent(c *gin.Context) {
	token, err := c.Cookie(CookieName)
	if err != nil || token == "" {
		return
	}
	sid, err := ParseSessionID(token, s.key, s.issuer)
	if err != nil {
		return
	}
	if err := s.store.Delete(c.Request.Context(), sid); err != nil {
		s.log.Warn("session delete failed", "error", err)
	}
}

// Load resolves the cookie into an Identity stored on the gin context.
// Requests without a valid session proceed as anonymous.
func (s *Sessions) Load() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(CookieName)
		if err != nil || token == "" {
			c.Next()
			return
		}
		sid, err := ParseSessionID(token, s.key, s.issuer)
		if err != nil {
			s.log.Debug("rejected session cookie", "error", err)
			c.Next()
			return
		}
		sess, err := s.store.Get(c.Request.Context(), sid)
		if err != nil {
			s.log.Error("session lookup failed", "error", err)
			c.Next()
			return
		}
		if sess != nil {
			c.Set(identityKey, sess.Identity)
		}
		c.Next()
	}
}

// CurrentIdentity returns the identity attached by Load, or the zero Identity.
func CurrentIdentity(c *gin.Context) Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return Identity{}
	}
	id, _ := v.(Identity)
	return id
}

// RequireUser redirects anonymous requests to the entry point.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !CurrentIdentity(c).Authenticated() {
			c.Redirect(http.StatusSeeOther, "/")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireCapability redirects requests whose identity lacks the capability.
// Unauthorized access is silently sent home rather than shown an error.
func RequireCapability(cp Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !CurrentIdentity(c).Can(cp) {
			c.Redirect(http.StatusSeeOther, "/")
			c.Abort()
			return
		}
		c.Next()
	}
}
