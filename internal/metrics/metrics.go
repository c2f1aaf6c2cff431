package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Registrations counts interest registrations by outcome (created, duplicate, missing).
	Registrations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "campusevents",
		Name:      "registrations_total",
		Help:      "Interest registrations by outcome.",
	}, []string{"result"})

	// EventMutations counts admin writes by operation (create, update, delete).
	EventMutations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "campusevents",
		Name:      "event_mutations_total",
		Help:      "Event create/update/delete operations.",
	}, []string{"op"})

	// ImageCleanups counts best-effort image removals by result (ok, failed, queued).
	ImageCleanups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "campusevents",
		Name:      "image_cleanup_total",
		Help:      "Uploaded image removals.",
	}, []string{"result"})

	// Logins counts login attempts by result.
	Logins = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "campusevents",
		Name:      "logins_total",
		Help:      "Login attempts by result.",
	}, []string{"result"})

	requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "campusevents",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

func init() {
	prometheus.MustRegister(Registrations, EventMutations, ImageCleanups, Logins, requestDuration)
}

// GinMiddleware records request latency labelled by the matched route
// template, so ids in paths do not explode label cardinality.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		requestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
