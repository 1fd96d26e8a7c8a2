// Package metrics registers the Prometheus collectors of the engine.
package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const prefix = "reservation_engine"

var (
	// HTTP request metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// Booking lifecycle metrics
	BookingTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_booking_transitions_total",
			Help: "Booking status transitions by kind and target status",
		},
		[]string{"kind", "status"},
	)
	BookingRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_booking_rejections_total",
			Help: "Rejected booking operations by operation and reason",
		},
		[]string{"operation", "reason"},
	)
	ReferenceCollisions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_reference_collisions_total",
			Help: "Booking reference collisions retried during creation",
		},
	)

	// Ledger metrics
	CapacityReserved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_capacity_reserved_total",
			Help: "Slot units decremented by reservations",
		},
		[]string{"resource_id"},
	)
	CapacityReleased = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_capacity_released_total",
			Help: "Slot units restored by releases",
		},
		[]string{"resource_id"},
	)

	// Event publishing
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_events_published_total",
			Help: "Lifecycle events handed to the broker by outcome",
		},
		[]string{"event", "outcome"},
	)
)

// RecordTransition counts a booking entering status.
func RecordTransition(kind, status string) {
	BookingTransitions.WithLabelValues(kind, status).Inc()
}

// RecordRejection counts a failed booking operation.
func RecordRejection(operation, reason string) {
	BookingRejections.WithLabelValues(operation, reason).Inc()
}

// Middleware records request counts and latency per route.
func Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		status := strconv.Itoa(c.Response().Status)
		method, path := c.Request().Method, c.Path()
		HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		HTTPRequestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
		return nil
	}
}
