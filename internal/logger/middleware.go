package logger

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const RequestIDHeader = "X-Request-ID"

// Middleware tags each request with an id (and the trace id when a span
// is active), stores a request logger in the request context and logs
// the outcome once the handler returns.
func Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		requestID := req.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Response().Header().Set(RequestIDHeader, requestID)

		log := GetLogger().With(zap.String("request_id", requestID))
		if sc := trace.SpanContextFromContext(req.Context()); sc.HasTraceID() {
			log = log.With(zap.String("trace_id", sc.TraceID().String()))
		}
		c.SetRequest(req.WithContext(WithContext(req.Context(), log)))

		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		log.Info("request",
			zap.String("method", req.Method),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().Status),
			zap.Duration("latency", time.Since(start)),
		)
		return nil
	}
}

// FromEcho returns the request logger of c.
func FromEcho(c echo.Context) *zap.Logger {
	return FromContext(c.Request().Context())
}
