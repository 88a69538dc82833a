package middleware

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"authcore/internal/telemetry"
)

// httpRequestMetadata is the JSON shape stored in Event.Metadata for http_request events.
type httpRequestMetadata struct {
	Method     string `json:"method"`
	Path       string `json:"path"`
	StatusCode int    `json:"status_code"`
	DurationMs int64  `json:"duration_ms"`
	ClientIP   string `json:"client_ip"`
}

// Telemetry emits one telemetry event per request. Best-effort: failures are
// logged by EmitAsync and never fail the request. skipPaths lists paths to
// not emit (e.g. the health check).
func Telemetry(emitter telemetry.EventEmitter, skipPaths map[string]bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		if emitter == nil || skipPaths[c.Path()] {
			return err
		}
		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}
		meta := httpRequestMetadata{
			Method:     c.Method(),
			Path:       c.Path(),
			StatusCode: status,
			DurationMs: time.Since(start).Milliseconds(),
			ClientIP:   c.IP(),
		}
		metaJSON, _ := json.Marshal(meta)
		event := &telemetry.Event{
			EventType: "http_request",
			Source:    "http_middleware",
			Metadata:  metaJSON,
			CreatedAt: time.Now().UTC(),
		}
		if id := IdentityFrom(c); id != nil {
			event.UserID = id.UserID
			event.SessionID = id.SessionID
			event.DeviceID = id.DeviceID
		}
		telemetry.EmitAsync(emitter, c.UserContext(), event)
		return err
	}
}

// Metrics records a request counter and duration histogram on the given meter.
func Metrics(meter metric.Meter) fiber.Handler {
	counter, _ := meter.Int64Counter("http.server.requests")
	duration, _ := meter.Float64Histogram("http.server.duration_ms")
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		attrs := metric.WithAttributes(
			attribute.String("http.method", c.Method()),
			attribute.String("http.route", c.Route().Path),
			attribute.Int("http.status_code", c.Response().StatusCode()),
		)
		if counter != nil {
			counter.Add(c.UserContext(), 1, attrs)
		}
		if duration != nil {
			duration.Record(c.UserContext(), float64(time.Since(start).Microseconds())/1000.0, attrs)
		}
		return err
	}
}
