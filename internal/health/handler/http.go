// Package handler serves readiness and liveness for Kubernetes, load
// balancers, and CI.
package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Pinger checks reachability of a backing store.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	db    Pinger
	redis Pinger
}

// NewHandler returns a health handler. Either pinger may be nil, in which
// case that dependency is not checked.
func NewHandler(db, redis Pinger) *Handler {
	return &Handler{db: db, redis: redis}
}

// Live handles GET /health/live: the process is up.
func (h *Handler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// Ready handles GET /health/ready: all backing stores are reachable.
func (h *Handler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()
	checks := fiber.Map{}
	healthy := true
	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			checks["database"] = err.Error()
			healthy = false
		} else {
			checks["database"] = "ok"
		}
	}
	if h.redis != nil {
		if err := h.redis.PingContext(ctx); err != nil {
			checks["redis"] = err.Error()
			healthy = false
		} else {
			checks["redis"] = "ok"
		}
	}
	if !healthy {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded", "checks": checks})
	}
	return c.JSON(fiber.Map{"status": "ok", "checks": checks})
}
