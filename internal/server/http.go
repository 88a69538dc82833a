// Package server assembles the fiber application: error mapping,
// middleware, and route registration.
package server

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel/metric"

	"authcore/internal/apperr"
	authhandler "authcore/internal/auth/handler"
	authservice "authcore/internal/auth/service"
	devicehandler "authcore/internal/device/handler"
	deviceservice "authcore/internal/device/service"
	healthhandler "authcore/internal/health/handler"
	"authcore/internal/security"
	"authcore/internal/server/middleware"
	"authcore/internal/telemetry"
)

// Deps holds the wired services the HTTP layer exposes.
type Deps struct {
	Auth     *authservice.AuthService
	Registry *deviceservice.Registry
	Tokens   *security.TokenProvider
	Cookie   authhandler.CookieConfig

	// Emitter and Meter are optional observability hooks.
	Emitter telemetry.EventEmitter
	Meter   metric.Meter

	// DBPinger and RedisPinger feed the readiness check; either may be nil.
	DBPinger    healthhandler.Pinger
	RedisPinger healthhandler.Pinger
}

// New builds the fiber app with all routes registered.
func New(deps Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler:          errorHandler,
		DisableStartupMessage: true,
	})

	if deps.Meter != nil {
		app.Use(middleware.Metrics(deps.Meter))
	}
	app.Use(middleware.Telemetry(deps.Emitter, map[string]bool{
		"/health/live":  true,
		"/health/ready": true,
	}))

	health := healthhandler.NewHandler(deps.DBPinger, deps.RedisPinger)
	app.Get("/health/live", health.Live)
	app.Get("/health/ready", health.Ready)

	ah := authhandler.NewAuthHandler(deps.Auth, deps.Cookie)
	auth := app.Group("/auth")
	auth.Get("/lookup", ah.Lookup)
	auth.Post("/otp-code/send/:channel", ah.SendOTP)
	auth.Post("/account", ah.CreateAccount)
	auth.Post("/login", ah.Login)
	auth.Get("/refresh-token", ah.Refresh)
	// Logout works with just the cookie; the bearer token is optional.
	auth.Post("/logout", middleware.BearerAuth(deps.Tokens, true), ah.Logout)
	auth.Get("/me", middleware.BearerAuth(deps.Tokens, false), ah.Me)

	dh := devicehandler.NewDeviceHandler(deps.Registry)
	device := app.Group("/device", middleware.BearerAuth(deps.Tokens, false))
	device.Put("/biometric/public-key", dh.BindBiometricKey)
	device.Put("/fcm-token", dh.BindPushToken)
	device.Delete("/disconnect/:id", dh.Disconnect)

	return app
}

// errorHandler maps application errors to HTTP responses. The client sees
// only the AppError message; causes stay in the server log.
func errorHandler(c *fiber.Ctx, err error) error {
	var appErr *apperr.AppError
	if errors.As(err, &appErr) {
		if appErr.Cause != nil {
			log.Printf("http: %s %s: %v", c.Method(), c.Path(), err)
		}
		return c.Status(apperr.HTTPStatus(appErr.Code)).JSON(fiber.Map{
			"error": appErr.Message,
		})
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(fiber.Map{"error": fiberErr.Message})
	}
	log.Printf("http: %s %s: unhandled error: %v", c.Method(), c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
}
