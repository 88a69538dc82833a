// Package handler exposes the device registry over HTTP. All routes sit
// behind bearer auth.
package handler

import (
	"github.com/gofiber/fiber/v2"

	"authcore/internal/apperr"
	"authcore/internal/device/domain"
	"authcore/internal/device/service"
	"authcore/internal/server/middleware"
)

type DeviceHandler struct {
	registry *service.Registry
}

func NewDeviceHandler(registry *service.Registry) *DeviceHandler {
	return &DeviceHandler{registry: registry}
}

type bindKeyRequest struct {
	UniqueDeviceID string `json:"uniqueDeviceId"`
	PublicKey      string `json:"publicKey"`
}

// BindBiometricKey handles PUT /device/biometric/public-key.
func (h *DeviceHandler) BindBiometricKey(c *fiber.Ctx) error {
	var req bindKeyRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.InvalidArg("insufficient data")
	}
	dev, err := h.registry.BindBiometricKey(c.UserContext(), req.UniqueDeviceID, req.PublicKey)
	if err != nil {
		return err
	}
	return c.JSON(deviceResponse(dev))
}

type bindTokenRequest struct {
	Token string `json:"fcmToken"`
}

// BindPushToken handles PUT /device/fcm-token. Scoped to the caller's user,
// not an arbitrary device id.
func (h *DeviceHandler) BindPushToken(c *fiber.Ctx) error {
	id := middleware.IdentityFrom(c)
	if id == nil {
		return apperr.Unauthorized("missing or invalid authorization")
	}
	var req bindTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.InvalidArg("insufficient data")
	}
	dev, err := h.registry.BindPushToken(c.UserContext(), id.UserID, req.Token)
	if err != nil {
		return err
	}
	return c.JSON(deviceResponse(dev))
}

// Disconnect handles DELETE /device/disconnect/:id.
func (h *DeviceHandler) Disconnect(c *fiber.Ctx) error {
	id := middleware.IdentityFrom(c)
	if id == nil {
		return apperr.Unauthorized("missing or invalid authorization")
	}
	if err := h.registry.Disconnect(c.UserContext(), id.UserID, c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "device disconnected"})
}

func deviceResponse(dev *domain.Device) fiber.Map {
	return fiber.Map{
		"uniqueDeviceId":   dev.UniqueDeviceID,
		"biometricEnabled": dev.BiometricCapable(),
		"fcmToken":         dev.PushToken,
	}
}
