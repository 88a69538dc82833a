// Package service implements the device registry: biometric key enrollment,
// push token binding, and disconnect.
package service

import (
	"context"
	"time"

	"authcore/internal/apperr"
	"authcore/internal/audit"
	"authcore/internal/device/domain"
	"authcore/internal/security"
)

// Sentinel errors for the device registry; the handler maps them to HTTP statuses.
var (
	ErrInsufficientData  = apperr.InvalidArg("insufficient data")
	ErrInvalidPublicKey  = apperr.InvalidArg("invalid public key")
	ErrDeviceNotFound    = apperr.NotFound("no device found with the given id")
	ErrNoDeviceConnected = apperr.FailedPrecondition("no device connected")
)

// Repo is the minimal device repository needed by the registry.
type Repo interface {
	GetByUniqueDeviceID(ctx context.Context, uniqueDeviceID string) (*domain.Device, error)
	GetByUser(ctx context.Context, userID string) (*domain.Device, error)
	UpdateBiometricKey(ctx context.Context, id, publicKey string) error
	UpdatePushToken(ctx context.Context, id, token string) error
	Delete(ctx context.Context, id string) error
}

// Registry binds biometric keys and push tokens to devices and disconnects them.
type Registry struct {
	repo  Repo
	audit audit.AuditLogger
}

// NewRegistry returns a Registry with the given dependencies. auditLogger may be nil.
func NewRegistry(repo Repo, auditLogger audit.AuditLogger) *Registry {
	if auditLogger == nil {
		auditLogger = audit.Nop{}
	}
	return &Registry{repo: repo, audit: auditLogger}
}

// BindBiometricKey stores publicKey as the biometric key of the device with
// the given client identifier. The key must be a parseable PEM public key.
func (s *Registry) BindBiometricKey(ctx context.Context, uniqueDeviceID, publicKey string) (*domain.Device, error) {
	if uniqueDeviceID == "" || publicKey == "" {
		return nil, ErrInsufficientData
	}
	if _, err := security.ParsePublicKey(publicKey); err != nil {
		return nil, ErrInvalidPublicKey
	}
	dev, err := s.repo.GetByUniqueDeviceID(ctx, uniqueDeviceID)
	if err != nil {
		return nil, err
	}
	if dev == nil {
		return nil, ErrDeviceNotFound
	}
	if err := s.repo.UpdateBiometricKey(ctx, dev.ID, publicKey); err != nil {
		return nil, err
	}
	dev.BiometricPublicKey = publicKey
	dev.UpdatedAt = time.Now().UTC()
	s.audit.LogEvent(ctx, dev.UserID, "biometric_key_bound", "device", dev.UniqueDeviceID)
	return dev, nil
}

// BindPushToken stores token on the device of the authenticated user. The
// call is scoped by the session's user, not an arbitrary device id; a user
// with no connected device gets ErrNoDeviceConnected.
func (s *Registry) BindPushToken(ctx context.Context, userID, token string) (*domain.Device, error) {
	if userID == "" || token == "" {
		return nil, ErrInsufficientData
	}
	dev, err := s.repo.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if dev == nil {
		return nil, ErrNoDeviceConnected
	}
	if err := s.repo.UpdatePushToken(ctx, dev.ID, token); err != nil {
		return nil, err
	}
	dev.PushToken = token
	dev.UpdatedAt = time.Now().UTC()
	s.audit.LogEvent(ctx, userID, "push_token_bound", "device", dev.UniqueDeviceID)
	return dev, nil
}

// Disconnect removes the caller's device. The push token is dropped with the
// row, and later biometric logins referencing the device id fail.
func (s *Registry) Disconnect(ctx context.Context, userID, uniqueDeviceID string) error {
	if uniqueDeviceID == "" {
		return ErrInsufficientData
	}
	dev, err := s.repo.GetByUniqueDeviceID(ctx, uniqueDeviceID)
	if err != nil {
		return err
	}
	if dev == nil || dev.UserID != userID {
		return ErrDeviceNotFound
	}
	if err := s.repo.Delete(ctx, dev.ID); err != nil {
		return err
	}
	s.audit.LogEvent(ctx, userID, "device_disconnected", "device", uniqueDeviceID)
	return nil
}
