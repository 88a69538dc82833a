package repository

import (
	"context"

	"authcore/internal/device/domain"
)

// Repository defines persistence for devices.
type Repository interface {
	GetByUniqueDeviceID(ctx context.Context, uniqueDeviceID string) (*domain.Device, error)
	GetByUser(ctx context.Context, userID string) (*domain.Device, error)
	Create(ctx context.Context, d *domain.Device) error
	UpdateBiometricKey(ctx context.Context, id, publicKey string) error
	UpdatePushToken(ctx context.Context, id, token string) error
	Delete(ctx context.Context, id string) error
}
