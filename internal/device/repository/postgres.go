package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"authcore/internal/device/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a device repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const deviceColumns = `id, user_id, unique_device_id, biometric_public_key, push_token, created_at, updated_at`

func scanDevice(row interface{ Scan(...any) error }) (*domain.Device, error) {
	var d domain.Device
	err := row.Scan(&d.ID, &d.UserID, &d.UniqueDeviceID, &d.BiometricPublicKey, &d.PushToken, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}

// GetByUniqueDeviceID returns the device with the given client identifier, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByUniqueDeviceID(ctx context.Context, uniqueDeviceID string) (*domain.Device, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE unique_device_id = $1`, uniqueDeviceID)
	return scanDevice(row)
}

// GetByUser returns the user's device, or nil if the user has none connected.
// The schema allows many devices per user; callers currently bind at most one.
func (r *PostgresRepository) GetByUser(ctx context.Context, userID string) (*domain.Device, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE user_id = $1 ORDER BY created_at LIMIT 1`, userID)
	return scanDevice(row)
}

// Create persists the device. The device must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, d *domain.Device) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (id, user_id, unique_device_id, biometric_public_key, push_token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		d.ID, d.UserID, d.UniqueDeviceID, d.BiometricPublicKey, d.PushToken, d.CreatedAt, d.UpdatedAt)
	return err
}

// UpdateBiometricKey sets the stored public key for the device.
func (r *PostgresRepository) UpdateBiometricKey(ctx context.Context, id, publicKey string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE devices SET biometric_public_key = $2, updated_at = $3 WHERE id = $1`,
		id, publicKey, time.Now().UTC())
	return err
}

// UpdatePushToken sets the push-notification token for the device.
func (r *PostgresRepository) UpdatePushToken(ctx context.Context, id, token string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE devices SET push_token = $2, updated_at = $3 WHERE id = $1`,
		id, token, time.Now().UTC())
	return err
}

// Delete removes the device row, unlinking it from its user.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE id = $1`, id)
	return err
}
