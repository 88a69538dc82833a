package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"authcore/internal/apperr"
	devicedomain "authcore/internal/device/domain"
	"authcore/internal/identifier"
	"authcore/internal/user/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, COALESCE(username, ''), password_hash, role, logging_admin, restrictions, status, deleted_at, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*domain.User, error) {
	var u domain.User
	var restrictions []byte
	var deletedAt sql.NullTime
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.LoggingAdmin,
		&restrictions, &u.Status, &deletedAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if len(restrictions) > 0 {
		if err := json.Unmarshal(restrictions, &u.Restrictions); err != nil {
			return nil, err
		}
	}
	if deletedAt.Valid {
		u.DeletedAt = &deletedAt.Time
	}
	return &u, nil
}

// GetByID returns the user for id with contacts loaded, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil || u == nil {
		return nil, err
	}
	if err := r.loadContacts(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// GetByIdentifier resolves value to a user via username or any verified
// contact value, or nil if no match.
func (r *PostgresRepository) GetByIdentifier(ctx context.Context, value string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE LOWER(username) = LOWER($1)
		   OR id IN (SELECT user_id FROM contacts WHERE value = $1 AND verified)
		LIMIT 1`, value)
	u, err := scanUser(row)
	if err != nil || u == nil {
		return nil, err
	}
	if err := r.loadContacts(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// VerifiedContactExists reports whether a verified contact with the given kind
// and value exists.
func (r *PostgresRepository) VerifiedContactExists(ctx context.Context, kind identifier.Kind, value string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM contacts WHERE kind = $1 AND value = $2 AND verified)`,
		string(kind), value).Scan(&exists)
	return exists, err
}

// CreateAccount inserts the user, contact, and optional device in one
// transaction. A unique-constraint violation on the verified contact value or
// username maps to an ALREADY_EXISTS error naming the conflicting value.
func (r *PostgresRepository) CreateAccount(ctx context.Context, u *domain.User, c *domain.Contact, d *devicedomain.Device) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var username any
	if u.Username != "" {
		username = u.Username
	}
	restrictions := u.Restrictions
	if restrictions == nil {
		restrictions = []string{}
	}
	restrictionsJSON, err := json.Marshal(restrictions)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, role, logging_admin, restrictions, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		u.ID, username, u.PasswordHash, string(u.Role), u.LoggingAdmin,
		restrictionsJSON, string(u.Status), u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return mapUniqueViolation(err, u.Username)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO contacts (id, user_id, kind, value, verified, is_default, label, position, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, c.UserID, string(c.Kind), c.Value, c.Verified, c.Default, c.Label, c.Position, c.CreatedAt)
	if err != nil {
		return mapUniqueViolation(err, c.Value)
	}

	if d != nil {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO devices (id, user_id, unique_device_id, biometric_public_key, push_token, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			d.ID, d.UserID, d.UniqueDeviceID, d.BiometricPublicKey, d.PushToken, d.CreatedAt, d.UpdatedAt)
		if err != nil {
			return mapUniqueViolation(err, d.UniqueDeviceID)
		}
	}

	return tx.Commit()
}

func (r *PostgresRepository) loadContacts(ctx context.Context, u *domain.User) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, kind, value, verified, is_default, label, position, created_at
		FROM contacts WHERE user_id = $1 ORDER BY position, created_at`, u.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var c domain.Contact
		var kind string
		if err := rows.Scan(&c.ID, &c.UserID, &kind, &c.Value, &c.Verified, &c.Default, &c.Label, &c.Position, &c.CreatedAt); err != nil {
			return err
		}
		c.Kind = identifier.Kind(kind)
		u.Contacts = append(u.Contacts, c)
	}
	return rows.Err()
}

// mapUniqueViolation converts a Postgres unique-constraint violation into an
// ALREADY_EXISTS AppError naming the conflicting value; other errors pass through.
func mapUniqueViolation(err error, value string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return apperr.AlreadyExists(value + " is already in use")
	}
	return err
}
