package repository

import (
	"context"

	devicedomain "authcore/internal/device/domain"
	"authcore/internal/identifier"
	"authcore/internal/user/domain"
)

// Repository defines persistence for users and their contacts.
type Repository interface {
	// GetByID returns the user with contacts loaded, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// GetByIdentifier resolves a login identifier (username, or any verified
	// email/phone value) to a user, or nil if no match.
	GetByIdentifier(ctx context.Context, value string) (*domain.User, error)
	// VerifiedContactExists reports whether a verified contact with the given
	// kind and normalized value exists for any user.
	VerifiedContactExists(ctx context.Context, kind identifier.Kind, value string) (bool, error)
	// CreateAccount inserts the user, its initial verified contact, and the
	// optional device in a single transaction. The storage uniqueness
	// constraint on verified contact values is the ultimate arbiter of
	// identifier conflicts.
	CreateAccount(ctx context.Context, u *domain.User, c *domain.Contact, d *devicedomain.Device) error
}
