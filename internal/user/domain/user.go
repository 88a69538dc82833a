package domain

import (
	"errors"
	"time"

	"authcore/internal/identifier"
)

// Role is a single hierarchical level. LoggingAdmin is orthogonal and lives
// as a separate flag on the user.
type Role string

const (
	RoleUser       Role = "USER"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPERADMIN"
)

// rank orders roles for AtLeast. Unknown roles rank below USER.
func (r Role) rank() int {
	switch r {
	case RoleUser:
		return 1
	case RoleAdmin:
		return 2
	case RoleSuperAdmin:
		return 3
	default:
		return 0
	}
}

// AtLeast reports whether r grants at least the privileges of other.
func (r Role) AtLeast(other Role) bool {
	return r.rank() >= other.rank()
}

type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusDisabled UserStatus = "disabled"
)

// User is the core user entity. Contacts are ordered by position.
type User struct {
	ID           string
	Username     string // optional handle; empty when the user signed up by contact only
	PasswordHash string // empty until the user sets a password
	Role         Role
	LoggingAdmin bool
	Restrictions []string
	Status       UserStatus
	Contacts     []Contact
	DeletedAt    *time.Time // soft delete; permanent delete removes the row
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.ID == "" {
		return errors.New("user id is required")
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	if u.Status == "" {
		u.Status = UserStatusActive
	}
	return nil
}

// Active reports whether the account can log in.
func (u *User) Active() bool {
	return u != nil && u.Status == UserStatusActive && u.DeletedAt == nil
}

// Restricted reports whether the user carries the given restriction flag.
func (u *User) Restricted(flag string) bool {
	for _, f := range u.Restrictions {
		if f == flag {
			return true
		}
	}
	return false
}

// DefaultContact returns the default contact of the given kind, or nil.
func (u *User) DefaultContact(kind identifier.Kind) *Contact {
	for i := range u.Contacts {
		if u.Contacts[i].Kind == kind && u.Contacts[i].Default {
			return &u.Contacts[i]
		}
	}
	return nil
}
