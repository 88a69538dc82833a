package domain

import (
	"time"

	"authcore/internal/identifier"
)

// Contact is an email address or phone number attached to a user.
// A verified value is globally unique across all users; exactly one contact
// per user per kind is the default.
type Contact struct {
	ID        string
	UserID    string
	Kind      identifier.Kind
	Value     string // normalized: lowercase email or E.164 phone
	Verified  bool
	Default   bool
	Label     string
	Position  int
	CreatedAt time.Time
}
