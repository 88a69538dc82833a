package domain

import "time"

// Session is the server-side record behind a refresh token family. The
// current refresh token is bound by jti; rotation swaps the jti and hash
// atomically so a rotated-out token can be recognized as replay.
type Session struct {
	ID               string
	UserID           string
	DeviceID         string // empty when the session was opened without a device payload
	ExpiresAt        time.Time
	RevokedAt        *time.Time // nil when not revoked
	LastSeenAt       *time.Time
	IPAddress        string
	RefreshJti       string // current refresh token jti for rotation
	RefreshTokenHash string // SHA-256 hash of current refresh token
	CreatedAt        time.Time
}

// Live reports whether the session can still redeem refresh tokens.
func (s *Session) Live(now time.Time) bool {
	return s != nil && s.RevokedAt == nil && now.Before(s.ExpiresAt)
}
