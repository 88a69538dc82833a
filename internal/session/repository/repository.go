package repository

import (
	"context"
	"time"

	"authcore/internal/session/domain"
)

// Repository defines persistence for sessions.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) error
	// Revoke marks the session revoked. Idempotent: revoking an already
	// revoked or missing session is not an error.
	Revoke(ctx context.Context, id string) error
	// RevokeAllByUser revokes every session of the user (reuse-detection fallout).
	RevokeAllByUser(ctx context.Context, userID string) error
	// RotateRefresh performs a compare-and-swap: the session's refresh binding
	// moves from oldJti to (newJti, newHash) only if oldJti is still current
	// and the session is not revoked. Returns whether this caller won the swap.
	RotateRefresh(ctx context.Context, sessionID, oldJti, newJti, newHash string) (bool, error)
	UpdateLastSeen(ctx context.Context, id string, at time.Time) error
}
