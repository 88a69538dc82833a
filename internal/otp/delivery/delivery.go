// Package delivery sends issued OTP codes over the email and SMS channels.
// Delivery is fire-and-forget from the orchestrator's perspective: each send
// is bounded by a timeout and failures are logged, not surfaced to the client.
package delivery

import "context"

// Sender delivers an OTP code to a single target (email address or E.164 phone).
type Sender interface {
	Send(ctx context.Context, target, code string) error
}

// Noop discards codes. Used when a channel is not configured (e.g. local dev
// with OTP_RETURN_TO_CLIENT).
type Noop struct{}

func (Noop) Send(context.Context, string, string) error { return nil }
