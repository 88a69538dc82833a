// Package middleware holds the fiber middleware for bearer auth and
// request observability.
package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"authcore/internal/apperr"
	"authcore/internal/security"
)

const bearerPrefix = "bearer "

// identityKey is the fiber locals key for the decoded access-token identity.
const identityKey = "auth.identity"

// BearerAuth validates the Bearer (access) token from the Authorization
// header and stores the decoded identity in locals. When optional is true
// a missing or invalid token passes through without an identity; otherwise
// the request is rejected.
func BearerAuth(tokens *security.TokenProvider, optional bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := extractBearer(c.Get(fiber.HeaderAuthorization))
		if token == "" {
			if optional {
				return c.Next()
			}
			return apperr.Unauthorized("missing or invalid authorization")
		}
		id, err := tokens.ValidateAccess(token)
		if err != nil {
			if optional {
				return c.Next()
			}
			return apperr.Unauthorized("missing or invalid authorization")
		}
		c.Locals(identityKey, id)
		return c.Next()
	}
}

// IdentityFrom returns the identity set by BearerAuth, or nil.
func IdentityFrom(c *fiber.Ctx) *security.Identity {
	id, _ := c.Locals(identityKey).(*security.Identity)
	return id
}

// RequireRole rejects requests whose identity does not carry at least the
// given role. Must run after BearerAuth.
func RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := IdentityFrom(c)
		if id == nil {
			return apperr.Unauthorized("missing or invalid authorization")
		}
		if !roleAtLeast(id.Role, role) {
			return apperr.Unauthorized("insufficient role")
		}
		return c.Next()
	}
}

func roleAtLeast(have, want string) bool {
	rank := func(r string) int {
		switch r {
		case "USER":
			return 1
		case "ADMIN":
			return 2
		case "SUPERADMIN":
			return 3
		}
		return 0
	}
	return rank(have) >= rank(want)
}

// extractBearer returns the Bearer token from the header value, or "" if
// missing or malformed.
func extractBearer(header string) string {
	v := strings.TrimSpace(header)
	if len(v) <= len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
