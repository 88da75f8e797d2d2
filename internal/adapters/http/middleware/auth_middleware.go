package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"classroom-api/internal/core/domain"
	"classroom-api/internal/core/services"
	"classroom-api/internal/pkg/response"
	"classroom-api/internal/pkg/routepolicy"
)

// AccessTokenCookie is the cookie carrying the session token
const AccessTokenCookie = "access_token"

const principalKey = "principal"

// PrincipalResolver turns a bearer token into the principal it currently represents
type PrincipalResolver interface {
	ResolvePrincipal(ctx context.Context, token string) (*domain.Principal, error)
}

// Authenticate attaches the request principal when a valid token is present.
// It never rejects a request; Authorize decides what anonymous callers may reach.
func Authenticate(resolver PrincipalResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.SetUserContext(services.WithClientIP(c.UserContext(), c.IP()))

		token := extractToken(c)
		if token == "" {
			return c.Next()
		}

		principal, err := resolver.ResolvePrincipal(c.UserContext(), token)
		if err != nil {
			log.Debugw("request continues anonymously", "path", c.Path(), "reason", err)
			return c.Next()
		}

		c.Locals(principalKey, principal)
		return c.Next()
	}
}

// Authorize enforces the route policy for the request
func Authorize(policy *routepolicy.Policy) fiber.Handler {
	return func(c *fiber.Ctx) error {
		switch policy.Decide(c.Method(), c.Path(), GetPrincipal(c)) {
		case routepolicy.Allow:
			return c.Next()
		case routepolicy.Unauthorized:
			return response.Unauthorized(c, domain.ErrUnauthorized.Message)
		default:
			return response.Forbidden(c, domain.ErrForbidden.Message)
		}
	}
}

// GetPrincipal returns the principal attached by Authenticate, or nil
func GetPrincipal(c *fiber.Ctx) *domain.Principal {
	p, _ := c.Locals(principalKey).(*domain.Principal)
	return p
}

// extractToken reads the Authorization header first, then the session cookie
func extractToken(c *fiber.Ctx) string {
	if header := c.Get(fiber.HeaderAuthorization); header != "" {
		const prefix = "Bearer "
		if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
			return strings.TrimSpace(header[len(prefix):])
		}
	}
	return c.Cookies(AccessTokenCookie)
}
