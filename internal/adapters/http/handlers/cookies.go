package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"classroom-api/internal/adapters/http/middleware"
	"classroom-api/internal/config"
)

// sessionCookie writes and clears the HttpOnly session cookie
type sessionCookie struct {
	cfg config.CookieConfig
}

func (s sessionCookie) set(c *fiber.Ctx, token string, ttl time.Duration) {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.AccessTokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		Secure:   s.cfg.Secure,
		HTTPOnly: true,
		SameSite: s.cfg.SameSite,
		Domain:   s.cfg.Domain,
	})
}

func (s sessionCookie) clear(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.AccessTokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Now().Add(-1 * time.Hour),
		Secure:   s.cfg.Secure,
		HTTPOnly: true,
		SameSite: s.cfg.SameSite,
		Domain:   s.cfg.Domain,
	})
}
