package gateway

import (
	"github.com/gofiber/fiber/v2"
)

// SessionFromFiber reads the session cookie from a native fiber context
// and validates it. Handlers mounted outside the router adapter can
// authorize requests with it.
func SessionFromFiber(c *fiber.Ctx, cookieName string, tokens TokenService) (*SessionClaims, error) {
	if cookieName == "" {
		cookieName = DefaultSessionCookie
	}

	token := c.Cookies(cookieName)
	if token == "" {
		return nil, ErrTokenMalformed
	}

	return tokens.Validate(token)
}

// RequireFiberSession is a fiber middleware that rejects requests
// without a valid session cookie. Claims are stored in locals under
// localsKey for downstream handlers.
func RequireFiberSession(cookieName, localsKey string, tokens TokenService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := SessionFromFiber(c, cookieName, tokens)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "unauthorized",
			})
		}

		if localsKey != "" {
			c.Locals(localsKey, claims)
		}

		return c.Next()
	}
}
