package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/vizion-pay/vizion_core/internal/token"
)

const (
	// LocalBusinessID is the fiber locals key carrying the authenticated
	// caller's business id.
	LocalBusinessID = "business_id"
	// LocalTokenID is the fiber locals key carrying the validated token id.
	LocalTokenID = "api_token_id"
)

// BearerAuth validates the Authorization bearer token against the required
// scopes and the caller's IP before any orchestrator-facing handler runs.
func BearerAuth(tokens *token.Service, scopes ...token.Scope) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		value := strings.TrimSpace(authz[len("Bearer "):])

		tok, err := tokens.Validate(c.UserContext(), value, scopes, c.IP())
		if err != nil {
			switch {
			case errors.Is(err, token.ErrInvalidToken):
				return fiber.NewError(http.StatusUnauthorized, "invalid token")
			case errors.Is(err, token.ErrTokenExpired):
				return fiber.NewError(http.StatusUnauthorized, "token expired")
			case errors.Is(err, token.ErrIPNotAllowed):
				return fiber.NewError(http.StatusForbidden, "ip not allowed")
			case errors.Is(err, token.ErrInsufficientScopes):
				return fiber.NewError(http.StatusForbidden, "insufficient scopes")
			default:
				return fiber.NewError(http.StatusInternalServerError, "token validation failure")
			}
		}

		c.Locals(LocalBusinessID, tok.BusinessID)
		c.Locals(LocalTokenID, tok.ID)
		return c.Next()
	}
}
