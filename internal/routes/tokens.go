package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/vizion-pay/vizion_core/internal/token"
)

// RegisterTokenRoutes wires token bootstrap endpoints behind the admin guard.
func RegisterTokenRoutes(r fiber.Router, h *token.Handler, admin fiber.Handler) {
	r.Post("/tokens", admin, h.Create)
	r.Delete("/tokens/:id", admin, h.Revoke)
}
