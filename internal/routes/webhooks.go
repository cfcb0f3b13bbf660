package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/vizion-pay/vizion_core/internal/middleware"
	"github.com/vizion-pay/vizion_core/internal/token"
	"github.com/vizion-pay/vizion_core/internal/webhook"
)

// RegisterWebhookRoutes wires webhook endpoint management.
func RegisterWebhookRoutes(r fiber.Router, h *webhook.Handler, tokens *token.Service) {
	auth := middleware.BearerAuth(tokens, token.ScopeWebhooks)
	r.Post("/webhooks", auth, h.Register)
	r.Get("/webhooks", auth, h.List)
}
