package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/vizion-pay/vizion_core/internal/middleware"
	"github.com/vizion-pay/vizion_core/internal/payments"
	"github.com/vizion-pay/vizion_core/internal/token"
)

// RegisterPaymentRoutes wires payment and transaction endpoints with
// scope-appropriate bearer auth.
func RegisterPaymentRoutes(r fiber.Router, h *payments.Handler, tokens *token.Service, idem, rateLimit fiber.Handler) {
	write := middleware.BearerAuth(tokens, token.ScopeWrite, token.ScopeTransactions)
	r.Post("/payments", write, rateLimit, idem, h.Process)
	r.Post("/payments/:id/refund", write, rateLimit, idem, h.Refund)

	read := middleware.BearerAuth(tokens, token.ScopeRead, token.ScopeTransactions)
	r.Get("/payments/:id/verify", read, h.Verify)
	r.Get("/transactions", read, h.List)
	r.Get("/transactions/:id", read, h.Get)
}
