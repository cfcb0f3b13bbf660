package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/vizion-pay/vizion_core/internal/middleware"
	"github.com/vizion-pay/vizion_core/internal/token"
	"github.com/vizion-pay/vizion_core/internal/withdrawal"
)

// RegisterWithdrawalRoutes wires the withdrawal request lifecycle. Review
// actions additionally require the reports scope.
func RegisterWithdrawalRoutes(r fiber.Router, h *withdrawal.Handler, tokens *token.Service, idem fiber.Handler) {
	write := middleware.BearerAuth(tokens, token.ScopeWrite)
	r.Post("/withdrawals", write, idem, h.Create)

	read := middleware.BearerAuth(tokens, token.ScopeRead)
	r.Get("/withdrawals", read, h.List)
	r.Get("/withdrawals/:id", read, h.Get)

	review := middleware.BearerAuth(tokens, token.ScopeWrite, token.ScopeReports)
	r.Post("/withdrawals/:id/approve", review, idem, h.Approve)
	r.Post("/withdrawals/:id/reject", review, idem, h.Reject)
	r.Post("/withdrawals/:id/process", review, idem, h.Process)
}
