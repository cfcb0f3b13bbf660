package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/vizion-pay/vizion_core/internal/middleware"
	"github.com/vizion-pay/vizion_core/internal/token"
	"github.com/vizion-pay/vizion_core/internal/wallet"
)

// RegisterWalletRoutes wires wallet-related endpoints.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler, tokens *token.Service, idem fiber.Handler) {
	write := middleware.BearerAuth(tokens, token.ScopeWrite, token.ScopeUsers)
	r.Post("/wallets", write, idem, h.Create)
	r.Post("/wallets/:id/suspend", write, idem, h.Suspend)
	r.Post("/wallets/:id/activate", write, idem, h.Activate)
	r.Post("/wallets/:id/close", write, idem, h.Close)

	read := middleware.BearerAuth(tokens, token.ScopeRead, token.ScopeUsers)
	r.Get("/wallets/:id", read, h.Get)
	r.Get("/wallets/:id/balance", read, h.Balance)
}
