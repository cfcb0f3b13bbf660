package wallet

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// Handler exposes wallet endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a wallet handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	OwnerID             string `json:"owner_id"`
	OwnerKind           string `json:"owner_kind"`
	ReservePct          string `json:"reserve_pct"`
	SettlementFrequency string `json:"settlement_frequency"`
}

type walletResponse struct {
	ID                  string            `json:"id"`
	OwnerID             string            `json:"owner_id"`
	OwnerKind           string            `json:"owner_kind"`
	Status              string            `json:"status"`
	Balances            map[string]string `json:"balances"`
	Reserves            map[string]string `json:"reserves"`
	ReservePct          string            `json:"reserve_pct"`
	SettlementFrequency string            `json:"settlement_frequency"`
	NextSettlementAt    time.Time         `json:"next_settlement_at"`
}

// Create handles POST /wallets.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	reservePct := decimal.Zero
	if req.ReservePct != "" {
		parsed, err := decimal.NewFromString(req.ReservePct)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid reserve_pct")
		}
		reservePct = parsed
	}

	w, err := h.service.Create(c.UserContext(), CreateInput{
		OwnerID:             req.OwnerID,
		OwnerKind:           OwnerKind(req.OwnerKind),
		ReservePct:          reservePct,
		SettlementFrequency: SettlementFrequency(req.SettlementFrequency),
	})
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(toWalletResponse(w))
}

// Get handles GET /wallets/:id.
func (h *Handler) Get(c *fiber.Ctx) error {
	w, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return walletError(err)
	}
	return c.JSON(toWalletResponse(w))
}

// Balance handles GET /wallets/:id/balance?currency=XCD.
func (h *Handler) Balance(c *fiber.Ctx) error {
	currency := c.Query("currency")
	if currency == "" {
		return fiber.NewError(http.StatusBadRequest, "currency query parameter is required")
	}

	view, err := h.service.Balance(c.UserContext(), c.Params("id"), currency)
	if err != nil {
		return walletError(err)
	}
	return c.JSON(fiber.Map{
		"wallet_id": view.WalletID,
		"currency":  view.Currency,
		"total":     view.Total.String(),
		"reserved":  view.Reserved.String(),
		"available": view.Available.String(),
		"as_of":     view.AsOf,
	})
}

// Suspend handles POST /wallets/:id/suspend.
func (h *Handler) Suspend(c *fiber.Ctx) error {
	w, err := h.service.Suspend(c.UserContext(), c.Params("id"))
	if err != nil {
		return walletError(err)
	}
	return c.JSON(toWalletResponse(w))
}

// Activate handles POST /wallets/:id/activate.
func (h *Handler) Activate(c *fiber.Ctx) error {
	w, err := h.service.Activate(c.UserContext(), c.Params("id"))
	if err != nil {
		return walletError(err)
	}
	return c.JSON(toWalletResponse(w))
}

// Close handles POST /wallets/:id/close.
func (h *Handler) Close(c *fiber.Ctx) error {
	w, err := h.service.Close(c.UserContext(), c.Params("id"))
	if err != nil {
		return walletError(err)
	}
	return c.JSON(toWalletResponse(w))
}

func walletError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "wallet not found")
	case errors.Is(err, ErrInvalidStatus):
		return fiber.NewError(http.StatusConflict, "wallet status does not allow this transition")
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}

func toWalletResponse(w Wallet) walletResponse {
	balances := make(map[string]string, len(w.Balances))
	for cur, amount := range w.Balances {
		balances[cur] = amount.String()
	}
	reserves := make(map[string]string, len(w.Reserves))
	for cur, res := range w.Reserves {
		reserves[cur] = res.Amount.String()
	}
	return walletResponse{
		ID:                  w.ID,
		OwnerID:             w.OwnerID,
		OwnerKind:           string(w.OwnerKind),
		Status:              string(w.Status),
		Balances:            balances,
		Reserves:            reserves,
		ReservePct:          w.ReservePct.String(),
		SettlementFrequency: string(w.SettlementFrequency),
		NextSettlementAt:    w.NextSettlementAt,
	}
}
