package withdrawal

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/vizion-pay/vizion_core/internal/payments"
	"github.com/vizion-pay/vizion_core/internal/wallet"
)

// Handler exposes withdrawal request endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a withdrawal handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	RequesterID        string            `json:"requester_id"`
	Amount             string            `json:"amount"`
	Currency           string            `json:"currency"`
	DestinationKind    string            `json:"destination_kind"`
	DestinationDetails map[string]string `json:"destination_details"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

type requestResponse struct {
	ID                 string            `json:"id"`
	RequesterID        string            `json:"requester_id"`
	Amount             string            `json:"amount"`
	Currency           string            `json:"currency"`
	Status             string            `json:"status"`
	DestinationKind    string            `json:"destination_kind"`
	DestinationDetails map[string]string `json:"destination_details,omitempty"`
	TransactionID      string            `json:"transaction_id,omitempty"`
	RejectionReason    string            `json:"rejection_reason,omitempty"`
	RequestedAt        time.Time         `json:"requested_at"`
	ProcessedAt        *time.Time        `json:"processed_at,omitempty"`
}

// Create handles POST /withdrawals.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid amount")
	}

	requesterID := req.RequesterID
	if requesterID == "" {
		requesterID, _ = c.Locals("business_id").(string)
	}

	out, err := h.service.Create(c.UserContext(), CreateInput{
		RequesterID:        requesterID,
		Amount:             amount,
		Currency:           req.Currency,
		DestinationKind:    DestinationKind(req.DestinationKind),
		DestinationDetails: req.DestinationDetails,
	})
	if err != nil {
		return withdrawalError(err)
	}
	return c.Status(http.StatusCreated).JSON(toRequestResponse(out))
}

// Get handles GET /withdrawals/:id.
func (h *Handler) Get(c *fiber.Ctx) error {
	out, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return withdrawalError(err)
	}
	return c.JSON(toRequestResponse(out))
}

// List handles GET /withdrawals?requester_id=...
func (h *Handler) List(c *fiber.Ctx) error {
	requesterID := c.Query("requester_id")
	if requesterID == "" {
		requesterID, _ = c.Locals("business_id").(string)
	}
	if requesterID == "" {
		return fiber.NewError(http.StatusBadRequest, "requester_id is required")
	}

	requests, err := h.service.ListByRequester(c.UserContext(), requesterID)
	if err != nil {
		return withdrawalError(err)
	}

	out := make([]requestResponse, 0, len(requests))
	for _, req := range requests {
		out = append(out, toRequestResponse(req))
	}
	return c.JSON(fiber.Map{"withdrawals": out})
}

// Approve handles POST /withdrawals/:id/approve.
func (h *Handler) Approve(c *fiber.Ctx) error {
	out, err := h.service.Approve(c.UserContext(), c.Params("id"))
	if err != nil {
		return withdrawalError(err)
	}
	return c.JSON(toRequestResponse(out))
}

// Reject handles POST /withdrawals/:id/reject.
func (h *Handler) Reject(c *fiber.Ctx) error {
	var req rejectRequest
	if err := c.BodyParser(&req); err != nil && !errors.Is(err, fiber.ErrUnprocessableEntity) {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	out, err := h.service.Reject(c.UserContext(), c.Params("id"), req.Reason)
	if err != nil {
		return withdrawalError(err)
	}
	return c.JSON(toRequestResponse(out))
}

// Process handles POST /withdrawals/:id/process.
func (h *Handler) Process(c *fiber.Ctx) error {
	out, err := h.service.Process(c.UserContext(), c.Params("id"))
	if err != nil {
		return withdrawalError(err)
	}
	return c.JSON(toRequestResponse(out))
}

func withdrawalError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "withdrawal request not found")
	case errors.Is(err, ErrInvalidState):
		return fiber.NewError(http.StatusConflict, "withdrawal request state does not allow this action")
	case errors.Is(err, payments.ErrInvalidAmount):
		return fiber.NewError(http.StatusBadRequest, "invalid amount")
	case errors.Is(err, wallet.ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "wallet not found")
	default:
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
}

func toRequestResponse(r Request) requestResponse {
	return requestResponse{
		ID:                 r.ID,
		RequesterID:        r.RequesterID,
		Amount:             r.Amount.String(),
		Currency:           r.Currency,
		Status:             string(r.Status),
		DestinationKind:    string(r.DestinationKind),
		DestinationDetails: r.DestinationDetails,
		TransactionID:      r.TransactionID,
		RejectionReason:    r.RejectionReason,
		RequestedAt:        r.RequestedAt,
		ProcessedAt:        r.ProcessedAt,
	}
}
