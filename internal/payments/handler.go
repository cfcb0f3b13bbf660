package payments

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/vizion-pay/vizion_core/internal/ledger"
	"github.com/vizion-pay/vizion_core/internal/provider"
	"github.com/vizion-pay/vizion_core/internal/transaction"
	"github.com/vizion-pay/vizion_core/internal/wallet"
)

// Handler exposes payment and transaction endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a payment handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type processRequest struct {
	Amount        string            `json:"amount"`
	Currency      string            `json:"currency"`
	Method        string            `json:"method"`
	SourceID      string            `json:"source_id"`
	DestinationID string            `json:"destination_id"`
	Metadata      map[string]string `json:"metadata"`
}

type refundRequest struct {
	Amount string `json:"amount"`
}

type resultResponse struct {
	TransactionID     string            `json:"transaction_id"`
	Status            string            `json:"status"`
	ProviderReference string            `json:"provider_reference,omitempty"`
	ErrorMessage      string            `json:"error_message,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

type transactionResponse struct {
	ID                string            `json:"id"`
	Amount            string            `json:"amount"`
	Currency          string            `json:"currency"`
	Kind              string            `json:"kind"`
	Status            string            `json:"status"`
	Method            string            `json:"method"`
	SourceID          string            `json:"source_id"`
	DestinationID     string            `json:"destination_id"`
	Fee               string            `json:"fee"`
	PlatformFee       string            `json:"platform_fee"`
	ReserveAmount     string            `json:"reserve_amount"`
	NetAmount         string            `json:"net_amount"`
	Metadata          map[string]string `json:"metadata,omitempty"`
	ProviderReference string            `json:"provider_reference,omitempty"`
	ErrorMessage      string            `json:"error_message,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
	CompletedAt       *time.Time        `json:"completed_at,omitempty"`
}

// Process handles POST /payments.
func (h *Handler) Process(c *fiber.Ctx) error {
	var req processRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid amount")
	}
	if !transaction.ValidMethod(transaction.Method(req.Method)) {
		return fiber.NewError(http.StatusBadRequest, "unsupported payment method")
	}

	res, err := h.service.ProcessPayment(c.UserContext(), ProcessInput{
		Amount:        amount,
		Currency:      req.Currency,
		Method:        transaction.Method(req.Method),
		SourceID:      req.SourceID,
		DestinationID: req.DestinationID,
		Metadata:      req.Metadata,
	})
	if err != nil {
		return paymentError(c, res, err)
	}
	return c.Status(http.StatusCreated).JSON(toResultResponse(res))
}

// Refund handles POST /payments/:id/refund.
func (h *Handler) Refund(c *fiber.Ctx) error {
	var req refundRequest
	if err := c.BodyParser(&req); err != nil && !errors.Is(err, fiber.ErrUnprocessableEntity) {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	var amount *decimal.Decimal
	if req.Amount != "" {
		parsed, err := decimal.NewFromString(req.Amount)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid amount")
		}
		amount = &parsed
	}

	res, err := h.service.RefundPayment(c.UserContext(), c.Params("id"), amount)
	if err != nil {
		return paymentError(c, res, err)
	}
	return c.Status(http.StatusCreated).JSON(toResultResponse(res))
}

// Verify handles GET /payments/:id/verify.
func (h *Handler) Verify(c *fiber.Ctx) error {
	res, err := h.service.Verify(c.UserContext(), c.Params("id"))
	if err != nil {
		var provErr *provider.Error
		switch {
		case errors.Is(err, transaction.ErrNotFound):
			return fiber.NewError(http.StatusNotFound, "transaction not found")
		case errors.As(err, &provErr):
			return fiber.NewError(http.StatusBadGateway, provErr.Message)
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(fiber.Map{
		"status":             string(res.Status),
		"provider_reference": res.ProviderReference,
	})
}

// List handles GET /transactions.
func (h *Handler) List(c *fiber.Ctx) error {
	filter := transaction.Filter{
		OwnerID: c.Query("owner_id"),
		Kind:    transaction.Kind(c.Query("kind")),
		Status:  transaction.Status(c.Query("status")),
	}
	if v := c.Query("from"); v != "" {
		from, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid from timestamp")
		}
		filter.From = from
	}
	if v := c.Query("to"); v != "" {
		to, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid to timestamp")
		}
		filter.To = to
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return fiber.NewError(http.StatusBadRequest, "invalid limit")
		}
		filter.Limit = limit
	}
	if v := c.Query("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			return fiber.NewError(http.StatusBadRequest, "invalid offset")
		}
		filter.Offset = offset
	}

	txns, hasMore, err := h.service.ListTransactions(c.UserContext(), filter)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	out := make([]transactionResponse, 0, len(txns))
	for _, txn := range txns {
		out = append(out, toTransactionResponse(txn))
	}
	return c.JSON(fiber.Map{"transactions": out, "has_more": hasMore})
}

// Get handles GET /transactions/:id.
func (h *Handler) Get(c *fiber.Ctx) error {
	txn, err := h.service.GetTransaction(c.UserContext(), c.Params("id"))
	if err != nil {
		if errors.Is(err, transaction.ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "transaction not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(toTransactionResponse(txn))
}

// paymentError maps orchestrator errors to HTTP responses. When a failed
// transaction record exists its id rides along so the caller can query it.
func paymentError(c *fiber.Ctx, res Result, err error) error {
	var provErr *provider.Error
	status := http.StatusInternalServerError
	message := err.Error()

	switch {
	case errors.Is(err, ErrInvalidAmount):
		status = http.StatusBadRequest
		message = "invalid amount"
	case errors.Is(err, ErrInvalidCurrency):
		status = http.StatusBadRequest
		message = "unsupported currency"
	case errors.Is(err, provider.ErrInvalidPaymentMethod):
		status = http.StatusBadRequest
		message = "unsupported payment method"
	case errors.Is(err, ErrRefundNotAllowed):
		status = http.StatusConflict
		message = "refund not allowed"
	case errors.Is(err, transaction.ErrNotFound):
		status = http.StatusNotFound
		message = "transaction not found"
	case errors.Is(err, wallet.ErrNotFound):
		status = http.StatusNotFound
		message = "wallet not found"
	case errors.Is(err, wallet.ErrNotActive):
		status = http.StatusConflict
		message = "wallet not active"
	case errors.Is(err, ledger.ErrInsufficientFunds):
		status = http.StatusUnprocessableEntity
		message = "insufficient funds"
	case errors.Is(err, ledger.ErrReserveExceedsNet):
		status = http.StatusUnprocessableEntity
		message = "reserve exceeds net amount"
	case errors.As(err, &provErr):
		status = http.StatusBadGateway
		message = provErr.Message
	}

	body := fiber.Map{"error": message}
	if res.TransactionID != "" {
		body["transaction_id"] = res.TransactionID
		body["status"] = string(res.Status)
	}
	return c.Status(status).JSON(body)
}

func toResultResponse(res Result) resultResponse {
	return resultResponse{
		TransactionID:     res.TransactionID,
		Status:            string(res.Status),
		ProviderReference: res.ProviderReference,
		ErrorMessage:      res.ErrorMessage,
		Metadata:          res.Metadata,
	}
}

func toTransactionResponse(txn transaction.Transaction) transactionResponse {
	return transactionResponse{
		ID:                txn.ID,
		Amount:            txn.Amount.String(),
		Currency:          txn.Currency,
		Kind:              string(txn.Kind),
		Status:            string(txn.Status),
		Method:            string(txn.Method),
		SourceID:          txn.SourceID,
		DestinationID:     txn.DestinationID,
		Fee:               txn.Fee.String(),
		PlatformFee:       txn.PlatformFee.String(),
		ReserveAmount:     txn.ReserveAmount.String(),
		NetAmount:         txn.NetAmount.String(),
		Metadata:          txn.Metadata,
		ProviderReference: txn.ProviderReference,
		ErrorMessage:      txn.ErrorMessage,
		CreatedAt:         txn.CreatedAt,
		UpdatedAt:         txn.UpdatedAt,
		CompletedAt:       txn.CompletedAt,
	}
}
