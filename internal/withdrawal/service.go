package withdrawal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vizion-pay/vizion_core/internal/payments"
	"github.com/vizion-pay/vizion_core/internal/transaction"
	"github.com/vizion-pay/vizion_core/internal/wallet"
)

// Service runs the withdrawal request lifecycle. Execution of an approved
// request is a payout transaction to the platform wallet, driven through the
// orchestrator like any other payment.
type Service struct {
	repo            Repository
	wallets         wallet.Repository
	orchestrator    *payments.Service
	platformOwnerID string
	logger          *slog.Logger
}

// NewService constructs a withdrawal service. platformOwnerID names the owner
// of the platform wallet that payouts settle against.
func NewService(repo Repository, wallets wallet.Repository, orchestrator *payments.Service, platformOwnerID string, logger *slog.Logger) *Service {
	return &Service{
		repo:            repo,
		wallets:         wallets,
		orchestrator:    orchestrator,
		platformOwnerID: platformOwnerID,
		logger:          logger,
	}
}

// CreateInput captures a user's withdrawal ask.
type CreateInput struct {
	RequesterID        string
	Amount             decimal.Decimal
	Currency           string
	DestinationKind    DestinationKind
	DestinationDetails map[string]string
}

// Create records a pending withdrawal request after checking the requester
// has the funds available right now. The balance is only actually moved when
// the request is processed.
func (s *Service) Create(ctx context.Context, input CreateInput) (Request, error) {
	if !input.Amount.IsPositive() {
		return Request{}, payments.ErrInvalidAmount
	}
	switch input.DestinationKind {
	case DestBankAccount, DestCard, DestWallet:
	default:
		return Request{}, fmt.Errorf("unknown destination kind %q", input.DestinationKind)
	}

	w, err := s.wallets.GetByOwner(ctx, input.RequesterID)
	if err != nil {
		return Request{}, err
	}
	if w.Available(input.Currency).LessThan(input.Amount) {
		return Request{}, fmt.Errorf("requested %s exceeds available balance", input.Amount)
	}

	req := Request{
		ID:                 uuid.NewString(),
		RequesterID:        input.RequesterID,
		Amount:             input.Amount,
		Currency:           input.Currency,
		Status:             StatusPending,
		DestinationKind:    input.DestinationKind,
		DestinationDetails: input.DestinationDetails,
		RequestedAt:        time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, req); err != nil {
		return Request{}, err
	}
	return req, nil
}

// Get returns a withdrawal request.
func (s *Service) Get(ctx context.Context, id string) (Request, error) {
	return s.repo.Get(ctx, id)
}

// ListByRequester returns a requester's withdrawal history.
func (s *Service) ListByRequester(ctx context.Context, requesterID string) ([]Request, error) {
	return s.repo.ListByRequester(ctx, requesterID)
}

// Approve moves a pending request to approved.
func (s *Service) Approve(ctx context.Context, id string) (Request, error) {
	req, err := s.repo.Get(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if req.Status != StatusPending {
		return Request{}, ErrInvalidState
	}
	req.Status = StatusApproved
	if err := s.repo.Update(ctx, req); err != nil {
		return Request{}, err
	}
	return req, nil
}

// Reject terminally declines a pending request with a reason.
func (s *Service) Reject(ctx context.Context, id, reason string) (Request, error) {
	req, err := s.repo.Get(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if req.Status != StatusPending {
		return Request{}, ErrInvalidState
	}
	now := time.Now().UTC()
	req.Status = StatusRejected
	req.RejectionReason = reason
	req.ProcessedAt = &now
	if err := s.repo.Update(ctx, req); err != nil {
		return Request{}, err
	}
	return req, nil
}

// Process executes an approved request as a payout transaction and records
// the terminal outcome.
func (s *Service) Process(ctx context.Context, id string) (Request, error) {
	req, err := s.repo.Get(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if req.Status != StatusApproved {
		return Request{}, ErrInvalidState
	}

	req.Status = StatusProcessing
	if err := s.repo.Update(ctx, req); err != nil {
		return Request{}, err
	}

	meta := map[string]string{"withdrawal_id": req.ID}
	for k, v := range req.DestinationDetails {
		meta["destination_"+k] = v
	}

	result, payErr := s.orchestrator.ProcessPayment(ctx, payments.ProcessInput{
		Amount:        req.Amount,
		Currency:      req.Currency,
		Method:        methodFor(req.DestinationKind),
		Kind:          transaction.KindPayout,
		SourceID:      req.RequesterID,
		DestinationID: s.platformOwnerID,
		Metadata:      meta,
	})

	now := time.Now().UTC()
	req.TransactionID = result.TransactionID
	req.ProcessedAt = &now
	if payErr != nil || result.Status != transaction.StatusCompleted {
		req.Status = StatusFailed
		if payErr != nil {
			s.logger.Warn("withdrawal payout failed", "withdrawal_id", req.ID, "error", payErr)
		}
	} else {
		req.Status = StatusCompleted
	}

	if err := s.repo.Update(ctx, req); err != nil {
		return Request{}, err
	}
	return req, payErr
}

// methodFor picks the provider method that can reach the destination.
func methodFor(kind DestinationKind) transaction.Method {
	switch kind {
	case DestCard:
		return transaction.MethodCard
	case DestWallet:
		return transaction.MethodMobileMoney
	default:
		return transaction.MethodBankTransfer
	}
}
