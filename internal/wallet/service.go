package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service exposes wallet lifecycle operations. Balance mutations are the
// ledger's job; this service only provisions, inspects and transitions wallets.
type Service struct {
	repo Repository
}

// NewService builds a wallet service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateInput captures data required to onboard a wallet.
type CreateInput struct {
	OwnerID             string
	OwnerKind           OwnerKind
	ReservePct          decimal.Decimal
	SettlementFrequency SettlementFrequency
}

// Create provisions an active wallet for the owner.
func (s *Service) Create(ctx context.Context, input CreateInput) (Wallet, error) {
	if input.OwnerID == "" {
		return Wallet{}, fmt.Errorf("owner id is required")
	}
	switch input.OwnerKind {
	case OwnerUser, OwnerMerchant, OwnerPlatform:
	default:
		return Wallet{}, fmt.Errorf("unknown owner kind %q", input.OwnerKind)
	}
	if input.ReservePct.IsNegative() || input.ReservePct.GreaterThan(decimal.NewFromInt(1)) {
		return Wallet{}, fmt.Errorf("reserve pct must be within [0, 1]")
	}
	freq := input.SettlementFrequency
	if freq == "" {
		freq = SettleWeekly
	}
	if !freq.Valid() {
		return Wallet{}, fmt.Errorf("unknown settlement frequency %q", input.SettlementFrequency)
	}

	now := time.Now().UTC()
	w := Wallet{
		ID:                  uuid.NewString(),
		OwnerID:             input.OwnerID,
		OwnerKind:           input.OwnerKind,
		Status:              StatusActive,
		Balances:            map[string]decimal.Decimal{},
		Reserves:            map[string]Reserve{},
		ReservePct:          input.ReservePct,
		SettlementFrequency: freq,
		NextSettlementAt:    freq.Next(now),
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := s.repo.Create(ctx, w); err != nil {
		return Wallet{}, err
	}
	return w, nil
}

// Get retrieves a wallet by identifier.
func (s *Service) Get(ctx context.Context, id string) (Wallet, error) {
	return s.repo.Get(ctx, id)
}

// GetByOwner retrieves the wallet belonging to an owner.
func (s *Service) GetByOwner(ctx context.Context, ownerID string) (Wallet, error) {
	return s.repo.GetByOwner(ctx, ownerID)
}

// BalanceView reports the holdings of one currency at a point in time.
type BalanceView struct {
	WalletID  string
	Currency  string
	Total     decimal.Decimal
	Reserved  decimal.Decimal
	Available decimal.Decimal
	AsOf      time.Time
}

// Balance returns the wallet's holdings for the given currency.
func (s *Service) Balance(ctx context.Context, id, currency string) (BalanceView, error) {
	w, err := s.repo.Get(ctx, id)
	if err != nil {
		return BalanceView{}, err
	}
	return BalanceView{
		WalletID:  w.ID,
		Currency:  currency,
		Total:     w.Balance(currency),
		Reserved:  w.Reserved(currency),
		Available: w.Available(currency),
		AsOf:      time.Now().UTC(),
	}, nil
}

// Suspend pauses an active wallet.
func (s *Service) Suspend(ctx context.Context, id string) (Wallet, error) {
	return s.transition(ctx, id, StatusSuspended, StatusActive)
}

// Activate resumes a pending or suspended wallet.
func (s *Service) Activate(ctx context.Context, id string) (Wallet, error) {
	return s.transition(ctx, id, StatusActive, StatusPending, StatusSuspended)
}

// Close permanently retires a wallet. Closed wallets are kept for audit.
func (s *Service) Close(ctx context.Context, id string) (Wallet, error) {
	return s.transition(ctx, id, StatusClosed, StatusActive, StatusSuspended, StatusPending)
}

func (s *Service) transition(ctx context.Context, id string, to Status, from ...Status) (Wallet, error) {
	w, err := s.repo.Get(ctx, id)
	if err != nil {
		return Wallet{}, err
	}
	allowed := false
	for _, f := range from {
		if w.Status == f {
			allowed = true
			break
		}
	}
	if !allowed {
		return Wallet{}, ErrInvalidStatus
	}
	w.Status = to
	w.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, w); err != nil {
		return Wallet{}, err
	}
	return w, nil
}
