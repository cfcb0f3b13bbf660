package wallet

import (
	"context"
	"time"
)

// Repository persists wallet records. Balance and reserve mutations go through
// the ledger, which owns the serialization discipline; the repository only
// stores whatever state it is handed.
type Repository interface {
	Create(ctx context.Context, w Wallet) error
	Get(ctx context.Context, id string) (Wallet, error)
	GetByOwner(ctx context.Context, ownerID string) (Wallet, error)
	Update(ctx context.Context, w Wallet) error
	// DueForSettlement returns active wallets whose next settlement date is at
	// or before asOf.
	DueForSettlement(ctx context.Context, asOf time.Time) ([]Wallet, error)
}
