package transaction

import (
	"context"
	"time"
)

// Filter narrows List results. Zero values mean "no constraint".
type Filter struct {
	OwnerID string
	Kind    Kind
	Status  Status
	From    time.Time
	To      time.Time
	Limit   int
	Offset  int
}

// DefaultPageSize bounds List results when the caller does not set a limit.
const DefaultPageSize = 50

// Repository persists transaction records.
type Repository interface {
	Create(ctx context.Context, txn Transaction) error
	Get(ctx context.Context, id string) (Transaction, error)
	Update(ctx context.Context, txn Transaction) error
	// List returns transactions in creation order matching the filter plus a
	// flag indicating more rows exist beyond the requested page.
	List(ctx context.Context, filter Filter) ([]Transaction, bool, error)
}
