package provider

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/vizion-pay/vizion_core/internal/transaction"
)

// Request carries the data an adapter needs to execute an operation against
// its payment network.
type Request struct {
	TransactionID string
	Amount        decimal.Decimal
	Currency      string
	SourceID      string
	DestinationID string
	Metadata      map[string]string
}

// Result is the normalized outcome every adapter returns regardless of the
// network behind it.
type Result struct {
	Status            transaction.Status
	TransactionID     string
	ProviderReference string
	ErrorMessage      string
	Metadata          map[string]string
}

// Error wraps a failure surfaced by a payment network. Adapters own their
// network and timeout failures and report them through this type.
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return "provider error: " + e.Message
}

// Adapter is the capability set every payment network connector implements.
type Adapter interface {
	ProcessPayment(ctx context.Context, req Request) (Result, error)
	RefundPayment(ctx context.Context, req Request) (Result, error)
	VerifyPayment(ctx context.Context, providerReference string) (Result, error)
}
