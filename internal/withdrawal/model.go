package withdrawal

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound indicates the withdrawal request does not exist.
	ErrNotFound = errors.New("withdrawal request not found")

	// ErrInvalidState indicates the request is not in a state that permits
	// the attempted operation.
	ErrInvalidState = errors.New("withdrawal request in invalid state")
)

// Status enumerates the withdrawal request lifecycle. Completed, failed and
// rejected are terminal.
type Status string

const (
	StatusPending    Status = "pending"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// DestinationKind names where withdrawn funds land.
type DestinationKind string

const (
	DestBankAccount DestinationKind = "bank_account"
	DestCard        DestinationKind = "card"
	DestWallet      DestinationKind = "wallet"
)

// Request is a user-initiated ask to move funds out of their wallet. The
// destination details stay opaque to the core; the provider adapter for the
// matching method interprets them.
type Request struct {
	ID                 string
	RequesterID        string
	Amount             decimal.Decimal
	Currency           string
	Status             Status
	DestinationKind    DestinationKind
	DestinationDetails map[string]string
	RejectionReason    string
	TransactionID      string
	RequestedAt        time.Time
	ProcessedAt        *time.Time
}
