package transaction

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound indicates the referenced transaction does not exist.
	ErrNotFound = errors.New("transaction not found")

	// ErrInvalidTransition indicates an illegal state machine edge was attempted.
	ErrInvalidTransition = errors.New("invalid transaction state transition")
)

// Kind enumerates the supported transaction kinds.
type Kind string

const (
	KindCharge   Kind = "charge"
	KindRefund   Kind = "refund"
	KindPayout   Kind = "payout"
	KindTransfer Kind = "transfer"
)

// Status enumerates the transaction state machine states.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusRefunded   Status = "refunded"
)

// Method enumerates the payment methods the router can dispatch on.
type Method string

const (
	MethodCard         Method = "card"
	MethodBankTransfer Method = "bank_transfer"
	MethodMobileMoney  Method = "mobile_money"
)

// MetadataOriginalTransaction links a refund back to the charge it reverses.
const MetadataOriginalTransaction = "original_transaction"

// Transaction records one money movement between two wallet owners.
// Fee, platform fee, reserve and net amounts are fixed at creation and never
// recomputed, so later rate changes cannot alter historical records.
type Transaction struct {
	ID                string
	Amount            decimal.Decimal
	Currency          string
	Kind              Kind
	Status            Status
	Method            Method
	SourceID          string
	DestinationID     string
	Fee               decimal.Decimal
	PlatformFee       decimal.Decimal
	ReserveAmount     decimal.Decimal
	NetAmount         decimal.Decimal
	Metadata          map[string]string
	ProviderReference string
	ErrorMessage      string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	CompletedAt       *time.Time
}

// Transition moves the transaction to the given status, enforcing the legal
// edges: pending→processing, processing→{completed,failed}, completed→refunded.
func (t *Transaction) Transition(to Status) error {
	legal := false
	switch t.Status {
	case StatusPending:
		legal = to == StatusProcessing
	case StatusProcessing:
		legal = to == StatusCompleted || to == StatusFailed
	case StatusCompleted:
		legal = to == StatusRefunded
	}
	if !legal {
		return ErrInvalidTransition
	}

	t.Status = to
	t.UpdatedAt = time.Now().UTC()
	if to == StatusCompleted {
		completed := t.UpdatedAt
		t.CompletedAt = &completed
	}
	return nil
}

// Terminal reports whether the transaction reached a final state.
func (t *Transaction) Terminal() bool {
	switch t.Status {
	case StatusCompleted, StatusFailed, StatusRefunded:
		return true
	default:
		return false
	}
}

// ValidKind reports whether the kind is one of the supported values.
func ValidKind(k Kind) bool {
	switch k {
	case KindCharge, KindRefund, KindPayout, KindTransfer:
		return true
	default:
		return false
	}
}

// ValidMethod reports whether the method is one of the supported values.
func ValidMethod(m Method) bool {
	switch m {
	case MethodCard, MethodBankTransfer, MethodMobileMoney:
		return true
	default:
		return false
	}
}
