package wallet

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound indicates no wallet exists for the given identifier or owner.
	ErrNotFound = errors.New("wallet not found")

	// ErrNotActive indicates the wallet cannot participate in money movement.
	ErrNotActive = errors.New("wallet not active")

	// ErrInvalidStatus indicates an illegal wallet status transition.
	ErrInvalidStatus = errors.New("invalid wallet status transition")
)

// OwnerKind distinguishes who a wallet belongs to.
type OwnerKind string

const (
	OwnerUser     OwnerKind = "user"
	OwnerMerchant OwnerKind = "merchant"
	OwnerPlatform OwnerKind = "platform"
)

// Status enumerates the wallet lifecycle states. Wallets are never deleted,
// only transitioned to closed.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusClosed    Status = "closed"
)

// SettlementFrequency controls how often reserves mature back into the
// spendable balance.
type SettlementFrequency string

const (
	SettleDaily    SettlementFrequency = "daily"
	SettleWeekly   SettlementFrequency = "weekly"
	SettleBiweekly SettlementFrequency = "biweekly"
	SettleMonthly  SettlementFrequency = "monthly"
)

// Next returns the settlement date following from.
func (f SettlementFrequency) Next(from time.Time) time.Time {
	switch f {
	case SettleDaily:
		return from.AddDate(0, 0, 1)
	case SettleWeekly:
		return from.AddDate(0, 0, 7)
	case SettleBiweekly:
		return from.AddDate(0, 0, 14)
	case SettleMonthly:
		return from.AddDate(0, 1, 0)
	default:
		return from.AddDate(0, 0, 7)
	}
}

// Valid reports whether the frequency is a recognized value.
func (f SettlementFrequency) Valid() bool {
	switch f {
	case SettleDaily, SettleWeekly, SettleBiweekly, SettleMonthly:
		return true
	default:
		return false
	}
}

// Reserve holds funds credited but withheld from the spendable balance until
// the release date passes.
type Reserve struct {
	Amount    decimal.Decimal
	ReleaseAt *time.Time
}

// Wallet is a multi-currency stored value account. Balances and reserves are
// keyed by currency code and mutated only by the ledger.
type Wallet struct {
	ID                  string
	OwnerID             string
	OwnerKind           OwnerKind
	Status              Status
	Balances            map[string]decimal.Decimal
	Reserves            map[string]Reserve
	ReservePct          decimal.Decimal
	SettlementFrequency SettlementFrequency
	NextSettlementAt    time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Balance returns the total balance held in the given currency.
func (w *Wallet) Balance(currency string) decimal.Decimal {
	if amt, ok := w.Balances[currency]; ok {
		return amt
	}
	return decimal.Zero
}

// Reserved returns the reserved amount held in the given currency.
func (w *Wallet) Reserved(currency string) decimal.Decimal {
	if r, ok := w.Reserves[currency]; ok {
		return r.Amount
	}
	return decimal.Zero
}

// Available returns balance minus reserve for the given currency.
func (w *Wallet) Available(currency string) decimal.Decimal {
	return w.Balance(currency).Sub(w.Reserved(currency))
}

// Active reports whether the wallet may send or receive funds.
func (w *Wallet) Active() bool {
	return w.Status == StatusActive
}

// Clone returns a deep copy so callers cannot alias the stored maps.
func (w Wallet) Clone() Wallet {
	out := w
	out.Balances = make(map[string]decimal.Decimal, len(w.Balances))
	for k, v := range w.Balances {
		out.Balances[k] = v
	}
	out.Reserves = make(map[string]Reserve, len(w.Reserves))
	for k, v := range w.Reserves {
		if v.ReleaseAt != nil {
			release := *v.ReleaseAt
			v.ReleaseAt = &release
		}
		out.Reserves[k] = v
	}
	return out
}
