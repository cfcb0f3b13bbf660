package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/vizion-pay/vizion_core/internal/transaction"
	"github.com/vizion-pay/vizion_core/internal/wallet"
)

var (
	// ErrInsufficientFunds occurs when the source wallet lacks available
	// balance to cover the debit. Checked before any state is mutated.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrNotCompleted indicates a transaction was handed to the ledger before
	// reaching completed status.
	ErrNotCompleted = errors.New("transaction is not completed")

	// ErrReserveExceedsNet occurs when a transaction books a reserve larger
	// than the net it credits. Applying it would leave the destination's
	// balance below its reserve.
	ErrReserveExceedsNet = errors.New("reserve amount exceeds net amount")
)

// Ledger applies completed transactions to wallet balances and runs settlement.
//
// ApplyCompleted debits the source wallet's available balance by the
// transaction's net amount, credits the destination wallet's balance in the
// same currency, books the reserve amount into the destination's reserve
// bucket with a release date derived from its settlement frequency, and
// persists the transaction's completed status — all atomically. The ledger
// never reflects a transaction that is not durably marked completed.
//
// Settle releases matured reserves for one wallet and advances its next
// settlement date by the configured frequency.
//
// Mutations touching a single wallet are serialized per wallet id; different
// wallets proceed in parallel.
type Ledger interface {
	ApplyCompleted(ctx context.Context, txn transaction.Transaction) error
	Settle(ctx context.Context, walletID string, asOf time.Time) (wallet.Wallet, error)
}

// releaseMatured drops reserve entries whose release date is at or before
// asOf, returning whether anything changed.
func releaseMatured(w *wallet.Wallet, asOf time.Time) bool {
	changed := false
	for cur, res := range w.Reserves {
		if res.ReleaseAt == nil || res.ReleaseAt.After(asOf) {
			continue
		}
		delete(w.Reserves, cur)
		changed = true
	}
	return changed
}
