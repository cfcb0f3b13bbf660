package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vizion-pay/vizion_core/internal/transaction"
	"github.com/vizion-pay/vizion_core/internal/wallet"
)

// inMemoryLedger serializes wallet mutations with per-wallet mutexes. Useful
// for unit tests and dev mode without Postgres.
type inMemoryLedger struct {
	wallets wallet.Repository
	txns    transaction.Repository

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewInMemory creates a concurrency-safe ledger over in-memory repositories.
func NewInMemory(wallets wallet.Repository, txns transaction.Repository) Ledger {
	return &inMemoryLedger{
		wallets: wallets,
		txns:    txns,
		locks:   make(map[string]*sync.Mutex),
	}
}

// lockOwners acquires the per-wallet locks for the given owner ids in sorted
// order so concurrent completions cannot deadlock.
func (l *inMemoryLedger) lockOwners(ownerIDs ...string) func() {
	keys := append([]string(nil), ownerIDs...)
	sort.Strings(keys)

	var held []*sync.Mutex
	seen := map[string]bool{}
	for _, key := range keys {
		if seen[key] {
			continue
		}
		seen[key] = true

		l.mu.Lock()
		lock, ok := l.locks[key]
		if !ok {
			lock = &sync.Mutex{}
			l.locks[key] = lock
		}
		l.mu.Unlock()

		lock.Lock()
		held = append(held, lock)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

func (l *inMemoryLedger) ApplyCompleted(ctx context.Context, txn transaction.Transaction) error {
	if txn.Status != transaction.StatusCompleted {
		return ErrNotCompleted
	}
	if txn.ReserveAmount.GreaterThan(txn.NetAmount) {
		return ErrReserveExceedsNet
	}

	unlock := l.lockOwners(txn.SourceID, txn.DestinationID)
	defer unlock()

	source, err := l.wallets.GetByOwner(ctx, txn.SourceID)
	if err != nil {
		return err
	}
	dest, err := l.wallets.GetByOwner(ctx, txn.DestinationID)
	if err != nil {
		return err
	}
	if !source.Active() || !dest.Active() {
		return wallet.ErrNotActive
	}

	if source.Available(txn.Currency).LessThan(txn.NetAmount) {
		return ErrInsufficientFunds
	}

	now := time.Now().UTC()
	source.Balances[txn.Currency] = source.Balance(txn.Currency).Sub(txn.NetAmount)
	dest.Balances[txn.Currency] = dest.Balance(txn.Currency).Add(txn.NetAmount)
	if txn.ReserveAmount.IsPositive() {
		release := dest.SettlementFrequency.Next(now)
		res := dest.Reserves[txn.Currency]
		res.Amount = res.Amount.Add(txn.ReserveAmount)
		res.ReleaseAt = &release
		dest.Reserves[txn.Currency] = res
	}
	source.UpdatedAt = now
	dest.UpdatedAt = now

	if err := l.wallets.Update(ctx, source); err != nil {
		return err
	}
	if err := l.wallets.Update(ctx, dest); err != nil {
		return err
	}
	return l.txns.Update(ctx, txn)
}

func (l *inMemoryLedger) Settle(ctx context.Context, walletID string, asOf time.Time) (wallet.Wallet, error) {
	w, err := l.wallets.Get(ctx, walletID)
	if err != nil {
		return wallet.Wallet{}, err
	}

	unlock := l.lockOwners(w.OwnerID)
	defer unlock()

	// Re-read under the lock; the first read only resolved the owner key.
	w, err = l.wallets.Get(ctx, walletID)
	if err != nil {
		return wallet.Wallet{}, err
	}

	releaseMatured(&w, asOf)
	for !w.NextSettlementAt.After(asOf) {
		w.NextSettlementAt = w.SettlementFrequency.Next(w.NextSettlementAt)
	}
	w.UpdatedAt = time.Now().UTC()

	if err := l.wallets.Update(ctx, w); err != nil {
		return wallet.Wallet{}, err
	}
	return w, nil
}
