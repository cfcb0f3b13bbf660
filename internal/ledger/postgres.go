package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/vizion-pay/vizion_core/internal/transaction"
	"github.com/vizion-pay/vizion_core/internal/wallet"
)

// PostgresLedger serializes wallet mutations with row locks and commits the
// wallet updates and the transaction's completed status in one database
// transaction.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

type lockedWallet struct {
	id        uuid.UUID
	ownerID   string
	status    wallet.Status
	frequency wallet.SettlementFrequency
	balances  map[string]decimal.Decimal
	reserves  map[string]walletReserve
	nextAt    time.Time
}

type walletReserve struct {
	Amount    decimal.Decimal `json:"amount"`
	ReleaseAt *time.Time      `json:"release_at,omitempty"`
}

func (w *lockedWallet) balance(cur string) decimal.Decimal {
	if amt, ok := w.balances[cur]; ok {
		return amt
	}
	return decimal.Zero
}

func (w *lockedWallet) available(cur string) decimal.Decimal {
	avail := w.balance(cur)
	if res, ok := w.reserves[cur]; ok {
		avail = avail.Sub(res.Amount)
	}
	return avail
}

func (l *PostgresLedger) ApplyCompleted(ctx context.Context, txn transaction.Transaction) error {
	if txn.Status != transaction.StatusCompleted {
		return ErrNotCompleted
	}
	if txn.ReserveAmount.GreaterThan(txn.NetAmount) {
		return ErrReserveExceedsNet
	}
	txID, err := uuid.Parse(txn.ID)
	if err != nil {
		return transaction.ErrNotFound
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	// Locking both rows in a single id-ordered statement keeps concurrent
	// completions over the same wallet pair deadlock free.
	rows, err := tx.Query(ctx, `SELECT id, owner_id, status, settlement_frequency,
            balances, reserves, next_settlement_at
        FROM wallets WHERE owner_id = ANY($1) ORDER BY id FOR UPDATE`,
		[]string{txn.SourceID, txn.DestinationID})
	if err != nil {
		return err
	}
	locked := map[string]*lockedWallet{}
	for rows.Next() {
		w, err := scanLockedWallet(rows)
		if err != nil {
			rows.Close()
			return err
		}
		locked[w.ownerID] = w
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	source, ok := locked[txn.SourceID]
	if !ok {
		return fmt.Errorf("source owner %s: %w", txn.SourceID, wallet.ErrNotFound)
	}
	dest, ok := locked[txn.DestinationID]
	if !ok {
		return fmt.Errorf("destination owner %s: %w", txn.DestinationID, wallet.ErrNotFound)
	}
	if source.status != wallet.StatusActive || dest.status != wallet.StatusActive {
		return wallet.ErrNotActive
	}

	if source.available(txn.Currency).LessThan(txn.NetAmount) {
		return ErrInsufficientFunds
	}

	now := time.Now().UTC()
	source.balances[txn.Currency] = source.balance(txn.Currency).Sub(txn.NetAmount)
	dest.balances[txn.Currency] = dest.balance(txn.Currency).Add(txn.NetAmount)
	if txn.ReserveAmount.IsPositive() {
		release := dest.frequency.Next(now)
		res := dest.reserves[txn.Currency]
		res.Amount = res.Amount.Add(txn.ReserveAmount)
		res.ReleaseAt = &release
		dest.reserves[txn.Currency] = res
	}

	for _, w := range []*lockedWallet{source, dest} {
		if err := updateLockedWallet(ctx, tx, w, now); err != nil {
			return err
		}
	}

	meta, err := json.Marshal(txn.Metadata)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `UPDATE transactions
        SET status = $2, metadata = $3, provider_reference = $4, error_message = $5,
            updated_at = $6, completed_at = $7
        WHERE id = $1`,
		txID, txn.Status, meta, txn.ProviderReference, txn.ErrorMessage,
		txn.UpdatedAt.UTC(), txn.CompletedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return transaction.ErrNotFound
	}

	return tx.Commit(ctx)
}

func (l *PostgresLedger) Settle(ctx context.Context, walletID string, asOf time.Time) (wallet.Wallet, error) {
	id, err := uuid.Parse(walletID)
	if err != nil {
		return wallet.Wallet{}, wallet.ErrNotFound
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return wallet.Wallet{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	row := tx.QueryRow(ctx, `SELECT id, owner_id, status, settlement_frequency,
            balances, reserves, next_settlement_at
        FROM wallets WHERE id = $1 FOR UPDATE`, id)
	w, err := scanLockedWallet(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return wallet.Wallet{}, wallet.ErrNotFound
		}
		return wallet.Wallet{}, err
	}

	for cur, res := range w.reserves {
		if res.ReleaseAt == nil || res.ReleaseAt.After(asOf) {
			continue
		}
		delete(w.reserves, cur)
	}
	for !w.nextAt.After(asOf) {
		w.nextAt = w.frequency.Next(w.nextAt)
	}

	now := time.Now().UTC()
	if err := updateLockedWallet(ctx, tx, w, now); err != nil {
		return wallet.Wallet{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return wallet.Wallet{}, err
	}

	out := wallet.Wallet{
		ID:                  w.id.String(),
		OwnerID:             w.ownerID,
		Status:              w.status,
		Balances:            w.balances,
		Reserves:            make(map[string]wallet.Reserve, len(w.reserves)),
		SettlementFrequency: w.frequency,
		NextSettlementAt:    w.nextAt,
		UpdatedAt:           now,
	}
	for cur, res := range w.reserves {
		out.Reserves[cur] = wallet.Reserve{Amount: res.Amount, ReleaseAt: res.ReleaseAt}
	}
	return out, nil
}

func scanLockedWallet(row pgx.Row) (*lockedWallet, error) {
	var (
		w        lockedWallet
		balances []byte
		reserves []byte
		nextAt   time.Time
	)
	if err := row.Scan(&w.id, &w.ownerID, &w.status, &w.frequency, &balances, &reserves, &nextAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(balances, &w.balances); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(reserves, &w.reserves); err != nil {
		return nil, err
	}
	if w.balances == nil {
		w.balances = map[string]decimal.Decimal{}
	}
	if w.reserves == nil {
		w.reserves = map[string]walletReserve{}
	}
	w.nextAt = nextAt.UTC()
	return &w, nil
}

func updateLockedWallet(ctx context.Context, tx pgx.Tx, w *lockedWallet, now time.Time) error {
	balances, err := json.Marshal(w.balances)
	if err != nil {
		return err
	}
	reserves, err := json.Marshal(w.reserves)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `UPDATE wallets
        SET balances = $2, reserves = $3, next_settlement_at = $4, updated_at = $5
        WHERE id = $1`, w.id, balances, reserves, w.nextAt.UTC(), now)
	return err
}
