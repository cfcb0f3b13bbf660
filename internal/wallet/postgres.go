package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresRepository stores wallets in PostgreSQL. Balances and reserves are
// kept as JSONB documents keyed by currency.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type reserveDoc struct {
	Amount    decimal.Decimal `json:"amount"`
	ReleaseAt *time.Time      `json:"release_at,omitempty"`
}

const walletColumns = `id, owner_id, owner_kind, status, balances, reserves,
        reserve_pct, settlement_frequency, next_settlement_at, created_at, updated_at`

// Create inserts a wallet record.
func (r *PostgresRepository) Create(ctx context.Context, w Wallet) error {
	id, err := uuid.Parse(w.ID)
	if err != nil {
		return err
	}
	balances, reserves, err := encodeHoldings(w)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO wallets (`+walletColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		id, w.OwnerID, w.OwnerKind, w.Status, balances, reserves,
		w.ReservePct.String(), w.SettlementFrequency, w.NextSettlementAt.UTC(),
		w.CreatedAt.UTC(), w.UpdatedAt.UTC())
	return err
}

// Get fetches a wallet by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Wallet, error) {
	walletID, err := uuid.Parse(id)
	if err != nil {
		return Wallet{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1`, walletID)
	return scanWallet(row)
}

// GetByOwner fetches the wallet belonging to the given owner.
func (r *PostgresRepository) GetByOwner(ctx context.Context, ownerID string) (Wallet, error) {
	row := r.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE owner_id = $1`, ownerID)
	return scanWallet(row)
}

// Update persists wallet state including balances and reserves.
func (r *PostgresRepository) Update(ctx context.Context, w Wallet) error {
	walletID, err := uuid.Parse(w.ID)
	if err != nil {
		return ErrNotFound
	}
	balances, reserves, err := encodeHoldings(w)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `UPDATE wallets
        SET status = $2, balances = $3, reserves = $4, reserve_pct = $5,
            settlement_frequency = $6, next_settlement_at = $7, updated_at = $8
        WHERE id = $1`,
		walletID, w.Status, balances, reserves, w.ReservePct.String(),
		w.SettlementFrequency, w.NextSettlementAt.UTC(), w.UpdatedAt.UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DueForSettlement lists active wallets whose settlement date has arrived.
func (r *PostgresRepository) DueForSettlement(ctx context.Context, asOf time.Time) ([]Wallet, error) {
	rows, err := r.db.Query(ctx, `SELECT `+walletColumns+` FROM wallets
        WHERE status = $1 AND next_settlement_at <= $2 ORDER BY next_settlement_at ASC`,
		StatusActive, asOf.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var due []Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, err
		}
		due = append(due, w)
	}
	return due, rows.Err()
}

func encodeHoldings(w Wallet) ([]byte, []byte, error) {
	balances, err := json.Marshal(w.Balances)
	if err != nil {
		return nil, nil, err
	}
	docs := make(map[string]reserveDoc, len(w.Reserves))
	for cur, res := range w.Reserves {
		docs[cur] = reserveDoc{Amount: res.Amount, ReleaseAt: res.ReleaseAt}
	}
	reserves, err := json.Marshal(docs)
	if err != nil {
		return nil, nil, err
	}
	return balances, reserves, nil
}

func scanWallet(row pgx.Row) (Wallet, error) {
	var (
		w          Wallet
		id         uuid.UUID
		balances   []byte
		reserves   []byte
		reservePct string
		nextAt     time.Time
		createdAt  time.Time
		updatedAt  time.Time
	)
	if err := row.Scan(&id, &w.OwnerID, &w.OwnerKind, &w.Status, &balances, &reserves,
		&reservePct, &w.SettlementFrequency, &nextAt, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrNotFound
		}
		return Wallet{}, err
	}

	w.ID = id.String()
	if err := json.Unmarshal(balances, &w.Balances); err != nil {
		return Wallet{}, err
	}
	var docs map[string]reserveDoc
	if err := json.Unmarshal(reserves, &docs); err != nil {
		return Wallet{}, err
	}
	w.Reserves = make(map[string]Reserve, len(docs))
	for cur, doc := range docs {
		w.Reserves[cur] = Reserve{Amount: doc.Amount, ReleaseAt: doc.ReleaseAt}
	}
	var err error
	if w.ReservePct, err = decimal.NewFromString(reservePct); err != nil {
		return Wallet{}, err
	}
	w.NextSettlementAt = nextAt.UTC()
	w.CreatedAt = createdAt.UTC()
	w.UpdatedAt = updatedAt.UTC()
	return w, nil
}
