package transaction

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
)

// PostgresRepository stores transactions in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const transactionColumns = `id, amount, currency, kind, status, method, source_id, destination_id,
        fee, platform_fee, reserve_amount, net_amount, metadata, provider_reference,
        error_message, created_at, updated_at, completed_at`

// Create inserts a transaction record.
func (r *PostgresRepository) Create(ctx context.Context, txn Transaction) error {
	id, err := uuid.Parse(txn.ID)
	if err != nil {
		return err
	}
	meta, err := json.Marshal(txn.Metadata)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO transactions (`+transactionColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		id, txn.Amount.String(), txn.Currency, txn.Kind, txn.Status, txn.Method,
		txn.SourceID, txn.DestinationID, txn.Fee.String(), txn.PlatformFee.String(),
		txn.ReserveAmount.String(), txn.NetAmount.String(), meta, txn.ProviderReference,
		txn.ErrorMessage, txn.CreatedAt.UTC(), txn.UpdatedAt.UTC(), txn.CompletedAt)
	return err
}

// Get fetches a transaction by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Transaction, error) {
	txID, err := uuid.Parse(id)
	if err != nil {
		return Transaction{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, txID)
	txn, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrNotFound
		}
		return Transaction{}, err
	}
	return txn, nil
}

// Update persists the mutable fields of an existing transaction.
func (r *PostgresRepository) Update(ctx context.Context, txn Transaction) error {
	txID, err := uuid.Parse(txn.ID)
	if err != nil {
		return ErrNotFound
	}
	meta, err := json.Marshal(txn.Metadata)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `UPDATE transactions
        SET status = $2, metadata = $3, provider_reference = $4, error_message = $5,
            updated_at = $6, completed_at = $7
        WHERE id = $1`,
		txID, txn.Status, meta, txn.ProviderReference, txn.ErrorMessage,
		txn.UpdatedAt.UTC(), txn.CompletedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns transactions in creation order matching the filter.
func (r *PostgresRepository) List(ctx context.Context, filter Filter) ([]Transaction, bool, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE 1=1`
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.OwnerID != "" {
		p := arg(filter.OwnerID)
		query += ` AND (source_id = ` + p + ` OR destination_id = ` + p + `)`
	}
	if filter.Kind != "" {
		query += ` AND kind = ` + arg(string(filter.Kind))
	}
	if filter.Status != "" {
		query += ` AND status = ` + arg(string(filter.Status))
	}
	if !filter.From.IsZero() {
		query += ` AND created_at >= ` + arg(filter.From.UTC())
	}
	if !filter.To.IsZero() {
		query += ` AND created_at <= ` + arg(filter.To.UTC())
	}
	query += ` ORDER BY created_at ASC LIMIT ` + arg(limit+1) + ` OFFSET ` + arg(filter.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, false, err
		}
		out = append(out, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}

	hasMore := len(out) > limit
	if hasMore {
		out = out[:limit]
	}
	return out, hasMore, nil
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var (
		txn         Transaction
		id          uuid.UUID
		amount      string
		fee         string
		platformFee string
		reserve     string
		net         string
		meta        []byte
		createdAt   time.Time
		updatedAt   time.Time
		completedAt *time.Time
	)
	if err := row.Scan(&id, &amount, &txn.Currency, &txn.Kind, &txn.Status, &txn.Method,
		&txn.SourceID, &txn.DestinationID, &fee, &platformFee, &reserve, &net, &meta,
		&txn.ProviderReference, &txn.ErrorMessage, &createdAt, &updatedAt, &completedAt); err != nil {
		return Transaction{}, err
	}

	txn.ID = id.String()
	var err error
	if txn.Amount, err = decimal.NewFromString(amount); err != nil {
		return Transaction{}, err
	}
	if txn.Fee, err = decimal.NewFromString(fee); err != nil {
		return Transaction{}, err
	}
	if txn.PlatformFee, err = decimal.NewFromString(platformFee); err != nil {
		return Transaction{}, err
	}
	if txn.ReserveAmount, err = decimal.NewFromString(reserve); err != nil {
		return Transaction{}, err
	}
	if txn.NetAmount, err = decimal.NewFromString(net); err != nil {
		return Transaction{}, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &txn.Metadata); err != nil {
			return Transaction{}, err
		}
	}
	txn.CreatedAt = createdAt.UTC()
	txn.UpdatedAt = updatedAt.UTC()
	if completedAt != nil {
		c := completedAt.UTC()
		txn.CompletedAt = &c
	}
	return txn, nil
}
