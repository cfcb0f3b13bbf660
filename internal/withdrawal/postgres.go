package withdrawal

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

// PostgresRepository stores withdrawal requests in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const withdrawalColumns = `id, requester_id, amount, currency, status, destination_kind,
        destination_details, rejection_reason, transaction_id, requested_at, processed_at`

// Create inserts a withdrawal request record.
func (r *PostgresRepository) Create(ctx context.Context, req Request) error {
	id, err := uuid.Parse(req.ID)
	if err != nil {
		return err
	}
	details, err := json.Marshal(req.DestinationDetails)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO withdrawal_requests (`+withdrawalColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		id, req.RequesterID, req.Amount.String(), req.Currency, req.Status,
		req.DestinationKind, details, req.RejectionReason, req.TransactionID,
		req.RequestedAt.UTC(), req.ProcessedAt)
	return err
}

// Get fetches a withdrawal request by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Request, error) {
	reqID, err := uuid.Parse(id)
	if err != nil {
		return Request{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT `+withdrawalColumns+` FROM withdrawal_requests WHERE id = $1`, reqID)
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, ErrNotFound
		}
		return Request{}, err
	}
	return req, nil
}

// Update persists the mutable fields of an existing request.
func (r *PostgresRepository) Update(ctx context.Context, req Request) error {
	reqID, err := uuid.Parse(req.ID)
	if err != nil {
		return ErrNotFound
	}
	tag, err := r.db.Exec(ctx, `UPDATE withdrawal_requests
        SET status = $2, rejection_reason = $3, transaction_id = $4, processed_at = $5
        WHERE id = $1`,
		reqID, req.Status, req.RejectionReason, req.TransactionID, req.ProcessedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByRequester returns a requester's withdrawal requests in creation order.
func (r *PostgresRepository) ListByRequester(ctx context.Context, requesterID string) ([]Request, error) {
	rows, err := r.db.Query(ctx, `SELECT `+withdrawalColumns+` FROM withdrawal_requests
        WHERE requester_id = $1 ORDER BY requested_at ASC`, requesterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func scanRequest(row pgx.Row) (Request, error) {
	var (
		req         Request
		id          uuid.UUID
		amount      string
		details     []byte
		requestedAt time.Time
		processedAt *time.Time
	)
	if err := row.Scan(&id, &req.RequesterID, &amount, &req.Currency, &req.Status,
		&req.DestinationKind, &details, &req.RejectionReason, &req.TransactionID,
		&requestedAt, &processedAt); err != nil {
		return Request{}, err
	}
	req.ID = id.String()
	var err error
	if req.Amount, err = decimal.NewFromString(amount); err != nil {
		return Request{}, err
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &req.DestinationDetails); err != nil {
			return Request{}, err
		}
	}
	req.RequestedAt = requestedAt.UTC()
	if processedAt != nil {
		processed := processedAt.UTC()
		req.ProcessedAt = &processed
	}
	return req, nil
}
