package webhook

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository stores webhook endpoints in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts an endpoint record.
func (r *PostgresRepository) Create(ctx context.Context, e Endpoint) error {
	id, err := uuid.Parse(e.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO webhook_endpoints (id, business_id, url, secret, events, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		id, e.BusinessID, e.URL, e.Secret, e.Events, e.CreatedAt.UTC())
	return err
}

// GetByBusiness returns the oldest registered endpoint for the business.
func (r *PostgresRepository) GetByBusiness(ctx context.Context, businessID string) (Endpoint, error) {
	row := r.db.QueryRow(ctx, `SELECT id, business_id, url, secret, events, created_at
        FROM webhook_endpoints WHERE business_id = $1 ORDER BY created_at ASC LIMIT 1`, businessID)
	e, err := scanEndpoint(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Endpoint{}, ErrEndpointNotFound
		}
		return Endpoint{}, err
	}
	return e, nil
}

// ListByBusiness returns every endpoint for the business in creation order.
func (r *PostgresRepository) ListByBusiness(ctx context.Context, businessID string) ([]Endpoint, error) {
	rows, err := r.db.Query(ctx, `SELECT id, business_id, url, secret, events, created_at
        FROM webhook_endpoints WHERE business_id = $1 ORDER BY created_at ASC`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Endpoint
	for rows.Next() {
		e, err := scanEndpoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEndpoint(row pgx.Row) (Endpoint, error) {
	var (
		e         Endpoint
		id        uuid.UUID
		createdAt time.Time
	)
	if err := row.Scan(&id, &e.BusinessID, &e.URL, &e.Secret, &e.Events, &createdAt); err != nil {
		return Endpoint{}, err
	}
	e.ID = id.String()
	e.CreatedAt = createdAt.UTC()
	return e, nil
}
