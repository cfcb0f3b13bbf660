package token

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository stores API tokens in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const tokenColumns = `id, business_id, name, prefix, secret_hash, scopes, is_active,
        ip_allowlist, webhook_url, created_at, expires_at, last_used_at`

// Create inserts a token record.
func (r *PostgresRepository) Create(ctx context.Context, t Token) error {
	id, err := uuid.Parse(t.ID)
	if err != nil {
		return err
	}
	scopes := make([]string, len(t.Scopes))
	for i, s := range t.Scopes {
		scopes[i] = string(s)
	}
	_, err = r.db.Exec(ctx, `INSERT INTO api_tokens (`+tokenColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		id, t.BusinessID, t.Name, t.Prefix, t.SecretHash, scopes, t.IsActive,
		t.IPAllowlist, t.WebhookURL, t.CreatedAt.UTC(), t.ExpiresAt, t.LastUsedAt)
	return err
}

// Get fetches a token by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Token, error) {
	tokenID, err := uuid.Parse(id)
	if err != nil {
		return Token{}, ErrInvalidToken
	}
	row := r.db.QueryRow(ctx, `SELECT `+tokenColumns+` FROM api_tokens WHERE id = $1`, tokenID)
	t, err := scanToken(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Token{}, ErrInvalidToken
		}
		return Token{}, err
	}
	return t, nil
}

// FindActiveByPrefix returns active tokens with the given stored prefix.
func (r *PostgresRepository) FindActiveByPrefix(ctx context.Context, prefix string) ([]Token, error) {
	rows, err := r.db.Query(ctx, `SELECT `+tokenColumns+` FROM api_tokens
        WHERE prefix = $1 AND is_active`, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Token
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Update persists the mutable token fields.
func (r *PostgresRepository) Update(ctx context.Context, t Token) error {
	tokenID, err := uuid.Parse(t.ID)
	if err != nil {
		return ErrInvalidToken
	}
	tag, err := r.db.Exec(ctx, `UPDATE api_tokens
        SET is_active = $2, last_used_at = $3 WHERE id = $1`,
		tokenID, t.IsActive, t.LastUsedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidToken
	}
	return nil
}

// TouchLastUsed stamps usage time without touching anything else.
func (r *PostgresRepository) TouchLastUsed(ctx context.Context, id string, at time.Time) error {
	tokenID, err := uuid.Parse(id)
	if err != nil {
		return ErrInvalidToken
	}
	_, err = r.db.Exec(ctx, `UPDATE api_tokens SET last_used_at = $2 WHERE id = $1`, tokenID, at.UTC())
	return err
}

func scanToken(row pgx.Row) (Token, error) {
	var (
		t          Token
		id         uuid.UUID
		scopes     []string
		createdAt  time.Time
		expiresAt  *time.Time
		lastUsedAt *time.Time
	)
	if err := row.Scan(&id, &t.BusinessID, &t.Name, &t.Prefix, &t.SecretHash, &scopes,
		&t.IsActive, &t.IPAllowlist, &t.WebhookURL, &createdAt, &expiresAt, &lastUsedAt); err != nil {
		return Token{}, err
	}
	t.ID = id.String()
	t.Scopes = make([]Scope, len(scopes))
	for i, s := range scopes {
		t.Scopes[i] = Scope(s)
	}
	t.CreatedAt = createdAt.UTC()
	if expiresAt != nil {
		exp := expiresAt.UTC()
		t.ExpiresAt = &exp
	}
	if lastUsedAt != nil {
		used := lastUsedAt.UTC()
		t.LastUsedAt = &used
	}
	return t, nil
}
