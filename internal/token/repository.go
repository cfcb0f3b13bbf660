package token

import (
	"context"
	"sync"
	"time"
)

// Repository persists API tokens.
type Repository interface {
	Create(ctx context.Context, t Token) error
	Get(ctx context.Context, id string) (Token, error)
	// FindActiveByPrefix returns active tokens whose stored prefix matches.
	// Normally at most one; collisions are resolved by hash comparison.
	FindActiveByPrefix(ctx context.Context, prefix string) ([]Token, error)
	Update(ctx context.Context, t Token) error
	// TouchLastUsed records usage without requiring read-your-write
	// consistency; validation tolerates a stale timestamp.
	TouchLastUsed(ctx context.Context, id string, at time.Time) error
}

type memoryRepository struct {
	mu      sync.RWMutex
	storage map[string]Token
}

// NewMemoryRepository constructs an in-memory repository for tests and dev mode.
func NewMemoryRepository() Repository {
	return &memoryRepository{storage: make(map[string]Token)}
}

func (r *memoryRepository) Create(_ context.Context, t Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.storage[t.ID] = cloneToken(t)
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (Token, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.storage[id]
	if !ok {
		return Token{}, ErrInvalidToken
	}
	return cloneToken(t), nil
}

func (r *memoryRepository) FindActiveByPrefix(_ context.Context, prefix string) ([]Token, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Token
	for _, t := range r.storage {
		if t.IsActive && t.Prefix == prefix {
			out = append(out, cloneToken(t))
		}
	}
	return out, nil
}

func (r *memoryRepository) Update(_ context.Context, t Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.storage[t.ID]; !ok {
		return ErrInvalidToken
	}
	r.storage[t.ID] = cloneToken(t)
	return nil
}

func (r *memoryRepository) TouchLastUsed(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.storage[id]
	if !ok {
		return ErrInvalidToken
	}
	t.LastUsedAt = &at
	r.storage[id] = t
	return nil
}

func cloneToken(t Token) Token {
	out := t
	out.SecretHash = append([]byte(nil), t.SecretHash...)
	out.Scopes = append([]Scope(nil), t.Scopes...)
	out.IPAllowlist = append([]string(nil), t.IPAllowlist...)
	if t.ExpiresAt != nil {
		exp := *t.ExpiresAt
		out.ExpiresAt = &exp
	}
	if t.LastUsedAt != nil {
		used := *t.LastUsedAt
		out.LastUsedAt = &used
	}
	return out
}
