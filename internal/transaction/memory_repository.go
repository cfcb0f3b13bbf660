package transaction

import (
	"context"
	"errors"
	"sync"
)

type memoryRepository struct {
	mu      sync.RWMutex
	storage map[string]Transaction
	order   []string
}

// NewMemoryRepository constructs an in-memory repository for tests and dev mode.
func NewMemoryRepository() Repository {
	return &memoryRepository{storage: make(map[string]Transaction)}
}

func (r *memoryRepository) Create(_ context.Context, txn Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.storage[txn.ID]; exists {
		return errors.New("transaction exists")
	}
	r.storage[txn.ID] = cloneTransaction(txn)
	r.order = append(r.order, txn.ID)
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	txn, ok := r.storage[id]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	return cloneTransaction(txn), nil
}

func (r *memoryRepository) Update(_ context.Context, txn Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.storage[txn.ID]; !ok {
		return ErrNotFound
	}
	r.storage[txn.ID] = cloneTransaction(txn)
	return nil
}

func (r *memoryRepository) List(_ context.Context, filter Filter) ([]Transaction, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}

	var matched []Transaction
	for _, id := range r.order {
		txn := r.storage[id]
		if !matches(txn, filter) {
			continue
		}
		matched = append(matched, cloneTransaction(txn))
	}

	if filter.Offset >= len(matched) {
		return nil, false, nil
	}
	matched = matched[filter.Offset:]

	hasMore := len(matched) > limit
	if hasMore {
		matched = matched[:limit]
	}
	return matched, hasMore, nil
}

func matches(txn Transaction, filter Filter) bool {
	if filter.OwnerID != "" && txn.SourceID != filter.OwnerID && txn.DestinationID != filter.OwnerID {
		return false
	}
	if filter.Kind != "" && txn.Kind != filter.Kind {
		return false
	}
	if filter.Status != "" && txn.Status != filter.Status {
		return false
	}
	if !filter.From.IsZero() && txn.CreatedAt.Before(filter.From) {
		return false
	}
	if !filter.To.IsZero() && txn.CreatedAt.After(filter.To) {
		return false
	}
	return true
}

func cloneTransaction(txn Transaction) Transaction {
	out := txn
	if txn.Metadata != nil {
		out.Metadata = make(map[string]string, len(txn.Metadata))
		for k, v := range txn.Metadata {
			out.Metadata[k] = v
		}
	}
	if txn.CompletedAt != nil {
		completed := *txn.CompletedAt
		out.CompletedAt = &completed
	}
	return out
}
