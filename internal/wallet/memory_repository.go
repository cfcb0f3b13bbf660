package wallet

import (
	"context"
	"errors"
	"sync"
	"time"
)

type memoryRepository struct {
	mu      sync.RWMutex
	storage map[string]Wallet
	byOwner map[string]string
}

// NewMemoryRepository constructs an in-memory repository for tests and dev mode.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		storage: make(map[string]Wallet),
		byOwner: make(map[string]string),
	}
}

func (r *memoryRepository) Create(_ context.Context, w Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.storage[w.ID]; exists {
		return errors.New("wallet exists")
	}
	if _, exists := r.byOwner[w.OwnerID]; exists {
		return errors.New("owner already has a wallet")
	}
	r.storage[w.ID] = w.Clone()
	r.byOwner[w.OwnerID] = w.ID
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.storage[id]
	if !ok {
		return Wallet{}, ErrNotFound
	}
	return w.Clone(), nil
}

func (r *memoryRepository) GetByOwner(_ context.Context, ownerID string) (Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byOwner[ownerID]
	if !ok {
		return Wallet{}, ErrNotFound
	}
	return r.storage[id].Clone(), nil
}

func (r *memoryRepository) Update(_ context.Context, w Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.storage[w.ID]; !ok {
		return ErrNotFound
	}
	r.storage[w.ID] = w.Clone()
	return nil
}

func (r *memoryRepository) DueForSettlement(_ context.Context, asOf time.Time) ([]Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var due []Wallet
	for _, w := range r.storage {
		if w.Status == StatusActive && !w.NextSettlementAt.After(asOf) {
			due = append(due, w.Clone())
		}
	}
	return due, nil
}
