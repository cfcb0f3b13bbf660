package withdrawal

import (
	"context"
	"errors"
	"sync"
)

// Repository persists withdrawal requests.
type Repository interface {
	Create(ctx context.Context, req Request) error
	Get(ctx context.Context, id string) (Request, error)
	Update(ctx context.Context, req Request) error
	ListByRequester(ctx context.Context, requesterID string) ([]Request, error)
}

type memoryRepository struct {
	mu      sync.RWMutex
	storage map[string]Request
	order   []string
}

// NewMemoryRepository constructs an in-memory repository for tests and dev mode.
func NewMemoryRepository() Repository {
	return &memoryRepository{storage: make(map[string]Request)}
}

func (r *memoryRepository) Create(_ context.Context, req Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.storage[req.ID]; exists {
		return errors.New("withdrawal request exists")
	}
	r.storage[req.ID] = cloneRequest(req)
	r.order = append(r.order, req.ID)
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.storage[id]
	if !ok {
		return Request{}, ErrNotFound
	}
	return cloneRequest(req), nil
}

func (r *memoryRepository) Update(_ context.Context, req Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.storage[req.ID]; !ok {
		return ErrNotFound
	}
	r.storage[req.ID] = cloneRequest(req)
	return nil
}

func (r *memoryRepository) ListByRequester(_ context.Context, requesterID string) ([]Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Request
	for _, id := range r.order {
		if req := r.storage[id]; req.RequesterID == requesterID {
			out = append(out, cloneRequest(req))
		}
	}
	return out, nil
}

func cloneRequest(req Request) Request {
	out := req
	if req.DestinationDetails != nil {
		out.DestinationDetails = make(map[string]string, len(req.DestinationDetails))
		for k, v := range req.DestinationDetails {
			out.DestinationDetails[k] = v
		}
	}
	if req.ProcessedAt != nil {
		processed := *req.ProcessedAt
		out.ProcessedAt = &processed
	}
	return out
}
