package webhook

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrEndpointNotFound indicates the business has no registered endpoint.
	ErrEndpointNotFound = errors.New("webhook endpoint not found")

	// ErrDeliveryFailed indicates every delivery attempt was exhausted.
	ErrDeliveryFailed = errors.New("webhook delivery failed")
)

// Endpoint is a subscriber URL plus the shared secret used to sign payloads.
// The secret is returned once at registration and never re-displayed.
type Endpoint struct {
	ID         string
	BusinessID string
	URL        string
	Secret     string
	Events     []string
	CreatedAt  time.Time
}

// SubscribedTo reports whether the endpoint wants the event. An empty event
// set subscribes to everything.
func (e *Endpoint) SubscribedTo(event Event) bool {
	if len(e.Events) == 0 {
		return true
	}
	for _, name := range e.Events {
		if name == string(event) {
			return true
		}
	}
	return false
}

// Repository persists webhook endpoints.
type Repository interface {
	Create(ctx context.Context, e Endpoint) error
	GetByBusiness(ctx context.Context, businessID string) (Endpoint, error)
	ListByBusiness(ctx context.Context, businessID string) ([]Endpoint, error)
}

type memoryRepository struct {
	mu      sync.RWMutex
	storage map[string][]Endpoint
}

// NewMemoryRepository constructs an in-memory repository for tests and dev mode.
func NewMemoryRepository() Repository {
	return &memoryRepository{storage: make(map[string][]Endpoint)}
}

func (r *memoryRepository) Create(_ context.Context, e Endpoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.storage[e.BusinessID] = append(r.storage[e.BusinessID], e)
	return nil
}

func (r *memoryRepository) GetByBusiness(_ context.Context, businessID string) (Endpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	endpoints := r.storage[businessID]
	if len(endpoints) == 0 {
		return Endpoint{}, ErrEndpointNotFound
	}
	return endpoints[0], nil
}

func (r *memoryRepository) ListByBusiness(_ context.Context, businessID string) ([]Endpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Endpoint(nil), r.storage[businessID]...), nil
}
