package webhook

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// Service manages endpoint registration.
type Service struct {
	repo Repository
}

// NewService creates a webhook configuration service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Register stores a new endpoint and returns it with the freshly generated
// secret. This is the only time the secret is returned.
func (s *Service) Register(ctx context.Context, businessID, target string, events []string) (Endpoint, error) {
	if businessID == "" {
		return Endpoint{}, fmt.Errorf("business id is required")
	}
	parsed, err := url.Parse(target)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return Endpoint{}, fmt.Errorf("invalid endpoint url %q", target)
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return Endpoint{}, err
	}

	endpoint := Endpoint{
		ID:         uuid.NewString(),
		BusinessID: businessID,
		URL:        target,
		Secret:     base64.RawURLEncoding.EncodeToString(secret),
		Events:     append([]string(nil), events...),
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, endpoint); err != nil {
		return Endpoint{}, err
	}
	return endpoint, nil
}

// List returns the business's endpoints with secrets blanked out.
func (s *Service) List(ctx context.Context, businessID string) ([]Endpoint, error) {
	endpoints, err := s.repo.ListByBusiness(ctx, businessID)
	if err != nil {
		return nil, err
	}
	for i := range endpoints {
		endpoints[i].Secret = ""
	}
	return endpoints, nil
}
