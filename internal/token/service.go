package token

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// prefixLength is how many leading characters of the raw value are stored in
// clear for lookup and display. The remainder is only ever compared through
// the bcrypt hash.
const prefixLength = 12

// Service issues, validates and revokes scoped bearer tokens.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService creates a token authority.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// CreateInput captures the data needed to issue a token.
type CreateInput struct {
	BusinessID  string
	Name        string
	Scopes      []Scope
	IPAllowlist []string
	WebhookURL  string
	ExpiresAt   *time.Time
}

// Create generates a 256-bit random value, base64url-encoded without padding,
// and persists the token record. The returned value is the only copy; the
// repository keeps a prefix and a bcrypt hash.
func (s *Service) Create(ctx context.Context, input CreateInput) (Token, string, error) {
	if input.BusinessID == "" {
		return Token{}, "", fmt.Errorf("business id is required")
	}
	if input.Name == "" {
		return Token{}, "", fmt.Errorf("token name is required")
	}
	if len(input.Scopes) == 0 {
		return Token{}, "", fmt.Errorf("at least one scope is required")
	}
	for _, scope := range input.Scopes {
		if !ValidScope(scope) {
			return Token{}, "", fmt.Errorf("unknown scope %q", scope)
		}
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return Token{}, "", err
	}
	value := base64.RawURLEncoding.EncodeToString(raw)

	hash, err := bcrypt.GenerateFromPassword([]byte(value), bcrypt.DefaultCost)
	if err != nil {
		return Token{}, "", err
	}

	t := Token{
		ID:          uuid.NewString(),
		BusinessID:  input.BusinessID,
		Name:        input.Name,
		Prefix:      value[:prefixLength],
		SecretHash:  hash,
		Scopes:      append([]Scope(nil), input.Scopes...),
		IsActive:    true,
		IPAllowlist: append([]string(nil), input.IPAllowlist...),
		WebhookURL:  input.WebhookURL,
		CreatedAt:   time.Now().UTC(),
		ExpiresAt:   input.ExpiresAt,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return Token{}, "", err
	}
	return t, value, nil
}

// Validate authenticates a presented token value against required scopes and
// the caller's IP. Checks run in order: existence/activity, expiration, IP
// allowlist, scopes. Success stamps lastUsedAt best-effort.
func (s *Service) Validate(ctx context.Context, value string, requiredScopes []Scope, callerIP string) (Token, error) {
	if len(value) < prefixLength {
		return Token{}, ErrInvalidToken
	}

	candidates, err := s.repo.FindActiveByPrefix(ctx, value[:prefixLength])
	if err != nil {
		return Token{}, err
	}

	var matched *Token
	for i := range candidates {
		if bcrypt.CompareHashAndPassword(candidates[i].SecretHash, []byte(value)) == nil {
			matched = &candidates[i]
			break
		}
	}
	if matched == nil {
		return Token{}, ErrInvalidToken
	}

	if matched.ExpiresAt != nil && matched.ExpiresAt.Before(time.Now().UTC()) {
		return Token{}, ErrTokenExpired
	}

	if len(matched.IPAllowlist) > 0 {
		allowed := false
		for _, ip := range matched.IPAllowlist {
			if ip == callerIP {
				allowed = true
				break
			}
		}
		if !allowed {
			return Token{}, ErrIPNotAllowed
		}
	}

	for _, scope := range requiredScopes {
		if !matched.HasScope(scope) {
			return Token{}, ErrInsufficientScopes
		}
	}

	now := time.Now().UTC()
	if err := s.repo.TouchLastUsed(ctx, matched.ID, now); err != nil {
		s.logger.Warn("token last-used stamp failed", "token_id", matched.ID, "error", err)
	}
	matched.LastUsedAt = &now
	return *matched, nil
}

// Revoke deactivates the token. The record is retained for audit and any
// later validation fails as if the token never existed.
func (s *Service) Revoke(ctx context.Context, id string) error {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	t.IsActive = false
	return s.repo.Update(ctx, t)
}
