package token

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vizion-pay/vizion_core/internal/logging"
)

func issueToken(t *testing.T, svc *Service, input CreateInput) (Token, string) {
	t.Helper()
	tok, value, err := svc.Create(context.Background(), input)
	if err != nil {
		t.Fatalf("create token: %v", err)
	}
	return tok, value
}

func TestCreateTokenShape(t *testing.T) {
	svc := NewService(NewMemoryRepository(), logging.Discard())

	tok, value := issueToken(t, svc, CreateInput{
		BusinessID: "biz-1",
		Name:       "prod key",
		Scopes:     []Scope{ScopeRead, ScopeTransactions},
	})

	// 32 random bytes base64url-encoded without padding.
	if len(value) != 43 {
		t.Fatalf("expected 43-char value, got %d", len(value))
	}
	if tok.Prefix != value[:12] {
		t.Fatalf("prefix must be the first 12 chars, got %q", tok.Prefix)
	}
	if string(tok.SecretHash) == value {
		t.Fatal("secret must not be stored in clear")
	}
	if !tok.IsActive {
		t.Fatal("new token must be active")
	}
}

func TestCreateTokenValidation(t *testing.T) {
	svc := NewService(NewMemoryRepository(), logging.Discard())
	ctx := context.Background()

	if _, _, err := svc.Create(ctx, CreateInput{Name: "x", Scopes: []Scope{ScopeRead}}); err == nil {
		t.Fatal("expected error for missing business id")
	}
	if _, _, err := svc.Create(ctx, CreateInput{BusinessID: "b", Scopes: []Scope{ScopeRead}}); err == nil {
		t.Fatal("expected error for missing name")
	}
	if _, _, err := svc.Create(ctx, CreateInput{BusinessID: "b", Name: "x"}); err == nil {
		t.Fatal("expected error for empty scopes")
	}
	if _, _, err := svc.Create(ctx, CreateInput{BusinessID: "b", Name: "x", Scopes: []Scope{"superuser"}}); err == nil {
		t.Fatal("expected error for unknown scope")
	}
}

func TestValidateHappyPathStampsLastUsed(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo, logging.Discard())
	tok, value := issueToken(t, svc, CreateInput{
		BusinessID: "biz-1",
		Name:       "key",
		Scopes:     []Scope{ScopeRead, ScopeWrite},
	})

	got, err := svc.Validate(context.Background(), value, []Scope{ScopeRead}, "203.0.113.9")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got.ID != tok.ID {
		t.Fatalf("expected token %s, got %s", tok.ID, got.ID)
	}
	if got.LastUsedAt == nil {
		t.Fatal("expected last used stamp")
	}

	stored, err := repo.Get(context.Background(), tok.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.LastUsedAt == nil {
		t.Fatal("last used stamp not persisted")
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	svc := NewService(NewMemoryRepository(), logging.Discard())

	if _, err := svc.Validate(context.Background(), "short", nil, ""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for short value, got %v", err)
	}
	if _, err := svc.Validate(context.Background(), "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", nil, ""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for unknown value, got %v", err)
	}
}

func TestValidateExpiredToken(t *testing.T) {
	svc := NewService(NewMemoryRepository(), logging.Discard())
	past := time.Now().UTC().Add(-time.Hour)
	_, value := issueToken(t, svc, CreateInput{
		BusinessID: "biz-1",
		Name:       "old key",
		Scopes:     []Scope{ScopeRead},
		ExpiresAt:  &past,
	})

	if _, err := svc.Validate(context.Background(), value, []Scope{ScopeRead}, ""); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestValidateIPAllowlist(t *testing.T) {
	svc := NewService(NewMemoryRepository(), logging.Discard())
	_, value := issueToken(t, svc, CreateInput{
		BusinessID:  "biz-1",
		Name:        "pinned key",
		Scopes:      []Scope{ScopeRead},
		IPAllowlist: []string{"203.0.113.9"},
	})

	if _, err := svc.Validate(context.Background(), value, []Scope{ScopeRead}, "203.0.113.9"); err != nil {
		t.Fatalf("allowed ip rejected: %v", err)
	}
	if _, err := svc.Validate(context.Background(), value, []Scope{ScopeRead}, "198.51.100.1"); !errors.Is(err, ErrIPNotAllowed) {
		t.Fatalf("expected ErrIPNotAllowed, got %v", err)
	}
	// No caller IP at all fails closed when an allowlist exists.
	if _, err := svc.Validate(context.Background(), value, []Scope{ScopeRead}, ""); !errors.Is(err, ErrIPNotAllowed) {
		t.Fatalf("expected ErrIPNotAllowed for empty caller ip, got %v", err)
	}
}

func TestValidateScopes(t *testing.T) {
	svc := NewService(NewMemoryRepository(), logging.Discard())
	_, value := issueToken(t, svc, CreateInput{
		BusinessID: "biz-1",
		Name:       "read key",
		Scopes:     []Scope{ScopeRead},
	})

	if _, err := svc.Validate(context.Background(), value, []Scope{ScopeRead, ScopeWrite}, ""); !errors.Is(err, ErrInsufficientScopes) {
		t.Fatalf("expected ErrInsufficientScopes, got %v", err)
	}
}

func TestRevokedTokenFailsAsInvalid(t *testing.T) {
	svc := NewService(NewMemoryRepository(), logging.Discard())
	tok, value := issueToken(t, svc, CreateInput{
		BusinessID: "biz-1",
		Name:       "key",
		Scopes:     []Scope{ScopeRead},
	})

	if err := svc.Revoke(context.Background(), tok.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	// A revoked token is indistinguishable from one that never existed.
	if _, err := svc.Validate(context.Background(), value, []Scope{ScopeRead}, ""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken after revoke, got %v", err)
	}
}
