package token

import (
	"errors"
	"time"
)

var (
	// ErrInvalidToken indicates no active token matches the presented value.
	// Revoked tokens fail with this same error.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired indicates the token's expiration date has passed.
	ErrTokenExpired = errors.New("token expired")

	// ErrIPNotAllowed indicates the caller's IP is outside the token's
	// non-empty allowlist.
	ErrIPNotAllowed = errors.New("ip not allowed")

	// ErrInsufficientScopes indicates the token is missing a required scope.
	ErrInsufficientScopes = errors.New("insufficient scopes")
)

// Scope names a permission a bearer token may hold.
type Scope string

const (
	ScopeRead         Scope = "read"
	ScopeWrite        Scope = "write"
	ScopeTransactions Scope = "transactions"
	ScopeUsers        Scope = "users"
	ScopeWebhooks     Scope = "webhooks"
	ScopeReports      Scope = "reports"
)

// ValidScope reports whether the scope is a recognized value.
func ValidScope(s Scope) bool {
	switch s {
	case ScopeRead, ScopeWrite, ScopeTransactions, ScopeUsers, ScopeWebhooks, ScopeReports:
		return true
	default:
		return false
	}
}

// Token is a scoped bearer credential for programmatic access. The raw value
// is shown once at creation; only its prefix and a bcrypt hash are stored.
// Tokens are never deleted, only deactivated, so the audit trail survives
// revocation.
type Token struct {
	ID          string
	BusinessID  string
	Name        string
	Prefix      string
	SecretHash  []byte
	Scopes      []Scope
	IsActive    bool
	IPAllowlist []string
	WebhookURL  string
	CreatedAt   time.Time
	ExpiresAt   *time.Time
	LastUsedAt  *time.Time
}

// HasScope reports whether the token carries the scope.
func (t *Token) HasScope(scope Scope) bool {
	for _, s := range t.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}
