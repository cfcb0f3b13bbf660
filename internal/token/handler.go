package token

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes token bootstrap endpoints. These sit behind the admin key,
// not bearer auth, because a token is what bearer auth requires.
type Handler struct {
	service *Service
}

// NewHandler constructs a token handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	BusinessID  string   `json:"business_id"`
	Name        string   `json:"name"`
	Scopes      []string `json:"scopes"`
	IPAllowlist []string `json:"ip_allowlist"`
	WebhookURL  string   `json:"webhook_url"`
	ExpiresAt   *string  `json:"expires_at"`
}

type tokenResponse struct {
	ID          string     `json:"id"`
	BusinessID  string     `json:"business_id"`
	Name        string     `json:"name"`
	Prefix      string     `json:"prefix"`
	Scopes      []string   `json:"scopes"`
	IsActive    bool       `json:"is_active"`
	IPAllowlist []string   `json:"ip_allowlist,omitempty"`
	WebhookURL  string     `json:"webhook_url,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
}

// Create handles POST /tokens. The raw value appears only in this response.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	var expiresAt *time.Time
	if req.ExpiresAt != nil && *req.ExpiresAt != "" {
		parsed, err := time.Parse(time.RFC3339, *req.ExpiresAt)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid expires_at timestamp")
		}
		expiresAt = &parsed
	}

	scopes := make([]Scope, 0, len(req.Scopes))
	for _, s := range req.Scopes {
		scopes = append(scopes, Scope(s))
	}

	t, value, err := h.service.Create(c.UserContext(), CreateInput{
		BusinessID:  req.BusinessID,
		Name:        req.Name,
		Scopes:      scopes,
		IPAllowlist: req.IPAllowlist,
		WebhookURL:  req.WebhookURL,
		ExpiresAt:   expiresAt,
	})
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"token": toTokenResponse(t),
		"value": value,
	})
}

// Revoke handles DELETE /tokens/:id.
func (h *Handler) Revoke(c *fiber.Ctx) error {
	if err := h.service.Revoke(c.UserContext(), c.Params("id")); err != nil {
		if errors.Is(err, ErrInvalidToken) {
			return fiber.NewError(http.StatusNotFound, "token not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.SendStatus(http.StatusNoContent)
}

func toTokenResponse(t Token) tokenResponse {
	scopes := make([]string, 0, len(t.Scopes))
	for _, s := range t.Scopes {
		scopes = append(scopes, string(s))
	}
	return tokenResponse{
		ID:          t.ID,
		BusinessID:  t.BusinessID,
		Name:        t.Name,
		Prefix:      t.Prefix,
		Scopes:      scopes,
		IsActive:    t.IsActive,
		IPAllowlist: t.IPAllowlist,
		WebhookURL:  t.WebhookURL,
		CreatedAt:   t.CreatedAt,
		ExpiresAt:   t.ExpiresAt,
		LastUsedAt:  t.LastUsedAt,
	}
}
