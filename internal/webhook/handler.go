package webhook

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes webhook endpoint management. The business identity comes
// from the authenticated token, never from the request body.
type Handler struct {
	service *Service
}

// NewHandler constructs a webhook handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type registerRequest struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
}

type endpointResponse struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Secret    string    `json:"secret,omitempty"`
	Events    []string  `json:"events,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Register handles POST /webhooks. The secret is only ever shown here.
func (h *Handler) Register(c *fiber.Ctx) error {
	businessID, _ := c.Locals("business_id").(string)
	if businessID == "" {
		return fiber.NewError(http.StatusUnauthorized, "missing business identity")
	}

	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	endpoint, err := h.service.Register(c.UserContext(), businessID, req.URL, req.Events)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(toEndpointResponse(endpoint))
}

// List handles GET /webhooks.
func (h *Handler) List(c *fiber.Ctx) error {
	businessID, _ := c.Locals("business_id").(string)
	if businessID == "" {
		return fiber.NewError(http.StatusUnauthorized, "missing business identity")
	}

	endpoints, err := h.service.List(c.UserContext(), businessID)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	out := make([]endpointResponse, 0, len(endpoints))
	for _, endpoint := range endpoints {
		out = append(out, toEndpointResponse(endpoint))
	}
	return c.JSON(fiber.Map{"endpoints": out})
}

func toEndpointResponse(e Endpoint) endpointResponse {
	return endpointResponse{
		ID:        e.ID,
		URL:       e.URL,
		Secret:    e.Secret,
		Events:    e.Events,
		CreatedAt: e.CreatedAt,
	}
}
