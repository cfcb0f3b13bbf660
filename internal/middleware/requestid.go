package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

// maxRequestIDLen caps caller-supplied ids so a hostile header cannot bloat
// log lines; anything longer is replaced with a generated id.
const maxRequestIDLen = 64

// RequestID ensures each request carries a stable identifier for tracing. An
// id supplied by the caller is kept; otherwise one is generated and echoed
// back on the response.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqID := c.Get(requestIDHeader)
		if reqID == "" || len(reqID) > maxRequestIDLen {
			reqID = uuid.NewString()
		}
		c.Set(requestIDHeader, reqID)
		c.Locals(requestIDHeader, reqID)
		return c.Next()
	}
}
