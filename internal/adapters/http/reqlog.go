package http

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/placesbridge/internal/pkg/logging"
)

// RequestIDLogMiddleware stores a request-scoped *slog.Logger, tagged with the
// Fiber request ID, in the user context. Handlers pass c.UserContext() down so
// the dispatcher and adapters log with the same request_id.
func RequestIDLogMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		logger := slog.Default().With("component", "http")
		if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
			logger = logger.With("request_id", rid)
		}
		c.SetUserContext(logging.WithLogger(c.UserContext(), logger))
		return c.Next()
	}
}
