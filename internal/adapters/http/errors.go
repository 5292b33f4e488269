package http

import "github.com/gofiber/fiber/v2"

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // bad_request, unsupported_action, bridge_error, timeout, ...
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, "bad_request", msg)
}

// errUnsupportedAction returns a 404 for an action the bridge does not handle.
func errUnsupportedAction(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusNotFound, "unsupported_action", msg)
}

// errBridge returns a 422 carrying the bridge's error reply.
func errBridge(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusUnprocessableEntity, "bridge_error", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusInternalServerError, "internal_error", msg)
}

// errGatewayTimeout returns a 504 when no reply arrived in time.
func errGatewayTimeout(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusGatewayTimeout, "timeout", msg)
}
