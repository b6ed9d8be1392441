package utils

import "github.com/gofiber/fiber/v2"

// Machine-readable failure reasons carried in error envelopes.
const (
	ReasonValidation   = "validation_error"
	ReasonUnauthorized = "unauthorized"
	ReasonForbidden    = "forbidden"
	ReasonNotFound     = "not_found"
	ReasonConflict     = "conflict"
	ReasonRateLimited  = "rate_limited"
	ReasonInternal     = "internal"
)

// APIResponse describes the common structure for API responses.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message"`
	Reason  string      `json:"reason,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// SendSuccess sends a successful JSON response with a message.
func SendSuccess(c *fiber.Ctx, message string, data interface{}) error {
	return SendSuccessWithStatus(c, fiber.StatusOK, message, data)
}

// SendSuccessWithStatus sends a success payload using the provided HTTP status code.
func SendSuccessWithStatus(c *fiber.Ctx, status int, message string, data interface{}) error {
	if message == "" {
		message = "success"
	}
	if status == 0 {
		status = fiber.StatusOK
	}

	return c.Status(status).JSON(APIResponse{
		Success: true,
		Data:    data,
		Message: message,
	})
}

// OK sends a 200 success payload with optional metadata.
func OK(c *fiber.Ctx, data interface{}, message string, meta interface{}) error {
	if message == "" {
		message = "success"
	}

	return c.Status(fiber.StatusOK).JSON(APIResponse{
		Success: true,
		Data:    data,
		Message: message,
		Meta:    meta,
	})
}

// SendError sends an error JSON response with the given status code.
func SendError(c *fiber.Ctx, status int, message string) error {
	return Fail(c, status, message, nil)
}

// Fail sends an error payload with a reason derived from status and optional details.
func Fail(c *fiber.Ctx, status int, message string, details interface{}) error {
	if message == "" {
		message = "error"
	}

	return c.Status(status).JSON(APIResponse{
		Success: false,
		Message: message,
		Reason:  ReasonForStatus(status),
		Details: details,
	})
}

// ReasonForStatus maps an HTTP status to its machine-readable reason.
func ReasonForStatus(status int) string {
	switch status {
	case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity:
		return ReasonValidation
	case fiber.StatusUnauthorized:
		return ReasonUnauthorized
	case fiber.StatusForbidden:
		return ReasonForbidden
	case fiber.StatusNotFound:
		return ReasonNotFound
	case fiber.StatusConflict:
		return ReasonConflict
	case fiber.StatusTooManyRequests:
		return ReasonRateLimited
	default:
		if status >= fiber.StatusInternalServerError {
			return ReasonInternal
		}
		return ""
	}
}
