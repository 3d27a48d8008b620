package utils

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/skillswap-api/pkg/apperrors"
)

// APIResponse describes the common structure for API responses.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message"`
	Code    string      `json:"code,omitempty"`
}

// SendSuccess sends a successful JSON response with a message.
func SendSuccess(c *fiber.Ctx, message string, data interface{}) error {
	if message == "" {
		message = "success"
	}

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

// SendError sends an error JSON response with the given status code.
func SendError(c *fiber.Ctx, status int, message string) error {
	if message == "" {
		message = "error"
	}

	return c.Status(status).JSON(APIResponse{
		Success: false,
		Message: message,
	})
}

// SendAppError maps a coded application error onto its HTTP status.
// Uncoded errors are reported as 500 without leaking their text.
func SendAppError(c *fiber.Ctx, err error) error {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return c.Status(fiber.StatusInternalServerError).JSON(APIResponse{
			Success: false,
			Message: "internal server error",
			Code:    string(apperrors.CodeInternal),
		})
	}

	message := appErr.Message
	if StatusFor(appErr.Code) >= fiber.StatusInternalServerError {
		message = "internal server error"
	}

	return c.Status(StatusFor(appErr.Code)).JSON(APIResponse{
		Success: false,
		Message: message,
		Code:    string(appErr.Code),
	})
}

// StatusFor returns the HTTP status used for an error code.
func StatusFor(code apperrors.Code) int {
	switch code {
	case apperrors.CodeNotFound:
		return fiber.StatusNotFound
	case apperrors.CodeValidation:
		return fiber.StatusBadRequest
	case apperrors.CodePermissionDenied:
		return fiber.StatusForbidden
	case apperrors.CodeUnauthenticated:
		return fiber.StatusUnauthorized
	case apperrors.CodeRateLimited:
		return fiber.StatusTooManyRequests
	default:
		return fiber.StatusInternalServerError
	}
}
