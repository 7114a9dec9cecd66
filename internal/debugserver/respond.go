package debugserver

import (
	"errors"

	"chatsync/internal/models"
	"chatsync/internal/session"

	"github.com/gofiber/fiber/v2"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// RespondWithError sends a standardized error response
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	var response ErrorResponse

	var appErr *models.AppError
	if errors.As(err, &appErr) {
		response = ErrorResponse{
			Error: appErr.Message,
			Code:  appErr.Code,
		}
		if appErr.Err != nil {
			response.Details = appErr.Err.Error()
		}
	} else {
		response = ErrorResponse{
			Error: err.Error(),
		}
	}

	return c.Status(status).JSON(response)
}

// statusFor maps core errors onto HTTP status codes.
func statusFor(err error) int {
	var appErr *models.AppError
	switch {
	case errors.Is(err, session.ErrNoSession), errors.Is(err, session.ErrSessionExpired):
		return fiber.StatusUnauthorized
	case errors.As(err, &appErr):
		switch appErr.Code {
		case "VALIDATION_ERROR":
			return fiber.StatusBadRequest
		case "NOT_FOUND":
			return fiber.StatusNotFound
		case "UNAUTHORIZED":
			return fiber.StatusUnauthorized
		case "UPSTREAM_ERROR":
			return fiber.StatusBadGateway
		}
	}
	return fiber.StatusInternalServerError
}
