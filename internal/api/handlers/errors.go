package handlers

import (
	"context"
	"errors"

	"github.com/Nate-Schaefer/SmartDart-App/internal/apperr"
	"github.com/Nate-Schaefer/SmartDart-App/internal/models"
	"github.com/Nate-Schaefer/SmartDart-App/internal/obslog"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// statusFor maps an error kind to an HTTP status.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, apperr.ErrInvalidInput):
		return fiber.StatusBadRequest, "Invalid input"
	case errors.Is(err, apperr.ErrUnauthenticated):
		return fiber.StatusUnauthorized, "Unauthenticated"
	case errors.Is(err, apperr.ErrForbidden):
		return fiber.StatusForbidden, "Forbidden"
	case errors.Is(err, apperr.ErrNotFound):
		return fiber.StatusNotFound, "Not found"
	case errors.Is(err, apperr.ErrDuplicateUsername):
		return fiber.StatusConflict, "Username taken"
	case errors.Is(err, apperr.ErrConflict):
		return fiber.StatusConflict, "Conflict"
	case errors.Is(err, apperr.ErrStoreUnavailable), errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusServiceUnavailable, "Service unavailable"
	default:
		return fiber.StatusInternalServerError, "Internal error"
	}
}

// respondError writes err as an ErrorResponse.
func respondError(c *fiber.Ctx, err error) error {
	status, title := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		obslog.L().Error("request_failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	return c.Status(status).JSON(models.ErrorResponse{
		Error:   title,
		Message: err.Error(),
	})
}

func badBody(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
		Error:   "Invalid request body",
		Message: err.Error(),
	})
}

// ErrorHandler handles errors that escape handlers, such as fiber routing
// errors and limiter rejections.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	} else {
		code, _ = statusFor(err)
	}

	return c.Status(code).JSON(models.ErrorResponse{
		Error:   "Request failed",
		Message: err.Error(),
	})
}
