package handlers

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/zipdrophq/zipdrop-backend/internal/services"
)

var validate = validator.New()

// respondError maps the service error taxonomy onto HTTP status codes.
func respondError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrCustomerNotFound),
		errors.Is(err, services.ErrPartnerNotFound),
		errors.Is(err, services.ErrOrderNotFound),
		errors.Is(err, services.ErrDocumentNotFound),
		errors.Is(err, services.ErrOTPNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrInvalidCode):
		status = fiber.StatusBadRequest
	case errors.Is(err, services.ErrUnauthorized):
		status = fiber.StatusForbidden
	case errors.Is(err, services.ErrAlreadyAssigned),
		errors.Is(err, services.ErrInvalidState),
		errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrNotDeliverable):
		status = fiber.StatusConflict
	case errors.Is(err, services.ErrOTPExpired):
		status = fiber.StatusGone
	case errors.Is(err, services.ErrPartnerIneligible),
		errors.Is(err, services.ErrCustomerInactive):
		status = fiber.StatusUnprocessableEntity
	case errors.Is(err, services.ErrAttemptsExceeded):
		status = fiber.StatusTooManyRequests
	case errors.Is(err, services.ErrDependencyUnavailable):
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

// parseBody decodes and validates a request DTO. On failure it writes the
// 400 response and reports false.
func parseBody(c *fiber.Ctx, dst any) bool {
	if err := c.BodyParser(dst); err != nil {
		_ = c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		return false
	}
	if err := validate.Struct(dst); err != nil {
		_ = c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		return false
	}
	return true
}
