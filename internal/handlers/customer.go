package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/zipdrophq/zipdrop-backend/internal/models"
	"github.com/zipdrophq/zipdrop-backend/internal/storage"
)

// CustomerHandler handles customer registration and lookup.
type CustomerHandler struct {
	store storage.Store
}

// NewCustomerHandler creates a new customer handler.
func NewCustomerHandler(store storage.Store) *CustomerHandler {
	return &CustomerHandler{store: store}
}

// CreateCustomer registers a new customer account.
func (h *CustomerHandler) CreateCustomer(c *fiber.Ctx) error {
	var req struct {
		Name  string `json:"name" validate:"required"`
		Phone string `json:"phone" validate:"required"`
		Email string `json:"email" validate:"omitempty,email"`
	}
	if !parseBody(c, &req) {
		return nil
	}

	if _, err := h.store.GetCustomerByPhone(req.Phone); err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Customer with this phone already exists",
		})
	}

	customer, err := h.store.CreateCustomer(&models.Customer{
		Name:  req.Name,
		Phone: req.Phone,
		Email: req.Email,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create customer",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(customer)
}

// GetCustomer retrieves a customer by ID.
func (h *CustomerHandler) GetCustomer(c *fiber.Ctx) error {
	customer, err := h.store.GetCustomer(c.Params("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Customer not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to retrieve customer"})
	}
	return c.JSON(customer)
}
