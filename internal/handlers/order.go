package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/zipdrophq/zipdrop-backend/internal/models"
	"github.com/zipdrophq/zipdrop-backend/internal/pricing"
	"github.com/zipdrophq/zipdrop-backend/internal/services"
)

// OrderHandler handles the order lifecycle endpoints.
type OrderHandler struct {
	orders *services.OrderService
}

// NewOrderHandler creates a new order handler.
func NewOrderHandler(orders *services.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

type orderItemRequest struct {
	Name     string  `json:"name" validate:"required"`
	WeightKG float64 `json:"weight_kg"`
	Quantity int     `json:"quantity"`
}

// CreateOrder opens a new order in PENDING.
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	var req struct {
		CustomerID    string             `json:"customer_id" validate:"required"`
		Items         []orderItemRequest `json:"items" validate:"required,min=1,dive"`
		PickupAddress string             `json:"pickup_address" validate:"required"`
		PickupLat     float64            `json:"pickup_lat"`
		PickupLng     float64            `json:"pickup_lng"`
		DropAddress   string             `json:"drop_address" validate:"required"`
		DropLat       float64            `json:"drop_lat"`
		DropLng       float64            `json:"drop_lng"`
		ServiceType   string             `json:"service_type" validate:"required,oneof=standard scheduled express same_day"`
		PaymentMethod string             `json:"payment_method"`
		Discount      float64            `json:"discount"`
	}
	if !parseBody(c, &req) {
		return nil
	}

	items := make([]models.OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, models.OrderItem{Name: it.Name, WeightKG: it.WeightKG, Quantity: it.Quantity})
	}

	order, err := h.orders.CreateOrder(services.CreateOrderInput{
		CustomerID:    req.CustomerID,
		Items:         items,
		PickupAddress: req.PickupAddress,
		PickupLat:     req.PickupLat,
		PickupLng:     req.PickupLng,
		DropAddress:   req.DropAddress,
		DropLat:       req.DropLat,
		DropLng:       req.DropLng,
		ServiceType:   pricing.ServiceType(req.ServiceType),
		PaymentMethod: req.PaymentMethod,
		Discount:      req.Discount,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(order)
}

// GetOrder retrieves an order by ID.
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	order, err := h.orders.GetOrder(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(order)
}

// ListOrders filters orders by customer, partner or status.
func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	orders, err := h.orders.ListOrders(c.Query("customer_id"), c.Query("partner_id"), c.Query("status"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"orders": orders,
		"count":  len(orders),
	})
}

// GetTimeline returns the order's audit trail.
func (h *OrderHandler) GetTimeline(c *fiber.Ctx) error {
	events, err := h.orders.GetTimeline(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"events": events,
		"count":  len(events),
	})
}

// AssignPartner assigns an eligible partner to a PENDING order.
func (h *OrderHandler) AssignPartner(c *fiber.Ctx) error {
	var req struct {
		PartnerID string `json:"partner_id" validate:"required"`
	}
	if !parseBody(c, &req) {
		return nil
	}

	order, err := h.orders.AssignPartner(c.Params("id"), req.PartnerID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(order)
}

// UpdateStatus moves an order along the transition table.
func (h *OrderHandler) UpdateStatus(c *fiber.Ctx) error {
	var req struct {
		Status string `json:"status" validate:"required"`
		Notes  string `json:"notes"`
		Actor  string `json:"actor"`
	}
	if !parseBody(c, &req) {
		return nil
	}

	order, err := h.orders.Transition(c.Params("id"), models.OrderStatus(req.Status), req.Notes, req.Actor)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(order)
}

type handoffRequest struct {
	PartnerID string `json:"partner_id" validate:"required"`
	Code      string `json:"code" validate:"required,len=6"`
}

// VerifyPickup confirms pickup with the customer's pickup code.
func (h *OrderHandler) VerifyPickup(c *fiber.Ctx) error {
	var req handoffRequest
	if !parseBody(c, &req) {
		return nil
	}

	order, err := h.orders.VerifyPickupOTP(c.Params("id"), req.Code, req.PartnerID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(order)
}

// VerifyDelivery confirms delivery with the customer's delivery code.
func (h *OrderHandler) VerifyDelivery(c *fiber.Ctx) error {
	var req handoffRequest
	if !parseBody(c, &req) {
		return nil
	}

	order, err := h.orders.VerifyDeliveryOTP(c.Params("id"), req.Code, req.PartnerID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(order)
}

// CancelOrder cancels from any non-terminal state.
func (h *OrderHandler) CancelOrder(c *fiber.Ctx) error {
	var req struct {
		Reason      string `json:"reason" validate:"required"`
		CancelledBy string `json:"cancelled_by" validate:"required"`
	}
	if !parseBody(c, &req) {
		return nil
	}

	order, err := h.orders.CancelOrder(c.Params("id"), req.Reason, req.CancelledBy)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(order)
}

// RateOrder attaches a post-delivery rating.
func (h *OrderHandler) RateOrder(c *fiber.Ctx) error {
	var req struct {
		Rating     float64 `json:"rating" validate:"required,min=1,max=5"`
		Comment    string  `json:"comment"`
		RatingType string  `json:"rating_type" validate:"required,oneof=customer partner"`
	}
	if !parseBody(c, &req) {
		return nil
	}

	order, err := h.orders.RateOrder(c.Params("id"), req.Rating, req.Comment, req.RatingType)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(order)
}
