package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/zipdrophq/zipdrop-backend/internal/models"
	"github.com/zipdrophq/zipdrop-backend/internal/services"
	"github.com/zipdrophq/zipdrop-backend/internal/storage"
)

// PartnerHandler handles partner registration, location updates and
// nearby/optimal partner queries.
type PartnerHandler struct {
	store     storage.Store
	locations *services.LocationService
}

// NewPartnerHandler creates a new partner handler.
func NewPartnerHandler(store storage.Store, locations *services.LocationService) *PartnerHandler {
	return &PartnerHandler{store: store, locations: locations}
}

// CreatePartner registers a new delivery partner.
func (h *PartnerHandler) CreatePartner(c *fiber.Ctx) error {
	var req struct {
		Name        string `json:"name" validate:"required"`
		Phone       string `json:"phone" validate:"required"`
		Email       string `json:"email" validate:"omitempty,email"`
		VehicleNo   string `json:"vehicle_no" validate:"required"`
		VehicleType string `json:"vehicle_type" validate:"required"`
	}
	if !parseBody(c, &req) {
		return nil
	}

	if _, err := h.store.GetPartnerByPhone(req.Phone); err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Partner with this phone already exists",
		})
	}

	partner, err := h.store.CreatePartner(&models.Partner{
		Name:        req.Name,
		Phone:       req.Phone,
		Email:       req.Email,
		VehicleNo:   req.VehicleNo,
		VehicleType: req.VehicleType,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create partner",
		})
	}
	return c.Status(fiber.StatusCreated).JSON(partner)
}

// GetPartner retrieves a partner by ID.
func (h *PartnerHandler) GetPartner(c *fiber.Ctx) error {
	partner, err := h.store.GetPartner(c.Params("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Partner not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to retrieve partner"})
	}
	return c.JSON(partner)
}

// UpdateLocation records a new location sample for a partner.
func (h *PartnerHandler) UpdateLocation(c *fiber.Ctx) error {
	var req struct {
		Lat      float64  `json:"lat"`
		Lng      float64  `json:"lng"`
		Heading  *float64 `json:"heading"`
		SpeedKMH *float64 `json:"speed_kmh"`
		Online   *bool    `json:"online"`
		Battery  *int     `json:"battery"`
		Network  string   `json:"network"`
		OrderID  string   `json:"order_id"`
	}
	if !parseBody(c, &req) {
		return nil
	}

	online := true
	if req.Online != nil {
		online = *req.Online
	}
	sample := models.LocationSample{
		Lat:      req.Lat,
		Lng:      req.Lng,
		Heading:  req.Heading,
		SpeedKMH: req.SpeedKMH,
		Online:   online,
		Battery:  req.Battery,
		Network:  req.Network,
		OrderRef: req.OrderID,
	}

	result, err := h.locations.UpdateLocation(c.Params("id"), sample)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

// GetLatestLocation returns the most recent sample for a partner.
func (h *PartnerHandler) GetLatestLocation(c *fiber.Ctx) error {
	sample, err := h.locations.LatestLocation(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(sample)
}

// FindNearby lists online partners within a radius, nearest first.
func (h *PartnerHandler) FindNearby(c *fiber.Ctx) error {
	lat := c.QueryFloat("lat")
	lng := c.QueryFloat("lng")
	radius := c.QueryFloat("radius_km", 10)

	partners, err := h.locations.FindNearbyPartners(lat, lng, radius)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"partners": partners,
		"count":    len(partners),
	})
}

// FindOptimal returns the best-scoring partner for an origin/destination
// pair, or 404 when none is in range.
func (h *PartnerHandler) FindOptimal(c *fiber.Ctx) error {
	originLat := c.QueryFloat("origin_lat")
	originLng := c.QueryFloat("origin_lng")
	destLat := c.QueryFloat("dest_lat")
	destLng := c.QueryFloat("dest_lng")
	radius := c.QueryFloat("radius_km", 10)

	best, err := h.locations.FindOptimalPartner(originLat, originLng, destLat, destLng, radius)
	if err != nil {
		return respondError(c, err)
	}
	if best == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No eligible partner within radius",
		})
	}
	return c.JSON(best)
}
