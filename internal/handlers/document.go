package handlers

import (
	"encoding/base64"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/zipdrophq/zipdrop-backend/internal/models"
	"github.com/zipdrophq/zipdrop-backend/internal/services"
)

// DocumentHandler handles partner identity-document upload and verification.
type DocumentHandler struct {
	documents *services.DocumentService
}

// NewDocumentHandler creates a new document handler.
func NewDocumentHandler(documents *services.DocumentService) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

// Upload stores a base64-encoded document scan for a partner.
func (h *DocumentHandler) Upload(c *fiber.Ctx) error {
	var req struct {
		PartnerID   string `json:"partner_id" validate:"required"`
		Type        string `json:"type" validate:"required,oneof=aadhaar driving_license"`
		Data        string `json:"data" validate:"required"`
		ContentType string `json:"content_type"`
	}
	if !parseBody(c, &req) {
		return nil
	}

	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "data must be base64 encoded",
		})
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}

	doc, err := h.documents.Upload(c.Context(), req.PartnerID, models.DocumentType(req.Type), data, contentType)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(doc)
}

// GetDocument retrieves a document record by ID.
func (h *DocumentHandler) GetDocument(c *fiber.Ctx) error {
	doc, err := h.documents.Get(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(doc)
}

// VerifyDocument runs OCR on the stored scan and records the outcome.
func (h *DocumentHandler) VerifyDocument(c *fiber.Ctx) error {
	doc, err := h.documents.Verify(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(doc)
}

// GetSignedURL returns a time-limited download link for the scan.
func (h *DocumentHandler) GetSignedURL(c *fiber.Ctx) error {
	url, err := h.documents.SignedURL(c.Context(), c.Params("id"), 15*time.Minute)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"url": url})
}
