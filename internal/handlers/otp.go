package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/zipdrophq/zipdrop-backend/internal/models"
	"github.com/zipdrophq/zipdrop-backend/internal/services"
)

// OTPHandler handles standalone phone/email verification codes. Pickup and
// delivery codes are verified through the order endpoints instead.
type OTPHandler struct {
	otp *services.OTPService
}

// NewOTPHandler creates a new OTP handler.
func NewOTPHandler(otp *services.OTPService) *OTPHandler {
	return &OTPHandler{otp: otp}
}

// Issue generates and delivers a verification code. The code itself is never
// included in the response.
func (h *OTPHandler) Issue(c *fiber.Ctx) error {
	var req struct {
		UserID  string `json:"user_id" validate:"required"`
		Phone   string `json:"phone"`
		Purpose string `json:"purpose" validate:"required,oneof=email_verification phone_verification"`
	}
	if !parseBody(c, &req) {
		return nil
	}

	otp, err := h.otp.Issue(req.UserID, req.Phone, models.OTPPurpose(req.Purpose), "")
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":    "OTP sent",
		"expires_at": otp.ExpiresAt,
	})
}

// Verify checks a submitted code against the pending OTP.
func (h *OTPHandler) Verify(c *fiber.Ctx) error {
	var req struct {
		UserID  string `json:"user_id" validate:"required"`
		Purpose string `json:"purpose" validate:"required,oneof=email_verification phone_verification"`
		Code    string `json:"code" validate:"required,len=6"`
	}
	if !parseBody(c, &req) {
		return nil
	}

	if err := h.otp.Verify(req.UserID, models.OTPPurpose(req.Purpose), "", req.Code); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "OTP verified"})
}
