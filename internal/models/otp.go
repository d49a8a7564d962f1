package models

import (
	"time"

	"gorm.io/gorm"
)

// OTPPurpose scopes a code to the action it proves.
type OTPPurpose string

const (
	OTPPurposeEmailVerification    OTPPurpose = "email_verification"
	OTPPurposePhoneVerification    OTPPurpose = "phone_verification"
	OTPPurposePickupConfirmation   OTPPurpose = "pickup_confirmation"
	OTPPurposeDeliveryConfirmation OTPPurpose = "delivery_confirmation"
)

// OTPStatus is the lifecycle state of a code.
type OTPStatus string

const (
	OTPStatusPending  OTPStatus = "pending"
	OTPStatusVerified OTPStatus = "verified"
	OTPStatusExpired  OTPStatus = "expired"
	OTPStatusFailed   OTPStatus = "failed"
)

// OTP is a short-lived single-purpose verification code. At most one pending
// unexpired OTP exists per (user, purpose) pair; issuing a new one invalidates
// prior pending codes for that pair.
type OTP struct {
	gorm.Model

	UserID      string     `json:"user_id" gorm:"index;not null"`
	Code        string     `json:"-" gorm:"not null"` // fixed-width 6 digits, never serialized
	Purpose     OTPPurpose `json:"purpose" gorm:"index;not null"`
	OrderRef    string     `json:"order_ref" gorm:"index"` // set for pickup/delivery codes
	Status      OTPStatus  `json:"status" gorm:"index;default:pending"`
	ExpiresAt   time.Time  `json:"expires_at" gorm:"not null"`
	VerifiedAt  *time.Time `json:"verified_at"`
	Attempts    int        `json:"attempts" gorm:"default:0"`
	MaxAttempts int        `json:"max_attempts" gorm:"default:3"`
}

// Expired reports whether the code is past its expiry at the given time.
func (o *OTP) Expired(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}
