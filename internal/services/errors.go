package services

import "errors"

// Typed errors surfaced to the HTTP layer. Guards are checked before any
// write; when one of these is returned, no state has changed.
var (
	ErrCustomerNotFound = errors.New("customer not found")
	ErrPartnerNotFound  = errors.New("partner not found")
	ErrOrderNotFound    = errors.New("order not found")
	ErrDocumentNotFound = errors.New("document not found")

	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidState      = errors.New("order not in a valid state for this operation")
	ErrAlreadyAssigned   = errors.New("order already has a partner assigned")
	ErrPartnerIneligible = errors.New("partner is not eligible")
	ErrCustomerInactive  = errors.New("customer account is inactive")
	ErrUnauthorized      = errors.New("acting user does not match the order's partner")
	ErrNotDeliverable    = errors.New("order has not been delivered")

	ErrOTPNotFound      = errors.New("no pending OTP for this user and purpose")
	ErrOTPExpired       = errors.New("OTP has expired")
	ErrAttemptsExceeded = errors.New("maximum OTP attempts exceeded")
	ErrInvalidCode      = errors.New("incorrect OTP code")

	ErrValidation            = errors.New("validation failed")
	ErrDependencyUnavailable = errors.New("external dependency unavailable")
)
