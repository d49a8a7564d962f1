package services

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/zipdrophq/zipdrop-backend/internal/metrics"
	"github.com/zipdrophq/zipdrop-backend/internal/models"
	"github.com/zipdrophq/zipdrop-backend/internal/storage"
)

// OTPService issues and verifies one-time codes. Codes are delivered over the
// notifier side channel only; they are never returned in API responses.
type OTPService struct {
	store       storage.Store
	notifier    Notifier
	ttl         time.Duration
	maxAttempts int
	log         *zap.Logger
}

// NewOTPService creates an OTP service. ttl and maxAttempts fall back to
// 10 minutes and 3 when zero.
func NewOTPService(store storage.Store, notifier Notifier, ttl time.Duration, maxAttempts int, log *zap.Logger) *OTPService {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &OTPService{store: store, notifier: notifier, ttl: ttl, maxAttempts: maxAttempts, log: log}
}

// GenerateCode returns a uniformly random fixed-width 6-digit code. Leading
// zeros are preserved by storing and comparing as a string.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// Issue creates a fresh OTP for (userID, purpose), invalidating any pending
// one for the same pair, and delivers it to phone when a notifier is set.
// orderRef scopes pickup/delivery codes to an order and may be empty.
func (s *OTPService) Issue(userID, phone string, purpose models.OTPPurpose, orderRef string) (*models.OTP, error) {
	code, err := GenerateCode()
	if err != nil {
		return nil, err
	}

	// At most one active OTP per (user, purpose).
	if err := s.store.InvalidatePendingOTPs(userID, purpose); err != nil {
		return nil, err
	}

	otp := &models.OTP{
		UserID:      userID,
		Code:        code,
		Purpose:     purpose,
		OrderRef:    orderRef,
		Status:      models.OTPStatusPending,
		ExpiresAt:   time.Now().Add(s.ttl),
		MaxAttempts: s.maxAttempts,
	}
	otp, err = s.store.CreateOTP(otp)
	if err != nil {
		return nil, err
	}

	// Delivery is a side effect after the record is committed; a failed send
	// does not invalidate the code.
	if phone != "" {
		if err := s.notifier.SendOTP(phone, code, purpose); err != nil {
			s.log.Warn("otp delivery failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return otp, nil
}

// Verify checks code against the pending OTP for (userID, purpose), scoped to
// orderRef when non-empty. A verified code is consumed and cannot be verified
// again. Attempt counting is persisted atomically, so concurrent guesses
// cannot exceed the budget.
func (s *OTPService) Verify(userID string, purpose models.OTPPurpose, orderRef, code string) error {
	err := s.verify(userID, purpose, orderRef, code)
	metrics.OTPVerifications.WithLabelValues(verifyResult(err)).Inc()
	return err
}

func (s *OTPService) verify(userID string, purpose models.OTPPurpose, orderRef, code string) error {
	otp, err := s.store.GetPendingOTP(userID, purpose, orderRef)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrOTPNotFound
		}
		return err
	}

	now := time.Now()
	if otp.Expired(now) {
		if _, err := s.store.CloseOTP(otp.ID, models.OTPStatusExpired); err != nil {
			return err
		}
		return ErrOTPExpired
	}

	// Reserve the attempt before looking at the code: concurrent guesses each
	// take a distinct slot, so at most MaxAttempts comparisons ever run.
	attempt, err := s.store.IncrementOTPAttempts(otp.ID)
	if err != nil {
		return err
	}
	if attempt > otp.MaxAttempts {
		if _, err := s.store.CloseOTP(otp.ID, models.OTPStatusFailed); err != nil {
			return err
		}
		return ErrAttemptsExceeded
	}

	if otp.Code != code {
		return ErrInvalidCode
	}

	ok, err := s.store.MarkOTPVerified(otp.ID, now)
	if err != nil {
		return err
	}
	if !ok {
		// Consumed by a concurrent verify; no replay.
		return ErrOTPNotFound
	}
	return nil
}

func verifyResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrOTPNotFound):
		return "not_found"
	case errors.Is(err, ErrOTPExpired):
		return "expired"
	case errors.Is(err, ErrAttemptsExceeded):
		return "attempts_exceeded"
	case errors.Is(err, ErrInvalidCode):
		return "invalid_code"
	default:
		return "error"
	}
}
