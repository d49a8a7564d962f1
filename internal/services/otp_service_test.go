package services

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zipdrophq/zipdrop-backend/internal/models"
	"github.com/zipdrophq/zipdrop-backend/internal/storage"
)

func newTestOTPService(store storage.Store) *OTPService {
	return NewOTPService(store, NewNoopNotifier(testLogger()), 10*time.Minute, 3, testLogger())
}

func TestGenerateCodeIsSixDigits(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		assert.Len(t, code, 6)
		for _, r := range code {
			assert.True(t, r >= '0' && r <= '9')
		}
	}
}

func TestOTPIssueAndVerify(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := newTestOTPService(store)

	otp, err := svc.Issue("CUS1", "", models.OTPPurposePhoneVerification, "")
	require.NoError(t, err)
	require.Len(t, otp.Code, 6)

	require.NoError(t, svc.Verify("CUS1", models.OTPPurposePhoneVerification, "", otp.Code))

	// A verified code is consumed and cannot be replayed.
	err = svc.Verify("CUS1", models.OTPPurposePhoneVerification, "", otp.Code)
	assert.ErrorIs(t, err, ErrOTPNotFound)
}

func TestOTPWrongCodeIncrementsAttempts(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := newTestOTPService(store)

	otp, err := svc.Issue("CUS1", "", models.OTPPurposePhoneVerification, "")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		err = svc.Verify("CUS1", models.OTPPurposePhoneVerification, "", "000000")
		assert.ErrorIs(t, err, ErrInvalidCode)
	}

	// Budget exhausted: even the correct code is refused now.
	err = svc.Verify("CUS1", models.OTPPurposePhoneVerification, "", otp.Code)
	assert.ErrorIs(t, err, ErrAttemptsExceeded)

	// The failed OTP is no longer pending.
	err = svc.Verify("CUS1", models.OTPPurposePhoneVerification, "", otp.Code)
	assert.ErrorIs(t, err, ErrOTPNotFound)
}

func TestOTPReissueResetsAttemptBudget(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := newTestOTPService(store)

	first, err := svc.Issue("CUS1", "", models.OTPPurposePhoneVerification, "")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		err = svc.Verify("CUS1", models.OTPPurposePhoneVerification, "", "000000")
		assert.ErrorIs(t, err, ErrInvalidCode)
	}

	second, err := svc.Issue("CUS1", "", models.OTPPurposePhoneVerification, "")
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	// The old code was invalidated by the reissue.
	if first.Code != second.Code {
		err = svc.Verify("CUS1", models.OTPPurposePhoneVerification, "", first.Code)
		assert.ErrorIs(t, err, ErrInvalidCode)
	}

	require.NoError(t, svc.Verify("CUS1", models.OTPPurposePhoneVerification, "", second.Code))
}

func TestOTPExpiry(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := newTestOTPService(store)

	otp, err := store.CreateOTP(&models.OTP{
		UserID:      "CUS1",
		Code:        "123456",
		Purpose:     models.OTPPurposeEmailVerification,
		Status:      models.OTPStatusPending,
		ExpiresAt:   time.Now().Add(-time.Minute),
		MaxAttempts: 3,
	})
	require.NoError(t, err)

	err = svc.Verify("CUS1", models.OTPPurposeEmailVerification, "", otp.Code)
	assert.ErrorIs(t, err, ErrOTPExpired)

	// Marked expired on the failed verify.
	err = svc.Verify("CUS1", models.OTPPurposeEmailVerification, "", otp.Code)
	assert.ErrorIs(t, err, ErrOTPNotFound)
}

func TestOTPVerifyWithoutIssue(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := newTestOTPService(store)

	err := svc.Verify("CUS1", models.OTPPurposePhoneVerification, "", "123456")
	assert.ErrorIs(t, err, ErrOTPNotFound)
}

// gatedStore releases pending-OTP reads only once every expected caller has
// fetched its snapshot, forcing the worst interleaving for concurrent
// verification: all guessers see the same pre-increment record.
type gatedStore struct {
	storage.Store
	fetched *sync.WaitGroup
}

func (s *gatedStore) GetPendingOTP(userID string, purpose models.OTPPurpose, orderRef string) (*models.OTP, error) {
	otp, err := s.Store.GetPendingOTP(userID, purpose, orderRef)
	s.fetched.Done()
	s.fetched.Wait()
	return otp, err
}

func TestOTPConcurrentGuessesRespectBudget(t *testing.T) {
	const guessers = 6
	mem := storage.NewMemoryStore()
	var fetched sync.WaitGroup
	fetched.Add(guessers)
	svc := newTestOTPService(&gatedStore{Store: mem, fetched: &fetched})

	otp, err := svc.Issue("CUS1", "", models.OTPPurposePhoneVerification, "")
	require.NoError(t, err)
	wrong := "000000"
	if otp.Code == wrong {
		wrong = "000001"
	}

	results := make(chan error, guessers)
	for i := 0; i < guessers; i++ {
		go func() {
			results <- svc.Verify("CUS1", models.OTPPurposePhoneVerification, "", wrong)
		}()
	}

	var invalid, exceeded int
	for i := 0; i < guessers; i++ {
		switch err := <-results; {
		case errors.Is(err, ErrInvalidCode):
			invalid++
		case errors.Is(err, ErrAttemptsExceeded):
			exceeded++
		default:
			t.Fatalf("unexpected verify result: %v", err)
		}
	}
	// Each guesser read the same pristine record, yet only the attempt
	// budget's worth of codes were ever compared.
	assert.Equal(t, 3, invalid)
	assert.Equal(t, guessers-3, exceeded)

	// The record is closed; even the correct code is refused now.
	err = newTestOTPService(mem).Verify("CUS1", models.OTPPurposePhoneVerification, "", otp.Code)
	assert.ErrorIs(t, err, ErrOTPNotFound)
}

func TestOTPScopedToOrder(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := newTestOTPService(store)

	otp, err := svc.Issue("CUS1", "", models.OTPPurposePickupConfirmation, "ORD1")
	require.NoError(t, err)

	// The code is bound to its order.
	err = svc.Verify("CUS1", models.OTPPurposePickupConfirmation, "ORD2", otp.Code)
	assert.ErrorIs(t, err, ErrOTPNotFound)

	require.NoError(t, svc.Verify("CUS1", models.OTPPurposePickupConfirmation, "ORD1", otp.Code))
}
