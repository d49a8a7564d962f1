package services

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zipdrophq/zipdrop-backend/internal/models"
	"github.com/zipdrophq/zipdrop-backend/internal/storage"
)

func newTestCustomer(t *testing.T, store storage.Store) *models.Customer {
	t.Helper()
	customer, err := store.CreateCustomer(&models.Customer{
		Name:  "Asha Rao",
		Phone: "9876543210",
		Email: "asha@example.com",
	})
	require.NoError(t, err)
	return customer
}

func newTestPartner(t *testing.T, store storage.Store) *models.Partner {
	t.Helper()
	partner, err := store.CreatePartner(&models.Partner{
		Name:      "Ravi Kumar",
		Phone:     "9876500000",
		VehicleNo: "KA01AB1234",
	})
	require.NoError(t, err)
	partner.Verified = true
	partner.Available = true
	require.NoError(t, store.UpdatePartner(partner))
	return partner
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}
