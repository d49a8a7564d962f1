package pricing_test

import (
	"testing"

	"github.com/zipdrophq/zipdrop-backend/internal/geo"
	"github.com/zipdrophq/zipdrop-backend/internal/pricing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	origin = geo.Coord{Lat: 12.97, Lng: 77.59}
	dest   = geo.Coord{Lat: 12.93, Lng: 77.61}
)

func TestComputeDeterministic(t *testing.T) {
	items := []pricing.Item{{Name: "box", WeightKG: 2.5, Quantity: 2}}

	first, err := pricing.Compute(items, origin, dest, pricing.ServiceExpress, 10, pricing.DefaultRates())
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := pricing.Compute(items, origin, dest, pricing.ServiceExpress, 10, pricing.DefaultRates())
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	assert.Greater(t, first.TotalAmount, first.BasePrice)
	assert.Equal(t, first.Subtotal, first.BasePrice+first.DistanceCharge+first.WeightCharge+first.ServiceCharge)
}

func TestComputeZeroDistance(t *testing.T) {
	b, err := pricing.Compute([]pricing.Item{{WeightKG: 1}}, origin, origin, pricing.ServiceStandard, 0, pricing.DefaultRates())
	require.NoError(t, err)

	assert.Equal(t, 0.0, b.DistanceKM)
	assert.Equal(t, 0.0, b.DistanceCharge)
	assert.Equal(t, b.BasePrice+b.WeightCharge+b.ServiceCharge, b.Subtotal)
}

func TestComputeEmptyItems(t *testing.T) {
	b, err := pricing.Compute(nil, origin, dest, pricing.ServiceStandard, 0, pricing.DefaultRates())
	require.NoError(t, err)
	assert.Equal(t, 0.0, b.WeightCharge)
}

func TestComputeValidation(t *testing.T) {
	_, err := pricing.Compute([]pricing.Item{{WeightKG: -1}}, origin, dest, pricing.ServiceStandard, 0, pricing.DefaultRates())
	assert.ErrorIs(t, err, pricing.ErrNegativeWeight)

	_, err = pricing.Compute(nil, geo.Coord{Lat: 120, Lng: 0}, dest, pricing.ServiceStandard, 0, pricing.DefaultRates())
	assert.ErrorIs(t, err, pricing.ErrInvalidCoordinates)

	_, err = pricing.Compute(nil, origin, dest, pricing.ServiceType("overnight"), 0, pricing.DefaultRates())
	assert.ErrorIs(t, err, pricing.ErrUnknownServiceType)
}

func TestSurchargeOrdering(t *testing.T) {
	rates := pricing.DefaultRates()
	assert.LessOrEqual(t, rates.Surcharges[pricing.ServiceStandard], rates.Surcharges[pricing.ServiceScheduled])
	assert.LessOrEqual(t, rates.Surcharges[pricing.ServiceScheduled], rates.Surcharges[pricing.ServiceExpress])
	assert.LessOrEqual(t, rates.Surcharges[pricing.ServiceExpress], rates.Surcharges[pricing.ServiceSameDay])
}
