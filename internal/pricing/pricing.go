package pricing

import (
	"errors"
	"math"

	"github.com/zipdrophq/zipdrop-backend/internal/geo"
)

var (
	ErrNegativeWeight     = errors.New("item weight cannot be negative")
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	ErrUnknownServiceType = errors.New("unknown service type")
)

// ServiceType classifies an order for pricing and SLA purposes.
type ServiceType string

const (
	ServiceStandard  ServiceType = "standard"
	ServiceScheduled ServiceType = "scheduled"
	ServiceExpress   ServiceType = "express"
	ServiceSameDay   ServiceType = "same_day"
)

// Item is the weight-bearing part of an order line for pricing purposes.
type Item struct {
	Name     string  `json:"name"`
	WeightKG float64 `json:"weight_kg"`
	Quantity int     `json:"quantity"`
}

// Rates holds the configurable pricing constants. Surcharges must be ordered
// standard <= scheduled <= express <= same-day.
type Rates struct {
	BaseFee    float64
	PerKM      float64
	PerKG      float64
	Surcharges map[ServiceType]float64
	TaxRate    float64
}

// DefaultRates returns the rates used when configuration does not override them.
func DefaultRates() Rates {
	return Rates{
		BaseFee: 50,
		PerKM:   12,
		PerKG:   10,
		Surcharges: map[ServiceType]float64{
			ServiceStandard:  0,
			ServiceScheduled: 20,
			ServiceExpress:   50,
			ServiceSameDay:   80,
		},
		TaxRate: 0.18,
	}
}

// Breakdown is the full cost decomposition for an order quote.
type Breakdown struct {
	DistanceKM     float64 `json:"distance_km"`
	BasePrice      float64 `json:"base_price"`
	DistanceCharge float64 `json:"distance_charge"`
	WeightCharge   float64 `json:"weight_charge"`
	ServiceCharge  float64 `json:"service_charge"`
	Subtotal       float64 `json:"subtotal"`
	TaxAmount      float64 `json:"tax_amount"`
	Discount       float64 `json:"discount"`
	TotalAmount    float64 `json:"total_amount"`
}

// Compute produces the price breakdown for a trip. It is deterministic: the
// same inputs always yield the same breakdown, so quotes can be recomputed
// for auditing without drift.
func Compute(items []Item, origin, dest geo.Coord, serviceType ServiceType, discount float64, rates Rates) (Breakdown, error) {
	if err := origin.Validate(); err != nil {
		return Breakdown{}, ErrInvalidCoordinates
	}
	if err := dest.Validate(); err != nil {
		return Breakdown{}, ErrInvalidCoordinates
	}

	surcharge, ok := rates.Surcharges[serviceType]
	if !ok {
		return Breakdown{}, ErrUnknownServiceType
	}

	var totalWeight float64
	for _, item := range items {
		if item.WeightKG < 0 {
			return Breakdown{}, ErrNegativeWeight
		}
		qty := item.Quantity
		if qty <= 0 {
			qty = 1
		}
		totalWeight += item.WeightKG * float64(qty)
	}

	distance := geo.Haversine(origin, dest)

	b := Breakdown{
		DistanceKM:     round2(distance),
		BasePrice:      rates.BaseFee,
		DistanceCharge: round2(distance * rates.PerKM),
		WeightCharge:   round2(totalWeight * rates.PerKG),
		ServiceCharge:  surcharge,
		Discount:       discount,
	}
	b.Subtotal = round2(b.BasePrice + b.DistanceCharge + b.WeightCharge + b.ServiceCharge)
	b.TaxAmount = round2(b.Subtotal * rates.TaxRate)
	b.TotalAmount = round2(b.Subtotal + b.TaxAmount - b.Discount)
	return b, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
