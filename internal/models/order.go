package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/zipdrophq/zipdrop-backend/internal/geo"
	"github.com/zipdrophq/zipdrop-backend/internal/pricing"
)

// OrderStatus is the lifecycle state of an order. Orders advance through the
// transition table below and are never deleted, only terminally marked.
type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "PENDING"
	OrderStatusConfirmed      OrderStatus = "CONFIRMED"
	OrderStatusPickedUp       OrderStatus = "PICKED_UP"
	OrderStatusInTransit      OrderStatus = "IN_TRANSIT"
	OrderStatusOutForDelivery OrderStatus = "OUT_FOR_DELIVERY"
	OrderStatusDelivered      OrderStatus = "DELIVERED"
	OrderStatusCancelled      OrderStatus = "CANCELLED"
	OrderStatusReturned       OrderStatus = "RETURNED"
)

// PaymentStatus is tracked independently of the order status.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// orderTransitions is the closed set of legal status moves. Cancellation is a
// cross-cutting exception handled separately: it is allowed from any
// non-terminal state.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:        {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:      {OrderStatusPickedUp, OrderStatusCancelled},
	OrderStatusPickedUp:       {OrderStatusInTransit, OrderStatusReturned},
	OrderStatusInTransit:      {OrderStatusOutForDelivery, OrderStatusReturned},
	OrderStatusOutForDelivery: {OrderStatusDelivered, OrderStatusReturned},
	OrderStatusDelivered:      {},
	OrderStatusCancelled:      {},
	OrderStatusReturned:       {},
}

// CanTransitionTo reports whether the table permits moving from s to target.
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s admits no further transitions.
func (s OrderStatus) IsTerminal() bool {
	return len(orderTransitions[s]) == 0
}

// IsValidOrderStatus reports whether the string names a known status.
func IsValidOrderStatus(s string) bool {
	_, ok := orderTransitions[OrderStatus(s)]
	return ok
}

// NonTerminalStatuses returns every status that still admits a transition.
func NonTerminalStatuses() []OrderStatus {
	var out []OrderStatus
	for s := range orderTransitions {
		if !s.IsTerminal() {
			out = append(out, s)
		}
	}
	return out
}

// Order represents one transaction between a customer and a delivery partner.
type Order struct {
	gorm.Model

	OrderID     string `json:"order_id" gorm:"uniqueIndex"`
	OrderNumber string `json:"order_number" gorm:"uniqueIndex"`

	CustomerID string  `json:"customer_id" gorm:"index;not null"`
	PartnerID  *string `json:"partner_id" gorm:"index"`

	PickupAddress string  `json:"pickup_address"`
	PickupLat     float64 `json:"pickup_lat"`
	PickupLng     float64 `json:"pickup_lng"`
	DropAddress   string  `json:"drop_address"`
	DropLat       float64 `json:"drop_lat"`
	DropLng       float64 `json:"drop_lng"`

	ServiceType   string        `json:"service_type"`
	Status        OrderStatus   `json:"status" gorm:"index;default:PENDING"`
	PaymentStatus PaymentStatus `json:"payment_status" gorm:"default:pending"`
	PaymentMethod string        `json:"payment_method"`
	RefundPending bool          `json:"refund_pending" gorm:"default:false"`

	Items []OrderItem `json:"items" gorm:"foreignKey:OrderRef;references:OrderID"`

	// Derived at creation time, immutable afterwards.
	DistanceKM     float64 `json:"distance_km"`
	BasePrice      float64 `json:"base_price"`
	DistanceCharge float64 `json:"distance_charge"`
	WeightCharge   float64 `json:"weight_charge"`
	ServiceCharge  float64 `json:"service_charge"`
	TaxAmount      float64 `json:"tax_amount"`
	Discount       float64 `json:"discount"`
	TotalAmount    float64 `json:"total_amount"`

	EstimatedDeliveryAt *time.Time `json:"estimated_delivery_at"`

	CustomerRating  *float64 `json:"customer_rating"`
	CustomerComment string   `json:"customer_comment"`
	PartnerRating   *float64 `json:"partner_rating"`
	PartnerComment  string   `json:"partner_comment"`

	CancelReason string `json:"cancel_reason"`
	CancelledBy  string `json:"cancelled_by"`

	ConfirmedAt *time.Time `json:"confirmed_at"`
	PickedUpAt  *time.Time `json:"picked_up_at"`
	DeliveredAt *time.Time `json:"delivered_at"`
	CancelledAt *time.Time `json:"cancelled_at"`
}

// BeforeCreate generates the business identifiers when unset.
func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.OrderID == "" {
		o.OrderID = GenerateID("ORD")
	}
	if o.OrderNumber == "" {
		o.OrderNumber = fmt.Sprintf("ZD-%s", time.Now().Format("20060102-150405.000"))
	}
	if o.Status == "" {
		o.Status = OrderStatusPending
	}
	if o.PaymentStatus == "" {
		o.PaymentStatus = PaymentStatusPending
	}
	return nil
}

// Origin returns the pickup coordinates.
func (o *Order) Origin() geo.Coord {
	return geo.Coord{Lat: o.PickupLat, Lng: o.PickupLng}
}

// Destination returns the drop coordinates.
func (o *Order) Destination() geo.Coord {
	return geo.Coord{Lat: o.DropLat, Lng: o.DropLng}
}

// ApplyPricing copies a computed breakdown onto the order.
func (o *Order) ApplyPricing(b pricing.Breakdown) {
	o.DistanceKM = b.DistanceKM
	o.BasePrice = b.BasePrice
	o.DistanceCharge = b.DistanceCharge
	o.WeightCharge = b.WeightCharge
	o.ServiceCharge = b.ServiceCharge
	o.TaxAmount = b.TaxAmount
	o.Discount = b.Discount
	o.TotalAmount = b.TotalAmount
}

// OrderItem is one line of an order.
type OrderItem struct {
	gorm.Model

	OrderRef string  `json:"-" gorm:"index"`
	Name     string  `json:"name"`
	WeightKG float64 `json:"weight_kg"`
	Quantity int     `json:"quantity" gorm:"default:1"`
}

// OrderEvent is an append-only timeline entry recording a status change or
// other notable moment in an order's life.
type OrderEvent struct {
	gorm.Model

	OrderRef   string      `json:"-" gorm:"index;not null"`
	FromStatus OrderStatus `json:"from_status"`
	ToStatus   OrderStatus `json:"to_status"`
	Notes      string      `json:"notes"`
	Actor      string      `json:"actor"`
}
