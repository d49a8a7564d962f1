package storage

import (
	"errors"
	"time"

	"github.com/zipdrophq/zipdrop-backend/internal/geo"
	"github.com/zipdrophq/zipdrop-backend/internal/models"
)

// ErrNotFound is returned by lookups when the entity does not exist.
var ErrNotFound = errors.New("not found")

// NearbyPartner pairs an eligible partner with their latest location sample
// and the distance from the query point.
type NearbyPartner struct {
	Partner    *models.Partner        `json:"partner"`
	Location   *models.LocationSample `json:"location"`
	DistanceKM float64                `json:"distance_km"`
}

// Store defines the interface for storage operations. Conditional methods
// (UpdateOrderStatusIf, AssignPartnerIf, CancelOrderIf, SetOrderRatingIf,
// IncrementOTPAttempts, MarkOTPVerified, CloseOTP) express their
// check-then-write atomically so that concurrent callers cannot both pass the
// same guard.
type Store interface {
	// Customer operations
	CreateCustomer(c *models.Customer) (*models.Customer, error)
	GetCustomer(customerID string) (*models.Customer, error)
	GetCustomerByPhone(phone string) (*models.Customer, error)
	UpdateCustomer(c *models.Customer) error

	// Partner operations
	CreatePartner(p *models.Partner) (*models.Partner, error)
	GetPartner(partnerID string) (*models.Partner, error)
	GetPartnerByPhone(phone string) (*models.Partner, error)
	UpdatePartner(p *models.Partner) error
	AddPartnerRating(partnerID string, rating float64) error

	// Order operations
	CreateOrder(o *models.Order) (*models.Order, error)
	GetOrder(orderID string) (*models.Order, error)
	GetOrdersByCustomer(customerID string) ([]*models.Order, error)
	GetOrdersByPartner(partnerID string) ([]*models.Order, error)
	GetOrdersByStatus(status models.OrderStatus) ([]*models.Order, error)
	UpdateOrder(o *models.Order) error
	// UpdateOrderStatusIf moves the order to the target status only if its
	// current status is one of from; reports whether the update happened.
	UpdateOrderStatusIf(orderID string, from []models.OrderStatus, to models.OrderStatus) (bool, error)
	// AssignPartnerIf sets the partner and advances to the target status only
	// if no partner is set and the order is still PENDING.
	AssignPartnerIf(orderID, partnerID string, to models.OrderStatus) (bool, error)
	// CancelOrderIf cancels the order together with its cancellation fields in
	// one conditional write, only while the current status is non-terminal. A
	// completed payment flags refund-pending in the same write.
	CancelOrderIf(orderID, reason, cancelledBy string) (bool, error)
	// SetOrderRatingIf attaches the given side's rating only when the order is
	// DELIVERED and that side has not rated yet. Side is "customer" or
	// "partner".
	SetOrderRatingIf(orderID, side string, rating float64, comment string) (bool, error)
	AppendOrderEvent(e *models.OrderEvent) error
	GetOrderEvents(orderID string) ([]*models.OrderEvent, error)

	// OTP operations
	CreateOTP(otp *models.OTP) (*models.OTP, error)
	// GetPendingOTP returns the most recent pending OTP for (user, purpose),
	// additionally scoped to an order when orderRef is non-empty.
	GetPendingOTP(userID string, purpose models.OTPPurpose, orderRef string) (*models.OTP, error)
	InvalidatePendingOTPs(userID string, purpose models.OTPPurpose) error
	// IncrementOTPAttempts atomically bumps the attempt counter and returns
	// the post-increment value.
	IncrementOTPAttempts(id uint) (int, error)
	// MarkOTPVerified flips a pending OTP to verified; reports false when the
	// OTP was not pending (already consumed).
	MarkOTPVerified(id uint, at time.Time) (bool, error)
	// CloseOTP moves a pending OTP to a terminal status (expired or failed);
	// reports false when the OTP was no longer pending.
	CloseOTP(id uint, status models.OTPStatus) (bool, error)
	DeleteExpiredOTPs(before time.Time) (int64, error)

	// Location operations
	CreateLocationSample(s *models.LocationSample) (*models.LocationSample, error)
	GetLatestLocation(userID string) (*models.LocationSample, error)
	// LatestPartnerLocationsWithin returns the latest sample per partner
	// within radiusKM of center, restricted to online samples of active,
	// verified partners, sorted nearest first.
	LatestPartnerLocationsWithin(center geo.Coord, radiusKM float64) ([]*NearbyPartner, error)
	DeleteLocationSamplesBefore(cutoff time.Time) (int64, error)

	// Document operations
	CreateDocument(d *models.Document) (*models.Document, error)
	GetDocument(documentID string) (*models.Document, error)
	GetDocumentsByPartner(partnerID string) ([]*models.Document, error)
	UpdateDocument(d *models.Document) error
}
