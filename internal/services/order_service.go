package services

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/zipdrophq/zipdrop-backend/internal/geo"
	"github.com/zipdrophq/zipdrop-backend/internal/metrics"
	"github.com/zipdrophq/zipdrop-backend/internal/models"
	"github.com/zipdrophq/zipdrop-backend/internal/pricing"
	"github.com/zipdrophq/zipdrop-backend/internal/storage"
)

// slaHours is the estimated completion window per service type.
var slaHours = map[pricing.ServiceType]int{
	pricing.ServiceSameDay:   8,
	pricing.ServiceExpress:   24,
	pricing.ServiceStandard:  48,
	pricing.ServiceScheduled: 72,
}

// OrderService owns the order lifecycle: creation, partner assignment,
// guarded status transitions, OTP-gated pickup/delivery confirmation,
// cancellation and rating. All guards run before any write; transitions go
// through the store's conditional updates so concurrent calls cannot both
// pass the same guard.
type OrderService struct {
	store    storage.Store
	otp      *OTPService
	rates    pricing.Rates
	events   EventPublisher
	notifier Notifier
	log      *zap.Logger
}

// NewOrderService creates an order service.
func NewOrderService(store storage.Store, otp *OTPService, rates pricing.Rates, events EventPublisher, notifier Notifier, log *zap.Logger) *OrderService {
	return &OrderService{store: store, otp: otp, rates: rates, events: events, notifier: notifier, log: log}
}

// CreateOrderInput carries everything needed to open an order. Closed struct
// by design: no free-form update payloads reach the model.
type CreateOrderInput struct {
	CustomerID    string
	Items         []models.OrderItem
	PickupAddress string
	PickupLat     float64
	PickupLng     float64
	DropAddress   string
	DropLat       float64
	DropLng       float64
	ServiceType   pricing.ServiceType
	PaymentMethod string
	Discount      float64
}

// CreateOrder validates the customer, computes pricing and distance, persists
// the order in PENDING and issues the pickup and delivery confirmation codes
// scoped to the new order.
func (s *OrderService) CreateOrder(in CreateOrderInput) (*models.Order, error) {
	customer, err := s.store.GetCustomer(in.CustomerID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	if !customer.IsActive {
		return nil, ErrCustomerInactive
	}

	items := make([]pricing.Item, 0, len(in.Items))
	for _, it := range in.Items {
		items = append(items, pricing.Item{Name: it.Name, WeightKG: it.WeightKG, Quantity: it.Quantity})
	}
	origin := geo.Coord{Lat: in.PickupLat, Lng: in.PickupLng}
	dest := geo.Coord{Lat: in.DropLat, Lng: in.DropLng}

	breakdown, err := pricing.Compute(items, origin, dest, in.ServiceType, in.Discount, s.rates)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	eta := time.Now().Add(time.Duration(slaHours[in.ServiceType]) * time.Hour)
	order := &models.Order{
		CustomerID:          customer.CustomerID,
		PickupAddress:       in.PickupAddress,
		PickupLat:           in.PickupLat,
		PickupLng:           in.PickupLng,
		DropAddress:         in.DropAddress,
		DropLat:             in.DropLat,
		DropLng:             in.DropLng,
		ServiceType:         string(in.ServiceType),
		PaymentMethod:       in.PaymentMethod,
		Status:              models.OrderStatusPending,
		PaymentStatus:       models.PaymentStatusPending,
		Items:               in.Items,
		EstimatedDeliveryAt: &eta,
	}
	order.ApplyPricing(breakdown)

	order, err = s.store.CreateOrder(order)
	if err != nil {
		return nil, err
	}
	s.appendEvent(order.OrderID, "", models.OrderStatusPending, "order created", customer.CustomerID)

	// Confirmation codes are transmitted over the side channel only. A failed
	// issue does not roll back the order; a fresh code can be reissued.
	for _, purpose := range []models.OTPPurpose{models.OTPPurposePickupConfirmation, models.OTPPurposeDeliveryConfirmation} {
		if _, err := s.otp.Issue(customer.CustomerID, customer.Phone, purpose, order.OrderID); err != nil {
			s.log.Warn("failed to issue confirmation otp",
				zap.String("order_id", order.OrderID), zap.String("purpose", string(purpose)), zap.Error(err))
		}
	}

	customer.TotalOrders++
	if err := s.store.UpdateCustomer(customer); err != nil {
		s.log.Warn("failed to bump customer order count", zap.Error(err))
	}

	metrics.OrdersCreated.Inc()
	s.publish(EventOrderCreated, order)
	return order, nil
}

// AssignPartner atomically sets the partner on a PENDING order and advances
// it to CONFIRMED. Assignment and pickup-start are distinct steps: PICKED_UP
// is only reachable through pickup-OTP verification.
func (s *OrderService) AssignPartner(orderID, partnerID string) (*models.Order, error) {
	order, err := s.getOrder(orderID)
	if err != nil {
		return nil, err
	}
	if order.PartnerID != nil {
		return nil, ErrAlreadyAssigned
	}
	if order.Status != models.OrderStatusPending {
		return nil, ErrInvalidState
	}

	partner, err := s.store.GetPartner(partnerID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrPartnerIneligible
		}
		return nil, err
	}
	if !partner.Eligible() {
		return nil, ErrPartnerIneligible
	}

	ok, err := s.store.AssignPartnerIf(orderID, partnerID, models.OrderStatusConfirmed)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost the race: someone else assigned or the order moved on.
		current, err := s.getOrder(orderID)
		if err != nil {
			return nil, err
		}
		if current.PartnerID != nil {
			return nil, ErrAlreadyAssigned
		}
		return nil, ErrInvalidState
	}

	s.appendEvent(orderID, models.OrderStatusPending, models.OrderStatusConfirmed,
		fmt.Sprintf("partner %s assigned", partnerID), partnerID)
	metrics.OrderTransitions.WithLabelValues(string(models.OrderStatusConfirmed)).Inc()

	order, err = s.getOrder(orderID)
	if err != nil {
		return nil, err
	}
	s.publish(EventOrderStatusChanged, order)
	s.notifyCustomer(order)
	return order, nil
}

// Transition moves the order to newStatus if the transition table permits it.
func (s *OrderService) Transition(orderID string, newStatus models.OrderStatus, notes, actor string) (*models.Order, error) {
	if !models.IsValidOrderStatus(string(newStatus)) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, newStatus)
	}
	order, err := s.getOrder(orderID)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanTransitionTo(newStatus) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, newStatus)
	}

	ok, err := s.store.UpdateOrderStatusIf(orderID, []models.OrderStatus{order.Status}, newStatus)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: order state changed concurrently", ErrInvalidTransition)
	}

	s.appendEvent(orderID, order.Status, newStatus, notes, actor)
	metrics.OrderTransitions.WithLabelValues(string(newStatus)).Inc()

	order, err = s.getOrder(orderID)
	if err != nil {
		return nil, err
	}
	s.publish(EventOrderStatusChanged, order)
	s.notifyCustomer(order)
	return order, nil
}

// VerifyPickupOTP confirms physical pickup. Only the assigned partner may
// call it, the order must be CONFIRMED, and the customer's pickup code must
// verify; then the order advances to PICKED_UP.
func (s *OrderService) VerifyPickupOTP(orderID, code, partnerID string) (*models.Order, error) {
	return s.verifyHandoff(orderID, code, partnerID,
		models.OrderStatusConfirmed, models.OrderStatusPickedUp, models.OTPPurposePickupConfirmation)
}

// VerifyDeliveryOTP confirms delivery: gated on OUT_FOR_DELIVERY, advances to
// DELIVERED.
func (s *OrderService) VerifyDeliveryOTP(orderID, code, partnerID string) (*models.Order, error) {
	order, err := s.verifyHandoff(orderID, code, partnerID,
		models.OrderStatusOutForDelivery, models.OrderStatusDelivered, models.OTPPurposeDeliveryConfirmation)
	if err != nil {
		return nil, err
	}

	partner, perr := s.store.GetPartner(partnerID)
	if perr == nil {
		partner.TotalTrips++
		if uerr := s.store.UpdatePartner(partner); uerr != nil {
			s.log.Warn("failed to bump partner trip count", zap.Error(uerr))
		}
	}
	return order, nil
}

func (s *OrderService) verifyHandoff(orderID, code, partnerID string, gate, target models.OrderStatus, purpose models.OTPPurpose) (*models.Order, error) {
	order, err := s.getOrder(orderID)
	if err != nil {
		return nil, err
	}
	if order.PartnerID == nil || *order.PartnerID != partnerID {
		return nil, ErrUnauthorized
	}
	if order.Status != gate {
		return nil, ErrInvalidState
	}

	if err := s.otp.Verify(order.CustomerID, purpose, orderID, code); err != nil {
		return nil, err
	}

	ok, err := s.store.UpdateOrderStatusIf(orderID, []models.OrderStatus{gate}, target)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: order state changed concurrently", ErrInvalidTransition)
	}

	s.appendEvent(orderID, gate, target, "confirmed via OTP", partnerID)
	metrics.OrderTransitions.WithLabelValues(string(target)).Inc()

	order, err = s.getOrder(orderID)
	if err != nil {
		return nil, err
	}
	s.publish(EventOrderStatusChanged, order)
	s.notifyCustomer(order)
	return order, nil
}

// CancelOrder cancels from any non-terminal state. Cancellation is the
// cross-cutting escape hatch, not a row in the transition table. A completed
// payment flags the order refund-pending; the gateway refund itself is an
// external collaborator.
func (s *OrderService) CancelOrder(orderID, reason, cancelledBy string) (*models.Order, error) {
	order, err := s.getOrder(orderID)
	if err != nil {
		return nil, err
	}
	if order.Status.IsTerminal() {
		return nil, ErrInvalidState
	}
	previous := order.Status

	// Status, cancellation fields and the refund flag commit in one
	// conditional write; there is no window where the order is cancelled
	// without them.
	ok, err := s.store.CancelOrderIf(orderID, reason, cancelledBy)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidState
	}

	order, err = s.getOrder(orderID)
	if err != nil {
		return nil, err
	}

	s.appendEvent(orderID, previous, models.OrderStatusCancelled, reason, cancelledBy)
	metrics.OrderTransitions.WithLabelValues(string(models.OrderStatusCancelled)).Inc()
	s.publish(EventOrderCancelled, order)
	s.notifyCustomer(order)
	return order, nil
}

// RateOrder attaches a post-completion rating. Each side rates once; a
// customer rating folds into the partner's running average.
func (s *OrderService) RateOrder(orderID string, rating float64, comment, ratingType string) (*models.Order, error) {
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", ErrValidation)
	}
	if ratingType != "customer" && ratingType != "partner" {
		return nil, fmt.Errorf("%w: rating type must be customer or partner", ErrValidation)
	}

	order, err := s.getOrder(orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusDelivered {
		return nil, ErrNotDeliverable
	}

	// Conditional write: the rating lands only if this side has not rated yet,
	// so concurrent calls cannot both attach one.
	ok, err := s.store.SetOrderRatingIf(orderID, ratingType, rating, comment)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: order already rated by %s", ErrValidation, ratingType)
	}

	if ratingType == "customer" && order.PartnerID != nil {
		if err := s.store.AddPartnerRating(*order.PartnerID, rating); err != nil {
			s.log.Warn("failed to update partner rating", zap.String("partner_id", *order.PartnerID), zap.Error(err))
		}
	}
	return s.getOrder(orderID)
}

// GetOrder returns an order by its business ID.
func (s *OrderService) GetOrder(orderID string) (*models.Order, error) {
	return s.getOrder(orderID)
}

// GetTimeline returns the order's audit trail.
func (s *OrderService) GetTimeline(orderID string) ([]*models.OrderEvent, error) {
	if _, err := s.getOrder(orderID); err != nil {
		return nil, err
	}
	return s.store.GetOrderEvents(orderID)
}

// ListOrders filters by whichever of the arguments is non-empty.
func (s *OrderService) ListOrders(customerID, partnerID, status string) ([]*models.Order, error) {
	switch {
	case customerID != "":
		return s.store.GetOrdersByCustomer(customerID)
	case partnerID != "":
		return s.store.GetOrdersByPartner(partnerID)
	case status != "":
		if !models.IsValidOrderStatus(status) {
			return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
		}
		return s.store.GetOrdersByStatus(models.OrderStatus(status))
	default:
		return nil, fmt.Errorf("%w: one of customer_id, partner_id or status is required", ErrValidation)
	}
}

func (s *OrderService) getOrder(orderID string) (*models.Order, error) {
	order, err := s.store.GetOrder(orderID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

func (s *OrderService) appendEvent(orderID string, from, to models.OrderStatus, notes, actor string) {
	e := &models.OrderEvent{OrderRef: orderID, FromStatus: from, ToStatus: to, Notes: notes, Actor: actor}
	if err := s.store.AppendOrderEvent(e); err != nil {
		s.log.Warn("failed to append order event", zap.String("order_id", orderID), zap.Error(err))
	}
}

func (s *OrderService) publish(key string, order *models.Order) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishOrderEvent(key, order); err != nil {
		s.log.Warn("order event not published", zap.String("order_id", order.OrderID), zap.Error(err))
	}
}

func (s *OrderService) notifyCustomer(order *models.Order) {
	if s.notifier == nil {
		return
	}
	customer, err := s.store.GetCustomer(order.CustomerID)
	if err != nil {
		return
	}
	if err := s.notifier.SendOrderUpdate(customer.Phone, order.OrderNumber, order.Status); err != nil {
		s.log.Debug("order update not sent", zap.String("order_id", order.OrderID), zap.Error(err))
	}
}
