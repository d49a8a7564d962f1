package storage

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/zipdrophq/zipdrop-backend/internal/geo"
	"github.com/zipdrophq/zipdrop-backend/internal/models"
)

// MemoryStore holds all data in memory, for tests and local development.
// Conditional updates run under the entity mutex, which gives them the same
// all-or-nothing semantics the database store gets from guarded UPDATEs.
type MemoryStore struct {
	customers map[string]*models.Customer
	partners  map[string]*models.Partner
	orders    map[string]*models.Order
	events    map[string][]*models.OrderEvent
	otps      map[uint]*models.OTP
	locations map[string][]*models.LocationSample
	documents map[string]*models.Document

	customerMu sync.RWMutex
	partnerMu  sync.RWMutex
	orderMu    sync.RWMutex
	otpMu      sync.RWMutex
	locationMu sync.RWMutex
	documentMu sync.RWMutex

	otpCounter      uint
	locationCounter uint
}

// NewMemoryStore creates a new in-memory storage.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		customers: make(map[string]*models.Customer),
		partners:  make(map[string]*models.Partner),
		orders:    make(map[string]*models.Order),
		events:    make(map[string][]*models.OrderEvent),
		otps:      make(map[uint]*models.OTP),
		locations: make(map[string][]*models.LocationSample),
		documents: make(map[string]*models.Document),
	}
}

// Customer operations

func (m *MemoryStore) CreateCustomer(c *models.Customer) (*models.Customer, error) {
	m.customerMu.Lock()
	defer m.customerMu.Unlock()

	// BeforeCreate hooks do not run outside gorm, so defaults live here too.
	if c.CustomerID == "" {
		c.CustomerID = models.GenerateID("CUS")
	}
	c.Phone = models.NormalizePhone(c.Phone)
	c.IsActive = true
	c.CreatedAt = time.Now()
	c.UpdatedAt = time.Now()

	cp := *c
	m.customers[c.CustomerID] = &cp
	return c, nil
}

func (m *MemoryStore) GetCustomer(customerID string) (*models.Customer, error) {
	m.customerMu.RLock()
	defer m.customerMu.RUnlock()

	c, exists := m.customers[customerID]
	if !exists {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MemoryStore) GetCustomerByPhone(phone string) (*models.Customer, error) {
	m.customerMu.RLock()
	defer m.customerMu.RUnlock()

	phone = models.NormalizePhone(phone)
	for _, c := range m.customers {
		if c.Phone == phone {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) UpdateCustomer(c *models.Customer) error {
	m.customerMu.Lock()
	defer m.customerMu.Unlock()

	if _, exists := m.customers[c.CustomerID]; !exists {
		return ErrNotFound
	}
	c.UpdatedAt = time.Now()
	cp := *c
	m.customers[c.CustomerID] = &cp
	return nil
}

// Partner operations

func (m *MemoryStore) CreatePartner(p *models.Partner) (*models.Partner, error) {
	m.partnerMu.Lock()
	defer m.partnerMu.Unlock()

	if p.PartnerID == "" {
		p.PartnerID = models.GenerateID("PTR")
	}
	p.Phone = models.NormalizePhone(p.Phone)
	if p.Rating == 0 {
		p.Rating = 5.0
	}
	p.IsActive = true
	p.CreatedAt = time.Now()
	p.UpdatedAt = time.Now()

	cp := *p
	m.partners[p.PartnerID] = &cp
	return p, nil
}

func (m *MemoryStore) GetPartner(partnerID string) (*models.Partner, error) {
	m.partnerMu.RLock()
	defer m.partnerMu.RUnlock()

	p, exists := m.partners[partnerID]
	if !exists {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryStore) GetPartnerByPhone(phone string) (*models.Partner, error) {
	m.partnerMu.RLock()
	defer m.partnerMu.RUnlock()

	phone = models.NormalizePhone(phone)
	for _, p := range m.partners {
		if p.Phone == phone {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) UpdatePartner(p *models.Partner) error {
	m.partnerMu.Lock()
	defer m.partnerMu.Unlock()

	if _, exists := m.partners[p.PartnerID]; !exists {
		return ErrNotFound
	}
	p.UpdatedAt = time.Now()
	cp := *p
	m.partners[p.PartnerID] = &cp
	return nil
}

func (m *MemoryStore) AddPartnerRating(partnerID string, rating float64) error {
	m.partnerMu.Lock()
	defer m.partnerMu.Unlock()

	p, exists := m.partners[partnerID]
	if !exists {
		return ErrNotFound
	}
	p.ApplyRating(rating)
	p.UpdatedAt = time.Now()
	return nil
}

// Order operations

func (m *MemoryStore) CreateOrder(o *models.Order) (*models.Order, error) {
	m.orderMu.Lock()
	defer m.orderMu.Unlock()

	if o.OrderID == "" {
		o.OrderID = models.GenerateID("ORD")
	}
	if o.OrderNumber == "" {
		o.OrderNumber = "ZD-" + time.Now().Format("20060102-150405.000")
	}
	if o.Status == "" {
		o.Status = models.OrderStatusPending
	}
	if o.PaymentStatus == "" {
		o.PaymentStatus = models.PaymentStatusPending
	}
	o.CreatedAt = time.Now()
	o.UpdatedAt = time.Now()

	cp := copyOrder(o)
	m.orders[o.OrderID] = cp
	return o, nil
}

func (m *MemoryStore) GetOrder(orderID string) (*models.Order, error) {
	m.orderMu.RLock()
	defer m.orderMu.RUnlock()

	o, exists := m.orders[orderID]
	if !exists {
		return nil, ErrNotFound
	}
	return copyOrder(o), nil
}

func (m *MemoryStore) GetOrdersByCustomer(customerID string) ([]*models.Order, error) {
	return m.filterOrders(func(o *models.Order) bool { return o.CustomerID == customerID })
}

func (m *MemoryStore) GetOrdersByPartner(partnerID string) ([]*models.Order, error) {
	return m.filterOrders(func(o *models.Order) bool {
		return o.PartnerID != nil && *o.PartnerID == partnerID
	})
}

func (m *MemoryStore) GetOrdersByStatus(status models.OrderStatus) ([]*models.Order, error) {
	return m.filterOrders(func(o *models.Order) bool { return o.Status == status })
}

func (m *MemoryStore) filterOrders(match func(*models.Order) bool) ([]*models.Order, error) {
	m.orderMu.RLock()
	defer m.orderMu.RUnlock()

	var out []*models.Order
	for _, o := range m.orders {
		if match(o) {
			out = append(out, copyOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) UpdateOrder(o *models.Order) error {
	m.orderMu.Lock()
	defer m.orderMu.Unlock()

	if _, exists := m.orders[o.OrderID]; !exists {
		return ErrNotFound
	}
	o.UpdatedAt = time.Now()
	m.orders[o.OrderID] = copyOrder(o)
	return nil
}

func (m *MemoryStore) UpdateOrderStatusIf(orderID string, from []models.OrderStatus, to models.OrderStatus) (bool, error) {
	m.orderMu.Lock()
	defer m.orderMu.Unlock()

	o, exists := m.orders[orderID]
	if !exists {
		return false, ErrNotFound
	}
	matched := false
	for _, f := range from {
		if o.Status == f {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}

	now := time.Now()
	o.Status = to
	o.UpdatedAt = now
	stampStatus(o, to, now)
	return true, nil
}

func (m *MemoryStore) AssignPartnerIf(orderID, partnerID string, to models.OrderStatus) (bool, error) {
	m.orderMu.Lock()
	defer m.orderMu.Unlock()

	o, exists := m.orders[orderID]
	if !exists {
		return false, ErrNotFound
	}
	if o.PartnerID != nil || o.Status != models.OrderStatusPending {
		return false, nil
	}

	now := time.Now()
	o.PartnerID = &partnerID
	o.Status = to
	o.UpdatedAt = now
	stampStatus(o, to, now)
	return true, nil
}

func (m *MemoryStore) CancelOrderIf(orderID, reason, cancelledBy string) (bool, error) {
	m.orderMu.Lock()
	defer m.orderMu.Unlock()

	o, exists := m.orders[orderID]
	if !exists {
		return false, ErrNotFound
	}
	if o.Status.IsTerminal() {
		return false, nil
	}

	now := time.Now()
	o.Status = models.OrderStatusCancelled
	o.CancelReason = reason
	o.CancelledBy = cancelledBy
	if o.PaymentStatus == models.PaymentStatusCompleted {
		o.RefundPending = true
	}
	o.UpdatedAt = now
	stampStatus(o, models.OrderStatusCancelled, now)
	return true, nil
}

func (m *MemoryStore) SetOrderRatingIf(orderID, side string, rating float64, comment string) (bool, error) {
	m.orderMu.Lock()
	defer m.orderMu.Unlock()

	o, exists := m.orders[orderID]
	if !exists {
		return false, ErrNotFound
	}
	if o.Status != models.OrderStatusDelivered {
		return false, nil
	}

	switch side {
	case "customer":
		if o.CustomerRating != nil {
			return false, nil
		}
		o.CustomerRating = &rating
		o.CustomerComment = comment
	case "partner":
		if o.PartnerRating != nil {
			return false, nil
		}
		o.PartnerRating = &rating
		o.PartnerComment = comment
	default:
		return false, fmt.Errorf("unknown rating side %q", side)
	}
	o.UpdatedAt = time.Now()
	return true, nil
}

func (m *MemoryStore) AppendOrderEvent(e *models.OrderEvent) error {
	m.orderMu.Lock()
	defer m.orderMu.Unlock()

	e.CreatedAt = time.Now()
	cp := *e
	m.events[e.OrderRef] = append(m.events[e.OrderRef], &cp)
	return nil
}

func (m *MemoryStore) GetOrderEvents(orderID string) ([]*models.OrderEvent, error) {
	m.orderMu.RLock()
	defer m.orderMu.RUnlock()

	events := m.events[orderID]
	out := make([]*models.OrderEvent, 0, len(events))
	for _, e := range events {
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

// OTP operations

func (m *MemoryStore) CreateOTP(otp *models.OTP) (*models.OTP, error) {
	m.otpMu.Lock()
	defer m.otpMu.Unlock()

	m.otpCounter++
	otp.ID = m.otpCounter
	if otp.Status == "" {
		otp.Status = models.OTPStatusPending
	}
	if otp.MaxAttempts == 0 {
		otp.MaxAttempts = 3
	}
	otp.CreatedAt = time.Now()
	otp.UpdatedAt = time.Now()

	cp := *otp
	m.otps[otp.ID] = &cp
	return otp, nil
}

func (m *MemoryStore) GetPendingOTP(userID string, purpose models.OTPPurpose, orderRef string) (*models.OTP, error) {
	m.otpMu.RLock()
	defer m.otpMu.RUnlock()

	var latest *models.OTP
	for _, otp := range m.otps {
		if otp.UserID != userID || otp.Purpose != purpose || otp.Status != models.OTPStatusPending {
			continue
		}
		if orderRef != "" && otp.OrderRef != orderRef {
			continue
		}
		if latest == nil || otp.ID > latest.ID {
			latest = otp
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *MemoryStore) InvalidatePendingOTPs(userID string, purpose models.OTPPurpose) error {
	m.otpMu.Lock()
	defer m.otpMu.Unlock()

	for _, otp := range m.otps {
		if otp.UserID == userID && otp.Purpose == purpose && otp.Status == models.OTPStatusPending {
			otp.Status = models.OTPStatusExpired
			otp.UpdatedAt = time.Now()
		}
	}
	return nil
}

func (m *MemoryStore) IncrementOTPAttempts(id uint) (int, error) {
	m.otpMu.Lock()
	defer m.otpMu.Unlock()

	otp, exists := m.otps[id]
	if !exists {
		return 0, ErrNotFound
	}
	otp.Attempts++
	otp.UpdatedAt = time.Now()
	return otp.Attempts, nil
}

func (m *MemoryStore) MarkOTPVerified(id uint, at time.Time) (bool, error) {
	m.otpMu.Lock()
	defer m.otpMu.Unlock()

	otp, exists := m.otps[id]
	if !exists {
		return false, ErrNotFound
	}
	if otp.Status != models.OTPStatusPending {
		return false, nil
	}
	otp.Status = models.OTPStatusVerified
	otp.VerifiedAt = &at
	otp.UpdatedAt = at
	return true, nil
}

func (m *MemoryStore) CloseOTP(id uint, status models.OTPStatus) (bool, error) {
	m.otpMu.Lock()
	defer m.otpMu.Unlock()

	otp, exists := m.otps[id]
	if !exists {
		return false, ErrNotFound
	}
	if otp.Status != models.OTPStatusPending {
		return false, nil
	}
	otp.Status = status
	otp.UpdatedAt = time.Now()
	return true, nil
}

func (m *MemoryStore) DeleteExpiredOTPs(before time.Time) (int64, error) {
	m.otpMu.Lock()
	defer m.otpMu.Unlock()

	var deleted int64
	for id, otp := range m.otps {
		if otp.ExpiresAt.Before(before) {
			delete(m.otps, id)
			deleted++
		}
	}
	return deleted, nil
}

// Location operations

func (m *MemoryStore) CreateLocationSample(s *models.LocationSample) (*models.LocationSample, error) {
	m.locationMu.Lock()
	defer m.locationMu.Unlock()

	m.locationCounter++
	s.ID = m.locationCounter
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt

	cp := *s
	m.locations[s.UserID] = append(m.locations[s.UserID], &cp)
	return s, nil
}

func (m *MemoryStore) GetLatestLocation(userID string) (*models.LocationSample, error) {
	m.locationMu.RLock()
	defer m.locationMu.RUnlock()

	samples := m.locations[userID]
	if len(samples) == 0 {
		return nil, ErrNotFound
	}
	cp := *samples[len(samples)-1]
	return &cp, nil
}

func (m *MemoryStore) LatestPartnerLocationsWithin(center geo.Coord, radiusKM float64) ([]*NearbyPartner, error) {
	m.locationMu.RLock()
	latest := make(map[string]*models.LocationSample, len(m.locations))
	for userID, samples := range m.locations {
		if len(samples) > 0 {
			latest[userID] = samples[len(samples)-1]
		}
	}
	m.locationMu.RUnlock()

	var out []*NearbyPartner
	for userID, sample := range latest {
		if !sample.Online {
			continue
		}
		partner, err := m.GetPartner(userID)
		if err != nil || !partner.IsActive || !partner.Verified {
			continue
		}
		distance := geo.Haversine(center, sample.Coord())
		if distance > radiusKM {
			continue
		}
		cp := *sample
		out = append(out, &NearbyPartner{Partner: partner, Location: &cp, DistanceKM: distance})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DistanceKM < out[j].DistanceKM })
	return out, nil
}

func (m *MemoryStore) DeleteLocationSamplesBefore(cutoff time.Time) (int64, error) {
	m.locationMu.Lock()
	defer m.locationMu.Unlock()

	var deleted int64
	for userID, samples := range m.locations {
		kept := samples[:0]
		for _, s := range samples {
			if s.CreatedAt.Before(cutoff) {
				deleted++
			} else {
				kept = append(kept, s)
			}
		}
		m.locations[userID] = kept
	}
	return deleted, nil
}

// Document operations

func (m *MemoryStore) CreateDocument(d *models.Document) (*models.Document, error) {
	m.documentMu.Lock()
	defer m.documentMu.Unlock()

	if d.DocumentID == "" {
		d.DocumentID = models.GenerateID("DOC")
	}
	if d.Status == "" {
		d.Status = models.DocumentStatusPending
	}
	d.CreatedAt = time.Now()
	d.UpdatedAt = time.Now()

	cp := *d
	m.documents[d.DocumentID] = &cp
	return d, nil
}

func (m *MemoryStore) GetDocument(documentID string) (*models.Document, error) {
	m.documentMu.RLock()
	defer m.documentMu.RUnlock()

	d, exists := m.documents[documentID]
	if !exists {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *MemoryStore) GetDocumentsByPartner(partnerID string) ([]*models.Document, error) {
	m.documentMu.RLock()
	defer m.documentMu.RUnlock()

	var out []*models.Document
	for _, d := range m.documents {
		if d.PartnerID == partnerID {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryStore) UpdateDocument(d *models.Document) error {
	m.documentMu.Lock()
	defer m.documentMu.Unlock()

	if _, exists := m.documents[d.DocumentID]; !exists {
		return ErrNotFound
	}
	d.UpdatedAt = time.Now()
	cp := *d
	m.documents[d.DocumentID] = &cp
	return nil
}

// copyOrder returns a copy with its own items slice so callers cannot mutate
// stored state around the conditional-update methods.
func copyOrder(o *models.Order) *models.Order {
	cp := *o
	cp.Items = append([]models.OrderItem(nil), o.Items...)
	return &cp
}

// stampStatus records the milestone timestamp for statuses that carry one.
func stampStatus(o *models.Order, status models.OrderStatus, now time.Time) {
	switch status {
	case models.OrderStatusConfirmed:
		o.ConfirmedAt = &now
	case models.OrderStatusPickedUp:
		o.PickedUpAt = &now
	case models.OrderStatusDelivered:
		o.DeliveredAt = &now
	case models.OrderStatusCancelled:
		o.CancelledAt = &now
	}
}
