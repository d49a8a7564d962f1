package storage

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/zipdrophq/zipdrop-backend/internal/geo"
	"github.com/zipdrophq/zipdrop-backend/internal/models"
)

// DatabaseStore implements Store on top of gorm. Conditional updates are
// expressed as guarded UPDATEs so the check and the write happen in one
// statement; callers inspect RowsAffected through the boolean result.
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore creates a gorm-backed store.
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// Customer operations

func (s *DatabaseStore) CreateCustomer(c *models.Customer) (*models.Customer, error) {
	if err := s.db.Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

func (s *DatabaseStore) GetCustomer(customerID string) (*models.Customer, error) {
	var c models.Customer
	if err := s.db.Where("customer_id = ?", customerID).First(&c).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (s *DatabaseStore) GetCustomerByPhone(phone string) (*models.Customer, error) {
	var c models.Customer
	if err := s.db.Where("phone = ?", models.NormalizePhone(phone)).First(&c).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (s *DatabaseStore) UpdateCustomer(c *models.Customer) error {
	return s.db.Save(c).Error
}

// Partner operations

func (s *DatabaseStore) CreatePartner(p *models.Partner) (*models.Partner, error) {
	if err := s.db.Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

func (s *DatabaseStore) GetPartner(partnerID string) (*models.Partner, error) {
	var p models.Partner
	if err := s.db.Where("partner_id = ?", partnerID).First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *DatabaseStore) GetPartnerByPhone(phone string) (*models.Partner, error) {
	var p models.Partner
	if err := s.db.Where("phone = ?", models.NormalizePhone(phone)).First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *DatabaseStore) UpdatePartner(p *models.Partner) error {
	return s.db.Save(p).Error
}

func (s *DatabaseStore) AddPartnerRating(partnerID string, rating float64) error {
	// Running average folded in a single statement so concurrent ratings
	// cannot lose updates.
	res := s.db.Model(&models.Partner{}).
		Where("partner_id = ?", partnerID).
		UpdateColumns(map[string]any{
			"rating":       gorm.Expr("(rating * rating_count + ?) / (rating_count + 1)", rating),
			"rating_count": gorm.Expr("rating_count + 1"),
			"updated_at":   time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Order operations

func (s *DatabaseStore) CreateOrder(o *models.Order) (*models.Order, error) {
	if err := s.db.Create(o).Error; err != nil {
		return nil, err
	}
	return o, nil
}

func (s *DatabaseStore) GetOrder(orderID string) (*models.Order, error) {
	var o models.Order
	if err := s.db.Preload("Items").Where("order_id = ?", orderID).First(&o).Error; err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

func (s *DatabaseStore) GetOrdersByCustomer(customerID string) ([]*models.Order, error) {
	var orders []*models.Order
	err := s.db.Preload("Items").Where("customer_id = ?", customerID).
		Order("created_at DESC").Find(&orders).Error
	return orders, err
}

func (s *DatabaseStore) GetOrdersByPartner(partnerID string) ([]*models.Order, error) {
	var orders []*models.Order
	err := s.db.Preload("Items").Where("partner_id = ?", partnerID).
		Order("created_at DESC").Find(&orders).Error
	return orders, err
}

func (s *DatabaseStore) GetOrdersByStatus(status models.OrderStatus) ([]*models.Order, error) {
	var orders []*models.Order
	err := s.db.Preload("Items").Where("status = ?", status).
		Order("created_at DESC").Find(&orders).Error
	return orders, err
}

func (s *DatabaseStore) UpdateOrder(o *models.Order) error {
	return s.db.Save(o).Error
}

func (s *DatabaseStore) UpdateOrderStatusIf(orderID string, from []models.OrderStatus, to models.OrderStatus) (bool, error) {
	updates := map[string]any{"status": to, "updated_at": time.Now()}
	addStatusStamp(updates, to)

	res := s.db.Model(&models.Order{}).
		Where("order_id = ? AND status IN ?", orderID, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		// Distinguish a lost guard from a missing order.
		var count int64
		if err := s.db.Model(&models.Order{}).Where("order_id = ?", orderID).Count(&count).Error; err != nil {
			return false, err
		}
		if count == 0 {
			return false, ErrNotFound
		}
		return false, nil
	}
	return true, nil
}

func (s *DatabaseStore) AssignPartnerIf(orderID, partnerID string, to models.OrderStatus) (bool, error) {
	updates := map[string]any{
		"partner_id": partnerID,
		"status":     to,
		"updated_at": time.Now(),
	}
	addStatusStamp(updates, to)

	res := s.db.Model(&models.Order{}).
		Where("order_id = ? AND partner_id IS NULL AND status = ?", orderID, models.OrderStatusPending).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := s.db.Model(&models.Order{}).Where("order_id = ?", orderID).Count(&count).Error; err != nil {
			return false, err
		}
		if count == 0 {
			return false, ErrNotFound
		}
		return false, nil
	}
	return true, nil
}

func (s *DatabaseStore) CancelOrderIf(orderID, reason, cancelledBy string) (bool, error) {
	now := time.Now()
	res := s.db.Model(&models.Order{}).
		Where("order_id = ? AND status IN ?", orderID, models.NonTerminalStatuses()).
		Updates(map[string]any{
			"status":        models.OrderStatusCancelled,
			"cancel_reason": reason,
			"cancelled_by":  cancelledBy,
			"cancelled_at":  now,
			"updated_at":    now,
			"refund_pending": gorm.Expr(
				"CASE WHEN payment_status = ? THEN ? ELSE refund_pending END",
				models.PaymentStatusCompleted, true),
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := s.db.Model(&models.Order{}).Where("order_id = ?", orderID).Count(&count).Error; err != nil {
			return false, err
		}
		if count == 0 {
			return false, ErrNotFound
		}
		return false, nil
	}
	return true, nil
}

func (s *DatabaseStore) SetOrderRatingIf(orderID, side string, rating float64, comment string) (bool, error) {
	var updates map[string]any
	switch side {
	case "customer":
		updates = map[string]any{"customer_rating": rating, "customer_comment": comment}
	case "partner":
		updates = map[string]any{"partner_rating": rating, "partner_comment": comment}
	default:
		return false, fmt.Errorf("unknown rating side %q", side)
	}
	updates["updated_at"] = time.Now()

	q := s.db.Model(&models.Order{}).
		Where("order_id = ? AND status = ?", orderID, models.OrderStatusDelivered)
	if side == "customer" {
		q = q.Where("customer_rating IS NULL")
	} else {
		q = q.Where("partner_rating IS NULL")
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := s.db.Model(&models.Order{}).Where("order_id = ?", orderID).Count(&count).Error; err != nil {
			return false, err
		}
		if count == 0 {
			return false, ErrNotFound
		}
		return false, nil
	}
	return true, nil
}

func (s *DatabaseStore) AppendOrderEvent(e *models.OrderEvent) error {
	return s.db.Create(e).Error
}

func (s *DatabaseStore) GetOrderEvents(orderID string) ([]*models.OrderEvent, error) {
	var events []*models.OrderEvent
	err := s.db.Where("order_ref = ?", orderID).Order("id ASC").Find(&events).Error
	return events, err
}

// OTP operations

func (s *DatabaseStore) CreateOTP(otp *models.OTP) (*models.OTP, error) {
	if otp.Status == "" {
		otp.Status = models.OTPStatusPending
	}
	if otp.MaxAttempts == 0 {
		otp.MaxAttempts = 3
	}
	if err := s.db.Create(otp).Error; err != nil {
		return nil, err
	}
	return otp, nil
}

func (s *DatabaseStore) GetPendingOTP(userID string, purpose models.OTPPurpose, orderRef string) (*models.OTP, error) {
	q := s.db.Where("user_id = ? AND purpose = ? AND status = ?", userID, purpose, models.OTPStatusPending)
	if orderRef != "" {
		q = q.Where("order_ref = ?", orderRef)
	}
	var otp models.OTP
	if err := q.Order("id DESC").First(&otp).Error; err != nil {
		return nil, translate(err)
	}
	return &otp, nil
}

func (s *DatabaseStore) InvalidatePendingOTPs(userID string, purpose models.OTPPurpose) error {
	return s.db.Model(&models.OTP{}).
		Where("user_id = ? AND purpose = ? AND status = ?", userID, purpose, models.OTPStatusPending).
		Updates(map[string]any{"status": models.OTPStatusExpired, "updated_at": time.Now()}).Error
}

func (s *DatabaseStore) IncrementOTPAttempts(id uint) (int, error) {
	res := s.db.Model(&models.OTP{}).Where("id = ?", id).
		UpdateColumn("attempts", gorm.Expr("attempts + 1"))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, ErrNotFound
	}
	var otp models.OTP
	if err := s.db.Select("attempts").Where("id = ?", id).First(&otp).Error; err != nil {
		return 0, translate(err)
	}
	return otp.Attempts, nil
}

func (s *DatabaseStore) MarkOTPVerified(id uint, at time.Time) (bool, error) {
	res := s.db.Model(&models.OTP{}).
		Where("id = ? AND status = ?", id, models.OTPStatusPending).
		Updates(map[string]any{
			"status":      models.OTPStatusVerified,
			"verified_at": at,
			"updated_at":  at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *DatabaseStore) CloseOTP(id uint, status models.OTPStatus) (bool, error) {
	res := s.db.Model(&models.OTP{}).
		Where("id = ? AND status = ?", id, models.OTPStatusPending).
		Updates(map[string]any{"status": status, "updated_at": time.Now()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *DatabaseStore) DeleteExpiredOTPs(before time.Time) (int64, error) {
	res := s.db.Unscoped().Where("expires_at < ?", before).Delete(&models.OTP{})
	return res.RowsAffected, res.Error
}

// Location operations

func (s *DatabaseStore) CreateLocationSample(sample *models.LocationSample) (*models.LocationSample, error) {
	if err := s.db.Create(sample).Error; err != nil {
		return nil, err
	}
	return sample, nil
}

func (s *DatabaseStore) GetLatestLocation(userID string) (*models.LocationSample, error) {
	var sample models.LocationSample
	if err := s.db.Where("user_id = ?", userID).Order("id DESC").First(&sample).Error; err != nil {
		return nil, translate(err)
	}
	return &sample, nil
}

func (s *DatabaseStore) LatestPartnerLocationsWithin(center geo.Coord, radiusKM float64) ([]*NearbyPartner, error) {
	// Latest sample per partner via a grouped subquery, then radius and
	// eligibility filtering in Go. Candidate sets are city-sized, so the
	// precise spherical distance is computed here rather than approximated
	// in SQL.
	sub := s.db.Model(&models.LocationSample{}).
		Select("user_id, MAX(id) AS max_id").
		Group("user_id")

	var samples []models.LocationSample
	err := s.db.Model(&models.LocationSample{}).
		Joins("JOIN (?) latest ON latest.max_id = location_samples.id", sub).
		Where("location_samples.online = ?", true).
		Find(&samples).Error
	if err != nil {
		return nil, err
	}

	var out []*NearbyPartner
	for i := range samples {
		sample := samples[i]
		distance := geo.Haversine(center, sample.Coord())
		if distance > radiusKM {
			continue
		}
		partner, err := s.GetPartner(sample.UserID)
		if err != nil {
			continue
		}
		if !partner.IsActive || !partner.Verified {
			continue
		}
		out = append(out, &NearbyPartner{Partner: partner, Location: &sample, DistanceKM: distance})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DistanceKM < out[j].DistanceKM })
	return out, nil
}

func (s *DatabaseStore) DeleteLocationSamplesBefore(cutoff time.Time) (int64, error) {
	res := s.db.Unscoped().Where("created_at < ?", cutoff).Delete(&models.LocationSample{})
	return res.RowsAffected, res.Error
}

// Document operations

func (s *DatabaseStore) CreateDocument(d *models.Document) (*models.Document, error) {
	if err := s.db.Create(d).Error; err != nil {
		return nil, err
	}
	return d, nil
}

func (s *DatabaseStore) GetDocument(documentID string) (*models.Document, error) {
	var d models.Document
	if err := s.db.Where("document_id = ?", documentID).First(&d).Error; err != nil {
		return nil, translate(err)
	}
	return &d, nil
}

func (s *DatabaseStore) GetDocumentsByPartner(partnerID string) ([]*models.Document, error) {
	var docs []*models.Document
	err := s.db.Where("partner_id = ?", partnerID).Order("created_at DESC").Find(&docs).Error
	return docs, err
}

func (s *DatabaseStore) UpdateDocument(d *models.Document) error {
	return s.db.Save(d).Error
}

func addStatusStamp(updates map[string]any, status models.OrderStatus) {
	now := time.Now()
	switch status {
	case models.OrderStatusConfirmed:
		updates["confirmed_at"] = now
	case models.OrderStatusPickedUp:
		updates["picked_up_at"] = now
	case models.OrderStatusDelivered:
		updates["delivered_at"] = now
	case models.OrderStatusCancelled:
		updates["cancelled_at"] = now
	}
}
