package models

import (
	"strings"

	"gorm.io/gorm"
)

// Partner is a delivery partner serving orders.
type Partner struct {
	gorm.Model

	PartnerID    string  `json:"partner_id" gorm:"uniqueIndex"`
	Name         string  `json:"name"`
	Phone        string  `json:"phone" gorm:"uniqueIndex"`
	Email        string  `json:"email" gorm:"index"`
	VehicleNo    string  `json:"vehicle_no" gorm:"uniqueIndex"`
	VehicleType  string  `json:"vehicle_type"`
	AadhaarLast4 string  `json:"aadhaar_last4"` // last 4 digits only, never the full number
	Verified     bool    `json:"verified" gorm:"default:false"`
	IsActive     bool    `json:"is_active" gorm:"default:true"`
	Available    bool    `json:"available" gorm:"default:true"`
	Rating       float64 `json:"rating" gorm:"default:5.0"`
	RatingCount  int     `json:"rating_count" gorm:"default:0"`
	TotalTrips   int     `json:"total_trips" gorm:"default:0"`
}

// BeforeCreate generates the PartnerID and normalizes identifying fields.
func (p *Partner) BeforeCreate(tx *gorm.DB) error {
	if p.PartnerID == "" {
		p.PartnerID = GenerateID("PTR")
	}
	p.VehicleNo = strings.ToUpper(strings.ReplaceAll(p.VehicleNo, " ", ""))
	p.Phone = NormalizePhone(p.Phone)
	if p.Rating == 0 {
		p.Rating = 5.0
	}
	return nil
}

// Eligible reports whether the partner can be assigned new orders.
func (p *Partner) Eligible() bool {
	return p.IsActive && p.Verified && p.Available
}

// ApplyRating folds a new rating into the running average.
func (p *Partner) ApplyRating(rating float64) {
	p.RatingCount++
	if p.RatingCount == 1 {
		p.Rating = rating
		return
	}
	p.Rating = ((p.Rating * float64(p.RatingCount-1)) + rating) / float64(p.RatingCount)
}
