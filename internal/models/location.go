package models

import (
	"gorm.io/gorm"

	"github.com/zipdrophq/zipdrop-backend/internal/geo"
)

// LocationSample is an append-only record of a partner's position. The latest
// sample for a user is the most recently created one; history is purged after
// the retention window.
type LocationSample struct {
	gorm.Model

	UserID   string   `json:"user_id" gorm:"index;not null"`
	Lat      float64  `json:"lat"`
	Lng      float64  `json:"lng"`
	Heading  *float64 `json:"heading,omitempty"`
	SpeedKMH *float64 `json:"speed_kmh,omitempty"`
	Online   bool     `json:"online" gorm:"default:true"`
	Battery  *int     `json:"battery,omitempty"`
	Network  string   `json:"network,omitempty"`
	OrderRef string   `json:"order_ref,omitempty" gorm:"index"` // set while actively serving an order
}

// Coord returns the sample's position.
func (s *LocationSample) Coord() geo.Coord {
	return geo.Coord{Lat: s.Lat, Lng: s.Lng}
}
