package services

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/zipdrophq/zipdrop-backend/internal/geo"
	"github.com/zipdrophq/zipdrop-backend/internal/models"
	"github.com/zipdrophq/zipdrop-backend/internal/storage"
)

// Scoring weights for optimal-partner selection; lower score wins.
const (
	weightDistance = 0.7
	weightRating   = 0.2
)

// LocationValidation is the advisory result of a plausibility check on an
// incoming location update. Implausible updates are not errors; they are
// flagged and skipped.
type LocationValidation struct {
	IsValid bool   `json:"is_valid"`
	Reason  string `json:"reason,omitempty"`
}

// LocationService ingests partner location samples and answers nearby and
// optimal-partner queries.
type LocationService struct {
	store       storage.Store
	minInterval time.Duration
	maxSpeedKMH float64
	log         *zap.Logger
}

// NewLocationService creates a location service. minInterval and maxSpeedKMH
// fall back to 5s and 120 km/h when zero.
func NewLocationService(store storage.Store, minInterval time.Duration, maxSpeedKMH float64, log *zap.Logger) *LocationService {
	if minInterval <= 0 {
		minInterval = 5 * time.Second
	}
	if maxSpeedKMH <= 0 {
		maxSpeedKMH = 120
	}
	return &LocationService{store: store, minInterval: minInterval, maxSpeedKMH: maxSpeedKMH, log: log}
}

// UpdateLocation validates and records a new sample for the partner. Updates
// arriving too soon after the previous sample, or implying an implausible
// speed, are flagged as potential spoofing or GPS noise and not persisted.
func (s *LocationService) UpdateLocation(userID string, sample models.LocationSample) (*LocationValidation, error) {
	coord := sample.Coord()
	if err := coord.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if _, err := s.store.GetPartner(userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrPartnerNotFound
		}
		return nil, err
	}

	last, err := s.store.GetLatestLocation(userID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	if last != nil {
		elapsed := time.Since(last.CreatedAt)
		if elapsed < s.minInterval {
			return &LocationValidation{IsValid: false, Reason: "update interval too short"}, nil
		}
		distance := geo.Haversine(last.Coord(), coord)
		speed := distance / elapsed.Hours()
		if speed > s.maxSpeedKMH {
			return &LocationValidation{
				IsValid: false,
				Reason:  fmt.Sprintf("implied speed %.0f km/h exceeds %.0f km/h", speed, s.maxSpeedKMH),
			}, nil
		}
	}

	sample.UserID = userID
	if _, err := s.store.CreateLocationSample(&sample); err != nil {
		return nil, err
	}
	return &LocationValidation{IsValid: true}, nil
}

// FindNearbyPartners ranks online, active, verified partners by spherical
// distance from the query point. radiusKM must be in (0,100].
func (s *LocationService) FindNearbyPartners(lat, lng, radiusKM float64) ([]*storage.NearbyPartner, error) {
	center := geo.Coord{Lat: lat, Lng: lng}
	if err := center.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if radiusKM <= 0 || radiusKM > 100 {
		return nil, fmt.Errorf("%w: radius must be in (0,100] km", ErrValidation)
	}
	return s.store.LatestPartnerLocationsWithin(center, radiusKM)
}

// FindOptimalPartner picks the candidate minimizing
// 0.7*(distance to origin + distance to destination) + 0.2*(5 - rating).
// Returns nil when no eligible partner is within the radius.
func (s *LocationService) FindOptimalPartner(originLat, originLng, destLat, destLng, radiusKM float64) (*storage.NearbyPartner, error) {
	dest := geo.Coord{Lat: destLat, Lng: destLng}
	if err := dest.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	candidates, err := s.FindNearbyPartners(originLat, originLng, radiusKM)
	if err != nil {
		return nil, err
	}

	var best *storage.NearbyPartner
	bestScore := 0.0
	for _, c := range candidates {
		if !c.Partner.Available {
			continue
		}
		toDest := geo.Haversine(c.Location.Coord(), dest)
		score := weightDistance*(c.DistanceKM+toDest) + weightRating*(5-c.Partner.Rating)
		if best == nil || score < bestScore {
			best = c
			bestScore = score
		}
	}
	return best, nil
}

// LatestLocation returns the most recent sample for a partner.
func (s *LocationService) LatestLocation(userID string) (*models.LocationSample, error) {
	sample, err := s.store.GetLatestLocation(userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrPartnerNotFound
		}
		return nil, err
	}
	return sample, nil
}
