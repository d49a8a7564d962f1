package jobs

import (
	"time"

	"go.uber.org/zap"

	"github.com/zipdrophq/zipdrop-backend/internal/storage"
)

// CleanupJob periodically purges expired OTP rows and stale location samples.
type CleanupJob struct {
	store             storage.Store
	otpGrace          time.Duration
	locationRetention time.Duration
	log               *zap.Logger

	stop chan struct{}
}

// NewCleanupJob creates the cleanup scheduler. otpGrace is how long expired
// OTPs are kept before deletion; locationRetention falls back to 24h.
func NewCleanupJob(store storage.Store, otpGrace, locationRetention time.Duration, log *zap.Logger) *CleanupJob {
	if locationRetention <= 0 {
		locationRetention = 24 * time.Hour
	}
	return &CleanupJob{
		store:             store,
		otpGrace:          otpGrace,
		locationRetention: locationRetention,
		log:               log,
		stop:              make(chan struct{}),
	}
}

// Start launches the cleanup loops.
func (j *CleanupJob) Start() {
	j.log.Info("starting cleanup jobs",
		zap.Duration("otp_grace", j.otpGrace),
		zap.Duration("location_retention", j.locationRetention))
	go j.loop(10*time.Minute, j.purgeOTPs)
	go j.loop(time.Hour, j.purgeLocations)
}

// Stop halts the cleanup loops.
func (j *CleanupJob) Stop() {
	close(j.stop)
}

func (j *CleanupJob) loop(interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			fn()
		case <-j.stop:
			return
		}
	}
}

func (j *CleanupJob) purgeOTPs() {
	cutoff := time.Now().Add(-j.otpGrace)
	n, err := j.store.DeleteExpiredOTPs(cutoff)
	if err != nil {
		j.log.Error("otp cleanup failed", zap.Error(err))
		return
	}
	if n > 0 {
		j.log.Info("purged expired otps", zap.Int64("count", n))
	}
}

func (j *CleanupJob) purgeLocations() {
	cutoff := time.Now().Add(-j.locationRetention)
	n, err := j.store.DeleteLocationSamplesBefore(cutoff)
	if err != nil {
		j.log.Error("location cleanup failed", zap.Error(err))
		return
	}
	if n > 0 {
		j.log.Info("purged stale location samples", zap.Int64("count", n))
	}
}
