package services

import (
	"context"
	"fmt"
	"time"

	"mercado/internal/repositories"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultSweepSchedule runs the reset code sweep every ten minutes.
const DefaultSweepSchedule = "@every 10m"

// Maintenance runs periodic housekeeping jobs.
type Maintenance struct {
	userRepo repositories.UserRepository
	log      *zap.Logger
	cron     *cron.Cron
	now      func() time.Time
}

// NewMaintenance creates a scheduler. Jobs are registered by Start.
func NewMaintenance(userRepo repositories.UserRepository, log *zap.Logger) *Maintenance {
	return &Maintenance{
		userRepo: userRepo,
		log:      log,
		cron:     cron.New(),
		now:      time.Now,
	}
}

// SweepResetCodes clears recovery codes that have expired.
func (m *Maintenance) SweepResetCodes(ctx context.Context) (int64, error) {
	n, err := m.userRepo.ClearExpiredResetCodes(ctx, m.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.log.Info("expired recovery codes cleared", zap.Int64("count", n))
	}
	return n, nil
}

// Start registers the jobs on schedule and starts the scheduler.
func (m *Maintenance) Start(schedule string) error {
	_, err := m.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := m.SweepResetCodes(ctx); err != nil {
			m.log.Error("reset code sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid maintenance schedule %q: %w", schedule, err)
	}
	m.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for running jobs to finish.
func (m *Maintenance) Stop() {
	<-m.cron.Stop().Done()
}
