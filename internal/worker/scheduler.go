// Package worker runs trustd's background maintenance: flipping long-idle
// devices to INACTIVE and sweeping expired sessions.
package worker

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/trustd/trustd/internal/config"
	"github.com/trustd/trustd/internal/log"
	"github.com/trustd/trustd/internal/storage"
	"github.com/trustd/trustd/internal/trust"
)

// Scheduler runs periodic maintenance sweeps
type Scheduler struct {
	cron     *cron.Cron
	trust    *trust.Service
	sessions storage.SessionStorage
}

// NewScheduler creates a maintenance scheduler
func NewScheduler(trustService *trust.Service, sessions storage.SessionStorage) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		trust:    trustService,
		sessions: sessions,
	}
}

// Start schedules the maintenance sweep at the configured interval and
// starts the cron runner.
func (s *Scheduler) Start(cfg *config.Config) error {
	spec := fmt.Sprintf("@every %s", cfg.MaintenanceInterval)
	if _, err := s.cron.AddFunc(spec, s.RunSweep); err != nil {
		return fmt.Errorf("scheduling maintenance sweep: %w", err)
	}

	s.cron.Start()
	log.Info("Maintenance scheduler started", "interval", cfg.MaintenanceInterval.String())
	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Maintenance scheduler stopped")
}

// RunSweep executes one maintenance pass. Failures are logged, never
// propagated; the next tick retries.
func (s *Scheduler) RunSweep() {
	deactivated, err := s.trust.CleanupInactiveDevices()
	if err != nil {
		log.Error("Inactive device cleanup failed", "error", err)
	} else if deactivated > 0 {
		log.Info("Devices marked inactive", "count", deactivated)
	}

	swept, err := s.sessions.DeleteExpiredSessions(time.Now())
	if err != nil {
		log.Error("Expired session sweep failed", "error", err)
	} else if swept > 0 {
		log.Info("Expired sessions swept", "count", swept)
	}
}
