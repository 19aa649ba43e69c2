package usecase

import (
	"context"
	"fmt"
	"time"

	"kpidash/internal/domain"
	"kpidash/pkg/logger"

	"github.com/robfig/cron/v3"
)

const scheduleTrigger = "schedule"

// Scheduler refreshes the snapshot on a cron schedule and, when a sink is
// configured, exports the refreshed window afterwards.
type Scheduler struct {
	ingest   *IngestService
	export   *ExportService
	logger   *logger.Logger
	cron     *cron.Cron
	schedule string
	timeout  time.Duration
}

// NewScheduler builds a scheduler for a standard five-field cron schedule.
// export may be nil.
func NewScheduler(ingest *IngestService, export *ExportService, schedule string, timeout time.Duration, logger *logger.Logger) *Scheduler {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Scheduler{
		ingest:   ingest,
		export:   export,
		logger:   logger,
		cron:     cron.New(),
		schedule: schedule,
		timeout:  timeout,
	}
}

// Start registers the refresh job and starts the cron loop. An empty
// schedule disables scheduled refreshes.
func (s *Scheduler) Start() error {
	if s.schedule == "" {
		s.logger.Info("Scheduled refresh disabled")
		return nil
	}
	if _, err := s.cron.AddFunc(s.schedule, s.Run); err != nil {
		return fmt.Errorf("failed to add refresh cron: %w", err)
	}
	s.cron.Start()
	s.logger.WithField("schedule", s.schedule).Info("Scheduled refresh started")
	return nil
}

// Stop waits for a running job to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	cronCtx := s.cron.Stop()
	select {
	case <-cronCtx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run performs one scheduled refresh and export.
func (s *Scheduler) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	window := s.ingest.DefaultWindow()
	if _, err := s.ingest.Refresh(ctx, window, scheduleTrigger); err != nil {
		s.logger.WithError(err).Error("Scheduled refresh failed")
		return
	}

	if s.export == nil || !s.export.CanExport() {
		return
	}
	spec := domain.FilterSpec{From: &window.Since, To: &window.Until}
	if _, err := s.export.Run(ctx, spec); err != nil {
		s.logger.WithError(err).Error("Scheduled export failed")
	}
}
