package usecase

import (
	"context"
	"fmt"
	"time"

	"kpidash/internal/domain"
	"kpidash/pkg/logger"
	"kpidash/pkg/metrics"

	"golang.org/x/sync/errgroup"
)

// IngestService pulls raw records from every configured source and turns
// them into one immutable snapshot.
type IngestService struct {
	sources      []domain.RecordSource
	repo         domain.RecordRepository
	logger       *logger.Logger
	metrics      *metrics.Metrics
	lookbackDays int
	now          func() time.Time
}

func NewIngestService(
	sources []domain.RecordSource,
	repo domain.RecordRepository,
	logger *logger.Logger,
	metrics *metrics.Metrics,
	lookbackDays int,
) *IngestService {
	if lookbackDays < 1 {
		lookbackDays = 30
	}
	return &IngestService{
		sources:      sources,
		repo:         repo,
		logger:       logger,
		metrics:      metrics,
		lookbackDays: lookbackDays,
		now:          time.Now,
	}
}

// DefaultWindow covers the configured number of days up to and including today.
func (s *IngestService) DefaultWindow() domain.Window {
	until := domain.Day(s.now().UTC())
	return domain.Window{
		Since: until.AddDate(0, 0, -(s.lookbackDays - 1)),
		Until: until,
	}
}

// Fetch queries every source concurrently and merges the results by
// concatenation in source order. A single failing source fails the whole
// fetch: aggregation never runs on partial data.
func (s *IngestService) Fetch(ctx context.Context, window domain.Window) ([]domain.RawRecord, error) {
	log := s.logger.WithContext(ctx)
	log.WithField("sources", len(s.sources)).Info("Fetching records from sources")

	results := make([][]domain.RawRecord, len(s.sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range s.sources {
		g.Go(func() error {
			recs, err := src.FetchRecords(gctx, window)
			if err != nil {
				log.WithError(err).WithField("source", src.Name()).Error("Failed to fetch records")
				return fmt.Errorf("%s fetch failed: %w", src.Name(), err)
			}
			s.metrics.RecordFetched(src.Name(), len(recs))
			results[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, recs := range results {
		total += len(recs)
	}
	merged := make([]domain.RawRecord, 0, total)
	for _, recs := range results {
		merged = append(merged, recs...)
	}
	return merged, nil
}

// Refresh fetches window and stores the merged records as the new latest
// snapshot. trigger labels the refresh in metrics (manual, schedule, ...).
func (s *IngestService) Refresh(ctx context.Context, window domain.Window, trigger string) (domain.Snapshot, error) {
	start := time.Now()
	s.metrics.IncRefreshInProgress()
	defer s.metrics.DecRefreshInProgress()

	log := s.logger.WithContext(ctx)
	log.WithFields(map[string]any{
		"trigger": trigger,
		"since":   window.Since.Format(domain.DayLayout),
		"until":   window.Until.Format(domain.DayLayout),
	}).Info("Starting snapshot refresh")

	records, err := s.Fetch(ctx, window)
	if err != nil {
		s.metrics.RecordRefresh("failed", trigger, time.Since(start))
		return domain.Snapshot{}, fmt.Errorf("failed to fetch records: %w", err)
	}

	snapshot, err := s.repo.Store(ctx, domain.Snapshot{
		Since:   window.Since,
		Until:   window.Until,
		Records: records,
	})
	if err != nil {
		s.metrics.RecordRefresh("failed", trigger, time.Since(start))
		return domain.Snapshot{}, fmt.Errorf("failed to store snapshot: %w", err)
	}

	duration := time.Since(start)
	s.metrics.RecordRefresh("success", trigger, duration)
	s.metrics.SetSnapshotGeneration(snapshot.Generation)

	log.WithFields(map[string]any{
		"duration":    duration,
		"records":     len(records),
		"snapshot_id": snapshot.ID,
		"generation":  snapshot.Generation,
	}).Info("Snapshot refresh completed successfully")

	return snapshot, nil
}
