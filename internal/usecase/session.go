package usecase

import (
	"context"
	"sync"

	"kpidash/internal/domain"
	"kpidash/pkg/logger"
	"kpidash/pkg/metrics"
)

// CycleFunc computes one view for a filter. It must honor ctx cancellation.
type CycleFunc func(ctx context.Context, spec domain.FilterSpec) (*View, error)

// Session serializes filter changes from one dashboard. Every Apply starts
// a new generation and cancels the cycle still running for the previous
// one; only the latest generation may publish its view.
type Session struct {
	mutex      sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	current    *View

	compute CycleFunc
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewSession(compute CycleFunc, logger *logger.Logger, metrics *metrics.Metrics) *Session {
	return &Session{compute: compute, logger: logger, metrics: metrics}
}

// Apply runs a cycle for a filter. It returns domain.ErrStaleCycle when a later
// Apply superseded this one before it finished.
func (s *Session) Apply(ctx context.Context, spec domain.FilterSpec) (*View, error) {
	s.mutex.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.generation++
	generation := s.generation
	cycleCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mutex.Unlock()

	defer cancel()

	cycleCtx = context.WithValue(cycleCtx, logger.GenerationKey, generation)
	view, err := s.compute(cycleCtx, spec)

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if generation != s.generation {
		s.metrics.RecordStaleCycle()
		s.logger.WithContext(cycleCtx).Debug("Discarding superseded cycle")
		return nil, domain.ErrStaleCycle
	}
	s.cancel = nil
	if err != nil {
		return nil, err
	}
	s.current = view
	return view, nil
}

// Current returns the last committed view, or nil before the first one.
func (s *Session) Current() *View {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.current
}

// Generation returns the number of cycles started so far.
func (s *Session) Generation() uint64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.generation
}

// LiveCycle fetches the filter's date window from the sources and builds the
// view from those records, bypassing the snapshot store. Records outside
// the window are still removed by the filter engine.
func LiveCycle(ingest *IngestService, dashboard *DashboardService) CycleFunc {
	return func(ctx context.Context, spec domain.FilterSpec) (*View, error) {
		window := ingest.DefaultWindow()
		if spec.From != nil {
			window.Since = domain.Day(*spec.From)
		}
		if spec.To != nil {
			window.Until = domain.Day(*spec.To)
		}

		raws, err := ingest.Fetch(ctx, window)
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		records, report := dashboard.Normalize(ctx, raws)
		view := dashboard.BuildView(records, report, spec)
		return view, nil
	}
}

// SnapshotCycle builds the view from the latest stored snapshot.
func SnapshotCycle(dashboard *DashboardService) CycleFunc {
	return dashboard.Dashboard
}
