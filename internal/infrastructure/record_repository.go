package infrastructure

import (
	"context"
	"sync"
	"time"

	"kpidash/internal/domain"
	"kpidash/pkg/logger"

	"github.com/google/uuid"
)

const defaultRetainedSnapshots = 5

// RecordRepository keeps the most recent record snapshots in memory. It
// implements domain.RecordRepository.
type RecordRepository struct {
	snapshots  []domain.Snapshot
	generation uint64
	retain     int
	mutex      sync.RWMutex
	logger     *logger.Logger
	now        func() time.Time
}

func NewRecordRepository(retain int, logger *logger.Logger) *RecordRepository {
	if retain < 1 {
		retain = defaultRetainedSnapshots
	}
	return &RecordRepository{
		retain: retain,
		logger: logger,
		now:    time.Now,
	}
}

// Store assigns the snapshot an id and the next generation and makes it the
// latest. The records slice is copied so later changes by the caller do not
// leak into the stored snapshot.
func (r *RecordRepository) Store(ctx context.Context, snapshot domain.Snapshot) (domain.Snapshot, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.generation++
	snapshot.Generation = r.generation
	if snapshot.ID == "" {
		snapshot.ID = uuid.NewString()
	}
	if snapshot.FetchedAt.IsZero() {
		snapshot.FetchedAt = r.now().UTC()
	}
	snapshot.Records = append([]domain.RawRecord(nil), snapshot.Records...)

	r.snapshots = append(r.snapshots, snapshot)
	if len(r.snapshots) > r.retain {
		r.snapshots = r.snapshots[len(r.snapshots)-r.retain:]
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"snapshot_id": snapshot.ID,
		"generation":  snapshot.Generation,
		"records":     len(snapshot.Records),
	}).Info("Stored record snapshot in memory")

	return snapshot, nil
}

func (r *RecordRepository) Latest(ctx context.Context) (domain.Snapshot, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if len(r.snapshots) == 0 {
		return domain.Snapshot{}, domain.ErrNoSnapshot
	}
	return r.snapshots[len(r.snapshots)-1], nil
}

// List returns the retained snapshots, newest first, without their records.
func (r *RecordRepository) List(ctx context.Context) []domain.Snapshot {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	out := make([]domain.Snapshot, 0, len(r.snapshots))
	for i := len(r.snapshots) - 1; i >= 0; i-- {
		s := r.snapshots[i]
		s.Records = nil
		out = append(out, s)
	}
	return out
}
