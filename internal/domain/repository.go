package domain

import (
	"context"
	"time"
)

// Window is the date range a source is asked for.
type Window struct {
	Since time.Time
	Until time.Time
}

// RecordSource supplies raw records for a date window. Paging, auth and
// transport are the implementation's concern.
type RecordSource interface {
	Name() string
	FetchRecords(ctx context.Context, window Window) ([]RawRecord, error)
}

// interface for the record snapshot store
type RecordRepository interface {
	Store(ctx context.Context, snapshot Snapshot) (Snapshot, error)
	Latest(ctx context.Context) (Snapshot, error)
	// List returns snapshot metadata, newest first, without records.
	List(ctx context.Context) []Snapshot
}

// interface for caching computed views
type ViewCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// interface for data export
type ExportClient interface {
	Export(ctx context.Context, rows []ExportRow, window Window) error
}
