package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"kpidash/internal/analytics"
	"kpidash/internal/domain"
	"kpidash/internal/infrastructure"
	"kpidash/pkg/logger"
	"kpidash/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	name    string
	records []domain.RawRecord
	err     error

	mutex   sync.Mutex
	windows []domain.Window
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) FetchRecords(ctx context.Context, window domain.Window) ([]domain.RawRecord, error) {
	f.mutex.Lock()
	f.windows = append(f.windows, window)
	f.mutex.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.RawRecord, len(f.records))
	for i, r := range f.records {
		out[i] = r.Clone()
	}
	return out, nil
}

type fakeExporter struct {
	rows   []domain.ExportRow
	window domain.Window
	calls  int
	err    error
}

func (f *fakeExporter) Export(ctx context.Context, rows []domain.ExportRow, window domain.Window) error {
	f.calls++
	f.rows = rows
	f.window = window
	return f.err
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(s string) time.Time {
	t, err := time.Parse(domain.DayLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func adRaws() []domain.RawRecord {
	return []domain.RawRecord{
		{
			"date_start": "2024-03-01", "account_id": "a1", "campaign_id": "c1", "campaign_name": "Spring Sale",
			"platform": "facebook", "status": "ACTIVE", "account_currency": "USD",
			"impressions": "1000", "clicks": "10", "conversions": "2", "spend": "100", "revenue": "300",
		},
		{
			"date_start": "2024-03-02", "account_id": "a1", "campaign_id": "c2", "campaign_name": "Retargeting",
			"platform": "facebook", "status": "PAUSED", "account_currency": "USD",
			"impressions": "500", "clicks": "5", "conversions": "1", "spend": "50", "revenue": "75",
		},
	}
}

func paymentRaws() []domain.RawRecord {
	return []domain.RawRecord{
		{"created_at": "2024-03-01 10:00:00", "platform": "other", "status": "captured", "amount": "40", "currency": "USD", "description": "Course"},
		{"created_at": "2024-03-02 11:00:00", "platform": "other", "status": "failed", "amount": "20", "currency": "USD", "description": "Course"},
	}
}

type testEnv struct {
	repo      *infrastructure.RecordRepository
	cache     *infrastructure.MemoryCache
	ingest    *IngestService
	dashboard *DashboardService
	metrics   *metrics.Metrics
	ads       *fakeSource
	payments  *fakeSource
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logger.Discard()
	m := metrics.New(prometheus.NewRegistry())

	env := &testEnv{
		repo:     infrastructure.NewRecordRepository(3, log),
		cache:    infrastructure.NewMemoryCache(16),
		metrics:  m,
		ads:      &fakeSource{name: "facebook", records: adRaws()},
		payments: &fakeSource{name: "payments", records: paymentRaws()},
	}
	env.ingest = NewIngestService([]domain.RecordSource{env.ads, env.payments}, env.repo, log, m, 7)
	env.ingest.now = func() time.Time { return day("2024-03-02").Add(15 * time.Hour) }
	env.dashboard = NewDashboardService(env.repo, env.cache, DashboardOptions{
		DefaultCurrency: domain.CurrencyUSD,
		Negative:        analytics.ClampNegative,
		Locale:          "en-US",
		TopN:            5,
		LabelMaxLen:     30,
		ExcludedLabels:  []string{"test"},
		CacheTTL:        time.Minute,
	}, log, m)
	return env
}

func (e *testEnv) refresh(t *testing.T) domain.Snapshot {
	t.Helper()
	snapshot, err := e.ingest.Refresh(context.Background(), e.ingest.DefaultWindow(), "manual")
	require.NoError(t, err)
	return snapshot
}
