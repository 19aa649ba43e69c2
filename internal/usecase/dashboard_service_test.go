package usecase

import (
	"context"
	"testing"

	"kpidash/internal/domain"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func labels(slices []domain.Slice) []string {
	return lo.Map(slices, func(s domain.Slice, _ int) string { return s.Label })
}

func TestDashboardWithoutSnapshot(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.dashboard.Dashboard(context.Background(), domain.FilterSpec{})
	assert.ErrorIs(t, err, domain.ErrNoSnapshot)

	_, err = env.dashboard.KPI(context.Background(), domain.FilterSpec{})
	assert.ErrorIs(t, err, domain.ErrNoSnapshot)
}

func TestDashboardView(t *testing.T) {
	env := newTestEnv(t)
	snapshot := env.refresh(t)

	view, err := env.dashboard.Dashboard(context.Background(), domain.FilterSpec{})
	require.NoError(t, err)

	assert.Equal(t, snapshot.Generation, view.Generation)
	assert.Equal(t, snapshot.ID, view.SnapshotID)
	assert.Equal(t, 4, view.KPI.Records)
	assert.Equal(t, int64(1500), view.KPI.Impressions)
	assert.Equal(t, int64(15), view.KPI.Clicks)
	assert.Equal(t, domain.CurrencyUSD, view.KPI.Currency)
	assert.True(t, view.KPI.Spend[domain.CurrencyUSD].Equal(dec("150")))
	assert.True(t, view.KPI.Revenue[domain.CurrencyUSD].Equal(dec("415")))
	assert.InDelta(t, 276.6666, view.KPI.ROAS, 1e-3)

	assert.Equal(t, "$150.00", view.Display[domain.MetricSpend])
	assert.Equal(t, "1,500", view.Display[domain.MetricImpressions])
	assert.Equal(t, "276.67%", view.Display[domain.MetricROAS])
	assert.Nil(t, view.Trend)

	spend := view.Series[domain.MetricSpend]
	require.Len(t, spend, 2)
	assert.Equal(t, "2024-03-01", spend[0].Date)
	assert.True(t, spend[0].Amount.Equal(dec("100")))
	assert.True(t, spend[1].Amount.Equal(dec("50")))
	assert.True(t, view.AveragePerDay[domain.MetricSpend].Equal(dec("75")))

	assert.Equal(t, []string{"facebook"}, labels(view.Distributions[DimensionPlatform]))
	assert.Equal(t, []string{"c1", "c2"}, labels(view.Distributions[DimensionCampaign]))
	assert.Equal(t, []string{"Spring Sale", "Retargeting", "Course"}, labels(view.Distributions[DimensionLabel]))
	assert.Equal(t, []string{"Active", "Captured", "Failed", "Paused"}, labels(view.Distributions[DimensionStatus]))

	assert.Equal(t, 2, view.Payments.Transactions)
	assert.Equal(t, 50, view.Payments.CaptureRate)
	assert.True(t, view.Payments.CapturedRevenue[domain.CurrencyUSD].Equal(dec("40")))
	assert.Equal(t, 4, view.Quality.Records)
}

func TestDashboardTrendAgainstPreviousPeriod(t *testing.T) {
	env := newTestEnv(t)
	env.refresh(t)

	from, to := day("2024-03-02"), day("2024-03-02")
	view, err := env.dashboard.Dashboard(context.Background(), domain.FilterSpec{From: &from, To: &to})
	require.NoError(t, err)

	assert.Equal(t, 2, view.KPI.Records)
	assert.Equal(t, "-50.0%", view.Trend[domain.MetricSpend])
	assert.Equal(t, "-50.0%", view.Trend[domain.MetricImpressions])
}

func TestDashboardCachesPerGeneration(t *testing.T) {
	env := newTestEnv(t)
	env.refresh(t)
	ctx := context.Background()

	first, err := env.dashboard.Dashboard(ctx, domain.FilterSpec{})
	require.NoError(t, err)
	second, err := env.dashboard.Dashboard(ctx, domain.FilterSpec{})
	require.NoError(t, err)

	assert.Equal(t, 1, env.cache.Len())
	assert.Equal(t, first.Fingerprint, second.Fingerprint)
	assert.True(t, first.KPI.Spend[domain.CurrencyUSD].Equal(second.KPI.Spend[domain.CurrencyUSD]))
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.ViewCacheLookups.WithLabelValues("hit")))

	env.ads.records = env.ads.records[:1]
	env.refresh(t)

	third, err := env.dashboard.Dashboard(ctx, domain.FilterSpec{})
	require.NoError(t, err)
	assert.Equal(t, 2, env.cache.Len())
	assert.Equal(t, 3, third.KPI.Records)
}

func TestDashboardExcludesUnsettledPaymentRevenue(t *testing.T) {
	env := newTestEnv(t)
	env.ads.records = []domain.RawRecord{
		{"date": "2024-03-01", "platform": "facebook", "status": "ACTIVE", "currency": "USD", "spend": "100", "revenue": "0"},
	}
	env.payments.records = []domain.RawRecord{
		{"created_at": "2024-03-01 09:00:00", "platform": "other", "status": "failed", "amount": "500", "currency": "USD"},
		{"created_at": "2024-03-01 10:00:00", "platform": "other", "status": "pending", "amount": "0", "currency": "USD"},
	}
	env.refresh(t)

	view, err := env.dashboard.Dashboard(context.Background(), domain.FilterSpec{})
	require.NoError(t, err)

	assert.True(t, view.KPI.Revenue[domain.CurrencyUSD].IsZero())
	assert.Equal(t, 0.0, view.KPI.ROAS)
	assert.True(t, view.Payments.CapturedRevenue[domain.CurrencyUSD].IsZero())
	assert.Equal(t, 2, view.Payments.Transactions)
	assert.Equal(t, []string{"Active", "Failed", "Pending"}, labels(view.Distributions[DimensionStatus]))

	slices, err := env.dashboard.Distribution(context.Background(), domain.FilterSpec{}, DimensionStatus, "", 0)
	require.NoError(t, err)
	assert.Len(t, slices, 3)
}

func TestDashboardCacheSharedAcrossRepositories(t *testing.T) {
	first := newTestEnv(t)
	first.refresh(t)

	second := newTestEnv(t)
	second.dashboard.cache = first.cache
	second.ads.records = second.ads.records[:1]
	snapshot := second.refresh(t)

	ctx := context.Background()
	a, err := first.dashboard.Dashboard(ctx, domain.FilterSpec{})
	require.NoError(t, err)
	b, err := second.dashboard.Dashboard(ctx, domain.FilterSpec{})
	require.NoError(t, err)

	assert.Equal(t, a.Generation, b.Generation)
	assert.Equal(t, snapshot.ID, b.SnapshotID)
	assert.NotEqual(t, a.SnapshotID, b.SnapshotID)
	assert.Equal(t, 4, a.KPI.Records)
	assert.Equal(t, 3, b.KPI.Records)
	assert.Equal(t, 2, first.cache.Len())
}

func TestDashboardWithoutCache(t *testing.T) {
	env := newTestEnv(t)
	env.dashboard.cache = nil
	env.refresh(t)

	view, err := env.dashboard.Dashboard(context.Background(), domain.FilterSpec{})
	require.NoError(t, err)
	assert.Equal(t, 4, view.KPI.Records)
}

func TestDashboardFilteredQueries(t *testing.T) {
	env := newTestEnv(t)
	env.refresh(t)
	ctx := context.Background()
	spec := domain.FilterSpec{Statuses: []domain.Status{domain.StatusActive, domain.StatusCaptured}}

	kpi, err := env.dashboard.KPI(ctx, spec)
	require.NoError(t, err)
	assert.Equal(t, 2, kpi.Records)

	series, err := env.dashboard.Timeseries(ctx, spec, domain.MetricRevenue, "")
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.True(t, series[0].Amount.Equal(dec("340")))

	slices, err := env.dashboard.Distribution(ctx, domain.FilterSpec{}, "Campaign", "", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, labels(slices))

	payments, err := env.dashboard.Payments(ctx, domain.FilterSpec{})
	require.NoError(t, err)
	assert.Equal(t, 1, payments.StatusCounts[domain.StatusFailed])
}

func TestDashboardRejectsInvalidQueries(t *testing.T) {
	env := newTestEnv(t)
	env.refresh(t)
	ctx := context.Background()

	_, err := env.dashboard.Timeseries(ctx, domain.FilterSpec{}, domain.MetricCTR, "")
	assert.ErrorIs(t, err, domain.ErrInvalidFilter)

	_, err = env.dashboard.Distribution(ctx, domain.FilterSpec{}, "country", "", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidFilter)

	_, err = env.dashboard.Distribution(ctx, domain.FilterSpec{}, DimensionPlatform, domain.MetricROAS, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidFilter)
}

func TestPreviousPeriod(t *testing.T) {
	from, to := day("2024-03-08"), day("2024-03-14")
	prev, ok := previousPeriod(domain.FilterSpec{From: &from, To: &to, Accounts: []string{"a1"}})
	require.True(t, ok)
	assert.Equal(t, day("2024-03-01"), *prev.From)
	assert.Equal(t, day("2024-03-07"), *prev.To)
	assert.Equal(t, []string{"a1"}, prev.Accounts)

	_, ok = previousPeriod(domain.FilterSpec{From: &from})
	assert.False(t, ok)
	_, ok = previousPeriod(domain.FilterSpec{From: &to, To: &from})
	assert.False(t, ok)
}
