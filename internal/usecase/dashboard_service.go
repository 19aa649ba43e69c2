package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"kpidash/internal/analytics"
	"kpidash/internal/domain"
	"kpidash/pkg/logger"
	"kpidash/pkg/metrics"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Distribution dimensions understood by Distribution and the dashboard view.
const (
	DimensionPlatform = "platform"
	DimensionStatus   = "status"
	DimensionLabel    = "label"
	DimensionCampaign = "campaign"
)

var Dimensions = []string{DimensionPlatform, DimensionCampaign, DimensionLabel, DimensionStatus}

// defaultMeasure is what each dimension ranks by when no measure is given.
// Status ranks by record count so zero-amount statuses stay visible.
var defaultMeasure = map[string]domain.Metric{
	DimensionPlatform: domain.MetricSpend,
	DimensionCampaign: domain.MetricSpend,
	DimensionLabel:    domain.MetricRevenue,
	DimensionStatus:   "",
}

type DashboardOptions struct {
	DefaultCurrency domain.Currency
	Negative        analytics.NegativeAmounts
	Locale          string
	TopN            int
	LabelMaxLen     int
	ExcludedLabels  []string
	CacheTTL        time.Duration
}

// View is everything the dashboard shows for one filter.
type View struct {
	Generation    uint64                            `json:"generation"`
	SnapshotID    string                            `json:"snapshot_id,omitempty"`
	Fingerprint   string                            `json:"fingerprint"`
	KPI           domain.KPITotals                  `json:"kpi"`
	Display       map[domain.Metric]string          `json:"display"`
	Trend         map[domain.Metric]string          `json:"trend,omitempty"`
	Series        map[domain.Metric][]domain.Bucket `json:"series"`
	AveragePerDay map[domain.Metric]decimal.Decimal `json:"average_per_day"`
	Distributions map[string][]domain.Slice         `json:"distributions"`
	Payments      domain.PaymentSummary             `json:"payments"`
	Quality       domain.NormalizeReport            `json:"quality"`
}

type normalizedSnapshot struct {
	snapshot domain.Snapshot
	records  []domain.CanonicalRecord
	report   domain.NormalizeReport
}

// DashboardService answers analytics queries against the latest snapshot.
type DashboardService struct {
	repo       domain.RecordRepository
	cache      domain.ViewCache
	normalizer *analytics.Normalizer
	formatter  *analytics.Formatter
	opts       DashboardOptions
	logger     *logger.Logger
	metrics    *metrics.Metrics

	mutex      sync.Mutex
	normalized *normalizedSnapshot
}

// NewDashboardService builds the service; cache may be nil.
func NewDashboardService(
	repo domain.RecordRepository,
	cache domain.ViewCache,
	opts DashboardOptions,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *DashboardService {
	if opts.TopN < 1 {
		opts.TopN = analytics.DefaultTopN
	}
	if opts.LabelMaxLen < 1 {
		opts.LabelMaxLen = analytics.DefaultLabelMaxLen
	}
	normalizer := analytics.NewNormalizer(analytics.NormalizerOptions{
		DefaultCurrency: opts.DefaultCurrency,
		Negative:        opts.Negative,
	})
	opts.DefaultCurrency = normalizer.DefaultCurrency()

	return &DashboardService{
		repo:       repo,
		cache:      cache,
		normalizer: normalizer,
		formatter:  analytics.NewFormatter(opts.Locale, opts.DefaultCurrency),
		opts:       opts,
		logger:     logger,
		metrics:    metrics,
	}
}

func (s *DashboardService) Normalizer() *analytics.Normalizer {
	return s.normalizer
}

// latest returns the newest snapshot in canonical form. The normalized
// records of one snapshot are computed once and shared read-only.
func (s *DashboardService) latest(ctx context.Context) (*normalizedSnapshot, error) {
	snapshot, err := s.repo.Latest(ctx)
	if err != nil {
		return nil, err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.normalized != nil && s.normalized.snapshot.ID == snapshot.ID {
		return s.normalized, nil
	}

	records, report := s.Normalize(ctx, snapshot.Records)
	s.normalized = &normalizedSnapshot{snapshot: snapshot, records: records, report: report}
	return s.normalized, nil
}

// Normalize converts raw records and reports any data-quality fallbacks.
// Failed and pending payments keep their status but carry no revenue.
func (s *DashboardService) Normalize(ctx context.Context, raws []domain.RawRecord) ([]domain.CanonicalRecord, domain.NormalizeReport) {
	records, report := s.normalizer.NormalizeAll(raws)
	records = analytics.QualifyingRevenue(records)

	s.metrics.RecordNormalizerFallbacks("dateless", report.Dateless)
	s.metrics.RecordNormalizerFallbacks("invalid_number", report.InvalidNumbers)
	s.metrics.RecordNormalizerFallbacks("negative_amount", report.NegativeAmounts)
	s.metrics.RecordNormalizerFallbacks("currency_fallback", report.CurrencyFallback)
	s.metrics.RecordNormalizerFallbacks("unknown_status", report.UnknownStatus)

	if report.InvalidNumbers+report.CurrencyFallback+report.UnknownStatus+report.Dateless > 0 {
		s.logger.WithContext(ctx).WithFields(map[string]any{
			"records":           report.Records,
			"dateless":          report.Dateless,
			"invalid_numbers":   report.InvalidNumbers,
			"negative_amounts":  report.NegativeAmounts,
			"currency_fallback": report.CurrencyFallback,
			"unknown_status":    report.UnknownStatus,
		}).Warn("Normalizer applied fallbacks")
	}
	return records, report
}

// Records returns the canonical records of the latest snapshot that match the filter.
func (s *DashboardService) Records(ctx context.Context, spec domain.FilterSpec) ([]domain.CanonicalRecord, domain.Snapshot, error) {
	n, err := s.latest(ctx)
	if err != nil {
		return nil, domain.Snapshot{}, err
	}
	return analytics.FilterRecords(n.records, spec), n.snapshot, nil
}

// Dashboard returns the full view for a filter, served from the view cache when
// the same filter was computed for the same snapshot. The key uses the
// snapshot ID because generations restart with every process while the
// cache may be shared.
func (s *DashboardService) Dashboard(ctx context.Context, spec domain.FilterSpec) (*View, error) {
	n, err := s.latest(ctx)
	if err != nil {
		return nil, err
	}

	key := viewCacheKey(n.snapshot, spec)
	if view, ok := s.cached(ctx, key); ok {
		return view, nil
	}

	view := s.BuildView(n.records, n.report, spec)
	view.Generation = n.snapshot.Generation
	view.SnapshotID = n.snapshot.ID

	s.store(ctx, key, view)
	return view, nil
}

func (s *DashboardService) cached(ctx context.Context, key string) (*View, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			s.logger.WithContext(ctx).WithError(err).Warn("View cache read failed")
		}
		s.metrics.RecordCacheLookup(false)
		return nil, false
	}
	var view View
	if err := json.Unmarshal(data, &view); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("Discarding undecodable cached view")
		s.metrics.RecordCacheLookup(false)
		return nil, false
	}
	s.metrics.RecordCacheLookup(true)
	return &view, true
}

func (s *DashboardService) store(ctx context.Context, key string, view *View) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(view)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("Failed to encode view for cache")
		return
	}
	if err := s.cache.Set(ctx, key, data, s.opts.CacheTTL); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("View cache write failed")
	}
}

// BuildView runs one full aggregation pass over canonical records.
func (s *DashboardService) BuildView(canonical []domain.CanonicalRecord, report domain.NormalizeReport, spec domain.FilterSpec) *View {
	filtered := analytics.FilterRecords(canonical, spec)
	totals := analytics.Aggregate(filtered)
	s.metrics.RecordAggregation("dashboard")

	view := &View{
		Fingerprint:   spec.Fingerprint(),
		KPI:           totals,
		Display:       make(map[domain.Metric]string, len(domain.Metrics)),
		Series:        make(map[domain.Metric][]domain.Bucket, 2),
		AveragePerDay: make(map[domain.Metric]decimal.Decimal, 2),
		Distributions: make(map[string][]domain.Slice, len(Dimensions)),
		Quality:       report,
	}

	for _, m := range domain.Metrics {
		view.Display[m] = s.formatter.Format(totals.Value(m), m, totals.Currency)
	}

	if previous, ok := previousPeriod(spec); ok {
		prev := analytics.Aggregate(analytics.FilterRecords(canonical, previous))
		view.Trend = make(map[domain.Metric]string, len(domain.Metrics))
		for _, m := range domain.Metrics {
			view.Trend[m] = analytics.FormatTrend(analytics.Trend(
				totals.ValueIn(m, totals.Currency),
				prev.ValueIn(m, totals.Currency),
			))
		}
	}

	for _, m := range []domain.Metric{domain.MetricSpend, domain.MetricRevenue} {
		buckets := analytics.Bucketize(filtered, analytics.BucketSpec{Measure: m, Currency: totals.Currency})
		view.Series[m] = buckets
		view.AveragePerDay[m] = analytics.AveragePerDay(buckets)
	}

	for _, dim := range Dimensions {
		key, _ := s.keyFunc(dim)
		view.Distributions[dim] = analytics.DistributeBy(filtered, key, analytics.DistributionSpec{
			Measure: defaultMeasure[dim],
			Limit:   s.opts.TopN,
		})
	}

	view.Payments = analytics.SummarizePayments(paymentRecords(filtered), s.opts.DefaultCurrency)
	return view
}

// KPI aggregates the records matching the filter.
func (s *DashboardService) KPI(ctx context.Context, spec domain.FilterSpec) (domain.KPITotals, error) {
	records, _, err := s.Records(ctx, spec)
	if err != nil {
		return domain.KPITotals{}, err
	}
	s.metrics.RecordAggregation("kpi")
	return analytics.Aggregate(records), nil
}

// Timeseries buckets the records matching the filter by day. An empty currency
// means the primary currency of the matching records.
func (s *DashboardService) Timeseries(ctx context.Context, spec domain.FilterSpec, measure domain.Metric, currency domain.Currency) ([]domain.Bucket, error) {
	if measure == "" {
		measure = domain.MetricSpend
	}
	if !measure.Summable() {
		return nil, fmt.Errorf("%w: measure %q cannot be summed per day", domain.ErrInvalidFilter, measure)
	}
	records, _, err := s.Records(ctx, spec)
	if err != nil {
		return nil, err
	}
	if currency == "" {
		currency = analytics.Aggregate(records).Currency
	}
	s.metrics.RecordAggregation("timeseries")
	return analytics.Bucketize(records, analytics.BucketSpec{Measure: measure, Currency: currency}), nil
}

// Distribution ranks the records matching the filter along one dimension.
func (s *DashboardService) Distribution(ctx context.Context, spec domain.FilterSpec, dimension string, measure domain.Metric, limit int) ([]domain.Slice, error) {
	dimension = strings.ToLower(strings.TrimSpace(dimension))
	key, ok := s.keyFunc(dimension)
	if !ok {
		return nil, fmt.Errorf("%w: unknown dimension %q", domain.ErrInvalidFilter, dimension)
	}
	if measure == "" {
		measure = defaultMeasure[dimension]
	}
	if measure != "" && !measure.Summable() {
		return nil, fmt.Errorf("%w: measure %q cannot be summed", domain.ErrInvalidFilter, measure)
	}
	if limit <= 0 {
		limit = s.opts.TopN
	}

	records, _, err := s.Records(ctx, spec)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordAggregation("distribution")
	return analytics.DistributeBy(records, key, analytics.DistributionSpec{Measure: measure, Limit: limit}), nil
}

// Payments summarizes the payment-store records matching the filter.
func (s *DashboardService) Payments(ctx context.Context, spec domain.FilterSpec) (domain.PaymentSummary, error) {
	records, _, err := s.Records(ctx, spec)
	if err != nil {
		return domain.PaymentSummary{}, err
	}
	s.metrics.RecordAggregation("payments")
	return analytics.SummarizePayments(paymentRecords(records), s.opts.DefaultCurrency), nil
}

func (s *DashboardService) keyFunc(dimension string) (analytics.KeyFunc, bool) {
	switch dimension {
	case DimensionPlatform:
		return analytics.ByPlatform, true
	case DimensionStatus:
		return analytics.ByStatus, true
	case DimensionCampaign:
		return analytics.ByCampaign, true
	case DimensionLabel:
		return analytics.ByLabel(s.opts.LabelMaxLen, s.opts.ExcludedLabels...), true
	}
	return nil, false
}

func viewCacheKey(snapshot domain.Snapshot, spec domain.FilterSpec) string {
	return fmt.Sprintf("dashboard:%s:%s", snapshot.ID, spec.Fingerprint())
}

// paymentRecords keeps the records that came from the payment store, which
// carry no ad platform.
func paymentRecords(records []domain.CanonicalRecord) []domain.CanonicalRecord {
	return lo.Filter(records, func(r domain.CanonicalRecord, _ int) bool {
		return r.Platform == domain.PlatformOther
	})
}

// previousPeriod shifts a closed date range back by its own length.
func previousPeriod(spec domain.FilterSpec) (domain.FilterSpec, bool) {
	if spec.From == nil || spec.To == nil {
		return domain.FilterSpec{}, false
	}
	from, to := domain.Day(*spec.From), domain.Day(*spec.To)
	if to.Before(from) {
		return domain.FilterSpec{}, false
	}
	days := int(to.Sub(from).Hours()/24) + 1
	prevTo := from.AddDate(0, 0, -1)
	prevFrom := from.AddDate(0, 0, -days)

	prev := spec
	prev.From = &prevFrom
	prev.To = &prevTo
	return prev, true
}
