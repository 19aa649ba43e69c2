package usecase

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"

	"kpidash/internal/analytics"
	"kpidash/internal/domain"
	"kpidash/pkg/logger"
	"kpidash/pkg/metrics"

	"github.com/samber/lo"
)

var ErrExportDisabled = errors.New("export sink not configured")

var csvHeader = []string{
	"date", "currency", "records", "impressions", "clicks", "conversions",
	"spend", "revenue", "ctr", "cpc", "cpm", "cost_per_conversion", "roas",
}

// Report is the set of daily rows for one export window.
type Report struct {
	Window domain.Window
	Rows   []domain.ExportRow
}

type ExportService struct {
	dashboard *DashboardService
	ingest    *IngestService
	client    domain.ExportClient
	logger    *logger.Logger
	metrics   *metrics.Metrics
}

// NewExportService builds the service; client may be nil when no sink is
// configured, in which case only CSV reports are available.
func NewExportService(
	dashboard *DashboardService,
	ingest *IngestService,
	client domain.ExportClient,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *ExportService {
	return &ExportService{
		dashboard: dashboard,
		ingest:    ingest,
		client:    client,
		logger:    logger,
		metrics:   metrics,
	}
}

// BuildReport aggregates the records matching the filter into daily rows. The
// window defaults to the ingest lookback when the filter has no date range.
func (s *ExportService) BuildReport(ctx context.Context, spec domain.FilterSpec) (Report, error) {
	window := s.ingest.DefaultWindow()
	if spec.From != nil {
		window.Since = domain.Day(*spec.From)
	}
	if spec.To != nil {
		window.Until = domain.Day(*spec.To)
	}
	spec.From = &window.Since
	spec.To = &window.Until

	records, _, err := s.dashboard.Records(ctx, spec)
	if err != nil {
		return Report{}, err
	}
	s.metrics.RecordAggregation("export")
	return Report{Window: window, Rows: DailyRows(records)}, nil
}

// CanExport reports whether an export sink is configured.
func (s *ExportService) CanExport() bool {
	return s.client != nil
}

// Run builds the report for the filter and pushes it to the export sink.
func (s *ExportService) Run(ctx context.Context, spec domain.FilterSpec) (Report, error) {
	if s.client == nil {
		return Report{}, ErrExportDisabled
	}

	report, err := s.BuildReport(ctx, spec)
	if err != nil {
		return Report{}, err
	}

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"rows":  len(report.Rows),
		"since": report.Window.Since.Format(domain.DayLayout),
		"until": report.Window.Until.Format(domain.DayLayout),
	})
	log.Info("Exporting daily report")

	if err := s.client.Export(ctx, report.Rows, report.Window); err != nil {
		log.WithError(err).Error("Failed to export daily report")
		return Report{}, fmt.Errorf("failed to export report: %w", err)
	}
	return report, nil
}

// DailyRows groups dated records by day and currency and aggregates each
// group. Rows are ordered by date, then currency.
func DailyRows(records []domain.CanonicalRecord) []domain.ExportRow {
	type rowKey struct {
		day      string
		currency domain.Currency
	}
	groups := lo.GroupBy(
		lo.Filter(records, func(r domain.CanonicalRecord, _ int) bool { return r.HasDate() }),
		func(r domain.CanonicalRecord) rowKey { return rowKey{day: r.DayKey(), currency: r.Currency} },
	)

	keys := lo.Keys(groups)
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].day != keys[j].day {
			return keys[i].day < keys[j].day
		}
		return keys[i].currency < keys[j].currency
	})

	rows := make([]domain.ExportRow, 0, len(keys))
	for _, k := range keys {
		totals := analytics.Aggregate(groups[k])
		ct := totals.ByCurrency[k.currency]
		rows = append(rows, domain.ExportRow{
			Date:              k.day,
			Currency:          k.currency,
			Records:           totals.Records,
			Impressions:       totals.Impressions,
			Clicks:            totals.Clicks,
			Conversions:       totals.Conversions,
			Spend:             ct.Spend.StringFixed(2),
			Revenue:           ct.Revenue.StringFixed(2),
			CTR:               totals.CTR,
			CPC:               ct.CPC,
			CPM:               ct.CPM,
			CostPerConversion: ct.CostPerConversion,
			ROAS:              ct.ROAS,
		})
	}
	return rows
}

// WriteCSV writes rows with a header line.
func WriteCSV(w io.Writer, rows []domain.ExportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			r.Date,
			string(r.Currency),
			strconv.Itoa(r.Records),
			strconv.FormatInt(r.Impressions, 10),
			strconv.FormatInt(r.Clicks, 10),
			strconv.FormatInt(r.Conversions, 10),
			r.Spend,
			r.Revenue,
			ratio(r.CTR),
			ratio(r.CPC),
			ratio(r.CPM),
			ratio(r.CostPerConversion),
			ratio(r.ROAS),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReportFilename names the CSV download for window.
func ReportFilename(window domain.Window) string {
	return fmt.Sprintf("marketing-report-%s-to-%s.csv",
		window.Since.Format(domain.DayLayout), window.Until.Format(domain.DayLayout))
}

func ratio(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
