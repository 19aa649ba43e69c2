package usecase

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"kpidash/internal/analytics"
	"kpidash/internal/domain"
	"kpidash/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDailyRows(t *testing.T) {
	records := []domain.CanonicalRecord{
		analytics.Normalize(domain.RawRecord{"date": "2024-03-02", "spend": "10", "currency": "USD", "impressions": "100", "clicks": "2"}),
		analytics.Normalize(domain.RawRecord{"date": "2024-03-01", "spend": "5", "currency": "USD"}),
		analytics.Normalize(domain.RawRecord{"date": "2024-03-01", "spend": "7", "currency": "EUR"}),
		analytics.Normalize(domain.RawRecord{"date": "2024-03-02", "spend": "30", "currency": "USD", "impressions": "300", "clicks": "4"}),
		analytics.Normalize(domain.RawRecord{"spend": "99"}),
	}

	rows := DailyRows(records)
	require.Len(t, rows, 3)

	assert.Equal(t, "2024-03-01", rows[0].Date)
	assert.Equal(t, domain.CurrencyEUR, rows[0].Currency)
	assert.Equal(t, "7.00", rows[0].Spend)
	assert.Equal(t, domain.CurrencyUSD, rows[1].Currency)

	last := rows[2]
	assert.Equal(t, "2024-03-02", last.Date)
	assert.Equal(t, 2, last.Records)
	assert.Equal(t, int64(400), last.Impressions)
	assert.Equal(t, "40.00", last.Spend)
	assert.InDelta(t, 1.5, last.CTR, 1e-9)
	assert.InDelta(t, 100.0, last.CPM, 1e-9)
	assert.InDelta(t, 40.0/6, last.CPC, 1e-9)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	err := WriteCSV(&buf, []domain.ExportRow{{
		Date: "2024-03-01", Currency: domain.CurrencyUSD, Records: 1,
		Impressions: 1000, Clicks: 10, Conversions: 2,
		Spend: "100.00", Revenue: "250.50", CTR: 1, CPC: 10, CPM: 100, CostPerConversion: 50, ROAS: 250.5,
	}})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "date,currency,records,impressions,clicks,conversions,spend,revenue,ctr,cpc,cpm,cost_per_conversion,roas", lines[0])
	assert.Equal(t, "2024-03-01,USD,1,1000,10,2,100.00,250.50,1.00,10.00,100.00,50.00,250.50", lines[1])
}

func TestReportFilename(t *testing.T) {
	name := ReportFilename(domain.Window{Since: day("2024-03-01"), Until: day("2024-03-31")})
	assert.Equal(t, "marketing-report-2024-03-01-to-2024-03-31.csv", name)
}

func TestExportRun(t *testing.T) {
	env := newTestEnv(t)
	env.refresh(t)
	sink := &fakeExporter{}
	export := NewExportService(env.dashboard, env.ingest, sink, logger.Discard(), env.metrics)

	report, err := export.Run(context.Background(), domain.FilterSpec{})
	require.NoError(t, err)

	assert.Equal(t, 1, sink.calls)
	assert.Equal(t, env.ingest.DefaultWindow(), sink.window)
	assert.Equal(t, report.Rows, sink.rows)
	require.Len(t, report.Rows, 2)
	assert.Equal(t, "2024-03-01", report.Rows[0].Date)
	assert.Equal(t, "340.00", report.Rows[0].Revenue)
}

func TestExportRunWithoutSink(t *testing.T) {
	env := newTestEnv(t)
	env.refresh(t)
	export := NewExportService(env.dashboard, env.ingest, nil, logger.Discard(), env.metrics)

	assert.False(t, export.CanExport())
	_, err := export.Run(context.Background(), domain.FilterSpec{})
	assert.ErrorIs(t, err, ErrExportDisabled)

	report, err := export.BuildReport(context.Background(), domain.FilterSpec{})
	require.NoError(t, err)
	assert.Len(t, report.Rows, 2)
}
