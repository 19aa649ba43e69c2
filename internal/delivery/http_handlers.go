package delivery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"kpidash/internal/domain"
	"kpidash/internal/usecase"
	"kpidash/pkg/logger"
	"kpidash/pkg/metrics"

	"github.com/gin-gonic/gin"
)

// AccountLister lists the ad accounts the configured token can read.
type AccountLister interface {
	ListAccounts(ctx context.Context) ([]domain.AdAccount, error)
}

// handles HTTP requests
type HTTPHandlers struct {
	ingest    *usecase.IngestService
	dashboard *usecase.DashboardService
	export    *usecase.ExportService
	session   *usecase.Session
	repo      domain.RecordRepository
	accounts  AccountLister
	logger    *logger.Logger
	metrics   *metrics.Metrics
}

// creates new HTTP handlers; accounts may be nil when no ad platform is configured
func NewHTTPHandlers(
	ingest *usecase.IngestService,
	dashboard *usecase.DashboardService,
	export *usecase.ExportService,
	session *usecase.Session,
	repo domain.RecordRepository,
	accounts AccountLister,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *HTTPHandlers {
	return &HTTPHandlers{
		ingest:    ingest,
		dashboard: dashboard,
		export:    export,
		session:   session,
		repo:      repo,
		accounts:  accounts,
		logger:    logger,
		metrics:   metrics,
	}
}

// errorStatus maps service errors onto HTTP status codes. A deadline is
// checked before ErrUpstream so a timed-out upstream call reports 504.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidFilter):
		return http.StatusBadRequest, "Invalid parameters"
	case errors.Is(err, domain.ErrNoSnapshot):
		return http.StatusConflict, "No data loaded"
	case errors.Is(err, domain.ErrStaleCycle):
		return http.StatusConflict, "Superseded by a newer filter"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Request timed out"
	case errors.Is(err, domain.ErrUpstream):
		return http.StatusBadGateway, "Upstream source failed"
	case errors.Is(err, usecase.ErrExportDisabled):
		return http.StatusServiceUnavailable, "Export not configured"
	}
	return http.StatusInternalServerError, "Internal server error"
}

func (h *HTTPHandlers) fail(c *gin.Context, err error, msg string) {
	status, title := errorStatus(err)
	log := h.logger.WithContext(c.Request.Context()).WithError(err)
	if status >= http.StatusInternalServerError {
		log.Error(msg)
	} else {
		log.Warn(msg)
	}
	c.JSON(status, gin.H{
		"error":      title,
		"message":    err.Error(),
		"request_id": c.GetString("request_id"),
	})
}

func (h *HTTPHandlers) filter(c *gin.Context) (domain.FilterSpec, bool) {
	spec, err := ParseFilter(c.Request.URL.Query())
	if err != nil {
		h.fail(c, err, "Rejected filter")
		return spec, false
	}
	return spec, true
}

// Refresh fetches every source and stores a new snapshot
func (h *HTTPHandlers) Refresh(c *gin.Context) {
	ctx := c.Request.Context()

	window, err := ParseWindow(c.Request.URL.Query(), h.ingest.DefaultWindow())
	if err != nil {
		h.fail(c, err, "Rejected refresh window")
		return
	}

	snapshot, err := h.ingest.Refresh(ctx, window, "manual")
	if err != nil {
		h.fail(c, err, "Refresh failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "Refresh completed successfully",
		"snapshot":   snapshot,
		"records":    len(snapshot.Records),
		"since":      window.Since.Format(domain.DayLayout),
		"until":      window.Until.Format(domain.DayLayout),
		"request_id": c.GetString("request_id"),
	})
}

// ListSnapshots returns the retained snapshots, newest first
func (h *HTTPHandlers) ListSnapshots(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"data":       h.repo.List(c.Request.Context()),
		"request_id": c.GetString("request_id"),
	})
}

// ListAccounts returns the ad accounts visible to the access token
func (h *HTTPHandlers) ListAccounts(c *gin.Context) {
	if h.accounts == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":      "Ad platform not configured",
			"message":    "set FB_ACCESS_TOKEN to list ad accounts",
			"request_id": c.GetString("request_id"),
		})
		return
	}

	accounts, err := h.accounts.ListAccounts(c.Request.Context())
	if err != nil {
		h.fail(c, err, "Failed to list ad accounts")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":       accounts,
		"total":      len(accounts),
		"request_id": c.GetString("request_id"),
	})
}

// GetDashboard returns the full view for the filter
func (h *HTTPHandlers) GetDashboard(c *gin.Context) {
	spec, ok := h.filter(c)
	if !ok {
		return
	}
	view, err := h.dashboard.Dashboard(c.Request.Context(), spec)
	if err != nil {
		h.fail(c, err, "Failed to build dashboard")
		return
	}
	c.JSON(http.StatusOK, view)
}

// ApplyView runs a live cycle for the filter; a newer filter supersedes it
func (h *HTTPHandlers) ApplyView(c *gin.Context) {
	spec, ok := h.filter(c)
	if !ok {
		return
	}
	view, err := h.session.Apply(c.Request.Context(), spec)
	if err != nil {
		h.fail(c, err, "View cycle did not commit")
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetView returns the last committed live view
func (h *HTTPHandlers) GetView(c *gin.Context) {
	view := h.session.Current()
	if view == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":      "No view committed",
			"message":    "PUT /api/v1/view to compute one",
			"request_id": c.GetString("request_id"),
		})
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetKPI returns the KPI totals for the filter
func (h *HTTPHandlers) GetKPI(c *gin.Context) {
	spec, ok := h.filter(c)
	if !ok {
		return
	}
	totals, err := h.dashboard.KPI(c.Request.Context(), spec)
	if err != nil {
		h.fail(c, err, "Failed to aggregate KPIs")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":       totals,
		"request_id": c.GetString("request_id"),
	})
}

// GetTimeseries returns daily buckets of one summable measure
func (h *HTTPHandlers) GetTimeseries(c *gin.Context) {
	spec, ok := h.filter(c)
	if !ok {
		return
	}
	q := c.Request.URL.Query()

	measure, err := parseMetric(q, "measure")
	if err != nil {
		h.fail(c, err, "Rejected measure")
		return
	}
	var currency domain.Currency
	if v := q.Get("currency"); v != "" {
		cur, ok := domain.ParseCurrency(v)
		if !ok {
			h.fail(c, fmt.Errorf("%w: unsupported currency %q", domain.ErrInvalidFilter, v), "Rejected currency")
			return
		}
		currency = cur
	}

	buckets, err := h.dashboard.Timeseries(c.Request.Context(), spec, measure, currency)
	if err != nil {
		h.fail(c, err, "Failed to build time series")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":       buckets,
		"request_id": c.GetString("request_id"),
	})
}

// GetDistribution ranks records along one dimension
func (h *HTTPHandlers) GetDistribution(c *gin.Context) {
	spec, ok := h.filter(c)
	if !ok {
		return
	}
	q := c.Request.URL.Query()

	measure, err := parseMetric(q, "measure")
	if err != nil {
		h.fail(c, err, "Rejected measure")
		return
	}
	limit, err := parseLimit(q)
	if err != nil {
		h.fail(c, err, "Rejected limit")
		return
	}
	by := q.Get("by")
	if by == "" {
		by = usecase.DimensionPlatform
	}

	slices, err := h.dashboard.Distribution(c.Request.Context(), spec, by, measure, limit)
	if err != nil {
		h.fail(c, err, "Failed to build distribution")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"by":         by,
		"data":       slices,
		"request_id": c.GetString("request_id"),
	})
}

// GetPaymentsSummary summarizes payment-store records
func (h *HTTPHandlers) GetPaymentsSummary(c *gin.Context) {
	spec, ok := h.filter(c)
	if !ok {
		return
	}
	summary, err := h.dashboard.Payments(c.Request.Context(), spec)
	if err != nil {
		h.fail(c, err, "Failed to summarize payments")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":       summary,
		"request_id": c.GetString("request_id"),
	})
}

// ExportRun pushes the daily rows for the filter to the export sink
func (h *HTTPHandlers) ExportRun(c *gin.Context) {
	spec, ok := h.filter(c)
	if !ok {
		return
	}
	report, err := h.export.Run(c.Request.Context(), spec)
	if err != nil {
		h.fail(c, err, "Export failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":    "Export completed successfully",
		"rows":       len(report.Rows),
		"since":      report.Window.Since.Format(domain.DayLayout),
		"until":      report.Window.Until.Format(domain.DayLayout),
		"request_id": c.GetString("request_id"),
	})
}

// ExportCSV downloads the daily rows for the filter
func (h *HTTPHandlers) ExportCSV(c *gin.Context) {
	spec, ok := h.filter(c)
	if !ok {
		return
	}
	report, err := h.export.BuildReport(c.Request.Context(), spec)
	if err != nil {
		h.fail(c, err, "Failed to build CSV report")
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", usecase.ReportFilename(report.Window)))
	c.Status(http.StatusOK)
	if err := usecase.WriteCSV(c.Writer, report.Rows); err != nil {
		h.logger.WithContext(c.Request.Context()).WithError(err).Error("Failed to write CSV report")
		return
	}
	h.metrics.RecordExportRows("csv", len(report.Rows))
}

// GetAPIInfo returns API v1 information and available endpoints
func (h *HTTPHandlers) GetAPIInfo(c *gin.Context) {
	filterParams := gin.H{
		"from":         "Optional: Start date (YYYY-MM-DD), inclusive",
		"to":           "Optional: End date (YYYY-MM-DD), inclusive",
		"status":       "Optional: Comma list of statuses, or ALL",
		"accounts":     "Optional: Comma list of account ids",
		"campaigns":    "Optional: Comma list of campaign ids",
		"adsets":       "Optional: Comma list of ad set ids",
		"ads":          "Optional: Comma list of ad ids",
		"min_<metric>": "Optional: Inclusive lower bound on a record metric",
		"max_<metric>": "Optional: Inclusive upper bound on a record metric",
	}

	c.JSON(http.StatusOK, gin.H{
		"api_version": "v1",
		"service":     "KPI Dashboard",
		"version":     "1.0.0",
		"description": "Marketing and payments KPI analytics over ad-platform insights and payment records",
		"endpoints": gin.H{
			"refresh": gin.H{
				"path":        "/api/v1/refresh",
				"methods":     []string{"POST"},
				"description": "Fetch every source and store a new snapshot",
				"parameters":  gin.H{"since": "Optional: YYYY-MM-DD", "until": "Optional: YYYY-MM-DD"},
				"example":     "/api/v1/refresh?since=2025-01-01&until=2025-01-31",
			},
			"snapshots": gin.H{"path": "/api/v1/snapshots", "methods": []string{"GET"}},
			"accounts":  gin.H{"path": "/api/v1/accounts", "methods": []string{"GET"}},
			"dashboard": gin.H{
				"path":       "/api/v1/dashboard",
				"methods":    []string{"GET"},
				"parameters": filterParams,
				"example":    "/api/v1/dashboard?from=2025-01-01&to=2025-01-31&status=Active",
			},
			"view": gin.H{
				"path":        "/api/v1/view",
				"methods":     []string{"GET", "PUT"},
				"description": "PUT runs a live fetch and aggregate for the filter; GET returns the last committed view",
				"parameters":  filterParams,
			},
			"kpi": gin.H{"path": "/api/v1/kpi", "methods": []string{"GET"}, "parameters": filterParams},
			"timeseries": gin.H{
				"path":    "/api/v1/timeseries",
				"methods": []string{"GET"},
				"example": "/api/v1/timeseries?measure=spend&currency=USD",
			},
			"distribution": gin.H{
				"path":    "/api/v1/distribution",
				"methods": []string{"GET"},
				"example": "/api/v1/distribution?by=campaign&measure=spend&limit=5",
			},
			"payments": gin.H{"path": "/api/v1/payments/summary", "methods": []string{"GET"}},
			"export": gin.H{
				"run": gin.H{"path": "/api/v1/export/run", "methods": []string{"POST"}},
				"csv": gin.H{"path": "/api/v1/export/csv", "methods": []string{"GET"}},
			},
		},
		"business_metrics": gin.H{
			"ctr":                 "Click-through rate (clicks / impressions x 100)",
			"cpc":                 "Cost per click (spend / clicks)",
			"cpm":                 "Cost per mille (spend / impressions x 1000)",
			"cost_per_conversion": "Spend / conversions",
			"roas":                "Return on ad spend (revenue / spend x 100)",
		},
		"request_id": c.GetString("request_id"),
	})
}

// HealthCheck returns the health status of the service
func (h *HTTPHandlers) HealthCheck(c *gin.Context) {
	health := gin.H{
		"status":     "healthy",
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"service":    "kpidash",
		"version":    "1.0.0",
		"request_id": c.GetString("request_id"),
	}

	if snapshot, err := h.repo.Latest(c.Request.Context()); err == nil {
		health["snapshot"] = gin.H{
			"generation": snapshot.Generation,
			"fetched_at": snapshot.FetchedAt.UTC().Format(time.RFC3339),
		}
	} else {
		health["snapshot"] = nil
	}

	c.JSON(http.StatusOK, health)
}
