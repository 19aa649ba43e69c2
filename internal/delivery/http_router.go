package delivery

import (
	"time"

	"kpidash/internal/delivery/middleware"
	"kpidash/pkg/logger"
	"kpidash/pkg/metrics"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

type HTTPRouter struct {
	handlers *HTTPHandlers
	logger   *logger.Logger
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	timeout  time.Duration
}

func NewHTTPRouter(
	handlers *HTTPHandlers,
	logger *logger.Logger,
	metrics *metrics.Metrics,
	gatherer prometheus.Gatherer,
	timeout time.Duration,
) *HTTPRouter {
	return &HTTPRouter{
		handlers: handlers,
		logger:   logger,
		metrics:  metrics,
		gatherer: gatherer,
		timeout:  timeout,
	}
}

func (r *HTTPRouter) SetupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(r.logger))
	router.Use(middleware.Recovery(r.logger))
	router.Use(middleware.Metrics(r.metrics))
	router.Use(middleware.Timeout(r.timeout))

	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	config.AllowHeaders = []string{"Content-Type", "X-Request-ID"}
	config.ExposeHeaders = []string{"X-Request-ID", "Content-Disposition"}

	router.Use(cors.New(config))

	// Health endpoint
	router.GET("/health", r.handlers.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		v1.GET("/", r.handlers.GetAPIInfo)
		v1.GET("", r.handlers.GetAPIInfo)

		// Snapshot endpoints
		v1.POST("/refresh", r.handlers.Refresh)
		v1.GET("/snapshots", r.handlers.ListSnapshots)
		v1.GET("/accounts", r.handlers.ListAccounts)

		// Analytics endpoints
		v1.GET("/dashboard", r.handlers.GetDashboard)
		v1.GET("/kpi", r.handlers.GetKPI)
		v1.GET("/timeseries", r.handlers.GetTimeseries)
		v1.GET("/distribution", r.handlers.GetDistribution)
		v1.GET("/payments/summary", r.handlers.GetPaymentsSummary)

		// Live view session
		view := v1.Group("/view")
		{
			view.GET("", r.handlers.GetView)
			view.PUT("", r.handlers.ApplyView)
		}

		// Export endpoints
		export := v1.Group("/export")
		{
			export.POST("/run", r.handlers.ExportRun)
			export.GET("/csv", r.handlers.ExportCSV)
		}
	}

	// Prometheus metrics endpoint
	router.GET("/metrics", middleware.PrometheusHandler(r.gatherer))

	return router
}
