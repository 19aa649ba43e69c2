package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kpidash/internal/analytics"
	"kpidash/internal/delivery"
	"kpidash/internal/domain"
	"kpidash/internal/infrastructure"
	"kpidash/internal/usecase"
	"kpidash/pkg/config"
	"kpidash/pkg/logger"
	"kpidash/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	upstreamTimeout   = 30 * time.Second
	retainedSnapshots = 5
	viewCacheSize     = 512
	shutdownTimeout   = 15 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level)
	log.Info("Starting server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	client := infrastructure.NewHTTPClient(upstreamTimeout, cfg.Ingest.RateLimitPerSecond, log, m)

	var sources []domain.RecordSource
	var accounts delivery.AccountLister
	if cfg.Facebook.AccessToken != "" {
		fb := infrastructure.NewFacebookClient(client, infrastructure.FacebookOptions{
			BaseURL:     cfg.Facebook.BaseURL,
			APIVersion:  cfg.Facebook.APIVersion,
			AccessToken: cfg.Facebook.AccessToken,
			AccountIDs:  cfg.Facebook.AccountIDs,
			Level:       cfg.Facebook.InsightsLevel,
			PageSize:    cfg.Ingest.PageSize,
			Workers:     cfg.Ingest.WorkerPoolSize,
		}, log)
		sources = append(sources, fb)
		accounts = fb
	}
	if cfg.Payments.URL != "" {
		sources = append(sources, infrastructure.NewPaymentClient(client, infrastructure.PaymentOptions{
			BaseURL:    cfg.Payments.URL,
			Collection: cfg.Payments.Collection,
			Token:      cfg.Payments.Token,
			PageSize:   cfg.Ingest.PageSize,
		}, log))
	}

	var exporter domain.ExportClient
	if cfg.Sink.URL != "" {
		exporter = infrastructure.NewSinkClient(client, cfg.Sink.URL, cfg.Sink.Secret, log, m)
	}

	var cache domain.ViewCache = infrastructure.NewMemoryCache(viewCacheSize)
	if cfg.Cache.RedisAddr != "" {
		redisCache, err := infrastructure.NewRedisCache(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB, log)
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, caching views in memory")
		} else {
			defer redisCache.Close()
			cache = redisCache
		}
	}

	repo := infrastructure.NewRecordRepository(retainedSnapshots, log)
	ingest := usecase.NewIngestService(sources, repo, log, m, cfg.Ingest.LookbackDays)
	dashboard := usecase.NewDashboardService(repo, cache, usecase.DashboardOptions{
		DefaultCurrency: domain.Currency(cfg.Analytics.DefaultCurrency),
		Negative:        analytics.ParseNegativeAmounts(cfg.Analytics.NegativeAmounts),
		Locale:          cfg.Analytics.Locale,
		TopN:            cfg.Analytics.TopLabels,
		LabelMaxLen:     cfg.Analytics.LabelMaxLen,
		ExcludedLabels:  cfg.Analytics.ExcludedLabels,
		CacheTTL:        cfg.Cache.TTL,
	}, log, m)
	export := usecase.NewExportService(dashboard, ingest, exporter, log, m)
	session := usecase.NewSession(usecase.LiveCycle(ingest, dashboard), log, m)

	scheduler := usecase.NewScheduler(ingest, export, cfg.Ingest.RefreshSchedule, 0, log)
	if err := scheduler.Start(); err != nil {
		log.WithError(err).Error("Failed to start scheduler")
		os.Exit(1)
	}

	go func() {
		if _, err := ingest.Refresh(ctx, ingest.DefaultWindow(), "startup"); err != nil {
			log.WithError(err).Warn("Initial refresh failed, dashboard stays empty until the next refresh")
		}
	}()

	handlers := delivery.NewHTTPHandlers(ingest, dashboard, export, session, repo, accounts, log, m)
	router := delivery.NewHTTPRouter(handlers, log, m, prometheus.DefaultGatherer, cfg.Server.RequestTimeout).SetupRoutes()

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
		close(serverErrCh)
	}()

	exitCode := 0
	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	case err := <-serverErrCh:
		if err != nil {
			log.WithError(err).Error("HTTP server failed")
			exitCode = 1
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Error("Graceful shutdown failed")
		exitCode = 1
	}
	if err := scheduler.Stop(shutdownCtx); err != nil {
		log.WithError(err).Error("Scheduler did not stop in time")
		exitCode = 1
	}

	if exitCode != 0 {
		cancel()
		stop()
		os.Exit(exitCode)
	}
	log.Info("Server stopped")
}
