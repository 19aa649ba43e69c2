package infrastructure

import (
	"time"

	"kpidash/pkg/logger"
	"kpidash/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

func newTestHTTPClient() *HTTPClient {
	return NewHTTPClient(5*time.Second, 1000, logger.Discard(), metrics.New(prometheus.NewRegistry()))
}
