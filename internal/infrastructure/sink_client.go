package infrastructure

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"kpidash/internal/domain"
	"kpidash/pkg/logger"
	"kpidash/pkg/metrics"
)

const sinkAPI = "sink"

var ErrSinkNotConfigured = errors.New("sink URL not configured")

// SinkClient pushes daily KPI rows to an HTTP sink. It implements
// domain.ExportClient.
type SinkClient struct {
	client  *HTTPClient
	url     string
	secret  string
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewSinkClient(client *HTTPClient, url, secret string, logger *logger.Logger, metrics *metrics.Metrics) *SinkClient {
	return &SinkClient{client: client, url: url, secret: secret, logger: logger, metrics: metrics}
}

type exportPayload struct {
	Since string             `json:"since"`
	Until string             `json:"until"`
	Rows  []domain.ExportRow `json:"rows"`
}

func (c *SinkClient) Export(ctx context.Context, rows []domain.ExportRow, window domain.Window) error {
	if c.url == "" {
		return ErrSinkNotConfigured
	}

	start := time.Now()

	payload, err := json.Marshal(exportPayload{
		Since: window.Since.Format(domain.DayLayout),
		Until: window.Until.Format(domain.DayLayout),
		Rows:  rows,
	})
	if err != nil {
		c.metrics.RecordExternalAPIFailure(sinkAPI, "json_marshal")
		return fmt.Errorf("failed to marshal export data: %w", err)
	}

	header := http.Header{}
	// Add HMAC signature if secret is provided
	if c.secret != "" {
		header.Set("X-Signature", Sign(c.secret, payload))
	}

	if err := c.client.PostJSON(ctx, sinkAPI, c.url, header, payload); err != nil {
		return fmt.Errorf("failed to export data: %w", err)
	}

	c.metrics.RecordExportRows(sinkAPI, len(rows))

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"duration": time.Since(start),
		"records":  len(rows),
		"since":    window.Since.Format(domain.DayLayout),
		"until":    window.Until.Format(domain.DayLayout),
	}).Info("Successfully exported data")

	return nil
}

// Sign returns the hex HMAC-SHA256 of payload under secret.
func Sign(secret string, payload []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
