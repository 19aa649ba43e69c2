package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"kpidash/internal/domain"
	"kpidash/pkg/logger"
)

const paymentsSource = "payments"

type PaymentOptions struct {
	BaseURL    string
	Collection string
	Token      string
	PageSize   int
}

// PaymentClient lists payment records from a PocketBase-style collection
// API, newest first. It implements domain.RecordSource.
type PaymentClient struct {
	client *HTTPClient
	opts   PaymentOptions
	logger *logger.Logger
}

func NewPaymentClient(client *HTTPClient, opts PaymentOptions, logger *logger.Logger) *PaymentClient {
	if opts.Collection == "" {
		opts.Collection = "payment_data"
	}
	if opts.PageSize < 1 {
		opts.PageSize = 100
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &PaymentClient{client: client, opts: opts, logger: logger}
}

func (c *PaymentClient) Name() string {
	return paymentsSource
}

type collectionPage struct {
	Page       int              `json:"page"`
	PerPage    int              `json:"perPage"`
	TotalItems int              `json:"totalItems"`
	TotalPages int              `json:"totalPages"`
	Items      []map[string]any `json:"items"`
}

// FetchRecords reads every page of the collection. The store is small and
// has no reliable server-side date filter, so the window is applied later
// by the filter engine like any other date range.
func (c *PaymentClient) FetchRecords(ctx context.Context, window domain.Window) ([]domain.RawRecord, error) {
	header := http.Header{}
	if c.opts.Token != "" {
		header.Set("Authorization", c.opts.Token)
	}

	var out []domain.RawRecord
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("page", fmt.Sprint(page))
		q.Set("perPage", fmt.Sprint(c.opts.PageSize))
		q.Set("sort", "-created_at")
		u := fmt.Sprintf("%s/api/collections/%s/records?%s", c.opts.BaseURL, url.PathEscape(c.opts.Collection), q.Encode())

		var resp collectionPage
		if err := c.client.GetJSON(ctx, paymentsSource, u, header, &resp, collectionErrorMessage); err != nil {
			return nil, err
		}
		for _, item := range resp.Items {
			rec := domain.RawRecord(item).Clone()
			if _, ok := rec["platform"]; !ok {
				rec["platform"] = string(domain.PlatformOther)
			}
			out = append(out, rec)
		}
		if len(resp.Items) == 0 || page >= resp.TotalPages {
			break
		}
	}

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"collection": c.opts.Collection,
		"records":    len(out),
	}).Info("Fetched payment records")

	return out, nil
}

func collectionErrorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.Message
}
