package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"kpidash/internal/domain"
	"kpidash/pkg/logger"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const facebookSource = "facebook"

var insightFields = []string{
	"account_id",
	"account_currency",
	"campaign_id",
	"campaign_name",
	"adset_id",
	"adset_name",
	"ad_id",
	"ad_name",
	"impressions",
	"clicks",
	"inline_link_clicks",
	"spend",
	"actions",
	"action_values",
	"objective",
	"date_start",
	"date_stop",
}

// conversionActionTypes are the actions counted as conversions; their
// action_values make up revenue.
var conversionActionTypes = lo.SliceToMap([]string{
	"purchase",
	"lead",
	"complete_registration",
	"onsite_conversion.purchase",
	"onsite_conversion.lead",
	"onsite_conversion.complete_registration",
	"offsite_conversion.fb_pixel_purchase",
	"offsite_conversion.fb_pixel_lead",
	"offsite_conversion.fb_pixel_complete_registration",
}, func(t string) (string, struct{}) { return t, struct{}{} })

type FacebookOptions struct {
	BaseURL     string
	APIVersion  string
	AccessToken string
	AccountIDs  []string
	// Level is the insights breakdown: account, campaign, adset or ad.
	Level    string
	PageSize int
	Workers  int
}

// FacebookClient reads daily ad insights from the Graph API. It implements
// domain.RecordSource.
type FacebookClient struct {
	client *HTTPClient
	opts   FacebookOptions
	logger *logger.Logger
}

func NewFacebookClient(client *HTTPClient, opts FacebookOptions, logger *logger.Logger) *FacebookClient {
	if opts.Level == "" {
		opts.Level = "ad"
	}
	if opts.PageSize < 1 {
		opts.PageSize = 500
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &FacebookClient{client: client, opts: opts, logger: logger}
}

func (c *FacebookClient) Name() string {
	return facebookSource
}

type graphPage struct {
	Data   []map[string]any `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
}

// FetchRecords fetches every configured account concurrently, bounded by
// the worker count, and concatenates the results in account order.
func (c *FacebookClient) FetchRecords(ctx context.Context, window domain.Window) ([]domain.RawRecord, error) {
	results := make([][]domain.RawRecord, len(c.opts.AccountIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Workers)
	for i, id := range c.opts.AccountIDs {
		g.Go(func() error {
			recs, err := c.fetchAccount(gctx, id, window)
			if err != nil {
				return fmt.Errorf("account %s: %w", id, err)
			}
			results[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []domain.RawRecord
	for _, recs := range results {
		out = append(out, recs...)
	}

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"accounts": len(c.opts.AccountIDs),
		"records":  len(out),
		"since":    window.Since.Format(domain.DayLayout),
		"until":    window.Until.Format(domain.DayLayout),
	}).Info("Fetched ad insights")

	return out, nil
}

func (c *FacebookClient) fetchAccount(ctx context.Context, accountID string, window domain.Window) ([]domain.RawRecord, error) {
	timeRange, err := json.Marshal(map[string]string{
		"since": window.Since.Format(domain.DayLayout),
		"until": window.Until.Format(domain.DayLayout),
	})
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("access_token", c.opts.AccessToken)
	q.Set("fields", strings.Join(insightFields, ","))
	q.Set("level", c.opts.Level)
	q.Set("time_range", string(timeRange))
	q.Set("time_increment", "1")
	q.Set("limit", fmt.Sprint(c.opts.PageSize))
	next := fmt.Sprintf("%s/%s/%s/insights?%s", c.opts.BaseURL, c.opts.APIVersion, accountPath(accountID), q.Encode())

	var out []domain.RawRecord
	for next != "" {
		var page graphPage
		if err := c.client.GetJSON(ctx, facebookSource, next, nil, &page, graphErrorMessage); err != nil {
			return nil, err
		}
		for _, row := range page.Data {
			out = append(out, insightRecord(row))
		}
		next = page.Paging.Next
	}
	return out, nil
}

// ListAccounts returns the ad accounts visible to the access token.
func (c *FacebookClient) ListAccounts(ctx context.Context) ([]domain.AdAccount, error) {
	q := url.Values{}
	q.Set("access_token", c.opts.AccessToken)
	q.Set("fields", "id,name,currency,account_status")
	q.Set("limit", fmt.Sprint(c.opts.PageSize))
	next := fmt.Sprintf("%s/%s/me/adaccounts?%s", c.opts.BaseURL, c.opts.APIVersion, q.Encode())

	var accounts []domain.AdAccount
	for next != "" {
		var page graphPage
		if err := c.client.GetJSON(ctx, facebookSource, next, nil, &page, graphErrorMessage); err != nil {
			return nil, err
		}
		for _, row := range page.Data {
			status, _ := row["account_status"].(json.Number)
			code, _ := status.Int64()
			currency, ok := domain.ParseCurrency(fmt.Sprint(row["currency"]))
			if !ok {
				currency = domain.DefaultCurrency
			}
			accounts = append(accounts, domain.AdAccount{
				ID:       strings.TrimPrefix(fmt.Sprint(row["id"]), "act_"),
				Name:     fmt.Sprint(row["name"]),
				Status:   domain.AccountStatusName(int(code)),
				Currency: currency,
			})
		}
		next = page.Paging.Next
	}
	return accounts, nil
}

func accountPath(id string) string {
	return "act_" + strings.TrimPrefix(id, "act_")
}

// insightRecord flattens one insights row into the shape the normalizer
// reads: conversions and revenue come from the conversion actions.
func insightRecord(row map[string]any) domain.RawRecord {
	rec := domain.RawRecord(row).Clone()

	conversions := sumActions(row["actions"])
	revenue := sumActions(row["action_values"])
	delete(rec, "actions")
	delete(rec, "action_values")

	rec["conversions"] = conversions.String()
	rec["revenue"] = revenue.String()
	rec["platform"] = facebookSource
	if _, ok := rec["status"]; !ok {
		rec["status"] = "ACTIVE"
	}
	if _, ok := rec["id"]; !ok {
		rec["id"] = insightID(rec)
	}
	return rec
}

func sumActions(v any) decimal.Decimal {
	total := decimal.Zero
	list, ok := v.([]any)
	if !ok {
		return total
	}
	for _, item := range list {
		action, ok := item.(map[string]any)
		if !ok {
			continue
		}
		actionType, _ := action["action_type"].(string)
		if _, counted := conversionActionTypes[actionType]; !counted {
			continue
		}
		if d, err := decimal.NewFromString(fmt.Sprint(action["value"])); err == nil {
			total = total.Add(d)
		}
	}
	return total
}

// insightID keys a daily insights row by its deepest id and day.
func insightID(rec domain.RawRecord) string {
	for _, k := range []string{"ad_id", "adset_id", "campaign_id", "account_id"} {
		if v, ok := rec[k].(string); ok && v != "" {
			return fmt.Sprintf("%s:%v", v, rec["date_start"])
		}
	}
	return ""
}

func graphErrorMessage(body []byte) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    int    `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Error.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (%s %d)", payload.Error.Message, payload.Error.Type, payload.Error.Code)
}
