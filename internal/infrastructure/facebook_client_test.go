package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"kpidash/internal/domain"
	"kpidash/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func testWindow() domain.Window {
	return domain.Window{
		Since: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Until: time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	}
}

func TestFacebookClientFetchRecords(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v21.0/act_1/insights":
			q := r.URL.Query()
			assert.Equal(t, "secret-token", q.Get("access_token"))
			assert.Equal(t, "adset", q.Get("level"))
			assert.Equal(t, "1", q.Get("time_increment"))
			assert.JSONEq(t, `{"since":"2024-01-01","until":"2024-01-31"}`, q.Get("time_range"))
			writeJSON(w, http.StatusOK, map[string]any{
				"data": []map[string]any{{
					"account_id":       "1",
					"account_currency": "EUR",
					"campaign_id":      "c1",
					"adset_id":         "s1",
					"spend":            "12.50",
					"impressions":      "1000",
					"clicks":           "20",
					"date_start":       "2024-01-02",
					"actions": []map[string]any{
						{"action_type": "offsite_conversion.fb_pixel_purchase", "value": "2"},
						{"action_type": "link_click", "value": "20"},
						{"action_type": "onsite_conversion.lead", "value": "1"},
					},
					"action_values": []map[string]any{
						{"action_type": "offsite_conversion.fb_pixel_purchase", "value": "80.25"},
					},
				}},
				"paging": map[string]any{"next": srv.URL + "/page2"},
			})
		case "/page2":
			writeJSON(w, http.StatusOK, map[string]any{
				"data": []map[string]any{{"account_id": "1", "adset_id": "s2", "date_start": "2024-01-03"}},
			})
		case "/v21.0/act_2/insights":
			writeJSON(w, http.StatusOK, map[string]any{
				"data": []map[string]any{{"account_id": "2", "adset_id": "s9", "date_start": "2024-01-02"}},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := NewFacebookClient(newTestHTTPClient(), FacebookOptions{
		BaseURL:     srv.URL,
		APIVersion:  "v21.0",
		AccessToken: "secret-token",
		AccountIDs:  []string{"act_1", "2"},
		Level:       "adset",
		Workers:     2,
	}, logger.Discard())

	records, err := client.FetchRecords(context.Background(), testWindow())
	require.NoError(t, err)
	require.Len(t, records, 3)

	first := records[0]
	assert.Equal(t, "3", first["conversions"])
	assert.Equal(t, "80.25", first["revenue"])
	assert.Equal(t, "facebook", first["platform"])
	assert.Equal(t, "ACTIVE", first["status"])
	assert.Equal(t, "s1:2024-01-02", first["id"])
	assert.NotContains(t, first, "actions")

	assert.Equal(t, "s2", records[1]["adset_id"])
	assert.Equal(t, "s9", records[2]["adset_id"])
}

func TestFacebookClientUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": map[string]any{"message": "Invalid OAuth access token.", "type": "OAuthException", "code": 190},
		})
	}))
	defer srv.Close()

	client := NewFacebookClient(newTestHTTPClient(), FacebookOptions{
		BaseURL:    srv.URL,
		APIVersion: "v21.0",
		AccountIDs: []string{"1"},
	}, logger.Discard())

	_, err := client.FetchRecords(context.Background(), testWindow())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstream)

	var srcErr *domain.SourceError
	require.True(t, errors.As(err, &srcErr))
	assert.Equal(t, http.StatusBadRequest, srcErr.StatusCode)
	assert.Contains(t, srcErr.Error(), "Invalid OAuth access token.")
}

func TestFacebookClientListAccounts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v21.0/me/adaccounts", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{
			"data": []map[string]any{
				{"id": "act_10", "name": "Main", "currency": "USD", "account_status": 1},
				{"id": "act_11", "name": "Old", "currency": "XXX", "account_status": 101},
				{"id": "act_12", "name": "Odd", "currency": "EUR", "account_status": 55},
			},
		})
	}))
	defer srv.Close()

	client := NewFacebookClient(newTestHTTPClient(), FacebookOptions{BaseURL: srv.URL, APIVersion: "v21.0"}, logger.Discard())

	accounts, err := client.ListAccounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.AdAccount{
		{ID: "10", Name: "Main", Status: "ACTIVE", Currency: domain.CurrencyUSD},
		{ID: "11", Name: "Old", Status: "CLOSED", Currency: domain.CurrencyUSD},
		{ID: "12", Name: "Odd", Status: "UNKNOWN", Currency: domain.CurrencyEUR},
	}, accounts)
}
