package infrastructure

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"kpidash/internal/domain"
	"kpidash/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentClientReadsEveryPage(t *testing.T) {
	var pages []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/collections/payment_data/records", r.URL.Path)
		assert.Equal(t, "-created_at", r.URL.Query().Get("sort"))
		assert.Equal(t, "2", r.URL.Query().Get("perPage"))
		assert.Equal(t, "admin-token", r.Header.Get("Authorization"))

		page := r.URL.Query().Get("page")
		pages = append(pages, page)
		items := []map[string]any{
			{"id": "p" + page + "a", "amount": 10, "status": "captured", "created_at": "2024-01-05 10:00:00.000Z"},
			{"id": "p" + page + "b", "amount": 5.5, "status": "failed", "created_at": "2024-01-04 10:00:00.000Z"},
		}
		if page == "2" {
			items = items[:1]
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"page": 1, "perPage": 2, "totalItems": 3, "totalPages": 2, "items": items,
		})
	}))
	defer srv.Close()

	client := NewPaymentClient(newTestHTTPClient(), PaymentOptions{
		BaseURL:  srv.URL + "/",
		Token:    "admin-token",
		PageSize: 2,
	}, logger.Discard())

	records, err := client.FetchRecords(context.Background(), testWindow())
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2"}, pages)
	require.Len(t, records, 3)
	assert.Equal(t, "p1a", records[0]["id"])
	assert.Equal(t, "other", records[0]["platform"])
	assert.Equal(t, "p2a", records[2]["id"])
	assert.Equal(t, "payments", client.Name())
}

func TestPaymentClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]any{"code": 403, "message": "Only admins can perform this action."})
	}))
	defer srv.Close()

	client := NewPaymentClient(newTestHTTPClient(), PaymentOptions{BaseURL: srv.URL}, logger.Discard())

	_, err := client.FetchRecords(context.Background(), testWindow())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstream)
	assert.Contains(t, err.Error(), "Only admins")
}
