package delivery

import (
	"net/url"
	"testing"
	"time"

	"kpidash/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFilter(t *testing.T) {
	q, err := url.ParseQuery("from=2024-03-01&to=2024-03-31&status=Active,captured&campaigns=c1,c2&campaigns=c2&ads=&min_spend=10&max_ctr=2.5")
	require.NoError(t, err)

	spec, err := ParseFilter(q)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *spec.From)
	assert.Equal(t, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), *spec.To)
	assert.Equal(t, []domain.Status{domain.StatusActive, domain.StatusCaptured}, spec.Statuses)
	assert.Equal(t, []string{"c1", "c2"}, spec.Campaigns)
	assert.Empty(t, spec.Ads)
	assert.Empty(t, spec.Accounts)

	require.Len(t, spec.Metrics, 2)
	assert.Equal(t, 10.0, *spec.Metrics[domain.MetricSpend].Min)
	assert.Nil(t, spec.Metrics[domain.MetricSpend].Max)
	assert.Equal(t, 2.5, *spec.Metrics[domain.MetricCTR].Max)
}

func TestParseFilterEmpty(t *testing.T) {
	spec, err := ParseFilter(url.Values{})
	require.NoError(t, err)
	assert.Nil(t, spec.From)
	assert.Nil(t, spec.To)
	assert.Nil(t, spec.Metrics)
	assert.True(t, spec.AllStatuses())
}

func TestParseFilterRejects(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"bad date", "from=03/01/2024"},
		{"inverted range", "from=2024-03-02&to=2024-03-01"},
		{"unknown status", "status=Refunded"},
		{"bad bound", "min_spend=ten"},
		{"inverted bound", "min_roas=5&max_roas=1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			require.NoError(t, err)
			_, err = ParseFilter(q)
			assert.ErrorIs(t, err, domain.ErrInvalidFilter)
		})
	}
}

func TestParseWindow(t *testing.T) {
	def := domain.Window{
		Since: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Until: time.Date(2024, 3, 30, 0, 0, 0, 0, time.UTC),
	}

	window, err := ParseWindow(url.Values{"since": {"2024-03-10"}}, def)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), window.Since)
	assert.Equal(t, def.Until, window.Until)

	_, err = ParseWindow(url.Values{"until": {"2024-02-01"}}, def)
	assert.ErrorIs(t, err, domain.ErrInvalidFilter)
}

func TestParseLimit(t *testing.T) {
	n, err := parseLimit(url.Values{"limit": {"3"}})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = parseLimit(url.Values{"limit": {"-1"}})
	assert.ErrorIs(t, err, domain.ErrInvalidFilter)
}
