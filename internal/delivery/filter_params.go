package delivery

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"kpidash/internal/domain"

	"github.com/samber/lo"
)

// ParseFilter reads the common filter query parameters:
//
//	from, to                     YYYY-MM-DD, inclusive
//	status                       comma list of canonical statuses or ALL
//	accounts, campaigns, adsets, ads
//	min_<metric>, max_<metric>   inclusive numeric bounds
//
// List parameters may be repeated or comma separated.
func ParseFilter(q url.Values) (domain.FilterSpec, error) {
	var spec domain.FilterSpec

	from, err := parseDay(q, "from")
	if err != nil {
		return spec, err
	}
	to, err := parseDay(q, "to")
	if err != nil {
		return spec, err
	}
	if from != nil && to != nil && to.Before(*from) {
		return spec, fmt.Errorf("%w: to is before from", domain.ErrInvalidFilter)
	}
	spec.From, spec.To = from, to

	spec.Accounts = queryList(q, "accounts")
	spec.Campaigns = queryList(q, "campaigns")
	spec.AdSets = queryList(q, "adsets")
	spec.Ads = queryList(q, "ads")

	for _, name := range queryList(q, "status") {
		status, ok := domain.ParseStatus(name)
		if !ok {
			return spec, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidFilter, name)
		}
		spec.Statuses = append(spec.Statuses, status)
	}

	for _, m := range domain.Metrics {
		minV, err := parseBound(q, "min_"+string(m))
		if err != nil {
			return spec, err
		}
		maxV, err := parseBound(q, "max_"+string(m))
		if err != nil {
			return spec, err
		}
		if minV == nil && maxV == nil {
			continue
		}
		if minV != nil && maxV != nil && *minV > *maxV {
			return spec, fmt.Errorf("%w: min_%s is above max_%s", domain.ErrInvalidFilter, m, m)
		}
		if spec.Metrics == nil {
			spec.Metrics = make(map[domain.Metric]domain.Range)
		}
		spec.Metrics[m] = domain.Range{Min: minV, Max: maxV}
	}

	return spec, nil
}

// ParseWindow reads since/until, defaulting each side to def.
func ParseWindow(q url.Values, def domain.Window) (domain.Window, error) {
	window := def
	since, err := parseDay(q, "since")
	if err != nil {
		return window, err
	}
	until, err := parseDay(q, "until")
	if err != nil {
		return window, err
	}
	if since != nil {
		window.Since = *since
	}
	if until != nil {
		window.Until = *until
	}
	if window.Until.Before(window.Since) {
		return window, fmt.Errorf("%w: until is before since", domain.ErrInvalidFilter)
	}
	return window, nil
}

func parseDay(q url.Values, key string) (*time.Time, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(domain.DayLayout, v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be in YYYY-MM-DD format", domain.ErrInvalidFilter, key)
	}
	return &t, nil
}

func parseBound(q url.Values, key string) (*float64, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a number", domain.ErrInvalidFilter, key)
	}
	return &f, nil
}

func queryList(q url.Values, key string) []string {
	values := lo.FlatMap(q[key], func(v string, _ int) []string {
		return lo.Map(strings.Split(v, ","), func(s string, _ int) string { return strings.TrimSpace(s) })
	})
	return lo.Uniq(lo.Compact(values))
}

func parseMetric(q url.Values, key string) (domain.Metric, error) {
	v := q.Get(key)
	if v == "" {
		return "", nil
	}
	m, ok := domain.ParseMetric(v)
	if !ok {
		return "", fmt.Errorf("%w: unknown %s %q", domain.ErrInvalidFilter, key, v)
	}
	return m, nil
}

func parseLimit(q url.Values) (int, error) {
	v := q.Get("limit")
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: limit must be a non-negative integer", domain.ErrInvalidFilter)
	}
	return n, nil
}
