package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Range is an inclusive numeric bound; a nil side is unbounded.
type Range struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

func (r Range) Contains(v float64) bool {
	if r.Min != nil && v < *r.Min {
		return false
	}
	if r.Max != nil && v > *r.Max {
		return false
	}
	return true
}

// FilterSpec is the declarative filter applied before aggregation.
// Dimensions are ANDed; values inside one dimension are ORed.
type FilterSpec struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`

	Accounts  []string `json:"accounts,omitempty"`
	Campaigns []string `json:"campaigns,omitempty"`
	AdSets    []string `json:"adsets,omitempty"`
	Ads       []string `json:"ads,omitempty"`

	// Statuses empty or containing StatusAll disables status filtering.
	Statuses []Status `json:"statuses,omitempty"`

	Metrics map[Metric]Range `json:"metrics,omitempty"`
}

// Selection returns the selected identifiers at level.
func (f FilterSpec) Selection(level Level) []string {
	switch level {
	case LevelAccount:
		return f.Accounts
	case LevelCampaign:
		return f.Campaigns
	case LevelAdSet:
		return f.AdSets
	case LevelAd:
		return f.Ads
	}
	return nil
}

// AllStatuses reports whether the status dimension is unconstrained.
func (f FilterSpec) AllStatuses() bool {
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if s == StatusAll {
			return true
		}
	}
	return false
}

// Fingerprint is a stable digest of the filter, independent of selection order.
func (f FilterSpec) Fingerprint() string {
	var b strings.Builder
	day := func(t *time.Time) string {
		if t == nil {
			return "-"
		}
		return Day(*t).Format(DayLayout)
	}
	fmt.Fprintf(&b, "from=%s;to=%s;", day(f.From), day(f.To))
	for _, level := range Levels {
		fmt.Fprintf(&b, "%s=%s;", level, sortedJoin(f.Selection(level)))
	}

	statuses := make([]string, 0, len(f.Statuses))
	if !f.AllStatuses() {
		for _, s := range f.Statuses {
			statuses = append(statuses, string(s))
		}
	}
	fmt.Fprintf(&b, "status=%s;", sortedJoin(statuses))

	metrics := make([]string, 0, len(f.Metrics))
	for m := range f.Metrics {
		metrics = append(metrics, string(m))
	}
	sort.Strings(metrics)
	for _, m := range metrics {
		r := f.Metrics[Metric(m)]
		fmt.Fprintf(&b, "%s=[%s,%s];", m, bound(r.Min), bound(r.Max))
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func sortedJoin(values []string) string {
	out := append([]string(nil), values...)
	sort.Strings(out)
	return strings.Join(out, ",")
}

func bound(v *float64) string {
	if v == nil {
		return "*"
	}
	return fmt.Sprintf("%g", *v)
}
