package analytics

import (
	"time"

	"kpidash/internal/domain"
)

type idSet map[string]struct{}

func newIDSet(ids []string) idSet {
	if len(ids) == 0 {
		return nil
	}
	s := make(idSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s idSet) has(id string) bool {
	_, ok := s[id]
	return ok
}

// Filter is a FilterSpec compiled against one record collection. The
// collection is needed to learn which parent each selected child belongs to.
type Filter struct {
	from, to *time.Time
	statuses map[domain.Status]struct{}
	metrics  map[domain.Metric]domain.Range

	selected [len(levelsArr)]idSet
	// restricted[l][k] holds the level-k ancestors of the ids selected at
	// level l. Those ancestors are narrowed to their selected children; any
	// other ancestor keeps all of its children.
	restricted [len(levelsArr)][len(levelsArr)]idSet
}

var levelsArr = [...]domain.Level{domain.LevelAccount, domain.LevelCampaign, domain.LevelAdSet, domain.LevelAd}

// CompileFilter prepares the filter for matching records drawn from records.
func CompileFilter(spec domain.FilterSpec, records []domain.CanonicalRecord) *Filter {
	f := &Filter{metrics: spec.Metrics}

	if spec.From != nil {
		from := domain.Day(*spec.From)
		f.from = &from
	}
	if spec.To != nil {
		to := domain.Day(*spec.To)
		f.to = &to
	}

	if !spec.AllStatuses() {
		f.statuses = make(map[domain.Status]struct{}, len(spec.Statuses))
		for _, s := range spec.Statuses {
			f.statuses[s] = struct{}{}
		}
	}

	for _, level := range levelsArr {
		f.selected[level] = newIDSet(spec.Selection(level))
	}

	// First chain seen for every id at every level.
	var chains [len(levelsArr)]map[string]domain.Hierarchy
	for _, level := range levelsArr[1:] {
		if f.selected[level] == nil {
			continue
		}
		chains[level] = make(map[string]domain.Hierarchy)
	}
	for _, rec := range records {
		for _, level := range levelsArr[1:] {
			if chains[level] == nil {
				continue
			}
			id := rec.Hierarchy.ID(level)
			if id == "" {
				continue
			}
			if _, seen := chains[level][id]; !seen {
				chains[level][id] = rec.Hierarchy
			}
		}
	}

	for _, level := range levelsArr[1:] {
		if f.selected[level] == nil {
			continue
		}
		for k := domain.LevelAccount; k < level; k++ {
			set := make(idSet)
			for id := range f.selected[level] {
				if chain, ok := chains[level][id]; ok {
					if anc := chain.ID(k); anc != "" {
						set[anc] = struct{}{}
					}
				}
			}
			f.restricted[level][k] = set
		}
	}

	return f
}

// Match reports whether rec passes every filter dimension.
func (f *Filter) Match(rec domain.CanonicalRecord) bool {
	if f.from != nil || f.to != nil {
		if !rec.HasDate() {
			return false
		}
		if f.from != nil && rec.Date.Before(*f.from) {
			return false
		}
		if f.to != nil && rec.Date.After(*f.to) {
			return false
		}
	}

	if f.statuses != nil {
		if _, ok := f.statuses[rec.Status]; !ok {
			return false
		}
	}

	for _, level := range levelsArr {
		if !f.matchLevel(rec, level) {
			return false
		}
	}

	for m, r := range f.metrics {
		if !r.Contains(MetricValue(rec, m)) {
			return false
		}
	}
	return true
}

func (f *Filter) matchLevel(rec domain.CanonicalRecord, level domain.Level) bool {
	sel := f.selected[level]
	if sel == nil {
		return true
	}
	if sel.has(rec.Hierarchy.ID(level)) {
		return true
	}
	// Find the nearest ancestor level with its own selection. Without one
	// the selection at this level is global.
	for k := level - 1; k >= domain.LevelAccount; k-- {
		if f.selected[k] == nil {
			continue
		}
		return !f.restricted[level][k].has(rec.Hierarchy.ID(k))
	}
	return false
}

// FilterRecords returns the records matching the filter in a freshly allocated
// slice; the input is left untouched.
func FilterRecords(records []domain.CanonicalRecord, spec domain.FilterSpec) []domain.CanonicalRecord {
	f := CompileFilter(spec, records)
	out := make([]domain.CanonicalRecord, 0, len(records))
	for _, rec := range records {
		if f.Match(rec) {
			out = append(out, rec)
		}
	}
	return out
}

// ApplyFilters filters raw records, normalizing each one to evaluate the
// filter. The returned records are the original raw values.
func (n *Normalizer) ApplyFilters(raws []domain.RawRecord, spec domain.FilterSpec) []domain.RawRecord {
	canonical, _ := n.NormalizeAll(raws)
	f := CompileFilter(spec, canonical)
	out := make([]domain.RawRecord, 0, len(raws))
	for i, rec := range canonical {
		if f.Match(rec) {
			out = append(out, raws[i])
		}
	}
	return out
}

// ApplyFilters uses the default normalizer.
func ApplyFilters(raws []domain.RawRecord, spec domain.FilterSpec) []domain.RawRecord {
	return defaultNormalizer.ApplyFilters(raws, spec)
}
