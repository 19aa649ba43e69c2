package domain

import "strings"

type Status string

const (
	StatusCaptured Status = "Captured"
	StatusFailed   Status = "Failed"
	StatusPending  Status = "Pending"
	StatusActive   Status = "Active"
	StatusPaused   Status = "Paused"
	StatusArchived Status = "Archived"
	StatusOther    Status = "Other"

	// StatusAll is the selection sentinel meaning "do not filter by status".
	StatusAll Status = "ALL"
)

// Statuses lists every canonical status.
var Statuses = []Status{
	StatusCaptured,
	StatusFailed,
	StatusPending,
	StatusActive,
	StatusPaused,
	StatusArchived,
	StatusOther,
}

// ParseStatus resolves a canonical status name (case-insensitive) or the
// ALL sentinel. It does not fuzzy-match; that is the normalizer's job.
func ParseStatus(name string) (Status, bool) {
	name = strings.TrimSpace(name)
	if strings.EqualFold(name, string(StatusAll)) {
		return StatusAll, true
	}
	for _, s := range Statuses {
		if strings.EqualFold(name, string(s)) {
			return s, true
		}
	}
	return "", false
}
