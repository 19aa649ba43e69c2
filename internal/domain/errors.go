package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUpstream      = errors.New("upstream source failed")
	ErrNoSnapshot    = errors.New("no record snapshot loaded")
	ErrStaleCycle    = errors.New("superseded by a newer filter")
	ErrInvalidFilter = errors.New("invalid filter")
	ErrCacheMiss     = errors.New("cache miss")
)

// SourceError is returned by record sources for transport or auth failures.
type SourceError struct {
	Source     string
	StatusCode int
	Err        error
}

func (e *SourceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Source, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() []error {
	return []error{ErrUpstream, e.Err}
}
