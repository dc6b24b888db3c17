package sla

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound indicates the alert id is unknown.
	ErrNotFound = errors.New("sla: alert not found")
	// ErrInvalidTransition indicates a resolve/cancel on a non-Active alert.
	ErrInvalidTransition = errors.New("sla: alert is not active")
	// ErrRateLimited indicates a manual scan inside the rate-limit window.
	ErrRateLimited = errors.New("sla: scan rate limited")
)

// RateLimitedError carries the retry-after hint for a rejected manual scan.
// errors.Is(err, ErrRateLimited) matches it.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("sla: scan rate limited, retry in %s", e.RetryAfter.Round(time.Millisecond))
}

// Is makes the typed error match the package sentinel.
func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}
