package job

import (
	"errors"
	"time"
)

// ErrInvalidDefaultLease indicates the configured default lease duration is not positive.
var ErrInvalidDefaultLease = errors.New("default lease must be positive")

// LeasePolicy normalises lease durations for job claims and progress updates.
type LeasePolicy struct {
	defaultLease time.Duration
}

// NewLeasePolicy constructs a LeasePolicy with the provided default lease duration.
func NewLeasePolicy(defaultLease time.Duration) (*LeasePolicy, error) {
	if defaultLease <= 0 {
		return nil, ErrInvalidDefaultLease
	}
	return &LeasePolicy{defaultLease: defaultLease}, nil
}

// Default returns the configured default lease duration.
func (p *LeasePolicy) Default() time.Duration {
	if p == nil {
		return 0
	}
	return p.defaultLease
}

// ResolveSeconds normalises the requested duration to a whole number of
// seconds. Zero falls back to the default; anything under a second is
// clamped to one.
func (p *LeasePolicy) ResolveSeconds(request time.Duration) int {
	if p == nil {
		return 0
	}
	if request == 0 {
		request = p.defaultLease
	}
	seconds := int64(request / time.Second)
	if seconds <= 0 {
		seconds = 1
	}
	return int(seconds)
}
