package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Retry defaults.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 300 * time.Millisecond
)

// RetryCondition decides whether a failed attempt should be retried.
type RetryCondition func(err error) bool

// RetryAlways retries every failure regardless of kind.
func RetryAlways(error) bool { return true }

// RetryTransient retries only failures that can improve on a second try:
// transport errors and 5xx responses.
func RetryTransient(err error) bool {
	var fe *FetchError
	if !errors.As(err, &fe) {
		return false
	}
	switch fe.Kind {
	case KindTransport:
		return true
	case KindBadStatus:
		return fe.StatusCode >= http.StatusInternalServerError
	}
	return false
}

// ParseRetryMode maps a config value ("always" or "transient") to a
// RetryCondition.
func ParseRetryMode(mode string) (RetryCondition, error) {
	switch strings.ToLower(mode) {
	case "", "always":
		return RetryAlways, nil
	case "transient":
		return RetryTransient, nil
	}
	return nil, fmt.Errorf("unknown retry mode %q: must be always or transient", mode)
}

// RetryPolicy bounds the attempts a single Fetch makes.
//
// The delay before attempt n (n >= 2) is BaseDelay * (n-1).
type RetryPolicy struct {
	MaxAttempts int            // Total attempts including the first (default: 3)
	BaseDelay   time.Duration  // Linear backoff step (default: 300ms)
	RetryOn     RetryCondition // Which failures to retry (default: RetryAlways)
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		RetryOn:     RetryAlways,
	}
}

// withDefaults fills zero fields from DefaultRetryPolicy.
func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.RetryOn == nil {
		p.RetryOn = RetryAlways
	}
	return p
}

// Delay returns the wait before the given attempt (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 2 {
		return 0
	}
	return p.BaseDelay * time.Duration(attempt-1)
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// sleepContext is the default Sleeper.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
