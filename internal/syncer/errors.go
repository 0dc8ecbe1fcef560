package syncer

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by operations on a closed Syncer.
var ErrClosed = errors.New("syncer: closed")

// ErrAlreadyStarted is returned by a second call to Start.
var ErrAlreadyStarted = errors.New("syncer: already started")

// Kind classifies a SyncError.
type Kind string

const (
	KindCacheLoadFailed      Kind = "cache_load_failed"
	KindNetworkRefreshFailed Kind = "network_refresh_failed"
	KindDecisionSaveFailed   Kind = "decision_save_failed"
)

// SyncError is the only error shape the presentation layer sees.
// Cause is the underlying store or fetcher error and is logged, never shown.
type SyncError struct {
	Kind  Kind
	Cause error
}

func newError(kind Kind, cause error) *SyncError {
	return &SyncError{Kind: kind, Cause: cause}
}

func (e *SyncError) Error() string {
	if e.Cause == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

func (e *SyncError) Unwrap() error {
	return e.Cause
}

// Message returns the user-facing text for the error kind.
func (e *SyncError) Message() string {
	switch e.Kind {
	case KindCacheLoadFailed:
		return "Failed to load cached data."
	case KindNetworkRefreshFailed:
		return "Couldn't refresh from server. Working offline."
	case KindDecisionSaveFailed:
		return "Failed to save your decision. Try again."
	default:
		return "Something went wrong."
	}
}

// IsKind reports whether err is a *SyncError of the given kind.
func IsKind(err error, kind Kind) bool {
	var se *SyncError
	return errors.As(err, &se) && se.Kind == kind
}
