// Package reconcile merges freshly fetched profile batches into the local
// store while keeping one record per id and every recorded decision.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/profilesync/internal/metrics"
	"github.com/roach88/profilesync/internal/profile"
)

// Store is the subset of the local store the reconciler writes through.
// Satisfied by *store.Store.
type Store interface {
	RemoveDuplicates(ctx context.Context) (int64, error)
	Upsert(ctx context.Context, batch []profile.Profile) error
}

// Result summarizes one reconciliation.
type Result struct {
	Merged            int   // Profiles in the fetched batch
	DuplicatesRemoved int64 // Rows dropped by the pre-merge repair
}

// Reconciler merges fetched batches into a Store.
type Reconciler struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the logger. Defaults to discarding output.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reconciler) {
		r.metrics = m
	}
}

// New creates a Reconciler writing to s.
func New(s Store, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:  s,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile repairs any duplicate ids in the store, then upserts fetched.
//
// Afterwards every fetched id has exactly one record, and its decision is
// whatever it was before the call ("none" for new records). An empty batch
// still runs the repair step.
func (r *Reconciler) Reconcile(ctx context.Context, fetched []profile.Profile) (Result, error) {
	removed, err := r.store.RemoveDuplicates(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("reconcile: remove duplicates: %w", err)
	}
	if removed > 0 {
		r.logger.Warn("removed duplicate profiles before merge", "removed", removed)
	}

	res := Result{Merged: len(fetched), DuplicatesRemoved: removed}

	if len(fetched) > 0 {
		if err := r.store.Upsert(ctx, fetched); err != nil {
			r.metrics.RecordReconcile(0, removed)
			return Result{DuplicatesRemoved: removed}, fmt.Errorf("reconcile: upsert: %w", err)
		}
	}

	r.metrics.RecordReconcile(res.Merged, removed)
	r.logger.Debug("reconciled batch", "merged", res.Merged, "duplicates_removed", removed)
	return res, nil
}
