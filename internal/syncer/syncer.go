package syncer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/profilesync/internal/connectivity"
	"github.com/roach88/profilesync/internal/metrics"
	"github.com/roach88/profilesync/internal/profile"
	"github.com/roach88/profilesync/internal/reconcile"
)

// DefaultBatchSize is the number of profiles requested per refresh.
const DefaultBatchSize = 10

// Cycle outcomes recorded in metrics.
const (
	outcomeRefreshed = "refreshed"
	outcomeOffline   = "offline"
	outcomeFailed    = "failed"
	outcomeCancelled = "cancelled"
)

// Store is the read side of the local store plus decision writes.
type Store interface {
	FetchAll(ctx context.Context) ([]profile.StoredProfile, error)
	SetDecision(ctx context.Context, id string, decision profile.Decision) (bool, error)
}

// Fetcher retrieves a batch of remote profiles.
type Fetcher interface {
	Fetch(ctx context.Context, count int) ([]profile.Profile, error)
}

// Reconciler merges a fetched batch into the store.
type Reconciler interface {
	Reconcile(ctx context.Context, fetched []profile.Profile) (reconcile.Result, error)
}

// Connectivity reports whether a cycle should attempt a network refresh.
//
// If the value also implements Runner, Start runs it until Close. If it
// implements Notifier, changes are reflected in State.Online as they happen.
type Connectivity interface {
	Online() bool
}

// Runner is a long-lived loop such as *connectivity.Monitor.
type Runner interface {
	Run(ctx context.Context) error
}

// Notifier delivers connectivity changes.
type Notifier interface {
	Subscribe() (<-chan bool, func())
}

// Config holds the collaborators of a Syncer.
type Config struct {
	Store        Store
	Fetcher      Fetcher
	Reconciler   Reconciler
	Connectivity Connectivity // defaults to always online
	BatchSize    int          // defaults to DefaultBatchSize
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
	IDs          CycleIDGenerator // defaults to UUIDv7Generator
	Tracer       trace.Tracer
}

// Syncer owns the published State and runs load cycles.
type Syncer struct {
	store        Store
	fetcher      Fetcher
	reconciler   Reconciler
	connectivity Connectivity
	batchSize    int
	logger       *slog.Logger
	metrics      *metrics.Metrics
	ids          CycleIDGenerator
	tracer       trace.Tracer

	mu      sync.Mutex
	state   State
	gen     uint64             // generation of the current cycle
	cancel  context.CancelFunc // cancels the current cycle, nil when idle
	base    context.Context    // parent of cycles started by Refresh
	stop    context.CancelFunc // cancels base
	started bool
	closed  bool

	// readSeq numbers store reads in the order they start; publishedSeq is
	// the newest read whose profiles are in state. An older read finishing
	// late never replaces a newer one.
	readSeq      uint64
	publishedSeq uint64

	subs    map[int]chan State
	nextSub int

	wg sync.WaitGroup
}

type cycle struct {
	ctx    context.Context
	cancel context.CancelFunc
	gen    uint64
	id     string
}

// New creates a Syncer. It does not start any goroutine; call Start or Load.
func New(cfg Config) (*Syncer, error) {
	if cfg.Store == nil {
		return nil, errors.New("syncer: Store is required")
	}
	if cfg.Fetcher == nil {
		return nil, errors.New("syncer: Fetcher is required")
	}
	if cfg.Reconciler == nil {
		return nil, errors.New("syncer: Reconciler is required")
	}
	if cfg.Connectivity == nil {
		cfg.Connectivity = connectivity.NewStatic(true)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.IDs == nil {
		cfg.IDs = UUIDv7Generator{}
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer("github.com/roach88/profilesync/internal/syncer")
	}

	base, stop := context.WithCancel(context.Background())
	return &Syncer{
		store:        cfg.Store,
		fetcher:      cfg.Fetcher,
		reconciler:   cfg.Reconciler,
		connectivity: cfg.Connectivity,
		batchSize:    cfg.BatchSize,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		ids:          cfg.IDs,
		tracer:       cfg.Tracer,
		state: State{
			Profiles: []profile.StoredProfile{},
			Online:   cfg.Connectivity.Online(),
			Phase:    PhaseIdle,
		},
		base: base,
		stop: stop,
		subs: make(map[int]chan State),
	}, nil
}

// Start runs the connectivity loop (when Connectivity is a Runner) and
// kicks off an initial cycle in the background. Everything started here
// stops when ctx is done or Close is called.
func (s *Syncer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.stop()
	s.base, s.stop = context.WithCancel(ctx)
	base := s.base

	runner, isRunner := s.connectivity.(Runner)
	notifier, isNotifier := s.connectivity.(Notifier)
	if isRunner {
		s.wg.Add(1)
	}
	if isNotifier {
		s.wg.Add(1)
	}
	s.mu.Unlock()

	if isRunner {
		go func() {
			defer s.wg.Done()
			if err := runner.Run(base); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Warn("connectivity monitor stopped", "error", err)
			}
		}()
	}
	if isNotifier {
		ch, unsubscribe := notifier.Subscribe()
		go func() {
			defer s.wg.Done()
			defer unsubscribe()
			s.watchConnectivity(base, ch)
		}()
	}

	return s.Refresh()
}

func (s *Syncer) watchConnectivity(ctx context.Context, ch <-chan bool) {
	for {
		select {
		case <-ctx.Done():
			return
		case online, ok := <-ch:
			if !ok {
				return
			}
			s.mu.Lock()
			if s.state.Online != online {
				s.state.Online = online
				s.broadcastLocked()
			}
			s.mu.Unlock()
		}
	}
}

// Load runs one cycle synchronously, cancelling any cycle in flight.
//
// The outcome is always published to State. The return value mirrors it for
// callers that run a single cycle: nil on success (including an offline
// cycle that only read the cache), the cycle's *SyncError, the context error
// if the cycle was cancelled or superseded, or ErrClosed.
func (s *Syncer) Load(ctx context.Context) error {
	c, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer s.wg.Done()
	return s.run(c)
}

// Refresh cancels any cycle in flight and starts a new one in the
// background. It returns ErrClosed after Close.
func (s *Syncer) Refresh() error {
	c, err := s.begin(nil)
	if err != nil {
		return err
	}
	go func() {
		defer s.wg.Done()
		_ = s.run(c)
	}()
	return nil
}

// begin makes a new cycle current. A nil parent means the Start context.
// The caller owns one wg count on success.
func (s *Syncer) begin(parent context.Context) (*cycle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if parent == nil {
		parent = s.base
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	s.wg.Add(1)

	return &cycle{ctx: ctx, cancel: cancel, gen: s.gen, id: s.ids.Generate()}, nil
}

func (s *Syncer) run(c *cycle) error {
	defer c.cancel()

	start := time.Now()
	outcome, syncErr := s.runCycle(c)
	s.finish(c)
	s.metrics.ObserveCycle(outcome, time.Since(start))

	if outcome == outcomeCancelled {
		if err := c.ctx.Err(); err != nil {
			return err
		}
		return context.Canceled
	}
	if syncErr != nil {
		return syncErr
	}
	return nil
}

func (s *Syncer) runCycle(c *cycle) (outcome string, syncErr *SyncError) {
	ctx, span := s.tracer.Start(c.ctx, "syncer.cycle", trace.WithAttributes(
		attribute.String("cycle.id", c.id),
	))
	defer func() {
		span.SetAttributes(attribute.String("cycle.outcome", outcome))
		if syncErr != nil {
			span.RecordError(syncErr)
			span.SetStatus(codes.Error, string(syncErr.Kind))
		}
		span.End()
	}()
	logger := s.logger.With("cycle", c.id)

	if !s.publish(c, func(st *State) {
		st.Phase = PhaseLoadingCache
		st.CycleID = c.id
	}) {
		return outcomeCancelled, nil
	}

	cached, seq, err := s.read(ctx)
	if !s.current(c) {
		return outcomeCancelled, nil
	}
	if err != nil {
		syncErr = newError(KindCacheLoadFailed, err)
		logger.Error("cache load failed", "error", err)
	}
	if !s.publish(c, func(st *State) {
		if syncErr != nil {
			st.Err = syncErr
			return
		}
		s.setProfilesLocked(cached, seq)
	}) {
		return outcomeCancelled, nil
	}

	online := s.connectivity.Online()
	if !s.publish(c, func(st *State) {
		st.Online = online
		if online {
			st.Phase = PhaseRefreshingNetwork
		}
	}) {
		return outcomeCancelled, nil
	}
	if !online {
		logger.Info("offline, skipping network refresh", "profiles", len(cached))
		return outcomeOffline, syncErr
	}

	span.AddEvent("refresh")
	fetched, err := s.fetcher.Fetch(ctx, s.batchSize)
	if !s.current(c) {
		return outcomeCancelled, nil
	}
	if err != nil {
		return s.refreshFailed(c, logger, "fetch", err)
	}

	res, err := s.reconciler.Reconcile(ctx, fetched)
	if !s.current(c) {
		return outcomeCancelled, nil
	}
	if err != nil {
		return s.refreshFailed(c, logger, "reconcile", err)
	}

	fresh, seq, err := s.read(ctx)
	if !s.current(c) {
		return outcomeCancelled, nil
	}
	if err != nil {
		readErr := newError(KindCacheLoadFailed, err)
		logger.Error("re-read after merge failed", "error", err)
		if !s.publish(c, func(st *State) { st.Err = readErr }) {
			return outcomeCancelled, nil
		}
		return outcomeFailed, readErr
	}
	if !s.publish(c, func(*State) { s.setProfilesLocked(fresh, seq) }) {
		return outcomeCancelled, nil
	}

	logger.Info("refreshed from network",
		"fetched", len(fetched),
		"profiles", len(fresh),
		"duplicates_removed", res.DuplicatesRemoved,
	)
	return outcomeRefreshed, syncErr
}

func (s *Syncer) refreshFailed(c *cycle, logger *slog.Logger, step string, err error) (string, *SyncError) {
	syncErr := newError(KindNetworkRefreshFailed, err)
	logger.Warn("network refresh failed", "step", step, "error", err)
	if !s.publish(c, func(st *State) { st.Err = syncErr }) {
		return outcomeCancelled, nil
	}
	return outcomeFailed, syncErr
}

// finish returns the machine to Idle, or Cancelled when the cycle's own
// context was cancelled. A superseded cycle leaves the state alone.
func (s *Syncer) finish(c *cycle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.gen != s.gen {
		return
	}
	s.cancel = nil
	if c.ctx.Err() != nil {
		s.state.Phase = PhaseCancelled
	} else {
		s.state.Phase = PhaseIdle
	}
	s.state.CycleID = c.id
	s.broadcastLocked()
}

// RecordDecision stores a decision and republishes the cache. It never
// touches the network and never retries. An unknown id is not an error.
// Failures are published and returned as *SyncError.
func (s *Syncer) RecordDecision(ctx context.Context, id string, decision profile.Decision) (err error) {
	if s.isClosed() {
		return ErrClosed
	}

	ctx, span := s.tracer.Start(ctx, "syncer.RecordDecision", trace.WithAttributes(
		attribute.String("profile.id", id),
		attribute.String("profile.decision", decision.String()),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	updated, err := s.store.SetDecision(ctx, id, decision)
	if err != nil {
		syncErr := newError(KindDecisionSaveFailed, err)
		s.logger.Error("save decision failed", "id", id, "decision", decision, "error", err)
		s.surface(syncErr)
		return syncErr
	}
	if updated {
		s.metrics.RecordDecision(decision.String())
	} else {
		s.logger.Debug("decision for unknown profile ignored", "id", id)
	}

	profiles, seq, err := s.read(ctx)
	if err != nil {
		syncErr := newError(KindCacheLoadFailed, err)
		s.logger.Error("re-read after decision failed", "id", id, "error", err)
		s.surface(syncErr)
		return syncErr
	}

	s.mu.Lock()
	s.setProfilesLocked(profiles, seq)
	s.broadcastLocked()
	s.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the published state.
func (s *Syncer) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// ClearError drops the published error after the consumer has shown it.
func (s *Syncer) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Err == nil {
		return
	}
	s.state.Err = nil
	s.broadcastLocked()
}

// Subscribe returns a channel that receives the current state immediately
// and again after every change, plus a function ending the subscription.
// A slow receiver only sees the latest state. The channel is closed by the
// returned function or by Close.
func (s *Syncer) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.state.clone()

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	}
}

// Close cancels the cycle in flight, stops the connectivity loop, waits for
// background goroutines and closes every subscription. Safe to call twice.
func (s *Syncer) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
		s.gen++
		s.state.Phase = PhaseCancelled
		s.broadcastLocked()
	}
	s.stop()
	s.mu.Unlock()

	s.wg.Wait()

	s.mu.Lock()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.mu.Unlock()
	return nil
}

func (s *Syncer) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// read loads the store contents tagged with a read sequence number.
func (s *Syncer) read(ctx context.Context) ([]profile.StoredProfile, uint64, error) {
	s.mu.Lock()
	s.readSeq++
	seq := s.readSeq
	s.mu.Unlock()

	profiles, err := s.store.FetchAll(ctx)
	return profiles, seq, err
}

func (s *Syncer) current(c *cycle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentLocked(c)
}

func (s *Syncer) currentLocked(c *cycle) bool {
	return c.gen == s.gen && c.ctx.Err() == nil
}

// publish applies update and notifies subscribers if c is still current.
func (s *Syncer) publish(c *cycle, update func(*State)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.currentLocked(c) {
		return false
	}
	update(&s.state)
	s.broadcastLocked()
	return true
}

// surface publishes an error outside of any cycle.
func (s *Syncer) surface(err *SyncError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Err = err
	s.broadcastLocked()
}

func (s *Syncer) setProfilesLocked(profiles []profile.StoredProfile, seq uint64) {
	if seq <= s.publishedSeq {
		return
	}
	if profiles == nil {
		profiles = []profile.StoredProfile{}
	}
	s.publishedSeq = seq
	s.state.Profiles = profiles
	s.metrics.SetCachedProfiles(len(profiles))
}

func (s *Syncer) broadcastLocked() {
	snapshot := s.state.clone()
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snapshot
	}
}
