// Package connectivity tracks whether the remote endpoint is reachable.
//
// A Monitor polls a Probe on an interval and exposes the latest result as an
// atomic flag. The flag only gates whether a load cycle attempts a network
// refresh; changes never start or cancel cycles on their own.
package connectivity

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/profilesync/internal/metrics"
)

// DefaultInterval is the time between probes.
const DefaultInterval = 5 * time.Second

// Probe reports whether the network path to the remote is usable.
type Probe interface {
	Reachable(ctx context.Context) bool
}

// ProbeFunc adapts a function to Probe.
type ProbeFunc func(ctx context.Context) bool

// Reachable calls f.
func (f ProbeFunc) Reachable(ctx context.Context) bool { return f(ctx) }

// DialProbe reports reachability by opening a TCP connection to Address.
type DialProbe struct {
	Address string        // host:port
	Timeout time.Duration // per-dial timeout (default: 2s)
}

// Reachable dials Address and closes the connection immediately.
func (p DialProbe) Reachable(ctx context.Context) bool {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", p.Address)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Monitor polls a Probe and publishes the result.
//
// Thread-safety: Online and Subscribe are safe from any goroutine.
// Run must be called from exactly one goroutine.
type Monitor struct {
	probe    Probe
	interval time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics

	online atomic.Bool

	mu   sync.Mutex
	subs map[int]chan bool
	next int
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithInterval sets the polling interval.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithMetrics sets the metrics sink for the online gauge.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Monitor) {
		m.metrics = mt
	}
}

// WithInitial sets the state reported before the first probe completes.
// Defaults to online, so the first cycle attempts a refresh.
func WithInitial(online bool) Option {
	return func(m *Monitor) {
		m.online.Store(online)
	}
}

// NewMonitor creates a Monitor for probe.
func NewMonitor(probe Probe, opts ...Option) *Monitor {
	m := &Monitor{
		probe:    probe,
		interval: DefaultInterval,
		logger:   slog.New(slog.DiscardHandler),
		subs:     make(map[int]chan bool),
	}
	m.online.Store(true)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Online returns the result of the most recent probe.
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// Subscribe returns a channel that receives the new state after every
// change, and a function that ends the subscription. Slow receivers only see
// the latest state.
func (m *Monitor) Subscribe() (<-chan bool, func()) {
	ch := make(chan bool, 1)

	m.mu.Lock()
	id := m.next
	m.next++
	m.subs[id] = ch
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
		})
	}
}

// Run probes immediately and then every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check runs the probe once and publishes the result.
func (m *Monitor) Check(ctx context.Context) bool {
	online := m.probe.Reachable(ctx)
	if ctx.Err() != nil {
		return m.Online()
	}
	m.set(online)
	return online
}

func (m *Monitor) set(online bool) {
	m.metrics.SetOnline(online)
	if m.online.Swap(online) == online {
		return
	}
	m.logger.Info("connectivity changed", "online", online)

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subs {
		// Latest-wins: drop a pending value the receiver has not read yet.
		select {
		case <-ch:
		default:
		}
		ch <- online
	}
}

// Static is a fixed connectivity state, used for --offline and in tests.
type Static struct {
	online atomic.Bool
}

// NewStatic returns a Static reporting online.
func NewStatic(online bool) *Static {
	s := &Static{}
	s.online.Store(online)
	return s
}

// Online returns the current state.
func (s *Static) Online() bool { return s.online.Load() }

// Set changes the reported state.
func (s *Static) Set(online bool) { s.online.Store(online) }
