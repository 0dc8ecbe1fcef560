package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/profilesync/internal/metrics"
	"github.com/roach88/profilesync/internal/profile"
)

const (
	// DefaultEndpoint is the public random-user API.
	DefaultEndpoint = "https://randomuser.me/api/"

	// DefaultTimeout bounds a single HTTP attempt.
	DefaultTimeout = 10 * time.Second

	// CountParam is the query parameter carrying the requested batch size.
	CountParam = "results"

	// maxBodyBytes guards against unbounded responses.
	maxBodyBytes = 16 << 20
)

// HTTPDoer is the minimal interface needed from an HTTP client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config configures a Client.
type Config struct {
	Endpoint   string
	Timeout    time.Duration
	HTTPClient HTTPDoer
	Retry      RetryPolicy
	Sleep      Sleeper // defaults to a context-aware timer
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	Tracer     trace.Tracer
}

// Client fetches profiles from the remote endpoint.
// Client holds no per-call state and is safe for concurrent use.
type Client struct {
	endpoint *url.URL
	client   HTTPDoer
	retry    RetryPolicy
	sleep    Sleeper
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

// New creates a Client, applying defaults for zero Config fields.
func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	endpoint, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", cfg.Endpoint, err)
	}
	if !endpoint.IsAbs() || endpoint.Host == "" {
		return nil, fmt.Errorf("invalid endpoint %q: must be an absolute URL", cfg.Endpoint)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepContext
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer("github.com/roach88/profilesync/internal/fetcher")
	}

	return &Client{
		endpoint: endpoint,
		client:   cfg.HTTPClient,
		retry:    cfg.Retry.withDefaults(),
		sleep:    cfg.Sleep,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		tracer:   cfg.Tracer,
	}, nil
}

// Fetch retrieves count profiles, retrying failed attempts per the client's
// RetryPolicy. On exhausting retries it returns the last classified error.
//
// If ctx is cancelled during a backoff wait, Fetch returns immediately with
// a KindTransport error wrapping ctx.Err().
func (c *Client) Fetch(ctx context.Context, count int) (profiles []profile.Profile, err error) {
	if count <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCount, count)
	}

	ctx, span := c.tracer.Start(ctx, "fetcher.Fetch", trace.WithAttributes(
		attribute.Int("fetch.count", count),
		attribute.Int("fetch.max_attempts", c.retry.MaxAttempts),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.Int("fetch.received", len(profiles)))
		}
		span.End()
	}()

	target := c.requestURL(count)

	var lastErr error
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := c.retry.Delay(attempt)
			c.logger.Debug("fetch backoff", "attempt", attempt, "delay", delay)
			if err := c.sleep(ctx, delay); err != nil {
				return nil, transport(err)
			}
		}

		span.AddEvent("attempt", trace.WithAttributes(attribute.Int("fetch.attempt", attempt)))
		c.metrics.RecordFetchAttempt()
		c.logger.Debug("fetch attempt", "attempt", attempt, "max_attempts", c.retry.MaxAttempts, "url", target)

		profiles, err := c.fetchOnce(ctx, target)
		if err == nil {
			c.logger.Debug("fetch succeeded", "attempt", attempt, "profiles", len(profiles))
			return profiles, nil
		}

		lastErr = err
		c.metrics.RecordFetchFailure(string(KindOf(err)))
		c.logger.Warn("fetch attempt failed", "attempt", attempt, "kind", KindOf(err), "error", err)

		if ctx.Err() != nil || !c.retry.RetryOn(err) {
			break
		}
	}

	return nil, lastErr
}

// requestURL returns the endpoint with the count parameter set.
func (c *Client) requestURL(count int) string {
	u := *c.endpoint
	q := u.Query()
	q.Set(CountParam, strconv.Itoa(count))
	u.RawQuery = q.Encode()
	return u.String()
}

// fetchOnce performs a single attempt and classifies any failure.
func (c *Client) fetchOnce(ctx context.Context, target string) ([]profile.Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, transport(err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, transport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, badStatus(resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, transport(err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, emptyResponse()
	}

	return decodeProfiles(body)
}
