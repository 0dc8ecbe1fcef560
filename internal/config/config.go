// Package config loads profilesync configuration from YAML.
//
// Loading happens in three steps: built-in defaults, the YAML document
// checked against the embedded CUE schema, then a strict decode over the
// defaults. CLI flags are applied by the caller afterwards.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/profilesync/internal/fetcher"
)

//go:embed schema.cue
var schemaSource string

// Config is the full configuration.
type Config struct {
	Database     DatabaseConfig     `yaml:"database"`
	Fetch        FetchConfig        `yaml:"fetch"`
	Connectivity ConnectivityConfig `yaml:"connectivity"`
	Server       ServerConfig       `yaml:"server"`
	Log          LogConfig          `yaml:"log"`
}

// DatabaseConfig locates the local SQLite cache.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// FetchConfig configures the remote fetcher and its retry policy.
type FetchConfig struct {
	Endpoint    string   `yaml:"endpoint"`
	Count       int      `yaml:"count"`
	Timeout     Duration `yaml:"timeout"`
	MaxAttempts int      `yaml:"max_attempts"`
	BaseDelay   Duration `yaml:"base_delay"`
	RetryMode   string   `yaml:"retry_mode"` // "always" or "transient"
}

// ConnectivityConfig configures the reachability probe.
type ConnectivityConfig struct {
	// ProbeAddress is dialled to decide online/offline. Empty means the
	// fetch endpoint's host and port.
	ProbeAddress string   `yaml:"probe_address"`
	Interval     Duration `yaml:"interval"`
	Timeout      Duration `yaml:"timeout"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "profilesync.db"},
		Fetch: FetchConfig{
			Endpoint:    fetcher.DefaultEndpoint,
			Count:       10,
			Timeout:     Duration(fetcher.DefaultTimeout),
			MaxAttempts: fetcher.DefaultMaxAttempts,
			BaseDelay:   Duration(fetcher.DefaultBaseDelay),
			RetryMode:   "always",
		},
		Connectivity: ConnectivityConfig{
			Interval: Duration(5 * time.Second),
			Timeout:  Duration(2 * time.Second),
		},
		Server: ServerConfig{Addr: "127.0.0.1:8080"},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads the file at path over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			verr.File = path
		}
		return nil, err
	}
	return cfg, nil
}

// Parse validates a YAML document and decodes it over the defaults.
func Parse(data []byte) (*Config, error) {
	if err := validate(data); err != nil {
		return nil, err
	}

	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return cfg, nil
}

// ValidationError lists every schema violation in a config document.
type ValidationError struct {
	File     string
	Problems []string
}

func (e *ValidationError) Error() string {
	prefix := "invalid config"
	if e.File != "" {
		prefix = fmt.Sprintf("invalid config %s", e.File)
	}
	return fmt.Sprintf("%s: %s", prefix, strings.Join(e.Problems, "; "))
}

// validate checks the raw document against #Config so that typos and bad
// values are reported with their path before any decoding.
func validate(data []byte) error {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue")).
		LookupPath(cue.ParsePath("#Config"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("config schema: %w", err)
	}

	v := schema.Unify(ctx.Encode(doc))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}
	return nil
}

func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &ValidationError{Problems: []string{err.Error()}}
	}
	problems := make([]string, 0, len(errs))
	for _, e := range errs {
		problems = append(problems, e.Error())
	}
	return &ValidationError{Problems: problems}
}

// ProbeAddress returns the host:port dialled by the connectivity probe.
func (c *Config) ProbeAddress() (string, error) {
	if c.Connectivity.ProbeAddress != "" {
		return c.Connectivity.ProbeAddress, nil
	}
	u, err := url.Parse(c.Fetch.Endpoint)
	if err != nil {
		return "", fmt.Errorf("derive probe address: %w", err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("derive probe address: endpoint %q has no host", c.Fetch.Endpoint)
	}
	port := u.Port()
	if port == "" {
		port = "443"
		if u.Scheme == "http" {
			port = "80"
		}
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}

// Duration is a time.Duration written as a Go duration string ("300ms").
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("line %d: duration must be a string like \"300ms\"", node.Line)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration string.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}
