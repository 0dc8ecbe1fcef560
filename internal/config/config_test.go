package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profilesync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "https://randomuser.me/api/", cfg.Fetch.Endpoint)
	assert.Equal(t, 10, cfg.Fetch.Count)
	assert.Equal(t, 3, cfg.Fetch.MaxAttempts)
	assert.Equal(t, 300*time.Millisecond, cfg.Fetch.BaseDelay.Std())
	assert.Equal(t, 10*time.Second, cfg.Fetch.Timeout.Std())
	assert.Equal(t, "always", cfg.Fetch.RetryMode)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_OverridesOnlyGivenKeys(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /var/lib/profilesync/cache.db
fetch:
  count: 25
  base_delay: 50ms
  retry_mode: transient
log:
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/profilesync/cache.db", cfg.Database.Path)
	assert.Equal(t, 25, cfg.Fetch.Count)
	assert.Equal(t, 50*time.Millisecond, cfg.Fetch.BaseDelay.Std())
	assert.Equal(t, "transient", cfg.Fetch.RetryMode)
	assert.Equal(t, "json", cfg.Log.Format)

	// Untouched keys keep defaults.
	assert.Equal(t, 3, cfg.Fetch.MaxAttempts)
	assert.Equal(t, "https://randomuser.me/api/", cfg.Fetch.Endpoint)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_EmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_SchemaViolations(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		problem string
	}{
		{"unknown key", "fetch:\n  cuont: 5\n", "cuont"},
		{"unknown section", "cache:\n  path: x\n", "cache"},
		{"zero count", "fetch:\n  count: 0\n", "fetch.count"},
		{"bad retry mode", "fetch:\n  retry_mode: sometimes\n", "fetch.retry_mode"},
		{"bad duration", "fetch:\n  timeout: soon\n", "fetch.timeout"},
		{"numeric duration", "connectivity:\n  interval: 5\n", "connectivity.interval"},
		{"relative endpoint", "fetch:\n  endpoint: /api\n", "fetch.endpoint"},
		{"bad log level", "log:\n  level: loud\n", "log.level"},
		{"too many attempts", "fetch:\n  max_attempts: 50\n", "fetch.max_attempts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.body)
			_, err := Load(path)
			require.Error(t, err)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, path, verr.File)
			assert.Contains(t, err.Error(), tt.problem)
		})
	}
}

func TestParse_MalformedYAML(t *testing.T) {
	_, err := Parse([]byte("fetch: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestProbeAddress(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		explicit string
		want     string
	}{
		{"https default port", "https://randomuser.me/api/", "", "randomuser.me:443"},
		{"http default port", "http://localhost/api", "", "localhost:80"},
		{"explicit port", "http://127.0.0.1:9000/api", "", "127.0.0.1:9000"},
		{"explicit probe", "https://randomuser.me/api/", "1.1.1.1:53", "1.1.1.1:53"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Fetch.Endpoint = tt.endpoint
			cfg.Connectivity.ProbeAddress = tt.explicit
			got, err := cfg.ProbeAddress()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	cfg := Default()
	cfg.Fetch.Endpoint = "not a url"
	_, err := cfg.ProbeAddress()
	assert.Error(t, err)
}

func TestDuration_MarshalYAML(t *testing.T) {
	out, err := yaml.Marshal(struct {
		D Duration `yaml:"d"`
	}{Duration(1500 * time.Millisecond)})
	require.NoError(t, err)
	assert.Equal(t, "d: 1.5s\n", string(out))
}
