package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.json")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 500, cfg.Extract.MaxFiles)
	assert.Equal(t, int64(1<<20), cfg.Extract.MaxFileBytes)
	assert.Equal(t, int64(50<<20), cfg.Extract.MaxTotalBytes)
	assert.Equal(t, 100, cfg.Scan.MaxFiles)
	assert.Equal(t, 0.5, cfg.Scan.MinConfidence)
	assert.Equal(t, 3, cfg.Scan.MaxRemediationSteps)
	assert.Equal(t, 30*24*time.Hour, cfg.Scan.Retention)
	assert.Equal(t, time.Hour, cfg.Cache.FreshWindow)
	assert.Equal(t, 5, cfg.RateLimit.ScansPerHour)
	assert.Equal(t, 180*time.Second, cfg.Backend.Timeout)
	assert.False(t, cfg.Auth.Enabled())
	assert.Equal(t, 5*time.Minute, cfg.Scan.RunTimeout)
	assert.Equal(t, DefaultGitHubCacheSize, cfg.GitHub.CacheSize)
}

func TestLoadFallsBackForNonPositiveKnobs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"scan":{"ungated_findings":0},"github":{"cache_size":-1}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Scan.UngatedFindings)
	assert.Equal(t, DefaultGitHubCacheSize, cfg.GitHub.CacheSize)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"backend":{"api_base_url":"https://scan.example.com"},"ratelimit":{"scans_per_hour":2}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	t.Setenv("ANONSCAN_BACKEND_API_KEY", "sk-test")
	t.Setenv("ANONSCAN_SCAN_RETENTION", "48h")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://scan.example.com", cfg.Backend.APIBaseURL)
	assert.Equal(t, "sk-test", cfg.Backend.APIKey)
	assert.Equal(t, 2, cfg.RateLimit.ScansPerHour)
	assert.Equal(t, 48*time.Hour, cfg.Scan.Retention)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestValidateRequiresDSN(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.json")
	t.Setenv("ANONSCAN_DATABASE_DRIVER", "postgres")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.dsn")
}

func TestRedacted(t *testing.T) {
	cfg := Config{}
	cfg.Backend.APIKey = "sk-live-abcdef"
	cfg.Warmer.CronSecret = "abc"
	cfg.Database.DSN = "postgres://u:p@db/anonscan"

	r := cfg.Redacted()
	assert.Equal(t, "sk-l****", r.Backend.APIKey)
	assert.Equal(t, "****", r.Warmer.CronSecret)
	assert.Equal(t, "****", r.Database.DSN)
	assert.Equal(t, "sk-live-abcdef", cfg.Backend.APIKey)
}
