package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/CosmoTheDev/anonscan/internal/findings"
	"github.com/spf13/viper"
)

const (
	DefaultConfigDir  = ".anonscan"
	DefaultConfigFile = "config.json"
	DefaultDBFile     = ".anonscan/anonscan.db"
	DefaultLogDir     = ".anonscan/logs"

	// DefaultGitHubCacheSize is the metadata response cache capacity.
	DefaultGitHubCacheSize = 1024

	// EnvPrefix is prepended to every environment override,
	// e.g. ANONSCAN_BACKEND_API_KEY for backend.api_key.
	EnvPrefix = "ANONSCAN"
)

// DefaultWarmRepos are popular repositories kept warm so first visitors hit cache.
var DefaultWarmRepos = []string{
	"https://github.com/langchain-ai/langchain",
	"https://github.com/run-llama/llama_index",
	"https://github.com/openai/openai-agents-python",
	"https://github.com/crewAIInc/crewAI",
	"https://github.com/microsoft/autogen",
}

// Load reads the config file (if present) and returns a populated Config.
// The configPath flag may override the default location.
func Load(configPath string) (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("cannot determine home directory: %w", err)
	}

	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(filepath.Join(home, DefaultConfigDir))
	}

	setDefaults(v, home)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isNotExist(err) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// No config file; defaults and environment apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	expandPaths(&cfg, home)
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// normalize replaces non-positive knobs that have a safe fallback.
func (c *Config) normalize() {
	if c.Scan.UngatedFindings <= 0 {
		c.Scan.UngatedFindings = findings.DefaultUngated
	}
	if c.GitHub.CacheSize <= 0 {
		c.GitHub.CacheSize = DefaultGitHubCacheSize
	}
}

// Validate checks values that would otherwise fail deep inside the pipeline.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "mysql", "postgres":
	default:
		return fmt.Errorf("database.driver %q: must be sqlite, mysql or postgres", c.Database.Driver)
	}
	if c.Database.Driver != "sqlite" && c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required for driver %s", c.Database.Driver)
	}
	if c.Extract.MaxFiles <= 0 || c.Extract.MaxFileBytes <= 0 || c.Extract.MaxTotalBytes <= 0 {
		return fmt.Errorf("extract limits must be positive")
	}
	if c.Scan.MaxFiles <= 0 {
		return fmt.Errorf("scan.max_files must be positive")
	}
	if c.Scan.Retention <= 0 {
		return fmt.Errorf("scan.retention must be positive")
	}
	return nil
}

// Save writes the config to disk as JSON.
func Save(cfg *Config, configPath string) error {
	path, err := ConfigPath(configPath)
	if err != nil {
		return fmt.Errorf("cannot determine home directory: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("serialising config: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

// ConfigPath returns the effective config file path.
func ConfigPath(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, DefaultConfigDir, DefaultConfigFile), nil
}

// Redacted returns a copy with secrets masked, for display.
func (c Config) Redacted() Config {
	c.GitHub.Token = mask(c.GitHub.Token)
	c.Backend.APIKey = mask(c.Backend.APIKey)
	c.Auth.HMACSecret = mask(c.Auth.HMACSecret)
	c.Warmer.CronSecret = mask(c.Warmer.CronSecret)
	if c.Database.DSN != "" {
		c.Database.DSN = "****"
	}
	c.Warmer.Repos = append([]string(nil), c.Warmer.Repos...)
	return c
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + "****"
}

// setDefaults populates viper with sensible out-of-the-box values.
func setDefaults(v *viper.Viper, home string) {
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", filepath.Join(home, DefaultDBFile))
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 10)

	v.SetDefault("github.token", "")
	v.SetDefault("github.api_url", "https://api.github.com/")
	v.SetDefault("github.user_agent", "anonscan/1.0")
	v.SetDefault("github.cache_size", DefaultGitHubCacheSize)

	v.SetDefault("backend.api_base_url", "http://localhost:8000")
	v.SetDefault("backend.api_key", "")
	v.SetDefault("backend.timeout", 180*time.Second)

	v.SetDefault("extract.max_files", 500)
	v.SetDefault("extract.max_file_bytes", 1<<20)
	v.SetDefault("extract.max_total_bytes", 50<<20)
	v.SetDefault("extract.fetch_timeout", 60*time.Second)

	v.SetDefault("scan.max_files", 100)
	v.SetDefault("scan.min_confidence", 0.5)
	v.SetDefault("scan.max_remediation_steps", 3)
	v.SetDefault("scan.ungated_findings", 3)
	v.SetDefault("scan.coalesce", true)
	v.SetDefault("scan.run_timeout", 5*time.Minute)
	v.SetDefault("scan.retention", 30*24*time.Hour)

	v.SetDefault("cache.fresh_window", time.Hour)
	v.SetDefault("cache.l1_size", 1024)
	v.SetDefault("cache.l1_ttl", 5*time.Minute)

	v.SetDefault("ratelimit.scans_per_hour", 5)
	v.SetDefault("ratelimit.api_rps", 5.0)
	v.SetDefault("ratelimit.api_burst", 20)

	v.SetDefault("auth.jwks_url", "")
	v.SetDefault("auth.hmac_secret", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.audience", "")

	v.SetDefault("warmer.cron_secret", "")
	v.SetDefault("warmer.schedule", "")
	v.SetDefault("warmer.repos", DefaultWarmRepos)

	v.SetDefault("gateway.listen_addr", "127.0.0.1:6080")
	v.SetDefault("gateway.shutdown_timeout", 10*time.Second)
}

// expandPaths resolves ~ in configured paths.
func expandPaths(cfg *Config, home string) {
	cfg.Database.Path = expandHome(cfg.Database.Path, home)
}

func expandHome(path, home string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

func isNotExist(err error) bool {
	return os.IsNotExist(err) || strings.Contains(err.Error(), "no such file")
}
