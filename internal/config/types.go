package config

import "time"

// Config is the root configuration structure for anonscan.
// Serialised to ~/.anonscan/config.json.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"  json:"database"`
	GitHub    GitHubConfig    `mapstructure:"github"    json:"github"`
	Backend   BackendConfig   `mapstructure:"backend"   json:"backend"`
	Extract   ExtractConfig   `mapstructure:"extract"   json:"extract"`
	Scan      ScanConfig      `mapstructure:"scan"      json:"scan"`
	Cache     CacheConfig     `mapstructure:"cache"     json:"cache"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit" json:"ratelimit"`
	Auth      AuthConfig      `mapstructure:"auth"      json:"auth"`
	Warmer    WarmerConfig    `mapstructure:"warmer"    json:"warmer"`
	Gateway   GatewayConfig   `mapstructure:"gateway"   json:"gateway"`
}

// DatabaseConfig controls the storage backend.
type DatabaseConfig struct {
	// Driver is "sqlite" (default), "mysql" or "postgres".
	Driver string `mapstructure:"driver" json:"driver"`
	// Path is the SQLite file path (expanded at runtime).
	Path string `mapstructure:"path"   json:"path"`
	// DSN is the data source name used when Driver is mysql or postgres.
	DSN          string `mapstructure:"dsn"            json:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns" json:"max_open_conns"`
}

// GitHubConfig holds the code host settings used for metadata and tarballs.
type GitHubConfig struct {
	// Token is optional; anonymous requests are subject to lower rate limits.
	Token     string `mapstructure:"token"      json:"token"`
	APIURL    string `mapstructure:"api_url"    json:"api_url"`
	UserAgent string `mapstructure:"user_agent" json:"user_agent"`
	// CacheSize caps the metadata response cache in entries.
	CacheSize int `mapstructure:"cache_size" json:"cache_size"`
}

// BackendConfig points at the remote scanning service.
type BackendConfig struct {
	APIBaseURL string        `mapstructure:"api_base_url" json:"api_base_url"`
	APIKey     string        `mapstructure:"api_key"      json:"api_key"`
	Timeout    time.Duration `mapstructure:"timeout"      json:"timeout"`
}

// ExtractConfig bounds tarball extraction.
type ExtractConfig struct {
	MaxFiles      int           `mapstructure:"max_files"       json:"max_files"`
	MaxFileBytes  int64         `mapstructure:"max_file_bytes"  json:"max_file_bytes"`
	MaxTotalBytes int64         `mapstructure:"max_total_bytes" json:"max_total_bytes"`
	FetchTimeout  time.Duration `mapstructure:"fetch_timeout"   json:"fetch_timeout"`
}

// ScanConfig controls file selection and report polishing.
type ScanConfig struct {
	// MaxFiles is the number of prioritised files sent to the backend.
	MaxFiles            int     `mapstructure:"max_files"             json:"max_files"`
	MinConfidence       float64 `mapstructure:"min_confidence"        json:"min_confidence"`
	MaxRemediationSteps int     `mapstructure:"max_remediation_steps" json:"max_remediation_steps"`
	// UngatedFindings is how many full findings anonymous viewers see.
	UngatedFindings int `mapstructure:"ungated_findings" json:"ungated_findings"`
	// Coalesce shares one pipeline run between concurrent requests for a repo.
	Coalesce bool `mapstructure:"coalesce" json:"coalesce"`
	// RunTimeout bounds one pipeline run end to end.
	RunTimeout time.Duration `mapstructure:"run_timeout" json:"run_timeout"`
	Retention  time.Duration `mapstructure:"retention"   json:"retention"`
}

// CacheConfig controls reuse of recent reports.
type CacheConfig struct {
	FreshWindow time.Duration `mapstructure:"fresh_window" json:"fresh_window"`
	L1Size      int           `mapstructure:"l1_size"      json:"l1_size"`
	L1TTL       time.Duration `mapstructure:"l1_ttl"       json:"l1_ttl"`
}

// RateLimitConfig controls per-IP limits.
type RateLimitConfig struct {
	ScansPerHour int `mapstructure:"scans_per_hour" json:"scans_per_hour"`
	// APIRPS and APIBurst drive the token bucket in front of every API route.
	// Zero APIRPS disables it.
	APIRPS   float64 `mapstructure:"api_rps"   json:"api_rps"`
	APIBurst int     `mapstructure:"api_burst" json:"api_burst"`
}

// AuthConfig enables identity-provider token verification. With neither
// JWKSURL nor HMACSecret set every caller is anonymous.
type AuthConfig struct {
	JWKSURL    string `mapstructure:"jwks_url"    json:"jwks_url"`
	HMACSecret string `mapstructure:"hmac_secret" json:"hmac_secret"`
	Issuer     string `mapstructure:"issuer"      json:"issuer"`
	Audience   string `mapstructure:"audience"    json:"audience"`
}

// Enabled reports whether any verification method is configured.
func (a AuthConfig) Enabled() bool {
	return a.JWKSURL != "" || a.HMACSecret != ""
}

// WarmerConfig controls periodic cache warming.
type WarmerConfig struct {
	CronSecret string `mapstructure:"cron_secret" json:"cron_secret"`
	// Schedule is a cron expression; empty disables the in-process schedule.
	Schedule string   `mapstructure:"schedule" json:"schedule"`
	Repos    []string `mapstructure:"repos"    json:"repos"`
}

// GatewayConfig controls the HTTP server.
type GatewayConfig struct {
	ListenAddr      string        `mapstructure:"listen_addr"      json:"listen_addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" json:"shutdown_timeout"`
}
