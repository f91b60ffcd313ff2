package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Build modes. They gate the console mirror and how the auditor escalates findings.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvCI          = "ci"
)

// Config holds all application configuration.
type Config struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv   string `env:"APP_ENV" envDefault:"development"`

	// Pipeline
	CollectorURL     string        `env:"COLLECTOR_URL" envDefault:"http://localhost:8080/api/analytics/logs"`
	FlushInterval    time.Duration `env:"FLUSH_INTERVAL" envDefault:"5s"`
	MaxBufferSize    int           `env:"MAX_BUFFER_SIZE" envDefault:"100"`
	TransportTimeout time.Duration `env:"TRANSPORT_TIMEOUT" envDefault:"5s"`
	UserAgent        string        `env:"USER_AGENT" envDefault:"actionlog-go"`
	CaptureMemory    bool          `env:"CAPTURE_MEMORY" envDefault:"false"`

	// Scrubbing
	PIIRedactionFields string `env:"PII_REDACTION_FIELDS" envDefault:""`
	PIIScrubNested     bool   `env:"PII_SCRUB_NESTED" envDefault:"false"`

	// Dead element auditor
	AuditCooldown    time.Duration `env:"AUDIT_COOLDOWN" envDefault:"2s"`
	AuditSettleDelay time.Duration `env:"AUDIT_SETTLE_DELAY" envDefault:"50ms"`
	AuditReportCap   int           `env:"AUDIT_REPORT_CAP" envDefault:"10"`

	// Session storage
	SessionStore string        `env:"SESSION_STORE" envDefault:"memory"` // memory, redis
	RedisAddr    string        `env:"REDIS_ADDR" envDefault:"redis://localhost:6379/0"`
	SessionKey   string        `env:"SESSION_KEY" envDefault:"default"`
	SessionTTL   time.Duration `env:"SESSION_TTL" envDefault:"30m"`

	// Overflow outbox, disabled when the directory is empty
	OverflowWALDir string `env:"OVERFLOW_WAL_DIR" envDefault:""`
	WALSegmentSize int64  `env:"WAL_SEGMENT_SIZE_BYTES" envDefault:"10485760"`   // 10MB
	WALMaxDiskSize int64  `env:"WAL_MAX_DISK_SIZE_BYTES" envDefault:"104857600"` // 100MB

	// Development collector
	CollectorAddr string `env:"COLLECTOR_ADDR" envDefault:":8080"`
	MetricsAddr   string `env:"METRICS_ADDR" envDefault:":9091"`
	MaxBatchBytes int64  `env:"MAX_BATCH_BYTES" envDefault:"1048576"` // 1MB

	// NDJSON file the collector appends received events to; empty disables it.
	CollectorSinkPath string `env:"COLLECTOR_SINK_PATH" envDefault:""`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.AppEnv {
	case EnvDevelopment, EnvProduction, EnvCI:
	default:
		return fmt.Errorf("invalid APP_ENV %q", c.AppEnv)
	}
	switch c.SessionStore {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid SESSION_STORE %q", c.SessionStore)
	}
	if c.MaxBufferSize <= 0 {
		return fmt.Errorf("MAX_BUFFER_SIZE must be positive, got %d", c.MaxBufferSize)
	}
	if c.FlushInterval <= 0 {
		return fmt.Errorf("FLUSH_INTERVAL must be positive, got %s", c.FlushInterval)
	}
	if c.AuditReportCap <= 0 {
		return fmt.Errorf("AUDIT_REPORT_CAP must be positive, got %d", c.AuditReportCap)
	}
	return nil
}

// IsProduction reports whether the console mirror should be off.
func (c *Config) IsProduction() bool { return c.AppEnv == EnvProduction }

// ExtraRedactionFields splits PII_REDACTION_FIELDS into trimmed names.
func (c *Config) ExtraRedactionFields() []string {
	var fields []string
	for _, f := range strings.Split(c.PIIRedactionFields, ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}
