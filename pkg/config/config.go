package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mosaicops/cmsgate/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Upstream CMS configuration
	Upstream UpstreamConfig

	// Audit configuration
	Audit AuditConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string

	// Bearer token callers must present to the gateway
	APIToken string

	// Cron expression for scheduled site-wide audits; empty disables them
	AuditSchedule string
}

// UpstreamConfig holds the upstream CMS connection settings
type UpstreamConfig struct {
	BaseURL        string
	Token          string
	RequestTimeout time.Duration

	// Pagination
	PageSize int
	MaxPages int
}

// AuditConfig holds audit-run defaults
type AuditConfig struct {
	// Default site for site-wide scans
	DefaultSiteID string

	// Optional YAML file declaring the static collection set
	CollectionsFile string

	// Statically configured collections (safe-mode summary set and the
	// fallback when a run is not site-wide)
	Collections []StaticCollection

	// Preference order of collection IDs for the smoke-test target
	SmokeTargets []string

	// Path for the JSONL write trail; empty disables it
	TrailPath string
}

// StaticCollection is one collection declared in the collections file
type StaticCollection struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	Slug string `yaml:"slug"`
}

// collectionsFile is the on-disk shape of the collections file
type collectionsFile struct {
	Collections  []StaticCollection `yaml:"collections"`
	SmokeTargets []string           `yaml:"smoke_targets"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Upstream:      loadUpstreamConfig(),
		Audit:         loadAuditConfig(),
		Observability: loadObservabilityConfig(),
	}

	if cfg.Audit.CollectionsFile != "" {
		if err := cfg.loadCollectionsFile(); err != nil {
			return nil, fmt.Errorf("loading collections file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("CMSGATE_HOST", "0.0.0.0"),
		Port:            getEnv("CMSGATE_PORT", "8080"),
		ReadTimeout:     getEnvDuration("CMSGATE_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("CMSGATE_WRITE_TIMEOUT", 5*time.Minute),
		IdleTimeout:     getEnvDuration("CMSGATE_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("CMSGATE_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("CMSGATE_HEALTH_PORT", "9090"),
		APIToken:        getEnv("CMSGATE_API_TOKEN", ""),
		AuditSchedule:   getEnv("CMSGATE_AUDIT_SCHEDULE", ""),
	}
}

// loadUpstreamConfig loads upstream CMS configuration from environment
func loadUpstreamConfig() UpstreamConfig {
	return UpstreamConfig{
		BaseURL:        strings.TrimRight(getEnv("CMSGATE_UPSTREAM_URL", "https://api.webflow.com"), "/"),
		Token:          getEnv("CMSGATE_UPSTREAM_TOKEN", ""),
		RequestTimeout: getEnvDuration("CMSGATE_UPSTREAM_TIMEOUT", 30*time.Second),
		PageSize:       getEnvInt("CMSGATE_PAGE_SIZE", 100),
		MaxPages:       getEnvInt("CMSGATE_MAX_PAGES", 100),
	}
}

// loadAuditConfig loads audit configuration from environment
func loadAuditConfig() AuditConfig {
	cfg := AuditConfig{
		DefaultSiteID:   getEnv("CMSGATE_SITE_ID", ""),
		CollectionsFile: getEnv("CMSGATE_COLLECTIONS_FILE", ""),
		TrailPath:       getEnv("CMSGATE_TRAIL_PATH", ""),
	}
	if targets := getEnv("CMSGATE_SMOKE_TARGETS", ""); targets != "" {
		for _, t := range strings.Split(targets, ",") {
			if t = strings.TrimSpace(t); t != "" {
				cfg.SmokeTargets = append(cfg.SmokeTargets, t)
			}
		}
	}
	return cfg
}

// loadCollectionsFile merges the YAML collections file into the config.
// Environment-supplied smoke targets take precedence over the file's.
func (c *Config) loadCollectionsFile() error {
	data, err := os.ReadFile(c.Audit.CollectionsFile)
	if err != nil {
		return err
	}
	var file collectionsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing %s: %w", c.Audit.CollectionsFile, err)
	}
	c.Audit.Collections = file.Collections
	if len(c.Audit.SmokeTargets) == 0 {
		c.Audit.SmokeTargets = file.SmokeTargets
	}
	return nil
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           parseLogLevel(getEnv("CMSGATE_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("CMSGATE_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("CMSGATE_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("CMSGATE_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("CMSGATE_OTEL_SERVICE_NAME", "cmsgate"),
		OTelServiceVersion: getEnv("CMSGATE_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("CMSGATE_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream base URL is required")
	}
	if c.Upstream.PageSize <= 0 {
		return fmt.Errorf("page size must be positive")
	}
	if c.Upstream.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive")
	}

	for i, col := range c.Audit.Collections {
		if col.ID == "" {
			return fmt.Errorf("collection %d in collections file is missing an id", i)
		}
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
