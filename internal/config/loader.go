package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "crewdeck.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "CREWDECK_PORT")
	setString(&cfg.Server.CORSOrigin, "CREWDECK_CORS_ORIGIN")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "CREWDECK_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "CREWDECK_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "CREWDECK_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "CREWDECK_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "CREWDECK_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.Gateway.BaseURL, "CREWDECK_GATEWAY_URL")
	setDuration(&cfg.Gateway.Timeout, "CREWDECK_GATEWAY_TIMEOUT")
	setDuration(&cfg.Daemon.PollInterval, "CREWDECK_DAEMON_POLL_INTERVAL")
	setInt64(&cfg.Daemon.CacheMaxBytes, "CREWDECK_DAEMON_CACHE_MAX_BYTES")
	setInt(&cfg.Worker.InboxScanLimit, "CREWDECK_WORKER_INBOX_SCAN_LIMIT")
	setDuration(&cfg.Worker.ProposalCooldown, "CREWDECK_WORKER_PROPOSAL_COOLDOWN")
	setDuration(&cfg.Worker.HeartbeatInterval, "CREWDECK_WORKER_HEARTBEAT_INTERVAL")
	setDuration(&cfg.Reconcile.Interval, "CREWDECK_RECONCILE_INTERVAL")
	setString(&cfg.Logging.Level, "CREWDECK_LOG_LEVEL")
	setString(&cfg.Logging.Service, "CREWDECK_LOG_SERVICE")
	setBool(&cfg.Telemetry.Enabled, "CREWDECK_OTEL_ENABLED")
	setString(&cfg.Telemetry.OTLPEndpoint, "CREWDECK_OTLP_ENDPOINT")
}

// validate checks invariants that would otherwise fail at runtime.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port must not be empty")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn must not be empty")
	}
	if cfg.Daemon.PollInterval <= 0 {
		return errors.New("daemon.poll_interval must be positive")
	}
	if cfg.Worker.InboxScanLimit <= 0 {
		return errors.New("worker.inbox_scan_limit must be positive")
	}
	if cfg.Worker.ProposalCooldown < 0 {
		return errors.New("worker.proposal_cooldown must not be negative")
	}
	if cfg.Reconcile.Interval <= 0 {
		return errors.New("reconcile.interval must be positive")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
