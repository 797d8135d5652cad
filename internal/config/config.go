package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config aggregates application configuration values.
type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	Graph   GraphConfig   `yaml:"graph"`
	Engine  EngineConfig  `yaml:"engine"`
	Invite  InviteConfig  `yaml:"invite"`
	Logging LoggingConfig `yaml:"logging"`
}

// HTTPConfig governs HTTP server behaviour.
type HTTPConfig struct {
	Host              string        `yaml:"host"`
	Port              int           `yaml:"port"`
	ReadTimeout       time.Duration `yaml:"readTimeout"`
	WriteTimeout      time.Duration `yaml:"writeTimeout"`
	IdleTimeout       time.Duration `yaml:"idleTimeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdownTimeout"`
	AllowedOriginsCSV string        `yaml:"allowedOrigins"`
}

// GraphConfig describes connectivity to the graph database backing the
// evidence store. An empty URI selects the in-process memory repository.
type GraphConfig struct {
	URI            string `yaml:"uri"`
	Database       string `yaml:"database"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	MaxConnections int    `yaml:"maxConnections"`
}

// EngineConfig tunes ingestion and path discovery.
type EngineConfig struct {
	MaxHops         int           `yaml:"maxHops"`
	MaxPaths        int           `yaml:"maxPaths"`
	MaxGroupSize    int           `yaml:"maxGroupSize"`
	RebuildInterval time.Duration `yaml:"rebuildInterval"`
}

// InviteConfig controls the invitation store and lifecycle.
type InviteConfig struct {
	DBPath        string        `yaml:"dbPath"` // empty selects in-memory Badger
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweepInterval"`
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level         string `yaml:"level"`
	Format        string `yaml:"format"` // text|json
	IncludeCaller bool   `yaml:"includeCaller"`
}

const (
	defaultHost            = "0.0.0.0"
	defaultPort            = 8080
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 15 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultLoggingLevel    = "info"
	defaultLoggingFormat   = "text"
	defaultGraphSessions   = 10

	defaultMaxHops         = 3
	defaultMaxPaths        = 10
	defaultMaxGroupSize    = 50
	defaultRebuildInterval = time.Hour

	defaultInviteTTL    = 7 * 24 * time.Hour
	defaultInviteSweep  = 15 * time.Minute
	configFileEnv       = "WARMPATH_CONFIG"
	maxConfiguredHops   = 6
	maxConfiguredPaths  = 100
)

// Load reads configuration from an optional YAML file (WARMPATH_CONFIG) and
// environment variables. Environment values override file values.
func Load() (Config, error) {
	cfg := defaults()

	if path := os.Getenv(configFileEnv); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)

	port, err := parsePort("SERVER_PORT", cfg.HTTP.Port)
	if err != nil {
		return Config{}, err
	}
	cfg.HTTP.Port = port

	if cfg.Engine.MaxHops <= 0 || cfg.Engine.MaxHops > maxConfiguredHops {
		return Config{}, fmt.Errorf("engine.maxHops must be in 1..%d, got %d", maxConfiguredHops, cfg.Engine.MaxHops)
	}
	if cfg.Engine.MaxPaths <= 0 || cfg.Engine.MaxPaths > maxConfiguredPaths {
		return Config{}, fmt.Errorf("engine.maxPaths must be in 1..%d, got %d", maxConfiguredPaths, cfg.Engine.MaxPaths)
	}

	return cfg, nil
}

func defaults() Config {
	return Config{
		HTTP: HTTPConfig{
			Host:            defaultHost,
			Port:            defaultPort,
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			IdleTimeout:     defaultIdleTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Graph: GraphConfig{
			MaxConnections: defaultGraphSessions,
		},
		Engine: EngineConfig{
			MaxHops:         defaultMaxHops,
			MaxPaths:        defaultMaxPaths,
			MaxGroupSize:    defaultMaxGroupSize,
			RebuildInterval: defaultRebuildInterval,
		},
		Invite: InviteConfig{
			TTL:           defaultInviteTTL,
			SweepInterval: defaultInviteSweep,
		},
		Logging: LoggingConfig{
			Level:  defaultLoggingLevel,
			Format: defaultLoggingFormat,
		},
	}
}

func loadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.HTTP.Host = valueOrDefault("SERVER_HOST", cfg.HTTP.Host)
	cfg.HTTP.AllowedOriginsCSV = valueOrDefault("SERVER_ALLOWED_ORIGINS", cfg.HTTP.AllowedOriginsCSV)
	applyDuration("SERVER_READ_TIMEOUT", &cfg.HTTP.ReadTimeout)
	applyDuration("SERVER_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout)
	applyDuration("SERVER_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout)
	applyDuration("SERVER_SHUTDOWN_TIMEOUT", &cfg.HTTP.ShutdownTimeout)

	cfg.Graph.URI = valueOrDefault("GRAPH_URI", cfg.Graph.URI)
	cfg.Graph.Database = valueOrDefault("GRAPH_DATABASE", cfg.Graph.Database)
	cfg.Graph.Username = valueOrDefault("GRAPH_USERNAME", cfg.Graph.Username)
	cfg.Graph.Password = valueOrDefault("GRAPH_PASSWORD", cfg.Graph.Password)
	cfg.Graph.MaxConnections = parseIntWithDefault("GRAPH_MAX_CONNECTIONS", cfg.Graph.MaxConnections)

	cfg.Engine.MaxHops = parseIntWithDefault("ENGINE_MAX_HOPS", cfg.Engine.MaxHops)
	cfg.Engine.MaxPaths = parseIntWithDefault("ENGINE_MAX_PATHS", cfg.Engine.MaxPaths)
	cfg.Engine.MaxGroupSize = parseIntWithDefault("ENGINE_MAX_GROUP_SIZE", cfg.Engine.MaxGroupSize)
	applyDuration("ENGINE_REBUILD_INTERVAL", &cfg.Engine.RebuildInterval)

	cfg.Invite.DBPath = valueOrDefault("INVITE_DB_PATH", cfg.Invite.DBPath)
	applyDuration("INVITE_TTL", &cfg.Invite.TTL)
	applyDuration("INVITE_SWEEP_INTERVAL", &cfg.Invite.SweepInterval)

	cfg.Logging.Level = valueOrDefault("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = valueOrDefault("LOG_FORMAT", cfg.Logging.Format)
	cfg.Logging.IncludeCaller = parseBoolWithDefault("LOG_INCLUDE_CALLER", cfg.Logging.IncludeCaller)
}

func valueOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func applyDuration(key string, target *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*target = d
		}
	}
}

func parseBoolWithDefault(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		val, err := strconv.ParseBool(v)
		if err != nil {
			return fallback
		}
		return val
	}
	return fallback
}

func parseIntWithDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if val, err := strconv.Atoi(v); err == nil {
			return val
		}
	}
	return fallback
}

func parsePort(key string, fallback int) (int, error) {
	if v := os.Getenv(key); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
		}
		if port <= 0 || port > 65535 {
			return 0, fmt.Errorf("port %d is out of range", port)
		}
		return port, nil
	}
	return fallback, nil
}
