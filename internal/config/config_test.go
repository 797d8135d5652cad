package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("WARMPATH_CONFIG", "")
	t.Setenv("SERVER_PORT", "")
	t.Setenv("ENGINE_MAX_HOPS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.HTTP.Host != "0.0.0.0" || cfg.HTTP.Port != 8080 {
		t.Fatalf("unexpected HTTP defaults: %+v", cfg.HTTP)
	}
	if cfg.Engine.MaxHops != 3 || cfg.Engine.MaxPaths != 10 || cfg.Engine.MaxGroupSize != 50 {
		t.Fatalf("unexpected engine defaults: %+v", cfg.Engine)
	}
	if cfg.Invite.TTL != 7*24*time.Hour {
		t.Fatalf("unexpected invite TTL: %s", cfg.Invite.TTL)
	}
	if cfg.Graph.URI != "" {
		t.Fatalf("expected the memory repository by default, got URI %q", cfg.Graph.URI)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("WARMPATH_CONFIG", "")
	t.Setenv("SERVER_HOST", "127.0.0.1")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("GRAPH_URI", "neo4j://graph:7687")
	t.Setenv("GRAPH_USERNAME", "neo4j")
	t.Setenv("ENGINE_MAX_HOPS", "5")
	t.Setenv("ENGINE_REBUILD_INTERVAL", "30m")
	t.Setenv("INVITE_TTL", "48h")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.HTTP.Host != "127.0.0.1" || cfg.HTTP.Port != 9090 {
		t.Fatalf("unexpected HTTP config: %+v", cfg.HTTP)
	}
	if cfg.Graph.URI != "neo4j://graph:7687" || cfg.Graph.Username != "neo4j" {
		t.Fatalf("unexpected graph config: %+v", cfg.Graph)
	}
	if cfg.Engine.MaxHops != 5 {
		t.Fatalf("expected maxHops 5, got %d", cfg.Engine.MaxHops)
	}
	if cfg.Engine.RebuildInterval != 30*time.Minute {
		t.Fatalf("expected 30m rebuild interval, got %s", cfg.Engine.RebuildInterval)
	}
	if cfg.Invite.TTL != 48*time.Hour {
		t.Fatalf("expected 48h invite TTL, got %s", cfg.Invite.TTL)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected json log format, got %q", cfg.Logging.Format)
	}
}

func TestLoadYAMLFileWithEnvPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
http:
  host: file-host
  port: 7000
engine:
  maxHops: 4
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("WARMPATH_CONFIG", path)
	t.Setenv("SERVER_HOST", "env-host")
	t.Setenv("SERVER_PORT", "")
	t.Setenv("ENGINE_MAX_HOPS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.HTTP.Host != "env-host" {
		t.Fatalf("expected the environment to win, got host %q", cfg.HTTP.Host)
	}
	if cfg.HTTP.Port != 7000 {
		t.Fatalf("expected file port 7000, got %d", cfg.HTTP.Port)
	}
	if cfg.Engine.MaxHops != 4 {
		t.Fatalf("expected file maxHops 4, got %d", cfg.Engine.MaxHops)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected file log level debug, got %q", cfg.Logging.Level)
	}
}

func TestLoadRejectsMissingConfigFile(t *testing.T) {
	t.Setenv("WARMPATH_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	if _, err := Load(); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name     string
		key, val string
	}{
		{"non-numeric port", "SERVER_PORT", "not-a-port"},
		{"port out of range", "SERVER_PORT", "70000"},
		{"zero hops", "ENGINE_MAX_HOPS", "0"},
		{"hops above bound", "ENGINE_MAX_HOPS", "7"},
		{"paths above bound", "ENGINE_MAX_PATHS", "500"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("WARMPATH_CONFIG", "")
			t.Setenv("SERVER_PORT", "")
			t.Setenv("ENGINE_MAX_HOPS", "")
			t.Setenv("ENGINE_MAX_PATHS", "")
			t.Setenv(tc.key, tc.val)

			if _, err := Load(); err == nil {
				t.Fatal("expected a validation error")
			}
		})
	}
}
