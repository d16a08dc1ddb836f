package broker_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/topichub/topichub/internal/broker"
)

// TestNewConfigDefaults verifies the built-in defaults.
func TestNewConfigDefaults(t *testing.T) {
	cfg := broker.NewConfig()

	if cfg.Listen != ":1999" {
		t.Errorf("Listen = %q, want :1999", cfg.Listen)
	}
	if cfg.WSListen != "" {
		t.Errorf("WSListen = %q, want empty", cfg.WSListen)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 5s", cfg.ShutdownTimeout)
	}
}

// TestConfigSanitize verifies that invalid settings fall back to defaults
// and bare ports gain a colon.
func TestConfigSanitize(t *testing.T) {
	cfg := broker.Config{Listen: "2050", ShutdownTimeout: -1}.Sanitize()
	if cfg.Listen != ":2050" {
		t.Errorf("Listen = %q, want :2050", cfg.Listen)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 5s", cfg.ShutdownTimeout)
	}

	cfg = broker.Config{}.Sanitize()
	if cfg.Listen != ":1999" {
		t.Errorf("Listen = %q, want :1999", cfg.Listen)
	}
}

// TestNewConfigFromEnv verifies environment overrides.
func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("TOPICHUB_LISTEN", ":3000")
	t.Setenv("TOPICHUB_WS_LISTEN", ":3001")
	t.Setenv("TOPICHUB_ALLOWED_ORIGINS", "http://a.example.com, http://b.example.com")
	t.Setenv("TOPICHUB_SHUTDOWN_TIMEOUT", "10s")

	cfg := broker.NewConfigFromEnv()

	if cfg.Listen != ":3000" {
		t.Errorf("Listen = %q, want :3000", cfg.Listen)
	}
	if cfg.WSListen != ":3001" {
		t.Errorf("WSListen = %q, want :3001", cfg.WSListen)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "http://b.example.com" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 10s", cfg.ShutdownTimeout)
	}
}

// TestLoadConfig verifies the YAML file path, including merge over env
// defaults and the sanitize pass.
func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broker.yaml")
	contents := "listen: \":2100\"\nws_listen: \":2101\"\nallowed_origins:\n  - \"http://ui.example.com\"\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := broker.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Listen != ":2100" {
		t.Errorf("Listen = %q, want :2100", cfg.Listen)
	}
	if cfg.WSListen != ":2101" {
		t.Errorf("WSListen = %q, want :2101", cfg.WSListen)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "http://ui.example.com" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, want default 5s", cfg.ShutdownTimeout)
	}
}

// TestLoadConfigMissingFile verifies the error path for an absent file.
func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := broker.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("LoadConfig of missing file succeeded, want error")
	}
}
