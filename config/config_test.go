package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatal(err)
	}
	want := defaults()
	if diff := cmp.Diff(&want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
  "serial": {"port": "/dev/ttyS3", "timeoutSec": 2},
  "monitor": {"intervalSec": 1, "alertThresholdDegPerSec": 2.5, "historyEnabled": false},
  "redis": {"enabled": true, "addr": "redis:6379"}
}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Serial.Port != "/dev/ttyS3" || cfg.Serial.TimeoutSec != 2 {
		t.Errorf("serial = %+v", cfg.Serial)
	}
	if cfg.Monitor.IntervalSec != 1 || cfg.Monitor.AlertThreshold != 2.5 || cfg.Monitor.HistoryEnabled {
		t.Errorf("monitor = %+v", cfg.Monitor)
	}
	if !cfg.Redis.Enabled || cfg.Redis.Addr != "redis:6379" {
		t.Errorf("redis = %+v", cfg.Redis)
	}
	// Sections absent from the file keep their defaults.
	if cfg.Server.Addr != "127.0.0.1:8502" {
		t.Errorf("server addr = %q", cfg.Server.Addr)
	}
}

func TestLoadBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("malformed config accepted")
	}
}

func TestEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"serial": {"port": "/dev/ttyS9"}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	// Environment beats both file and defaults.
	t.Setenv("MOUNT_SERIAL_PORT", "/dev/ttyACM0")
	t.Setenv("MOUNT_MONITOR_INTERVAL_SEC", "0.5")
	t.Setenv("MOUNT_HISTORY_ENABLED", "false")
	t.Setenv("MOUNT_REDIS_ENABLED", "true")
	t.Setenv("MOUNT_REDIS_DB", "3")
	t.Setenv("MOUNT_POWER_BAUD", "not a number")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Serial.Port != "/dev/ttyACM0" {
		t.Errorf("port = %q", cfg.Serial.Port)
	}
	if cfg.Monitor.IntervalSec != 0.5 {
		t.Errorf("interval = %v", cfg.Monitor.IntervalSec)
	}
	if cfg.Monitor.HistoryEnabled {
		t.Error("history still enabled despite env override")
	}
	if !cfg.Redis.Enabled || cfg.Redis.DB != 3 {
		t.Errorf("redis = %+v", cfg.Redis)
	}
	// Unparseable values are ignored, not fatal.
	if cfg.Power.Baud != 19200 {
		t.Errorf("baud = %d", cfg.Power.Baud)
	}
}
