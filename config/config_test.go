package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
server:
  port: 9999
  data_dir: "`+dir+`"
log:
  level: debug
  file: "`+filepath.Join(dir, "app.log")+`"
db:
  file: "`+filepath.Join(dir, "app.db")+`"
workflow:
  poll_interval: 500ms
  staleness_window: 10s
session:
  expiry_days: 14
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("Port = %d", cfg.Server.Port)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Level = %q", cfg.Log.Level)
	}
	if cfg.Workflow.PollInterval != 500*time.Millisecond {
		t.Errorf("PollInterval = %s", cfg.Workflow.PollInterval)
	}
	if cfg.Workflow.StalenessWindow != 10*time.Second {
		t.Errorf("StalenessWindow = %s", cfg.Workflow.StalenessWindow)
	}
	if cfg.Session.ExpiryDays != 14 {
		t.Errorf("ExpiryDays = %d", cfg.Session.ExpiryDays)
	}

	// Untouched keys keep their defaults.
	if cfg.Workflow.MaxFrameSize != 800 {
		t.Errorf("MaxFrameSize = %d", cfg.Workflow.MaxFrameSize)
	}
	if cfg.Workflow.EncodeQuality != 85 {
		t.Errorf("EncodeQuality = %d", cfg.Workflow.EncodeQuality)
	}
	if cfg.Workflow.EnrollAckDelay != 1500*time.Millisecond {
		t.Errorf("EnrollAckDelay = %s", cfg.Workflow.EnrollAckDelay)
	}
	if cfg.Camera.Source != "snapshot" {
		t.Errorf("Camera.Source = %q", cfg.Camera.Source)
	}
	if cfg.MQTT.Enabled {
		t.Errorf("MQTT enabled by default")
	}
}

func TestLoadRejectsBrokenFile(t *testing.T) {
	path := writeConfig(t, "server: [not a mapping")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for broken YAML")
	}
}
