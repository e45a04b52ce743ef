package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsWhenMissing(t *testing.T) {
	t.Setenv("BUBBLE_CONFIG_DIR", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HideAfter() != 8*time.Second {
		t.Fatalf("HideAfter=%s want 8s", cfg.HideAfter())
	}
	if cfg.Log.Level != "info" || cfg.Live.DebounceMS != DefaultDebounceMS {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("BUBBLE_CONFIG_DIR", dir)
	t.Setenv("BUBBLE_DATA_DIR", filepath.Join(dir, "data"))

	yml := "log:\n  level: debug\n  format: json\nlikely:\n  hide_after_seconds: 3\n  notify_command: [notify-send, Likely]\nimport:\n  require_email_agreement: true\nbackup:\n  schedule: \"@daily\"\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yml), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Log.Format != "json" || cfg.HideAfter() != 3*time.Second {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if len(cfg.Likely.NotifyCommand) != 2 || !cfg.Import.RequireEmailAgreement {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	spool, err := cfg.SpoolPath()
	if err != nil {
		t.Fatalf("SpoolPath: %v", err)
	}
	if spool != filepath.Join(dir, "data", DefaultSpoolFile) {
		t.Fatalf("SpoolPath=%s", spool)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv("BUBBLE_CONFIG_DIR", t.TempDir())

	cfg := defaults()
	cfg.Backup.Schedule = "0 3 * * *"
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Backup.Schedule != "0 3 * * *" {
		t.Fatalf("Schedule=%q", got.Backup.Schedule)
	}
}
