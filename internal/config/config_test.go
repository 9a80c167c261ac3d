package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	m := NewManagerWithPath(filepath.Join(t.TempDir(), "config.json"))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Cache.MaxEntries != 1000 {
		t.Errorf("Expected default maxEntries 1000, got %d", cfg.Cache.MaxEntries)
	}
	if cfg.Cache.TTL() != 5*time.Minute {
		t.Errorf("Expected default TTL 5m, got %v", cfg.Cache.TTL())
	}
	if cfg.Cache.MaxMemoryBytes != 100*1024*1024 {
		t.Errorf("Expected default memory bound 100MiB, got %d", cfg.Cache.MaxMemoryBytes)
	}
	if !cfg.Cache.BackgroundRefresh {
		t.Error("Expected background refresh enabled by default")
	}
	if cfg.Scroller.ViewportSize != 50 || cfg.Scroller.BufferSize != 25 {
		t.Errorf("Unexpected scroller defaults: %+v", cfg.Scroller)
	}
	if cfg.Scroller.BatchSize != 100 || cfg.Scroller.MaxLoadedItems != 500 {
		t.Errorf("Unexpected scroller defaults: %+v", cfg.Scroller)
	}
	if cfg.Remote.ConnectTimeout() != 30*time.Second {
		t.Errorf("Expected default connect timeout 30s, got %v", cfg.Remote.ConnectTimeout())
	}
	if cfg.Remote.IdleTimeout() != 10*time.Minute {
		t.Errorf("Expected default idle timeout 10m, got %v", cfg.Remote.IdleTimeout())
	}
	if cfg.Remote.Workers != 4 {
		t.Errorf("Expected default workers 4, got %d", cfg.Remote.Workers)
	}
}

func TestLoadMergesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"cache": {"maxEntries": 50, "backgroundRefresh": true}, "remote": {"workers": 8}}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := NewManagerWithPath(path).Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Cache.MaxEntries != 50 {
		t.Errorf("Expected file value 50, got %d", cfg.Cache.MaxEntries)
	}
	if cfg.Cache.TTLSeconds != 300 {
		t.Errorf("Expected default TTL to survive the merge, got %d", cfg.Cache.TTLSeconds)
	}
	if cfg.Remote.Workers != 8 {
		t.Errorf("Expected file value 8 workers, got %d", cfg.Remote.Workers)
	}
	if cfg.Scroller.BatchSize != 100 {
		t.Errorf("Expected default batch size 100, got %d", cfg.Scroller.BatchSize)
	}
}

func TestLoadPartialFileKeepsBoolDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"cache": {"maxEntries": 50}}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := NewManagerWithPath(path).Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if !cfg.Cache.BackgroundRefresh {
		t.Error("Expected background refresh to stay enabled when the file omits it")
	}
	if !cfg.Scroller.PredictiveLoading {
		t.Error("Expected predictive loading to stay enabled when the file omits it")
	}
	if cfg.Cache.MaxEntries != 50 {
		t.Errorf("Expected file value 50, got %d", cfg.Cache.MaxEntries)
	}
}

func TestLoadHonorsExplicitFalse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"cache": {"backgroundRefresh": false}, "scroller": {"predictiveLoading": false}}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := NewManagerWithPath(path).Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Cache.BackgroundRefresh {
		t.Error("Expected explicit false to disable background refresh")
	}
	if cfg.Scroller.PredictiveLoading {
		t.Error("Expected explicit false to disable predictive loading")
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	if _, err := NewManagerWithPath(path).Load(); err == nil {
		t.Error("Expected error for malformed config")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	m := NewManagerWithPath(path)

	cfg, _ := m.Load()
	cfg.Cache.MaxEntries = 123
	cfg.Scroller.PredictiveLoading = true
	if err := m.Save(cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := m.Load()
	if err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if loaded.Cache.MaxEntries != 123 {
		t.Errorf("Expected saved value 123, got %d", loaded.Cache.MaxEntries)
	}
	if !loaded.Scroller.PredictiveLoading {
		t.Error("Expected predictive loading to survive the round trip")
	}
}
