package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(path, contents string) error {
	return os.WriteFile(path, []byte(contents), 0o644)
}

func TestDefault_MatchesDocumentedDefaults(t *testing.T) {
	cfg := Default()
	if cfg.BulkLoad.BatchSize != 500 {
		t.Errorf("bulk load batch size = %d, want 500", cfg.BulkLoad.BatchSize)
	}
	if !cfg.BulkLoad.ValidateData {
		t.Error("expected bulk load validate-data to default true")
	}
	if cfg.ServerSync.RetryAttempts != 3 {
		t.Errorf("retry attempts = %d, want 3", cfg.ServerSync.RetryAttempts)
	}
	if cfg.ServerSync.RetryDelay != 2*time.Second {
		t.Errorf("retry delay = %v, want 2s", cfg.ServerSync.RetryDelay)
	}
	if cfg.ServerSync.MaxDelay != 5*time.Minute {
		t.Errorf("max delay = %v, want 5m", cfg.ServerSync.MaxDelay)
	}
	if cfg.ServerSync.SyncInterval != 5*time.Minute {
		t.Errorf("sync interval = %v, want 5m", cfg.ServerSync.SyncInterval)
	}
	if !cfg.ReactiveStream.BufferChanges {
		t.Error("expected buffer-changes to default true")
	}
	if cfg.ReactiveStream.DebounceTime != 100*time.Millisecond {
		t.Errorf("debounce time = %v, want 100ms", cfg.ReactiveStream.DebounceTime)
	}
	if cfg.ReactiveDataAccess.AutoCleanupInterval != 5*time.Minute {
		t.Errorf("auto cleanup interval = %v, want 5m", cfg.ReactiveDataAccess.AutoCleanupInterval)
	}
}

func TestLoadFile_MissingPathReturnsDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("load file: %v", err)
	}
	if cfg.BulkLoad.BatchSize != 500 {
		t.Errorf("expected defaults preserved, got batch size %d", cfg.BulkLoad.BatchSize)
	}
}

func TestLoadFile_OverridesOnlySetFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `
[bulk_load]
batch_size = 100

[server_sync]
retry_attempts = 5
retry_delay = "1s"

[reactive_stream]
debounce_time = "250ms"
`
	if err := writeFile(path, contents); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load file: %v", err)
	}
	if cfg.BulkLoad.BatchSize != 100 {
		t.Errorf("batch size = %d, want 100", cfg.BulkLoad.BatchSize)
	}
	if !cfg.BulkLoad.ValidateData {
		t.Error("expected validate-data to keep its default true since the file didn't set it")
	}
	if cfg.ServerSync.RetryAttempts != 5 {
		t.Errorf("retry attempts = %d, want 5", cfg.ServerSync.RetryAttempts)
	}
	if cfg.ServerSync.RetryDelay != time.Second {
		t.Errorf("retry delay = %v, want 1s", cfg.ServerSync.RetryDelay)
	}
	if cfg.ServerSync.BatchSize != 50 {
		t.Errorf("expected sync batch size to keep its default 50, got %d", cfg.ServerSync.BatchSize)
	}
	if cfg.ReactiveStream.DebounceTime != 250*time.Millisecond {
		t.Errorf("debounce time = %v, want 250ms", cfg.ReactiveStream.DebounceTime)
	}
}

func TestLoadFile_InvalidDurationErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `
[server_sync]
retry_delay = "not-a-duration"
`
	if err := writeFile(path, contents); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected an error for an unparseable duration")
	}
}
