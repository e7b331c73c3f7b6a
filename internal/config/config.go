// Package config loads the documented option defaults for
// internal/access's BulkLoadOptions, internal/sync's Options, and
// internal/reactive's StreamOptions/DataAccessOptions, optionally
// overridden by a TOML file: defaults first, then a config file on top,
// without a flag/env binding layer, since this module is an embeddable
// library rather than a command with its own flags and environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/opensync/reactivestore/internal/access"
	"github.com/opensync/reactivestore/internal/reactive"
	"github.com/opensync/reactivestore/internal/sync"
)

// Config aggregates every component's option defaults in one place, the
// shape a caller loads once at startup and threads through its
// DataAccess/Manager constructors.
type Config struct {
	BulkLoad           access.BulkLoadOptions
	ServerSync         sync.Options
	ReactiveStream     reactive.StreamOptions
	ReactiveDataAccess reactive.DataAccessOptions
}

// Default returns every component's documented defaults, unmodified by
// any file.
func Default() Config {
	return Config{
		BulkLoad:           access.DefaultBulkLoadOptions(),
		ServerSync:         sync.DefaultOptions(),
		ReactiveStream:     reactive.DefaultStreamOptions(),
		ReactiveDataAccess: reactive.DefaultDataAccessOptions(),
	}
}

// fileConfig is the TOML-decodable shape. Durations are strings
// (time.ParseDuration syntax, e.g. "2s", "5m") since BurntSushi/toml has
// no built-in time.Duration support.
type fileConfig struct {
	BulkLoad struct {
		BatchSize        *int  `toml:"batch_size"`
		ClearTableFirst  *bool `toml:"clear_table_first"`
		UpsertMode       *bool `toml:"upsert_mode"`
		AllowPartialData *bool `toml:"allow_partial_data"`
		CollectErrors    *bool `toml:"collect_errors"`
		ValidateData     *bool `toml:"validate_data"`
		IsFromServer     *bool `toml:"is_from_server"`
	} `toml:"bulk_load"`

	ServerSync struct {
		RetryAttempts     *int     `toml:"retry_attempts"`
		RetryDelay        *string  `toml:"retry_delay"`
		BackoffMultiplier *float64 `toml:"backoff_multiplier"`
		MaxDelay          *string  `toml:"max_delay"`
		BatchSize         *int     `toml:"batch_size"`
		SyncInterval      *string  `toml:"sync_interval"`
	} `toml:"server_sync"`

	ReactiveStream struct {
		BufferChanges *bool   `toml:"buffer_changes"`
		DebounceTime  *string `toml:"debounce_time"`
	} `toml:"reactive_stream"`

	ReactiveDataAccess struct {
		AutoCleanupInterval *string `toml:"auto_cleanup_interval"`
	} `toml:"reactive_data_access"`
}

// LoadFile reads defaults, then overrides them with whatever path's TOML
// file sets; a field the file omits keeps its default. The file is
// optional: a missing path returns the unmodified defaults. Returns an
// error if path exists but fails to parse, or names a duration string
// time.ParseDuration rejects.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
	}

	if v := fc.BulkLoad.BatchSize; v != nil {
		cfg.BulkLoad.BatchSize = *v
	}
	if v := fc.BulkLoad.ClearTableFirst; v != nil {
		cfg.BulkLoad.ClearTableFirst = *v
	}
	if v := fc.BulkLoad.UpsertMode; v != nil {
		cfg.BulkLoad.UpsertMode = *v
	}
	if v := fc.BulkLoad.AllowPartialData; v != nil {
		cfg.BulkLoad.AllowPartialData = *v
	}
	if v := fc.BulkLoad.CollectErrors; v != nil {
		cfg.BulkLoad.CollectErrors = *v
	}
	if v := fc.BulkLoad.ValidateData; v != nil {
		cfg.BulkLoad.ValidateData = *v
	}
	if v := fc.BulkLoad.IsFromServer; v != nil {
		cfg.BulkLoad.IsFromServer = *v
	}

	if v := fc.ServerSync.RetryAttempts; v != nil {
		cfg.ServerSync.RetryAttempts = *v
	}
	if v := fc.ServerSync.BackoffMultiplier; v != nil {
		cfg.ServerSync.BackoffMultiplier = *v
	}
	if v := fc.ServerSync.BatchSize; v != nil {
		cfg.ServerSync.BatchSize = *v
	}
	var err error
	if cfg.ServerSync.RetryDelay, err = parseDurationField(fc.ServerSync.RetryDelay, cfg.ServerSync.RetryDelay); err != nil {
		return Config{}, fmt.Errorf("config: server_sync.retry_delay: %w", err)
	}
	if cfg.ServerSync.MaxDelay, err = parseDurationField(fc.ServerSync.MaxDelay, cfg.ServerSync.MaxDelay); err != nil {
		return Config{}, fmt.Errorf("config: server_sync.max_delay: %w", err)
	}
	if cfg.ServerSync.SyncInterval, err = parseDurationField(fc.ServerSync.SyncInterval, cfg.ServerSync.SyncInterval); err != nil {
		return Config{}, fmt.Errorf("config: server_sync.sync_interval: %w", err)
	}

	if v := fc.ReactiveStream.BufferChanges; v != nil {
		cfg.ReactiveStream.BufferChanges = *v
	}
	if cfg.ReactiveStream.DebounceTime, err = parseDurationField(fc.ReactiveStream.DebounceTime, cfg.ReactiveStream.DebounceTime); err != nil {
		return Config{}, fmt.Errorf("config: reactive_stream.debounce_time: %w", err)
	}

	if cfg.ReactiveDataAccess.AutoCleanupInterval, err = parseDurationField(fc.ReactiveDataAccess.AutoCleanupInterval, cfg.ReactiveDataAccess.AutoCleanupInterval); err != nil {
		return Config{}, fmt.Errorf("config: reactive_data_access.auto_cleanup_interval: %w", err)
	}

	return cfg, nil
}

func parseDurationField(s *string, fallback time.Duration) (time.Duration, error) {
	if s == nil {
		return fallback, nil
	}
	return time.ParseDuration(*s)
}
