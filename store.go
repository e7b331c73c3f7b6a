// Package reactivestore provides a minimal public API for an
// offline-first local data layer: a declarative schema migrated into an
// embedded SQLite database, per-column last-writer-wins conflict
// resolution, dependency-tracked reactive streams, and a batched,
// retrying server sync manager — composed over one shared Data Access
// Core rather than built as a chain of subclasses.
//
// Most callers only need Open, Store.Access (LWW-aware reads/writes),
// Store.Reactive (stream subscriptions), and Store.Sync (pushing the
// pending queue to a server). The internal/... packages do the real
// work; this package only re-exports the types and constructors an
// embedder needs.
package reactivestore

import (
	"context"
	"fmt"

	"github.com/gofrs/flock"

	"github.com/opensync/reactivestore/internal/access"
	"github.com/opensync/reactivestore/internal/config"
	"github.com/opensync/reactivestore/internal/dependency"
	"github.com/opensync/reactivestore/internal/engine"
	"github.com/opensync/reactivestore/internal/lww"
	"github.com/opensync/reactivestore/internal/migrate"
	"github.com/opensync/reactivestore/internal/obs"
	"github.com/opensync/reactivestore/internal/reactive"
	"github.com/opensync/reactivestore/internal/schema"
	"github.com/opensync/reactivestore/internal/sync"
	"github.com/opensync/reactivestore/internal/types"
)

// Core types from internal/schema, re-exported so a caller never needs
// to import internal/... directly.
type (
	Schema           = schema.Schema
	SchemaBuilder    = schema.Builder
	Table            = schema.Table
	TableBuilder     = schema.TableBuilder
	Column           = schema.Column
	Constraint       = schema.Constraint
	Index            = schema.Index
	View             = schema.View
	Relationship     = schema.Relationship
	RelationshipKind = schema.RelationshipKind
)

// Column constraint/affinity constants.
const (
	ConstraintNotNull = schema.ConstraintNotNull
	ConstraintUnique  = schema.ConstraintUnique
)

// Value affinities from internal/types.
const (
	AffinityInteger = types.AffinityInteger
	AffinityReal    = types.AffinityReal
	AffinityText    = types.AffinityText
	AffinityBlob    = types.AffinityBlob
	AffinityDate    = types.AffinityDate
)

// NewSchemaBuilder starts a new schema definition.
func NewSchemaBuilder() *SchemaBuilder { return schema.NewBuilder() }

// NewTable starts a new table definition.
func NewTable(name string) *TableBuilder { return schema.NewTable(name) }

// SchemaFromYAML decodes a schema declared in YAML — tables, columns,
// indices, views, and relationships — as an alternative to assembling one
// with NewSchemaBuilder. It goes through the same Builder validation a
// programmatic schema does.
func SchemaFromYAML(data []byte) (*Schema, error) { return schema.FromYAML(data) }

// SchemaFromYAMLFile reads and decodes a schema file at path.
func SchemaFromYAMLFile(path string) (*Schema, error) { return schema.FromYAMLFile(path) }

// ReservedTable is the LWW engine's timestamp/value store table. A
// schema that uses any LWW column must AddTable this before Build.
func ReservedTable() *Table { return lww.ReservedTable() }

// Row, QueryOptions, BulkLoadOptions/Result from internal/access.
type (
	Row             = access.Row
	QueryOptions    = access.QueryOptions
	BulkLoadOptions = access.BulkLoadOptions
	BulkLoadResult  = access.BulkLoadResult
	RowError        = access.RowError
)

// DefaultBulkLoadOptions returns the documented defaults: batch-size
// 500, validate-data true, everything else off.
func DefaultBulkLoadOptions() BulkLoadOptions { return access.DefaultBulkLoadOptions() }

// LWW-aware types from internal/lww.
type (
	LWWDataAccess   = lww.DataAccess
	BulkRow         = lww.BulkRow
	PendingQueue    = lww.PendingQueue
	LWWWriteOptions = lww.LWWWriteOptions
)

// LWWColumnValue, PendingOperation, DatabaseChange from internal/types.
type (
	LWWColumnValue   = types.LWWColumnValue
	PendingOperation = types.PendingOperation
	DatabaseChange   = types.DatabaseChange
	PendingKind      = types.PendingKind
)

// PendingOperation kinds.
const (
	PendingInsert = types.PendingInsert
	PendingUpdate = types.PendingUpdate
	PendingDelete = types.PendingDelete
)

// Reactive stream types from internal/reactive and internal/dependency.
type (
	Stream                    = reactive.Stream
	StreamOptions             = reactive.StreamOptions
	Emission                  = reactive.Emission
	Generator                 = reactive.Generator
	ReactiveManager           = reactive.Manager
	ReactiveDataAccess        = reactive.DataAccess
	ReactiveDataAccessOptions = reactive.DataAccessOptions
	QuerySpec                 = dependency.QuerySpec
	DependencyStats           = dependency.Stats
)

// DefaultStreamOptions returns the documented defaults: buffer-changes
// true, debounce-time 100ms.
func DefaultStreamOptions() StreamOptions { return reactive.DefaultStreamOptions() }

// DefaultReactiveDataAccessOptions returns the documented default:
// auto-cleanup-interval 5 minutes.
func DefaultReactiveDataAccessOptions() ReactiveDataAccessOptions {
	return reactive.DefaultDataAccessOptions()
}

// Sync types from internal/sync.
type (
	SyncOptions     = sync.Options
	SyncResult      = sync.Result
	SyncFailure     = sync.FailedOp
	SyncBatchResult = sync.BatchResult
	UploadFunc      = sync.UploadFunc
	StatusFunc      = sync.StatusFunc
	BatchStatusFunc = sync.BatchStatusFunc
	SyncManager     = sync.Manager
)

// DefaultSyncOptions returns the documented defaults: 3 retries, 2s
// initial delay doubling to a 5 minute cap, 50 ops/batch, synced every
// 5 minutes.
func DefaultSyncOptions() SyncOptions { return sync.DefaultOptions() }

// Config aggregates every component's option defaults, optionally
// loaded from a TOML file via LoadConfigFile.
type Config = config.Config

// DefaultConfig returns every component's documented defaults.
func DefaultConfig() Config { return config.Default() }

// LoadConfigFile loads Config, overriding only the fields an optional
// TOML file sets. A missing path returns the defaults unmodified.
func LoadConfigFile(path string) (Config, error) { return config.LoadFile(path) }

// Logger is the rotating status logger from internal/obs. Open keeps the
// one passed in Options; the sync and cleanup loops do not write to it.
type Logger = obs.Logger

// LoggerOptions configures a Logger.
type LoggerOptions = obs.Options

// NewLogger returns a Logger per opts.
func NewLogger(opts LoggerOptions) *Logger { return obs.New(opts) }

// Options configures Open.
type Options struct {
	Config  Config
	Upload  UploadFunc // if nil, no Sync manager is created
	Status  StatusFunc
	OnBatch BatchStatusFunc
	Logger  *Logger
}

// Store bundles the schema, engine, and the three capability layers —
// LWW conflict resolution, reactive streams, and server sync — composed
// over one shared Data Access Core rather than a class hierarchy, per
// the "composition over inheritance" design note: Access and the
// internal reactive wrapper both wrap the same underlying
// access.DataAccess pointer, so a mutation through Access reaches the
// reactive notify hook that drives Reactive's streams.
type Store struct {
	Engine engine.Engine
	Schema *Schema

	Access   *LWWDataAccess
	Reactive *ReactiveManager
	Sync     *SyncManager

	reactiveAccess *ReactiveDataAccess
	logger         *Logger
	lock           *flock.Flock
}

// Open acquires an exclusive advisory lock on path+".lock" — so two
// processes never interleave writes against the same file through
// separate engine handles — migrates s into the database at path, then
// wires up LWW, reactive streams, and (if opts.Upload is set) sync,
// returning a ready Store.
func Open(ctx context.Context, path string, s *Schema, opts Options) (*Store, error) {
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("reactivestore: acquire lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("reactivestore: database %q is already open by another process", path)
	}

	e, err := engine.Open(path)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("reactivestore: open engine: %w", err)
	}
	if err := migrate.Migrate(ctx, e, s); err != nil {
		_ = e.Close()
		_ = lock.Unlock()
		return nil, fmt.Errorf("reactivestore: migrate: %w", err)
	}

	base := access.New(e, s)
	manager := reactive.NewManager(s)
	reactiveAccess := reactive.New(ctx, base, manager, opts.Config.ReactiveDataAccess)
	lwwAccess := lww.New(base)

	var syncMgr *SyncManager
	if opts.Upload != nil {
		syncMgr = sync.New(lwwAccess.Pending, opts.Upload, opts.Config.ServerSync, opts.Status)
		if opts.OnBatch != nil {
			syncMgr.OnBatchComplete(opts.OnBatch)
		}
	}

	return &Store{
		Engine:         e,
		Schema:         s,
		Access:         lwwAccess,
		Reactive:       manager,
		Sync:           syncMgr,
		reactiveAccess: reactiveAccess,
		logger:         opts.Logger,
		lock:           lock,
	}, nil
}

// Close stops background loops (reactive cleanup, auto-sync), closes
// the underlying engine, and releases the advisory lock acquired by
// Open so another process may open the same database.
func (s *Store) Close() error {
	if s.reactiveAccess != nil {
		s.reactiveAccess.Close()
	}
	if s.Sync != nil {
		s.Sync.StopAutoSync()
	}
	err := s.Engine.Close()
	if s.lock != nil {
		_ = s.lock.Unlock()
	}
	return err
}
