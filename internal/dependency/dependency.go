// Package dependency tracks which reactive streams (internal/reactive)
// could be affected by a committed DatabaseChange (internal/types), so
// the manager only refreshes the ones that might actually need it —
// the same kind of table/column provenance a live query keeps to decide
// which of its subscribers a given write touches.
//
// The one invariant that matters: over-approximation (refreshing a
// stream that didn't actually change) is always acceptable; under-
// approximation (missing one that did) is a bug.
package dependency

import (
	"sync"

	"github.com/opensync/reactivestore/internal/schema"
	"github.com/opensync/reactivestore/internal/types"
)

// Kind classifies how a StreamDependency decides whether a DatabaseChange
// affects it.
type Kind int

const (
	// WholeTable invalidates on any change to Table.
	WholeTable Kind = iota
	// ColumnWise invalidates only if the change's affected columns
	// intersect Columns.
	ColumnWise
	// WhereClause invalidates if the change is to Table and might match
	// a where-clause the tracker can't evaluate precisely; the tracker
	// always assumes a match (conservative by design, see package doc).
	WhereClause
	// RelatedTable invalidates if the change's table is any of
	// RelatedTables, derived from schema relationships or a raw query's
	// joined tables.
	RelatedTable
)

func (k Kind) String() string {
	switch k {
	case WholeTable:
		return "whole-table"
	case ColumnWise:
		return "column-wise"
	case WhereClause:
		return "where-clause"
	case RelatedTable:
		return "related-table"
	default:
		return "unknown"
	}
}

// StreamDependency is one reason stream StreamID might need to refresh.
// A single stream can register more than one of these (a structured
// query spec always gets its primary classification plus a related-table
// entry derived from the schema, if the table participates in any
// relationship).
type StreamDependency struct {
	StreamID      string
	Kind          Kind
	Table         string
	Columns       map[string]struct{}
	RelatedTables []string
}

// QuerySpec is a structured stream registration: a table plus an
// optional where-clause, its bind args, the columns the query reads, and
// an order-by clause. Columns/Where are mutually informative only for
// classification — the where string itself is never evaluated (see
// WhereClause).
type QuerySpec struct {
	Table   string
	Where   string
	Args    []any
	Columns []string
	OrderBy string
}

// Stats is the tracker's observability snapshot.
type Stats struct {
	TotalStreams         int
	TotalDependencies    int
	ByKind               map[Kind]int
	TablesWithDependents int
}

// Tracker holds the forward (stream -> its dependencies) and reverse
// (table -> dependencies that care about it) indices.
type Tracker struct {
	mu       sync.RWMutex
	byStream map[string][]StreamDependency
	byTable  map[string][]StreamDependency
}

// New returns an empty Tracker.
func New() *Tracker {
	return &Tracker{
		byStream: make(map[string][]StreamDependency),
		byTable:  make(map[string][]StreamDependency),
	}
}

// Register records streamID's dependencies for a structured query spec,
// classifying it as where-clause if Where is set, column-wise if Columns
// is set and Where is not, else whole-table; plus a related-table
// dependency derived from s's relationships touching spec.Table, if any.
func (t *Tracker) Register(streamID string, spec QuerySpec, s *schema.Schema) {
	deps := make([]StreamDependency, 0, 2)

	primary := StreamDependency{StreamID: streamID, Table: spec.Table}
	switch {
	case spec.Where != "":
		primary.Kind = WhereClause
	case len(spec.Columns) > 0:
		primary.Kind = ColumnWise
		primary.Columns = toSet(spec.Columns)
	default:
		primary.Kind = WholeTable
	}
	deps = append(deps, primary)

	if s != nil {
		if related := relatedTables(s, spec.Table); len(related) > 0 {
			deps = append(deps, StreamDependency{
				StreamID:      streamID,
				Kind:          RelatedTable,
				RelatedTables: related,
			})
		}
	}

	t.register(streamID, deps)
}

// RegisterRawSQL records streamID's dependencies for a raw SQL string,
// pattern-scanned for table names (FROM/JOIN) and a SELECT column list.
// Classification, in priority order: contains WHERE -> where-clause;
// contains a non-"*" SELECT list -> column-wise; contains JOIN ->
// related-table; else whole-table. Scanning is approximate by design —
// it always errs toward over-invalidation.
func (t *Tracker) RegisterRawSQL(streamID, rawSQL string) {
	tables := scanTables(rawSQL)
	primaryTable := ""
	if len(tables) > 0 {
		primaryTable = tables[0]
	}
	columns := scanSelectColumns(rawSQL)

	var dep StreamDependency
	switch {
	case scanHasWhere(rawSQL):
		dep = StreamDependency{StreamID: streamID, Kind: WhereClause, Table: primaryTable}
	case len(columns) > 0:
		dep = StreamDependency{StreamID: streamID, Kind: ColumnWise, Table: primaryTable, Columns: toSet(columns)}
	case scanHasJoin(rawSQL):
		dep = StreamDependency{StreamID: streamID, Kind: RelatedTable, RelatedTables: tables}
	default:
		dep = StreamDependency{StreamID: streamID, Kind: WholeTable, Table: primaryTable}
	}

	t.register(streamID, []StreamDependency{dep})
}

func (t *Tracker) register(streamID string, deps []StreamDependency) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.byStream[streamID] = deps
	for _, d := range deps {
		for _, tbl := range dependencyTables(d) {
			t.byTable[tbl] = append(t.byTable[tbl], d)
		}
	}
}

// dependencyTables returns every table a dependency's reverse index entry
// should live under.
func dependencyTables(d StreamDependency) []string {
	if d.Kind == RelatedTable {
		return d.RelatedTables
	}
	if d.Table == "" {
		return nil
	}
	return []string{d.Table}
}

// Unregister removes every dependency streamID registered, garbage
// collecting table buckets that end up empty.
func (t *Tracker) Unregister(streamID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	deps, ok := t.byStream[streamID]
	if !ok {
		return
	}
	delete(t.byStream, streamID)

	for _, d := range deps {
		for _, tbl := range dependencyTables(d) {
			bucket := t.byTable[tbl]
			filtered := bucket[:0]
			for _, e := range bucket {
				if e.StreamID != streamID {
					filtered = append(filtered, e)
				}
			}
			if len(filtered) == 0 {
				delete(t.byTable, tbl)
			} else {
				t.byTable[tbl] = filtered
			}
		}
	}
}

// AffectedStreams returns the set of stream ids that could have changed
// as a result of c, satisfying the fan-out invariant: every stream whose
// output might genuinely differ is included; streams included spuriously
// are acceptable.
func (t *Tracker) AffectedStreams(c types.DatabaseChange) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	seen := make(map[string]struct{})
	var out []string
	for _, d := range t.byTable[c.Table] {
		if _, already := seen[d.StreamID]; already {
			continue
		}
		if !matches(d, c) {
			continue
		}
		seen[d.StreamID] = struct{}{}
		out = append(out, d.StreamID)
	}
	return out
}

func matches(d StreamDependency, c types.DatabaseChange) bool {
	switch d.Kind {
	case ColumnWise:
		return c.Intersects(d.Columns)
	case WholeTable, WhereClause, RelatedTable:
		// Already filtered to this table by the reverse index; a
		// where-clause is assumed to match per the conservative
		// evaluator, and whole-table/related-table have no finer signal
		// to check.
		return true
	default:
		return true
	}
}

// Stats returns an observability snapshot of the tracker's current state.
func (t *Tracker) Stats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	st := Stats{
		TotalStreams: len(t.byStream),
		ByKind:       make(map[Kind]int, 4),
	}
	for _, deps := range t.byStream {
		st.TotalDependencies += len(deps)
		for _, d := range deps {
			st.ByKind[d.Kind]++
		}
	}
	st.TablesWithDependents = len(t.byTable)
	return st
}

func relatedTables(s *schema.Schema, table string) []string {
	rels := s.RelationshipsByEndpoint(table)
	if len(rels) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(rels))
	var out []string
	add := func(name string) {
		if name == "" || name == table {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	for _, r := range rels {
		add(r.ParentTable)
		add(r.ChildTable)
		if r.JunctionTable != "" {
			add(r.JunctionTable)
		}
	}
	return out
}

func toSet(cols []string) map[string]struct{} {
	out := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		out[c] = struct{}{}
	}
	return out
}
