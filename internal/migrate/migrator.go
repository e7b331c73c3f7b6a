// Package migrate brings a live database additively into line with a
// declared schema. It never drops or alters existing structure: missing
// tables and indices are created; everything else is left as-is.
package migrate

import (
	"context"
	"fmt"

	"github.com/opensync/reactivestore/internal/engine"
	"github.com/opensync/reactivestore/internal/schema"
	"github.com/opensync/reactivestore/internal/types"
)

// Plan describes the additive work migrate(db, schema) would perform.
type Plan struct {
	TablesToCreate  []string
	IndicesToCreate map[string][]string // table -> index names
}

// IsEmpty reports whether the plan has nothing to do (used by the
// idempotency property: running migrate twice produces an empty second
// plan).
func (p Plan) IsEmpty() bool {
	if len(p.TablesToCreate) > 0 {
		return false
	}
	for _, idxs := range p.IndicesToCreate {
		if len(idxs) > 0 {
			return false
		}
	}
	return true
}

// existingTables queries the engine's sqlite_master-shaped metadata view
// for table names already present.
func existingTables(ctx context.Context, e engine.Engine) (map[string]bool, error) {
	rows, err := e.Query(ctx, "SELECT name FROM sqlite_master WHERE type = 'table'")
	if err != nil {
		return nil, types.Engine("migrate.existingTables", err)
	}
	out := make(map[string]bool, len(rows))
	for _, r := range rows {
		if name, ok := r["name"].(string); ok {
			out[name] = true
		}
	}
	return out, nil
}

// existingIndices queries for index names already present on table.
func existingIndices(ctx context.Context, e engine.Engine, table string) (map[string]bool, error) {
	rows, err := e.Query(ctx, "SELECT name FROM sqlite_master WHERE type = 'index' AND tbl_name = ?", table)
	if err != nil {
		return nil, types.Engine("migrate.existingIndices", err)
	}
	out := make(map[string]bool, len(rows))
	for _, r := range rows {
		if name, ok := r["name"].(string); ok {
			out[name] = true
		}
	}
	return out, nil
}

// PlanMigration diffs s against the live database via read-only
// introspection and returns the additive work required.
func PlanMigration(ctx context.Context, e engine.Engine, s *schema.Schema) (Plan, error) {
	tables, err := existingTables(ctx, e)
	if err != nil {
		return Plan{}, err
	}

	plan := Plan{IndicesToCreate: make(map[string][]string)}
	for _, t := range s.Tables() {
		if !tables[t.Name] {
			plan.TablesToCreate = append(plan.TablesToCreate, t.Name)
			for _, idx := range t.Indices {
				plan.IndicesToCreate[t.Name] = append(plan.IndicesToCreate[t.Name], idx.Name)
			}
			continue
		}
		idxs, err := existingIndices(ctx, e, t.Name)
		if err != nil {
			return Plan{}, err
		}
		for _, idx := range t.Indices {
			if !idxs[idx.Name] {
				plan.IndicesToCreate[t.Name] = append(plan.IndicesToCreate[t.Name], idx.Name)
			}
		}
	}
	return plan, nil
}

// Validate runs pre-flight checks against s alone (no database access):
// tables with no columns, and indices referencing columns the table
// doesn't declare. schema.TableBuilder already rejects the latter at
// construction, so in practice this mostly guards against an empty-table
// schema assembled by hand outside the builder.
func Validate(s *schema.Schema) []string {
	var errs []string
	for _, t := range s.Tables() {
		if len(t.Columns) == 0 {
			errs = append(errs, fmt.Sprintf("table %q has no columns", t.Name))
		}
		for _, idx := range t.Indices {
			for _, col := range idx.Columns {
				if _, ok := t.Column(col); !ok {
					errs = append(errs, fmt.Sprintf("table %q: index %q references unknown column %q", t.Name, idx.Name, col))
				}
			}
		}
	}
	return errs
}

// Migrate brings e up to date with s: creates missing tables (with all
// their indices) and, for tables that already exist, creates only the
// indices that are absent. It is idempotent — calling it again with
// nothing new to do is a no-op — and never drops or alters existing
// structure: column type changes, column drops, and table drops are
// explicitly unsupported.
func Migrate(ctx context.Context, e engine.Engine, s *schema.Schema) error {
	plan, err := PlanMigration(ctx, e, s)
	if err != nil {
		return err
	}
	if plan.IsEmpty() {
		return nil
	}

	toCreate := make(map[string]bool, len(plan.TablesToCreate))
	for _, name := range plan.TablesToCreate {
		toCreate[name] = true
	}
	pendingIdx := make(map[string]map[string]bool, len(plan.IndicesToCreate))
	for table, names := range plan.IndicesToCreate {
		set := make(map[string]bool, len(names))
		for _, n := range names {
			set[n] = true
		}
		pendingIdx[table] = set
	}

	return e.Transaction(ctx, func(ctx context.Context, tx engine.Tx) error {
		for _, t := range s.Tables() {
			if toCreate[t.Name] {
				if _, _, err := tx.Execute(ctx, schema.CreateTableSQL(t)); err != nil {
					return types.Engine("migrate.Migrate", fmt.Errorf("create table %s: %w", t.Name, err))
				}
			}
			for _, idx := range t.Indices {
				if pendingIdx[t.Name] == nil || !pendingIdx[t.Name][idx.Name] {
					continue
				}
				if _, _, err := tx.Execute(ctx, schema.CreateIndexSQL(t.Name, idx)); err != nil {
					return types.Engine("migrate.Migrate", fmt.Errorf("create index %s: %w", idx.Name, err))
				}
			}
		}
		for _, v := range s.Views() {
			if _, _, err := tx.Execute(ctx, schema.CreateViewSQL(v)); err != nil {
				return types.Engine("migrate.Migrate", fmt.Errorf("create view %s: %w", v.Name, err))
			}
		}
		return nil
	})
}
