package reactive

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/opensync/reactivestore/internal/access"
	"github.com/opensync/reactivestore/internal/dependency"
	"github.com/opensync/reactivestore/internal/engine"
	"github.com/opensync/reactivestore/internal/migrate"
	"github.com/opensync/reactivestore/internal/schema"
	"github.com/opensync/reactivestore/internal/types"
)

func setupReactive(t *testing.T) (context.Context, *DataAccess) {
	t.Helper()
	ctx := context.Background()

	tbl, err := schema.NewTable("tasks").
		AddColumn(schema.Column{Name: "title", Affinity: types.AffinityText, Constraints: []schema.Constraint{schema.ConstraintNotNull}}).
		AddColumn(schema.Column{Name: "hours", Affinity: types.AffinityInteger}).
		Build()
	if err != nil {
		t.Fatalf("build table: %v", err)
	}
	s, err := schema.NewBuilder().AddTable(tbl).Build()
	if err != nil {
		t.Fatalf("build schema: %v", err)
	}

	e, err := engine.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open engine: %v", err)
	}
	t.Cleanup(func() { e.Close() })

	if err := migrate.Migrate(ctx, e, s); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	base := access.New(e, s)
	manager := NewManager(s)
	return ctx, New(ctx, base, manager, DefaultDataAccessOptions())
}

func TestDataAccess_InsertTriggersSubscribedStreamRefresh(t *testing.T) {
	ctx, d := setupReactive(t)

	calls := 0
	stream, err := d.Manager.CreateStream(ctx, "tasks-list", func(ctx context.Context) (any, error) {
		calls++
		rows, err := d.GetAllWhere(ctx, "tasks", access.QueryOptions{})
		if err != nil {
			return nil, err
		}
		return len(rows), nil
	}, dependency.QuerySpec{Table: "tasks"}, StreamOptions{BufferChanges: false})
	if err != nil {
		t.Fatalf("create stream: %v", err)
	}
	stream.Subscribe()

	if calls != 1 {
		t.Fatalf("expected 1 initial generator run, got %d", calls)
	}

	if _, err := d.Insert(ctx, "tasks", map[string]any{"title": "write tests", "hours": int64(2)}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if calls != 2 {
		t.Fatalf("expected the insert to trigger a stream refresh, got %d calls", calls)
	}

	select {
	case em := <-stream.Chan():
		if em.Err != nil {
			t.Fatalf("unexpected emission error: %v", em.Err)
		}
		if em.Value != 1 {
			t.Fatalf("expected refreshed row count 1, got %v", em.Value)
		}
	default:
		t.Fatal("expected an emission after insert")
	}
}

func TestDataAccess_ReadDoesNotTriggerRefresh(t *testing.T) {
	ctx, d := setupReactive(t)

	calls := 0
	stream, err := d.Manager.CreateStream(ctx, "tasks-list", func(ctx context.Context) (any, error) {
		calls++
		return calls, nil
	}, dependency.QuerySpec{Table: "tasks"}, StreamOptions{BufferChanges: false})
	if err != nil {
		t.Fatalf("create stream: %v", err)
	}
	stream.Subscribe()

	if _, err := d.GetAllWhere(ctx, "tasks", access.QueryOptions{}); err != nil {
		t.Fatalf("read: %v", err)
	}

	if calls != 1 {
		t.Fatalf("expected a pure read not to trigger a refresh, got %d calls", calls)
	}
}
