package reactivestore_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	reactivestore "github.com/opensync/reactivestore"
)

func buildSchema(t *testing.T) *reactivestore.Schema {
	t.Helper()
	tasks, err := reactivestore.NewTable("tasks").
		AddColumn(reactivestore.Column{Name: "title", Affinity: reactivestore.AffinityText, Constraints: []reactivestore.Constraint{reactivestore.ConstraintNotNull}}).
		AddColumn(reactivestore.Column{Name: "hours", Affinity: reactivestore.AffinityInteger, LWW: true}).
		Build()
	if err != nil {
		t.Fatalf("build tasks table: %v", err)
	}

	s, err := reactivestore.NewSchemaBuilder().
		AddTable(tasks).
		AddTable(reactivestore.ReservedTable()).
		Build()
	if err != nil {
		t.Fatalf("build schema: %v", err)
	}
	return s
}

func TestOpen_InsertAndGetByPrimaryKey(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := reactivestore.Open(ctx, dbPath, buildSchema(t), reactivestore.Options{
		Config: reactivestore.DefaultConfig(),
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	id, err := store.Access.Insert(ctx, "tasks", map[string]any{"title": "write tests", "hours": int64(2)})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	rows, err := store.Access.GetAllWhere(ctx, "tasks", reactivestore.QueryOptions{})
	if err != nil || len(rows) != 1 {
		t.Fatalf("expected 1 row, got %v err=%v", rows, err)
	}
	if rows[0]["systemId"] == nil {
		t.Fatal("expected a generated systemId")
	}
	_ = id
}

func TestOpen_LWWUpdateAndReactiveRefresh(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := reactivestore.Open(ctx, dbPath, buildSchema(t), reactivestore.Options{
		Config: reactivestore.DefaultConfig(),
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	// A stream watching the whole table, created over Store.Reactive,
	// must refresh when a write reaches the shared base through
	// Store.Access — whether that write is a plain insert or an
	// LWW-aware column update, since both wrappers share one
	// access.DataAccess pointer.
	refreshes := 0
	stream, err := store.Reactive.CreateStream(ctx, "tasks-count", func(ctx context.Context) (any, error) {
		refreshes++
		rows, err := store.Access.GetAllWhere(ctx, "tasks", reactivestore.QueryOptions{})
		if err != nil {
			return nil, err
		}
		return len(rows), nil
	}, reactivestore.QuerySpec{Table: "tasks"}, reactivestore.StreamOptions{BufferChanges: false})
	if err != nil {
		t.Fatalf("create stream: %v", err)
	}
	stream.Subscribe()

	rowID, err := store.Access.Insert(ctx, "tasks", map[string]any{"title": "a", "hours": int64(1)})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if refreshes < 2 {
		t.Fatalf("expected the insert to trigger a refresh through the shared base, got %d runs", refreshes)
	}

	rows, err := store.Access.GetAllWhere(ctx, "tasks", reactivestore.QueryOptions{Where: "rowid = ?", Args: []any{rowID}})
	if err != nil || len(rows) != 1 {
		t.Fatalf("lookup inserted row: rows=%v err=%v", rows, err)
	}
	pk := rows[0]["systemId"]

	if _, err := store.Access.UpdateLWWColumn(ctx, "tasks", pk, "hours", int64(9), reactivestore.LWWWriteOptions{}); err != nil {
		t.Fatalf("update lww column: %v", err)
	}
	if refreshes < 3 {
		t.Fatalf("expected the lww update to trigger another refresh, got %d runs", refreshes)
	}

	got, _, err := store.Access.GetLWWColumnValue(ctx, "tasks", pk, "hours")
	if err != nil {
		t.Fatalf("get lww column value: %v", err)
	}
	if got.Value.Any() != int64(9) {
		t.Fatalf("expected hours=9, got %v", got.Value.Any())
	}
}

func TestOpen_SyncDrainsPendingQueue(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	uploaded := 0
	store, err := reactivestore.Open(ctx, dbPath, buildSchema(t), reactivestore.Options{
		Config: reactivestore.DefaultConfig(),
		Upload: func(ctx context.Context, batch []reactivestore.PendingOperation) (bool, error) {
			uploaded += len(batch)
			return true, nil
		},
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	if store.Sync == nil {
		t.Fatal("expected a sync manager when Upload is set")
	}

	// Enqueue directly rather than through UpdateLWWColumn, to exercise
	// Sync in isolation from LWW's own enqueue timing.
	store.Access.Pending.Enqueue("tasks", reactivestore.PendingInsert, "pk-1", nil, time.Now().Format(time.RFC3339Nano))

	res, err := store.Sync.SyncNow(ctx)
	if err != nil {
		t.Fatalf("sync now: %v", err)
	}
	if !res.Success || uploaded != 1 {
		t.Fatalf("expected 1 op synced, got %+v uploaded=%d", res, uploaded)
	}
}
