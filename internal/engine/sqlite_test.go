package engine

import (
	"context"
	"path/filepath"
	"testing"
)

func setupEngine(t *testing.T) *SQLiteEngine {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	e, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open engine: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestSQLiteEngine_ExecuteAndQuery(t *testing.T) {
	ctx := context.Background()
	e := setupEngine(t)

	if _, _, err := e.Execute(ctx, "CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT)"); err != nil {
		t.Fatalf("create table: %v", err)
	}
	_, lastID, err := e.Execute(ctx, "INSERT INTO widgets (name) VALUES (?)", "gizmo")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if lastID == 0 {
		t.Fatal("expected non-zero last insert id")
	}

	rows, err := e.Query(ctx, "SELECT id, name FROM widgets WHERE name = ?", "gizmo")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 1 || rows[0]["name"] != "gizmo" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestSQLiteEngine_TransactionRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	e := setupEngine(t)
	if _, _, err := e.Execute(ctx, "CREATE TABLE t (id INTEGER PRIMARY KEY)"); err != nil {
		t.Fatalf("create table: %v", err)
	}

	err := e.Transaction(ctx, func(ctx context.Context, tx Tx) error {
		if _, _, err := tx.Execute(ctx, "INSERT INTO t (id) VALUES (1)"); err != nil {
			return err
		}
		return context.Canceled // force rollback
	})
	if err == nil {
		t.Fatal("expected transaction to fail")
	}

	rows, err := e.Query(ctx, "SELECT COUNT(*) AS c FROM t")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if rows[0]["c"].(int64) != 0 {
		t.Fatalf("expected rollback to leave table empty, got %+v", rows[0])
	}
}

func TestSQLiteEngine_TransactionCommits(t *testing.T) {
	ctx := context.Background()
	e := setupEngine(t)
	if _, _, err := e.Execute(ctx, "CREATE TABLE t (id INTEGER PRIMARY KEY)"); err != nil {
		t.Fatalf("create table: %v", err)
	}

	err := e.Transaction(ctx, func(ctx context.Context, tx Tx) error {
		_, _, err := tx.Execute(ctx, "INSERT INTO t (id) VALUES (1)")
		return err
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}

	rows, err := e.Query(ctx, "SELECT COUNT(*) AS c FROM t")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if rows[0]["c"].(int64) != 1 {
		t.Fatalf("expected committed row, got %+v", rows[0])
	}
}
