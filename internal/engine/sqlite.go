package engine

import (
	"context"
	"database/sql"

	_ "github.com/ncruces/go-sqlite3/driver" // registers the "sqlite3" database/sql driver
	_ "github.com/ncruces/go-sqlite3/embed"  // embeds the WASM sqlite3 build so no cgo toolchain is required

	"github.com/opensync/reactivestore/internal/types"
)

// SQLiteEngine is the concrete Engine backed by ncruces/go-sqlite3, the
// pure-Go (WASM, no cgo) SQLite driver. This is the system's one
// embedded relational engine.
type SQLiteEngine struct {
	db *sql.DB
}

// Open opens (creating if absent) a SQLite database at path and returns
// an Engine wrapping it. Callers are expected to hold an external
// advisory lock around the single shared handle — the root Store wires
// one via github.com/gofrs/flock for its lifetime.
func Open(path string) (*SQLiteEngine, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, types.Engine("engine.Open", err)
	}
	db.SetMaxOpenConns(1) // one shared write-capable handle
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, types.Engine("engine.Open", err)
	}
	return &SQLiteEngine{db: db}, nil
}

func (e *SQLiteEngine) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, types.Engine("engine.Query", err)
	}
	defer func() { _ = rows.Close() }()
	return scanRows(rows)
}

func (e *SQLiteEngine) Execute(ctx context.Context, query string, args ...any) (int64, int64, error) {
	res, err := e.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, 0, types.Engine("engine.Execute", err)
	}
	return result(res)
}

// Transaction runs body inside a BEGIN IMMEDIATE transaction, matching the
// teacher's migration-lock convention of acquiring the write lock early
// (internal/storage/sqlite/migrations.go uses BEGIN EXCLUSIVE for the same
// reason: avoid lock-upgrade deadlocks under concurrent writers).
func (e *SQLiteEngine) Transaction(ctx context.Context, body func(ctx context.Context, tx Tx) error) error {
	conn, err := e.db.Conn(ctx)
	if err != nil {
		return types.Engine("engine.Transaction", err)
	}
	defer func() { _ = conn.Close() }()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return types.Engine("engine.Transaction", err)
	}
	committed := false
	defer func() {
		if !committed {
			_, _ = conn.ExecContext(ctx, "ROLLBACK")
		}
	}()

	if err := body(ctx, &connTx{conn: conn}); err != nil {
		return err
	}
	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return types.Engine("engine.Transaction", err)
	}
	committed = true
	return nil
}

func (e *SQLiteEngine) Close() error {
	return e.db.Close()
}

// connTx implements Tx over a single *sql.Conn already inside a
// transaction.
type connTx struct {
	conn *sql.Conn
}

func (t *connTx) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	rows, err := t.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, types.Engine("engine.Tx.Query", err)
	}
	defer func() { _ = rows.Close() }()
	return scanRows(rows)
}

func (t *connTx) Execute(ctx context.Context, query string, args ...any) (int64, int64, error) {
	res, err := t.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, 0, types.Engine("engine.Tx.Execute", err)
	}
	return result(res)
}

func result(res sql.Result) (int64, int64, error) {
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, 0, types.Engine("engine.result", err)
	}
	lastID, err := res.LastInsertId()
	if err != nil {
		lastID = 0 // not every statement produces one; not an error condition
	}
	return affected, lastID, nil
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, types.Engine("engine.scanRows", err)
	}
	var out []Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, types.Engine("engine.scanRows", err)
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, types.Engine("engine.scanRows", err)
	}
	return out, nil
}
