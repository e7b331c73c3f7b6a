// Package engine defines the narrow contract this system consumes from the
// underlying embedded relational engine: query, execute, and transaction.
// Everything above this package — schema, migration, data access, LWW,
// dependency tracking — is written against the Engine interface, never
// against database/sql directly, so that SQL-string generation for
// migrations and the concrete driver both stay swappable.
package engine

import "context"

// Row is an ordered mapping from column name to scalar value.
type Row map[string]any

// Engine is the contract consumed from the embedded SQL engine. The
// concrete implementation (SQLiteEngine) is the only piece of this system
// that imports database/sql or a driver package.
type Engine interface {
	// Query runs a read-only statement and returns its rows in order.
	Query(ctx context.Context, sql string, args ...any) ([]Row, error)

	// Execute runs a statement with no expected result rows, returning the
	// number of rows affected and, for INSERT, the last insert rowid (0 if
	// not applicable).
	Execute(ctx context.Context, sql string, args ...any) (rowsAffected int64, lastInsertID int64, err error)

	// Transaction runs body inside a single transaction. If body returns
	// an error (or panics), the transaction is rolled back; otherwise it
	// is committed. Nested calls to Transaction on the same Engine from
	// within body are not supported — callers share the one
	// transaction-capable handle.
	Transaction(ctx context.Context, body func(ctx context.Context, tx Tx) error) error

	// Close releases the underlying connection(s).
	Close() error
}

// Tx is the subset of Engine available inside a Transaction body: the same
// query/execute surface, scoped to the open transaction.
type Tx interface {
	Query(ctx context.Context, sql string, args ...any) ([]Row, error)
	Execute(ctx context.Context, sql string, args ...any) (rowsAffected int64, lastInsertID int64, err error)
}
