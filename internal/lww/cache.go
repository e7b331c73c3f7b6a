package lww

import (
	"context"
	"sync"

	"github.com/opensync/reactivestore/internal/types"
)

// cacheKey identifies one column of one row.
type cacheKey struct {
	table  string
	rowPK  string
	column string
}

// Cache fronts a Store with an in-memory map so repeated reads of the
// same column (the common case: every write to a row touches only a
// handful of its columns) don't round-trip to the database. It is
// populated lazily and invalidated on every write through Put. The
// cached value, not the underlying table row, is authoritative for an
// LWW column: the row write beneath it is best-effort and may have
// failed silently.
type Cache struct {
	store *Store

	mu   sync.RWMutex
	vals map[cacheKey]types.LWWColumnValue
}

// NewCache wraps store with a read-through, write-through cache.
func NewCache(store *Store) *Cache {
	return &Cache{store: store, vals: make(map[cacheKey]types.LWWColumnValue)}
}

// Get returns the current timestamp+value for one column, consulting the
// cache before falling back to the Store.
func (c *Cache) Get(ctx context.Context, table, rowPK, column string, affinity types.Affinity) (types.LWWColumnValue, bool, error) {
	key := cacheKey{table, rowPK, column}

	c.mu.RLock()
	if v, ok := c.vals[key]; ok {
		c.mu.RUnlock()
		return v, true, nil
	}
	c.mu.RUnlock()

	v, ok, err := c.store.Get(ctx, table, rowPK, column, affinity)
	if err != nil || !ok {
		return v, ok, err
	}
	c.mu.Lock()
	c.vals[key] = v
	c.mu.Unlock()
	return v, true, nil
}

// Put writes through to the Store and updates the cache entry.
func (c *Cache) Put(ctx context.Context, table, rowPK, column, ts string, val types.Value, fromServer bool) error {
	if err := c.store.Put(ctx, table, rowPK, column, ts, val, fromServer); err != nil {
		return err
	}
	c.mu.Lock()
	c.vals[cacheKey{table, rowPK, column}] = types.LWWColumnValue{Column: column, Value: val, Timestamp: ts, IsFromServer: fromServer}
	c.mu.Unlock()
	return nil
}

// PutLocal records a value+timestamp in the cache only, without writing
// through to the Store. Used when the underlying Store.Put failed and the
// caller has decided — per the best-effort write policy — to keep the
// cache as the source of truth rather than propagate the error.
func (c *Cache) PutLocal(table, rowPK, column, ts string, val types.Value, fromServer bool) {
	c.mu.Lock()
	c.vals[cacheKey{table, rowPK, column}] = types.LWWColumnValue{Column: column, Value: val, Timestamp: ts, IsFromServer: fromServer}
	c.mu.Unlock()
}

// RowTimestamps returns every column timestamp+value recorded for one
// row, consulting the cache first and filling it in from the Store for
// columns not yet cached. affinities supplies the declared affinity of
// each LWW column on the table.
func (c *Cache) RowTimestamps(ctx context.Context, table, rowPK string, affinities map[string]types.Affinity) (map[string]types.LWWColumnValue, error) {
	stored, err := c.store.Row(ctx, table, rowPK, affinities)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	for col, v := range stored {
		key := cacheKey{table, rowPK, col}
		if cached, ok := c.vals[key]; ok {
			stored[col] = cached
			continue
		}
		c.vals[key] = v
	}
	c.mu.Unlock()
	return stored, nil
}

// Clear empties the cache. Exposed as a test hook: callers that reset
// the underlying database between test cases must not read stale
// in-memory timestamps afterward.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.vals = make(map[cacheKey]types.LWWColumnValue)
	c.mu.Unlock()
}
