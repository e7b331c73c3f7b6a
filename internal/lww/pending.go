package lww

import (
	"sync"

	"github.com/google/uuid"

	"github.com/opensync/reactivestore/internal/types"
)

// PendingQueue holds locally originated writes not yet acknowledged by
// the server, in memory only: a restart loses whatever hasn't synced.
type PendingQueue struct {
	mu   sync.Mutex
	ops  map[string]types.PendingOperation
	order []string
}

// NewPendingQueue returns an empty queue.
func NewPendingQueue() *PendingQueue {
	return &PendingQueue{ops: make(map[string]types.PendingOperation)}
}

// Enqueue records a new pending operation and returns its generated ID.
func (q *PendingQueue) Enqueue(table string, kind types.PendingKind, pk string, columnUpdates map[string]types.LWWColumnValue, createdAt string) string {
	id := uuid.NewString()
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ops[id] = types.PendingOperation{
		ID:            id,
		Table:         table,
		Kind:          kind,
		PrimaryKey:    pk,
		ColumnUpdates: columnUpdates,
		CreatedAt:     createdAt,
	}
	q.order = append(q.order, id)
	return id
}

// Enumerate returns every pending operation, oldest first, unsynced or
// not.
func (q *PendingQueue) Enumerate() []types.PendingOperation {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]types.PendingOperation, 0, len(q.order))
	for _, id := range q.order {
		if op, ok := q.ops[id]; ok {
			out = append(out, op)
		}
	}
	return out
}

// Unsynced returns every pending operation not yet marked synced, oldest
// first — the batch internal/sync uploads.
func (q *PendingQueue) Unsynced() []types.PendingOperation {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]types.PendingOperation, 0, len(q.order))
	for _, id := range q.order {
		if op, ok := q.ops[id]; ok && !op.Synced {
			out = append(out, op)
		}
	}
	return out
}

// MarkSynced flags one operation as acknowledged by the server.
func (q *PendingQueue) MarkSynced(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if op, ok := q.ops[id]; ok {
		op.Synced = true
		q.ops[id] = op
	}
}

// RemoveSynced drops every operation already marked synced, compacting
// the queue.
func (q *PendingQueue) RemoveSynced() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.order[:0]
	removed := 0
	for _, id := range q.order {
		op, ok := q.ops[id]
		if !ok {
			continue
		}
		if op.Synced {
			delete(q.ops, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	q.order = kept
	return removed
}

// Clear discards every pending operation regardless of sync state. Test
// hook.
func (q *PendingQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ops = make(map[string]types.PendingOperation)
	q.order = nil
}

// Len reports the current queue length, synced or not.
func (q *PendingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.order)
}
