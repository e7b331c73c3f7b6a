package lww

import (
	"testing"

	"github.com/opensync/reactivestore/internal/types"
)

func TestPendingQueue_EnqueueMarkRemove(t *testing.T) {
	q := NewPendingQueue()
	id1 := q.Enqueue("tasks", types.PendingInsert, "pk1", nil, "t1")
	id2 := q.Enqueue("tasks", types.PendingUpdate, "pk2", nil, "t2")

	if got := len(q.Unsynced()); got != 2 {
		t.Fatalf("expected 2 unsynced, got %d", got)
	}

	q.MarkSynced(id1)
	unsynced := q.Unsynced()
	if len(unsynced) != 1 || unsynced[0].ID != id2 {
		t.Fatalf("expected only id2 unsynced, got %+v", unsynced)
	}

	if removed := q.RemoveSynced(); removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if q.Len() != 1 {
		t.Fatalf("expected queue length 1 after compaction, got %d", q.Len())
	}

	q.Clear()
	if q.Len() != 0 {
		t.Fatalf("expected empty queue after Clear, got %d", q.Len())
	}
}

func TestPendingQueue_EnumerateOrdersOldestFirst(t *testing.T) {
	q := NewPendingQueue()
	q.Enqueue("tasks", types.PendingInsert, "a", nil, "t1")
	q.Enqueue("tasks", types.PendingInsert, "b", nil, "t2")
	q.Enqueue("tasks", types.PendingInsert, "c", nil, "t3")

	ops := q.Enumerate()
	if len(ops) != 3 {
		t.Fatalf("expected 3 ops, got %d", len(ops))
	}
	if ops[0].PrimaryKey != "a" || ops[2].PrimaryKey != "c" {
		t.Fatalf("expected oldest-first order, got %+v", ops)
	}
}
