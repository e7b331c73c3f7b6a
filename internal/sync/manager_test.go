package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/opensync/reactivestore/internal/lww"
	"github.com/opensync/reactivestore/internal/types"
)

func seedQueue(t *testing.T, n int) *lww.PendingQueue {
	t.Helper()
	q := lww.NewPendingQueue()
	for i := 0; i < n; i++ {
		q.Enqueue("tasks", types.PendingInsert, "pk", nil, "ts")
	}
	return q
}

func fastOptions() Options {
	return Options{
		RetryAttempts:     2,
		RetryDelay:        time.Millisecond,
		BackoffMultiplier: 2,
		MaxDelay:          10 * time.Millisecond,
		BatchSize:         2,
		SyncInterval:      20 * time.Millisecond,
	}
}

func TestSyncNow_EmptyQueueIsNoopSuccess(t *testing.T) {
	q := lww.NewPendingQueue()
	m := New(q, func(ctx context.Context, batch []types.PendingOperation) (bool, error) {
		t.Fatal("upload should not be called for an empty queue")
		return false, nil
	}, fastOptions(), nil)

	res, err := m.SyncNow(context.Background())
	if err != nil {
		t.Fatalf("sync now: %v", err)
	}
	if !res.Success || len(res.Synced) != 0 || len(res.Failed) != 0 {
		t.Fatalf("expected a no-op success result, got %+v", res)
	}
}

func TestSyncNow_BatchesAndMarksSynced(t *testing.T) {
	q := seedQueue(t, 5)
	var batches [][]types.PendingOperation
	m := New(q, func(ctx context.Context, batch []types.PendingOperation) (bool, error) {
		batches = append(batches, batch)
		return true, nil
	}, fastOptions(), nil)

	res, err := m.SyncNow(context.Background())
	if err != nil {
		t.Fatalf("sync now: %v", err)
	}
	if !res.Success || len(res.Synced) != 5 {
		t.Fatalf("expected all 5 ops synced, got %+v", res)
	}
	if len(batches) != 3 { // batch size 2: 2,2,1
		t.Fatalf("expected 3 batches, got %d", len(batches))
	}
	if q.Len() != 0 {
		t.Fatalf("expected synced ops removed from the queue, got %d remaining", q.Len())
	}
}

func TestSyncNow_RetriesTransientFailureThenSucceeds(t *testing.T) {
	q := seedQueue(t, 1)
	attempts := 0
	m := New(q, func(ctx context.Context, batch []types.PendingOperation) (bool, error) {
		attempts++
		if attempts < 2 {
			return false, nil
		}
		return true, nil
	}, fastOptions(), nil)

	res, err := m.SyncNow(context.Background())
	if err != nil {
		t.Fatalf("sync now: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected eventual success after retry, got %+v", res)
	}
	if attempts != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", attempts)
	}
}

func TestSyncNow_PermanentFailureStopsRetryingImmediately(t *testing.T) {
	q := seedQueue(t, 1)
	attempts := 0
	m := New(q, func(ctx context.Context, batch []types.PendingOperation) (bool, error) {
		attempts++
		return false, errors.New("403 Forbidden")
	}, fastOptions(), nil)

	res, err := m.SyncNow(context.Background())
	if err != nil {
		t.Fatalf("sync now: %v", err)
	}
	if res.Success {
		t.Fatal("expected failure result")
	}
	if len(res.Failed) != 1 {
		t.Fatalf("expected 1 failed op, got %+v", res.Failed)
	}
	if attempts != 1 {
		t.Fatalf("expected a permanent failure to stop retrying after 1 attempt, got %d", attempts)
	}
	if q.Len() != 1 {
		t.Fatal("expected the failed op to remain queued for the next sync")
	}
}

func TestSyncNow_ExhaustedRetriesRecordsFailure(t *testing.T) {
	q := seedQueue(t, 1)
	attempts := 0
	m := New(q, func(ctx context.Context, batch []types.PendingOperation) (bool, error) {
		attempts++
		return false, errors.New("temporarily unavailable")
	}, fastOptions(), nil)

	res, err := m.SyncNow(context.Background())
	if err != nil {
		t.Fatalf("sync now: %v", err)
	}
	if res.Success {
		t.Fatal("expected failure result")
	}
	if attempts != 3 { // 1 initial + 2 retries
		t.Fatalf("expected RetryAttempts+1 calls, got %d", attempts)
	}
}

func TestSyncNow_ConcurrentCallFailsWithStateError(t *testing.T) {
	q := seedQueue(t, 1)
	release := make(chan struct{})
	m := New(q, func(ctx context.Context, batch []types.PendingOperation) (bool, error) {
		<-release
		return true, nil
	}, fastOptions(), nil)

	go func() {
		_, _ = m.SyncNow(context.Background())
	}()
	for !m.IsRunning() {
		time.Sleep(time.Millisecond)
	}

	_, err := m.SyncNow(context.Background())
	if !errors.Is(err, types.ErrState) {
		t.Fatalf("expected a state-error for a concurrent sync-now, got %v", err)
	}
	close(release)
}

func TestStartAutoSync_RunsImmediatelyAndSkipsTicksWhileRunning(t *testing.T) {
	q := seedQueue(t, 1)
	calls := 0
	m := New(q, func(ctx context.Context, batch []types.PendingOperation) (bool, error) {
		calls++
		return true, nil
	}, fastOptions(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stop := m.StartAutoSync(ctx)
	defer stop()

	time.Sleep(30 * time.Millisecond)
	if calls < 1 {
		t.Fatal("expected at least the immediate sync to have run")
	}
}

func TestSyncNow_OnBatchCompleteInvokedPerBatch(t *testing.T) {
	q := seedQueue(t, 5)
	m := New(q, func(ctx context.Context, batch []types.PendingOperation) (bool, error) {
		return true, nil
	}, fastOptions(), nil)

	var got []BatchResult
	m.OnBatchComplete(func(r BatchResult) { got = append(got, r) })

	if _, err := m.SyncNow(context.Background()); err != nil {
		t.Fatalf("sync now: %v", err)
	}
	if len(got) != 3 { // batch size 2: 2,2,1
		t.Fatalf("expected 3 batch callbacks, got %d", len(got))
	}
	for i, r := range got {
		if r.Index != i {
			t.Fatalf("expected batch %d, got index %d", i, r.Index)
		}
	}
	if got[2].Size != 1 || len(got[2].Synced) != 1 {
		t.Fatalf("expected the last batch to report its single synced op, got %+v", got[2])
	}
}

func TestSyncNow_StatusCallbackInvoked(t *testing.T) {
	q := seedQueue(t, 1)
	var got Result
	m := New(q, func(ctx context.Context, batch []types.PendingOperation) (bool, error) {
		return true, nil
	}, fastOptions(), func(r Result) { got = r })

	if _, err := m.SyncNow(context.Background()); err != nil {
		t.Fatalf("sync now: %v", err)
	}
	if !got.Success || len(got.Synced) != 1 {
		t.Fatalf("expected the status callback to receive the result, got %+v", got)
	}
}
