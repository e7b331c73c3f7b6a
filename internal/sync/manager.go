package sync

import (
	"context"
	"sync"
	"time"

	"github.com/opensync/reactivestore/internal/lww"
	"github.com/opensync/reactivestore/internal/types"
)

// UploadFunc pushes one batch of pending operations to a server. It
// returns (true, nil) if the batch was accepted, (false, nil) for a
// retryable soft failure, or a non-nil error — classified permanent or
// transient by isPermanent based on its message (see classify.go).
type UploadFunc func(ctx context.Context, batch []types.PendingOperation) (bool, error)

// StatusFunc is notified with the outcome of every SyncNow call,
// including ones driven by auto-sync.
type StatusFunc func(Result)

// BatchResult reports one batch's outcome within a sync pass, after its
// retries (if any) are exhausted.
type BatchResult struct {
	Index  int
	Size   int
	Synced []string
	Failed []FailedOp
}

// BatchStatusFunc is notified once per batch during a sync pass, before
// the final StatusFunc for the whole pass runs.
type BatchStatusFunc func(BatchResult)

// Manager batches internal/lww's pending queue up to a server via
// Upload, retrying transient failures with backoff and guaranteeing at
// most one sync runs at a time.
type Manager struct {
	queue   *lww.PendingQueue
	upload  UploadFunc
	opts    Options
	status  StatusFunc
	onBatch BatchStatusFunc

	mu       sync.Mutex
	running  bool
	stopAuto func()
}

// New returns a Manager. status may be nil.
func New(queue *lww.PendingQueue, upload UploadFunc, opts Options, status StatusFunc) *Manager {
	return &Manager{queue: queue, upload: upload, opts: opts, status: status}
}

// OnBatchComplete registers a callback invoked once per batch within a
// sync pass (see runSync), alongside the final StatusFunc passed to
// New. Replaces any previously registered callback.
func (m *Manager) OnBatchComplete(f BatchStatusFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onBatch = f
}

// SyncNow runs one synchronous sync pass. It fails with a state-error if
// another sync is already in flight.
func (m *Manager) SyncNow(ctx context.Context) (Result, error) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return Result{}, types.State("sync-now", nil)
	}
	m.running = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
	}()

	result := m.runSync(ctx)
	if m.status != nil {
		m.status(result)
	}
	return result, nil
}

// IsRunning reports whether a sync is currently in flight.
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Manager) runSync(ctx context.Context) Result {
	pending := m.queue.Unsynced()
	if len(pending) == 0 {
		return Result{Success: true}
	}

	var synced []string
	var failed []FailedOp

	for start, batchIndex := 0, 0; start < len(pending); start, batchIndex = start+m.opts.BatchSize, batchIndex+1 {
		end := start + m.opts.BatchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		var batchSynced []string
		var batchFailed []FailedOp

		ok, err := m.uploadWithRetry(ctx, batch)
		if ok {
			for _, op := range batch {
				m.queue.MarkSynced(op.ID)
				batchSynced = append(batchSynced, op.ID)
			}
		} else {
			msg := "rejected"
			if err != nil {
				msg = err.Error()
			}
			for _, op := range batch {
				batchFailed = append(batchFailed, FailedOp{ID: op.ID, Error: msg})
			}
		}

		synced = append(synced, batchSynced...)
		failed = append(failed, batchFailed...)

		if m.onBatch != nil {
			m.onBatch(BatchResult{Index: batchIndex, Size: len(batch), Synced: batchSynced, Failed: batchFailed})
		}
	}

	m.queue.RemoveSynced()

	res := Result{Success: len(failed) == 0, Synced: synced, Failed: failed}
	if len(failed) > 0 {
		res.Error = types.Statef("sync", "%d operation(s) failed to sync", len(failed))
	}
	return res
}

// uploadWithRetry calls Upload with exponential backoff up to
// RetryAttempts additional attempts. A permanent error (per isPermanent)
// stops retrying immediately.
func (m *Manager) uploadWithRetry(ctx context.Context, batch []types.PendingOperation) (bool, error) {
	var lastErr error
	for attempt := 0; attempt <= m.opts.RetryAttempts; attempt++ {
		ok, err := m.upload(ctx, batch)
		if err == nil && ok {
			return true, nil
		}
		if err != nil && isPermanent(err) {
			return false, err
		}
		lastErr = err
		if attempt == m.opts.RetryAttempts {
			break
		}

		delay := m.opts.delayFor(attempt)
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(delay):
		}
	}
	return false, lastErr
}

// StartAutoSync runs one sync immediately, then schedules periodic syncs
// at SyncInterval until the returned stop function is called or ctx is
// done. A tick that lands while a sync is already in flight is skipped
// rather than queued.
func (m *Manager) StartAutoSync(ctx context.Context) (stop func()) {
	done := make(chan struct{})
	go func() {
		_, _ = m.SyncNow(ctx)

		ticker := time.NewTicker(m.opts.SyncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if m.IsRunning() {
					continue
				}
				_, _ = m.SyncNow(ctx)
			case <-ctx.Done():
				return
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	stop = func() { once.Do(func() { close(done) }) }
	m.mu.Lock()
	m.stopAuto = stop
	m.mu.Unlock()
	return stop
}

// StopAutoSync stops a previously started auto-sync loop, if any.
func (m *Manager) StopAutoSync() {
	m.mu.Lock()
	stop := m.stopAuto
	m.stopAuto = nil
	m.mu.Unlock()
	if stop != nil {
		stop()
	}
}
