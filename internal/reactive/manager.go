package reactive

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/opensync/reactivestore/internal/dependency"
	"github.com/opensync/reactivestore/internal/schema"
	"github.com/opensync/reactivestore/internal/types"
)

// Manager owns every live stream, keyed by id, and the dependency
// tracker used to decide which ones a given change could affect.
type Manager struct {
	schema  *schema.Schema
	tracker *dependency.Tracker

	mu      sync.RWMutex
	streams map[string]*Stream
}

// NewManager returns a Manager whose related-table dependency derivation
// (for structured query specs) consults s.
func NewManager(s *schema.Schema) *Manager {
	return &Manager{
		schema:  s,
		tracker: dependency.New(),
		streams: make(map[string]*Stream),
	}
}

// CreateStream registers a structured query dependency for id, runs gen
// once, and returns the live Stream.
func (m *Manager) CreateStream(ctx context.Context, id string, gen Generator, spec dependency.QuerySpec, opts StreamOptions) (*Stream, error) {
	s := newStream(id, gen, opts)
	// The initial run's error is delivered as an emission, not returned
	// — a stream that fails on its first generator call is still a
	// valid, subscribable stream (it may succeed on the next
	// write-triggered refresh).
	_ = s.runAndEmit(ctx)
	m.tracker.Register(id, spec, m.schema)
	m.addStream(s)
	return s, nil
}

// CreateRawSQLStream registers a raw-SQL-derived dependency for id, runs
// gen once, and returns the live Stream.
func (m *Manager) CreateRawSQLStream(ctx context.Context, id string, gen Generator, rawSQL string, opts StreamOptions) (*Stream, error) {
	s := newStream(id, gen, opts)
	_ = s.runAndEmit(ctx)
	m.tracker.RegisterRawSQL(id, rawSQL)
	m.addStream(s)
	return s, nil
}

func (m *Manager) addStream(s *Stream) {
	m.mu.Lock()
	m.streams[s.id] = s
	m.mu.Unlock()
}

// Stream looks up a live stream by id.
func (m *Manager) Stream(id string) (*Stream, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.streams[id]
	return s, ok
}

// NotifyChange asks the dependency tracker which streams c could affect
// and refreshes each one that still has subscribers and isn't closed.
// Refreshes run concurrently; NotifyChange awaits their completion
// before returning, giving writers back-pressure proportional to the
// slowest affected stream rather than letting refreshes pile up
// unbounded.
func (m *Manager) NotifyChange(ctx context.Context, c types.DatabaseChange) error {
	affected := m.tracker.AffectedStreams(c)
	if len(affected) == 0 {
		return nil
	}

	m.mu.RLock()
	targets := make([]*Stream, 0, len(affected))
	for _, id := range affected {
		if s, ok := m.streams[id]; ok {
			targets = append(targets, s)
		}
	}
	m.mu.RUnlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range targets {
		s := s
		if s.Closed() || !s.HasSubscribers() {
			continue
		}
		g.Go(func() error {
			return s.Refresh(gctx)
		})
	}
	return g.Wait()
}

// CleanupInactive removes and closes every stream with no subscribers
// or already closed, unregistering each from the dependency tracker.
// Returns the number removed.
func (m *Manager) CleanupInactive() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, s := range m.streams {
		if s.Closed() || !s.HasSubscribers() {
			s.close()
			m.tracker.Unregister(id)
			delete(m.streams, id)
			removed++
		}
	}
	return removed
}

// StartCleanupPeriodic runs CleanupInactive every interval until the
// returned stop function is called or ctx is done.
func (m *Manager) StartCleanupPeriodic(ctx context.Context, interval time.Duration) (stop func()) {
	done := make(chan struct{})
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.CleanupInactive()
			case <-ctx.Done():
				return
			case <-done:
				return
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

// Close closes every live stream, unregistering each from the tracker.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.streams {
		s.close()
		m.tracker.Unregister(id)
		delete(m.streams, id)
	}
}

// Stats exposes the underlying dependency tracker's observability
// snapshot.
func (m *Manager) Stats() dependency.Stats {
	return m.tracker.Stats()
}
