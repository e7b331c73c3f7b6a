package reactive

import (
	"context"
	"time"

	"github.com/opensync/reactivestore/internal/access"
	"github.com/opensync/reactivestore/internal/types"
)

// DataAccessOptions configures a DataAccess wrapper's own background
// behavior, distinct from a single stream's StreamOptions.
type DataAccessOptions struct {
	AutoCleanupInterval time.Duration // default 5 minutes
}

// DefaultDataAccessOptions returns the documented default.
func DefaultDataAccessOptions() DataAccessOptions {
	return DataAccessOptions{AutoCleanupInterval: 5 * time.Minute}
}

// DataAccess wraps access.DataAccess so that every mutating operation
// (Insert, UpdateByPrimaryKey/UpdateWhere, DeleteByPrimaryKey/DeleteWhere,
// BulkLoad) issues its DatabaseChange to a Manager; pure reads pass
// through unchanged. It relies entirely on access.DataAccess's existing
// Notify hook rather than re-implementing per-operation change
// detection — every mutating method already builds the right
// types.DatabaseChange, this just wires where it goes.
type DataAccess struct {
	*access.DataAccess

	Manager *Manager

	stopCleanup func()
}

// New wires base's Notify hook to manager.NotifyChange and starts
// manager's periodic inactive-stream cleanup at opts.AutoCleanupInterval.
// base must not already have a Notify set by another caller — wiring two
// consumers would silently drop one.
func New(ctx context.Context, base *access.DataAccess, manager *Manager, opts DataAccessOptions) *DataAccess {
	if opts.AutoCleanupInterval <= 0 {
		opts.AutoCleanupInterval = 5 * time.Minute
	}
	base.Notify = func(c types.DatabaseChange) {
		// Notify fires synchronously after the mutating call's
		// transaction commits; there is no caller-supplied context at
		// that point, so refreshes run against a background context.
		// A caller that needs refreshes bounded by its own deadline
		// should call manager.NotifyChange directly instead of relying
		// on this hook.
		_ = manager.NotifyChange(context.Background(), c)
	}
	stop := manager.StartCleanupPeriodic(ctx, opts.AutoCleanupInterval)
	return &DataAccess{DataAccess: base, Manager: manager, stopCleanup: stop}
}

// Close stops the periodic cleanup loop and closes every live stream.
func (d *DataAccess) Close() {
	if d.stopCleanup != nil {
		d.stopCleanup()
	}
	d.Manager.Close()
}
