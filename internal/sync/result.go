package sync

// FailedOp records one pending operation's terminal failure within a
// sync, whether from a permanent error or exhausted retries.
type FailedOp struct {
	ID    string
	Error string
}

// Result is what one SyncNow call returns and, if set, reports to the
// optional status callback.
type Result struct {
	Success bool
	Synced  []string
	Failed  []FailedOp
	Error   error
}
