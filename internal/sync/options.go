// Package sync drives pending local writes (internal/lww's PendingQueue)
// up to a server via a caller-supplied upload callback, batching,
// retrying transient failures with exponential backoff, and classifying
// permanent failures so they aren't retried within the same sync.
package sync

import "time"

// Options configures one Manager's retry and batching behavior.
type Options struct {
	RetryAttempts     int
	RetryDelay        time.Duration
	BackoffMultiplier float64
	MaxDelay          time.Duration
	BatchSize         int
	SyncInterval      time.Duration
}

// DefaultOptions returns the documented defaults: 3 retries starting at
// a 2s delay doubling up to a 5 minute cap, 50 ops per batch, synced
// every 5 minutes.
func DefaultOptions() Options {
	return Options{
		RetryAttempts:     3,
		RetryDelay:        2 * time.Second,
		BackoffMultiplier: 2,
		MaxDelay:          5 * time.Minute,
		BatchSize:         50,
		SyncInterval:      5 * time.Minute,
	}
}

func (o Options) delayFor(attempt int) time.Duration {
	d := float64(o.RetryDelay)
	for i := 0; i < attempt; i++ {
		d *= o.BackoffMultiplier
	}
	delay := time.Duration(d)
	if o.MaxDelay > 0 && delay > o.MaxDelay {
		delay = o.MaxDelay
	}
	return delay
}
