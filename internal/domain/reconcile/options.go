// Package reconcile diffs canonical records against previously persisted
// releases, partitioning them into inserts and updates and detecting
// release-schedule changes.
package reconcile

import "github.com/macrofeed/macrofeed/pkg/logger"

// Batch-size defaults. Lookups are chunked to respect store query-size
// limits; inserts are flushed in batches; updates run as independent
// per-record operations with bounded concurrency.
const (
	defaultLookupChunkSize   = 100
	defaultInsertBatchSize   = 500
	defaultUpdateConcurrency = 8
)

// Option applies a configuration option to the Reconciler.
type Option func(*Reconciler)

// WithLookupChunkSize sets how many identity keys one store query may
// carry.
func WithLookupChunkSize(size int) Option {
	return func(r *Reconciler) {
		if size > 0 {
			r.lookupChunkSize = size
		}
	}
}

// WithInsertBatchSize sets the insert flush size.
func WithInsertBatchSize(size int) Option {
	return func(r *Reconciler) {
		if size > 0 {
			r.insertBatchSize = size
		}
	}
}

// WithUpdateConcurrency bounds concurrent per-record updates.
func WithUpdateConcurrency(n int) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.updateConcurrency = n
		}
	}
}

// WithLogger sets a custom logger for the reconciler.
func WithLogger(log logger.Logger) Option {
	return func(r *Reconciler) {
		if log != nil {
			r.logger = log
		}
	}
}
