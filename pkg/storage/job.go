package storage

import (
	"context"

	"github.com/riverqueue/river"
)

// JobStorage defines the minimal interface for enqueueing background jobs.
// Implementations persist the job into the underlying queue backend; args
// carries the job payload and opts customizes insertion behavior (queue
// name, delay, uniqueness). The insert should be atomic with respect to any
// surrounding transaction when the backend supports it.
type JobStorage interface {
	// AddJob enqueues a new job with the given arguments. The boolean result
	// is false when a unique job was skipped as a duplicate.
	AddJob(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (bool, error)
}
