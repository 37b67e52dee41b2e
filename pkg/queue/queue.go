// Package queue hands a run off to an alternate execution environment when
// the primary clone path fails. The broker is deliberately dumb from this
// side: a job is serialized once and dropped onto a named queue, and whatever
// consumes it owns delivery and retry semantics.
package queue

import (
	"context"
	"time"
)

// Job is the serialized payload handed to the fallback environment. It
// carries everything a consumer needs to restart the run from scratch,
// minus credential material, which the consumer re-acquires itself.
type Job struct {
	CloneURL   string    `json:"clone_url"`
	Owner      string    `json:"owner"`
	Name       string    `json:"name"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Enqueuer delivers a Job to the fallback queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, job Job) error
}
