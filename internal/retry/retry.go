// Package retry classifies remote failures into retry decisions and
// schedules the resulting continuations on the engine work queue.
package retry

import (
	"errors"
	"time"

	"github.com/MKhiriev/cloudsync/internal/remote"
)

// Decision is the outcome of classifying one failure.
type Decision struct {
	// Retry reports whether the operation should be attempted again.
	Retry bool

	// Delay is how long to wait before the attempt. Zero means retry
	// immediately.
	Delay time.Duration

	// ResetToken reports that the caller must discard its stored change
	// token before retrying (the remote store expired the cursor).
	ResetToken bool
}

// Classify maps a failure into a Decision. Pure: no side effects, no
// time source.
//
// An expired change token, direct or nested inside a partial batch
// failure, always retries immediately after a token reset. A
// store-suggested backoff is honored exactly. Rate limiting without a
// suggested backoff retries immediately. Everything else is not
// retryable here and falls through to the caller's own handling.
func Classify(err error) Decision {
	if err == nil {
		return Decision{}
	}

	if errors.Is(err, remote.ErrChangeTokenExpired) {
		return Decision{Retry: true, ResetToken: true}
	}
	if delay, ok := remote.SuggestedRetryAfter(err); ok {
		return Decision{Retry: true, Delay: delay}
	}
	if errors.Is(err, remote.ErrRateLimited) {
		return Decision{Retry: true}
	}
	return Decision{}
}

// Queue schedules work onto the engine's serialized work queue.
type Queue interface {
	// SubmitAfter runs fn on the queue once delay has elapsed. A zero
	// delay submits immediately. drop runs instead when the queue has
	// shut down; nil means the task is simply lost.
	SubmitAfter(delay time.Duration, fn, drop func())
}

// Scheduler binds retry decisions to a work queue. It does not
// re-derive an operation's inputs; the continuation closure captures
// them.
type Scheduler struct {
	queue Queue
}

// NewScheduler constructs a Scheduler over the given queue.
func NewScheduler(q Queue) *Scheduler {
	return &Scheduler{queue: q}
}

// Schedule runs fn on the work queue after d.Delay, or drop when the
// queue refuses the task. The caller is responsible for having handled
// d.ResetToken first.
func (s *Scheduler) Schedule(d Decision, fn, drop func()) {
	s.queue.SubmitAfter(d.Delay, fn, drop)
}
