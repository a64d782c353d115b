package remote

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/MKhiriev/cloudsync/models"
)

var (
	// ErrZoneNotFound means the remote zone no longer exists (deleted by
	// the user or another device). Structural: never retried, the caller
	// must re-provision.
	ErrZoneNotFound = errors.New("zone not found")

	// ErrLimitExceeded means the modify batch was too large and must be
	// split before resubmission.
	ErrLimitExceeded = errors.New("batch limit exceeded")

	// ErrUnknownItem means the remote store has no record with the
	// submitted identifier.
	ErrUnknownItem = errors.New("unknown item")

	// ErrServiceUnavailable and ErrNetworkUnavailable are transient
	// failures; the pending buffers stay intact so the next push retries.
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrNetworkUnavailable = errors.New("network unavailable")

	// ErrChangeTokenExpired means the submitted change token is no
	// longer valid; the stored cursor must be discarded and the fetch
	// restarted from scratch.
	ErrChangeTokenExpired = errors.New("change token expired")

	// ErrRateLimited means the request was throttled.
	ErrRateLimited = errors.New("rate limited")

	// ErrBatchRequestFailed marks an item that failed only because a
	// sibling in the same batch failed; the item itself is resubmitted
	// unchanged.
	ErrBatchRequestFailed = errors.New("batch request failed")

	// ErrAlreadyExists is the degenerate conflict: the store rejected a
	// create because a record with that ID already exists. The ancestor
	// in the accompanying ConflictError may be zero.
	ErrAlreadyExists = errors.New("record already exists")
)

// ConflictError reports an optimistic-concurrency rejection. ServerRecord
// is the store's current version; it may be zero in the ErrAlreadyExists
// case, in which case the client version serves as the merge base.
type ConflictError struct {
	ClientRecord models.RemoteRecord
	ServerRecord models.RemoteRecord
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on record %s: stored change tag %q differs from submitted %q",
		e.ClientRecord.ID, e.ServerRecord.ChangeTag, e.ClientRecord.ChangeTag)
}

// PartialError reports a batch where items failed independently. Each
// entry classifies one item's failure using the sentinels above (or a
// *ConflictError). Items absent from Failures succeeded.
type PartialError struct {
	Failures map[models.RecordID]error
}

func (e *PartialError) Error() string {
	ids := make([]string, 0, len(e.Failures))
	for id := range e.Failures {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)
	return fmt.Sprintf("partial batch failure on %d items: %s", len(ids), strings.Join(ids, ", "))
}

// Unwrap exposes the per-item failures so errors.Is can detect a nested
// condition such as an expired change token.
func (e *PartialError) Unwrap() []error {
	out := make([]error, 0, len(e.Failures))
	for _, err := range e.Failures {
		out = append(out, err)
	}
	return out
}

type retryAfterError struct {
	err   error
	delay time.Duration
}

func (e *retryAfterError) Error() string {
	return fmt.Sprintf("%v (retry after %s)", e.err, e.delay)
}

func (e *retryAfterError) Unwrap() error { return e.err }

// WithRetryAfter attaches a store-suggested backoff to err.
func WithRetryAfter(err error, delay time.Duration) error {
	return &retryAfterError{err: err, delay: delay}
}

// SuggestedRetryAfter extracts a store-suggested backoff from err, if
// any was attached anywhere in the chain.
func SuggestedRetryAfter(err error) (time.Duration, bool) {
	var ra *retryAfterError
	if errors.As(err, &ra) {
		return ra.delay, true
	}
	return 0, false
}
