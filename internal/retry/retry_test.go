package retry

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/MKhiriev/cloudsync/internal/remote"
	"github.com/MKhiriev/cloudsync/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Decision
	}{
		{
			name: "nil error",
			err:  nil,
			want: Decision{},
		},
		{
			name: "token expired retries immediately after reset",
			err:  remote.ErrChangeTokenExpired,
			want: Decision{Retry: true, ResetToken: true},
		},
		{
			name: "token expired wrapped",
			err:  fmt.Errorf("fetch: %w", remote.ErrChangeTokenExpired),
			want: Decision{Retry: true, ResetToken: true},
		},
		{
			name: "token expired nested in partial failure",
			err: &remote.PartialError{Failures: map[models.RecordID]error{
				"r1": remote.ErrChangeTokenExpired,
				"r2": remote.ErrBatchRequestFailed,
			}},
			want: Decision{Retry: true, ResetToken: true},
		},
		{
			name: "suggested backoff is honored exactly",
			err:  remote.WithRetryAfter(remote.ErrServiceUnavailable, 42*time.Second),
			want: Decision{Retry: true, Delay: 42 * time.Second},
		},
		{
			name: "rate limited retries immediately",
			err:  remote.ErrRateLimited,
			want: Decision{Retry: true},
		},
		{
			name: "rate limited with backoff uses the backoff",
			err:  remote.WithRetryAfter(remote.ErrRateLimited, time.Minute),
			want: Decision{Retry: true, Delay: time.Minute},
		},
		{
			name: "transient without backoff is not retryable here",
			err:  remote.ErrServiceUnavailable,
			want: Decision{},
		},
		{
			name: "structural failure is not retryable",
			err:  remote.ErrZoneNotFound,
			want: Decision{},
		},
		{
			name: "arbitrary error is not retryable",
			err:  errors.New("boom"),
			want: Decision{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

type fakeQueue struct {
	delays []time.Duration
	fns    []func()
	closed bool
}

func (q *fakeQueue) SubmitAfter(delay time.Duration, fn, drop func()) {
	if q.closed {
		if drop != nil {
			drop()
		}
		return
	}
	q.delays = append(q.delays, delay)
	q.fns = append(q.fns, fn)
}

func TestScheduler_Schedule(t *testing.T) {
	q := &fakeQueue{}
	s := NewScheduler(q)

	ran := false
	s.Schedule(Decision{Retry: true, Delay: 3 * time.Second}, func() { ran = true }, nil)

	assert.Equal(t, []time.Duration{3 * time.Second}, q.delays)
	q.fns[0]()
	assert.True(t, ran)
}

func TestScheduler_DropRunsWhenQueueRefuses(t *testing.T) {
	q := &fakeQueue{closed: true}
	s := NewScheduler(q)

	var ran, dropped bool
	s.Schedule(Decision{Retry: true}, func() { ran = true }, func() { dropped = true })

	assert.False(t, ran)
	assert.True(t, dropped)
}
