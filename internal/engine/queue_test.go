package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkQueue_RunsTasksInSubmissionOrder(t *testing.T) {
	q := newWorkQueue()

	var mu sync.Mutex
	var got []int
	for i := 0; i < 100; i++ {
		i := i
		require.True(t, q.Submit(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}))
	}
	q.Close()

	require.Len(t, got, 100)
	for i, v := range got {
		require.Equal(t, i, v)
	}
}

func TestWorkQueue_TasksNeverOverlap(t *testing.T) {
	q := newWorkQueue()
	defer q.Close()

	var running, maxRunning int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		q.Submit(func() {
			mu.Lock()
			running++
			if running > maxRunning {
				maxRunning = running
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			running--
			mu.Unlock()
			wg.Done()
		})
	}
	wg.Wait()

	assert.Equal(t, 1, maxRunning)
}

func TestWorkQueue_CloseDrainsThenRejects(t *testing.T) {
	q := newWorkQueue()

	ran := false
	require.True(t, q.Submit(func() { ran = true }))
	q.Close()

	assert.True(t, ran, "queued task must finish before Close returns")
	assert.False(t, q.Submit(func() {}), "closed queue must reject new tasks")

	// second Close is a no-op
	q.Close()
}

func TestWorkQueue_SubmitAfter(t *testing.T) {
	q := newWorkQueue()
	defer q.Close()

	done := make(chan struct{})
	q.SubmitAfter(0, func() { close(done) }, nil)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("zero-delay task did not run")
	}

	delayed := make(chan struct{})
	q.SubmitAfter(5*time.Millisecond, func() { close(delayed) }, nil)
	select {
	case <-delayed:
	case <-time.After(time.Second):
		t.Fatal("delayed task did not run")
	}
}

func TestWorkQueue_SubmitAfterDropsOntoFallbackWhenClosed(t *testing.T) {
	q := newWorkQueue()
	q.Close()

	dropped := make(chan struct{})
	q.SubmitAfter(time.Millisecond, func() { t.Error("task ran on a closed queue") }, func() { close(dropped) })
	select {
	case <-dropped:
	case <-time.After(time.Second):
		t.Fatal("fallback did not run")
	}
}
