package engine

import (
	"sync"
	"time"
)

// workQueue serializes all buffer mutation and reconciliation for one
// engine instance: tasks run one at a time on a single goroutine, in
// submission order, so no two reconciliation steps execute concurrently
// and the persisted state needs no locking.
type workQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	tasks  []func()
	closed bool

	wg sync.WaitGroup
}

func newWorkQueue() *workQueue {
	q := &workQueue{}
	q.cond = sync.NewCond(&q.mu)

	q.wg.Add(1)
	go q.run()
	return q
}

func (q *workQueue) run() {
	defer q.wg.Done()

	for {
		q.mu.Lock()
		for len(q.tasks) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.tasks) == 0 && q.closed {
			q.mu.Unlock()
			return
		}
		task := q.tasks[0]
		q.tasks = q.tasks[1:]
		q.mu.Unlock()

		task()
	}
}

// Submit enqueues fn. Returns false when the queue is closed.
func (q *workQueue) Submit(fn func()) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.tasks = append(q.tasks, fn)
	q.cond.Signal()
	return true
}

// SubmitAfter enqueues fn once delay has elapsed. A non-positive delay
// submits immediately. If the queue has closed by the time the delay
// elapses, drop runs instead; a nil drop discards the task silently.
// Implements retry.Queue.
func (q *workQueue) SubmitAfter(delay time.Duration, fn, drop func()) {
	submit := func() {
		if !q.Submit(fn) && drop != nil {
			drop()
		}
	}
	if delay <= 0 {
		submit()
		return
	}
	time.AfterFunc(delay, submit)
}

// Close stops accepting tasks and waits for already queued ones to
// finish.
func (q *workQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()

	q.wg.Wait()
}
