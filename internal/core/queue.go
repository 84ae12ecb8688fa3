package core

import (
	"context"
	"sync"
)

type job func(ctx context.Context)

// writeQueue runs store jobs for one room in FIFO order on a single goroutine.
// push never blocks: the queue is unbounded.
type writeQueue struct {
	mu     sync.Mutex
	jobs   []job
	closed bool
	wake   chan struct{}
}

func newWriteQueue() *writeQueue {
	return &writeQueue{wake: make(chan struct{}, 1)}
}

func (q *writeQueue) push(j job) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.jobs = append(q.jobs, j)
	q.mu.Unlock()

	q.signal()
	return true
}

// close stops accepting jobs; run returns after draining what is queued.
func (q *writeQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	q.signal()
}

func (q *writeQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// run executes jobs until the queue is closed and empty.
// Jobs get a context that outlives ctx cancellation; queued writes still run on shutdown.
func (q *writeQueue) run(ctx context.Context) {
	jobCtx := context.WithoutCancel(ctx)
	for {
		q.mu.Lock()
		if len(q.jobs) == 0 {
			closed := q.closed
			q.mu.Unlock()
			if closed {
				return
			}
			<-q.wake
			continue
		}
		next := q.jobs[0]
		q.jobs[0] = nil
		q.jobs = q.jobs[1:]
		q.mu.Unlock()

		next(jobCtx)
	}
}
