package deckhand

import "sync"

// renderJob is one deferred unit of compositing-and-write work. Jobs read
// live entity state at execution time, never state captured at enqueue time,
// so a stale job simply redraws whatever is current.
type renderJob func() error

// renderQueue serializes all pixel production and hardware writes for one
// device: strict FIFO, concurrency 1. Overlapping triggers (a key press and
// an unrelated animation tick) can therefore never interleave writes.
type renderQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	jobs    []renderJob
	closed  bool
	done    chan struct{}
	onError func(error)
}

func newRenderQueue(onError func(error)) *renderQueue {
	q := &renderQueue{
		done:    make(chan struct{}),
		onError: onError,
	}
	q.cond = sync.NewCond(&q.mu)
	go q.drain()
	return q
}

// enqueue appends a job to the tail. Jobs are never deduplicated; staleness
// is tolerated by design. Enqueueing on a closed queue is a silent no-op.
func (q *renderQueue) enqueue(job renderJob) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.jobs = append(q.jobs, job)
	q.mu.Unlock()
	q.cond.Signal()
}

// drain runs jobs one at a time until the queue is closed and empty. A
// failing job is reported and the queue keeps going.
func (q *renderQueue) drain() {
	for {
		q.mu.Lock()
		for len(q.jobs) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.jobs) == 0 && q.closed {
			q.mu.Unlock()
			close(q.done)
			return
		}
		job := q.jobs[0]
		q.jobs = q.jobs[1:]
		q.mu.Unlock()

		if err := job(); err != nil && q.onError != nil {
			q.onError(err)
		}
	}
}

// close stops accepting jobs, lets the pending ones finish, and waits for
// the drain goroutine to exit.
func (q *renderQueue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
	<-q.done
}
