package threadpool

import (
	"sync"
	"time"

	"github.com/vnykmshr/goloop/pkg/eventloop"
)

// job pairs a callable with the future it resolves.
type job struct {
	fn       Callable
	fut      *eventloop.Future
	enqueued time.Time
}

// queue is an unbounded FIFO shared by all workers. pop blocks on a
// condition variable until a job arrives or the queue is closed.
type queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []job
	closed bool
}

func newQueue() *queue {
	q := &queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *queue) push(j job) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, j)
	q.mu.Unlock()

	q.cond.Signal()
	return true
}

// pop returns the oldest job. It returns false once the queue is closed;
// jobs still queued at that point are dropped.
func (q *queue) pop() (job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		return job{}, false
	}

	j := q.items[0]
	q.items[0] = job{}
	q.items = q.items[1:]
	return j, true
}

// close wakes every worker and returns the jobs that were still queued.
func (q *queue) close() []job {
	q.mu.Lock()
	q.closed = true
	dropped := q.items
	q.items = nil
	q.mu.Unlock()

	q.cond.Broadcast()
	return dropped
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
