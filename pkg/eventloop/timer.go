package eventloop

import (
	"container/heap"
	"sync/atomic"
	"time"
)

// Handle refers to a callback scheduled with CallLater or CallAt.
type Handle struct {
	when      time.Time
	seq       uint64
	fn        func()
	cancelled atomic.Bool
}

// Cancel prevents the callback from running if it has not run yet.
func (h *Handle) Cancel() {
	h.cancelled.Store(true)
}

// Cancelled reports whether Cancel was called.
func (h *Handle) Cancelled() bool {
	return h.cancelled.Load()
}

// When returns the time the callback is due.
func (h *Handle) When() time.Time {
	return h.when
}

// CallLater schedules fn to run on the loop after delay.
func (l *Loop) CallLater(delay time.Duration, fn func()) *Handle {
	return l.CallAt(time.Now().Add(delay), fn)
}

// CallAt schedules fn to run on the loop at when. Callbacks due at the same
// instant run in scheduling order. On a closed loop the handle comes back
// already cancelled.
func (l *Loop) CallAt(when time.Time, fn func()) *Handle {
	h := &Handle{when: when, fn: fn}

	l.mu.Lock()
	if l.state.Load() == stateClosed {
		l.mu.Unlock()
		h.cancelled.Store(true)
		return h
	}
	h.seq = l.seq
	l.seq++
	heap.Push(&l.timers, h)
	l.mu.Unlock()

	l.notify()
	return h
}

// timerHeap orders handles by deadline, then by scheduling order.
type timerHeap []*Handle

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].when.Equal(h[j].when) {
		return h[i].seq < h[j].seq
	}
	return h[i].when.Before(h[j].when)
}

func (h timerHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *timerHeap) Push(x any) { *h = append(*h, x.(*Handle)) }

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

func (h *timerHeap) popMin() *Handle {
	return heap.Pop(h).(*Handle)
}
