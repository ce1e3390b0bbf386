package threaded

import (
	"errors"
	"iter"
	"sync"

	"github.com/vnykmshr/goloop/pkg/eventloop"
	"github.com/vnykmshr/goloop/pkg/scheduling/threadpool"
)

// Generator produces values by calling yield until it returns false. It runs
// on a pool worker and may block freely.
type Generator[A, T any] func(arg A, yield func(T) bool) error

// ThreadedIterable adapts a blocking generator into a constructor of
// asynchronous iterators. Each call returns a fresh Iterator whose producer
// starts on the first Next.
//
// maxSize bounds the values buffered between producer and consumer; the
// producer blocks in yield while the buffer is full. Zero means unbounded.
//
// The producer holds a pool worker until it returns. An iterator that is
// dropped half-read is closed when the task that first called Next
// finishes; consumers that outlive their reads should call Close, or a
// small pool can be starved.
func ThreadedIterable[A, T any](pool *threadpool.Pool, gen Generator[A, T], maxSize int) func(A) *Iterator[T] {
	if maxSize < 0 {
		maxSize = 0
	}
	return func(arg A) *Iterator[T] {
		return newIterator(pool, func(yield func(T) bool) error {
			return gen(arg, yield)
		}, maxSize)
	}
}

// Iterator hands values from a producer running on a pool worker to a task.
//
// Next must be called from a task on the pool's loop. Close may be called
// from anywhere. Until it is closed, drained, or its first consumer task
// finishes, the producer stays parked on a full buffer.
type Iterator[T any] struct {
	pool    *threadpool.Pool
	sched   threadpool.Scheduler
	run     func(yield func(T) bool) error
	maxSize int

	mu       sync.Mutex
	notFull  *sync.Cond
	items    []T
	started  bool
	bound    bool
	finished bool
	closed   bool
	err      error
	waiter   *eventloop.Future
	producer *eventloop.Future
	done     chan struct{}
}

func newIterator[T any](pool *threadpool.Pool, run func(yield func(T) bool) error, maxSize int) *Iterator[T] {
	it := &Iterator[T]{
		pool:    pool,
		sched:   pool.Scheduler(),
		run:     run,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	it.notFull = sync.NewCond(&it.mu)
	return it
}

// Next suspends t until a value is available. It returns ok == false once
// the producer has finished and the buffer is drained, together with the
// producer's error, if any. A cancelled consumer closes the iterator.
func (it *Iterator[T]) Next(t *eventloop.Task) (value T, ok bool, err error) {
	var zero T
	it.start()
	it.bindConsumer(t)

	for {
		it.mu.Lock()
		if len(it.items) > 0 {
			v := it.items[0]
			it.items[0] = zero
			it.items = it.items[1:]
			it.mu.Unlock()

			it.notFull.Signal()
			return v, true, nil
		}
		if it.finished || it.closed {
			err := it.err
			it.mu.Unlock()
			return zero, false, err
		}

		waiter := it.sched.CreateFuture()
		it.waiter = waiter
		it.mu.Unlock()

		if _, err := t.Await(waiter); err != nil {
			if errors.Is(err, eventloop.ErrCancelled) {
				it.Close()
			}
			return zero, false, err
		}
	}
}

// Collect drains the iterator into a slice.
func (it *Iterator[T]) Collect(t *eventloop.Task) ([]T, error) {
	var out []T
	for {
		v, ok, err := it.Next(t)
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, v)
	}
}

// All returns a range-over-func view of the iterator. A producer error is
// yielded last, with the zero value.
func (it *Iterator[T]) All(t *eventloop.Task) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			v, ok, err := it.Next(t)
			if err != nil {
				yield(v, err)
				return
			}
			if !ok || !yield(v, nil) {
				return
			}
		}
	}
}

// Close stops the iterator. Buffered values are dropped, the producer's
// next yield returns false, and a job not yet started is cancelled.
func (it *Iterator[T]) Close() {
	it.mu.Lock()
	if it.closed {
		it.mu.Unlock()
		return
	}
	it.closed = true
	it.items = nil
	producer := it.producer
	waiter := it.waiter
	it.waiter = nil
	it.mu.Unlock()

	it.notFull.Broadcast()
	if producer != nil {
		producer.Cancel()
	}
	it.wake(waiter)
}

func (it *Iterator[T]) start() {
	it.mu.Lock()
	if it.started || it.closed {
		it.mu.Unlock()
		return
	}
	it.started = true
	it.mu.Unlock()

	producer := it.pool.Submit(func() (any, error) {
		return nil, it.run(it.put)
	})

	it.mu.Lock()
	it.producer = producer
	closed := it.closed
	it.mu.Unlock()

	if closed {
		producer.Cancel()
	}

	producer.AddDoneCallback(func(f *eventloop.Future) {
		it.finish(f.Err())
	})
	go it.watch()
}

// bindConsumer closes the iterator once the first consuming task finishes.
func (it *Iterator[T]) bindConsumer(t *eventloop.Task) {
	it.mu.Lock()
	if it.bound {
		it.mu.Unlock()
		return
	}
	it.bound = true
	it.mu.Unlock()

	t.AddDoneCallback(func(*eventloop.Future) { it.Close() })
}

// put runs on the worker. It blocks while the buffer is full.
func (it *Iterator[T]) put(v T) bool {
	it.mu.Lock()
	for !it.closed && !it.finished && it.maxSize > 0 && len(it.items) >= it.maxSize {
		it.notFull.Wait()
	}
	if it.closed || it.finished {
		it.mu.Unlock()
		return false
	}
	it.items = append(it.items, v)
	waiter := it.waiter
	it.waiter = nil
	it.mu.Unlock()

	it.wake(waiter)
	return true
}

func (it *Iterator[T]) finish(err error) {
	it.mu.Lock()
	if it.finished {
		it.mu.Unlock()
		return
	}
	it.finished = true
	if !it.closed {
		it.err = err
	}
	waiter := it.waiter
	it.waiter = nil
	close(it.done)
	it.mu.Unlock()

	it.notFull.Broadcast()
	it.wake(waiter)
}

// watch closes the iterator if the loop goes away first, so the producer
// is not left parked on a full buffer.
func (it *Iterator[T]) watch() {
	select {
	case <-it.sched.Closed():
		it.Close()
	case <-it.done:
	}
}

func (it *Iterator[T]) wake(waiter *eventloop.Future) {
	if waiter == nil {
		return
	}
	_ = it.sched.CallSoon(func() { waiter.SetResult(nil) })
}
