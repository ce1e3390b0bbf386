package waitfor_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vnykmshr/goloop/pkg/eventloop"
	"github.com/vnykmshr/goloop/pkg/scheduling/waitfor"
)

func ExampleWait() {
	loop := eventloop.New()
	defer loop.Close()

	square := func(n int) eventloop.Coroutine {
		return func(t *eventloop.Task) (any, error) {
			if err := t.Sleep(time.Duration(5-n) * time.Millisecond); err != nil {
				return nil, err
			}
			return n * n, nil
		}
	}

	_, _ = loop.RunUntilComplete(context.Background(), func(t *eventloop.Task) (any, error) {
		results, err := waitfor.Wait(t, []eventloop.Coroutine{square(1), square(2), square(3)})
		if err != nil {
			return nil, err
		}
		for _, r := range results {
			fmt.Println(r.Value)
		}
		return nil, nil
	})

	// Output:
	// 1
	// 4
	// 9
}

func ExampleRaiseFirst() {
	loop := eventloop.New()
	defer loop.Close()

	failing := func(t *eventloop.Task) (any, error) { return nil, errors.New("disk full") }
	fine := func(t *eventloop.Task) (any, error) { return "ok", nil }

	_, _ = loop.RunUntilComplete(context.Background(), func(t *eventloop.Task) (any, error) {
		results, err := waitfor.Wait(t, []eventloop.Coroutine{fine, failing}, waitfor.RaiseFirst(false))
		fmt.Println(err)
		for _, r := range results {
			fmt.Println(r.Value, r.Err)
		}
		return nil, nil
	})

	// Output:
	// <nil>
	// ok <nil>
	// <nil> disk full
}
