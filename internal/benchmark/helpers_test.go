package benchmark

import (
	"context"
	"strconv"
	"testing"

	"github.com/vnykmshr/goloop/pkg/eventloop"
)

// runLoop runs a fresh loop on a background goroutine until the benchmark ends.
func runLoop(b *testing.B) *eventloop.Loop {
	b.Helper()

	loop := eventloop.New()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = loop.Run(context.Background())
	}()
	b.Cleanup(func() {
		loop.Close()
		<-done
	})
	return loop
}

func workerLabel(n int) string {
	return "workers-" + strconv.Itoa(n)
}

func sizeLabel(n int) string {
	return "size-" + strconv.Itoa(n)
}
