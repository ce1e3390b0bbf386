// Package chunk splits sequences into fixed-size batches.
package chunk

import (
	"iter"
	"slices"

	"github.com/vnykmshr/goloop/pkg/common/validation"
)

// Seq yields consecutive batches of up to size values from seq. Only the
// last batch may be shorter; an empty seq yields nothing. Each batch is a
// fresh slice the caller may keep.
//
// Seq panics if size is not positive.
func Seq[T any](seq iter.Seq[T], size int) iter.Seq[[]T] {
	mustBePositive(size)

	return func(yield func([]T) bool) {
		batch := make([]T, 0, size)
		for v := range seq {
			batch = append(batch, v)
			if len(batch) < size {
				continue
			}
			if !yield(batch) {
				return
			}
			batch = make([]T, 0, size)
		}
		if len(batch) > 0 {
			yield(batch)
		}
	}
}

// Slice splits s into batches of up to size elements. The batches share
// s's backing array.
//
// Slice panics if size is not positive.
func Slice[S ~[]E, E any](s S, size int) []S {
	mustBePositive(size)
	return slices.Collect(slices.Chunk(s, size))
}

func mustBePositive(size int) {
	if err := validation.ValidatePositive("chunk", "size", size); err != nil {
		panic(err)
	}
}
