package pipeline

import "iter"

// Chunk groups a lazy sequence into batches of exactly size items, the last
// batch possibly shorter. An empty input yields zero batches, never an empty
// one. At most one batch is buffered at a time. size must be positive.
func Chunk[T any](seq iter.Seq[T], size int) iter.Seq[[]T] {
	return func(yield func([]T) bool) {
		batch := make([]T, 0, size)
		for v := range seq {
			batch = append(batch, v)
			if len(batch) == size {
				if !yield(batch) {
					return
				}
				batch = make([]T, 0, size)
			}
		}
		if len(batch) > 0 {
			yield(batch)
		}
	}
}
