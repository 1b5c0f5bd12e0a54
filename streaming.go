package llmprovider

import (
	"iter"
	"sync"
)

// Stream is a finite, forward-only pull iterator over streamed values.
// It is not restartable.
//
// Usage:
//
//	stream, err := provider.StreamChat(ctx, messages, opts)
//	if err != nil { return err }
//	defer stream.Close()
//	for stream.Next() {
//	  msg := stream.Current()
//	}
//	if err := stream.Err(); err != nil { handle error }
type Stream[T any] struct {
	next    func() (T, bool, error)
	closeFn func() error

	cur  T
	err  error
	done bool

	closeOnce sync.Once
	closeErr  error
}

// NewStream builds a Stream from a pull function. next returns the next value
// and true, or false when the stream is exhausted or failed. closeFn releases
// the underlying source and may be nil.
func NewStream[T any](next func() (T, bool, error), closeFn func() error) *Stream[T] {
	return &Stream[T]{next: next, closeFn: closeFn}
}

// SliceStream returns a stream that yields the given values in order.
func SliceStream[T any](values []T) *Stream[T] {
	i := 0
	return NewStream(func() (T, bool, error) {
		var zero T
		if i >= len(values) {
			return zero, false, nil
		}
		v := values[i]
		i++
		return v, true, nil
	}, nil)
}

// Next advances to the next value. It returns false once the stream is
// exhausted, failed, or closed.
func (s *Stream[T]) Next() bool {
	if s.done {
		return false
	}
	v, ok, err := s.next()
	if err != nil {
		s.err = err
		s.finish()
		return false
	}
	if !ok {
		s.finish()
		return false
	}
	s.cur = v
	return true
}

// Current returns the value produced by the last successful Next.
func (s *Stream[T]) Current() T {
	return s.cur
}

// Err returns the first error encountered while iterating.
func (s *Stream[T]) Err() error {
	return s.err
}

// Close releases the underlying source. It is safe to call more than once.
func (s *Stream[T]) Close() error {
	s.done = true
	s.closeOnce.Do(func() {
		if s.closeFn != nil {
			s.closeErr = s.closeFn()
		}
	})
	return s.closeErr
}

func (s *Stream[T]) finish() {
	var zero T
	s.cur = zero
	_ = s.Close()
}

// All returns a range-over-func view of the stream. A terminal error is
// yielded once with the zero value. Breaking out of the loop closes the stream.
func (s *Stream[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		defer s.Close()
		for s.Next() {
			if !yield(s.Current(), nil) {
				return
			}
		}
		if err := s.Err(); err != nil {
			var zero T
			yield(zero, err)
		}
	}
}

// Collect drains the stream and closes it.
// Values received before a failure are returned along with the error.
func Collect[T any](s *Stream[T]) ([]T, error) {
	defer s.Close()
	var out []T
	for s.Next() {
		out = append(out, s.Current())
	}
	return out, s.Err()
}

// MapStream returns a stream that applies fn to every value of src.
// Closing the result closes src.
func MapStream[T, U any](src *Stream[T], fn func(T) U) *Stream[U] {
	return NewStream(func() (U, bool, error) {
		var zero U
		if !src.Next() {
			return zero, false, src.Err()
		}
		return fn(src.Current()), true, nil
	}, src.Close)
}
