// Package stream provides the asynchronous sequences passed between the
// stages of a transfer: a stream of tables, each a stream of byte chunks.
//
// A Stream is consumed by exactly one reader. Producers run in their own
// goroutine and stop as soon as the consumer's context is cancelled.
package stream

import (
	"context"
	"io"

	"github.com/ajitpratap0/crossbar/pkg/errors"
)

// Stream is a single-consumer asynchronous sequence. Items is closed when the
// producer finishes; at most one error is delivered on Errors before it is
// closed.
type Stream[T any] struct {
	Items  <-chan T
	Errors <-chan error
}

// Emit hands one item to the consumer. It returns an error once the context
// is cancelled, after which the producer must stop.
type Emit[T any] func(T) error

// Generate runs produce in a new goroutine and returns the stream of the
// items it emits. An error returned by produce terminates the stream.
func Generate[T any](ctx context.Context, produce func(ctx context.Context, emit Emit[T]) error) *Stream[T] {
	items := make(chan T)
	errs := make(chan error, 1)

	go func() {
		defer close(errs)
		defer close(items)

		emit := func(item T) error {
			select {
			case items <- item:
				return nil
			case <-ctx.Done():
				return errors.Wrap(ctx.Err(), errors.ErrorTypeCancelled, "stream consumer went away")
			}
		}
		if err := produce(ctx, emit); err != nil {
			errs <- err
		}
	}()

	return &Stream[T]{Items: items, Errors: errs}
}

// Next returns the next item, io.EOF once the stream is exhausted, or the
// error that terminated it.
func (s *Stream[T]) Next(ctx context.Context) (T, error) {
	var zero T
	select {
	case item, ok := <-s.Items:
		if ok {
			return item, nil
		}
		// Items is closed before Errors, so a pending error is already buffered.
		if err, ok := <-s.Errors; ok && err != nil {
			return zero, err
		}
		return zero, io.EOF
	case <-ctx.Done():
		return zero, errors.Wrap(ctx.Err(), errors.ErrorTypeCancelled, "cancelled while waiting for stream")
	}
}

// Once returns a stream holding exactly one item
func Once[T any](item T) *Stream[T] {
	return FromSlice([]T{item})
}

// FromSlice returns a stream that yields items in order without a goroutine
func FromSlice[T any](items []T) *Stream[T] {
	ch := make(chan T, len(items))
	for _, item := range items {
		ch <- item
	}
	close(ch)
	errs := make(chan error)
	close(errs)
	return &Stream[T]{Items: ch, Errors: errs}
}

// Fail returns a stream that yields no items and then err
func Fail[T any](err error) *Stream[T] {
	ch := make(chan T)
	close(ch)
	errs := make(chan error, 1)
	errs <- err
	close(errs)
	return &Stream[T]{Items: ch, Errors: errs}
}

// Collect drains s into a slice
func Collect[T any](ctx context.Context, s *Stream[T]) ([]T, error) {
	var out []T
	for {
		item, err := s.Next(ctx)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, item)
	}
}

// ForEach calls fn for every item in order, stopping at the first error
func ForEach[T any](ctx context.Context, s *Stream[T], fn func(T) error) error {
	for {
		item, err := s.Next(ctx)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(item); err != nil {
			return err
		}
	}
}

// Map applies fn to every item of s
func Map[T, U any](ctx context.Context, s *Stream[T], fn func(T) (U, error)) *Stream[U] {
	return Generate(ctx, func(ctx context.Context, emit Emit[U]) error {
		return ForEach(ctx, s, func(item T) error {
			mapped, err := fn(item)
			if err != nil {
				return err
			}
			return emit(mapped)
		})
	})
}
