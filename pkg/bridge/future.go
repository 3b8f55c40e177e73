package bridge

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/ajitpratap0/crossbar/pkg/errors"
	"github.com/ajitpratap0/crossbar/pkg/logger"
	"github.com/ajitpratap0/crossbar/pkg/stream"
)

// Future is the eventual result of a background call
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Done is closed once the result is available
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait returns the result of the call. If ctx is cancelled first, Wait still
// waits for the call to return, since it cannot be interrupted, then
// discards the result and reports the cancellation.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
	}
	<-f.done
	if f.err != nil {
		logger.FromContext(ctx).Debug("discarding result of cancelled call", zap.Error(f.err))
	}
	var zero T
	return zero, errors.Wrap(ctx.Err(), errors.ErrorTypeCancelled, "operation cancelled")
}

func (f *Future[T]) complete(value T, err error) {
	f.value, f.err = value, err
	close(f.done)
}

// Resolved returns a future that has already completed
func Resolved[T any](value T, err error) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	f.complete(value, err)
	return f
}

// Run executes the blocking call fn on ex and returns its future. fn owns
// every resource it opens and must release them before returning. A panic in
// fn is reported as an error.
func Run[T any](ctx context.Context, ex Executor, fn func() (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	err := ex.Go(ctx, func() {
		var (
			value T
			err   error
		)
		defer func() {
			if r := recover(); r != nil {
				err = errors.Newf(errors.ErrorTypeInternal, "background call panicked: %v", r)
			}
			f.complete(value, err)
		}()
		value, err = fn()
	})
	if err != nil {
		var zero T
		f.complete(zero, err)
	}
	return f
}

// Go runs fn on the pool carried by ctx
func Go[T any](ctx context.Context, fn func() (T, error)) *Future[T] {
	return Run(ctx, FromContext(ctx), fn)
}

// AwaitAll waits for every future produced by futures, keeping at most limit
// of them unresolved while pulling the next. It returns the first error, after
// which no further futures are pulled.
func AwaitAll[T any](ctx context.Context, futures *stream.Stream[*Future[T]], limit int) ([]T, error) {
	if limit <= 0 {
		limit = 1
	}
	var (
		results []T
		window  []*Future[T]
	)
	drain := func(n int) error {
		for len(window) > n {
			value, err := window[0].Wait(ctx)
			window = window[1:]
			if err != nil {
				return err
			}
			results = append(results, value)
		}
		return nil
	}
	for {
		f, err := futures.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			// Let in-flight calls finish before reporting.
			_ = drain(0)
			return results, err
		}
		window = append(window, f)
		if err := drain(limit - 1); err != nil {
			_ = drain(0)
			return results, err
		}
	}
	return results, drain(0)
}

// String is used in log fields
func (f *Future[T]) String() string {
	select {
	case <-f.done:
		if f.err != nil {
			return fmt.Sprintf("failed(%v)", f.err)
		}
		return "done"
	default:
		return "pending"
	}
}
