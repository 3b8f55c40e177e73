// Package bridge runs blocking backend client calls alongside the streaming
// pipeline without blocking it.
//
// Blocking work is dispatched to a bounded Pool and observed through a
// Future. Byte streams are handed to blocking readers through an in-process
// pipe (NewStreamReader), and blocking writers are exposed as streams
// (WriterStream). SpawnTransform composes both for incremental format
// conversion.
//
// Tasks that depend on each other (an encoder feeding a bulk load through a
// pipe) must hold their slots at the same time. Acquire them together with
// Pool.Reserve so two half-started pairs can never starve each other.
package bridge

import (
	"context"
	"runtime"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/ajitpratap0/crossbar/pkg/errors"
	"github.com/ajitpratap0/crossbar/pkg/logger"
)

// MinWorkers is the smallest pool size. A paired transform and load need two
// slots.
const MinWorkers = 2

// Executor runs fn on a background goroutine. Go returns an error without
// running fn if no slot could be obtained.
type Executor interface {
	Go(ctx context.Context, fn func()) error
}

// Pool is a bounded background execution context
type Pool struct {
	sem  *semaphore.Weighted
	size int64
	wg   sync.WaitGroup
}

// NewPool creates a pool with the given number of slots. Sizes below
// MinWorkers are raised; zero means GOMAXPROCS.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	if size < MinWorkers {
		size = MinWorkers
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), size: int64(size)}
}

// Size returns the number of slots
func (p *Pool) Size() int {
	return int(p.size)
}

// Go waits for a free slot and runs fn in it
func (p *Pool) Go(ctx context.Context, fn func()) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return errors.Wrap(err, errors.ErrorTypeCancelled, "cancelled while waiting for a worker")
	}
	p.spawn(fn)
	return nil
}

// Reserve acquires n slots at once. Each Reservation.Go call consumes one;
// slots not used are returned by Release.
func (p *Pool) Reserve(ctx context.Context, n int) (*Reservation, error) {
	if n <= 0 || int64(n) > p.size {
		return nil, errors.Newf(errors.ErrorTypeInternal, "cannot reserve %d slots from a pool of %d", n, p.size)
	}
	if err := p.sem.Acquire(ctx, int64(n)); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeCancelled, "cancelled while waiting for workers")
	}
	return &Reservation{pool: p, remaining: n}, nil
}

// Wait blocks until every task started on the pool has returned
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) spawn(fn func()) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.sem.Release(1)
		fn()
	}()
}

// Reservation is a set of pool slots held for related tasks
type Reservation struct {
	mu        sync.Mutex
	pool      *Pool
	remaining int
}

// Go runs fn in one of the reserved slots. It never waits.
func (r *Reservation) Go(_ context.Context, fn func()) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.remaining == 0 {
		return errors.New(errors.ErrorTypeInternal, "reservation has no slots left")
	}
	r.remaining--
	r.pool.spawn(fn)
	return nil
}

// Release returns the unused slots to the pool. It is safe to call more than once.
func (r *Reservation) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.remaining > 0 {
		r.pool.sem.Release(int64(r.remaining))
		r.remaining = 0
	}
}

type poolKey struct{}

var (
	defaultPoolOnce sync.Once
	defaultPool     *Pool
)

// WithPool returns a context carrying pool
func WithPool(ctx context.Context, pool *Pool) context.Context {
	return context.WithValue(ctx, poolKey{}, pool)
}

// FromContext returns the pool carried by ctx, or a process-wide default pool
// sized to GOMAXPROCS.
func FromContext(ctx context.Context) *Pool {
	if pool, ok := ctx.Value(poolKey{}).(*Pool); ok && pool != nil {
		return pool
	}
	defaultPoolOnce.Do(func() {
		defaultPool = NewPool(0)
		logger.Debug("created default worker pool", zap.Int("workers", defaultPool.Size()))
	})
	return defaultPool
}

// Dedicated runs every task on its own goroutine without taking a pool
// slot. Use it for producers whose output is consumed by pool tasks, such as
// a source query streaming rows into a pipe; holding a slot there could
// starve the consumer.
var Dedicated Executor = dedicated{}

type dedicated struct{}

func (dedicated) Go(_ context.Context, fn func()) error {
	go fn()
	return nil
}
