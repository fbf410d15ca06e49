package scheduler

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
	"github.com/xmlls/xmlls/internal/utils"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

var ErrPoolClosed = errors.New("pool is closed")

// DefaultWorkerCount returns the number of workers used when no count is configured.
func DefaultWorkerCount() int {
	return max(1, min(4, runtime.NumCPU()))
}

// Pool runs tasks with bounded concurrency. Submit never blocks, tasks wait for a free worker in their own goroutine.
type Pool struct {
	sem    *semaphore.Weighted
	group  *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc
	logger zerolog.Logger

	lock   sync.Mutex
	closed bool
}

func NewPool(ctx context.Context, workers int, logger zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = DefaultWorkerCount()
	}

	ctx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(ctx)

	return &Pool{
		sem:    semaphore.NewWeighted(int64(workers)),
		group:  group,
		ctx:    groupCtx,
		cancel: cancel,
		logger: logger,
	}
}

// Submit queues a task, the context passed to the task is cancelled when the pool is closed.
func (p *Pool) Submit(task func(ctx context.Context)) error {
	p.lock.Lock()
	defer p.lock.Unlock()

	if p.closed {
		return ErrPoolClosed
	}

	p.group.Go(func() error {
		if err := p.sem.Acquire(p.ctx, 1); err != nil {
			return nil
		}
		defer p.sem.Release(1)
		defer utils.Recover(p.logger)

		task(p.ctx)
		return nil
	})
	return nil
}

// Close cancels the queued tasks and waits for the running tasks to return.
func (p *Pool) Close() error {
	p.lock.Lock()
	if p.closed {
		p.lock.Unlock()
		return nil
	}
	p.closed = true
	p.lock.Unlock()

	p.cancel()
	return p.group.Wait()
}
