// -----------------------------------------------------------------------
// Worker Pool - Fixed-size set of job loops over one queue
// -----------------------------------------------------------------------

package worker

import (
	"context"
	"sync"

	"github.com/ternarybob/atlas/internal/interfaces"
	"github.com/ternarybob/atlas/pkg/broker"
)

// Pool runs a fixed number of worker loops against the shared queue. Each
// loop is an independent consumer; the queue hands every envelope to
// exactly one of them, so the at-most-once guarantee carries over
// unchanged. A pool scales a single worker host without spawning more
// processes.
type Pool struct {
	loops []*Service
}

// NewPool builds size identical loops over one broker and executor. Sizes
// below one collapse to a single loop.
func NewPool(b *broker.Broker, executor interfaces.JobExecutor, size int, opts ...Option) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{loops: make([]*Service, 0, size)}
	for i := 0; i < size; i++ {
		p.loops = append(p.loops, NewService(b, executor, opts...))
	}
	return p
}

// Size returns the number of loops.
func (p *Pool) Size() int {
	return len(p.loops)
}

// Run starts every loop and blocks until all of them return. The first
// loop failure cancels the rest; a graceful shutdown via ctx yields nil.
func (p *Pool) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errs := make(chan error, len(p.loops))
	for _, loop := range p.loops {
		wg.Add(1)
		go func(s *Service) {
			defer wg.Done()
			if err := s.Run(ctx); err != nil {
				errs <- err
				cancel()
			}
		}(loop)
	}
	wg.Wait()
	close(errs)
	return <-errs
}
