// README: Fixed-size worker pool that runs dispatch jobs off the request path.
package dispatch

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"tripnow/internal/observability"
)

type Job func(ctx context.Context)

type Pool struct {
	jobs    chan Job
	workers int
	log     logrus.FieldLogger
}

func NewPool(workers, queueSize int, log logrus.FieldLogger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &Pool{
		jobs:    make(chan Job, queueSize),
		workers: workers,
		log:     log.WithField("component", "dispatch_pool"),
	}
}

// Submit enqueues job and never blocks. A full queue drops the job and
// reports false.
func (p *Pool) Submit(job Job) bool {
	select {
	case p.jobs <- job:
		return true
	default:
		observability.DispatchJobsDropped.Inc()
		return false
	}
}

// Run drains the queue with at most p.workers jobs in flight and blocks
// until ctx is done and every running job has returned. While all workers
// are busy the queue keeps absorbing Submit calls.
func (p *Pool) Run(ctx context.Context) error {
	var g errgroup.Group
	g.SetLimit(p.workers)
	for {
		select {
		case <-ctx.Done():
			return g.Wait()
		case job := <-p.jobs:
			g.Go(func() error {
				p.exec(ctx, job)
				return nil
			})
		}
	}
}

func (p *Pool) exec(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			p.log.WithField("panic", fmt.Sprint(r)).Error("dispatch job panicked")
		}
	}()
	job(ctx)
}
