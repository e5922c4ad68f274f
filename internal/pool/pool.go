// Package pool runs simulator jobs with bounded parallelism.
package pool

import (
	"context"
	"errors"
	"runtime"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/bbngrid/internal/card"
	"github.com/san-kum/bbngrid/internal/runner"
)

// ErrStopped is returned by Run once Stop was called.
var ErrStopped = errors.New("pool: stopped")

// Runner executes one job and returns its exit status.
type Runner interface {
	Run(ctx context.Context, d card.Descriptor) (int, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, d card.Descriptor) (int, error)

func (f RunnerFunc) Run(ctx context.Context, d card.Descriptor) (int, error) { return f(ctx, d) }

// Pool runs at most MaxParallel jobs at once. A Pool runs a single batch.
type Pool struct {
	maxParallel int

	// OnStart, when set, is called right before a job's process is spawned.
	// It is serialized with the done callback.
	OnStart func(id int)

	mu      sync.Mutex
	stopped bool
	cancel  context.CancelFunc
}

// New returns a pool with the given parallelism. Values below one use the
// number of CPUs.
func New(maxParallel int) *Pool {
	if maxParallel < 1 {
		maxParallel = runtime.NumCPU()
	}
	return &Pool{maxParallel: maxParallel}
}

func (p *Pool) MaxParallel() int { return p.maxParallel }

// Run submits jobs in order and blocks until every job finished or the pool
// was stopped. onJobDone is called once per finished job, never
// concurrently with itself. Jobs that could not be spawned are reported with
// runner.SpawnFailedExitCode.
func (p *Pool) Run(ctx context.Context, jobs []card.Descriptor, r Runner, onJobDone func(id, exitCode int)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return ErrStopped
	}
	p.cancel = cancel
	p.mu.Unlock()

	var g errgroup.Group
	g.SetLimit(p.maxParallel)

	for _, d := range jobs {
		d := d
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			if !p.started(d.ID) {
				return nil
			}

			exitCode, err := r.Run(ctx, d)
			if err != nil {
				if errors.Is(err, runner.ErrCancelled) {
					return nil
				}
				log.WithError(err).WithField("job", d.ID).Warn("job could not be run")
				exitCode = runner.SpawnFailedExitCode
			}
			p.done(d.ID, exitCode, onJobDone)
			return nil
		})
	}
	_ = g.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrStopped
	}
	return ctx.Err()
}

func (p *Pool) started(id int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return false
	}
	if p.OnStart != nil {
		p.OnStart(id)
	}
	return true
}

func (p *Pool) done(id, exitCode int, onJobDone func(id, exitCode int)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped || onJobDone == nil {
		return
	}
	onJobDone(id, exitCode)
}

// Stop kills every running job and suppresses further callbacks. It waits
// for a callback in progress to return. Calling it again has no effect.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	cancel := p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Stopped reports whether Stop was called.
func (p *Pool) Stopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}
