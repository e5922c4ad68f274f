// Package batch drives one grid of simulator runs from preparation to the
// final aggregate.
//
// A Controller moves through Idle, Preparing and Running and ends Completed,
// Cancelled or Aborted. Preparation (executable check, grid expansion, card
// materialization and persistence of the definition) runs in the caller's
// goroutine; jobs run in the background.
//
//	c := batch.NewController()
//	if err := c.Start(ctx, spec); err != nil {
//		return err
//	}
//	snap := c.Wait()
package batch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/san-kum/bbngrid/internal/card"
	"github.com/san-kum/bbngrid/internal/collect"
	"github.com/san-kum/bbngrid/internal/grid"
	"github.com/san-kum/bbngrid/internal/pool"
	"github.com/san-kum/bbngrid/internal/runner"
)

// Spec describes one batch.
type Spec struct {
	Grids  *grid.Set
	Common *card.Common

	Executable  string
	WorkDir     string
	Build       []string
	MaxParallel int
	Timeout     time.Duration
	Markers     collect.Markers
}

// Saver persists the batch definition next to its artifacts.
type Saver interface {
	Save(c *card.Common, set *grid.Set) error
}

// Recorder observes batch progress, typically for metrics.
type Recorder interface {
	BatchStarted(total int)
	JobStarted(id int)
	JobDone(id int, outcome collect.Outcome, exitCode int)
	BatchEnded(phase string, duration time.Duration)
}

// Event is emitted after each classified job and once when the batch ends.
// ID is -1 for the final event.
type Event struct {
	ID       int
	Outcome  collect.Outcome
	ExitCode int
	Phase    Phase
	Progress float64
}

// Option configures a Controller.
type Option func(*Controller)

func WithSaver(s Saver) Option { return func(c *Controller) { c.saver = s } }

func WithRecorder(r Recorder) Option { return func(c *Controller) { c.recorder = r } }

// WithEvents enables the Events channel. Events are dropped when its buffer is full.
func WithEvents(buffer int) Option {
	return func(c *Controller) {
		c.eventsOn = true
		c.eventBuffer = buffer
	}
}

// Controller runs one batch at a time.
type Controller struct {
	saver       Saver
	recorder    Recorder
	eventsOn    bool
	eventBuffer int

	mu        sync.Mutex
	events    chan Event
	state     *State
	pool      *pool.Pool
	collector *collect.Collector
	done      chan struct{}
}

func NewController(opts ...Option) *Controller {
	c := &Controller{state: &State{}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Events returns the event channel of the current batch, or nil when events
// are disabled or no batch was started. The channel is closed after the final
// event; every Start opens a new one.
func (c *Controller) Events() <-chan Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events
}

// setPhase moves the state to another phase. c.mu must be held.
func (c *Controller) setPhase(to Phase) {
	if err := c.state.transition(to); err != nil {
		log.WithError(err).Error("phase not changed")
	}
}

// Start prepares the batch and launches its jobs in the background. It fails
// with ErrNotIdle unless the controller is idle. A preparation error leaves
// the controller Aborted with no job launched.
func (c *Controller) Start(ctx context.Context, spec Spec) error {
	c.mu.Lock()
	if c.state.Phase != Idle {
		c.mu.Unlock()
		return ErrNotIdle
	}
	c.state = &State{StartedAt: time.Now()}
	if spec.Common != nil {
		c.state.Tag = spec.Common.Templates.Tag
		c.state.Folder = spec.Common.Templates.Folder
	}
	c.setPhase(Preparing)
	done := make(chan struct{})
	c.done = done
	if c.eventsOn {
		c.events = make(chan Event, c.eventBuffer)
	}
	c.mu.Unlock()

	jobs, exe, err := c.prepare(ctx, &spec)
	if err != nil {
		log.WithError(err).Error("batch aborted")
		c.mu.Lock()
		c.state.Err = err
		c.state.EndedAt = time.Now()
		c.setPhase(Aborted)
		c.mu.Unlock()
		c.ended(Aborted)
		c.finish(Event{ID: -1, Phase: Aborted}, done)
		return err
	}

	col := collect.New(jobs, collect.Options{
		Templates:  spec.Common.Templates,
		Executable: spec.Executable,
		Markers:    spec.Markers,
	})
	p := pool.New(spec.MaxParallel)
	p.OnStart = c.onStart

	c.mu.Lock()
	c.state.Folder = spec.Common.Templates.Folder
	c.state.Jobs = make([]JobState, len(jobs))
	c.pool = p
	c.collector = col
	c.setPhase(Running)
	c.mu.Unlock()

	if c.recorder != nil {
		c.recorder.BatchStarted(len(jobs))
	}
	log.WithFields(log.Fields{
		"jobs":     len(jobs),
		"parallel": p.MaxParallel(),
		"tag":      spec.Common.Templates.Tag,
	}).Info("batch started")

	go c.run(ctx, jobs, exe, p, col, done)
	return nil
}

func (c *Controller) prepare(ctx context.Context, spec *Spec) ([]card.Descriptor, *runner.Exec, error) {
	if spec.Grids == nil || spec.Common == nil {
		return nil, nil, ErrNoGrid
	}

	workDir, err := filepath.Abs(spec.WorkDir)
	if err != nil {
		return nil, nil, err
	}
	if err := runner.EnsureExecutable(ctx, workDir, spec.Executable, spec.Build); err != nil {
		return nil, nil, err
	}

	// Cards are read by a process running in workDir, so every artifact
	// path must be absolute.
	common := *spec.Common
	if !filepath.IsAbs(common.Templates.Folder) {
		folder, err := filepath.Abs(common.Templates.Folder)
		if err != nil {
			return nil, nil, err
		}
		rel, err := common.Templates.Relative()
		if err != nil {
			return nil, nil, err
		}
		common.Templates = rel.Rooted(folder)
	}
	spec.Common = &common

	jobs, err := card.Materialize(spec.Grids.Expand(), spec.Common)
	if err != nil {
		return nil, nil, err
	}
	if c.saver != nil {
		if err := c.saver.Save(spec.Common, spec.Grids); err != nil {
			return nil, nil, fmt.Errorf("saving batch definition: %w", err)
		}
	}

	exe := &runner.Exec{Executable: spec.Executable, WorkDir: workDir, Timeout: spec.Timeout}
	return jobs, exe, nil
}

func (c *Controller) run(ctx context.Context, jobs []card.Descriptor, exe *runner.Exec, p *pool.Pool, col *collect.Collector, done chan struct{}) {
	runErr := p.Run(ctx, jobs, exe, c.onJobDone)

	summary, err := col.Finalize()
	if err != nil {
		log.WithError(err).Error("could not write every batch result")
	}

	phase := Completed
	if runErr != nil {
		phase = Cancelled
		if !errors.Is(runErr, pool.ErrStopped) {
			log.WithError(runErr).Warn("batch interrupted")
		}
	}

	c.mu.Lock()
	c.state.Summary = summary
	c.state.EndedAt = time.Now()
	for i, js := range c.state.Jobs {
		if js == JobRunning {
			c.state.Jobs[i] = JobPending
		}
	}
	c.setPhase(phase)
	progress := c.state.progress()
	c.mu.Unlock()

	log.WithFields(log.Fields{
		"phase":    phase,
		"finished": len(summary.Finished),
		"failed":   len(summary.Failed),
		"not_run":  len(summary.NotRun),
	}).Info("batch ended")

	c.ended(phase)
	c.finish(Event{ID: -1, Phase: phase, Progress: progress}, done)
}

// finish emits the final event, closes the event channel and releases waiters.
func (c *Controller) finish(last Event, done chan struct{}) {
	c.emit(last)
	c.mu.Lock()
	if c.events != nil {
		close(c.events)
	}
	c.mu.Unlock()
	close(done)
}

func (c *Controller) ended(phase Phase) {
	if c.recorder == nil {
		return
	}
	c.mu.Lock()
	d := c.state.EndedAt.Sub(c.state.StartedAt)
	c.mu.Unlock()
	c.recorder.BatchEnded(phase.String(), d)
}

func (c *Controller) onStart(id int) {
	c.mu.Lock()
	c.state.setJob(id, JobRunning)
	c.mu.Unlock()
	if c.recorder != nil {
		c.recorder.JobStarted(id)
	}
}

func (c *Controller) onJobDone(id, exitCode int) {
	c.mu.Lock()
	col := c.collector
	c.mu.Unlock()

	outcome := col.OnJobDone(id, exitCode)

	c.mu.Lock()
	switch outcome {
	case collect.Finished:
		c.state.setJob(id, JobFinished)
	case collect.Failed:
		c.state.setJob(id, JobFailed)
		c.state.Failures = col.Status().Failed
	}
	ev := Event{ID: id, Outcome: outcome, ExitCode: exitCode, Phase: c.state.Phase, Progress: c.state.progress()}
	c.mu.Unlock()

	if c.recorder != nil && outcome != collect.Ignored {
		c.recorder.JobDone(id, outcome, exitCode)
	}
	c.emit(ev)
}

func (c *Controller) emit(ev Event) {
	c.mu.Lock()
	events := c.events
	c.mu.Unlock()
	if events == nil {
		return
	}
	select {
	case events <- ev:
	default:
	}
}

// Stop kills every running job, finalizes the results and waits for the
// batch to end Cancelled. It has no effect unless the batch is running.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.state.Phase != Running {
		c.mu.Unlock()
		return
	}
	p, done := c.pool, c.done
	c.mu.Unlock()

	log.Info("stopping batch")
	p.Stop()
	<-done
}

// Wait blocks until the batch reached a terminal phase and returns its final
// snapshot. It returns immediately when no batch was started.
func (c *Controller) Wait() Snapshot {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done != nil {
		<-done
	}
	return c.Snapshot()
}

// Run starts the batch and waits for it to end.
func (c *Controller) Run(ctx context.Context, spec Spec) (Snapshot, error) {
	if err := c.Start(ctx, spec); err != nil {
		return c.Snapshot(), err
	}
	return c.Wait(), nil
}

// Reset returns a finished controller to Idle.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state.Phase {
	case Idle:
		return nil
	case Preparing, Running:
		return ErrBusy
	}
	c.state = &State{}
	c.pool = nil
	c.collector = nil
	c.done = nil
	return nil
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Phase
}

// Progress is the fraction of jobs that reached a terminal state.
func (c *Controller) Progress() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.progress()
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.snapshot()
}
