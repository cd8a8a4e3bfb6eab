package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bft-labs/tagship/pkg/log"
)

// Job is the work behind one node of the graph.
type Job interface {
	Run(ctx context.Context) error
}

// JobFunc adapts a function to the Job interface.
type JobFunc func(ctx context.Context) error

// Run calls f(ctx).
func (f JobFunc) Run(ctx context.Context) error { return f(ctx) }

// Options tunes an Executor.
type Options struct {
	// MaxParallel bounds concurrently running jobs. Zero means unbounded.
	MaxParallel int

	// Only restricts the run to the named jobs. Other jobs are marked
	// Excluded and count as satisfied for their dependents.
	Only []string

	Emitter EventEmitter
	Logger  log.Logger

	// now is overridden in tests.
	now func() time.Time
}

// Outcome is the result of one job.
type Outcome struct {
	Name      string
	State     JobState
	Reason    string
	Err       error
	Tolerated bool
	StartedAt time.Time
	Duration  time.Duration
}

// Result is the outcome of a whole run.
type Result struct {
	Jobs map[string]Outcome
	// Started lists jobs in the order they were started.
	Started []string
}

// Err returns ErrPipelineFailed naming every job that failed without
// ContinueOnError, or nil.
func (r *Result) Err() error {
	var failed []string
	for name, o := range r.Jobs {
		if o.State == StateFailed && !o.Tolerated {
			failed = append(failed, name)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	sort.Strings(failed)
	return fmt.Errorf("%w: %s", ErrPipelineFailed, strings.Join(failed, ", "))
}

// Executor runs a Graph once.
type Executor struct {
	graph *Graph
	jobs  map[string]Job
	opts  Options
}

// NewExecutor binds implementations to the jobs of g. Every job of the
// graph needs an implementation; extra implementations are ignored.
func NewExecutor(g *Graph, jobs map[string]Job, opts Options) (*Executor, error) {
	if g == nil {
		return nil, errors.New("pipeline: nil graph")
	}
	for _, name := range g.Names() {
		if jobs[name] == nil {
			return nil, fmt.Errorf("%w: no implementation for %q", ErrUnknownJob, name)
		}
	}
	for _, name := range opts.Only {
		if _, ok := g.byName[name]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownJob, name)
		}
	}
	if opts.MaxParallel < 0 {
		return nil, fmt.Errorf("pipeline: max parallel must be >= 0, got %d", opts.MaxParallel)
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	if opts.now == nil {
		opts.now = time.Now
	}
	return &Executor{graph: g, jobs: jobs, opts: opts}, nil
}

type finished struct {
	name string
	err  error
	dur  time.Duration
}

// Run executes the graph and blocks until every started job has returned.
//
// The returned error is non-nil only for executor faults; job failures are
// reported through Result.Err.
func (e *Executor) Run(ctx context.Context) (*Result, error) {
	g := e.graph
	table := newStateTable(g.Names(), e.opts.Emitter)
	res := &Result{Jobs: make(map[string]Outcome, g.Len())}
	for _, name := range g.Names() {
		res.Jobs[name] = Outcome{Name: name, State: StatePending}
	}

	if len(e.opts.Only) > 0 {
		keep := make(map[string]bool, len(e.opts.Only))
		for _, n := range e.opts.Only {
			keep[n] = true
		}
		for _, name := range g.Names() {
			if keep[name] {
				continue
			}
			if err := e.settle(table, res, name, StateExcluded, "not selected"); err != nil {
				return res, err
			}
		}
	}

	var wg errgroup.Group
	// Every job reports exactly once, so a buffer of Len never blocks.
	done := make(chan finished, g.Len())
	inFlight := 0

	for {
		if ctx.Err() != nil {
			if err := e.skipPending(table, res); err != nil {
				_ = wg.Wait()
				return res, err
			}
		}

		progressed, err := e.dispatch(ctx, table, res, &wg, done, &inFlight)
		if err != nil {
			_ = wg.Wait()
			return res, err
		}
		if progressed {
			continue
		}

		if inFlight == 0 {
			if table.allTerminal() {
				return res, nil
			}
			return res, errors.New("pipeline: no runnable job but run not finished")
		}

		var f finished
		select {
		case f = <-done:
		case <-ctx.Done():
			if err := e.skipPending(table, res); err != nil {
				_ = wg.Wait()
				return res, err
			}
			f = <-done
		}
		inFlight--
		if err := e.finish(table, res, f); err != nil {
			_ = wg.Wait()
			return res, err
		}
	}
}

// dispatch starts every ready job and skips every job with an unsatisfied
// need. It reports whether any state changed.
func (e *Executor) dispatch(
	ctx context.Context,
	table *stateTable,
	res *Result,
	wg *errgroup.Group,
	done chan<- finished,
	inFlight *int,
) (bool, error) {
	progressed := false
	for _, name := range e.graph.TopologicalOrder() {
		if table.get(name) != StatePending {
			continue
		}
		ready, blocker := e.readiness(table, res, name)
		if blocker != "" {
			if err := e.settle(table, res, name, StateSkipped, "needs "+blocker); err != nil {
				return progressed, err
			}
			progressed = true
			continue
		}
		if !ready {
			continue
		}
		// A ready job without a free slot stays pending until a job
		// finishes, so cancellation can still skip it.
		if e.opts.MaxParallel > 0 && *inFlight >= e.opts.MaxParallel {
			continue
		}
		if ctx.Err() != nil {
			return progressed, nil
		}

		job := e.jobs[name]
		jobName := name
		started := e.opts.now()
		wg.Go(func() error {
			err := runJob(ctx, job)
			done <- finished{name: jobName, err: err, dur: e.opts.now().Sub(started)}
			return nil
		})
		*inFlight++
		progressed = true

		if err := table.transition(name, StateRunning, "needs satisfied"); err != nil {
			return progressed, err
		}
		o := res.Jobs[name]
		o.State = StateRunning
		o.StartedAt = started
		res.Jobs[name] = o
		res.Started = append(res.Started, name)
		e.opts.Logger.Info("job started", log.Job(name))
	}
	return progressed, nil
}

// readiness reports whether every need of name is satisfied. When a need
// has settled unsatisfied, blocker names it.
func (e *Executor) readiness(table *stateTable, res *Result, name string) (ready bool, blocker string) {
	spec, _ := e.graph.Spec(name)
	ready = true
	for _, need := range spec.Needs {
		switch table.get(need) {
		case StateSucceeded, StateExcluded:
		case StateFailed:
			if !res.Jobs[need].Tolerated {
				return false, need
			}
		case StateSkipped:
			return false, need
		default:
			ready = false
		}
	}
	return ready, ""
}

func (e *Executor) finish(table *stateTable, res *Result, f finished) error {
	spec, _ := e.graph.Spec(f.name)
	o := res.Jobs[f.name]
	o.Duration = f.dur
	logger := e.opts.Logger.With(log.Job(f.name))

	if f.err == nil {
		o.State = StateSucceeded
		res.Jobs[f.name] = o
		logger.Info("job succeeded", log.Duration("duration", f.dur))
		return table.transition(f.name, StateSucceeded, "")
	}

	o.State = StateFailed
	o.Err = f.err
	o.Reason = f.err.Error()
	o.Tolerated = spec.ContinueOnError
	res.Jobs[f.name] = o
	if o.Tolerated {
		logger.Warn("job failed, continuing", log.Err(f.err), log.Duration("duration", f.dur))
	} else {
		logger.Error("job failed", log.Err(f.err), log.Duration("duration", f.dur))
	}
	return table.transition(f.name, StateFailed, o.Reason)
}

func (e *Executor) skipPending(table *stateTable, res *Result) error {
	for _, name := range e.graph.TopologicalOrder() {
		if table.get(name) != StatePending {
			continue
		}
		if err := e.settle(table, res, name, StateSkipped, "canceled"); err != nil {
			return err
		}
	}
	return nil
}

func (e *Executor) settle(table *stateTable, res *Result, name string, to JobState, reason string) error {
	if err := table.transition(name, to, reason); err != nil {
		return err
	}
	o := res.Jobs[name]
	o.State = to
	o.Reason = reason
	res.Jobs[name] = o
	if to == StateSkipped {
		e.opts.Logger.Warn("job skipped", log.Job(name), log.String("reason", reason))
	}
	return nil
}

// runJob converts a panicking job into a failure.
func runJob(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return job.Run(ctx)
}
