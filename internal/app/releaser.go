package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bft-labs/tagship/internal/domain"
	"github.com/bft-labs/tagship/internal/pipeline"
	"github.com/bft-labs/tagship/internal/ports"
	"github.com/bft-labs/tagship/pkg/log"
)

// ReleaserOptions tunes a Releaser.
type ReleaserOptions struct {
	MaxParallel int
	Only        []string
	// Emitter observes job state changes in addition to the log.
	Emitter pipeline.EventEmitter
}

// Releaser runs the release graph for one tag and records the outcome.
type Releaser struct {
	graph  *pipeline.Graph
	jobs   *Jobs
	runs   ports.RunRepository
	logger log.Logger
	opts   ReleaserOptions

	newID func() string
	now   func() time.Time
}

// NewReleaser binds jobs to the graph of def. runs may be nil, in which
// case nothing is persisted.
func NewReleaser(def pipeline.Definition, jobs *Jobs, runs ports.RunRepository, logger log.Logger, opts ReleaserOptions) (*Releaser, error) {
	if jobs == nil {
		return nil, errors.New("app: jobs are required")
	}
	g, err := def.Graph()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Releaser{
		graph:  g,
		jobs:   jobs,
		runs:   runs,
		logger: logger,
		opts:   opts,
		newID:  uuid.NewString,
		now:    time.Now,
	}, nil
}

// Graph returns the job graph.
func (r *Releaser) Graph() *pipeline.Graph { return r.graph }

// Run executes the graph once. The record is returned even when the run
// failed; the error wraps pipeline.ErrPipelineFailed when a job failed
// without continue-on-error, or the context error when canceled.
func (r *Releaser) Run(ctx context.Context) (domain.RunRecord, error) {
	rec := domain.RunRecord{
		ID:        r.newID(),
		Tag:       r.jobs.cfg.Tag,
		StartedAt: r.now(),
	}
	logger := r.logger.With(log.Run(rec.ID), log.String("tag", rec.Tag.Name))

	ex, err := pipeline.NewExecutor(r.graph, r.jobs.Registry(), pipeline.Options{
		MaxParallel: r.opts.MaxParallel,
		Only:        r.opts.Only,
		Emitter:     emitters{logEmitter{logger: logger}, r.opts.Emitter},
		Logger:      logger,
	})
	if err != nil {
		return rec, err
	}

	logger.Info("release started", log.String("version", rec.Tag.Version), log.Int("jobs", r.graph.Len()))
	res, runErr := ex.Run(ctx)
	rec.FinishedAt = r.now()
	if res != nil {
		rec.Jobs = r.jobRecords(res)
	}

	verdict := runErr
	if verdict == nil {
		verdict = res.Err()
	}
	switch {
	case ctx.Err() != nil:
		rec.Status = domain.RunCanceled
		if verdict == nil {
			verdict = ctx.Err()
		}
	case verdict != nil:
		rec.Status = domain.RunFailed
	default:
		rec.Status = domain.RunSucceeded
	}

	if r.runs != nil {
		// The record is saved even when the run was canceled.
		if err := r.runs.Save(context.WithoutCancel(ctx), rec); err != nil {
			logger.Error("save run record", log.Err(err))
			if verdict == nil {
				verdict = fmt.Errorf("save run record: %w", err)
			}
		}
	}

	if verdict != nil {
		logger.Error("release failed", log.String("status", rec.Status), log.Err(verdict))
	} else {
		logger.Info("release succeeded", log.Duration("duration", rec.FinishedAt.Sub(rec.StartedAt)))
	}
	return rec, verdict
}

func (r *Releaser) jobRecords(res *pipeline.Result) []domain.JobRecord {
	out := make([]domain.JobRecord, 0, len(res.Jobs))
	for _, name := range r.graph.TopologicalOrder() {
		o := res.Jobs[name]
		jr := domain.JobRecord{
			Name:      name,
			State:     o.State.String(),
			Reason:    o.Reason,
			Tolerated: o.Tolerated,
			StartedAt: o.StartedAt,
			Duration:  o.Duration,
		}
		if o.Err != nil {
			jr.Error = o.Err.Error()
		}
		if !o.StartedAt.IsZero() {
			jr.Attempts = r.jobs.Attempts(name)
			if jr.Attempts == 0 {
				jr.Attempts = 1
			}
		}
		out = append(out, jr)
	}
	return out
}

// logEmitter logs every job state change at debug level.
type logEmitter struct {
	logger log.Logger
}

func (e logEmitter) OnJobStateChange(job string, previous, current pipeline.JobState, reason string) {
	e.logger.Debug("job state",
		log.Job(job),
		log.String("from", previous.String()),
		log.String("to", current.String()),
		log.String("reason", reason))
}

// emitters fans a state change out to several emitters, ignoring nil ones.
type emitters []pipeline.EventEmitter

func (es emitters) OnJobStateChange(job string, previous, current pipeline.JobState, reason string) {
	for _, e := range es {
		if e != nil {
			e.OnJobStateChange(job, previous, current, reason)
		}
	}
}
