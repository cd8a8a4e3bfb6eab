package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/bft-labs/tagship/internal/formula"
	"github.com/bft-labs/tagship/internal/ports"
	"github.com/bft-labs/tagship/pkg/log"
)

// PushToTap waits until the version can be installed from the index, then
// regenerates the Homebrew formula and pushes it to every tap.
//
// A failing tap does not stop the others; the job fails if any tap failed.
func (j *Jobs) PushToTap(ctx context.Context) error {
	if j.deps.Probe == nil || j.deps.Index == nil || j.deps.Taps == nil || j.deps.Formula == nil {
		return errors.New("push_to_tap: probe, index, taps and formula renderer are required")
	}
	logger := j.logger.With(log.Job(JobTap))
	pkg, version := j.cfg.PackageName, j.cfg.Tag.Version

	n, err := j.cfg.TapRetry.Do(ctx, func(ctx context.Context, attempt int) error {
		err := j.deps.Probe.Probe(ctx, pkg, version)
		if err != nil {
			logger.Warn("package not installable yet",
				log.String("package", pkg+"=="+version),
				log.Int("attempt", attempt),
				log.Int("attempts", j.cfg.TapRetry.Attempts),
				log.Err(err))
		}
		return err
	})
	j.recordAttempts(JobTap, n)
	if err != nil {
		return fmt.Errorf("wait for %s==%s: %w", pkg, version, err)
	}
	logger.Info("package available", log.String("package", pkg+"=="+version), log.Int("attempts", n))

	sdist, err := j.deps.Index.SourceDist(ctx, pkg, version)
	if err != nil {
		return fmt.Errorf("source distribution: %w", err)
	}
	content, err := j.deps.Formula.Render(pkg, version, sdist)
	if err != nil {
		return fmt.Errorf("render formula: %w", err)
	}

	var errs []error
	for _, repo := range j.cfg.TapRepositories {
		changed, err := j.deps.Taps.Publish(ctx, ports.TapUpdate{
			Repository: repo,
			Path:       formula.Path(pkg),
			Content:    content,
			Message:    fmt.Sprintf("%s %s", pkg, version),
		})
		if err != nil {
			logger.Error("tap update failed", log.String("tap", repo), log.Err(err))
			errs = append(errs, fmt.Errorf("tap %s: %w", repo, err))
			continue
		}
		logger.Info("tap updated", log.String("tap", repo), log.Bool("changed", changed))
	}
	return errors.Join(errs...)
}
