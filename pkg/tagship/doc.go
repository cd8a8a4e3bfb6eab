// Package tagship runs the release pipeline of a tagged Python CLI and can
// be embedded in other applications.
//
// Example usage:
//
//	cfg := tagship.DefaultConfig()
//	cfg.Ref = "refs/tags/v1.2.3"
//	cfg.PyPIToken = os.Getenv("PYPI_TOKEN")
//
//	t, err := tagship.New(cfg, tagship.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	rec, err := t.Run(ctx)
//	if errors.Is(err, tagship.ErrPipelineFailed) {
//	    // rec.Jobs tells which jobs failed or were skipped
//	}
//
// Plugins registered with WithPlugin run while Watch blocks, for example
// the plan watcher in plugins/planwatcher.
package tagship
