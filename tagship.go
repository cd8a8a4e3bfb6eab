// Package tagship releases a tagged Python CLI to PyPI, GitHub Releases,
// Cloudsmith, Docker Hub, GitHub Packages and its Homebrew taps.
//
// Example usage:
//
//	cfg := tagship.DefaultConfig()
//	cfg.Ref = os.Getenv("GITHUB_REF")
//	rec, err := tagship.Run(context.Background(), cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(rec.Status)
//
// For options, plugins and events use the pkg/tagship package.
package tagship

import (
	"context"

	"github.com/bft-labs/tagship/pkg/tagship"
)

// Config holds the configuration of a release.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config = tagship.Config

// RunRecord is the outcome of one run.
type RunRecord = tagship.RunRecord

// Run releases the configured tag and blocks until every job has finished.
func Run(ctx context.Context, cfg Config) (RunRecord, error) {
	t, err := tagship.New(cfg)
	if err != nil {
		return RunRecord{}, err
	}
	return t.Run(ctx)
}

// DefaultConfig returns a Config with sensible default values.
// At minimum, set Ref before calling Run.
func DefaultConfig() Config {
	return tagship.DefaultConfig()
}
