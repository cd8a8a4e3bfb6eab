package tagship

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	httpAdapter "github.com/bft-labs/tagship/internal/adapters/http"
	"github.com/bft-labs/tagship/pkg/log"
)

// Status describes the release state of the repository.
type Status struct {
	// LastRun is the most recent run record, nil before the first run.
	LastRun *RunRecord

	Repository string
	// LatestRelease is the tag of the latest published release, empty
	// when the repository has none.
	LatestRelease string
	LatestVersion string

	// Tag is the configured tag, nil when no ref is configured.
	Tag *Tag
	// Newer reports whether Tag is a later version than LatestRelease.
	Newer bool
}

// Status reads the last run record and the latest published release.
func (t *Tagship) Status(ctx context.Context) (Status, error) {
	st := Status{Repository: t.config.GitHubRepository}

	rec, found, err := t.runs.Last(ctx)
	if err != nil {
		return st, fmt.Errorf("last run: %w", err)
	}
	if found {
		st.LastRun = &rec
	}

	if st.Repository != "" {
		latest, err := t.releases.LatestRelease(ctx, st.Repository)
		var apiErr *httpAdapter.APIError
		switch {
		case err == nil:
			st.LatestRelease = latest
			st.LatestVersion = strings.TrimPrefix(latest, "v")
		case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound:
			t.logger.Debug("no published release", log.String("repository", st.Repository))
		default:
			return st, fmt.Errorf("latest release: %w", err)
		}
	}

	if t.config.Ref != "" {
		tag, err := t.Tag()
		if err != nil {
			return st, err
		}
		st.Tag = &tag
		st.Newer = tag.Newer(st.LatestRelease)
	}
	return st, nil
}
