package ports

import (
	"context"

	"github.com/bft-labs/tagship/internal/domain"
)

// ArtifactStore hands bundles of files from one job to another.
type ArtifactStore interface {
	// Upload stores the given paths (files or directories relative to
	// srcDir) under key, replacing any previous bundle.
	Upload(ctx context.Context, key domain.ArtifactKey, srcDir string, paths []string) (domain.ArtifactSet, error)

	// Download materializes the bundle under dstDir.
	// Returns domain.ErrArtifactNotFound if nothing was uploaded for key.
	Download(ctx context.Context, key domain.ArtifactKey, dstDir string) (domain.ArtifactSet, error)
}
