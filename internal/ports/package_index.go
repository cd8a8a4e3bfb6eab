package ports

import (
	"context"

	"github.com/bft-labs/tagship/internal/domain"
)

// IndexProbe checks whether a published version can be installed.
// It returns nil when the version is available.
type IndexProbe interface {
	Probe(ctx context.Context, pkg, version string) error
}

// PackageIndex reads release metadata from the package index.
type PackageIndex interface {
	// SourceDist returns the sdist of pkg at version.
	// Returns domain.ErrPackageNotFound if the index does not know it.
	SourceDist(ctx context.Context, pkg, version string) (domain.SourceDist, error)
}
