package ports

import (
	"context"
	"io"
)

// Release is a release on the hosting service.
type Release struct {
	ID        int64
	TagName   string
	HTMLURL   string
	UploadURL string
	Assets    []string
}

// HasAsset reports whether an asset with name is already attached.
func (r Release) HasAsset(name string) bool {
	for _, a := range r.Assets {
		if a == name {
			return true
		}
	}
	return false
}

// ReleaseRequest describes a release to create.
type ReleaseRequest struct {
	TagName    string
	Name       string
	Prerelease bool
	Draft      bool
}

// ReleaseHost creates releases and attaches files to them.
type ReleaseHost interface {
	// ReleaseByTag returns the release for tag, or found=false.
	ReleaseByTag(ctx context.Context, repo, tag string) (rel Release, found bool, err error)

	CreateRelease(ctx context.Context, repo string, req ReleaseRequest) (Release, error)

	UploadAsset(ctx context.Context, rel Release, name string, size int64, body io.Reader) error

	// LatestRelease returns the tag name of the latest published release.
	LatestRelease(ctx context.Context, repo string) (string, error)
}
