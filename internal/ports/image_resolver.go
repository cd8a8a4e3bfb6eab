package ports

import "context"

// ImageResolver resolves an image tag on its registry and returns the
// manifest digest.
type ImageResolver interface {
	Resolve(ctx context.Context, image, tag string) (digest string, err error)
}
