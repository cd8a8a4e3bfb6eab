package ports

import "context"

// TapUpdate is a file change to commit to a tap repository.
type TapUpdate struct {
	// Repository is the owner/name of the tap.
	Repository string
	// Path is the file path inside the repository, slash-separated.
	Path    string
	Content []byte
	Message string
}

// TapPublisher commits and pushes a TapUpdate.
// changed is false when the file already had the given content.
type TapPublisher interface {
	Publish(ctx context.Context, update TapUpdate) (changed bool, err error)
}
