package domain

import "errors"

// Domain errors represent error conditions in the tagship domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrNotReleaseTag is returned when a ref does not match the trigger pattern.
	ErrNotReleaseTag = errors.New("tagship: ref is not a release tag")

	// ErrInvalidVersion is returned when the tag does not carry a semantic version.
	ErrInvalidVersion = errors.New("tagship: invalid version")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("tagship: invalid configuration")

	// ErrArtifactNotFound is returned when downloading an artifact that was never uploaded.
	ErrArtifactNotFound = errors.New("tagship: artifact not found")

	// ErrUnmatchedArtifact is returned when a required glob pattern matches no file.
	ErrUnmatchedArtifact = errors.New("tagship: no file matches artifact pattern")

	// ErrMissingBuildOutput is returned when the build script did not produce dist/ and packages/.
	ErrMissingBuildOutput = errors.New("tagship: build output missing")

	// ErrPackageNotFound is returned when the package index does not know a version yet.
	ErrPackageNotFound = errors.New("tagship: package not found on index")

	// ErrRetriesExhausted is returned when a bounded retry loop gave up.
	ErrRetriesExhausted = errors.New("tagship: retries exhausted")
)
