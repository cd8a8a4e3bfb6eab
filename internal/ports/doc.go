// Package ports defines the interfaces (ports) that connect the release jobs
// to infrastructure adapters.
//
// # Port Interfaces
//
//   - [CommandRunner]: runs external tools (pip, twine, docker, cloudsmith, build scripts)
//   - [ArtifactStore]: hands build bundles from one job to another
//   - [IndexProbe]: checks that a version is installable from the package index
//   - [PackageIndex]: reads release metadata from the package index
//   - [ReleaseHost]: creates releases and uploads assets
//   - [TapPublisher]: commits package manifests to tap repositories
//   - [ImageResolver]: resolves pushed container image tags
//   - [RunRepository]: persists run records
//   - [HTTPClient]: HTTP request abstraction for dependency injection
//
// The application layer (internal/app) depends only on these interfaces.
// Infrastructure adapters (internal/adapters) implement them.
package ports
