// Package domain contains the core value types of a tagship release.
//
// It has no dependencies on infrastructure concerns (processes, HTTP, file
// system layout, logging).
//
//   - [Tag]: the release tag derived from a git ref
//   - [ArtifactKey]: the identity of a bundle handed from one job to another
//   - [ArtifactSet]: the files of a bundle, matched against glob patterns
//   - [SourceDist]: a published source distribution on the package index
package domain
