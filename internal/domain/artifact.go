package domain

import (
	"fmt"
	"path"
	"path/filepath"
	"sort"
)

// Build output directories bundled into the packages artifact.
const (
	DistDir     = "dist"
	PackagesDir = "packages"
)

// ArtifactKey identifies an artifact bundle. Scope is the tag name, so a
// re-run for the same tag finds the bundle of an earlier run.
type ArtifactKey struct {
	Scope string `json:"scope"`
	Name  string `json:"name"`
}

func (k ArtifactKey) String() string { return k.Scope + "/" + k.Name }

// Validate rejects keys that would escape the store layout.
func (k ArtifactKey) Validate() error {
	for _, part := range []string{k.Scope, k.Name} {
		if part == "" || part == "." || part == ".." || path.Base(part) != part {
			return fmt.Errorf("%w: artifact key %q", ErrInvalidConfig, k.String())
		}
	}
	return nil
}

// ArtifactSet lists the files of a bundle materialized under Root.
// Files are slash-separated paths relative to Root, sorted.
type ArtifactSet struct {
	Root  string
	Files []string
}

// NewArtifactSet returns a set with files sorted.
func NewArtifactSet(root string, files []string) ArtifactSet {
	cp := append([]string(nil), files...)
	sort.Strings(cp)
	return ArtifactSet{Root: root, Files: cp}
}

// Match returns the files matching any of patterns, in file order.
func (s ArtifactSet) Match(patterns ...string) []string {
	var out []string
	for _, f := range s.Files {
		for _, p := range patterns {
			if ok, _ := path.Match(p, f); ok {
				out = append(out, f)
				break
			}
		}
	}
	return out
}

// RequireAll matches every pattern and fails with ErrUnmatchedArtifact if
// any pattern matches nothing. The union of matches is returned.
func (s ArtifactSet) RequireAll(patterns ...string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, p := range patterns {
		if _, err := path.Match(p, ""); err != nil {
			return nil, fmt.Errorf("bad artifact pattern %q: %w", p, err)
		}
		m := s.Match(p)
		if len(m) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrUnmatchedArtifact, p)
		}
		for _, f := range m {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

// Path returns the local path of a file of the set.
func (s ArtifactSet) Path(file string) string {
	return filepath.Join(s.Root, filepath.FromSlash(file))
}

// ReleaseAssetPatterns returns the globs of the files attached to a GitHub
// release for pkg: the zipapp, the Debian and the RPM packages.
func ReleaseAssetPatterns(pkg string) []string {
	return []string{
		PackagesDir + "/" + pkg + "-*.pyz",
		PackagesDir + "/" + pkg + "_*.deb",
		PackagesDir + "/" + pkg + "-*.rpm",
	}
}

// DistPatterns returns the globs of the Python distributions uploaded to the index.
func DistPatterns() []string {
	return []string{DistDir + "/*.whl", DistDir + "/*.tar.gz"}
}

// SourceDist is a source distribution published on the package index.
type SourceDist struct {
	Filename string
	URL      string
	SHA256   string
}
