package domain

import (
	"fmt"
	"path"
	"strings"

	"github.com/Masterminds/semver/v3"
)

const tagRefPrefix = "refs/tags/"

// DefaultTagPattern is the trigger pattern for release tags.
const DefaultTagPattern = "v*"

// Tag is a release tag resolved from a git ref.
type Tag struct {
	// Ref is the ref as given, e.g. refs/tags/v1.2.3.
	Ref string `json:"ref"`
	// Name is the short tag name, e.g. v1.2.3.
	Name string `json:"name"`
	// Version is Name without the leading "v", e.g. 1.2.3.
	Version string `json:"version"`
	// Prerelease is set for versions such as 1.3.0-rc.1.
	Prerelease bool `json:"prerelease"`
}

// ParseTag resolves ref into a Tag. The short name must match one of
// patterns (path.Match syntax); with no patterns DefaultTagPattern is used.
// Branch refs are rejected.
func ParseTag(ref string, patterns ...string) (Tag, error) {
	name := ref
	if strings.HasPrefix(ref, "refs/") {
		if !strings.HasPrefix(ref, tagRefPrefix) {
			return Tag{}, fmt.Errorf("%w: %s", ErrNotReleaseTag, ref)
		}
		name = strings.TrimPrefix(ref, tagRefPrefix)
	}
	if name == "" {
		return Tag{}, fmt.Errorf("%w: empty ref", ErrNotReleaseTag)
	}

	if len(patterns) == 0 {
		patterns = []string{DefaultTagPattern}
	}
	matched := false
	for _, p := range patterns {
		ok, err := path.Match(p, name)
		if err != nil {
			return Tag{}, fmt.Errorf("bad tag pattern %q: %w", p, err)
		}
		if ok {
			matched = true
			break
		}
	}
	if !matched {
		return Tag{}, fmt.Errorf("%w: %s does not match %v", ErrNotReleaseTag, name, patterns)
	}

	version := strings.TrimPrefix(name, "v")
	v, err := semver.NewVersion(version)
	if err != nil {
		return Tag{}, fmt.Errorf("%w: %s: %v", ErrInvalidVersion, name, err)
	}

	return Tag{
		Ref:        ref,
		Name:       name,
		Version:    version,
		Prerelease: v.Prerelease() != "",
	}, nil
}

// Newer reports whether t is a later version than other (a bare version or
// tag name). Unparseable input is treated as older.
func (t Tag) Newer(other string) bool {
	cur, err := semver.NewVersion(t.Version)
	if err != nil {
		return false
	}
	prev, err := semver.NewVersion(strings.TrimPrefix(other, "v"))
	if err != nil {
		return true
	}
	return cur.GreaterThan(prev)
}

func (t Tag) String() string { return t.Name }
