package fs

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bft-labs/tagship/internal/domain"
)

const artifactsDirName = "artifacts"

// ArtifactDirStore implements ports.ArtifactStore on a local directory tree:
// <dir>/artifacts/<scope>/<name>/<files>.
type ArtifactDirStore struct {
	dir string
}

// NewArtifactDirStore creates a store rooted at dir.
func NewArtifactDirStore(dir string) *ArtifactDirStore {
	return &ArtifactDirStore{dir: dir}
}

// Upload copies paths (files or directories, relative to srcDir) into the
// bundle for key. The previous bundle is replaced as a whole.
func (s *ArtifactDirStore) Upload(ctx context.Context, key domain.ArtifactKey, srcDir string, paths []string) (domain.ArtifactSet, error) {
	if err := key.Validate(); err != nil {
		return domain.ArtifactSet{}, err
	}
	files, err := collectFiles(srcDir, paths)
	if err != nil {
		return domain.ArtifactSet{}, err
	}

	dst := s.bundleDir(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return domain.ArtifactSet{}, err
	}
	staging, err := os.MkdirTemp(filepath.Dir(dst), "."+key.Name+"-")
	if err != nil {
		return domain.ArtifactSet{}, err
	}
	defer os.RemoveAll(staging)

	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return domain.ArtifactSet{}, err
		}
		if err := copyFile(filepath.Join(srcDir, filepath.FromSlash(rel)), filepath.Join(staging, filepath.FromSlash(rel))); err != nil {
			return domain.ArtifactSet{}, fmt.Errorf("upload %s: %w", key, err)
		}
	}

	// Swap the staged bundle in place of the old one.
	old := dst + ".old"
	_ = os.RemoveAll(old)
	if err := os.Rename(dst, old); err != nil && !os.IsNotExist(err) {
		return domain.ArtifactSet{}, err
	}
	if err := os.Rename(staging, dst); err != nil {
		return domain.ArtifactSet{}, err
	}
	_ = os.RemoveAll(old)

	return domain.NewArtifactSet(dst, files), nil
}

// Download copies the bundle for key into dstDir.
// Returns domain.ErrArtifactNotFound if the bundle does not exist.
func (s *ArtifactDirStore) Download(ctx context.Context, key domain.ArtifactKey, dstDir string) (domain.ArtifactSet, error) {
	if err := key.Validate(); err != nil {
		return domain.ArtifactSet{}, err
	}
	src := s.bundleDir(key)
	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return domain.ArtifactSet{}, fmt.Errorf("%w: %s", domain.ErrArtifactNotFound, key)
		}
		return domain.ArtifactSet{}, err
	}

	files, err := collectFiles(src, []string{"."})
	if err != nil {
		return domain.ArtifactSet{}, err
	}
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return domain.ArtifactSet{}, err
		}
		if err := copyFile(filepath.Join(src, filepath.FromSlash(rel)), filepath.Join(dstDir, filepath.FromSlash(rel))); err != nil {
			return domain.ArtifactSet{}, fmt.Errorf("download %s: %w", key, err)
		}
	}
	return domain.NewArtifactSet(dstDir, files), nil
}

func (s *ArtifactDirStore) bundleDir(key domain.ArtifactKey) string {
	return filepath.Join(s.dir, artifactsDirName, key.Scope, key.Name)
}

// collectFiles expands paths under root into slash-separated relative file
// paths. Paths must stay inside root.
func collectFiles(root string, paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		clean := filepath.Clean(p)
		if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
			return nil, fmt.Errorf("path %q escapes %s", p, root)
		}
		start := filepath.Join(root, clean)
		err := filepath.WalkDir(start, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.Type().IsRegular() {
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			out = append(out, filepath.ToSlash(rel))
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
