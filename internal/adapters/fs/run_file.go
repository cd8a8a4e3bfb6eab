// Package fs implements the file-system backed adapters: run records and
// the local artifact store.
package fs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bft-labs/tagship/internal/domain"
)

const (
	runsDirName     = "runs"
	lastRunFileName = "last-run.json"
)

// RunFileRepository implements ports.RunRepository using JSON files.
type RunFileRepository struct {
	dir string
}

// NewRunFileRepository creates a new RunFileRepository rooted at dir.
func NewRunFileRepository(dir string) *RunFileRepository {
	return &RunFileRepository{dir: dir}
}

// Last returns the most recently saved record.
// Returns found=false and nil error if no run was saved yet.
func (r *RunFileRepository) Last(ctx context.Context) (domain.RunRecord, bool, error) {
	data, err := os.ReadFile(r.LastPath())
	if err != nil {
		if os.IsNotExist(err) {
			return domain.RunRecord{}, false, nil
		}
		return domain.RunRecord{}, false, err
	}

	var rec domain.RunRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.RunRecord{}, false, fmt.Errorf("decode %s: %w", r.LastPath(), err)
	}
	return rec, true, nil
}

// Save writes the record under runs/<id>.json and replaces last-run.json.
// Both files are written atomically (temp file, then rename).
func (r *RunFileRepository) Save(ctx context.Context, rec domain.RunRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("%w: run record without id", domain.ErrInvalidConfig)
	}
	if err := os.MkdirAll(filepath.Join(r.dir, runsDirName), 0o700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}

	if err := writeAtomic(filepath.Join(r.dir, runsDirName, rec.ID+".json"), data); err != nil {
		return err
	}
	return writeAtomic(r.LastPath(), data)
}

// LastPath returns the full path to the last run file.
func (r *RunFileRepository) LastPath() string {
	return filepath.Join(r.dir, lastRunFileName)
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
