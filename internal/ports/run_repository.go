package ports

import (
	"context"

	"github.com/bft-labs/tagship/internal/domain"
)

// RunRepository persists run records.
type RunRepository interface {
	// Save persists rec atomically and marks it as the last run.
	Save(ctx context.Context, rec domain.RunRecord) error

	// Last returns the most recently saved record, or found=false.
	Last(ctx context.Context) (rec domain.RunRecord, found bool, err error)
}
