package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidGraph is returned when job specs do not form a valid DAG.
	ErrInvalidGraph = errors.New("pipeline: invalid graph")

	// ErrUnknownJob is returned when a job has no implementation or an
	// unknown name is referenced.
	ErrUnknownJob = errors.New("pipeline: unknown job")

	// ErrInvalidTransition is returned for a disallowed job state change.
	ErrInvalidTransition = errors.New("pipeline: invalid state transition")

	// ErrPipelineFailed is returned by Result.Err when at least one job
	// failed without ContinueOnError.
	ErrPipelineFailed = errors.New("pipeline: failed")
)

func invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidGraph, fmt.Sprintf(format, args...))
}

func cycleError(path []string) error {
	return fmt.Errorf("%w: cycle %s", ErrInvalidGraph, strings.Join(path, " -> "))
}
