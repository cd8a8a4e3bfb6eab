package pipeline

import "fmt"

// JobState is the runtime state of a job within one run.
type JobState int

const (
	StatePending JobState = iota
	StateRunning
	StateSucceeded
	StateFailed
	StateSkipped
	StateExcluded
)

// String returns a human-readable representation of the state.
func (s JobState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateSkipped:
		return "skipped"
	case StateExcluded:
		return "excluded"
	default:
		return "unknown"
	}
}

// Terminal reports whether the job has finished for this run.
func (s JobState) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateSkipped, StateExcluded:
		return true
	default:
		return false
	}
}

// EventEmitter is called when a job changes state.
// Calls are made from the executor goroutine, never concurrently.
type EventEmitter interface {
	OnJobStateChange(job string, previous, current JobState, reason string)
}

// canTransition validates a state change.
func canTransition(from, to JobState) bool {
	switch from {
	case StatePending:
		return to == StateRunning || to == StateSkipped || to == StateExcluded
	case StateRunning:
		return to == StateSucceeded || to == StateFailed
	default:
		return false
	}
}

// stateTable tracks job states for one run. Not safe for concurrent use;
// the executor owns it.
type stateTable struct {
	states  map[string]JobState
	emitter EventEmitter
}

func newStateTable(names []string, emitter EventEmitter) *stateTable {
	states := make(map[string]JobState, len(names))
	for _, n := range names {
		states[n] = StatePending
	}
	return &stateTable{states: states, emitter: emitter}
}

func (t *stateTable) get(name string) JobState { return t.states[name] }

func (t *stateTable) transition(name string, to JobState, reason string) error {
	from, ok := t.states[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownJob, name)
	}
	if !canTransition(from, to) {
		return fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, name, from, to)
	}
	t.states[name] = to
	if t.emitter != nil {
		t.emitter.OnJobStateChange(name, from, to, reason)
	}
	return nil
}

func (t *stateTable) allTerminal() bool {
	for _, s := range t.states {
		if !s.Terminal() {
			return false
		}
	}
	return true
}
