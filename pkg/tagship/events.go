package tagship

import "github.com/bft-labs/tagship/internal/pipeline"

// JobStateChangeEvent reports a job moving between states, e.g. pending
// to running.
type JobStateChangeEvent struct {
	Job      string
	Previous string
	Current  string
	Reason   string
}

// EventHandler receives pipeline events.
type EventHandler interface {
	OnJobStateChange(event JobStateChangeEvent)
}

// BaseEventHandler ignores every event. Embed it for no-op defaults.
type BaseEventHandler struct{}

// OnJobStateChange does nothing.
func (BaseEventHandler) OnJobStateChange(event JobStateChangeEvent) {}

// eventEmitterWrapper adapts EventHandler to the pipeline emitter.
type eventEmitterWrapper struct {
	handler EventHandler
}

func (e eventEmitterWrapper) OnJobStateChange(job string, previous, current pipeline.JobState, reason string) {
	if e.handler == nil {
		return
	}
	e.handler.OnJobStateChange(JobStateChangeEvent{
		Job:      job,
		Previous: previous.String(),
		Current:  current.String(),
		Reason:   reason,
	})
}
