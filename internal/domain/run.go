package domain

import "time"

// Run status values stored in a RunRecord.
const (
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
	RunCanceled  = "canceled"
)

// RunRecord is the persisted outcome of one pipeline run.
type RunRecord struct {
	ID         string      `json:"id"`
	Tag        Tag         `json:"tag"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
	Status     string      `json:"status"`
	Jobs       []JobRecord `json:"jobs"`
}

// JobRecord is the outcome of a single job within a run.
type JobRecord struct {
	Name      string        `json:"name"`
	State     string        `json:"state"`
	Reason    string        `json:"reason,omitempty"`
	Error     string        `json:"error,omitempty"`
	Tolerated bool          `json:"tolerated,omitempty"`
	Attempts  int           `json:"attempts,omitempty"`
	StartedAt time.Time     `json:"started_at,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Job returns the record of the named job.
func (r RunRecord) Job(name string) (JobRecord, bool) {
	for _, j := range r.Jobs {
		if j.Name == name {
			return j, true
		}
	}
	return JobRecord{}, false
}
