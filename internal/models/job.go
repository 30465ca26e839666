package models

import "time"

// JobState represents the lifecycle state of an intake job.
type JobState string

const (
	JobPending   JobState = "pending"
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
	JobCancelled JobState = "cancelled"
)

// Terminal reports whether the state admits no further transitions.
func (s JobState) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// JobResult summarizes a completed intake job.
type JobResult struct {
	EntitiesExtracted int      `json:"entities_extracted"`
	RecordsCreated    int      `json:"records_created"`
	RecordsUpdated    int      `json:"records_updated"`
	DuplicatesFound   int      `json:"duplicates_found"`
	Errors            []string `json:"errors,omitempty"`
}

// Job is a durable unit of asynchronous intake work.
//
// A job is created Pending by the submitter and mutated only by the worker
// that claims it. Progress never decreases while Running, StartedAt is set
// exactly once on Pending->Running, CompletedAt exactly once on entering a
// Completed or Failed state, and terminal jobs are immutable.
type Job struct {
	ID       string            `json:"id"`
	State    JobState          `json:"state"`
	Payload  string            `json:"payload"`
	Options  map[string]any    `json:"options,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`

	Progress int        `json:"progress"`
	Result   *JobResult `json:"result,omitempty"`
	Error    string     `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Clone returns a deep-enough copy so callers can hand out job snapshots
// without exposing store-owned state to mutation.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	if j.Options != nil {
		c.Options = make(map[string]any, len(j.Options))
		for k, v := range j.Options {
			c.Options[k] = v
		}
	}
	if j.Metadata != nil {
		c.Metadata = make(map[string]string, len(j.Metadata))
		for k, v := range j.Metadata {
			c.Metadata[k] = v
		}
	}
	if j.Result != nil {
		r := *j.Result
		r.Errors = append([]string(nil), j.Result.Errors...)
		c.Result = &r
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
