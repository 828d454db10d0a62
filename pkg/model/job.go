package model

import (
	"time"

	"github.com/google/uuid"
)

// Job is one request to run a model chain against an experiment's data.
type Job struct {
	ID             string     `json:"id"`
	State          JobState   `json:"state"`
	Chain          ModelChain `json:"chain"`
	ExperimentID   int64      `json:"experiment_id"`
	AssignedWorker *WorkerRef `json:"assigned_worker,omitempty"`
	LogURL         string     `json:"log_url"`
	CreatedAt      time.Time  `json:"created_at"`
}

// NewJob creates a job in state NEW with a fresh ID.
func NewJob(chain ModelChain, experimentID int64) *Job {
	return &Job{
		ID:           "job_" + uuid.New().String(),
		State:        JobStateNew,
		Chain:        chain,
		ExperimentID: experimentID,
		CreatedAt:    time.Now().UTC(),
	}
}

// SetState changes the job state. A worker assignment only survives in
// WAITING_SCHEDULED and IN_PROGRESS; every other state drops it.
func (j *Job) SetState(state JobState) {
	j.State = state
	if state != JobStateWaitingScheduled && state != JobStateInProgress {
		j.AssignedWorker = nil
	}
}

// AssignTo records w as the job's worker and marks the job WAITING_SCHEDULED.
func (j *Job) AssignTo(w *Worker) {
	j.AssignedWorker = w.Ref()
	j.State = JobStateWaitingScheduled
}

// Unassign clears the worker and returns the job to WAITING_UNSCHEDULED.
func (j *Job) Unassign() {
	j.SetState(JobStateWaitingUnscheduled)
}

// IsAssignedTo reports whether the job is assigned to the worker with the given ID.
func (j *Job) IsAssignedTo(workerID string) bool {
	return j.AssignedWorker != nil && j.AssignedWorker.ID == workerID
}

// Clone returns a deep copy.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	if j.AssignedWorker != nil {
		ref := *j.AssignedWorker
		c.AssignedWorker = &ref
	}
	return &c
}
