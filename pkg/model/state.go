package model

// JobState represents the lifecycle state of a Job.
type JobState string

const (
	JobStateNew                   JobState = "NEW"
	JobStateRemoved               JobState = "REMOVED"
	JobStateWaitingUnscheduled    JobState = "WAITING_UNSCHEDULED"
	JobStateWaitingScheduled      JobState = "WAITING_SCHEDULED"
	JobStateInProgress            JobState = "IN_PROGRESS"
	JobStateAborted               JobState = "ABORTED"
	JobStateCompletedOK           JobState = "COMPLETED_OK"
	JobStateCompletedWithWarnings JobState = "COMPLETED_WITH_WARNINGS"
	JobStateCompletedWithErrors   JobState = "COMPLETED_WITH_ERRORS"
)

// JobStates lists every job state in declaration order.
var JobStates = []JobState{
	JobStateNew,
	JobStateRemoved,
	JobStateWaitingUnscheduled,
	JobStateWaitingScheduled,
	JobStateInProgress,
	JobStateAborted,
	JobStateCompletedOK,
	JobStateCompletedWithWarnings,
	JobStateCompletedWithErrors,
}

// String returns the string representation of the job state.
func (s JobState) String() string {
	return string(s)
}

// IsValid returns true if s is one of the declared job states.
func (s JobState) IsValid() bool {
	for _, known := range JobStates {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal returns true if the job is finished and belongs in the history.
// ABORTED is not terminal: aborted jobs stay queued and are rescheduled first.
func (s JobState) IsTerminal() bool {
	switch s {
	case JobStateCompletedOK, JobStateCompletedWithWarnings, JobStateCompletedWithErrors:
		return true
	}
	return false
}

// IsClientSettable returns true if a worker client may report this state.
// The remaining states are only ever set by the scheduler itself.
func (s JobState) IsClientSettable() bool {
	switch s {
	case JobStateInProgress, JobStateAborted,
		JobStateCompletedOK, JobStateCompletedWithWarnings, JobStateCompletedWithErrors:
		return true
	}
	return false
}

// WorkerState represents the liveness state of a Worker.
type WorkerState string

const (
	WorkerStateUnknown      WorkerState = "UNKNOWN"
	WorkerStateIdle         WorkerState = "IDLE"
	WorkerStateBusy         WorkerState = "BUSY"
	WorkerStateError        WorkerState = "ERROR"
	WorkerStateRemoved      WorkerState = "REMOVED"
	WorkerStateNotAvailable WorkerState = "NOT_AVAILABLE"
)

// WorkerStates lists every worker state in declaration order.
var WorkerStates = []WorkerState{
	WorkerStateUnknown,
	WorkerStateIdle,
	WorkerStateBusy,
	WorkerStateError,
	WorkerStateRemoved,
	WorkerStateNotAvailable,
}

// String returns the string representation of the worker state.
func (s WorkerState) String() string {
	return string(s)
}

// IsValid returns true if s is one of the declared worker states.
func (s WorkerState) IsValid() bool {
	for _, known := range WorkerStates {
		if s == known {
			return true
		}
	}
	return false
}

// IsAvailable returns true if a worker in this state may keep its assigned job.
func (s WorkerState) IsAvailable() bool {
	return s == WorkerStateIdle || s == WorkerStateBusy
}

// IsClientSettable returns true if a worker may report this state in a heartbeat.
func (s WorkerState) IsClientSettable() bool {
	return s.IsValid() && s != WorkerStateUnknown && s != WorkerStateRemoved
}
