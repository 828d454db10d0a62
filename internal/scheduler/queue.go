package scheduler

import (
	"github.com/elliotchance/orderedmap/v2"
	"github.com/me/mcsched/pkg/model"
)

// JobQueue holds the jobs that have not reached a terminal state, keyed by
// ID and kept in insertion order. Insertion order is the matching scan order.
// It is not safe for concurrent use; Core serializes access.
type JobQueue struct {
	jobs *orderedmap.OrderedMap[string, *model.Job]
}

// NewJobQueue creates an empty queue.
func NewJobQueue() *JobQueue {
	return &JobQueue{jobs: orderedmap.NewOrderedMap[string, *model.Job]()}
}

// Add appends job in state WAITING_UNSCHEDULED. It returns false if a job
// with the same ID is already queued.
func (q *JobQueue) Add(job *model.Job) bool {
	if _, ok := q.jobs.Get(job.ID); ok {
		return false
	}
	job.SetState(model.JobStateWaitingUnscheduled)
	q.jobs.Set(job.ID, job)
	return true
}

// restore appends job keeping its current state.
func (q *JobQueue) restore(job *model.Job) bool {
	if _, ok := q.jobs.Get(job.ID); ok {
		return false
	}
	q.jobs.Set(job.ID, job)
	return true
}

// Remove drops the job with the given ID.
func (q *JobQueue) Remove(jobID string) bool {
	return q.jobs.Delete(jobID)
}

// Get returns the queued job, or nil.
func (q *JobQueue) Get(jobID string) *model.Job {
	j, _ := q.jobs.Get(jobID)
	return j
}

// First returns the oldest queued job, or nil.
func (q *JobQueue) First() *model.Job {
	if el := q.jobs.Front(); el != nil {
		return el.Value
	}
	return nil
}

// PopFirst removes and returns the oldest queued job, or nil.
func (q *JobQueue) PopFirst() *model.Job {
	j := q.First()
	if j != nil {
		q.jobs.Delete(j.ID)
	}
	return j
}

// Len returns the number of queued jobs.
func (q *JobQueue) Len() int {
	return q.jobs.Len()
}

// Each calls fn for every job in insertion order.
func (q *JobQueue) Each(fn func(j *model.Job)) {
	for el := q.jobs.Front(); el != nil; el = el.Next() {
		fn(el.Value)
	}
}

// All returns copies of every queued job in insertion order.
func (q *JobQueue) All() []*model.Job {
	out := make([]*model.Job, 0, q.jobs.Len())
	q.Each(func(j *model.Job) {
		out = append(out, j.Clone())
	})
	return out
}

// FirstJobForWorker returns the first job assigned to the worker, or nil.
func (q *JobQueue) FirstJobForWorker(workerID string) *model.Job {
	for el := q.jobs.Front(); el != nil; el = el.Next() {
		if el.Value.IsAssignedTo(workerID) {
			return el.Value
		}
	}
	return nil
}

// HasJobsAssignedTo reports whether any queued job is assigned to the worker.
func (q *JobQueue) HasJobsAssignedTo(workerID string) bool {
	return q.FirstJobForWorker(workerID) != nil
}

// FindJobForWorker picks the job w should run next. ABORTED jobs the worker
// can run win over WAITING_UNSCHEDULED ones regardless of position; within
// each class the oldest job wins.
func (q *JobQueue) FindJobForWorker(w *model.Worker) *model.Job {
	if j := q.firstMatching(w, model.JobStateAborted); j != nil {
		return j
	}
	return q.firstMatching(w, model.JobStateWaitingUnscheduled)
}

func (q *JobQueue) firstMatching(w *model.Worker, state model.JobState) *model.Job {
	for el := q.jobs.Front(); el != nil; el = el.Next() {
		j := el.Value
		if j.State == state && w.HasChain(j.Chain.ID) {
			return j
		}
	}
	return nil
}

// Clear drops every queued job.
func (q *JobQueue) Clear() {
	q.jobs = orderedmap.NewOrderedMap[string, *model.Job]()
}
