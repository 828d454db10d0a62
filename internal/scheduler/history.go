package scheduler

import (
	"github.com/elliotchance/orderedmap/v2"
	"github.com/me/mcsched/pkg/model"
)

// JobHistory is the append-only record of jobs that reached a terminal state.
type JobHistory struct {
	jobs *orderedmap.OrderedMap[string, *model.Job]
}

// NewJobHistory creates an empty history.
func NewJobHistory() *JobHistory {
	return &JobHistory{jobs: orderedmap.NewOrderedMap[string, *model.Job]()}
}

// Add appends job unless one with the same ID is already recorded.
func (h *JobHistory) Add(job *model.Job) bool {
	if _, ok := h.jobs.Get(job.ID); ok {
		return false
	}
	h.jobs.Set(job.ID, job)
	return true
}

// Remove drops the job with the given ID.
func (h *JobHistory) Remove(jobID string) bool {
	return h.jobs.Delete(jobID)
}

// Get returns the recorded job, or nil.
func (h *JobHistory) Get(jobID string) *model.Job {
	j, _ := h.jobs.Get(jobID)
	return j
}

// Len returns the number of recorded jobs.
func (h *JobHistory) Len() int {
	return h.jobs.Len()
}

// Each calls fn for every job in completion order.
func (h *JobHistory) Each(fn func(j *model.Job)) {
	for el := h.jobs.Front(); el != nil; el = el.Next() {
		fn(el.Value)
	}
}

// All returns copies of every recorded job in completion order.
func (h *JobHistory) All() []*model.Job {
	out := make([]*model.Job, 0, h.jobs.Len())
	h.Each(func(j *model.Job) {
		out = append(out, j.Clone())
	})
	return out
}

// Clear drops every recorded job.
func (h *JobHistory) Clear() {
	h.jobs = orderedmap.NewOrderedMap[string, *model.Job]()
}
