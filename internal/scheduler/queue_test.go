package scheduler

import (
	"testing"

	"github.com/me/mcsched/pkg/model"
)

var (
	chainA = model.ModelChain{ID: "mc_a", Name: "A", Version: "1"}
	chainB = model.ModelChain{ID: "mc_b", Name: "B", Version: "1"}
)

func newTestJob(id string, chain model.ModelChain) *model.Job {
	j := model.NewJob(chain, 1)
	j.ID = id
	return j
}

func workerWith(id string, chains ...model.ModelChain) *model.Worker {
	w := model.NewWorker("host-"+id, id)
	w.ID = id
	w.Chains = chains
	return w
}

func TestJobQueue_Add(t *testing.T) {
	q := NewJobQueue()
	j := newTestJob("j1", chainA)

	if !q.Add(j) {
		t.Fatal("Add returned false")
	}
	if j.State != model.JobStateWaitingUnscheduled {
		t.Errorf("State = %s, want WAITING_UNSCHEDULED", j.State)
	}
	if q.Add(newTestJob("j1", chainB)) {
		t.Error("duplicate Add returned true")
	}
	if q.Len() != 1 {
		t.Errorf("Len() = %d, want 1", q.Len())
	}
	if q.Get("j1").Chain.ID != chainA.ID {
		t.Error("duplicate Add replaced the original job")
	}
}

func TestJobQueue_Order(t *testing.T) {
	q := NewJobQueue()
	for _, id := range []string{"j1", "j2", "j3"} {
		q.Add(newTestJob(id, chainA))
	}
	q.Remove("j2")

	var ids []string
	for _, j := range q.All() {
		ids = append(ids, j.ID)
	}
	if len(ids) != 2 || ids[0] != "j1" || ids[1] != "j3" {
		t.Errorf("order = %v, want [j1 j3]", ids)
	}

	if first := q.First(); first == nil || first.ID != "j1" {
		t.Errorf("First() = %v", first)
	}
	if popped := q.PopFirst(); popped == nil || popped.ID != "j1" {
		t.Errorf("PopFirst() = %v", popped)
	}
	if q.Len() != 1 || q.First().ID != "j3" {
		t.Errorf("after PopFirst: len=%d first=%v", q.Len(), q.First())
	}
	q.Clear()
	if q.First() != nil || q.PopFirst() != nil {
		t.Error("empty queue should return nil")
	}
}

func TestJobQueue_FirstJobForWorker(t *testing.T) {
	q := NewJobQueue()
	w := workerWith("w1", chainA)
	j1 := newTestJob("j1", chainA)
	j2 := newTestJob("j2", chainA)
	q.Add(j1)
	q.Add(j2)

	if q.HasJobsAssignedTo("w1") {
		t.Fatal("no job should be assigned yet")
	}
	j2.AssignTo(w)
	if got := q.FirstJobForWorker("w1"); got == nil || got.ID != "j2" {
		t.Errorf("FirstJobForWorker = %v, want j2", got)
	}
	if !q.HasJobsAssignedTo("w1") {
		t.Error("HasJobsAssignedTo should be true")
	}
}

func TestJobQueue_FindJobForWorker(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(q *JobQueue)
		worker *model.Worker
		want   string
	}{
		{
			name: "oldest waiting job",
			setup: func(q *JobQueue) {
				q.Add(newTestJob("j1", chainA))
				q.Add(newTestJob("j2", chainA))
			},
			worker: workerWith("w", chainA),
			want:   "j1",
		},
		{
			name: "aborted wins regardless of position",
			setup: func(q *JobQueue) {
				q.Add(newTestJob("j1", chainA))
				q.Add(newTestJob("j2", chainA))
				q.Get("j2").SetState(model.JobStateAborted)
			},
			worker: workerWith("w", chainA),
			want:   "j2",
		},
		{
			name: "aborted job of another chain does not win",
			setup: func(q *JobQueue) {
				q.Add(newTestJob("j1", chainA))
				q.Add(newTestJob("j2", chainB))
				q.Get("j2").SetState(model.JobStateAborted)
			},
			worker: workerWith("w", chainA),
			want:   "j1",
		},
		{
			name: "skips scheduled and running jobs",
			setup: func(q *JobQueue) {
				q.Add(newTestJob("j1", chainA))
				q.Add(newTestJob("j2", chainA))
				q.Add(newTestJob("j3", chainA))
				q.Get("j1").AssignTo(workerWith("other", chainA))
				q.Get("j2").SetState(model.JobStateInProgress)
			},
			worker: workerWith("w", chainA),
			want:   "j3",
		},
		{
			name: "no capable job",
			setup: func(q *JobQueue) {
				q.Add(newTestJob("j1", chainB))
			},
			worker: workerWith("w", chainA),
			want:   "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewJobQueue()
			tt.setup(q)
			got := q.FindJobForWorker(tt.worker)
			gotID := ""
			if got != nil {
				gotID = got.ID
			}
			if gotID != tt.want {
				t.Errorf("FindJobForWorker() = %q, want %q", gotID, tt.want)
			}
		})
	}
}

func TestJobHistory(t *testing.T) {
	h := NewJobHistory()
	j := newTestJob("j1", chainA)
	j.SetState(model.JobStateCompletedOK)

	if !h.Add(j) {
		t.Fatal("Add returned false")
	}
	if h.Add(j) {
		t.Error("duplicate Add returned true")
	}
	if h.Len() != 1 || h.Get("j1") == nil {
		t.Errorf("Len=%d Get=%v", h.Len(), h.Get("j1"))
	}

	all := h.All()
	all[0].State = model.JobStateAborted
	if h.Get("j1").State != model.JobStateCompletedOK {
		t.Error("mutating All() result changed the history")
	}

	if !h.Remove("j1") || h.Remove("j1") {
		t.Error("Remove should succeed once")
	}
	h.Add(j)
	h.Clear()
	if h.Len() != 0 {
		t.Errorf("Len() = %d after Clear", h.Len())
	}
}
