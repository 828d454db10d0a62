package scheduler

import (
	"github.com/me/mcsched/pkg/model"
)

// PassResult counts what one matching pass changed.
type PassResult struct {
	TimedOut   int // workers demoted to UNKNOWN
	Unassigned int // jobs returned to WAITING_UNSCHEDULED
	Assigned   int // jobs handed to an idle worker
}

// Changed reports whether the pass touched any job or worker.
func (r PassResult) Changed() bool {
	return r.TimedOut+r.Unassigned+r.Assigned > 0
}

// ScheduleJobs runs one matching pass: stale workers are demoted, jobs
// whose worker is gone or unavailable are unassigned, and every idle
// worker without a job gets the best queued job it can run.
func (c *Core) ScheduleJobs() PassResult {
	start := c.clock.Now()

	c.mu.Lock()
	var res PassResult
	res.TimedOut = c.expireWorkers()
	res.Unassigned = c.reconcileAssignments()
	res.Assigned = c.assignJobs()
	c.mu.Unlock()

	took := c.clock.Since(start)
	c.passes.Add(1)
	c.lastPass.Store(start.UnixNano())
	c.metrics.observePass(res, took)
	if res.Unassigned > 0 || res.Assigned > 0 {
		c.dirty.Store(true)
	}
	c.logger.Debug("pass complete",
		"timed_out", res.TimedOut, "unassigned", res.Unassigned, "assigned", res.Assigned, "took", took)
	return res
}

// expireWorkers sets every worker whose last heartbeat is older than the
// timeout to UNKNOWN. The heartbeat timestamp is left alone.
func (c *Core) expireWorkers() int {
	now := c.clock.Now()
	n := 0
	c.registry.Each(func(w *model.Worker) {
		if w.State == model.WorkerStateUnknown {
			return
		}
		if age := now.Sub(w.LastHeartbeat); age > c.config.WorkerTimeout {
			c.logger.Info("worker heartbeat timed out",
				"worker_id", w.ID, "state", w.State, "last_heartbeat", w.LastHeartbeat, "age", age)
			w.State = model.WorkerStateUnknown
			n++
		}
	})
	return n
}

// reconcileAssignments unassigns queued jobs whose worker is no longer
// registered or not in an available state.
func (c *Core) reconcileAssignments() int {
	n := 0
	c.queue.Each(func(j *model.Job) {
		if j.AssignedWorker == nil {
			return
		}
		w := c.registry.Get(j.AssignedWorker.ID)
		if w != nil && w.State.IsAvailable() {
			return
		}
		state := model.WorkerStateRemoved
		if w != nil {
			state = w.State
		}
		c.logger.Info("job unassigned",
			"job_id", j.ID, "worker_id", j.AssignedWorker.ID, "worker_state", state, "job_state", j.State)
		j.Unassign()
		n++
	})
	return n
}

// assignJobs gives each idle worker without a job its next job, visiting
// workers in registration order.
func (c *Core) assignJobs() int {
	n := 0
	c.registry.Each(func(w *model.Worker) {
		if w.State != model.WorkerStateIdle || c.queue.HasJobsAssignedTo(w.ID) {
			return
		}
		j := c.queue.FindJobForWorker(w)
		if j == nil {
			return
		}
		prev := j.State
		j.AssignTo(w)
		c.logger.Info("job assigned", "job_id", j.ID, "worker_id", w.ID, "chain_id", j.Chain.ID, "previous_state", prev)
		n++
	})
	return n
}
