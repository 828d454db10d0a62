package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/me/mcsched/internal/snapshot"
	"github.com/me/mcsched/pkg/model"
)

// Save writes the queue and the history to the snapshot store.
func (c *Core) Save(ctx context.Context) error {
	if c.store == nil {
		return c.reject("save", notPermitted("no snapshot store configured"))
	}

	c.mu.RLock()
	c.dirty.Store(false)
	doc := c.document()
	c.mu.RUnlock()

	err := c.store.Save(ctx, doc)
	c.metrics.snapshotSaved(err)
	if err != nil {
		c.dirty.Store(true)
		return fmt.Errorf("save snapshot to %s: %w", c.store.Name(), err)
	}
	c.logger.Info("snapshot saved", "store", c.store.Name(),
		"queued", doc.Count(snapshot.LocationQueue), "history", doc.Count(snapshot.LocationHistory))
	return nil
}

// Load replaces the empty queue and history with the stored snapshot.
// Jobs that were assigned or running when saved come back ABORTED so they
// are rescheduled first. Load is refused while the loop runs or when the
// scheduler already holds jobs.
func (c *Core) Load(ctx context.Context) error {
	if c.store == nil {
		return c.reject("load", notPermitted("no snapshot store configured"))
	}
	if c.Running() {
		return c.reject("load", notPermitted("scheduler loop is running"))
	}

	doc, err := c.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot from %s: %w", c.store.Name(), err)
	}
	queued, done, err := jobsFromDocument(doc)
	if err != nil {
		return fmt.Errorf("load snapshot from %s: %w", c.store.Name(), err)
	}

	c.loopMu.Lock()
	defer c.loopMu.Unlock()
	if c.cancel != nil {
		return c.reject("load", notPermitted("scheduler loop is running"))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.queue.Len() > 0 || c.history.Len() > 0 {
		return c.reject("load", notPermitted("scheduler already holds jobs"))
	}
	for _, j := range queued {
		c.queue.restore(j)
	}
	for _, j := range done {
		c.history.Add(j)
	}
	c.dirty.Store(false)
	c.logger.Info("snapshot loaded", "store", c.store.Name(),
		"queued", c.queue.Len(), "history", c.history.Len(), "saved_at", doc.SavedAt)
	return nil
}

// Restore loads the stored snapshot if there is one. It reports whether a
// snapshot was applied.
func (c *Core) Restore(ctx context.Context) (bool, error) {
	if c.store == nil {
		return false, nil
	}
	err := c.Load(ctx)
	if errors.Is(err, snapshot.ErrNoSnapshot) {
		c.logger.Info("no snapshot to restore", "store", c.store.Name())
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// document must be called with c.mu held.
func (c *Core) document() *snapshot.Document {
	doc := &snapshot.Document{
		Version: snapshot.Version,
		SavedAt: c.clock.Now().UTC(),
	}
	c.queue.Each(func(j *model.Job) {
		doc.Jobs = append(doc.Jobs, jobToSnapshot(j, snapshot.LocationQueue))
	})
	c.history.Each(func(j *model.Job) {
		doc.Jobs = append(doc.Jobs, jobToSnapshot(j, snapshot.LocationHistory))
	})
	return doc
}

func jobToSnapshot(j *model.Job, location string) snapshot.Job {
	sj := snapshot.Job{
		ID:           j.ID,
		Location:     location,
		State:        string(j.State),
		LogURL:       j.LogURL,
		ExperimentID: j.ExperimentID,
		CreatedAt:    j.CreatedAt,
		Chain: snapshot.Chain{
			ID:      j.Chain.ID,
			Name:    j.Chain.Name,
			Version: j.Chain.Version,
		},
	}
	if w := j.AssignedWorker; w != nil {
		sj.Worker = &snapshot.Worker{ID: w.ID, Address: w.Address, Name: w.Name}
	}
	return sj
}

// jobsFromDocument converts and validates every job before anything is
// applied, so a bad snapshot leaves the scheduler untouched.
func jobsFromDocument(doc *snapshot.Document) (queued, done []*model.Job, err error) {
	seen := make(map[string]bool, len(doc.Jobs))
	for _, sj := range doc.Jobs {
		if seen[sj.ID] {
			return nil, nil, fmt.Errorf("job %s appears more than once", sj.ID)
		}
		seen[sj.ID] = true
		state := model.JobState(sj.State)
		if !state.IsValid() {
			return nil, nil, fmt.Errorf("job %s: unknown state %q", sj.ID, sj.State)
		}
		j := &model.Job{
			ID:           sj.ID,
			State:        state,
			ExperimentID: sj.ExperimentID,
			LogURL:       sj.LogURL,
			CreatedAt:    sj.CreatedAt,
			Chain: model.ModelChain{
				ID:      sj.Chain.ID,
				Name:    sj.Chain.Name,
				Version: sj.Chain.Version,
			},
		}

		if sj.Location == snapshot.LocationHistory {
			if !state.IsTerminal() {
				return nil, nil, fmt.Errorf("job %s: history holds non-terminal state %s", sj.ID, state)
			}
			done = append(done, j)
			continue
		}

		switch state {
		case model.JobStateInProgress, model.JobStateWaitingScheduled:
			// The worker has to register again after a restart.
			j.SetState(model.JobStateAborted)
		case model.JobStateNew:
			j.SetState(model.JobStateWaitingUnscheduled)
		case model.JobStateAborted, model.JobStateWaitingUnscheduled:
		default:
			return nil, nil, fmt.Errorf("job %s: queue holds state %s", sj.ID, state)
		}
		queued = append(queued, j)
	}
	return queued, done, nil
}
