package model

import (
	"time"

	"github.com/google/uuid"
)

// Worker is a remote compute node that advertises the model chains it can run.
type Worker struct {
	ID            string       `json:"id"`
	Address       string       `json:"address"`
	Name          string       `json:"name"`
	State         WorkerState  `json:"state"`
	LastHeartbeat time.Time    `json:"last_heartbeat"`
	Chains        []ModelChain `json:"chains"`
}

// NewWorker creates a worker in state UNKNOWN with a fresh ID.
func NewWorker(address, name string) *Worker {
	return &Worker{
		ID:      "wrk_" + uuid.New().String(),
		Address: address,
		Name:    name,
		State:   WorkerStateUnknown,
		Chains:  []ModelChain{},
	}
}

// SetState changes the state and records now as the last heartbeat.
func (w *Worker) SetState(state WorkerState, now time.Time) {
	w.State = state
	w.LastHeartbeat = now
}

// Equal compares both ID and address.
func (w *Worker) Equal(other *Worker) bool {
	if w == nil || other == nil {
		return w == other
	}
	return w.ID == other.ID && w.Address == other.Address
}

// HasChain reports whether the worker can run the chain with the given ID.
func (w *Worker) HasChain(chainID string) bool {
	for _, c := range w.Chains {
		if c.ID == chainID {
			return true
		}
	}
	return false
}

// AddChain adds c unless a chain with the same ID is already present.
func (w *Worker) AddChain(c ModelChain) bool {
	if w.HasChain(c.ID) {
		return false
	}
	w.Chains = append(w.Chains, c)
	return true
}

// RemoveChain drops the chain with the given ID and returns it, or nil.
func (w *Worker) RemoveChain(chainID string) *ModelChain {
	for i, c := range w.Chains {
		if c.ID == chainID {
			w.Chains = append(w.Chains[:i], w.Chains[i+1:]...)
			return &c
		}
	}
	return nil
}

// Ref returns the reference stored on jobs assigned to this worker.
func (w *Worker) Ref() *WorkerRef {
	return &WorkerRef{ID: w.ID, Address: w.Address, Name: w.Name}
}

// Clone returns a deep copy.
func (w *Worker) Clone() *Worker {
	if w == nil {
		return nil
	}
	c := *w
	c.Chains = append([]ModelChain(nil), w.Chains...)
	return &c
}

// WorkerRef identifies the worker a job is assigned to.
type WorkerRef struct {
	ID      string `json:"id"`
	Address string `json:"address"`
	Name    string `json:"name"`
}
