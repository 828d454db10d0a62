package scheduler

import (
	"fmt"
	"time"

	"github.com/elliotchance/orderedmap/v2"
	"github.com/me/mcsched/pkg/model"
)

// WorkerRegistry holds the known workers in registration order.
// It is not safe for concurrent use; Core serializes access.
type WorkerRegistry struct {
	workers *orderedmap.OrderedMap[string, *model.Worker]
	// IDs of unregistered workers; never handed out again.
	retired map[string]struct{}
}

// NewWorkerRegistry creates an empty registry.
func NewWorkerRegistry() *WorkerRegistry {
	return &WorkerRegistry{
		workers: orderedmap.NewOrderedMap[string, *model.Worker](),
		retired: make(map[string]struct{}),
	}
}

// Register adds w in state UNKNOWN, stamped with now. An ID that is in use
// or belonged to an unregistered worker is refused.
func (r *WorkerRegistry) Register(w *model.Worker, now time.Time) error {
	if _, ok := r.workers.Get(w.ID); ok {
		return model.NewDuplicateError("worker", w.ID)
	}
	if _, ok := r.retired[w.ID]; ok {
		return &model.SchedulerError{
			Kind:    model.KindDuplicateIdentity,
			Entity:  "worker",
			ID:      w.ID,
			Message: fmt.Sprintf("worker '%s' was unregistered and its id cannot be reused", w.ID),
		}
	}
	chains := w.Chains
	w.Chains = make([]model.ModelChain, 0, len(chains))
	for _, c := range chains {
		w.AddChain(c)
	}
	w.SetState(model.WorkerStateUnknown, now)
	r.workers.Set(w.ID, w)
	return nil
}

// Unregister marks the worker REMOVED and drops it. It reports whether
// the worker was known.
func (r *WorkerRegistry) Unregister(workerID string) bool {
	w, ok := r.workers.Get(workerID)
	if !ok {
		return false
	}
	w.State = model.WorkerStateRemoved
	r.workers.Delete(workerID)
	r.retired[workerID] = struct{}{}
	return true
}

// Get returns the live record, or nil.
func (r *WorkerRegistry) Get(workerID string) *model.Worker {
	w, _ := r.workers.Get(workerID)
	return w
}

// Len returns the number of registered workers.
func (r *WorkerRegistry) Len() int {
	return r.workers.Len()
}

// Each calls fn for every worker in registration order.
func (r *WorkerRegistry) Each(fn func(w *model.Worker)) {
	for el := r.workers.Front(); el != nil; el = el.Next() {
		fn(el.Value)
	}
}

// All returns copies of every worker in registration order.
func (r *WorkerRegistry) All() []*model.Worker {
	out := make([]*model.Worker, 0, r.workers.Len())
	r.Each(func(w *model.Worker) {
		out = append(out, w.Clone())
	})
	return out
}

// RegisterChain adds the chain name/version to the worker's capabilities.
// An existing descriptor with the same name and version (ignoring case) is
// reused so that every worker advertising it shares one chain ID. It returns
// nil if any argument is empty or the worker is unknown.
func (r *WorkerRegistry) RegisterChain(workerID, name, version string) *model.ModelChain {
	if workerID == "" || name == "" || version == "" {
		return nil
	}
	w := r.Get(workerID)
	if w == nil {
		return nil
	}
	for _, known := range r.KnownChains() {
		if known.Matches(name, version) {
			w.AddChain(known)
			return &known
		}
	}
	chain := model.NewModelChain(name, version)
	w.AddChain(*chain)
	return chain
}

// UnregisterChain removes a chain from the worker and returns it, or nil.
func (r *WorkerRegistry) UnregisterChain(workerID, chainID string) *model.ModelChain {
	if workerID == "" || chainID == "" {
		return nil
	}
	w := r.Get(workerID)
	if w == nil {
		return nil
	}
	return w.RemoveChain(chainID)
}

// KnownChains returns every chain advertised by at least one worker,
// deduplicated by ID, in first-seen order.
func (r *WorkerRegistry) KnownChains() []model.ModelChain {
	seen := make(map[string]bool)
	var out []model.ModelChain
	r.Each(func(w *model.Worker) {
		for _, c := range w.Chains {
			if !seen[c.ID] {
				seen[c.ID] = true
				out = append(out, c)
			}
		}
	})
	return out
}

// Chain looks up an advertised chain by ID.
func (r *WorkerRegistry) Chain(chainID string) (model.ModelChain, bool) {
	for _, c := range r.KnownChains() {
		if c.ID == chainID {
			return c, true
		}
	}
	return model.ModelChain{}, false
}

// Clear drops every worker. Retired IDs stay retired.
func (r *WorkerRegistry) Clear() {
	r.workers = orderedmap.NewOrderedMap[string, *model.Worker]()
}

// RegisterNew creates a worker for address and name and registers it.
func (r *WorkerRegistry) RegisterNew(address, name string, now time.Time) (*model.Worker, error) {
	w := model.NewWorker(address, name)
	if err := r.Register(w, now); err != nil {
		return nil, err
	}
	return w, nil
}
