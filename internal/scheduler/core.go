// Package scheduler matches queued model-chain jobs to capable workers.
//
// A Core owns the worker registry, the job queue and the job history. All
// mutations run under one lock; read accessors return copies so callers
// never hold pointers into the live collections.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/me/mcsched/internal/snapshot"
	"github.com/me/mcsched/pkg/model"
	"k8s.io/utils/clock"
)

// Config holds scheduler configuration.
type Config struct {
	Interval      time.Duration // Time between matching passes
	WorkerTimeout time.Duration // Heartbeat age after which a worker becomes UNKNOWN
	Autosave      bool          // Save a snapshot after passes that follow a change
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:      10 * time.Second,
		WorkerTimeout: 30 * time.Second,
	}
}

// Option customizes a Core.
type Option func(*Core)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clk clock.WithTicker) Option {
	return func(c *Core) { c.clock = clk }
}

// WithSnapshotStore enables Save, Load and autosave.
func WithSnapshotStore(st snapshot.Store) Option {
	return func(c *Core) { c.store = st }
}

// Core is the scheduler: registry, queue, history, and the loop that
// matches them.
type Core struct {
	mu       sync.RWMutex
	registry *WorkerRegistry
	queue    *JobQueue
	history  *JobHistory

	config  Config
	clock   clock.WithTicker
	store   snapshot.Store
	metrics *Metrics
	logger  *slog.Logger

	loopMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	dirty    atomic.Bool
	passes   atomic.Uint64
	lastPass atomic.Int64
}

// NewCore creates a scheduler with empty collections.
func NewCore(cfg Config, logger *slog.Logger, opts ...Option) *Core {
	c := &Core{
		registry: NewWorkerRegistry(),
		queue:    NewJobQueue(),
		history:  NewJobHistory(),
		config:   cfg,
		clock:    clock.RealClock{},
		metrics:  NewMetrics(),
		logger:   logger.With("component", "scheduler"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// reject logs err and counts it by kind before it is handed back to the caller.
func (c *Core) reject(op string, err error) error {
	kind := errorKind(err)
	c.logger.Error("operation rejected", "op", op, "kind", kind, "error", err)
	c.metrics.rejected(kind)
	return err
}

func errorKind(err error) model.ErrorKind {
	var se *model.SchedulerError
	if errors.As(err, &se) {
		return se.Kind
	}
	var te *model.InvalidTransitionError
	if errors.As(err, &te) {
		return model.KindIllegalStateTransition
	}
	return "INTERNAL"
}

func invalidArgument(entity, msg string) error {
	return &model.SchedulerError{Kind: model.KindInvalidArgument, Entity: entity, Message: msg}
}

func notPermitted(msg string) error {
	return &model.SchedulerError{Kind: model.KindOperationNotPermitted, Message: msg}
}

// --- Workers ---

// RegisterWorker adds w to the registry in state UNKNOWN.
func (c *Core) RegisterWorker(w *model.Worker) error {
	if w == nil || w.ID == "" {
		return c.reject("register_worker", invalidArgument("worker", "worker id is required"))
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.registry.Register(w.Clone(), c.clock.Now()); err != nil {
		return c.reject("register_worker", err)
	}
	c.logger.Info("worker registered", "worker_id", w.ID, "address", w.Address, "name", w.Name)
	return nil
}

// RegisterNewWorker creates and registers a worker, returning a copy of it.
func (c *Core) RegisterNewWorker(address, name string) (*model.Worker, error) {
	if address == "" {
		return nil, c.reject("register_worker", invalidArgument("worker", "address is required"))
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	w, err := c.registry.RegisterNew(address, name, c.clock.Now())
	if err != nil {
		return nil, c.reject("register_worker", err)
	}
	c.logger.Info("worker registered", "worker_id", w.ID, "address", address, "name", name)
	return w.Clone(), nil
}

// UnregisterWorker removes the worker. Jobs assigned to it are returned to
// the queue by the next pass.
func (c *Core) UnregisterWorker(workerID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.registry.Unregister(workerID) {
		return c.reject("unregister_worker", model.NewUnknownError("worker", workerID))
	}
	c.logger.Info("worker unregistered", "worker_id", workerID)
	return nil
}

// Worker returns a copy of the worker, or nil.
func (c *Core) Worker(workerID string) *model.Worker {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if w := c.registry.Get(workerID); w != nil {
		return w.Clone()
	}
	return nil
}

// Workers returns copies of all workers in registration order.
func (c *Core) Workers() []*model.Worker {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.registry.All()
}

// UpdateWorkerState records a client-reported worker state and refreshes
// the worker's heartbeat.
func (c *Core) UpdateWorkerState(workerID string, state model.WorkerState) error {
	if !state.IsClientSettable() {
		return c.reject("update_worker_state", &model.InvalidTransitionError{
			Entity: "worker", ID: workerID, To: string(state),
			Reason: "state cannot be set by a client",
		})
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	w := c.registry.Get(workerID)
	if w == nil {
		return c.reject("update_worker_state", model.NewUnknownError("worker", workerID))
	}
	if w.State != state {
		c.logger.Debug("worker state changed", "worker_id", workerID, "from", w.State, "to", state)
	}
	w.SetState(state, c.clock.Now())
	return nil
}

// --- Chains ---

// RegisterChain adds a model chain to the worker's capabilities and returns
// the shared descriptor.
func (c *Core) RegisterChain(workerID, name, version string) (model.ModelChain, error) {
	if name == "" || version == "" {
		return model.ModelChain{}, c.reject("register_chain", invalidArgument("chain", "name and version are required"))
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	chain := c.registry.RegisterChain(workerID, name, version)
	if chain == nil {
		return model.ModelChain{}, c.reject("register_chain", model.NewUnknownError("worker", workerID))
	}
	c.logger.Info("chain registered", "worker_id", workerID, "chain_id", chain.ID, "chain", chain.Name, "version", chain.Version)
	return *chain, nil
}

// UnregisterChain removes a chain from the worker's capabilities.
func (c *Core) UnregisterChain(workerID, chainID string) (model.ModelChain, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.registry.Get(workerID) == nil {
		return model.ModelChain{}, c.reject("unregister_chain", model.NewUnknownError("worker", workerID))
	}
	chain := c.registry.UnregisterChain(workerID, chainID)
	if chain == nil {
		return model.ModelChain{}, c.reject("unregister_chain", model.NewUnknownError("chain", chainID))
	}
	c.logger.Info("chain unregistered", "worker_id", workerID, "chain_id", chainID)
	return *chain, nil
}

// KnownChains returns every chain at least one worker advertises.
func (c *Core) KnownChains() []model.ModelChain {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.registry.KnownChains()
}

// Chain looks up an advertised chain by ID.
func (c *Core) Chain(chainID string) (model.ModelChain, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.registry.Chain(chainID)
}

// --- Jobs ---

// AddJob queues a copy of job in state WAITING_UNSCHEDULED.
func (c *Core) AddJob(job *model.Job) (*model.Job, error) {
	if job == nil || job.ID == "" {
		return nil, c.reject("add_job", invalidArgument("job", "job id is required"))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addJobLocked(job.Clone())
}

func (c *Core) addJobLocked(job *model.Job) (*model.Job, error) {
	if c.history.Get(job.ID) != nil || !c.queue.Add(job) {
		return nil, c.reject("add_job", model.NewDuplicateError("job", job.ID))
	}
	c.dirty.Store(true)
	c.logger.Info("job queued", "job_id", job.ID, "experiment_id", job.ExperimentID, "chain_id", job.Chain.ID)
	return job.Clone(), nil
}

// SubmitJob queues a new job for experimentID on the chain with chainID.
// The chain must be advertised by at least one registered worker.
func (c *Core) SubmitJob(experimentID int64, chainID string) (*model.Job, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	chain, ok := c.registry.Chain(chainID)
	if !ok {
		return nil, c.reject("submit_job", &model.SchedulerError{
			Kind:    model.KindUnsatisfiableRequirement,
			Entity:  "chain",
			ID:      chainID,
			Message: fmt.Sprintf("no registered worker provides model chain '%s'", chainID),
		})
	}
	job := model.NewJob(chain, experimentID)
	job.CreatedAt = c.clock.Now().UTC()
	return c.addJobLocked(job)
}

// Job returns a copy of the job from the queue or, failing that, the history.
func (c *Core) Job(jobID string) *model.Job {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if j := c.queue.Get(jobID); j != nil {
		return j.Clone()
	}
	if j := c.history.Get(jobID); j != nil {
		return j.Clone()
	}
	return nil
}

// QueuedJobs returns copies of the queued jobs in insertion order.
func (c *Core) QueuedJobs() []*model.Job {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.queue.All()
}

// HistoryJobs returns copies of the completed jobs in completion order.
func (c *Core) HistoryJobs() []*model.Job {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.history.All()
}

// JobForWorker returns the job currently assigned to the worker, or nil.
// It never blocks; workers are expected to poll.
func (c *Core) JobForWorker(workerID string) (*model.Job, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.registry.Get(workerID) == nil {
		return nil, c.reject("poll_job", model.NewUnknownError("worker", workerID))
	}
	if j := c.queue.FirstJobForWorker(workerID); j != nil {
		return j.Clone(), nil
	}
	return nil, nil
}

// UpdateJobState applies a client-reported job state. IN_PROGRESS and
// ABORTED update the job in place; a COMPLETED_* state requires the job to
// be IN_PROGRESS and moves it to the history.
func (c *Core) UpdateJobState(jobID string, state model.JobState) error {
	if !state.IsClientSettable() {
		return c.reject("update_job_state", &model.InvalidTransitionError{
			Entity: "job", ID: jobID, To: string(state),
			Reason: "state cannot be set by a client",
		})
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	job := c.queue.Get(jobID)
	if job == nil {
		if done := c.history.Get(jobID); done != nil {
			return c.reject("update_job_state", &model.InvalidTransitionError{
				Entity: "job", ID: jobID, From: string(done.State), To: string(state),
				Reason: "job already completed",
			})
		}
		return c.reject("update_job_state", model.NewUnknownError("job", jobID))
	}

	from := job.State
	if state.IsTerminal() {
		if from != model.JobStateInProgress {
			return c.reject("update_job_state", &model.InvalidTransitionError{
				Entity: "job", ID: jobID, From: string(from), To: string(state),
				Reason: "job is not in progress",
			})
		}
		job.SetState(state)
		c.queue.Remove(jobID)
		c.history.Add(job)
		c.metrics.completed(state)
		c.dirty.Store(true)
		c.logger.Info("job completed", "job_id", jobID, "state", state)
		return nil
	}

	job.SetState(state)
	c.dirty.Store(true)
	c.logger.Info("job state changed", "job_id", jobID, "from", from, "to", state)
	return nil
}

// RemoveJob withdraws a queued job. Completed jobs cannot be removed.
func (c *Core) RemoveJob(jobID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	job := c.queue.Get(jobID)
	if job == nil {
		if c.history.Get(jobID) != nil {
			return c.reject("remove_job", notPermitted(fmt.Sprintf("job '%s' is already completed", jobID)))
		}
		return c.reject("remove_job", model.NewUnknownError("job", jobID))
	}
	job.SetState(model.JobStateRemoved)
	c.queue.Remove(jobID)
	c.dirty.Store(true)
	c.logger.Info("job removed", "job_id", jobID)
	return nil
}

// Clear empties the queue, the history and the registry. It is refused
// while the loop runs.
func (c *Core) Clear() error {
	c.loopMu.Lock()
	defer c.loopMu.Unlock()
	if c.cancel != nil {
		return c.reject("clear", notPermitted("scheduler loop is running"))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue.Clear()
	c.history.Clear()
	c.registry.Clear()
	c.dirty.Store(true)
	c.logger.Info("scheduler cleared")
	return nil
}

// Stats is a point-in-time summary of the scheduler.
type Stats struct {
	Queued         int
	QueuedByState  map[model.JobState]int
	History        int
	Workers        int
	WorkersByState map[model.WorkerState]int
	Chains         int
	Running        bool
	Passes         uint64
	LastPass       time.Time
	Snapshots      string
}

// Stats summarizes the current collections.
func (c *Core) Stats() Stats {
	st := Stats{
		QueuedByState:  make(map[model.JobState]int),
		WorkersByState: make(map[model.WorkerState]int),
		Running:        c.Running(),
		Passes:         c.passes.Load(),
	}
	if ns := c.lastPass.Load(); ns != 0 {
		st.LastPass = time.Unix(0, ns).UTC()
	}
	if c.store != nil {
		st.Snapshots = c.store.Name()
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	st.Queued = c.queue.Len()
	c.queue.Each(func(j *model.Job) { st.QueuedByState[j.State]++ })
	st.History = c.history.Len()
	st.Workers = c.registry.Len()
	c.registry.Each(func(w *model.Worker) { st.WorkersByState[w.State]++ })
	st.Chains = len(c.registry.KnownChains())
	return st
}
