package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"k8s.io/utils/clock"

	"github.com/me/mcsched/internal/config"
	"github.com/me/mcsched/pkg/model"
)

// Agent registers with the scheduler, advertises its chains, heartbeats
// its state, and runs the jobs the scheduler assigns to it one at a time.
type Agent struct {
	client    *Client
	runner    Runner
	address   string
	name      string
	chains    []config.ChainCommand
	workDir   string
	poll      time.Duration
	heartbeat time.Duration
	clock     clock.WithTicker
	logger    *slog.Logger

	busy atomic.Bool
	// regMu serialises re-registration between the heartbeat and poll loops.
	regMu sync.Mutex
}

// Option configures an Agent.
type Option func(*Agent)

// WithClock replaces the wall clock used for the heartbeat and poll tickers.
func WithClock(clk clock.WithTicker) Option {
	return func(a *Agent) { a.clock = clk }
}

// WithHTTPClient replaces the HTTP client used to reach the server.
func WithHTTPClient(hc *http.Client) Option {
	return func(a *Agent) { a.client = NewClient(a.client.baseURL, hc) }
}

// New creates an Agent from configuration.
func New(cfg config.WorkerConfig, runner Runner, logger *slog.Logger, opts ...Option) *Agent {
	a := &Agent{
		client:    NewClient(cfg.ServerURL, nil),
		runner:    runner,
		address:   cfg.Address,
		name:      cfg.Name,
		chains:    cfg.Chains,
		workDir:   cfg.WorkDir,
		poll:      cfg.PollInterval,
		heartbeat: cfg.HeartbeatInterval,
		clock:     clock.RealClock{},
		logger:    logger.With("component", "worker"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// WorkerID returns the ID the server assigned, or "" before registration.
func (a *Agent) WorkerID() string {
	return a.client.WorkerID()
}

// Busy reports whether a job is currently running.
func (a *Agent) Busy() bool {
	return a.busy.Load()
}

func (a *Agent) state() model.WorkerState {
	if a.busy.Load() {
		return model.WorkerStateBusy
	}
	return model.WorkerStateIdle
}

// Run registers with the server, then polls for jobs until ctx is
// cancelled. Heartbeats run in a separate goroutine so they continue while
// a job executes. The worker deregisters on the way out.
func (a *Agent) Run(ctx context.Context) error {
	if a.workDir != "" {
		if err := os.MkdirAll(a.workDir, 0o755); err != nil {
			return fmt.Errorf("create workdir %s: %w", a.workDir, err)
		}
	}

	if err := a.register(ctx); err != nil {
		return err
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.heartbeatLoop(ctx)
	}()

	err := a.pollLoop(ctx)
	wg.Wait()
	return err
}

// register registers the worker and its chains and reports IDLE.
func (a *Agent) register(ctx context.Context) error {
	a.regMu.Lock()
	defer a.regMu.Unlock()

	worker, err := a.client.Register(ctx, a.address, a.name)
	if isConflict(err) && a.client.WorkerID() != "" {
		a.logger.Warn("worker id refused, registering under a new id", "worker_id", a.client.WorkerID())
		a.client.resetWorkerID()
		worker, err = a.client.Register(ctx, a.address, a.name)
	}
	if err != nil {
		return err
	}
	for _, cc := range a.chains {
		chain, err := a.client.RegisterChain(ctx, cc.Name, cc.Version)
		if err != nil {
			return err
		}
		a.logger.Debug("chain advertised", "chain_id", chain.ID, "chain", chain.Name, "version", chain.Version)
	}
	if err := a.client.Heartbeat(ctx, a.state()); err != nil {
		return err
	}

	a.logger.Info("registered with server",
		"worker_id", worker.ID,
		"address", worker.Address,
		"chains", len(a.chains),
	)
	return nil
}

// heartbeatLoop sends heartbeats at regular intervals until ctx is cancelled.
func (a *Agent) heartbeatLoop(ctx context.Context) {
	ticker := a.clock.NewTicker(a.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if err := a.Heartbeat(ctx); err != nil && ctx.Err() == nil {
				a.logger.Warn("heartbeat failed", "error", err)
			}
		}
	}
}

// Heartbeat reports the current state. A server that no longer knows the
// worker, for instance after a restart, triggers a fresh registration.
func (a *Agent) Heartbeat(ctx context.Context) error {
	err := a.client.Heartbeat(ctx, a.state())
	if isNotFound(err) {
		a.logger.Warn("server lost registration, registering again", "worker_id", a.WorkerID())
		return a.register(ctx)
	}
	return err
}

// pollLoop polls for work until ctx is cancelled, then deregisters.
func (a *Agent) pollLoop(ctx context.Context) error {
	ticker := a.clock.NewTicker(a.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("shutting down, deregistering")
			deregCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := a.client.Deregister(deregCtx)
			cancel()
			if err != nil {
				a.logger.Error("deregister failed", "error", err)
			}
			return nil

		case <-ticker.C():
			if _, err := a.PollOnce(ctx); err != nil && ctx.Err() == nil {
				a.logger.Error("poll error", "error", err)
			}
		}
	}
}

// PollOnce checks for an assigned job and, if there is one, runs it to
// completion. It reports whether a job was handled.
func (a *Agent) PollOnce(ctx context.Context) (bool, error) {
	job, err := a.client.PollJob(ctx)
	if err != nil {
		if isNotFound(err) {
			return false, a.register(ctx)
		}
		return false, err
	}
	if job == nil {
		return false, nil
	}

	switch job.State {
	case model.JobStateWaitingScheduled:
	case model.JobStateInProgress:
		// Left over from before a restart of this process; nothing runs it.
		a.logger.Warn("abandoning stale job", "job_id", job.ID)
		return true, a.client.ReportJobState(ctx, job.ID, model.JobStateAborted)
	default:
		return false, nil
	}

	a.logger.Info("job received", "job_id", job.ID, "chain", job.Chain.Name, "experiment_id", job.ExperimentID)
	return true, a.execute(ctx, job)
}

// execute runs one job and reports its outcome.
func (a *Agent) execute(ctx context.Context, job *model.Job) error {
	a.busy.Store(true)
	defer func() {
		a.busy.Store(false)
		if ctx.Err() == nil {
			if err := a.client.Heartbeat(ctx, a.state()); err != nil {
				a.logger.Warn("heartbeat failed", "error", err)
			}
		}
	}()

	if err := a.client.Heartbeat(ctx, model.WorkerStateBusy); err != nil {
		a.logger.Warn("heartbeat failed", "error", err)
	}
	if err := a.client.ReportJobState(ctx, job.ID, model.JobStateInProgress); err != nil {
		return err
	}

	state, runErr := a.runner.Run(ctx, job)
	if runErr != nil {
		a.logger.Error("job execution failed", "job_id", job.ID, "error", runErr)
		if state == "" {
			state = model.JobStateCompletedWithErrors
		}
	}

	// The final report must go out even when shutdown cancelled ctx.
	reportCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := a.client.ReportJobState(reportCtx, job.ID, state); err != nil {
		return err
	}
	a.logger.Info("job reported", "job_id", job.ID, "state", state)
	return nil
}

func isNotFound(err error) bool {
	var apiErr *model.APIError
	return errors.As(err, &apiErr) && apiErr.Code == model.ErrNotFound
}

func isConflict(err error) bool {
	var apiErr *model.APIError
	return errors.As(err, &apiErr) && apiErr.Code == model.ErrConflict
}
