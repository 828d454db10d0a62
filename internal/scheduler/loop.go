package scheduler

import (
	"context"
)

// Start launches the matching loop in the background and returns at once.
// The loop runs a pass immediately and then once per interval until ctx is
// cancelled or Stop is called. Calling Start while the loop runs is a no-op.
// Starting right after Stop runs the new loop once the old one has exited.
func (c *Core) Start(ctx context.Context) {
	c.loopMu.Lock()
	defer c.loopMu.Unlock()

	if c.cancel != nil {
		c.logger.Debug("scheduler already running")
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	prev := c.done
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done

	c.logger.Info("scheduler started", "interval", c.config.Interval, "worker_timeout", c.config.WorkerTimeout)
	go c.run(ctx, cancel, prev, done)
}

// Stop requests the loop to exit and returns without waiting. A pass in
// progress finishes first; use Wait to block until the loop is gone.
func (c *Core) Stop() {
	c.loopMu.Lock()
	defer c.loopMu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// Wait blocks until the most recently started loop has exited. It returns
// at once if no loop goroutine is alive.
func (c *Core) Wait() {
	c.loopMu.Lock()
	done := c.done
	c.loopMu.Unlock()
	if done != nil {
		<-done
	}
}

// Running reports whether the loop has been started and not stopped.
func (c *Core) Running() bool {
	c.loopMu.Lock()
	defer c.loopMu.Unlock()
	return c.cancel != nil
}

// run drives one loop. prev is the done channel of a stopped loop that may
// still be finishing its last pass; run waits for it before the first pass.
func (c *Core) run(ctx context.Context, cancel context.CancelFunc, prev <-chan struct{}, done chan struct{}) {
	defer func() {
		cancel()
		c.loopMu.Lock()
		if c.done == done {
			c.cancel = nil
			c.done = nil
		}
		c.loopMu.Unlock()
		close(done)
	}()

	// prev is already cancelled; done must close after every earlier loop.
	if prev != nil {
		<-prev
	}
	if ctx.Err() != nil {
		return
	}

	ticker := c.clock.NewTicker(c.config.Interval)
	defer ticker.Stop()

	c.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("scheduler stopped")
			return
		case <-ticker.C():
			if ctx.Err() != nil {
				continue
			}
			c.Tick(ctx)
		}
	}
}

// Tick runs one matching pass and, when autosave is on and something
// changed since the last save, writes a snapshot. Snapshot failures are
// logged and retried on the next tick.
func (c *Core) Tick(ctx context.Context) PassResult {
	res := c.ScheduleJobs()
	if c.config.Autosave && c.store != nil && c.dirty.Load() {
		if err := c.Save(ctx); err != nil {
			c.logger.Error("autosave failed", "store", c.store.Name(), "error", err)
		}
	}
	return res
}
