package scheduler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/me/mcsched/pkg/model"
	"github.com/prometheus/client_golang/prometheus"
)

// TestConcurrentCallers drives the client operations from several
// goroutines while the loop runs passes, then checks that every job ended
// up in exactly one collection.
func TestConcurrentCallers(t *testing.T) {
	const (
		workers = 4
		rounds  = 50
	)

	c, clk := newTestCore(t)
	reg := prometheus.NewRegistry()
	if err := c.RegisterMetrics(reg); err != nil {
		t.Fatalf("RegisterMetrics: %v", err)
	}

	ws := make([]*model.Worker, workers)
	var chain model.ModelChain
	for i := range ws {
		w, err := c.RegisterNewWorker(fmt.Sprintf("10.0.0.%d", i+1), fmt.Sprintf("w%d", i))
		if err != nil {
			t.Fatalf("register worker %d: %v", i, err)
		}
		if chain, err = c.RegisterChain(w.ID, "A", "1"); err != nil {
			t.Fatalf("register chain on worker %d: %v", i, err)
		}
		ws[i] = w
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)

	stepping := make(chan struct{})
	var stepper sync.WaitGroup
	stepper.Add(1)
	go func() {
		defer stepper.Done()
		for {
			select {
			case <-stepping:
				return
			default:
				clk.Step(DefaultConfig().Interval)
				time.Sleep(time.Millisecond)
			}
		}
	}()

	var wg sync.WaitGroup
	for i, w := range ws {
		wg.Add(1)
		go func(i int, w *model.Worker) {
			defer wg.Done()
			for n := 0; n < rounds; n++ {
				if _, err := c.SubmitJob(int64(i*rounds+n), chain.ID); err != nil {
					t.Errorf("submit: %v", err)
					return
				}
				c.UpdateWorkerState(w.ID, model.WorkerStateIdle)
				job, err := c.JobForWorker(w.ID)
				if err != nil {
					t.Errorf("poll %s: %v", w.ID, err)
					return
				}
				if job != nil && job.State == model.JobStateWaitingScheduled {
					if err := c.UpdateJobState(job.ID, model.JobStateInProgress); err == nil {
						c.UpdateJobState(job.ID, model.JobStateCompletedOK)
					}
				}
				c.Stats()
				if _, err := reg.Gather(); err != nil {
					t.Errorf("gather: %v", err)
					return
				}
			}
		}(i, w)
	}
	wg.Wait()

	close(stepping)
	stepper.Wait()
	c.Stop()
	c.Wait()

	checkInvariants(t, c)

	queued, history := c.QueuedJobs(), c.HistoryJobs()
	if got := len(queued) + len(history); got != workers*rounds {
		t.Errorf("queue+history = %d jobs, want %d", got, workers*rounds)
	}
	for _, j := range history {
		if j.State != model.JobStateCompletedOK {
			t.Errorf("history job %s in state %s", j.ID, j.State)
		}
	}
	for _, j := range queued {
		if j.AssignedWorker != nil && j.State == model.JobStateInProgress {
			t.Errorf("job %s left IN_PROGRESS", j.ID)
		}
	}
}
