package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/me/mcsched/internal/config"
	"github.com/me/mcsched/internal/scheduler"
	"github.com/me/mcsched/internal/snapshot"
	"github.com/me/mcsched/pkg/model"
)

func testServer(t *testing.T, opts ...scheduler.Option) (*Server, *scheduler.Core) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	core := scheduler.NewCore(scheduler.DefaultConfig(), logger, opts...)
	t.Cleanup(func() {
		core.Stop()
		core.Wait()
	})
	return New(config.DefaultServerConfig(), core, logger), core
}

// envelope is used to decode the standard response envelope.
type envelope struct {
	Status    string          `json:"status"`
	RequestID string          `json:"request_id"`
	Timestamp string          `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
	Error     *model.APIError `json:"error"`
}

func do(t *testing.T, srv *Server, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	var env envelope
	if w.Code != http.StatusNoContent && strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("%s %s: invalid JSON: %v", method, path, err)
		}
	}
	return w, env
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status=%d, want %d, body=%s", w.Code, want, w.Body.String())
	}
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(env.Data, &v); err != nil {
		t.Fatalf("decode data: %v (%s)", err, env.Data)
	}
	return v
}

// registerWorker registers a worker with one chain and returns their IDs.
func registerWorker(t *testing.T, srv *Server, address, chain string) (string, string) {
	t.Helper()
	w, env := do(t, srv, "POST", "/api/v1/workers/", `{"address":"`+address+`","name":"node"}`)
	expectStatus(t, w, http.StatusCreated)
	worker := decodeData[model.Worker](t, env)
	if !strings.HasPrefix(worker.ID, "wrk_") {
		t.Fatalf("worker id = %q, want wrk_ prefix", worker.ID)
	}

	w, env = do(t, srv, "POST", "/api/v1/workers/"+worker.ID+"/chains", `{"name":"`+chain+`","version":"1.0"}`)
	expectStatus(t, w, http.StatusCreated)
	mc := decodeData[model.ModelChain](t, env)
	if !strings.HasPrefix(mc.ID, "mc_") {
		t.Fatalf("chain id = %q, want mc_ prefix", mc.ID)
	}
	return worker.ID, mc.ID
}

func TestDiscovery(t *testing.T) {
	srv, _ := testServer(t)
	w, env := do(t, srv, "GET", "/api/v1/", "")
	expectStatus(t, w, http.StatusOK)
	if env.Status != "ok" || env.RequestID == "" {
		t.Errorf("envelope = %+v", env)
	}
	if w.Header().Get("X-Request-ID") != env.RequestID {
		t.Errorf("X-Request-ID header = %q, body = %q", w.Header().Get("X-Request-ID"), env.RequestID)
	}
	data := decodeData[discoveryResponse](t, env)
	if len(data.Endpoints) == 0 {
		t.Error("no endpoints listed")
	}
}

func TestHealth(t *testing.T) {
	srv, _ := testServer(t)
	w, env := do(t, srv, "GET", "/api/v1/health", "")
	expectStatus(t, w, http.StatusOK)
	h := decodeData[healthResponse](t, env)
	if h.Status != "healthy" || h.Scheduler != "stopped" || h.Snapshots != "disabled" {
		t.Errorf("health = %+v", h)
	}
}

func TestWorkerJobLifecycle(t *testing.T) {
	srv, core := testServer(t)
	workerID, chainID := registerWorker(t, srv, "10.0.0.1", "ECHAM")

	w, env := do(t, srv, "POST", "/api/v1/jobs/", `{"experiment_id":42,"chain_id":"`+chainID+`"}`)
	expectStatus(t, w, http.StatusCreated)
	job := decodeData[jobView](t, env)
	if job.State != model.JobStateWaitingUnscheduled || job.Location != "queue" || job.ExperimentID != 42 {
		t.Fatalf("submitted job = %+v", job)
	}

	w, _ = do(t, srv, "GET", "/api/v1/workers/"+workerID+"/job", "")
	expectStatus(t, w, http.StatusNoContent)

	w, _ = do(t, srv, "PUT", "/api/v1/workers/"+workerID+"/heartbeat", `{"state":"IDLE"}`)
	expectStatus(t, w, http.StatusOK)
	core.ScheduleJobs()

	w, env = do(t, srv, "GET", "/api/v1/workers/"+workerID+"/job", "")
	expectStatus(t, w, http.StatusOK)
	polled := decodeData[model.Job](t, env)
	if polled.ID != job.ID || polled.AssignedWorker == nil || polled.AssignedWorker.ID != workerID {
		t.Fatalf("polled job = %+v", polled)
	}

	w, _ = do(t, srv, "PUT", "/api/v1/jobs/"+job.ID+"/state", `{"state":"IN_PROGRESS"}`)
	expectStatus(t, w, http.StatusOK)
	w, env = do(t, srv, "PUT", "/api/v1/jobs/"+job.ID+"/state", `{"state":"COMPLETED_OK"}`)
	expectStatus(t, w, http.StatusOK)
	done := decodeData[jobView](t, env)
	if done.State != model.JobStateCompletedOK || done.Location != "history" {
		t.Errorf("completed job = %+v", done)
	}

	w, env = do(t, srv, "GET", "/api/v1/jobs/history", "")
	expectStatus(t, w, http.StatusOK)
	if hist := decodeData[[]jobView](t, env); len(hist) != 1 {
		t.Errorf("history = %+v", hist)
	}
	w, env = do(t, srv, "GET", "/api/v1/jobs/", "")
	expectStatus(t, w, http.StatusOK)
	if queued := decodeData[[]jobView](t, env); len(queued) != 0 {
		t.Errorf("queue = %+v", queued)
	}
}

func TestErrorMapping(t *testing.T) {
	srv, _ := testServer(t)
	workerID, chainID := registerWorker(t, srv, "10.0.0.1", "ECHAM")
	_, env := do(t, srv, "POST", "/api/v1/jobs/", `{"experiment_id":1,"chain_id":"`+chainID+`"}`)
	jobID := decodeData[jobView](t, env).ID

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   model.ErrorCode
	}{
		{"duplicate worker", "POST", "/api/v1/workers/", `{"id":"` + workerID + `","address":"x"}`, http.StatusConflict, model.ErrConflict},
		{"unknown worker heartbeat", "PUT", "/api/v1/workers/wrk_nope/heartbeat", `{"state":"IDLE"}`, http.StatusNotFound, model.ErrNotFound},
		{"internal worker state", "PUT", "/api/v1/workers/" + workerID + "/heartbeat", `{"state":"REMOVED"}`, http.StatusConflict, model.ErrConflict},
		{"internal job state", "PUT", "/api/v1/jobs/" + jobID + "/state", `{"state":"WAITING_SCHEDULED"}`, http.StatusConflict, model.ErrConflict},
		{"complete without progress", "PUT", "/api/v1/jobs/" + jobID + "/state", `{"state":"COMPLETED_OK"}`, http.StatusConflict, model.ErrConflict},
		{"unknown job", "PUT", "/api/v1/jobs/job_nope/state", `{"state":"ABORTED"}`, http.StatusNotFound, model.ErrNotFound},
		{"unsatisfiable chain", "POST", "/api/v1/jobs/", `{"experiment_id":1,"chain_id":"mc_nope"}`, http.StatusUnprocessableEntity, model.ErrUnsatisfiable},
		{"missing address", "POST", "/api/v1/workers/", `{"name":"x"}`, http.StatusBadRequest, model.ErrValidation},
		{"missing chain version", "POST", "/api/v1/workers/" + workerID + "/chains", `{"name":"A"}`, http.StatusBadRequest, model.ErrValidation},
		{"bad json", "POST", "/api/v1/jobs/", `{`, http.StatusBadRequest, model.ErrValidation},
		{"poll unknown worker", "GET", "/api/v1/workers/wrk_nope/job", "", http.StatusNotFound, model.ErrNotFound},
		{"get unknown job", "GET", "/api/v1/jobs/job_nope", "", http.StatusNotFound, model.ErrNotFound},
		{"save without store", "POST", "/api/v1/scheduler/save", "", http.StatusConflict, model.ErrConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := do(t, srv, tt.method, tt.path, tt.body)
			expectStatus(t, w, tt.status)
			if env.Status != "error" || env.Error == nil || env.Error.Code != tt.code {
				t.Errorf("envelope = %+v, want code %s", env, tt.code)
			}
		})
	}
}

func TestChains(t *testing.T) {
	srv, _ := testServer(t)
	w1, chainID := registerWorker(t, srv, "10.0.0.1", "ECHAM")
	_, again := registerWorker(t, srv, "10.0.0.2", "echam")
	if again != chainID {
		t.Errorf("same chain on second worker got id %s, want %s", again, chainID)
	}

	w, env := do(t, srv, "GET", "/api/v1/chains/", "")
	expectStatus(t, w, http.StatusOK)
	if chains := decodeData[[]model.ModelChain](t, env); len(chains) != 1 {
		t.Errorf("chains = %+v", chains)
	}
	w, _ = do(t, srv, "GET", "/api/v1/chains/"+chainID, "")
	expectStatus(t, w, http.StatusOK)

	w, _ = do(t, srv, "DELETE", "/api/v1/workers/"+w1+"/chains/"+chainID, "")
	expectStatus(t, w, http.StatusOK)
	w, _ = do(t, srv, "DELETE", "/api/v1/workers/"+w1+"/chains/"+chainID, "")
	expectStatus(t, w, http.StatusNotFound)
}

func TestUnregisterAndRemove(t *testing.T) {
	srv, _ := testServer(t)
	workerID, chainID := registerWorker(t, srv, "10.0.0.1", "ECHAM")
	_, env := do(t, srv, "POST", "/api/v1/jobs/", `{"experiment_id":1,"chain_id":"`+chainID+`"}`)
	jobID := decodeData[jobView](t, env).ID

	w, _ := do(t, srv, "DELETE", "/api/v1/jobs/"+jobID, "")
	expectStatus(t, w, http.StatusOK)
	w, _ = do(t, srv, "GET", "/api/v1/jobs/"+jobID, "")
	expectStatus(t, w, http.StatusNotFound)

	w, _ = do(t, srv, "DELETE", "/api/v1/workers/"+workerID, "")
	expectStatus(t, w, http.StatusOK)
	w, _ = do(t, srv, "GET", "/api/v1/workers/"+workerID, "")
	expectStatus(t, w, http.StatusNotFound)
}

func TestRegisterWorker_ClientID(t *testing.T) {
	srv, _ := testServer(t)

	w, env := do(t, srv, "POST", "/api/v1/workers", `{"id":"wkr_kept","address":"10.0.0.7","name":"n7"}`)
	expectStatus(t, w, http.StatusCreated)
	if got := decodeData[model.Worker](t, env); got.ID != "wkr_kept" {
		t.Errorf("id = %q, want wkr_kept", got.ID)
	}

	w, _ = do(t, srv, "POST", "/api/v1/workers", `{"id":"wkr_kept","address":"10.0.0.8"}`)
	expectStatus(t, w, http.StatusConflict)

	w, _ = do(t, srv, "DELETE", "/api/v1/workers/wkr_kept", "")
	expectStatus(t, w, http.StatusOK)
	w, env = do(t, srv, "POST", "/api/v1/workers", `{"id":"wkr_kept","address":"10.0.0.7"}`)
	expectStatus(t, w, http.StatusConflict)
	if env.Error == nil || env.Error.Code != model.ErrConflict {
		t.Errorf("error = %+v, want CONFLICT", env.Error)
	}
}

func TestSchedulerControls(t *testing.T) {
	srv, core := testServer(t)
	registerWorker(t, srv, "10.0.0.1", "ECHAM")

	w, env := do(t, srv, "POST", "/api/v1/scheduler/pass", "")
	expectStatus(t, w, http.StatusOK)
	if res := decodeData[map[string]int](t, env); res["assigned"] != 0 {
		t.Errorf("pass = %v", res)
	}

	w, _ = do(t, srv, "POST", "/api/v1/scheduler/start", "")
	expectStatus(t, w, http.StatusOK)
	if !core.Running() {
		t.Fatal("loop not running after start")
	}
	w, _ = do(t, srv, "POST", "/api/v1/scheduler/clear", "")
	expectStatus(t, w, http.StatusConflict)

	w, _ = do(t, srv, "POST", "/api/v1/scheduler/stop", "")
	expectStatus(t, w, http.StatusOK)
	w, _ = do(t, srv, "POST", "/api/v1/scheduler/clear", "")
	expectStatus(t, w, http.StatusOK)
	if len(core.Workers()) != 0 {
		t.Error("workers survived clear")
	}
}

func TestSaveLoad(t *testing.T) {
	store := snapshot.NewFileStore(filepath.Join(t.TempDir(), "snap.xml"))
	srv, _ := testServer(t, scheduler.WithSnapshotStore(store))

	w, _ := do(t, srv, "POST", "/api/v1/scheduler/load", "")
	expectStatus(t, w, http.StatusNotFound)

	_, chainID := registerWorker(t, srv, "10.0.0.1", "ECHAM")
	do(t, srv, "POST", "/api/v1/jobs/", `{"experiment_id":1,"chain_id":"`+chainID+`"}`)

	w, env := do(t, srv, "POST", "/api/v1/scheduler/save", "")
	expectStatus(t, w, http.StatusOK)
	if res := decodeData[map[string]any](t, env); res["queued"] != float64(1) {
		t.Errorf("save = %v", res)
	}

	w, _ = do(t, srv, "POST", "/api/v1/scheduler/load", "")
	expectStatus(t, w, http.StatusConflict)

	fresh, core := testServer(t, scheduler.WithSnapshotStore(store))
	w, _ = do(t, fresh, "POST", "/api/v1/scheduler/load", "")
	expectStatus(t, w, http.StatusOK)
	if n := len(core.QueuedJobs()); n != 1 {
		t.Errorf("restored %d jobs, want 1", n)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, core := testServer(t)
	core.ScheduleJobs()

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	expectStatus(t, w, http.StatusOK)

	body := w.Body.String()
	for _, want := range []string{
		"mcsched_scheduler_passes_total 1",
		`mcsched_scheduler_queued_jobs{state="WAITING_UNSCHEDULED"} 0`,
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestDashboardMounted(t *testing.T) {
	srv, _ := testServer(t)

	req := httptest.NewRequest("GET", "/ui/", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	expectStatus(t, w, http.StatusOK)
	if !strings.Contains(w.Body.String(), "<h1>Scheduler</h1>") {
		t.Errorf("dashboard body = %q", w.Body.String())
	}
}

func TestLoggingMiddleware_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	core := scheduler.NewCore(scheduler.DefaultConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := New(config.DefaultServerConfig(), core, logger, WithLoopContext(context.Background()))

	req := httptest.NewRequest("GET", "/metrics", nil)
	srv.ServeHTTP(httptest.NewRecorder(), req)
	if strings.Contains(buf.String(), "path=/metrics") {
		t.Error("successful scrape should be logged below INFO")
	}

	req = httptest.NewRequest("GET", "/api/v1/workers/wrk_x/job", nil)
	srv.ServeHTTP(httptest.NewRecorder(), req)
	if !strings.Contains(buf.String(), "status=404") {
		t.Errorf("failed poll should be logged at INFO, got: %s", buf.String())
	}
}
