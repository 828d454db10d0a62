package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/me/mcsched/pkg/model"
)

// jobView adds where the job currently lives.
type jobView struct {
	*model.Job
	Location string `json:"location"`
}

func viewJobs(jobs []*model.Job, location string) []jobView {
	out := make([]jobView, len(jobs))
	for i, j := range jobs {
		out[i] = jobView{Job: j, Location: location}
	}
	return out
}

// handleSubmitJob queues a job for an experiment on a known chain.
// POST /api/v1/jobs
func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var req struct {
		ExperimentID int64  `json:"experiment_id"`
		ChainID      string `json:"chain_id"`
	}
	if !decodeBody(w, r, reqID, &req) {
		return
	}
	if req.ChainID == "" {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("missing required field",
				model.FieldError{Field: "chain_id", Message: "chain_id is required"}))
		return
	}

	job, err := s.core.SubmitJob(req.ExperimentID, req.ChainID)
	if err != nil {
		respondSchedulerError(w, reqID, err)
		return
	}
	respondCreated(w, reqID, jobView{Job: job, Location: "queue"})
}

// GET /api/v1/jobs
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	jobs := s.core.QueuedJobs()

	if state := r.URL.Query().Get("state"); state != "" {
		filtered := jobs[:0]
		for _, j := range jobs {
			if string(j.State) == state {
				filtered = append(filtered, j)
			}
		}
		jobs = filtered
	}
	respondOK(w, reqID, viewJobs(jobs, "queue"))
}

// GET /api/v1/jobs/history
func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	respondOK(w, RequestIDFromContext(r.Context()), viewJobs(s.core.HistoryJobs(), "history"))
}

// GET /api/v1/jobs/{id}
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	job := s.core.Job(id)
	if job == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("job", id))
		return
	}
	location := "queue"
	if job.State.IsTerminal() {
		location = "history"
	}
	respondOK(w, reqID, jobView{Job: job, Location: location})
}

// handleUpdateJobState records a worker-reported job state.
// PUT /api/v1/jobs/{id}/state
func (s *Server) handleUpdateJobState(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	var req struct {
		State model.JobState `json:"state"`
	}
	if !decodeBody(w, r, reqID, &req) {
		return
	}
	if req.State == "" {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("missing required field",
				model.FieldError{Field: "state", Message: "state is required"}))
		return
	}

	if err := s.core.UpdateJobState(id, req.State); err != nil {
		respondSchedulerError(w, reqID, err)
		return
	}
	s.handleGetJob(w, r)
}

// DELETE /api/v1/jobs/{id}
func (s *Server) handleRemoveJob(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if err := s.core.RemoveJob(id); err != nil {
		respondSchedulerError(w, reqID, err)
		return
	}
	respondOK(w, reqID, map[string]any{"id": id, "state": model.JobStateRemoved})
}

// GET /api/v1/chains
func (s *Server) handleListChains(w http.ResponseWriter, r *http.Request) {
	chains := s.core.KnownChains()
	if chains == nil {
		chains = []model.ModelChain{}
	}
	respondOK(w, RequestIDFromContext(r.Context()), chains)
}

// GET /api/v1/chains/{cid}
func (s *Server) handleGetChain(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "cid")

	chain, ok := s.core.Chain(id)
	if !ok {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("chain", id))
		return
	}
	respondOK(w, reqID, chain)
}
