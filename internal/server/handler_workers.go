package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/me/mcsched/pkg/model"
)

// handleRegisterWorker adds a worker in state UNKNOWN.
// POST /api/v1/workers
//
// A worker that knows its previous ID may pass it to register under the
// same identity again; otherwise the server assigns one.
func (s *Server) handleRegisterWorker(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var req struct {
		ID      string `json:"id"`
		Address string `json:"address"`
		Name    string `json:"name"`
	}
	if !decodeBody(w, r, reqID, &req) {
		return
	}
	if req.Address == "" {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("missing required field",
				model.FieldError{Field: "address", Message: "address is required"}))
		return
	}

	var worker *model.Worker
	if req.ID != "" {
		worker = &model.Worker{ID: req.ID, Address: req.Address, Name: req.Name}
		if err := s.core.RegisterWorker(worker); err != nil {
			respondSchedulerError(w, reqID, err)
			return
		}
		worker = s.core.Worker(req.ID)
	} else {
		var err error
		if worker, err = s.core.RegisterNewWorker(req.Address, req.Name); err != nil {
			respondSchedulerError(w, reqID, err)
			return
		}
	}

	respondCreated(w, reqID, worker)
}

// handleListWorkers returns every registered worker.
// GET /api/v1/workers
func (s *Server) handleListWorkers(w http.ResponseWriter, r *http.Request) {
	respondOK(w, RequestIDFromContext(r.Context()), s.core.Workers())
}

// GET /api/v1/workers/{id}
func (s *Server) handleGetWorker(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	worker := s.core.Worker(id)
	if worker == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("worker", id))
		return
	}
	respondOK(w, reqID, worker)
}

// DELETE /api/v1/workers/{id}
func (s *Server) handleUnregisterWorker(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if err := s.core.UnregisterWorker(id); err != nil {
		respondSchedulerError(w, reqID, err)
		return
	}
	respondOK(w, reqID, map[string]any{"id": id, "state": model.WorkerStateRemoved})
}

// handleWorkerHeartbeat records the worker's self-reported state.
// PUT /api/v1/workers/{id}/heartbeat
func (s *Server) handleWorkerHeartbeat(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	var req struct {
		State model.WorkerState `json:"state"`
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

	if err := s.core.UpdateWorkerState(id, req.State); err != nil {
		respondSchedulerError(w, reqID, err)
		return
	}
	respondOK(w, reqID, s.core.Worker(id))
}

// handlePollJob returns the job assigned to the worker, or 204 when there
// is none.
// GET /api/v1/workers/{id}/job
func (s *Server) handlePollJob(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	job, err := s.core.JobForWorker(id)
	if err != nil {
		respondSchedulerError(w, reqID, err)
		return
	}
	if job == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	respondOK(w, reqID, job)
}

// handleRegisterChain adds a model chain the worker can run.
// POST /api/v1/workers/{id}/chains
func (s *Server) handleRegisterChain(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	var req struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	}
	if !decodeBody(w, r, reqID, &req) {
		return
	}

	var details []model.FieldError
	if req.Name == "" {
		details = append(details, model.FieldError{Field: "name", Message: "name is required"})
	}
	if req.Version == "" {
		details = append(details, model.FieldError{Field: "version", Message: "version is required"})
	}
	if len(details) > 0 {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("missing required field", details...))
		return
	}

	chain, err := s.core.RegisterChain(id, req.Name, req.Version)
	if err != nil {
		respondSchedulerError(w, reqID, err)
		return
	}
	respondCreated(w, reqID, chain)
}

// DELETE /api/v1/workers/{id}/chains/{cid}
func (s *Server) handleUnregisterChain(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	chain, err := s.core.UnregisterChain(chi.URLParam(r, "id"), chi.URLParam(r, "cid"))
	if err != nil {
		respondSchedulerError(w, reqID, err)
		return
	}
	respondOK(w, reqID, chain)
}
