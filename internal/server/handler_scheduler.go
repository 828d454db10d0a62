package server

import (
	"errors"
	"net/http"

	"github.com/me/mcsched/internal/snapshot"
	"github.com/me/mcsched/pkg/model"
)

// handleRunPass runs one matching pass immediately.
// POST /api/v1/scheduler/pass
func (s *Server) handleRunPass(w http.ResponseWriter, r *http.Request) {
	res := s.core.ScheduleJobs()
	respondOK(w, RequestIDFromContext(r.Context()), map[string]int{
		"timed_out":  res.TimedOut,
		"unassigned": res.Unassigned,
		"assigned":   res.Assigned,
	})
}

// POST /api/v1/scheduler/start
func (s *Server) handleStartLoop(w http.ResponseWriter, r *http.Request) {
	s.core.Start(s.loopCtx)
	respondOK(w, RequestIDFromContext(r.Context()), map[string]bool{"running": true})
}

// handleStopLoop asks the loop to stop and waits for it, so a following
// clear or load is accepted.
// POST /api/v1/scheduler/stop
func (s *Server) handleStopLoop(w http.ResponseWriter, r *http.Request) {
	s.core.Stop()
	s.core.Wait()
	respondOK(w, RequestIDFromContext(r.Context()), map[string]bool{"running": false})
}

// POST /api/v1/scheduler/save
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	if err := s.core.Save(r.Context()); err != nil {
		s.logger.Error("save snapshot", "error", err)
		respondSchedulerError(w, reqID, err)
		return
	}
	st := s.core.Stats()
	respondOK(w, reqID, map[string]any{"store": st.Snapshots, "queued": st.Queued, "history": st.History})
}

// POST /api/v1/scheduler/load
func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	if err := s.core.Load(r.Context()); err != nil {
		if errors.Is(err, snapshot.ErrNoSnapshot) {
			respondError(w, reqID, http.StatusNotFound, &model.APIError{Code: model.ErrNotFound, Message: err.Error()})
			return
		}
		s.logger.Error("load snapshot", "error", err)
		respondSchedulerError(w, reqID, err)
		return
	}
	st := s.core.Stats()
	respondOK(w, reqID, map[string]any{"store": st.Snapshots, "queued": st.Queued, "history": st.History})
}

// POST /api/v1/scheduler/clear
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	if err := s.core.Clear(); err != nil {
		respondSchedulerError(w, reqID, err)
		return
	}
	respondOK(w, reqID, map[string]bool{"cleared": true})
}
