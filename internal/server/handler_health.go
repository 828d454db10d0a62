package server

import (
	"net/http"
	"runtime"
	"time"
)

type healthResponse struct {
	Status    string     `json:"status"`
	Version   string     `json:"version"`
	GoVersion string     `json:"go_version"`
	Uptime    string     `json:"uptime"`
	Scheduler string     `json:"scheduler"`
	Passes    uint64     `json:"passes"`
	LastPass  *time.Time `json:"last_pass,omitempty"`
	Queued    int        `json:"queued"`
	History   int        `json:"history"`
	Workers   int        `json:"workers"`
	Chains    int        `json:"chains"`
	Snapshots string     `json:"snapshots"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	st := s.core.Stats()

	resp := healthResponse{
		Status:    "healthy",
		Version:   Version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Scheduler: "stopped",
		Passes:    st.Passes,
		Queued:    st.Queued,
		History:   st.History,
		Workers:   st.Workers,
		Chains:    st.Chains,
		Snapshots: st.Snapshots,
	}
	if st.Running {
		resp.Scheduler = "running"
	}
	if !st.LastPass.IsZero() {
		resp.LastPass = &st.LastPass
	}
	if resp.Snapshots == "" {
		resp.Snapshots = "disabled"
	}
	respondOK(w, reqID, resp)
}
