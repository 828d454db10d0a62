package server

import "net/http"

type endpointInfo struct {
	Path        string   `json:"path"`
	Methods     []string `json:"methods"`
	Description string   `json:"description"`
}

type discoveryResponse struct {
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	Endpoints   []endpointInfo `json:"endpoints"`
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, discoveryResponse{
		Name:        "mcsched API",
		Version:     "v1",
		Description: "Model-chain job scheduler: matches queued experiment jobs to capable workers",
		Endpoints: []endpointInfo{
			{"/api/v1/workers", []string{"GET", "POST"}, "List or register workers"},
			{"/api/v1/workers/{id}", []string{"GET", "DELETE"}, "Single worker; DELETE unregisters"},
			{"/api/v1/workers/{id}/heartbeat", []string{"PUT"}, "Report worker state and refresh its heartbeat"},
			{"/api/v1/workers/{id}/job", []string{"GET"}, "Poll for the assigned job (204 when none)"},
			{"/api/v1/workers/{id}/chains", []string{"POST"}, "Advertise a model chain the worker can run"},
			{"/api/v1/workers/{id}/chains/{cid}", []string{"DELETE"}, "Withdraw a model chain"},
			{"/api/v1/jobs", []string{"GET", "POST"}, "List queued jobs or submit a job"},
			{"/api/v1/jobs/history", []string{"GET"}, "Completed jobs"},
			{"/api/v1/jobs/{id}", []string{"GET", "DELETE"}, "Single job; DELETE removes a queued job"},
			{"/api/v1/jobs/{id}/state", []string{"PUT"}, "Report job progress (IN_PROGRESS, ABORTED, COMPLETED_*)"},
			{"/api/v1/chains", []string{"GET"}, "Model chains advertised by registered workers"},
			{"/api/v1/chains/{cid}", []string{"GET"}, "Single model chain"},
			{"/api/v1/scheduler/pass", []string{"POST"}, "Run one matching pass now"},
			{"/api/v1/scheduler/start", []string{"POST"}, "Start the matching loop"},
			{"/api/v1/scheduler/stop", []string{"POST"}, "Stop the matching loop"},
			{"/api/v1/scheduler/save", []string{"POST"}, "Write a snapshot of queue and history"},
			{"/api/v1/scheduler/load", []string{"POST"}, "Restore queue and history from the snapshot"},
			{"/api/v1/scheduler/clear", []string{"POST"}, "Drop all jobs and workers (loop must be stopped)"},
			{"/api/v1/health", []string{"GET"}, "Server health and scheduler summary"},
			{"/metrics", []string{"GET"}, "Prometheus metrics"},
			{"/ui/", []string{"GET"}, "Read-only HTML dashboard"},
		},
	})
}
