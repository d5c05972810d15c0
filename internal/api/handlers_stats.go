package api

import (
	"net/http"
)

func (s *Server) handleJobStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"queue_depth":  s.orchestrator.QueueDepth(),
		"tracked_jobs": s.orchestrator.TrackedJobs(),
		"durations":    s.orchestrator.Durations(),
	})
}
