package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
)

// RecommendRequest is the body of POST /v1/sessions/{id}/recommend. The body
// is optional; an empty body means rule-based recommendations.
type RecommendRequest struct {
	UseModelReasoning bool `json:"use_model_reasoning"`
}

// RecommendHandler generates recommendations from a stored session.
func (s *Server) RecommendHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "/v1/sessions/recommend"
	method := r.Method
	defer func() { s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start)) }()

	var req RecommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		s.Metrics.IncrementRequests(endpoint, method, "400")
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	res, err := s.Pipeline.Recommend(r.Context(), mux.Vars(r)["id"], req.UseModelReasoning)
	if err != nil {
		status := s.writeError(w, r, err)
		s.Metrics.IncrementRequests(endpoint, method, strconv.Itoa(status))
		return
	}

	s.Metrics.IncrementRequests(endpoint, method, "200")
	s.writeJSON(w, http.StatusOK, res)
}

// ExecuteRequest is the body of POST /v1/sessions/{id}/execute. DryRun
// defaults to true; live execution is refused either way.
type ExecuteRequest struct {
	ApprovedAdIDs []string `json:"approved_ad_ids"`
	DryRun        *bool    `json:"dry_run"`
}

// ExecuteHandler simulates applying a session's recommendations.
func (s *Server) ExecuteHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "/v1/sessions/execute"
	method := r.Method
	defer func() { s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start)) }()

	var req ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		s.Metrics.IncrementRequests(endpoint, method, "400")
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	dryRun := true
	if req.DryRun != nil {
		dryRun = *req.DryRun
	}

	res, err := s.Pipeline.Execute(r.Context(), mux.Vars(r)["id"], req.ApprovedAdIDs, dryRun)
	if err != nil {
		status := s.writeError(w, r, err)
		s.Metrics.IncrementRequests(endpoint, method, strconv.Itoa(status))
		return
	}

	s.Metrics.IncrementRequests(endpoint, method, "200")
	s.writeJSON(w, http.StatusOK, res)
}
