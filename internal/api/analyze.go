package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/patrickwarner/adsentry/internal/middleware"
)

// AnalyzeRequest is the body of POST /v1/analyze.
type AnalyzeRequest struct {
	Tenant     string `json:"tenant"`
	WindowDays int    `json:"window_days"`
}

// AnalyzeHandler runs detection and diagnosis for one tenant and returns the
// session id the later calls operate on.
func (s *Server) AnalyzeHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "/v1/analyze"
	method := r.Method
	defer func() { s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start)) }()

	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.Metrics.IncrementRequests(endpoint, method, "400")
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Tenant == "" {
		s.Metrics.IncrementRequests(endpoint, method, "400")
		http.Error(w, "tenant is required", http.StatusBadRequest)
		return
	}
	if req.WindowDays == 0 {
		req.WindowDays = 30
	}

	middleware.LoggerFromRequest(r, s.Logger).Info("analyze request",
		zap.String("tenant", req.Tenant),
		zap.Int("window_days", req.WindowDays),
	)

	res, err := s.Pipeline.Analyze(r.Context(), req.Tenant, req.WindowDays)
	if err != nil {
		status := s.writeError(w, r, err)
		s.Metrics.IncrementRequests(endpoint, method, strconv.Itoa(status))
		return
	}

	s.Metrics.IncrementRequests(endpoint, method, "200")
	s.writeJSON(w, http.StatusOK, res)
}
