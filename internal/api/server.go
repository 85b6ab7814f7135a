// Package api exposes the analysis pipeline over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/patrickwarner/adsentry/internal/config"
	"github.com/patrickwarner/adsentry/internal/middleware"
	"github.com/patrickwarner/adsentry/internal/models"
	"github.com/patrickwarner/adsentry/internal/observability"
	"github.com/patrickwarner/adsentry/internal/pipeline"
)

// Server groups dependencies for HTTP handlers.
type Server struct {
	Logger   *zap.Logger
	Pipeline *pipeline.Pipeline
	Metrics  observability.MetricsRegistry
	Config   config.Config
}

// NewServer constructs a Server.
func NewServer(logger *zap.Logger, p *pipeline.Pipeline, metrics observability.MetricsRegistry, cfg config.Config) *Server {
	return &Server{Logger: logger, Pipeline: p, Metrics: metrics, Config: cfg}
}

// Router builds the HTTP route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.WithTraceLogger(s.Logger))

	r.HandleFunc("/v1/analyze", s.AnalyzeHandler).Methods("POST")
	r.HandleFunc("/v1/sessions/{id}/recommend", s.RecommendHandler).Methods("POST")
	r.HandleFunc("/v1/sessions/{id}/execute", s.ExecuteHandler).Methods("POST")
	r.HandleFunc("/healthz", s.HealthHandler).Methods("GET")
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// writeJSON renders a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.Logger.Error("write response", zap.Error(err))
	}
}

// errorStatus maps pipeline errors onto HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, models.ErrUnknownTenant):
		return http.StatusNotFound
	case errors.Is(err, models.ErrWindowOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrSessionExpired):
		return http.StatusGone
	case errors.Is(err, models.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) int {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		middleware.LoggerFromRequest(r, s.Logger).Error("request failed", zap.Error(err))
	}
	s.writeJSON(w, status, errorBody{Error: err.Error()})
	return status
}
