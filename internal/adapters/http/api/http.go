// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/spendseg/internal/adapters/mq/queue"
	"github.com/okian/spendseg/internal/adapters/repository"
	"github.com/okian/spendseg/internal/domain/dedupe"
	"github.com/okian/spendseg/internal/domain/segmentation"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	dedupe.Registry

	// Analyze runs and stores an analysis synchronously.
	Analyze(ctx context.Context, req segmentation.Request) (*segmentation.Result, error)

	// Enqueue records a pending analysis and queues it. Returns false on backpressure.
	Enqueue(ctx context.Context, job queue.Job) bool

	// Read operations expose stored analyses.
	Get(ctx context.Context, id string) (repository.Entry, error)
	List(ctx context.Context, limit int) ([]repository.Entry, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	analysesHandler *AnalysesHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(statsProvider),
		analysesHandler: NewAnalysesHandler(deps, opts...),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/metrics", MetricsMiddleware(s.healthHandler.HandleHealth, "metrics"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/analyses", MetricsMiddleware(s.analysesHandler.HandleAnalyses, "analyses"))
	mux.HandleFunc("/analyses/", MetricsMiddleware(s.analysesHandler.HandleGetAnalysis, "analysis"))
}

type submitResponse struct {
	AnalysisID string            `json:"analysis_id"`
	Status     repository.Status `json:"status"`
	Duplicate  bool              `json:"duplicate"`
}

type listResponse struct {
	Analyses []repository.Entry `json:"analyses"`
	Count    int                `json:"count"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
