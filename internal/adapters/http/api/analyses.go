package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/okian/spendseg/internal/adapters/mq/queue"
	"github.com/okian/spendseg/internal/adapters/repository"
	"github.com/okian/spendseg/internal/domain/segmentation"
	"github.com/okian/spendseg/pkg/logger"
	"github.com/okian/spendseg/pkg/metrics"
)

// AnalysesHandler handles analysis submission and retrieval.
type AnalysesHandler struct {
	deps         Dependencies
	limits       limits
	maxListLimit int
	logger       logger.Logger
}

// NewAnalysesHandler creates a new analyses handler.
func NewAnalysesHandler(deps Dependencies, opts ...Option) *AnalysesHandler {
	h := &AnalysesHandler{
		deps:         deps,
		limits:       limits{minRecords: DefaultMinRecords, maxRecords: DefaultMaxRecords},
		maxListLimit: DefaultMaxListLimit,
		logger:       logger.Default().Named("api"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleAnalyses dispatches /analyses by method.
func (h *AnalysesHandler) HandleAnalyses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.HandlePostAnalysis(w, r)
	case http.MethodGet:
		h.HandleListAnalyses(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
	}
}

// HandlePostAnalysis handles POST /analyses. Synchronous requests answer with
// the result; asynchronous ones answer 202 with the analysis ID.
func (h *AnalysesHandler) HandlePostAnalysis(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_analysis"

	var body analysisRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := body.validate(h.limits); err != nil {
		code := "bad_request"
		if errors.Is(err, ErrTooFewRecords) {
			code = "insufficient_data"
		}
		writeError(w, http.StatusBadRequest, code, WrapKind(op, ErrBadRequest, err))
		return
	}
	req, err := body.toSegmentation()
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	if body.Async {
		h.submit(r.Context(), w, strings.TrimSpace(body.RequestID), req)
		return
	}

	res, err := h.deps.Analyze(r.Context(), req)
	if err != nil {
		status, code := analysisErrorStatus(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error(r.Context(), "analysis failed", logger.Error(err))
		}
		writeError(w, status, code, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *AnalysesHandler) submit(ctx context.Context, w http.ResponseWriter, requestID string, req segmentation.Request) {
	const op = "api.submit_analysis"

	analysisID := uuid.NewString()
	if requestID != "" {
		existing, seen := h.deps.Claim(ctx, requestID, analysisID)
		if seen {
			metrics.RecordDuplicateSubmission()
			writeJSON(w, http.StatusOK, submitResponse{AnalysisID: existing, Status: "duplicate", Duplicate: true})
			return
		}
	}

	job := queue.Job{AnalysisID: analysisID, RequestID: requestID, Request: req}
	if ok := h.deps.Enqueue(ctx, job); !ok {
		if requestID != "" {
			h.deps.Release(ctx, requestID)
		}
		writeError(w, http.StatusTooManyRequests, "backpressure", NewKind(op, ErrBackpressure))
		return
	}
	w.Header().Set("Location", "/analyses/"+analysisID)
	writeJSON(w, http.StatusAccepted, submitResponse{AnalysisID: analysisID, Status: repository.StatusPending})
}

// HandleListAnalyses handles GET /analyses?limit=N.
func (h *AnalysesHandler) HandleListAnalyses(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_analyses"

	limit := DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		limit = n
	}
	limit = min(limit, h.maxListLimit)

	entries, err := h.deps.List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	if entries == nil {
		entries = []repository.Entry{}
	}
	writeJSON(w, http.StatusOK, listResponse{Analyses: entries, Count: len(entries)})
}

// HandleGetAnalysis handles GET /analyses/{id}.
func (h *AnalysesHandler) HandleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_analysis"
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/analyses/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	entry, err := h.deps.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// analysisErrorStatus maps pipeline errors to an HTTP status and code.
func analysisErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, segmentation.ErrInsufficientData):
		return http.StatusBadRequest, "insufficient_data"
	case errors.Is(err, segmentation.ErrInvalidK),
		errors.Is(err, segmentation.ErrNoFeatures),
		errors.Is(err, segmentation.ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "cancelled"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
