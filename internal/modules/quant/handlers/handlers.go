// Package handlers provides HTTP handlers for portfolio analysis operations.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/sidnei-almeida/groq-finance-inference/internal/modules/quant"
	"github.com/sidnei-almeida/groq-finance-inference/internal/modules/reports"
)

// AnalysisService runs the analytics pipeline.
type AnalysisService interface {
	Analyze(ctx context.Context, req quant.AnalysisRequest, progress quant.ProgressFunc) (*quant.Result, error)
}

// AnalysisStore persists analysis runs and their stage logs.
type AnalysisStore interface {
	Create(symbols []string, weights []float64, period string) (string, error)
	Complete(id string, result *quant.Result, narrative string) error
	Fail(id, message string) error
	Get(id string) (*reports.Analysis, error)
	List(limit int, symbols []string) ([]*reports.Analysis, error)
	AddLog(analysisID, stage, message string) error
	GetLogs(analysisID string) ([]reports.LogEntry, error)
}

// Handler handles portfolio analysis HTTP requests.
type Handler struct {
	service  AnalysisService
	store    AnalysisStore
	narrator NarrativeGenerator
	log      zerolog.Logger
}

// NewHandler creates a new analysis handler with no narrative generation.
func NewHandler(service AnalysisService, store AnalysisStore, log zerolog.Logger) *Handler {
	return &Handler{
		service:  service,
		store:    store,
		narrator: NoopNarrator{},
		log:      log.With().Str("handler", "analysis").Logger(),
	}
}

// SetNarrator replaces the narrative generator.
func (h *Handler) SetNarrator(narrator NarrativeGenerator) {
	h.narrator = narrator
}

// HandleAnalyze handles POST /api/analyze. The analysis runs synchronously;
// the stored record carries its stage log either way.
func (h *Handler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req quant.AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Symbols) == 0 {
		http.Error(w, "At least one symbol is required", http.StatusBadRequest)
		return
	}
	if req.Period != "" && !quant.ValidPeriod(req.Period) {
		http.Error(w, "Invalid period", http.StatusBadRequest)
		return
	}

	id, err := h.store.Create(req.Symbols, req.Weights, req.Period)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to create analysis record")
		http.Error(w, "Failed to create analysis", http.StatusInternalServerError)
		return
	}

	progress := func(stage quant.Stage, message string) {
		if err := h.store.AddLog(id, string(stage), message); err != nil {
			h.log.Warn().Err(err).Str("id", id).Msg("Failed to store analysis log")
		}
	}

	result, err := h.service.Analyze(r.Context(), req, progress)
	if err != nil {
		if storeErr := h.store.Fail(id, err.Error()); storeErr != nil {
			h.log.Error().Err(storeErr).Str("id", id).Msg("Failed to mark analysis failed")
		}
		h.log.Warn().Err(err).Str("id", id).Msg("Analysis failed")
		http.Error(w, err.Error(), analysisErrorStatus(err))
		return
	}

	narrative, err := h.narrator.Narrate(r.Context(), result)
	if err != nil {
		h.log.Warn().Err(err).Str("id", id).Msg("Narrative generation failed")
		narrative = ""
	}

	if err := h.store.Complete(id, result, narrative); err != nil {
		h.log.Error().Err(err).Str("id", id).Msg("Failed to store analysis result")
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"id":          id,
			"symbols":     result.Symbols,
			"weights":     result.Weights,
			"period":      result.Period,
			"metrics":     result.Report,
			"warnings":    result.Warnings,
			"ai_analysis": narrative,
			"status":      reports.StatusDone,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleListAnalyses handles GET /api/analyses. Optional query parameters:
// limit, and symbols (comma-separated; only analyses containing all of them).
func (h *Handler) HandleListAnalyses(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	var symbols []string
	if raw := r.URL.Query().Get("symbols"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				symbols = append(symbols, s)
			}
		}
	}

	analyses, err := h.store.List(limit, symbols)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list analyses")
		http.Error(w, "Failed to list analyses", http.StatusInternalServerError)
		return
	}
	if analyses == nil {
		analyses = []*reports.Analysis{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": analyses,
		"metadata": map[string]interface{}{
			"count":     len(analyses),
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetAnalysis handles GET /api/analyses/{id}.
func (h *Handler) HandleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	analysis, err := h.store.Get(id)
	if errors.Is(err, reports.ErrNotFound) {
		http.Error(w, "Analysis not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("id", id).Msg("Failed to get analysis")
		http.Error(w, "Failed to get analysis", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": analysis,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetAnalysisLogs handles GET /api/analyses/{id}/logs.
func (h *Handler) HandleGetAnalysisLogs(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := h.store.Get(id); errors.Is(err, reports.ErrNotFound) {
		http.Error(w, "Analysis not found", http.StatusNotFound)
		return
	} else if err != nil {
		h.log.Error().Err(err).Str("id", id).Msg("Failed to get analysis")
		http.Error(w, "Failed to get analysis", http.StatusInternalServerError)
		return
	}

	logs, err := h.store.GetLogs(id)
	if err != nil {
		h.log.Error().Err(err).Str("id", id).Msg("Failed to get analysis logs")
		http.Error(w, "Failed to get analysis logs", http.StatusInternalServerError)
		return
	}
	if logs == nil {
		logs = []reports.LogEntry{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": logs,
		"metadata": map[string]interface{}{
			"count":     len(logs),
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// analysisErrorStatus maps pipeline errors to HTTP statuses. Bad input is a
// 400; data the upstream could not supply is a 422.
func analysisErrorStatus(err error) int {
	var mismatch *quant.DimensionMismatchError
	switch {
	case errors.As(err, &mismatch):
		return http.StatusBadRequest
	case errors.Is(err, quant.ErrDataUnavailable),
		errors.Is(err, quant.ErrInsufficientData):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON writes a JSON response.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
