// Package rest exposes the AI endpoints: transcript interpretation, army list
// parsing, and the competitive source intake behind admin auth.
package rest

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"
	"time"

	"github.com/AndrewDeWitt/grimlog/internal/ai/armylist"
	"github.com/AndrewDeWitt/grimlog/internal/ai/competitive"
	"github.com/AndrewDeWitt/grimlog/internal/ai/toolcall"
	"github.com/AndrewDeWitt/grimlog/internal/catalog"
	"github.com/AndrewDeWitt/grimlog/internal/catalog/storage"
	"github.com/AndrewDeWitt/grimlog/internal/errors"
)

// SourceReader reads competitive sources back out for the admin endpoints.
type SourceReader interface {
	GetSource(ctx context.Context, id string) (catalog.CompetitiveSource, error)
	ListSources(ctx context.Context, status catalog.SourceStatus, limit int) ([]catalog.CompetitiveSource, error)
}

// Handler serves the AI API.
type Handler struct {
	interpreter *toolcall.Interpreter
	parser      *armylist.Parser
	pipeline    *competitive.Pipeline
	sources     SourceReader
}

// NewHandler builds the handler. Any component may be nil; its routes are
// simply not registered.
func NewHandler(interpreter *toolcall.Interpreter, parser *armylist.Parser, pipeline *competitive.Pipeline, sources SourceReader) *Handler {
	return &Handler{interpreter: interpreter, parser: parser, pipeline: pipeline, sources: sources}
}

// RegisterRoutes wires AI routes into the mux. Source intake routes mutate
// catalog data and go behind authorize.
func (h *Handler) RegisterRoutes(mux *http.ServeMux, authorize func(http.Handler) http.Handler) {
	if h.interpreter != nil {
		mux.HandleFunc("POST /api/ai/sessions/{sessionID}/interpret", h.handleInterpret)
	}
	if h.parser != nil {
		mux.HandleFunc("POST /api/ai/armylist", h.handleArmyList)
	}
	if h.pipeline != nil && h.sources != nil {
		mux.Handle("POST /api/admin/sources", authorize(http.HandlerFunc(h.handleAddSource)))
		mux.Handle("POST /api/admin/sources/{id}/process", authorize(http.HandlerFunc(h.handleProcessSource)))
		mux.Handle("GET /api/admin/sources/{id}", authorize(http.HandlerFunc(h.handleGetSource)))
		mux.Handle("GET /api/admin/sources", authorize(http.HandlerFunc(h.handleListSources)))
	}
}

type interpretRequest struct {
	Transcript string `json:"transcript"`
}

func (h *Handler) handleInterpret(w http.ResponseWriter, r *http.Request) {
	var req interpretRequest
	if err := decodeJSON(r, &req); err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	result, err := h.interpreter.Interpret(r.Context(), r.PathValue("sessionID"), req.Transcript)
	if err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type armyListRequest struct {
	ListText  string `json:"listText"`
	FactionID string `json:"factionId"`
}

func (h *Handler) handleArmyList(w http.ResponseWriter, r *http.Request) {
	var req armyListRequest
	if err := decodeJSON(r, &req); err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	roster, err := h.parser.Parse(r.Context(), req.ListText, req.FactionID)
	if err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, roster)
}

type addSourceRequest struct {
	URL       string `json:"url"`
	Kind      string `json:"kind"`
	Title     string `json:"title"`
	FactionID string `json:"factionId"`
}

type sourceDTO struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title,omitempty"`
	FactionID string    `json:"factionId"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func toSourceDTO(s catalog.CompetitiveSource) sourceDTO {
	return sourceDTO{
		ID: s.ID, URL: s.URL, Kind: string(s.Kind), Title: s.Title,
		FactionID: s.FactionID, Status: string(s.Status), Error: s.Error,
		CreatedAt: s.CreatedAt,
	}
}

func (h *Handler) handleAddSource(w http.ResponseWriter, r *http.Request) {
	var req addSourceRequest
	if err := decodeJSON(r, &req); err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	source, err := h.pipeline.AddSource(r.Context(), req.URL, catalog.SourceKind(req.Kind), req.Title, req.FactionID)
	if err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSourceDTO(source))
}

// handleProcessSource runs the pipeline synchronously for one source. The
// background worker handles the normal path; this is the retry lever.
func (h *Handler) handleProcessSource(w http.ResponseWriter, r *http.Request) {
	source, err := h.sources.GetSource(r.Context(), r.PathValue("id"))
	if err != nil {
		errors.WriteHTTP(w, mapNotFound(err))
		return
	}
	if err := h.pipeline.Process(r.Context(), source); err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	processed, err := h.sources.GetSource(r.Context(), source.ID)
	if err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSourceDTO(processed))
}

func (h *Handler) handleGetSource(w http.ResponseWriter, r *http.Request) {
	source, err := h.sources.GetSource(r.Context(), r.PathValue("id"))
	if err != nil {
		errors.WriteHTTP(w, mapNotFound(err))
		return
	}
	writeJSON(w, http.StatusOK, toSourceDTO(source))
}

func mapNotFound(err error) error {
	if stderrors.Is(err, storage.ErrNotFound) {
		return errors.Wrap(errors.CodeNotFound, "source not found", err)
	}
	return err
}

func (h *Handler) handleListSources(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit := 50
	if n, err := strconv.Atoi(query.Get("limit")); err == nil && n > 0 {
		limit = n
	}
	sources, err := h.sources.ListSources(r.Context(), catalog.SourceStatus(query.Get("status")), limit)
	if err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	out := make([]sourceDTO, 0, len(sources))
	for _, source := range sources {
		out = append(out, toSourceDTO(source))
	}
	writeJSON(w, http.StatusOK, map[string]any{"sources": out})
}

func decodeJSON(r *http.Request, target any) error {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		return errors.Wrap(errors.CodeInvalidInput, "request body is not valid JSON", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
