// Package handlers exposes the engine's read-only query surface over
// HTTP for a hosting process. The engine itself defines no wire
// protocol; this is one possible host-side projection.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	apperrors "workflow-engine/internal/common/errors"
	"workflow-engine/internal/common/logging"
	"workflow-engine/internal/workflow"
)

// Handler serves the query API.
type Handler struct {
	engine *workflow.Engine
	logger logging.Logger
}

// New creates the query API handler
func New(engine *workflow.Engine, logger logging.Logger) *Handler {
	return &Handler{
		engine: engine,
		logger: logger.Named("http"),
	}
}

// Routes builds the router for the query surface
func (h *Handler) Routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/api/workflows", h.ListWorkflows).Methods(http.MethodGet)
	r.HandleFunc("/api/workflows/{id}", h.GetWorkflow).Methods(http.MethodGet)
	r.HandleFunc("/api/workflows/{id}/executions", h.ListExecutions).Methods(http.MethodGet)
	r.HandleFunc("/api/executions/{id}", h.GetExecution).Methods(http.MethodGet)
	return r
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) ListWorkflows(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.engine.GetWorkflows())
}

func (h *Handler) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	cfg, err := h.engine.GetWorkflow(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, cfg)
}

func (h *Handler) ListExecutions(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
			return
		}
		limit = parsed
	}

	// History outlives unregistration, so the id is unknown only when
	// neither a registration nor any retained execution exists.
	executions := h.engine.GetWorkflowExecutions(id, limit)
	if len(executions) == 0 {
		if _, err := h.engine.GetWorkflow(id); err != nil {
			h.writeError(w, err)
			return
		}
	}
	h.writeJSON(w, http.StatusOK, executions)
}

func (h *Handler) GetExecution(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	exec, err := h.engine.GetExecution(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, exec)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if apperrors.IsType(err, apperrors.ErrTypeNotFound) {
		status = http.StatusNotFound
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Warn("failed to encode response", logging.Err(err))
	}
}
