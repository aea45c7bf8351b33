package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"valuestream/internal/core/vsm"
	"valuestream/internal/domain"
	"valuestream/internal/service"
)

const maxBodyBytes = 4 << 20

// MapHandler handles value stream map API requests
type MapHandler struct {
	svc    *service.MapService
	logger *slog.Logger
}

// NewMapHandler creates a new map handler
func NewMapHandler(svc *service.MapService, logger *slog.Logger) *MapHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MapHandler{svc: svc, logger: logger}
}

// Routes registers every API route on mux
func (h *MapHandler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/maps", h.ListMaps)
	mux.HandleFunc("POST /api/maps", h.CreateMap)
	mux.HandleFunc("GET /api/maps/{id}", h.GetMap)
	mux.HandleFunc("PUT /api/maps/{id}", h.UpdateMap)
	mux.HandleFunc("DELETE /api/maps/{id}", h.DeleteMap)
	mux.HandleFunc("GET /api/maps/{id}/metrics", h.GetMetrics)

	mux.HandleFunc("POST /api/maps/{id}/processes", h.AddProcess)
	mux.HandleFunc("DELETE /api/maps/{id}/processes/{pid}", h.RemoveProcess)
	mux.HandleFunc("POST /api/maps/{id}/connections", h.AddConnection)
	mux.HandleFunc("DELETE /api/maps/{id}/connections/{cid}", h.RemoveConnection)

	mux.HandleFunc("POST /api/calculate", h.Calculate)
	mux.HandleFunc("POST /api/import/{format}", h.Import)
	mux.HandleFunc("GET /api/maps/{id}/export/{format}", h.Export)

	mux.HandleFunc("GET /healthz", h.Health)
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// CreateMapRequest is the body of POST /api/maps
type CreateMapRequest struct {
	ID          string                `json:"id"`
	Title       string                `json:"title"`
	Processes   []domain.ProcessBlock `json:"processes"`
	Connections []domain.Connection   `json:"connections"`
}

// UpdateMapRequest is the body of PUT /api/maps/{id}. Omitted fields are
// left unchanged.
type UpdateMapRequest struct {
	Title       *string               `json:"title"`
	Processes   []domain.ProcessBlock `json:"processes"`
	Connections []domain.Connection   `json:"connections"`
}

// CalculateRequest is the body of POST /api/calculate
type CalculateRequest struct {
	Processes   []domain.ProcessBlock `json:"processes"`
	Connections []domain.Connection   `json:"connections"`
}

// ListMaps returns summaries of all maps
func (h *MapHandler) ListMaps(w http.ResponseWriter, r *http.Request) {
	maps, err := h.svc.ListMaps(r.Context())
	if err != nil {
		h.writeServiceError(w, "Failed to list maps", err)
		return
	}
	if maps == nil {
		maps = []domain.MapSummary{}
	}
	h.writeJSON(w, maps, http.StatusOK)
}

// CreateMap creates a new map and computes its metrics
func (h *MapHandler) CreateMap(w http.ResponseWriter, r *http.Request) {
	var req CreateMapRequest
	if !h.decode(w, r, &req) {
		return
	}

	m, err := h.svc.CreateMap(r.Context(), &domain.ValueStreamMap{
		ID:          req.ID,
		Title:       req.Title,
		Processes:   req.Processes,
		Connections: req.Connections,
	})
	if err != nil {
		h.writeServiceError(w, "Failed to create map", err)
		return
	}
	h.writeJSON(w, h.svc.Project(m), http.StatusCreated)
}

// GetMap returns a map with per-process cycle and rework times
func (h *MapHandler) GetMap(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.GetProjectedMap(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, "Failed to get map", err)
		return
	}
	h.writeJSON(w, m, http.StatusOK)
}

// UpdateMap applies a partial update
func (h *MapHandler) UpdateMap(w http.ResponseWriter, r *http.Request) {
	var req UpdateMapRequest
	if !h.decode(w, r, &req) {
		return
	}

	m, err := h.svc.UpdateMap(r.Context(), r.PathValue("id"), vsm.Patch{
		Title:       req.Title,
		Processes:   req.Processes,
		Connections: req.Connections,
	})
	if err != nil {
		h.writeServiceError(w, "Failed to update map", err)
		return
	}
	h.writeJSON(w, h.svc.Project(m), http.StatusOK)
}

// DeleteMap removes a map
func (h *MapHandler) DeleteMap(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteMap(r.Context(), r.PathValue("id")); err != nil {
		h.writeServiceError(w, "Failed to delete map", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetMetrics returns the stream metrics of a map
func (h *MapHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.svc.GetMetrics(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, "Failed to get metrics", err)
		return
	}
	h.writeJSON(w, metrics, http.StatusOK)
}

// AddProcess adds or replaces a process
func (h *MapHandler) AddProcess(w http.ResponseWriter, r *http.Request) {
	var p domain.ProcessBlock
	if !h.decode(w, r, &p) {
		return
	}

	m, err := h.svc.AddProcess(r.Context(), r.PathValue("id"), p)
	if err != nil {
		h.writeServiceError(w, "Failed to add process", err)
		return
	}
	h.writeJSON(w, h.svc.Project(m), http.StatusCreated)
}

// RemoveProcess removes a process and its connections
func (h *MapHandler) RemoveProcess(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.RemoveProcess(r.Context(), r.PathValue("id"), r.PathValue("pid"))
	if err != nil {
		h.writeServiceError(w, "Failed to remove process", err)
		return
	}
	h.writeJSON(w, h.svc.Project(m), http.StatusOK)
}

// AddConnection adds or replaces a connection
func (h *MapHandler) AddConnection(w http.ResponseWriter, r *http.Request) {
	var c domain.Connection
	if !h.decode(w, r, &c) {
		return
	}

	m, err := h.svc.AddConnection(r.Context(), r.PathValue("id"), c)
	if err != nil {
		h.writeServiceError(w, "Failed to add connection", err)
		return
	}
	h.writeJSON(w, h.svc.Project(m), http.StatusCreated)
}

// RemoveConnection removes a connection
func (h *MapHandler) RemoveConnection(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.RemoveConnection(r.Context(), r.PathValue("id"), r.PathValue("cid"))
	if err != nil {
		h.writeServiceError(w, "Failed to remove connection", err)
		return
	}
	h.writeJSON(w, h.svc.Project(m), http.StatusOK)
}

// Calculate computes metrics for an unsaved map
func (h *MapHandler) Calculate(w http.ResponseWriter, r *http.Request) {
	var req CalculateRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.svc.Calculate(req.Processes, req.Connections)
	if err != nil {
		h.writeServiceError(w, "Failed to calculate", err)
		return
	}
	h.writeJSON(w, res, http.StatusOK)
}

// Import stores a JSON or YAML map document
func (h *MapHandler) Import(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	m, err := h.svc.Import(r.Context(), r.PathValue("format"), body)
	if err != nil {
		h.writeServiceError(w, "Failed to import map", err)
		return
	}
	h.writeJSON(w, h.svc.Project(m), http.StatusCreated)
}

// Export writes a map document as an attachment
func (h *MapHandler) Export(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	format := strings.ToLower(r.PathValue("format"))

	// Buffer so failures can still be reported as JSON
	var buf bytes.Buffer
	if err := h.svc.Export(r.Context(), id, format, &buf); err != nil {
		h.writeServiceError(w, "Failed to export map", err)
		return
	}

	contentType := "application/json"
	if format != "json" {
		contentType = "application/x-yaml"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+id+"."+format)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Warn("handler: failed to write export", "map_id", id, "err", err)
	}
}

// Health reports liveness
func (h *MapHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

// Helper methods

func (h *MapHandler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (h *MapHandler) writeServiceError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalid):
		h.writeError(w, msg, err.Error(), http.StatusBadRequest)
	case errors.Is(err, service.ErrNotFound):
		h.writeError(w, "Not found", err.Error(), http.StatusNotFound)
	case errors.Is(err, service.ErrConflict):
		h.writeError(w, msg, err.Error(), http.StatusConflict)
	default:
		h.logger.Error("handler: "+strings.ToLower(msg), "err", err)
		h.writeError(w, msg, err.Error(), http.StatusInternalServerError)
	}
}

func (h *MapHandler) writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("handler: failed to encode JSON", "err", err)
	}
}

func (h *MapHandler) writeError(w http.ResponseWriter, error, details string, statusCode int) {
	h.writeJSON(w, ErrorResponse{Error: error, Details: details}, statusCode)
}
