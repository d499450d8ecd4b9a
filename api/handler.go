package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

const defaultListLimit = 10

// Handler serves the data-item CRUD endpoints
type Handler struct {
	store   *Store
	appName string
	version string
	logger  *slog.Logger
}

// NewHandler creates the API handler backed by store
func NewHandler(store *Store, appName, version string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:   store,
		appName: appName,
		version: version,
		logger:  logger,
	}
}

// RegisterHTTPHandlers registers the API endpoints on mux
func (h *Handler) RegisterHTTPHandlers(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/{$}", h.handleRoot)
	mux.HandleFunc("POST /api/v1/data", h.handleCreate)
	mux.HandleFunc("GET /api/v1/data", h.handleList)
	mux.HandleFunc("GET /api/v1/data/{item_id}", h.handleGet)
	mux.HandleFunc("PUT /api/v1/data/{item_id}", h.handleUpdate)
	mux.HandleFunc("DELETE /api/v1/data/{item_id}", h.handleDelete)
	mux.HandleFunc("POST /api/v1/data/bulk", h.handleCreateBulk)
	mux.HandleFunc("GET /api/v1/data/stats/summary", h.handleStats)
}

func (h *Handler) handleRoot(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"message":   h.appName,
		"version":   h.version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var input ItemInput
	if !h.decode(w, r, &input) {
		return
	}
	if input.Name == "" {
		h.writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	h.writeJSON(w, http.StatusCreated, h.store.Create(input))
}

func (h *Handler) handleCreateBulk(w http.ResponseWriter, r *http.Request) {
	var inputs []ItemInput
	if !h.decode(w, r, &inputs) {
		return
	}
	for i, input := range inputs {
		if input.Name == "" {
			h.writeError(w, http.StatusBadRequest, "name is required for item "+strconv.Itoa(i))
			return
		}
	}

	h.writeJSON(w, http.StatusCreated, h.store.CreateBulk(inputs))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	offset := 0
	query := r.URL.Query()

	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			h.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}
	if raw := query.Get("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			h.writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		offset = parsed
	}

	h.writeJSON(w, http.StatusOK, h.store.List(limit, offset, query.Get("tag")))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	item, ok := h.store.Get(r.PathValue("item_id"))
	if !ok {
		h.writeError(w, http.StatusNotFound, "Data item not found")
		return
	}
	h.writeJSON(w, http.StatusOK, item)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var update ItemUpdate
	if !h.decode(w, r, &update) {
		return
	}

	item, ok := h.store.Update(r.PathValue("item_id"), update)
	if !ok {
		h.writeError(w, http.StatusNotFound, "Data item not found")
		return
	}
	h.writeJSON(w, http.StatusOK, item)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("item_id")
	if !h.store.Delete(id) {
		h.writeError(w, http.StatusNotFound, "Data item not found")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{
		"message": "Data item " + id + " deleted successfully",
	})
}

func (h *Handler) handleStats(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.store.Stats())
}

// decode unmarshals the request body, answering 400 on malformed input
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode api response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, code int, detail string) {
	h.writeJSON(w, code, map[string]string{"detail": detail})
}
