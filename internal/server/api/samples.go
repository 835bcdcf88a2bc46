package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ayusman/handsynth/internal/logging"
	"github.com/ayusman/handsynth/internal/store"
)

// Reloader is told when the sample bank changes.
type Reloader interface {
	Reload() error
}

// SamplesHandler handles HTTP requests for the drum-kit sample bank.
type SamplesHandler struct {
	store    *store.Store
	reloader Reloader
}

// NewSamplesHandler creates a handler. reloader may be nil.
func NewSamplesHandler(s *store.Store, reloader Reloader) *SamplesHandler {
	return &SamplesHandler{store: s, reloader: reloader}
}

// ServeHTTP routes:
//
//	GET, POST          /api/samples
//	GET, PUT, DELETE   /api/samples/{id}
//	PUT                /api/samples/{id}/quadrant
func (h *SamplesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/samples")
	path = strings.Trim(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	parts := strings.Split(path, "/")
	id := parts[0]
	switch {
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			h.get(w, r, id)
		case http.MethodPut:
			h.update(w, r, id)
		case http.MethodDelete:
			h.delete(w, r, id)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case len(parts) == 2 && parts[1] == "quadrant":
		if r.Method != http.MethodPut {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.assign(w, r, id)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

type sampleRequest struct {
	Name     string `json:"name"`
	Note     *int   `json:"note"`
	Quadrant int    `json:"quadrant"`
}

type assignRequest struct {
	Quadrant int `json:"quadrant"`
}

type sampleResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Note      int    `json:"note"`
	Quadrant  int    `json:"quadrant"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type listSamplesResponse struct {
	Samples []sampleResponse `json:"samples"`
}

func toResponse(s *store.Sample) sampleResponse {
	return sampleResponse{
		ID:        s.ID,
		Name:      s.Name,
		Note:      s.Note,
		Quadrant:  s.Quadrant,
		CreatedAt: formatTime(s.CreatedAt),
		UpdatedAt: formatTime(s.UpdatedAt),
	}
}

func validNote(n int) bool {
	return n >= 0 && n <= 127
}

func validQuadrant(q int) bool {
	return q >= 0 && q <= 4
}

// list handles GET /api/samples.
func (h *SamplesHandler) list(w http.ResponseWriter, r *http.Request) {
	samples, err := h.store.Samples().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list samples")
		return
	}

	response := listSamplesResponse{
		Samples: make([]sampleResponse, 0, len(samples)),
	}
	for _, s := range samples {
		response.Samples = append(response.Samples, toResponse(s))
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *SamplesHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	s, err := h.store.Samples().GetByID(id)
	if err != nil {
		h.storeError(w, err, "Failed to get sample")
		return
	}
	writeJSON(w, http.StatusOK, toResponse(s))
}

// create handles POST /api/samples. A quadrant held by another sample
// moves to the new one.
func (h *SamplesHandler) create(w http.ResponseWriter, r *http.Request) {
	var req sampleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required")
		return
	}
	if req.Note == nil || !validNote(*req.Note) {
		writeError(w, http.StatusBadRequest, "Note must be between 0 and 127")
		return
	}
	if !validQuadrant(req.Quadrant) {
		writeError(w, http.StatusBadRequest, "Quadrant must be between 0 and 4")
		return
	}

	s := &store.Sample{
		ID:       uuid.New().String(),
		Name:     req.Name,
		Note:     *req.Note,
		Quadrant: req.Quadrant,
	}
	if err := h.store.Samples().Create(s); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create sample")
		return
	}
	h.reload()
	writeJSON(w, http.StatusCreated, toResponse(s))
}

// update handles PUT /api/samples/{id}. Only provided fields change.
func (h *SamplesHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	s, err := h.store.Samples().GetByID(id)
	if err != nil {
		h.storeError(w, err, "Failed to get sample")
		return
	}

	var req sampleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Name != "" {
		s.Name = req.Name
	}
	if req.Note != nil {
		if !validNote(*req.Note) {
			writeError(w, http.StatusBadRequest, "Note must be between 0 and 127")
			return
		}
		s.Note = *req.Note
	}

	if err := h.store.Samples().Update(s); err != nil {
		h.storeError(w, err, "Failed to update sample")
		return
	}
	h.reload()
	writeJSON(w, http.StatusOK, toResponse(s))
}

// assign handles PUT /api/samples/{id}/quadrant. Quadrant 0 unbinds.
func (h *SamplesHandler) assign(w http.ResponseWriter, r *http.Request, id string) {
	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err := h.store.Samples().Assign(id, req.Quadrant); err != nil {
		if errors.Is(err, store.ErrInvalidQuadrant) {
			writeError(w, http.StatusBadRequest, "Quadrant must be between 0 and 4")
			return
		}
		h.storeError(w, err, "Failed to assign sample")
		return
	}
	h.reload()

	s, err := h.store.Samples().GetByID(id)
	if err != nil {
		h.storeError(w, err, "Failed to get sample")
		return
	}
	writeJSON(w, http.StatusOK, toResponse(s))
}

func (h *SamplesHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Samples().Delete(id); err != nil {
		h.storeError(w, err, "Failed to delete sample")
		return
	}
	h.reload()
	w.WriteHeader(http.StatusNoContent)
}

func (h *SamplesHandler) storeError(w http.ResponseWriter, err error, message string) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Sample not found")
		return
	}
	writeError(w, http.StatusInternalServerError, message)
}

func (h *SamplesHandler) reload() {
	if h.reloader == nil {
		return
	}
	if err := h.reloader.Reload(); err != nil {
		logging.Error("reload sample bank", "err", err)
	}
}
