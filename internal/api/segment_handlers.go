package api

import (
	"encoding/json"
	"net"
	"net/http"

	"github.com/trustd/trustd/internal/model"
)

// createSegment handles POST /api/segments
func (h *Handler) createSegment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		CIDR        string `json:"cidr"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if _, _, err := net.ParseCIDR(req.CIDR); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid CIDR: "+req.CIDR)
		return
	}

	segment, err := h.netseg.CreateSegment(req.Name, req.CIDR, req.Description)
	if err != nil {
		h.writeStorageError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, segment)
}

// listSegments handles GET /api/segments
func (h *Handler) listSegments(w http.ResponseWriter, r *http.Request) {
	segments, err := h.netseg.GetAllSegments()
	if err != nil {
		h.internalError(w, err)
		return
	}

	if segments == nil {
		segments = []model.NetworkSegment{}
	}
	h.writeJSON(w, http.StatusOK, segments)
}

// getSegment handles GET /api/segments/{id}
func (h *Handler) getSegment(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	segment, err := h.netseg.GetSegment(id)
	if err != nil {
		h.writeStorageError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, segment)
}

// updateSegment handles PUT /api/segments/{id}
func (h *Handler) updateSegment(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var update model.SegmentUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if update.CIDR != nil {
		if _, _, err := net.ParseCIDR(*update.CIDR); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid CIDR: "+*update.CIDR)
			return
		}
	}
	if update.Name != nil && *update.Name == "" {
		h.writeError(w, http.StatusBadRequest, "name cannot be empty")
		return
	}

	segment, err := h.netseg.UpdateSegment(id, update)
	if err != nil {
		h.writeStorageError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, segment)
}

// deleteSegment handles DELETE /api/segments/{id}. Policies referencing
// the segment are removed as part of the delete.
func (h *Handler) deleteSegment(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.netseg.DeleteSegment(id); err != nil {
		h.writeStorageError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
