package api

import (
	"encoding/json"
	"net/http"

	"github.com/trustd/trustd/internal/model"
)

// createPolicy handles POST /api/policies
func (h *Handler) createPolicy(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SourceSegmentID      string                  `json:"source_segment_id"`
		DestinationSegmentID string                  `json:"destination_segment_id"`
		Action               string                  `json:"action"`
		Conditions           *model.PolicyConditions `json:"conditions,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SourceSegmentID == "" || req.DestinationSegmentID == "" {
		h.writeError(w, http.StatusBadRequest, "source_segment_id and destination_segment_id are required")
		return
	}
	if !model.ValidAction(req.Action) {
		h.writeError(w, http.StatusBadRequest, "action must be ALLOW or DENY")
		return
	}

	policy, err := h.netseg.CreatePolicy(req.SourceSegmentID, req.DestinationSegmentID, req.Action, req.Conditions)
	if err != nil {
		h.writeStorageError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, policy)
}

// listPolicies handles GET /api/policies with optional ?source=&destination=
// exact ordered-pair filtering
func (h *Handler) listPolicies(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	destination := r.URL.Query().Get("destination")

	var policies []model.IsolationPolicy
	var err error

	if source != "" && destination != "" {
		policies, err = h.netseg.GetPoliciesForPair(source, destination)
	} else {
		policies, err = h.netseg.GetAllPolicies()
	}
	if err != nil {
		h.internalError(w, err)
		return
	}

	if policies == nil {
		policies = []model.IsolationPolicy{}
	}
	h.writeJSON(w, http.StatusOK, policies)
}

// getPolicy handles GET /api/policies/{id}
func (h *Handler) getPolicy(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	policy, err := h.netseg.GetPolicy(id)
	if err != nil {
		h.writeStorageError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, policy)
}

// updatePolicy handles PUT /api/policies/{id}
func (h *Handler) updatePolicy(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req struct {
		Action     *string                 `json:"action,omitempty"`
		Conditions *model.PolicyConditions `json:"conditions,omitempty"`
		// ClearConditions removes existing conditions when true
		ClearConditions bool `json:"clear_conditions,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Action != nil && !model.ValidAction(*req.Action) {
		h.writeError(w, http.StatusBadRequest, "action must be ALLOW or DENY")
		return
	}

	update := model.PolicyUpdate{Action: req.Action}
	if req.Conditions != nil {
		update.Conditions = req.Conditions
		update.SetConditions = true
	} else if req.ClearConditions {
		update.SetConditions = true
	}

	policy, err := h.netseg.UpdatePolicy(id, update)
	if err != nil {
		h.writeStorageError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, policy)
}

// deletePolicy handles DELETE /api/policies/{id}
func (h *Handler) deletePolicy(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.netseg.DeletePolicy(id); err != nil {
		h.writeStorageError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
