package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/trustd/trustd/internal/access"
	"github.com/trustd/trustd/internal/model"
)

// evaluateAccess handles POST /api/access/evaluate. A deny decision is a
// successful response, not an error.
func (h *Handler) evaluateAccess(w http.ResponseWriter, r *http.Request) {
	var req struct {
		access.Request
		// LogViolation asks the server to record the attempt when denied
		LogViolation bool           `json:"log_violation,omitempty"`
		Details      map[string]any `json:"details,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SourceSegmentID == "" || req.DestinationSegmentID == "" {
		h.writeError(w, http.StatusBadRequest, "source_segment_id and destination_segment_id are required")
		return
	}

	decision, err := h.evaluator.Evaluate(r.Context(), req.Request)
	if err != nil {
		h.internalError(w, err)
		return
	}

	if !decision.Allowed && req.LogViolation {
		details := req.Details
		if details == nil {
			details = map[string]any{}
		}
		details["reason"] = decision.Reason
		h.evaluator.LogViolation(req.SourceSegmentID, req.DestinationSegmentID, req.UserID, details)
	}

	h.writeJSON(w, http.StatusOK, decision)
}

// listViolations handles GET /api/access/violations
func (h *Handler) listViolations(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	violations, err := h.audit.ListViolations(limit)
	if err != nil {
		h.internalError(w, err)
		return
	}

	if violations == nil {
		violations = []model.ViolationLog{}
	}
	h.writeJSON(w, http.StatusOK, violations)
}
