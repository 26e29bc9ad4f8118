package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/trustd/trustd/internal/access"
	"github.com/trustd/trustd/internal/log"
	"github.com/trustd/trustd/internal/netseg"
	"github.com/trustd/trustd/internal/storage"
	"github.com/trustd/trustd/internal/trust"
)

// Handler handles HTTP requests
type Handler struct {
	trust     *trust.Service
	netseg    *netseg.Service
	evaluator *access.Evaluator
	audit     storage.AuditStorage
}

// NewHandler creates a new API handler
func NewHandler(trustService *trust.Service, netsegService *netseg.Service, evaluator *access.Evaluator, auditStore storage.AuditStorage) *Handler {
	return &Handler{
		trust:     trustService,
		netseg:    netsegService,
		evaluator: evaluator,
		audit:     auditStore,
	}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Device CRUD and trust operations
	mux.HandleFunc("POST /api/devices", h.registerDevice)
	mux.HandleFunc("GET /api/devices", h.listUserDevices)
	mux.HandleFunc("GET /api/devices/{fingerprint}", h.getDevice)
	mux.HandleFunc("PUT /api/devices/{fingerprint}", h.updateDevice)
	mux.HandleFunc("POST /api/devices/{fingerprint}/trust", h.setTrustScore)
	mux.HandleFunc("POST /api/devices/{fingerprint}/trust/increase", h.increaseTrustScore)
	mux.HandleFunc("POST /api/devices/{fingerprint}/trust/decrease", h.decreaseTrustScore)
	mux.HandleFunc("POST /api/devices/{fingerprint}/compromise", h.markCompromised)
	mux.HandleFunc("GET /api/devices/{fingerprint}/trusted", h.checkTrusted)
	mux.HandleFunc("GET /api/devices/{fingerprint}/logs", h.listDeviceLogs)

	// Sessions
	mux.HandleFunc("POST /api/devices/{fingerprint}/sessions", h.createSession)
	mux.HandleFunc("GET /api/devices/{fingerprint}/sessions", h.listDeviceSessions)
	mux.HandleFunc("DELETE /api/devices/{fingerprint}/sessions", h.revokeDeviceSessions)
	mux.HandleFunc("GET /api/sessions/{token}", h.getSession)
	mux.HandleFunc("DELETE /api/sessions/{token}", h.revokeSession)
	mux.HandleFunc("DELETE /api/users/{id}/sessions", h.revokeUserSessions)

	// Network segments
	mux.HandleFunc("POST /api/segments", h.createSegment)
	mux.HandleFunc("GET /api/segments", h.listSegments)
	mux.HandleFunc("GET /api/segments/{id}", h.getSegment)
	mux.HandleFunc("PUT /api/segments/{id}", h.updateSegment)
	mux.HandleFunc("DELETE /api/segments/{id}", h.deleteSegment)

	// Isolation policies
	mux.HandleFunc("POST /api/policies", h.createPolicy)
	mux.HandleFunc("GET /api/policies", h.listPolicies)
	mux.HandleFunc("GET /api/policies/{id}", h.getPolicy)
	mux.HandleFunc("PUT /api/policies/{id}", h.updatePolicy)
	mux.HandleFunc("DELETE /api/policies/{id}", h.deletePolicy)

	// Access evaluation
	mux.HandleFunc("POST /api/access/evaluate", h.evaluateAccess)
	mux.HandleFunc("GET /api/access/violations", h.listViolations)
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// internalError logs the error and writes a generic 500 response
func (h *Handler) internalError(w http.ResponseWriter, err error) {
	log.Error("Internal server error", "error", err)
	h.writeError(w, http.StatusInternalServerError, "Internal Server Error")
}

// writeStorageError maps storage sentinel errors to HTTP statuses
func (h *Handler) writeStorageError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrDeviceNotFound),
		errors.Is(err, storage.ErrSegmentNotFound),
		errors.Is(err, storage.ErrPolicyNotFound),
		errors.Is(err, storage.ErrSessionNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, storage.ErrDuplicateDevice),
		errors.Is(err, storage.ErrDuplicateSegment),
		errors.Is(err, storage.ErrDuplicatePolicy):
		h.writeError(w, http.StatusConflict, err.Error())
	default:
		h.internalError(w, err)
	}
}
