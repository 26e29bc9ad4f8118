package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/trustd/trustd/internal/model"
	"github.com/trustd/trustd/internal/trust"
)

// registerDevice handles POST /api/devices. The fingerprint may be given
// directly or derived server-side from client attributes.
func (h *Handler) registerDevice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Fingerprint string                       `json:"fingerprint"`
		Attributes  *model.FingerprintAttributes `json:"attributes"`
		Name        string                       `json:"name"`
		Owner       string                       `json:"owner"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	fingerprint := req.Fingerprint
	if fingerprint == "" && req.Attributes != nil {
		fingerprint = trust.GenerateFingerprint(*req.Attributes)
	}
	if fingerprint == "" {
		h.writeError(w, http.StatusBadRequest, "fingerprint or attributes required")
		return
	}
	if req.Owner == "" {
		h.writeError(w, http.StatusBadRequest, "owner is required")
		return
	}

	device, err := h.trust.RegisterDevice(fingerprint, req.Name, req.Owner)
	if err != nil {
		h.writeStorageError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, device)
}

// listUserDevices handles GET /api/devices?owner=
func (h *Handler) listUserDevices(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		h.writeError(w, http.StatusBadRequest, "owner query parameter required")
		return
	}

	devices, err := h.trust.GetUserDevices(owner)
	if err != nil {
		h.internalError(w, err)
		return
	}

	if devices == nil {
		devices = []model.Device{}
	}
	h.writeJSON(w, http.StatusOK, devices)
}

// getDevice handles GET /api/devices/{fingerprint}
func (h *Handler) getDevice(w http.ResponseWriter, r *http.Request) {
	fingerprint := r.PathValue("fingerprint")

	device, err := h.trust.GetDevice(fingerprint)
	if err != nil {
		h.internalError(w, err)
		return
	}
	if device == nil {
		h.writeError(w, http.StatusNotFound, "device not found")
		return
	}

	h.writeJSON(w, http.StatusOK, device)
}

// updateDevice handles PUT /api/devices/{fingerprint}
func (h *Handler) updateDevice(w http.ResponseWriter, r *http.Request) {
	fingerprint := r.PathValue("fingerprint")

	var update model.DeviceUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if update.Status != nil && !model.ValidStatus(*update.Status) {
		h.writeError(w, http.StatusBadRequest, "invalid device status: "+*update.Status)
		return
	}

	device, err := h.trust.UpdateDevice(fingerprint, update)
	if err != nil {
		h.writeStorageError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, device)
}

// setTrustScore handles POST /api/devices/{fingerprint}/trust
func (h *Handler) setTrustScore(w http.ResponseWriter, r *http.Request) {
	fingerprint := r.PathValue("fingerprint")

	var req struct {
		Score int `json:"score"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	device, err := h.trust.UpdateTrustScore(fingerprint, req.Score)
	if err != nil {
		h.writeStorageError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, device)
}

// increaseTrustScore handles POST /api/devices/{fingerprint}/trust/increase
func (h *Handler) increaseTrustScore(w http.ResponseWriter, r *http.Request) {
	h.adjustTrustScore(w, r, h.trust.IncreaseTrustScore)
}

// decreaseTrustScore handles POST /api/devices/{fingerprint}/trust/decrease
func (h *Handler) decreaseTrustScore(w http.ResponseWriter, r *http.Request) {
	h.adjustTrustScore(w, r, h.trust.DecreaseTrustScore)
}

func (h *Handler) adjustTrustScore(w http.ResponseWriter, r *http.Request, adjust func(string, int) (int, error)) {
	fingerprint := r.PathValue("fingerprint")

	// Body is optional; an empty body means the default delta
	var req struct {
		Delta int `json:"delta"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	score, err := adjust(fingerprint, req.Delta)
	if err != nil {
		h.writeStorageError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]int{"trust_score": score})
}

// markCompromised handles POST /api/devices/{fingerprint}/compromise
func (h *Handler) markCompromised(w http.ResponseWriter, r *http.Request) {
	fingerprint := r.PathValue("fingerprint")

	device, err := h.trust.MarkAsCompromised(fingerprint)
	if err != nil {
		h.writeStorageError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, device)
}

// checkTrusted handles GET /api/devices/{fingerprint}/trusted?min=
func (h *Handler) checkTrusted(w http.ResponseWriter, r *http.Request) {
	fingerprint := r.PathValue("fingerprint")

	minScore := 0
	if raw := r.URL.Query().Get("min"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid min query parameter")
			return
		}
		minScore = parsed
	}

	trusted, err := h.trust.IsDeviceTrusted(fingerprint, minScore)
	if err != nil {
		h.internalError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]bool{"trusted": trusted})
}

// listDeviceLogs handles GET /api/devices/{fingerprint}/logs
func (h *Handler) listDeviceLogs(w http.ResponseWriter, r *http.Request) {
	fingerprint := r.PathValue("fingerprint")

	device, err := h.trust.GetDevice(fingerprint)
	if err != nil {
		h.internalError(w, err)
		return
	}
	if device == nil {
		h.writeError(w, http.StatusNotFound, "device not found")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	logs, err := h.audit.ListDeviceLogs(device.ID, limit)
	if err != nil {
		h.internalError(w, err)
		return
	}

	if logs == nil {
		logs = []model.DeviceLog{}
	}
	h.writeJSON(w, http.StatusOK, logs)
}

// createSession handles POST /api/devices/{fingerprint}/sessions
func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	fingerprint := r.PathValue("fingerprint")

	var req struct {
		UserID    string `json:"user_id"`
		ExpiresIn string `json:"expires_in,omitempty"` // duration, e.g. "24h"
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		h.writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	var ttl time.Duration
	if req.ExpiresIn != "" {
		parsed, err := time.ParseDuration(req.ExpiresIn)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid expires_in duration")
			return
		}
		ttl = parsed
	}

	device, err := h.trust.GetDevice(fingerprint)
	if err != nil {
		h.internalError(w, err)
		return
	}
	if device == nil {
		h.writeError(w, http.StatusNotFound, "device not found")
		return
	}

	session, err := h.trust.CreateSession(device.ID, req.UserID, ttl)
	if err != nil {
		h.internalError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, session)
}

// listDeviceSessions handles GET /api/devices/{fingerprint}/sessions
func (h *Handler) listDeviceSessions(w http.ResponseWriter, r *http.Request) {
	fingerprint := r.PathValue("fingerprint")

	device, err := h.trust.GetDevice(fingerprint)
	if err != nil {
		h.internalError(w, err)
		return
	}
	if device == nil {
		h.writeError(w, http.StatusNotFound, "device not found")
		return
	}

	sessions, err := h.trust.GetDeviceSessions(device.ID)
	if err != nil {
		h.internalError(w, err)
		return
	}

	if sessions == nil {
		sessions = []model.DeviceSession{}
	}
	h.writeJSON(w, http.StatusOK, sessions)
}

// revokeDeviceSessions handles DELETE /api/devices/{fingerprint}/sessions
func (h *Handler) revokeDeviceSessions(w http.ResponseWriter, r *http.Request) {
	fingerprint := r.PathValue("fingerprint")

	device, err := h.trust.GetDevice(fingerprint)
	if err != nil {
		h.internalError(w, err)
		return
	}
	if device == nil {
		h.writeError(w, http.StatusNotFound, "device not found")
		return
	}

	if err := h.trust.RevokeAllSessions(device.ID); err != nil {
		h.internalError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// getSession handles GET /api/sessions/{token}
func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")

	session, err := h.trust.GetSession(token)
	if err != nil {
		h.internalError(w, err)
		return
	}
	if session == nil {
		h.writeError(w, http.StatusNotFound, "session not found or expired")
		return
	}

	h.writeJSON(w, http.StatusOK, session)
}

// revokeSession handles DELETE /api/sessions/{token}
func (h *Handler) revokeSession(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")

	if err := h.trust.RevokeSession(token); err != nil {
		h.internalError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// revokeUserSessions handles DELETE /api/users/{id}/sessions
func (h *Handler) revokeUserSessions(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")

	if err := h.trust.RevokeUserSessions(userID); err != nil {
		h.internalError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
