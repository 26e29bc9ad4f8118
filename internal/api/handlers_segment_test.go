package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/trustd/trustd/internal/model"
)

func createTestSegment(t *testing.T, handler *Handler, name, cidr string) model.NetworkSegment {
	t.Helper()

	body := `{"name": "` + name + `", "cidr": "` + cidr + `"}`
	req := httptest.NewRequest("POST", "/api/segments", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()
	handler.createSegment(w, req)

	if w.Result().StatusCode != http.StatusCreated {
		t.Fatalf("Expected status 201 creating segment, got %d", w.Result().StatusCode)
	}

	var segment model.NetworkSegment
	if err := json.NewDecoder(w.Result().Body).Decode(&segment); err != nil {
		t.Fatalf("Failed to decode segment response: %v", err)
	}
	return segment
}

func TestHandler_CreateSegment(t *testing.T) {
	handler, _ := setupTestHandler()

	segment := createTestSegment(t, handler, "dmz", "10.0.1.0/24")

	if segment.Name != "dmz" {
		t.Errorf("Expected name 'dmz', got %s", segment.Name)
	}
	if segment.ID == "" {
		t.Error("Expected a generated segment ID")
	}
}

func TestHandler_CreateSegment_InvalidCIDR(t *testing.T) {
	handler, _ := setupTestHandler()

	body := `{"name": "bad", "cidr": "not-a-cidr"}`
	req := httptest.NewRequest("POST", "/api/segments", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()
	handler.createSegment(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Result().StatusCode)
	}
}

func TestHandler_CreateSegment_DuplicateName(t *testing.T) {
	handler, _ := setupTestHandler()

	createTestSegment(t, handler, "dmz", "10.0.1.0/24")

	body := `{"name": "dmz", "cidr": "10.0.2.0/24"}`
	req := httptest.NewRequest("POST", "/api/segments", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()
	handler.createSegment(w, req)

	if w.Result().StatusCode != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", w.Result().StatusCode)
	}
}

func TestHandler_DeleteSegment_CascadesPolicies(t *testing.T) {
	handler, store := setupTestHandler()

	dmz := createTestSegment(t, handler, "dmz", "10.0.1.0/24")
	internal := createTestSegment(t, handler, "internal", "10.0.2.0/24")

	body := `{"source_segment_id": "` + dmz.ID + `", "destination_segment_id": "` + internal.ID + `", "action": "ALLOW"}`
	req := httptest.NewRequest("POST", "/api/policies", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()
	handler.createPolicy(w, req)

	if w.Result().StatusCode != http.StatusCreated {
		t.Fatalf("Expected status 201 creating policy, got %d", w.Result().StatusCode)
	}

	req = httptest.NewRequest("DELETE", "/api/segments/"+dmz.ID, nil)
	req.SetPathValue("id", dmz.ID)
	w = httptest.NewRecorder()
	handler.deleteSegment(w, req)

	if w.Result().StatusCode != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d", w.Result().StatusCode)
	}
	if len(store.policies) != 0 {
		t.Errorf("Expected policies cascade-deleted, %d remain", len(store.policies))
	}
}

func TestHandler_CreatePolicy_MissingSegment(t *testing.T) {
	handler, _ := setupTestHandler()

	body := `{"source_segment_id": "nope", "destination_segment_id": "also-nope", "action": "ALLOW"}`
	req := httptest.NewRequest("POST", "/api/policies", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()
	handler.createPolicy(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Result().StatusCode)
	}
}

func TestHandler_CreatePolicy_DuplicatePair(t *testing.T) {
	handler, _ := setupTestHandler()

	dmz := createTestSegment(t, handler, "dmz", "10.0.1.0/24")
	internal := createTestSegment(t, handler, "internal", "10.0.2.0/24")

	body := `{"source_segment_id": "` + dmz.ID + `", "destination_segment_id": "` + internal.ID + `", "action": "ALLOW"}`
	req := httptest.NewRequest("POST", "/api/policies", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()
	handler.createPolicy(w, req)

	req = httptest.NewRequest("POST", "/api/policies", bytes.NewReader([]byte(body)))
	w = httptest.NewRecorder()
	handler.createPolicy(w, req)

	if w.Result().StatusCode != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", w.Result().StatusCode)
	}

	// Reverse direction is a separate pair
	reverse := `{"source_segment_id": "` + internal.ID + `", "destination_segment_id": "` + dmz.ID + `", "action": "DENY"}`
	req = httptest.NewRequest("POST", "/api/policies", bytes.NewReader([]byte(reverse)))
	w = httptest.NewRecorder()
	handler.createPolicy(w, req)

	if w.Result().StatusCode != http.StatusCreated {
		t.Errorf("Expected status 201 for reverse pair, got %d", w.Result().StatusCode)
	}
}

func TestHandler_CreatePolicy_InvalidAction(t *testing.T) {
	handler, _ := setupTestHandler()

	dmz := createTestSegment(t, handler, "dmz", "10.0.1.0/24")
	internal := createTestSegment(t, handler, "internal", "10.0.2.0/24")

	body := `{"source_segment_id": "` + dmz.ID + `", "destination_segment_id": "` + internal.ID + `", "action": "MAYBE"}`
	req := httptest.NewRequest("POST", "/api/policies", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()
	handler.createPolicy(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Result().StatusCode)
	}
}

func TestHandler_UpdatePolicy_ClearConditions(t *testing.T) {
	handler, _ := setupTestHandler()

	dmz := createTestSegment(t, handler, "dmz", "10.0.1.0/24")
	internal := createTestSegment(t, handler, "internal", "10.0.2.0/24")

	body := `{"source_segment_id": "` + dmz.ID + `", "destination_segment_id": "` + internal.ID + `", "action": "ALLOW", "conditions": {"min_trust_score": 50}}`
	req := httptest.NewRequest("POST", "/api/policies", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()
	handler.createPolicy(w, req)

	var policy model.IsolationPolicy
	if err := json.NewDecoder(w.Result().Body).Decode(&policy); err != nil {
		t.Fatalf("Failed to decode policy response: %v", err)
	}
	if policy.Conditions == nil || policy.Conditions.MinTrustScore == nil {
		t.Fatal("Expected conditions with min_trust_score")
	}

	req = httptest.NewRequest("PUT", "/api/policies/"+policy.ID, bytes.NewReader([]byte(`{"clear_conditions": true}`)))
	req.SetPathValue("id", policy.ID)
	w = httptest.NewRecorder()
	handler.updatePolicy(w, req)

	// Decode into a fresh value; conditions are omitempty so a stale
	// pointer would mask the cleared field.
	var updated model.IsolationPolicy
	if err := json.NewDecoder(w.Result().Body).Decode(&updated); err != nil {
		t.Fatalf("Failed to decode policy response: %v", err)
	}
	if updated.Conditions != nil {
		t.Error("Expected conditions cleared")
	}
}
