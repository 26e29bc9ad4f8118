package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/trustd/trustd/internal/access"
	"github.com/trustd/trustd/internal/audit"
	"github.com/trustd/trustd/internal/model"
	"github.com/trustd/trustd/internal/netseg"
	"github.com/trustd/trustd/internal/trust"
)

// The netseg service is the evaluator's policy source
var _ access.PolicyReader = (*netseg.Service)(nil)

func evaluate(t *testing.T, handler *Handler, body string) access.Decision {
	t.Helper()

	req := httptest.NewRequest("POST", "/api/access/evaluate", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()
	handler.evaluateAccess(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Result().StatusCode)
	}

	var decision access.Decision
	if err := json.NewDecoder(w.Result().Body).Decode(&decision); err != nil {
		t.Fatalf("Failed to decode decision: %v", err)
	}
	return decision
}

func TestHandler_EvaluateAccess_DefaultDeny(t *testing.T) {
	handler, _ := setupTestHandler()

	dmz := createTestSegment(t, handler, "dmz", "10.0.1.0/24")
	internal := createTestSegment(t, handler, "internal", "10.0.2.0/24")

	body := `{"source_segment_id": "` + dmz.ID + `", "destination_segment_id": "` + internal.ID + `"}`
	decision := evaluate(t, handler, body)

	if decision.Allowed {
		t.Error("Expected deny with no policy defined")
	}
	if decision.Reason != access.ReasonNoPolicy {
		t.Errorf("Expected reason %q, got %q", access.ReasonNoPolicy, decision.Reason)
	}
}

func TestHandler_EvaluateAccess_MissingSegmentIDs(t *testing.T) {
	handler, _ := setupTestHandler()

	req := httptest.NewRequest("POST", "/api/access/evaluate", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()
	handler.evaluateAccess(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Result().StatusCode)
	}
}

func TestHandler_EvaluateAccess_LogsViolation(t *testing.T) {
	store := newMockStorage()
	writer := audit.NewWriter(store, 10)
	writer.Start()

	trustService := trust.NewService(store, writer)
	netsegService := netseg.NewService(store)
	evaluator := access.NewEvaluator(netsegService, nil, writer)
	handler := NewHandler(trustService, netsegService, evaluator, store)

	dmz := createTestSegment(t, handler, "dmz", "10.0.1.0/24")
	internal := createTestSegment(t, handler, "internal", "10.0.2.0/24")

	body := `{"source_segment_id": "` + dmz.ID + `", "destination_segment_id": "` + internal.ID + `", "user_id": "mallory", "log_violation": true}`
	decision := evaluate(t, handler, body)

	if decision.Allowed {
		t.Error("Expected deny")
	}

	// Stop drains the queue before we inspect the store
	writer.Stop()

	if len(store.violations) != 1 {
		t.Fatalf("Expected 1 violation recorded, got %d", len(store.violations))
	}
	if store.violations[0].UserID != "mallory" {
		t.Errorf("Expected violation user 'mallory', got %s", store.violations[0].UserID)
	}
	if store.violations[0].Details["reason"] != access.ReasonNoPolicy {
		t.Errorf("Expected violation reason %q, got %v", access.ReasonNoPolicy, store.violations[0].Details["reason"])
	}
}

// TestAccessScenario walks the full flow through the routing table: register
// a device, define segments and a conditional policy, evaluate with a high
// trust score, degrade the device, and evaluate again.
func TestAccessScenario(t *testing.T) {
	handler, _ := setupTestHandler()

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	do := func(method, path, body string, out any) int {
		t.Helper()
		var req *http.Request
		if body != "" {
			req = httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
			req.Header.Set("Content-Type", "application/json")
		} else {
			req = httptest.NewRequest(method, path, nil)
		}
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)
		if out != nil {
			if err := json.NewDecoder(w.Result().Body).Decode(out); err != nil {
				t.Fatalf("%s %s: failed to decode response: %v", method, path, err)
			}
		}
		return w.Result().StatusCode
	}

	// Register a device with full trust
	var device model.Device
	if status := do("POST", "/api/devices", `{"fingerprint": "scenario-fp", "owner": "alice"}`, &device); status != http.StatusCreated {
		t.Fatalf("register device: status %d", status)
	}

	// Define the two segments
	var dmz, internal model.NetworkSegment
	if status := do("POST", "/api/segments", `{"name": "dmz", "cidr": "10.0.1.0/24"}`, &dmz); status != http.StatusCreated {
		t.Fatalf("create dmz: status %d", status)
	}
	if status := do("POST", "/api/segments", `{"name": "internal", "cidr": "10.0.2.0/24"}`, &internal); status != http.StatusCreated {
		t.Fatalf("create internal: status %d", status)
	}

	// Allow dmz -> internal for devices with trust >= 50
	policyBody := `{"source_segment_id": "` + dmz.ID + `", "destination_segment_id": "` + internal.ID + `", "action": "ALLOW", "conditions": {"min_trust_score": 50}}`
	if status := do("POST", "/api/policies", policyBody, nil); status != http.StatusCreated {
		t.Fatalf("create policy: status %d", status)
	}

	// A device at trust 80 gets through
	var decision access.Decision
	evalBody := `{"source_segment_id": "` + dmz.ID + `", "destination_segment_id": "` + internal.ID + `", "device_trust_score": 80}`
	if status := do("POST", "/api/access/evaluate", evalBody, &decision); status != http.StatusOK {
		t.Fatalf("evaluate: status %d", status)
	}
	if !decision.Allowed {
		t.Fatalf("Expected allow at trust 80, got deny (%s)", decision.Reason)
	}

	// Degrade the device below the threshold
	if status := do("POST", "/api/devices/scenario-fp/trust", `{"score": 40}`, &device); status != http.StatusOK {
		t.Fatalf("set trust: status %d", status)
	}
	if device.TrustScore != 40 {
		t.Fatalf("Expected trust 40, got %d", device.TrustScore)
	}

	// Same request with the degraded score is denied
	evalBody = `{"source_segment_id": "` + dmz.ID + `", "destination_segment_id": "` + internal.ID + `", "device_trust_score": 40}`
	if status := do("POST", "/api/access/evaluate", evalBody, &decision); status != http.StatusOK {
		t.Fatalf("evaluate: status %d", status)
	}
	if decision.Allowed {
		t.Fatal("Expected deny at trust 40")
	}
	if decision.Reason != access.ReasonNoMatch {
		t.Errorf("Expected reason %q, got %q", access.ReasonNoMatch, decision.Reason)
	}
}
