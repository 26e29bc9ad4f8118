package audit

import (
	"sync"
	"testing"

	"github.com/trustd/trustd/internal/model"
)

type memAuditStore struct {
	mu         sync.Mutex
	deviceLogs []*model.DeviceLog
	violations []*model.ViolationLog
}

func (m *memAuditStore) AppendDeviceLog(entry *model.DeviceLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deviceLogs = append(m.deviceLogs, entry)
	return nil
}

func (m *memAuditStore) ListDeviceLogs(deviceID string, limit int) ([]model.DeviceLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]model.DeviceLog, 0)
	for _, e := range m.deviceLogs {
		if e.DeviceID == deviceID {
			result = append(result, *e)
		}
	}
	return result, nil
}

func (m *memAuditStore) AppendViolation(entry *model.ViolationLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.violations = append(m.violations, entry)
	return nil
}

func (m *memAuditStore) ListViolations(limit int) ([]model.ViolationLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]model.ViolationLog, 0, len(m.violations))
	for _, e := range m.violations {
		result = append(result, *e)
	}
	return result, nil
}

func TestWriter_StopDrainsQueue(t *testing.T) {
	store := &memAuditStore{}
	writer := NewWriter(store, 10)
	writer.Start()

	writer.DeviceActivity("dev-1", "registered", map[string]any{"owner": "alice"})
	writer.DeviceActivity("dev-1", "trust_changed", nil)
	writer.Violation("seg-a", "seg-b", "mallory", map[string]any{"reason": "denied"})

	writer.Stop()

	if len(store.deviceLogs) != 2 {
		t.Errorf("Expected 2 device logs, got %d", len(store.deviceLogs))
	}
	if len(store.violations) != 1 {
		t.Fatalf("Expected 1 violation, got %d", len(store.violations))
	}
	if store.violations[0].UserID != "mallory" {
		t.Errorf("Unexpected violation: %+v", store.violations[0])
	}
	for _, e := range store.deviceLogs {
		if e.ID == "" {
			t.Error("Expected generated entry IDs")
		}
	}
}

func TestWriter_FullQueueDropsEntries(t *testing.T) {
	store := &memAuditStore{}
	writer := NewWriter(store, 2)

	// Not started, so nothing consumes the queue; the third append must
	// drop instead of blocking.
	writer.DeviceActivity("dev-1", "a", nil)
	writer.DeviceActivity("dev-1", "b", nil)
	writer.DeviceActivity("dev-1", "c", nil)

	writer.Start()
	writer.Stop()

	if len(store.deviceLogs) != 2 {
		t.Errorf("Expected 2 entries after overflow, got %d", len(store.deviceLogs))
	}
}

func TestWriter_StopIdempotent(t *testing.T) {
	writer := NewWriter(&memAuditStore{}, 0)
	writer.Start()
	writer.Start()
	writer.Stop()
	writer.Stop()
}
