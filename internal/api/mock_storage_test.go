package api

import (
	"fmt"
	"sort"
	"time"

	"github.com/trustd/trustd/internal/model"
	"github.com/trustd/trustd/internal/storage"
)

// mockStorage is a simple in-memory storage for testing
type mockStorage struct {
	devices    map[string]*model.Device // keyed by fingerprint
	sessions   map[string]*model.DeviceSession
	segments   map[string]*model.NetworkSegment
	policies   []*model.IsolationPolicy
	deviceLogs []*model.DeviceLog
	violations []*model.ViolationLog
}

func newMockStorage() *mockStorage {
	return &mockStorage{
		devices:  make(map[string]*model.Device),
		sessions: make(map[string]*model.DeviceSession),
		segments: make(map[string]*model.NetworkSegment),
	}
}

// Device storage

func (m *mockStorage) CreateDevice(device *model.Device) error {
	if _, ok := m.devices[device.Fingerprint]; ok {
		return fmt.Errorf("fingerprint %s: %w", device.Fingerprint, storage.ErrDuplicateDevice)
	}
	clone := *device
	m.devices[device.Fingerprint] = &clone
	return nil
}

func (m *mockStorage) GetDevice(fingerprint string) (*model.Device, error) {
	if d, ok := m.devices[fingerprint]; ok {
		clone := *d
		return &clone, nil
	}
	return nil, storage.ErrDeviceNotFound
}

func (m *mockStorage) GetDeviceByID(id string) (*model.Device, error) {
	for _, d := range m.devices {
		if d.ID == id {
			clone := *d
			return &clone, nil
		}
	}
	return nil, storage.ErrDeviceNotFound
}

func (m *mockStorage) ListUserDevices(owner string) ([]model.Device, error) {
	result := make([]model.Device, 0)
	for _, d := range m.devices {
		if d.Owner == owner {
			result = append(result, *d)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].LastSeen.After(result[j].LastSeen)
	})
	return result, nil
}

func (m *mockStorage) UpdateDevice(device *model.Device) error {
	if _, ok := m.devices[device.Fingerprint]; !ok {
		return storage.ErrDeviceNotFound
	}
	clone := *device
	m.devices[device.Fingerprint] = &clone
	return nil
}

func (m *mockStorage) SetTrustScore(fingerprint string, score int, seenAt time.Time) error {
	d, ok := m.devices[fingerprint]
	if !ok {
		return storage.ErrDeviceNotFound
	}
	d.TrustScore = score
	d.LastSeen = seenAt
	d.UpdatedAt = seenAt
	return nil
}

func (m *mockStorage) AdjustTrustScore(fingerprint string, delta int, seenAt time.Time) (int, error) {
	d, ok := m.devices[fingerprint]
	if !ok {
		return 0, storage.ErrDeviceNotFound
	}
	score := d.TrustScore + delta
	if score < model.TrustScoreMin {
		score = model.TrustScoreMin
	}
	if score > model.TrustScoreMax {
		score = model.TrustScoreMax
	}
	d.TrustScore = score
	d.LastSeen = seenAt
	d.UpdatedAt = seenAt
	return score, nil
}

func (m *mockStorage) MarkDevicesInactive(cutoff time.Time) (int64, error) {
	var count int64
	for _, d := range m.devices {
		if d.Status == model.StatusActive && d.LastSeen.Before(cutoff) {
			d.Status = model.StatusInactive
			count++
		}
	}
	return count, nil
}

// Session storage

func (m *mockStorage) CreateSession(session *model.DeviceSession) error {
	clone := *session
	m.sessions[session.Token] = &clone
	return nil
}

func (m *mockStorage) GetSession(token string) (*model.DeviceSession, error) {
	if s, ok := m.sessions[token]; ok {
		clone := *s
		return &clone, nil
	}
	return nil, storage.ErrSessionNotFound
}

func (m *mockStorage) DeleteSession(token string) error {
	delete(m.sessions, token)
	return nil
}

func (m *mockStorage) DeleteDeviceSessions(deviceID string) error {
	for token, s := range m.sessions {
		if s.DeviceID == deviceID {
			delete(m.sessions, token)
		}
	}
	return nil
}

func (m *mockStorage) DeleteUserSessions(userID string) error {
	for token, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, token)
		}
	}
	return nil
}

func (m *mockStorage) ListDeviceSessions(deviceID string, now time.Time) ([]model.DeviceSession, error) {
	result := make([]model.DeviceSession, 0)
	for _, s := range m.sessions {
		if s.DeviceID == deviceID && s.ExpiresAt.After(now) {
			result = append(result, *s)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (m *mockStorage) DeleteExpiredSessions(now time.Time) (int64, error) {
	var count int64
	for token, s := range m.sessions {
		if !s.ExpiresAt.After(now) {
			delete(m.sessions, token)
			count++
		}
	}
	return count, nil
}

// Segment storage

func (m *mockStorage) CreateSegment(segment *model.NetworkSegment) error {
	for _, s := range m.segments {
		if s.Name == segment.Name || s.CIDR == segment.CIDR {
			return storage.ErrDuplicateSegment
		}
	}
	clone := *segment
	m.segments[segment.ID] = &clone
	return nil
}

func (m *mockStorage) GetSegment(id string) (*model.NetworkSegment, error) {
	if s, ok := m.segments[id]; ok {
		clone := *s
		return &clone, nil
	}
	return nil, storage.ErrSegmentNotFound
}

func (m *mockStorage) ListSegments() ([]model.NetworkSegment, error) {
	result := make([]model.NetworkSegment, 0, len(m.segments))
	for _, s := range m.segments {
		result = append(result, *s)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (m *mockStorage) UpdateSegment(segment *model.NetworkSegment) error {
	if _, ok := m.segments[segment.ID]; !ok {
		return storage.ErrSegmentNotFound
	}
	clone := *segment
	m.segments[segment.ID] = &clone
	return nil
}

func (m *mockStorage) DeleteSegment(id string) error {
	if _, ok := m.segments[id]; !ok {
		return storage.ErrSegmentNotFound
	}
	kept := m.policies[:0]
	for _, p := range m.policies {
		if p.SourceSegmentID != id && p.DestinationSegmentID != id {
			kept = append(kept, p)
		}
	}
	m.policies = kept
	delete(m.segments, id)
	return nil
}

// Policy storage

func (m *mockStorage) CreatePolicy(policy *model.IsolationPolicy) error {
	if _, ok := m.segments[policy.SourceSegmentID]; !ok {
		return fmt.Errorf("source segment %s: %w", policy.SourceSegmentID, storage.ErrSegmentNotFound)
	}
	if _, ok := m.segments[policy.DestinationSegmentID]; !ok {
		return fmt.Errorf("destination segment %s: %w", policy.DestinationSegmentID, storage.ErrSegmentNotFound)
	}
	for _, p := range m.policies {
		if p.SourceSegmentID == policy.SourceSegmentID && p.DestinationSegmentID == policy.DestinationSegmentID {
			return storage.ErrDuplicatePolicy
		}
	}
	clone := *policy
	m.policies = append(m.policies, &clone)
	return nil
}

func (m *mockStorage) GetPolicy(id string) (*model.IsolationPolicy, error) {
	for _, p := range m.policies {
		if p.ID == id {
			clone := *p
			return &clone, nil
		}
	}
	return nil, storage.ErrPolicyNotFound
}

func (m *mockStorage) ListPolicies() ([]model.IsolationPolicy, error) {
	result := make([]model.IsolationPolicy, 0, len(m.policies))
	for _, p := range m.policies {
		result = append(result, *p)
	}
	return result, nil
}

func (m *mockStorage) ListPoliciesForPair(sourceID, destinationID string) ([]model.IsolationPolicy, error) {
	result := make([]model.IsolationPolicy, 0)
	for _, p := range m.policies {
		if p.SourceSegmentID == sourceID && p.DestinationSegmentID == destinationID {
			result = append(result, *p)
		}
	}
	return result, nil
}

func (m *mockStorage) UpdatePolicy(policy *model.IsolationPolicy) error {
	for i, p := range m.policies {
		if p.ID == policy.ID {
			clone := *policy
			m.policies[i] = &clone
			return nil
		}
	}
	return storage.ErrPolicyNotFound
}

func (m *mockStorage) DeletePolicy(id string) error {
	for i, p := range m.policies {
		if p.ID == id {
			m.policies = append(m.policies[:i], m.policies[i+1:]...)
			return nil
		}
	}
	return storage.ErrPolicyNotFound
}

// Audit storage

func (m *mockStorage) AppendDeviceLog(entry *model.DeviceLog) error {
	clone := *entry
	m.deviceLogs = append(m.deviceLogs, &clone)
	return nil
}

func (m *mockStorage) ListDeviceLogs(deviceID string, limit int) ([]model.DeviceLog, error) {
	result := make([]model.DeviceLog, 0)
	for i := len(m.deviceLogs) - 1; i >= 0; i-- {
		if m.deviceLogs[i].DeviceID == deviceID {
			result = append(result, *m.deviceLogs[i])
			if limit > 0 && len(result) == limit {
				break
			}
		}
	}
	return result, nil
}

func (m *mockStorage) AppendViolation(entry *model.ViolationLog) error {
	clone := *entry
	m.violations = append(m.violations, &clone)
	return nil
}

func (m *mockStorage) ListViolations(limit int) ([]model.ViolationLog, error) {
	result := make([]model.ViolationLog, 0)
	for i := len(m.violations) - 1; i >= 0; i-- {
		result = append(result, *m.violations[i])
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

func (m *mockStorage) Close() error {
	return nil
}
