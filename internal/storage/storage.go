package storage

import (
	"errors"
	"time"

	"github.com/trustd/trustd/internal/model"
)

var (
	ErrDeviceNotFound   = errors.New("device not found")
	ErrDuplicateDevice  = errors.New("device fingerprint already registered")
	ErrSessionNotFound  = errors.New("session not found")
	ErrSegmentNotFound  = errors.New("network segment not found")
	ErrDuplicateSegment = errors.New("network segment already exists")
	ErrPolicyNotFound   = errors.New("isolation policy not found")
	ErrDuplicatePolicy  = errors.New("isolation policy already exists for segment pair")
	ErrInvalidID        = errors.New("invalid ID")
)

// DeviceStorage persists device records
type DeviceStorage interface {
	CreateDevice(device *model.Device) error
	GetDevice(fingerprint string) (*model.Device, error)
	GetDeviceByID(id string) (*model.Device, error)
	ListUserDevices(owner string) ([]model.Device, error)
	UpdateDevice(device *model.Device) error
	// SetTrustScore writes an absolute (pre-clamped) score and refreshes last_seen
	SetTrustScore(fingerprint string, score int, seenAt time.Time) error
	// AdjustTrustScore applies a delta and clamps to [0,100] in a single
	// statement, returning the resulting score. Concurrent adjustments
	// cannot lose updates.
	AdjustTrustScore(fingerprint string, delta int, seenAt time.Time) (int, error)
	// MarkDevicesInactive flips ACTIVE devices not seen since the cutoff to
	// INACTIVE and returns the number of rows affected.
	MarkDevicesInactive(cutoff time.Time) (int64, error)
}

// SessionStorage persists device sessions. Expiry policy lives in the
// trust service; these operations work on raw rows.
type SessionStorage interface {
	CreateSession(session *model.DeviceSession) error
	GetSession(token string) (*model.DeviceSession, error)
	DeleteSession(token string) error
	DeleteDeviceSessions(deviceID string) error
	DeleteUserSessions(userID string) error
	// ListDeviceSessions returns sessions expiring after now, newest first
	ListDeviceSessions(deviceID string, now time.Time) ([]model.DeviceSession, error)
	DeleteExpiredSessions(now time.Time) (int64, error)
}

// SegmentStorage persists network segments
type SegmentStorage interface {
	CreateSegment(segment *model.NetworkSegment) error
	GetSegment(id string) (*model.NetworkSegment, error)
	ListSegments() ([]model.NetworkSegment, error)
	UpdateSegment(segment *model.NetworkSegment) error
	// DeleteSegment removes every policy referencing the segment as source
	// or destination, then the segment itself, in one transaction.
	DeleteSegment(id string) error
}

// PolicyStorage persists isolation policies
type PolicyStorage interface {
	CreatePolicy(policy *model.IsolationPolicy) error
	GetPolicy(id string) (*model.IsolationPolicy, error)
	ListPolicies() ([]model.IsolationPolicy, error)
	ListPoliciesForPair(sourceID, destinationID string) ([]model.IsolationPolicy, error)
	UpdatePolicy(policy *model.IsolationPolicy) error
	DeletePolicy(id string) error
}

// AuditStorage persists append-only activity and violation logs
type AuditStorage interface {
	AppendDeviceLog(entry *model.DeviceLog) error
	ListDeviceLogs(deviceID string, limit int) ([]model.DeviceLog, error)
	AppendViolation(entry *model.ViolationLog) error
	ListViolations(limit int) ([]model.ViolationLog, error)
}

// Storage is the full persistence interface for trustd
type Storage interface {
	DeviceStorage
	SessionStorage
	SegmentStorage
	PolicyStorage
	AuditStorage
	Close() error
}
