// Package trust implements the device trust store: device identity and
// trust bookkeeping, plus session issuance and revocation tied to devices.
package trust

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/trustd/trustd/internal/audit"
	"github.com/trustd/trustd/internal/model"
	"github.com/trustd/trustd/internal/storage"
)

const (
	// DefaultSessionTTL is how long a session lives unless overridden
	DefaultSessionTTL = 24 * time.Hour

	// InactivityWindow is how long an ACTIVE device may go unseen before
	// the cleanup sweep marks it INACTIVE
	InactivityWindow = 30 * 24 * time.Hour
)

// Activity log action tags
const (
	actionRegistered   = "registered"
	actionUpdated      = "updated"
	actionTrustChanged = "trust_changed"
	actionCompromised  = "marked_compromised"
	actionSessionOpen  = "session_created"
)

// Store is the persistence surface the trust service needs
type Store interface {
	storage.DeviceStorage
	storage.SessionStorage
}

// Service owns device identity, trust scoring and sessions
type Service struct {
	store Store
	audit *audit.Writer
	now   func() time.Time
}

// NewService creates a trust service. audit may be nil, in which case
// activity logging is disabled.
func NewService(store Store, auditWriter *audit.Writer) *Service {
	return &Service{
		store: store,
		audit: auditWriter,
		now:   time.Now,
	}
}

// RegisterDevice creates a device with full trust and ACTIVE status.
// Registering an already-known fingerprint fails with ErrDuplicateDevice.
func (s *Service) RegisterDevice(fingerprint, name, owner string) (*model.Device, error) {
	if fingerprint == "" {
		return nil, fmt.Errorf("fingerprint is required")
	}

	now := s.now()
	device := &model.Device{
		ID:          newID(),
		Fingerprint: fingerprint,
		Name:        name,
		Owner:       owner,
		TrustScore:  model.TrustScoreInitial,
		Status:      model.StatusActive,
		LastSeen:    now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.CreateDevice(device); err != nil {
		return nil, err
	}

	s.logActivity(device.ID, actionRegistered, map[string]any{"owner": owner, "name": name})
	return device, nil
}

// GetDevice looks up a device by fingerprint. A missing device is not an
// error; it returns (nil, nil).
func (s *Service) GetDevice(fingerprint string) (*model.Device, error) {
	device, err := s.store.GetDevice(fingerprint)
	if errors.Is(err, storage.ErrDeviceNotFound) {
		return nil, nil
	}
	return device, err
}

// GetDeviceByID looks up a device by ID. A missing device returns (nil, nil).
func (s *Service) GetDeviceByID(id string) (*model.Device, error) {
	device, err := s.store.GetDeviceByID(id)
	if errors.Is(err, storage.ErrDeviceNotFound) {
		return nil, nil
	}
	return device, err
}

// GetUserDevices returns all devices for an owner, most recently seen first
func (s *Service) GetUserDevices(owner string) ([]model.Device, error) {
	return s.store.ListUserDevices(owner)
}

// UpdateDevice applies partial updates to a device's name and status and
// refreshes last_seen.
func (s *Service) UpdateDevice(fingerprint string, update model.DeviceUpdate) (*model.Device, error) {
	device, err := s.store.GetDevice(fingerprint)
	if err != nil {
		return nil, err
	}

	if update.Name != nil {
		device.Name = *update.Name
	}
	if update.Status != nil {
		if !model.ValidStatus(*update.Status) {
			return nil, fmt.Errorf("invalid device status %q", *update.Status)
		}
		device.Status = *update.Status
	}

	now := s.now()
	device.LastSeen = now
	device.UpdatedAt = now

	if err := s.store.UpdateDevice(device); err != nil {
		return nil, err
	}

	s.logActivity(device.ID, actionUpdated, nil)
	return device, nil
}

// UpdateTrustScore sets an absolute trust score, clamped to [0,100], and
// refreshes last_seen.
func (s *Service) UpdateTrustScore(fingerprint string, score int) (*model.Device, error) {
	clamped := clampScore(score)

	if err := s.store.SetTrustScore(fingerprint, clamped, s.now()); err != nil {
		return nil, err
	}

	device, err := s.store.GetDevice(fingerprint)
	if err != nil {
		return nil, err
	}

	s.logActivity(device.ID, actionTrustChanged, map[string]any{"score": clamped})
	return device, nil
}

// IncreaseTrustScore raises the trust score by delta (default +5),
// clamped to 100. The adjustment is atomic at the storage layer.
func (s *Service) IncreaseTrustScore(fingerprint string, delta int) (int, error) {
	if delta <= 0 {
		delta = model.DefaultTrustScoreIncrease
	}
	return s.adjustTrustScore(fingerprint, delta)
}

// DecreaseTrustScore lowers the trust score by delta (default -10),
// clamped to 0. The adjustment is atomic at the storage layer.
func (s *Service) DecreaseTrustScore(fingerprint string, delta int) (int, error) {
	if delta <= 0 {
		delta = model.DefaultTrustScoreDecrease
	}
	return s.adjustTrustScore(fingerprint, -delta)
}

func (s *Service) adjustTrustScore(fingerprint string, delta int) (int, error) {
	score, err := s.store.AdjustTrustScore(fingerprint, delta, s.now())
	if err != nil {
		return 0, err
	}

	if device, derr := s.store.GetDevice(fingerprint); derr == nil {
		s.logActivity(device.ID, actionTrustChanged, map[string]any{"score": score, "delta": delta})
	}

	return score, nil
}

// MarkAsCompromised sets a device's status to COMPROMISED and revokes all
// of its sessions unconditionally.
func (s *Service) MarkAsCompromised(fingerprint string) (*model.Device, error) {
	device, err := s.store.GetDevice(fingerprint)
	if err != nil {
		return nil, err
	}

	now := s.now()
	device.Status = model.StatusCompromised
	device.LastSeen = now
	device.UpdatedAt = now

	if err := s.store.UpdateDevice(device); err != nil {
		return nil, err
	}

	if err := s.store.DeleteDeviceSessions(device.ID); err != nil {
		return nil, fmt.Errorf("revoking sessions for compromised device: %w", err)
	}

	s.logActivity(device.ID, actionCompromised, nil)
	return device, nil
}

// IsDeviceTrusted reports whether a device meets the minimum trust score.
// Unknown, COMPROMISED and INACTIVE devices are never trusted. A
// non-positive minScore defaults to 50.
func (s *Service) IsDeviceTrusted(fingerprint string, minScore int) (bool, error) {
	if minScore <= 0 {
		minScore = model.DefaultMinTrustScore
	}

	device, err := s.store.GetDevice(fingerprint)
	if errors.Is(err, storage.ErrDeviceNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if device.Status == model.StatusCompromised || device.Status == model.StatusInactive {
		return false, nil
	}

	return device.TrustScore >= minScore, nil
}

// CreateSession issues a new session token for a device/user pair. A
// non-positive ttl defaults to 24 hours.
func (s *Service) CreateSession(deviceID, userID string, ttl time.Duration) (*model.DeviceSession, error) {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	token, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("generating session token: %w", err)
	}

	now := s.now()
	session := &model.DeviceSession{
		ID:        newID(),
		DeviceID:  deviceID,
		UserID:    userID,
		Token:     token,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}

	if err := s.store.CreateSession(session); err != nil {
		return nil, err
	}

	s.logActivity(deviceID, actionSessionOpen, map[string]any{"user_id": userID})
	return session, nil
}

// GetSession returns the session for a token if it has not expired.
// Expired sessions are deleted on lookup and reported as absent (nil, nil).
func (s *Service) GetSession(token string) (*model.DeviceSession, error) {
	session, err := s.store.GetSession(token)
	if errors.Is(err, storage.ErrSessionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if session.Expired(s.now()) {
		// Lazy expiry: delete-if-exists, safe to race
		if err := s.store.DeleteSession(token); err != nil {
			return nil, err
		}
		return nil, nil
	}

	return session, nil
}

// RevokeSession deletes a session by token
func (s *Service) RevokeSession(token string) error {
	return s.store.DeleteSession(token)
}

// RevokeAllSessions deletes every session for a device
func (s *Service) RevokeAllSessions(deviceID string) error {
	return s.store.DeleteDeviceSessions(deviceID)
}

// RevokeUserSessions deletes every session for a user
func (s *Service) RevokeUserSessions(userID string) error {
	return s.store.DeleteUserSessions(userID)
}

// GetDeviceSessions returns unexpired sessions for a device, newest first
func (s *Service) GetDeviceSessions(deviceID string) ([]model.DeviceSession, error) {
	return s.store.ListDeviceSessions(deviceID, s.now())
}

// LogActivity records a best-effort activity entry for a device. It never
// returns an error; logging must not break the caller's primary operation.
func (s *Service) LogActivity(deviceID, action string, details map[string]any) {
	s.logActivity(deviceID, action, details)
}

func (s *Service) logActivity(deviceID, action string, details map[string]any) {
	if s.audit == nil {
		return
	}
	s.audit.DeviceActivity(deviceID, action, details)
}

// CleanupInactiveDevices marks ACTIVE devices unseen for the inactivity
// window as INACTIVE and returns the number affected.
func (s *Service) CleanupInactiveDevices() (int64, error) {
	cutoff := s.now().Add(-InactivityWindow)
	return s.store.MarkDevicesInactive(cutoff)
}

// clampScore bounds a trust score to [0,100]
func clampScore(score int) int {
	if score < model.TrustScoreMin {
		return model.TrustScoreMin
	}
	if score > model.TrustScoreMax {
		return model.TrustScoreMax
	}
	return score
}

// generateToken returns a 256-bit random token, hex encoded
func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
