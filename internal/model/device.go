package model

import (
	"time"
)

// Device status values
const (
	StatusActive      = "ACTIVE"
	StatusInactive    = "INACTIVE"
	StatusCompromised = "COMPROMISED"
)

// Trust score bounds and defaults
const (
	TrustScoreMin     = 0
	TrustScoreMax     = 100
	TrustScoreInitial = 100

	// Default thresholds and deltas for trust operations
	DefaultMinTrustScore      = 50
	DefaultTrustScoreIncrease = 5
	DefaultTrustScoreDecrease = 10
)

// Device represents a registered device identified by its fingerprint
type Device struct {
	ID          string    `json:"id"`
	Fingerprint string    `json:"fingerprint"`
	Name        string    `json:"name"`
	Owner       string    `json:"owner"`
	TrustScore  int       `json:"trust_score"` // always within [0,100]
	Status      string    `json:"status"`      // ACTIVE, INACTIVE, COMPROMISED
	LastSeen    time.Time `json:"last_seen"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DeviceSession represents an authenticated user session bound to a device
type DeviceSession struct {
	ID        string    `json:"id"`
	DeviceID  string    `json:"device_id"`
	UserID    string    `json:"user_id"`
	Token     string    `json:"token"` // 256-bit random, hex encoded
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Expired reports whether the session has passed its expiry time
func (s *DeviceSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// DeviceLog is an append-only activity record for a device
type DeviceLog struct {
	ID        string         `json:"id"`
	DeviceID  string         `json:"device_id"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// FingerprintAttributes holds the client/network attributes a fingerprint
// is derived from. Absent fields default to "unknown".
type FingerprintAttributes struct {
	UserAgent        string `json:"user_agent,omitempty"`
	IPAddress        string `json:"ip_address,omitempty"`
	ScreenResolution string `json:"screen_resolution,omitempty"`
	Timezone         string `json:"timezone,omitempty"`
	Language         string `json:"language,omitempty"`
	Platform         string `json:"platform,omitempty"`
}

// DeviceUpdate holds the mutable fields of a device. Nil means "leave as is".
type DeviceUpdate struct {
	Name   *string `json:"name,omitempty"`
	Status *string `json:"status,omitempty"`
}

// ValidStatus reports whether s is one of the known device statuses
func ValidStatus(s string) bool {
	switch s {
	case StatusActive, StatusInactive, StatusCompromised:
		return true
	}
	return false
}
