package model

import "time"

// Isolation policy actions
const (
	ActionAllow = "ALLOW"
	ActionDeny  = "DENY"
)

// NetworkSegment represents a named network range used as the unit of isolation
type NetworkSegment struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	CIDR        string    `json:"cidr"` // e.g., "10.0.1.0/24"
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SegmentUpdate holds the mutable fields of a segment. Nil means "leave as is".
type SegmentUpdate struct {
	Name        *string `json:"name,omitempty"`
	CIDR        *string `json:"cidr,omitempty"`
	Description *string `json:"description,omitempty"`
}

// PolicyConditions gates a policy on request context. A nil conditions
// object on a policy means the policy always applies.
type PolicyConditions struct {
	MinTrustScore *int     `json:"min_trust_score,omitempty"`
	AllowedRoles  []string `json:"allowed_roles,omitempty"`
}

// IsolationPolicy is a directional ALLOW/DENY rule between two segments.
// At most one policy may exist per ordered (source, destination) pair.
type IsolationPolicy struct {
	ID                   string            `json:"id"`
	SourceSegmentID      string            `json:"source_segment_id"`
	DestinationSegmentID string            `json:"destination_segment_id"`
	Action               string            `json:"action"` // ALLOW or DENY
	Conditions           *PolicyConditions `json:"conditions,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

// PolicyUpdate holds the mutable fields of a policy. Nil means "leave as is".
// SetConditions distinguishes "clear conditions" from "leave conditions".
type PolicyUpdate struct {
	Action        *string           `json:"action,omitempty"`
	Conditions    *PolicyConditions `json:"conditions,omitempty"`
	SetConditions bool              `json:"-"`
}

// ViolationLog records a denied access attempt for audit display
type ViolationLog struct {
	ID                   string         `json:"id"`
	SourceSegmentID      string         `json:"source_segment_id"`
	DestinationSegmentID string         `json:"destination_segment_id"`
	UserID               string         `json:"user_id,omitempty"`
	Details              map[string]any `json:"details,omitempty"`
	Timestamp            time.Time      `json:"timestamp"`
}

// ValidAction reports whether a is a known policy action
func ValidAction(a string) bool {
	return a == ActionAllow || a == ActionDeny
}
