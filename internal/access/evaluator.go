// Package access turns connection context into an allow/deny decision
// against the persisted isolation policies. Evaluation is stateless and
// default-deny: a segment pair with no policy is never allowed.
package access

import (
	"context"

	"github.com/trustd/trustd/internal/audit"
	"github.com/trustd/trustd/internal/model"
)

// Deny reasons returned with decisions. Reasons are part of the audit
// surface; callers display them verbatim.
const (
	ReasonNoPolicy     = "no policy defined for this segment pair"
	ReasonPolicyDenied = "access denied by policy"
	ReasonNoMatch      = "no matching policy allows this access"
	ReasonAllowed      = "allowed by policy"
)

// PolicyReader is the read surface the evaluator needs
type PolicyReader interface {
	GetPoliciesForPair(sourceSegmentID, destinationSegmentID string) ([]model.IsolationPolicy, error)
}

// RoleChecker reports whether a user holds one of the allowed roles.
// TODO: wire a real role service; until then the default checker always
// succeeds, matching the stubbed allowed_roles condition.
type RoleChecker func(ctx context.Context, userID string, allowedRoles []string) bool

// Request is the connection context to evaluate
type Request struct {
	SourceSegmentID      string `json:"source_segment_id"`
	DestinationSegmentID string `json:"destination_segment_id"`
	UserID               string `json:"user_id,omitempty"`
	// DeviceTrustScore is nil when the caller has no device context. A
	// policy requiring a minimum trust score is then not satisfied.
	DeviceTrustScore *int `json:"device_trust_score,omitempty"`
}

// Decision is the evaluation outcome. A deny is a normal return value,
// not an error, and always carries a display-ready reason.
type Decision struct {
	Allowed  bool   `json:"allowed"`
	Reason   string `json:"reason"`
	PolicyID string `json:"policy_id,omitempty"`
}

// Evaluator resolves access requests against stored policies
type Evaluator struct {
	policies PolicyReader
	roles    RoleChecker
	audit    *audit.Writer
}

// NewEvaluator creates an evaluator. roleChecker may be nil, in which case
// role conditions always pass. auditWriter may be nil to disable violation
// logging.
func NewEvaluator(policies PolicyReader, roleChecker RoleChecker, auditWriter *audit.Writer) *Evaluator {
	if roleChecker == nil {
		roleChecker = func(context.Context, string, []string) bool { return true }
	}
	return &Evaluator{
		policies: policies,
		roles:    roleChecker,
		audit:    auditWriter,
	}
}

// Evaluate resolves a request to an allow/deny decision. Policies for the
// exact ordered segment pair are checked in store order; the first policy
// whose conditions are satisfied is authoritative (first-match-wins, not
// deny-overrides). No policies, or no satisfied conditions, means deny.
func (e *Evaluator) Evaluate(ctx context.Context, req Request) (*Decision, error) {
	policies, err := e.policies.GetPoliciesForPair(req.SourceSegmentID, req.DestinationSegmentID)
	if err != nil {
		return nil, err
	}

	if len(policies) == 0 {
		return &Decision{Allowed: false, Reason: ReasonNoPolicy}, nil
	}

	for _, policy := range policies {
		if !e.conditionsSatisfied(ctx, &policy, req) {
			continue
		}

		if policy.Action == model.ActionAllow {
			return &Decision{Allowed: true, Reason: ReasonAllowed, PolicyID: policy.ID}, nil
		}
		return &Decision{Allowed: false, Reason: ReasonPolicyDenied, PolicyID: policy.ID}, nil
	}

	return &Decision{Allowed: false, Reason: ReasonNoMatch}, nil
}

// conditionsSatisfied checks a policy's conditions against the request.
// A policy without conditions always applies.
func (e *Evaluator) conditionsSatisfied(ctx context.Context, policy *model.IsolationPolicy, req Request) bool {
	conditions := policy.Conditions
	if conditions == nil {
		return true
	}

	if conditions.MinTrustScore != nil {
		// Conservative: a request without a trust score never meets a
		// trust threshold.
		if req.DeviceTrustScore == nil {
			return false
		}
		if *req.DeviceTrustScore < *conditions.MinTrustScore {
			return false
		}
	}

	if len(conditions.AllowedRoles) > 0 && req.UserID != "" {
		if !e.roles(ctx, req.UserID, conditions.AllowedRoles) {
			return false
		}
	}

	return true
}

// LogViolation records a denied access attempt. Fire-and-forget: failures
// never affect the decision already returned to the caller.
func (e *Evaluator) LogViolation(sourceSegmentID, destinationSegmentID, userID string, details map[string]any) {
	if e.audit == nil {
		return
	}
	e.audit.Violation(sourceSegmentID, destinationSegmentID, userID, details)
}
