// Package netseg manages network segments and the directional isolation
// policies between them, with referential integrity.
package netseg

import (
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/trustd/trustd/internal/model"
	"github.com/trustd/trustd/internal/storage"
)

// Store is the persistence surface the segment/policy service needs
type Store interface {
	storage.SegmentStorage
	storage.PolicyStorage
}

// Service owns segment and policy administration
type Service struct {
	store Store
	now   func() time.Time
}

// NewService creates a segment/policy service
func NewService(store Store) *Service {
	return &Service{
		store: store,
		now:   time.Now,
	}
}

// CreateSegment creates a named network segment. The name and CIDR must
// both be unused; the CIDR must parse.
func (s *Service) CreateSegment(name, cidr, description string) (*model.NetworkSegment, error) {
	if name == "" {
		return nil, fmt.Errorf("segment name is required")
	}
	if _, _, err := net.ParseCIDR(cidr); err != nil {
		return nil, fmt.Errorf("invalid CIDR %q: %w", cidr, err)
	}

	now := s.now()
	segment := &model.NetworkSegment{
		ID:          newID(),
		Name:        name,
		CIDR:        cidr,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.CreateSegment(segment); err != nil {
		return nil, err
	}

	return segment, nil
}

// GetSegment retrieves a segment by ID
func (s *Service) GetSegment(id string) (*model.NetworkSegment, error) {
	return s.store.GetSegment(id)
}

// GetAllSegments returns all segments, newest first
func (s *Service) GetAllSegments() ([]model.NetworkSegment, error) {
	return s.store.ListSegments()
}

// UpdateSegment applies partial updates to a segment
func (s *Service) UpdateSegment(id string, update model.SegmentUpdate) (*model.NetworkSegment, error) {
	segment, err := s.store.GetSegment(id)
	if err != nil {
		return nil, err
	}

	if update.Name != nil {
		if *update.Name == "" {
			return nil, fmt.Errorf("segment name is required")
		}
		segment.Name = *update.Name
	}
	if update.CIDR != nil {
		if _, _, err := net.ParseCIDR(*update.CIDR); err != nil {
			return nil, fmt.Errorf("invalid CIDR %q: %w", *update.CIDR, err)
		}
		segment.CIDR = *update.CIDR
	}
	if update.Description != nil {
		segment.Description = *update.Description
	}

	segment.UpdatedAt = s.now()

	if err := s.store.UpdateSegment(segment); err != nil {
		return nil, err
	}

	return segment, nil
}

// DeleteSegment removes a segment. Every policy referencing it as source
// or destination is deleted first (cascade).
func (s *Service) DeleteSegment(id string) error {
	return s.store.DeleteSegment(id)
}

// CreatePolicy creates a directional policy between two existing segments.
// At most one policy may exist per ordered (source, destination) pair.
func (s *Service) CreatePolicy(sourceSegmentID, destinationSegmentID, action string, conditions *model.PolicyConditions) (*model.IsolationPolicy, error) {
	if !model.ValidAction(action) {
		return nil, fmt.Errorf("invalid policy action %q (must be ALLOW or DENY)", action)
	}

	now := s.now()
	policy := &model.IsolationPolicy{
		ID:                   newID(),
		SourceSegmentID:      sourceSegmentID,
		DestinationSegmentID: destinationSegmentID,
		Action:               action,
		Conditions:           conditions,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := s.store.CreatePolicy(policy); err != nil {
		return nil, err
	}

	return policy, nil
}

// GetPolicy retrieves a policy by ID
func (s *Service) GetPolicy(id string) (*model.IsolationPolicy, error) {
	return s.store.GetPolicy(id)
}

// GetAllPolicies returns all policies, newest first
func (s *Service) GetAllPolicies() ([]model.IsolationPolicy, error) {
	return s.store.ListPolicies()
}

// GetPoliciesForPair returns policies for the exact ordered segment pair.
// Creation enforces at most one, but callers still get a slice: the
// evaluator's iteration logic is the documented fallback should the
// uniqueness constraint ever be relaxed.
func (s *Service) GetPoliciesForPair(sourceSegmentID, destinationSegmentID string) ([]model.IsolationPolicy, error) {
	return s.store.ListPoliciesForPair(sourceSegmentID, destinationSegmentID)
}

// UpdatePolicy applies partial updates to a policy's action and conditions
func (s *Service) UpdatePolicy(id string, update model.PolicyUpdate) (*model.IsolationPolicy, error) {
	policy, err := s.store.GetPolicy(id)
	if err != nil {
		return nil, err
	}

	if update.Action != nil {
		if !model.ValidAction(*update.Action) {
			return nil, fmt.Errorf("invalid policy action %q (must be ALLOW or DENY)", *update.Action)
		}
		policy.Action = *update.Action
	}
	if update.SetConditions {
		policy.Conditions = update.Conditions
	}

	policy.UpdatedAt = s.now()

	if err := s.store.UpdatePolicy(policy); err != nil {
		return nil, err
	}

	return policy, nil
}

// DeletePolicy removes a policy by ID
func (s *Service) DeletePolicy(id string) error {
	return s.store.DeletePolicy(id)
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
