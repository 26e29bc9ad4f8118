// Package mcp exposes trustd administration as MCP tools: device trust
// management, segment/policy administration, and ad-hoc access evaluation.
package mcp

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/paularlott/mcp"
	"github.com/trustd/trustd/internal/access"
	"github.com/trustd/trustd/internal/log"
	"github.com/trustd/trustd/internal/model"
	"github.com/trustd/trustd/internal/netseg"
	"github.com/trustd/trustd/internal/trust"
)

// Server wraps the MCP server with the trustd services
type Server struct {
	mcpServer   *mcp.Server
	trust       *trust.Service
	netseg      *netseg.Service
	evaluator   *access.Evaluator
	bearerToken string
}

// NewServer creates a new MCP server for trustd administration
func NewServer(trustService *trust.Service, netsegService *netseg.Service, evaluator *access.Evaluator, bearerToken string) *Server {
	s := &Server{
		mcpServer:   mcp.NewServer("trustd", "1.0.0"),
		trust:       trustService,
		netseg:      netsegService,
		evaluator:   evaluator,
		bearerToken: bearerToken,
	}
	s.registerTools()
	return s
}

// registerTools registers all administration tools
func (s *Server) registerTools() {
	// Device tools

	s.mcpServer.RegisterTool(
		mcp.NewTool("device_register", "Register a new device. The fingerprint identifies the device; registering a known fingerprint fails.",
			mcp.String("fingerprint", "Device fingerprint (SHA-256 hex)", mcp.Required()),
			mcp.String("name", "Device display name"),
			mcp.String("owner", "Owning user identifier", mcp.Required()),
		),
		s.handleDeviceRegister,
	)

	s.mcpServer.RegisterTool(
		mcp.NewTool("device_get", "Get a device by fingerprint",
			mcp.String("fingerprint", "Device fingerprint", mcp.Required()),
		),
		s.handleDeviceGet,
	)

	s.mcpServer.RegisterTool(
		mcp.NewTool("device_list", "List all devices owned by a user, most recently seen first",
			mcp.String("owner", "Owning user identifier", mcp.Required()),
		),
		s.handleDeviceList,
	)

	s.mcpServer.RegisterTool(
		mcp.NewTool("device_trust_set", "Set a device's trust score (clamped to 0-100)",
			mcp.String("fingerprint", "Device fingerprint", mcp.Required()),
			mcp.String("score", "New trust score", mcp.Required()),
		),
		s.handleTrustSet,
	)

	s.mcpServer.RegisterTool(
		mcp.NewTool("device_trust_adjust", "Adjust a device's trust score by a signed delta (e.g. 5 or -10), clamped to 0-100",
			mcp.String("fingerprint", "Device fingerprint", mcp.Required()),
			mcp.String("delta", "Signed score delta", mcp.Required()),
		),
		s.handleTrustAdjust,
	)

	s.mcpServer.RegisterTool(
		mcp.NewTool("device_compromise", "Mark a device as COMPROMISED and revoke all of its sessions",
			mcp.String("fingerprint", "Device fingerprint", mcp.Required()),
		),
		s.handleDeviceCompromise,
	)

	// Segment tools

	s.mcpServer.RegisterTool(
		mcp.NewTool("segment_save", "Create a new network segment or update an existing one. If id is provided and exists, it updates; otherwise creates new.",
			mcp.String("id", "Segment ID (if updating an existing segment)"),
			mcp.String("name", "Segment name", mcp.Required()),
			mcp.String("cidr", "Segment CIDR, e.g. 10.0.1.0/24 (required when creating)"),
			mcp.String("description", "Segment description"),
		),
		s.handleSegmentSave,
	)

	s.mcpServer.RegisterTool(
		mcp.NewTool("segment_list", "List all network segments, newest first"),
		s.handleSegmentList,
	)

	s.mcpServer.RegisterTool(
		mcp.NewTool("segment_delete", "Delete a network segment and every policy referencing it",
			mcp.String("id", "Segment ID", mcp.Required()),
		),
		s.handleSegmentDelete,
	)

	// Policy tools

	s.mcpServer.RegisterTool(
		mcp.NewTool("policy_save", "Create an isolation policy between two segments, or update an existing one by id. Policies are directional; at most one per ordered pair.",
			mcp.String("id", "Policy ID (if updating an existing policy)"),
			mcp.String("source_segment_id", "Source segment ID"),
			mcp.String("destination_segment_id", "Destination segment ID"),
			mcp.String("action", "ALLOW or DENY", mcp.Required()),
			mcp.String("min_trust_score", "Minimum device trust score condition (optional)"),
			mcp.StringArray("allowed_roles", "Roles permitted by this policy (optional)"),
		),
		s.handlePolicySave,
	)

	s.mcpServer.RegisterTool(
		mcp.NewTool("policy_list", "List isolation policies, optionally filtered to an exact ordered segment pair",
			mcp.String("source_segment_id", "Source segment ID filter"),
			mcp.String("destination_segment_id", "Destination segment ID filter"),
		),
		s.handlePolicyList,
	)

	s.mcpServer.RegisterTool(
		mcp.NewTool("policy_delete", "Delete an isolation policy",
			mcp.String("id", "Policy ID", mcp.Required()),
		),
		s.handlePolicyDelete,
	)

	// Evaluation

	s.mcpServer.RegisterTool(
		mcp.NewTool("access_evaluate", "Evaluate whether traffic from one segment to another is allowed. Default-deny: no policy means DENY.",
			mcp.String("source_segment_id", "Source segment ID", mcp.Required()),
			mcp.String("destination_segment_id", "Destination segment ID", mcp.Required()),
			mcp.String("user_id", "Requesting user (optional)"),
			mcp.String("device_trust_score", "Device trust score of the requester (optional)"),
		),
		s.handleAccessEvaluate,
	)
}

// Device handlers

func (s *Server) handleDeviceRegister(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	fingerprint, err := req.String("fingerprint")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("fingerprint is required: " + err.Error())
	}
	owner, err := req.String("owner")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("owner is required: " + err.Error())
	}
	name := req.StringOr("name", "")

	device, err := s.trust.RegisterDevice(fingerprint, name, owner)
	if err != nil {
		log.Error("MCP device registration failed", "error", err, "fingerprint", fingerprint)
		return nil, mcp.NewToolErrorInternal("failed to register device: " + err.Error())
	}

	log.Info("MCP device registered", "id", device.ID, "owner", owner)
	return mcp.NewToolResponseText(fmt.Sprintf("Device registered: %s (ID: %s, trust: %d)", device.Fingerprint, device.ID, device.TrustScore)), nil
}

func (s *Server) handleDeviceGet(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	fingerprint, err := req.String("fingerprint")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("fingerprint is required: " + err.Error())
	}

	device, err := s.trust.GetDevice(fingerprint)
	if err != nil {
		log.Error("MCP device get failed", "error", err, "fingerprint", fingerprint)
		return nil, mcp.NewToolErrorInternal("failed to get device: " + err.Error())
	}
	if device == nil {
		return mcp.NewToolResponseText("No device found for fingerprint " + fingerprint), nil
	}

	return mcp.NewToolResponseText(formatDeviceSummary(device)), nil
}

func (s *Server) handleDeviceList(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	owner, err := req.String("owner")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("owner is required: " + err.Error())
	}

	devices, err := s.trust.GetUserDevices(owner)
	if err != nil {
		log.Error("MCP device list failed", "error", err, "owner", owner)
		return nil, mcp.NewToolErrorInternal("failed to list devices: " + err.Error())
	}

	if len(devices) == 0 {
		return mcp.NewToolResponseText("No devices found for owner " + owner), nil
	}

	var result strings.Builder
	result.WriteString(fmt.Sprintf("Found %d device(s):\n\n", len(devices)))
	for i := range devices {
		result.WriteString(formatDeviceSummary(&devices[i]))
		result.WriteString("\n")
	}
	return mcp.NewToolResponseText(result.String()), nil
}

func (s *Server) handleTrustSet(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	fingerprint, err := req.String("fingerprint")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("fingerprint is required: " + err.Error())
	}
	score, err := intParam(req, "score")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams(err.Error())
	}

	device, err := s.trust.UpdateTrustScore(fingerprint, score)
	if err != nil {
		log.Error("MCP trust set failed", "error", err, "fingerprint", fingerprint)
		return nil, mcp.NewToolErrorInternal("failed to set trust score: " + err.Error())
	}

	log.Info("MCP trust score set", "fingerprint", fingerprint, "score", device.TrustScore)
	return mcp.NewToolResponseText(fmt.Sprintf("Trust score for %s is now %d", fingerprint, device.TrustScore)), nil
}

func (s *Server) handleTrustAdjust(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	fingerprint, err := req.String("fingerprint")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("fingerprint is required: " + err.Error())
	}
	delta, err := intParam(req, "delta")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams(err.Error())
	}

	var score int
	if delta >= 0 {
		score, err = s.trust.IncreaseTrustScore(fingerprint, delta)
	} else {
		score, err = s.trust.DecreaseTrustScore(fingerprint, -delta)
	}
	if err != nil {
		log.Error("MCP trust adjust failed", "error", err, "fingerprint", fingerprint)
		return nil, mcp.NewToolErrorInternal("failed to adjust trust score: " + err.Error())
	}

	log.Info("MCP trust score adjusted", "fingerprint", fingerprint, "delta", delta, "score", score)
	return mcp.NewToolResponseText(fmt.Sprintf("Trust score for %s is now %d", fingerprint, score)), nil
}

func (s *Server) handleDeviceCompromise(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	fingerprint, err := req.String("fingerprint")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("fingerprint is required: " + err.Error())
	}

	device, err := s.trust.MarkAsCompromised(fingerprint)
	if err != nil {
		log.Error("MCP device compromise failed", "error", err, "fingerprint", fingerprint)
		return nil, mcp.NewToolErrorInternal("failed to mark device compromised: " + err.Error())
	}

	log.Warn("MCP device marked compromised", "id", device.ID, "fingerprint", fingerprint)
	return mcp.NewToolResponseText(fmt.Sprintf("Device %s marked COMPROMISED; all sessions revoked", fingerprint)), nil
}

// Segment handlers

func (s *Server) handleSegmentSave(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	name, err := req.String("name")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("name is required: " + err.Error())
	}
	id := req.StringOr("id", "")
	cidr := req.StringOr("cidr", "")
	description := req.StringOr("description", "")

	if id != "" {
		update := model.SegmentUpdate{Name: &name}
		if cidr != "" {
			update.CIDR = &cidr
		}
		if description != "" {
			update.Description = &description
		}

		segment, err := s.netseg.UpdateSegment(id, update)
		if err != nil {
			log.Error("MCP segment update failed", "error", err, "id", id)
			return nil, mcp.NewToolErrorInternal("failed to update segment: " + err.Error())
		}

		log.Info("MCP segment updated", "id", segment.ID, "name", segment.Name)
		return mcp.NewToolResponseText(fmt.Sprintf("Segment updated: %s (ID: %s)", segment.Name, segment.ID)), nil
	}

	if cidr == "" {
		return nil, mcp.NewToolErrorInvalidParams("cidr is required when creating a segment")
	}

	segment, err := s.netseg.CreateSegment(name, cidr, description)
	if err != nil {
		log.Error("MCP segment creation failed", "error", err, "name", name)
		return nil, mcp.NewToolErrorInternal("failed to create segment: " + err.Error())
	}

	log.Info("MCP segment created", "id", segment.ID, "name", segment.Name)
	return mcp.NewToolResponseText(fmt.Sprintf("Segment created: %s (ID: %s, CIDR: %s)", segment.Name, segment.ID, segment.CIDR)), nil
}

func (s *Server) handleSegmentList(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	segments, err := s.netseg.GetAllSegments()
	if err != nil {
		log.Error("MCP segment list failed", "error", err)
		return nil, mcp.NewToolErrorInternal("failed to list segments: " + err.Error())
	}

	if len(segments) == 0 {
		return mcp.NewToolResponseText("No network segments defined"), nil
	}

	var result strings.Builder
	result.WriteString(fmt.Sprintf("Found %d segment(s):\n\n", len(segments)))
	for i := range segments {
		result.WriteString(formatSegmentSummary(&segments[i]))
		result.WriteString("\n")
	}
	return mcp.NewToolResponseText(result.String()), nil
}

func (s *Server) handleSegmentDelete(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	id, err := req.String("id")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("id is required: " + err.Error())
	}

	if err := s.netseg.DeleteSegment(id); err != nil {
		log.Error("MCP segment delete failed", "error", err, "id", id)
		return nil, mcp.NewToolErrorInternal("failed to delete segment: " + err.Error())
	}

	log.Info("MCP segment deleted", "id", id)
	return mcp.NewToolResponseText(fmt.Sprintf("Segment %s deleted (with its policies)", id)), nil
}

// Policy handlers

func (s *Server) handlePolicySave(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	action, err := req.String("action")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("action is required: " + err.Error())
	}
	action = strings.ToUpper(action)
	if !model.ValidAction(action) {
		return nil, mcp.NewToolErrorInvalidParams("action must be ALLOW or DENY")
	}

	conditions, err := parseConditions(req)
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams(err.Error())
	}

	if id := req.StringOr("id", ""); id != "" {
		update := model.PolicyUpdate{Action: &action}
		if conditions != nil {
			update.Conditions = conditions
			update.SetConditions = true
		}

		policy, err := s.netseg.UpdatePolicy(id, update)
		if err != nil {
			log.Error("MCP policy update failed", "error", err, "id", id)
			return nil, mcp.NewToolErrorInternal("failed to update policy: " + err.Error())
		}

		log.Info("MCP policy updated", "id", policy.ID, "action", policy.Action)
		return mcp.NewToolResponseText(fmt.Sprintf("Policy updated: %s", policy.ID)), nil
	}

	source := req.StringOr("source_segment_id", "")
	destination := req.StringOr("destination_segment_id", "")
	if source == "" || destination == "" {
		return nil, mcp.NewToolErrorInvalidParams("source_segment_id and destination_segment_id are required when creating a policy")
	}

	policy, err := s.netseg.CreatePolicy(source, destination, action, conditions)
	if err != nil {
		log.Error("MCP policy creation failed", "error", err, "source", source, "destination", destination)
		return nil, mcp.NewToolErrorInternal("failed to create policy: " + err.Error())
	}

	log.Info("MCP policy created", "id", policy.ID, "action", policy.Action)
	return mcp.NewToolResponseText(formatPolicySummary(policy)), nil
}

func (s *Server) handlePolicyList(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	source := req.StringOr("source_segment_id", "")
	destination := req.StringOr("destination_segment_id", "")

	var policies []model.IsolationPolicy
	var err error
	if source != "" && destination != "" {
		policies, err = s.netseg.GetPoliciesForPair(source, destination)
	} else {
		policies, err = s.netseg.GetAllPolicies()
	}
	if err != nil {
		log.Error("MCP policy list failed", "error", err)
		return nil, mcp.NewToolErrorInternal("failed to list policies: " + err.Error())
	}

	if len(policies) == 0 {
		return mcp.NewToolResponseText("No isolation policies defined"), nil
	}

	var result strings.Builder
	result.WriteString(fmt.Sprintf("Found %d polic(ies):\n\n", len(policies)))
	for i := range policies {
		result.WriteString(formatPolicySummary(&policies[i]))
		result.WriteString("\n")
	}
	return mcp.NewToolResponseText(result.String()), nil
}

func (s *Server) handlePolicyDelete(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	id, err := req.String("id")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("id is required: " + err.Error())
	}

	if err := s.netseg.DeletePolicy(id); err != nil {
		log.Error("MCP policy delete failed", "error", err, "id", id)
		return nil, mcp.NewToolErrorInternal("failed to delete policy: " + err.Error())
	}

	log.Info("MCP policy deleted", "id", id)
	return mcp.NewToolResponseText(fmt.Sprintf("Policy %s deleted", id)), nil
}

// Evaluation handler

func (s *Server) handleAccessEvaluate(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	source, err := req.String("source_segment_id")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("source_segment_id is required: " + err.Error())
	}
	destination, err := req.String("destination_segment_id")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("destination_segment_id is required: " + err.Error())
	}

	request := access.Request{
		SourceSegmentID:      source,
		DestinationSegmentID: destination,
		UserID:               req.StringOr("user_id", ""),
	}
	if raw := req.StringOr("device_trust_score", ""); raw != "" {
		score, err := strconv.Atoi(raw)
		if err != nil {
			return nil, mcp.NewToolErrorInvalidParams("device_trust_score must be an integer")
		}
		request.DeviceTrustScore = &score
	}

	decision, err := s.evaluator.Evaluate(ctx, request)
	if err != nil {
		log.Error("MCP access evaluation failed", "error", err, "source", source, "destination", destination)
		return nil, mcp.NewToolErrorInternal("failed to evaluate access: " + err.Error())
	}

	verdict := "DENY"
	if decision.Allowed {
		verdict = "ALLOW"
	}
	return mcp.NewToolResponseText(fmt.Sprintf("%s: %s", verdict, decision.Reason)), nil
}

// HandleRequest handles MCP HTTP requests with optional bearer token authentication
func (s *Server) HandleRequest(w http.ResponseWriter, r *http.Request) {
	if s.bearerToken != "" {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Unauthorized: Missing Authorization header", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Unauthorized: Invalid Authorization format", http.StatusUnauthorized)
			return
		}

		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(s.bearerToken)) != 1 {
			http.Error(w, "Unauthorized: Invalid token", http.StatusUnauthorized)
			return
		}
	}

	s.mcpServer.HandleRequest(w, r)
}

// GetHTTPHandler returns the HTTP handler for the MCP server
func (s *Server) GetHTTPHandler() http.HandlerFunc {
	return s.HandleRequest
}

// LogStartup logs MCP server startup information
func (s *Server) LogStartup() {
	log.Info("MCP server initialized", "version", "1.0.0")
	if s.bearerToken != "" {
		log.Info("MCP authentication enabled", "type", "Bearer token")
	} else {
		log.Info("MCP authentication disabled")
	}
	tools := s.mcpServer.ListTools()
	log.Info("MCP tools registered", "count", len(tools))
	for _, tool := range tools {
		log.Debug("MCP tool registered", "name", tool.Name, "description", tool.Description)
	}
}

// Helpers

func intParam(req *mcp.ToolRequest, name string) (int, error) {
	raw, err := req.String(name)
	if err != nil {
		return 0, fmt.Errorf("%s is required: %w", name, err)
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return value, nil
}

func parseConditions(req *mcp.ToolRequest) (*model.PolicyConditions, error) {
	var conditions model.PolicyConditions
	set := false

	if raw := req.StringOr("min_trust_score", ""); raw != "" {
		score, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("min_trust_score must be an integer")
		}
		conditions.MinTrustScore = &score
		set = true
	}

	if roles, _ := req.StringSlice("allowed_roles"); len(roles) > 0 {
		conditions.AllowedRoles = roles
		set = true
	}

	if !set {
		return nil, nil
	}
	return &conditions, nil
}

func formatDeviceSummary(device *model.Device) string {
	var result strings.Builder
	result.WriteString(fmt.Sprintf("Fingerprint: %s\n", device.Fingerprint))
	result.WriteString(fmt.Sprintf("ID: %s\n", device.ID))
	if device.Name != "" {
		result.WriteString(fmt.Sprintf("Name: %s\n", device.Name))
	}
	result.WriteString(fmt.Sprintf("Owner: %s\n", device.Owner))
	result.WriteString(fmt.Sprintf("Trust score: %d\n", device.TrustScore))
	result.WriteString(fmt.Sprintf("Status: %s\n", device.Status))
	result.WriteString(fmt.Sprintf("Last seen: %s\n", device.LastSeen.Format("2006-01-02 15:04:05")))
	return result.String()
}

func formatSegmentSummary(segment *model.NetworkSegment) string {
	var result strings.Builder
	result.WriteString(fmt.Sprintf("Name: %s\n", segment.Name))
	result.WriteString(fmt.Sprintf("ID: %s\n", segment.ID))
	result.WriteString(fmt.Sprintf("CIDR: %s\n", segment.CIDR))
	if segment.Description != "" {
		result.WriteString(fmt.Sprintf("Description: %s\n", segment.Description))
	}
	return result.String()
}

func formatPolicySummary(policy *model.IsolationPolicy) string {
	var result strings.Builder
	result.WriteString(fmt.Sprintf("ID: %s\n", policy.ID))
	result.WriteString(fmt.Sprintf("Direction: %s -> %s\n", policy.SourceSegmentID, policy.DestinationSegmentID))
	result.WriteString(fmt.Sprintf("Action: %s\n", policy.Action))
	if policy.Conditions != nil {
		if policy.Conditions.MinTrustScore != nil {
			result.WriteString(fmt.Sprintf("Min trust score: %d\n", *policy.Conditions.MinTrustScore))
		}
		if len(policy.Conditions.AllowedRoles) > 0 {
			result.WriteString(fmt.Sprintf("Allowed roles: %s\n", strings.Join(policy.Conditions.AllowedRoles, ", ")))
		}
	}
	return result.String()
}
