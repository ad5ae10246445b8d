package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jolinysx/Snowflake-RBAC-Structure-v2/pkg/governance"
	"github.com/jolinysx/Snowflake-RBAC-Structure-v2/pkg/stores"
	"github.com/jolinysx/Snowflake-RBAC-Structure-v2/pkg/telemetry"
)

// PolicyInput is the caller-supplied shape for creating or updating a policy.
type PolicyInput struct {
	// Name is the unique policy name.
	Name string `json:"name"`

	// Kind selects the evaluation semantics and definition shape.
	Kind string `json:"kind"`

	// Scope is an optional environment tag. Empty means the policy applies
	// everywhere.
	Scope string `json:"scope,omitempty"`

	// Severity defaults to WARNING when empty.
	Severity string `json:"severity,omitempty"`

	// Active defaults to true when nil.
	Active *bool `json:"active,omitempty"`

	// Description provides a human-readable description.
	Description string `json:"description,omitempty"`

	// Definition holds the kind-specific parameters as JSON.
	Definition json.RawMessage `json:"definition"`
}

// SeedResult summarizes one seed pass.
type SeedResult struct {
	// Loaded is the number of policies parsed from seed files.
	Loaded int `json:"loaded"`

	// Created is the number of policies newly persisted.
	Created int `json:"created"`

	// Updated is the number of existing policies overwritten by name.
	Updated int `json:"updated"`

	// Failed is the number of policies that could not be persisted.
	Failed int `json:"failed"`
}

// Service is the policy authoring and violation lifecycle surface. All
// mutations validate synchronously, persist through the store, and append
// an audit entry through the recorder.
type Service struct {
	policies   PolicyStore
	violations ViolationStore
	audits     AuditStore
	recorder   *Recorder
	loader     *governance.Loader
	clock      Clock
	logger     zerolog.Logger
	metrics    *telemetry.Metrics
	events     *telemetry.EventPublisher
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceClock overrides the service clock.
func WithServiceClock(clock Clock) ServiceOption {
	return func(s *Service) { s.clock = clock }
}

// WithServiceMetrics attaches a metrics collector.
func WithServiceMetrics(m *telemetry.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithServiceEvents attaches an event publisher.
func WithServiceEvents(ep *telemetry.EventPublisher) ServiceOption {
	return func(s *Service) { s.events = ep }
}

// NewService creates the policy service.
func NewService(policies PolicyStore, violations ViolationStore, audits AuditStore, recorder *Recorder, logger zerolog.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		policies:   policies,
		violations: violations,
		audits:     audits,
		recorder:   recorder,
		loader:     governance.NewLoader(logger),
		clock:      SystemClock{},
		logger:     logger.With().Str("component", "policy-service").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreatePolicy validates and persists a new policy. Validation failures and
// name conflicts come back as result statuses; only storage failures return
// an error.
func (s *Service) CreatePolicy(ctx context.Context, input PolicyInput, actor string) (*PolicyResult, error) {
	record, verr := s.validate(input)
	if verr != nil {
		if s.metrics != nil {
			s.metrics.RecordError(string(ErrorClassValidation))
		}
		return &PolicyResult{Status: StatusError, Message: verr.Error()}, nil
	}

	if _, err := s.policies.GetPolicyByName(ctx, record.Name); err == nil {
		return &PolicyResult{
			Status:  StatusError,
			Message: fmt.Sprintf("policy %s already exists", record.Name),
		}, nil
	} else if !errors.Is(err, stores.ErrNotFound) {
		return nil, NewStorageError("failed to check policy name", err).WithOperation("create_policy")
	}

	record.ID = uuid.New().String()
	now := s.clock.Now()
	record.CreatedAt = now
	record.UpdatedAt = now

	if err := s.policies.CreatePolicy(ctx, record); err != nil {
		return nil, NewStorageError("failed to create policy", err).WithResource(record.ID).WithOperation("create_policy")
	}

	s.recordPolicyOp(ctx, governance.OpPolicyCreate, record, actor)
	if s.events != nil {
		_ = s.events.PublishPolicyChanged(record.ID, record.Name, "created")
	}
	s.logger.Info().Str("policy_id", record.ID).Str("name", record.Name).Msg("Policy created")

	return &PolicyResult{Status: StatusSuccess, Policy: record}, nil
}

// GetPolicy retrieves a policy by ID.
func (s *Service) GetPolicy(ctx context.Context, id string) (*PolicyResult, error) {
	record, err := s.policies.GetPolicy(ctx, id)
	if err != nil {
		if errors.Is(err, stores.ErrNotFound) {
			return &PolicyResult{Status: StatusNotFound, Message: fmt.Sprintf("policy %s not found", id)}, nil
		}
		return nil, NewStorageError("failed to load policy", err).WithResource(id)
	}
	return &PolicyResult{Status: StatusSuccess, Policy: record}, nil
}

// ListPolicies lists policies matching the filter.
func (s *Service) ListPolicies(ctx context.Context, filter stores.PolicyFilter) ([]*stores.PolicyRecord, error) {
	records, err := s.policies.ListPolicies(ctx, filter)
	if err != nil {
		return nil, NewStorageError("failed to list policies", err)
	}
	return records, nil
}

// UpdatePolicy validates and overwrites an existing policy's definition and
// metadata. The policy ID and creation time are preserved.
func (s *Service) UpdatePolicy(ctx context.Context, id string, input PolicyInput, actor string) (*PolicyResult, error) {
	existing, err := s.policies.GetPolicy(ctx, id)
	if err != nil {
		if errors.Is(err, stores.ErrNotFound) {
			return &PolicyResult{Status: StatusNotFound, Message: fmt.Sprintf("policy %s not found", id)}, nil
		}
		return nil, NewStorageError("failed to load policy", err).WithResource(id)
	}

	record, verr := s.validate(input)
	if verr != nil {
		if s.metrics != nil {
			s.metrics.RecordError(string(ErrorClassValidation))
		}
		return &PolicyResult{Status: StatusError, Message: verr.Error()}, nil
	}

	record.ID = existing.ID
	record.CreatedAt = existing.CreatedAt
	record.UpdatedAt = s.clock.Now()

	if err := s.policies.UpdatePolicy(ctx, record); err != nil {
		if errors.Is(err, stores.ErrNotFound) {
			return &PolicyResult{Status: StatusNotFound, Message: fmt.Sprintf("policy %s not found", id)}, nil
		}
		return nil, NewStorageError("failed to update policy", err).WithResource(id).WithOperation("update_policy")
	}

	s.recordPolicyOp(ctx, governance.OpPolicyUpdate, record, actor)
	if s.events != nil {
		_ = s.events.PublishPolicyChanged(record.ID, record.Name, "updated")
	}
	s.logger.Info().Str("policy_id", record.ID).Str("name", record.Name).Msg("Policy updated")

	return &PolicyResult{Status: StatusSuccess, Policy: record}, nil
}

// SetPolicyActive toggles a policy without touching its definition.
func (s *Service) SetPolicyActive(ctx context.Context, id string, active bool, actor string) (*PolicyResult, error) {
	if err := s.policies.SetPolicyActive(ctx, id, active, s.clock.Now()); err != nil {
		if errors.Is(err, stores.ErrNotFound) {
			return &PolicyResult{Status: StatusNotFound, Message: fmt.Sprintf("policy %s not found", id)}, nil
		}
		return nil, NewStorageError("failed to toggle policy", err).WithResource(id).WithOperation("toggle_policy")
	}

	record, err := s.policies.GetPolicy(ctx, id)
	if err != nil {
		return nil, NewStorageError("failed to reload policy", err).WithResource(id)
	}

	change := "deactivated"
	if active {
		change = "activated"
	}
	s.recordPolicyOp(ctx, governance.OpPolicyUpdate, record, actor)
	if s.events != nil {
		_ = s.events.PublishPolicyChanged(record.ID, record.Name, change)
	}
	s.logger.Info().Str("policy_id", id).Bool("active", active).Msg("Policy toggled")

	return &PolicyResult{Status: StatusSuccess, Policy: record}, nil
}

// DeletePolicy removes a policy. Violations previously raised by it are
// retained; they carry denormalized copies of everything they need.
func (s *Service) DeletePolicy(ctx context.Context, id string, actor string) (*PolicyResult, error) {
	record, err := s.policies.GetPolicy(ctx, id)
	if err != nil {
		if errors.Is(err, stores.ErrNotFound) {
			return &PolicyResult{Status: StatusNotFound, Message: fmt.Sprintf("policy %s not found", id)}, nil
		}
		return nil, NewStorageError("failed to load policy", err).WithResource(id)
	}

	if err := s.policies.DeletePolicy(ctx, id); err != nil {
		if errors.Is(err, stores.ErrNotFound) {
			return &PolicyResult{Status: StatusNotFound, Message: fmt.Sprintf("policy %s not found", id)}, nil
		}
		return nil, NewStorageError("failed to delete policy", err).WithResource(id).WithOperation("delete_policy")
	}

	s.recordPolicyOp(ctx, governance.OpPolicyDelete, record, actor)
	if s.events != nil {
		_ = s.events.PublishPolicyChanged(record.ID, record.Name, "deleted")
	}
	s.logger.Info().Str("policy_id", id).Str("name", record.Name).Msg("Policy deleted")

	return &PolicyResult{Status: StatusSuccess, Policy: record}, nil
}

// SeedPolicies loads policy seed files and upserts them by name. Individual
// failures are counted, not fatal; a seed pass is best effort by design.
func (s *Service) SeedPolicies(ctx context.Context, paths []string, actor string) (*SeedResult, error) {
	policies, err := s.loader.LoadFromPaths(ctx, paths)
	if err != nil {
		return nil, NewStorageError("failed to load policy seeds", err).WithOperation("seed_policies")
	}
	return s.ApplySeed(ctx, policies, actor)
}

// WatchSeeds watches the seed paths and reapplies the freshly loaded policy
// set whenever a seed file changes. Watching stops when ctx is cancelled.
func (s *Service) WatchSeeds(ctx context.Context, paths []string, actor string) error {
	return s.loader.Watch(ctx, paths, func(policies []governance.Policy) error {
		result, err := s.ApplySeed(ctx, policies, actor)
		if err != nil {
			return err
		}
		s.logger.Info().
			Int("created", result.Created).
			Int("updated", result.Updated).
			Int("failed", result.Failed).
			Msg("Policy seeds reapplied")
		return nil
	})
}

// ApplySeed upserts an already loaded and validated policy set by name.
func (s *Service) ApplySeed(ctx context.Context, policies []governance.Policy, actor string) (*SeedResult, error) {
	result := &SeedResult{Loaded: len(policies)}
	for i := range policies {
		p := &policies[i]

		raw, err := governance.MarshalDefinition(p.Definition)
		if err != nil {
			result.Failed++
			s.logger.Warn().Err(err).Str("name", p.Name).Msg("Skipping seed policy with unmarshalable definition")
			continue
		}

		input := PolicyInput{
			Name:        p.Name,
			Kind:        string(p.Kind),
			Severity:    string(p.Severity),
			Active:      &p.Active,
			Description: p.Description,
			Definition:  raw,
		}
		if p.Scope != nil {
			input.Scope = *p.Scope
		}

		existing, err := s.policies.GetPolicyByName(ctx, p.Name)
		switch {
		case err == nil:
			res, uerr := s.UpdatePolicy(ctx, existing.ID, input, actor)
			if uerr != nil || res.Status != StatusSuccess {
				result.Failed++
				continue
			}
			result.Updated++
		case errors.Is(err, stores.ErrNotFound):
			res, cerr := s.CreatePolicy(ctx, input, actor)
			if cerr != nil || res.Status != StatusSuccess {
				result.Failed++
				continue
			}
			result.Created++
		default:
			result.Failed++
			s.logger.Warn().Err(err).Str("name", p.Name).Msg("Failed to look up seed policy")
		}
	}

	s.logger.Info().
		Int("loaded", result.Loaded).
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("failed", result.Failed).
		Msg("Policy seed pass complete")

	return result, nil
}

// GetViolation retrieves a violation by ID.
func (s *Service) GetViolation(ctx context.Context, id string) (*ViolationResult, error) {
	record, err := s.violations.GetViolation(ctx, id)
	if err != nil {
		if errors.Is(err, stores.ErrNotFound) {
			return &ViolationResult{Status: StatusNotFound, Message: fmt.Sprintf("violation %s not found", id)}, nil
		}
		return nil, NewStorageError("failed to load violation", err).WithResource(id)
	}
	return &ViolationResult{Status: StatusSuccess, Violation: record}, nil
}

// ListViolations lists violations matching the filter.
func (s *Service) ListViolations(ctx context.Context, filter stores.ViolationFilter) ([]*stores.ViolationRecord, error) {
	records, err := s.violations.ListViolations(ctx, filter)
	if err != nil {
		return nil, NewStorageError("failed to list violations", err)
	}
	return records, nil
}

// ResolveViolation transitions an open violation to resolved. Resolving an
// already-resolved or unknown violation reports NOT_FOUND.
func (s *Service) ResolveViolation(ctx context.Context, id, resolvedBy, notes string) (*ViolationResult, error) {
	if resolvedBy == "" {
		return &ViolationResult{Status: StatusError, Message: "resolved_by is required"}, nil
	}

	var notesPtr *string
	if notes != "" {
		notesPtr = &notes
	}

	err := s.violations.ResolveViolation(ctx, id, resolvedBy, notesPtr, s.clock.Now())
	if err != nil {
		if errors.Is(err, stores.ErrNotFound) {
			return &ViolationResult{
				Status:  StatusNotFound,
				Message: fmt.Sprintf("violation %s not found or already resolved", id),
			}, nil
		}
		return nil, NewStorageError("failed to resolve violation", err).WithResource(id).WithOperation("resolve_violation")
	}

	record, err := s.violations.GetViolation(ctx, id)
	if err != nil {
		return nil, NewStorageError("failed to reload violation", err).WithResource(id)
	}

	if s.events != nil {
		_ = s.events.PublishViolationResolved(id, resolvedBy)
	}
	s.logger.Info().Str("violation_id", id).Str("resolved_by", resolvedBy).Msg("Violation resolved")

	return &ViolationResult{Status: StatusSuccess, Violation: record}, nil
}

// ListAuditEntries lists audit entries matching the filter.
func (s *Service) ListAuditEntries(ctx context.Context, filter stores.AuditFilter) ([]*stores.AuditRecord, error) {
	records, err := s.audits.ListAuditEntries(ctx, filter)
	if err != nil {
		return nil, NewStorageError("failed to list audit entries", err)
	}
	return records, nil
}

// ListAccessEntries lists access entries matching the filter.
func (s *Service) ListAccessEntries(ctx context.Context, filter stores.AccessFilter) ([]*stores.AccessRecord, error) {
	records, err := s.audits.ListAccessEntries(ctx, filter)
	if err != nil {
		return nil, NewStorageError("failed to list access entries", err)
	}
	return records, nil
}

// validate normalizes and validates the input, returning the persisted form.
func (s *Service) validate(input PolicyInput) (*stores.PolicyRecord, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("policy name is required")
	}

	kind := governance.PolicyKind(input.Kind)
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown policy kind %q", input.Kind)
	}

	severity := governance.SeverityWarning
	if input.Severity != "" {
		severity = governance.Severity(input.Severity)
		if !severity.Valid() {
			return nil, fmt.Errorf("unknown severity %q", input.Severity)
		}
	}

	if len(input.Definition) == 0 {
		return nil, fmt.Errorf("policy definition is required")
	}
	if _, err := governance.ParseDefinition(kind, input.Definition); err != nil {
		return nil, fmt.Errorf("invalid definition: %w", err)
	}

	active := true
	if input.Active != nil {
		active = *input.Active
	}

	record := &stores.PolicyRecord{
		Name:        input.Name,
		Kind:        string(kind),
		Severity:    string(severity),
		Definition:  string(input.Definition),
		Active:      active,
		Description: input.Description,
	}
	if input.Scope != "" {
		scope := input.Scope
		record.Scope = &scope
	}
	return record, nil
}

// recordPolicyOp appends the policy lifecycle entry to the audit trail.
func (s *Service) recordPolicyOp(ctx context.Context, op governance.OperationKind, record *stores.PolicyRecord, actor string) {
	if s.recorder == nil {
		return
	}
	scope := ""
	if record.Scope != nil {
		scope = *record.Scope
	}
	s.recorder.RecordOperation(ctx, OperationRequest{
		Operation:    op,
		Actor:        actor,
		Scope:        scope,
		ResourceID:   record.ID,
		ResourceName: record.Name,
		ResourceKind: "POLICY",
		Success:      true,
		Metadata:     map[string]interface{}{"policy_kind": record.Kind},
	})
}
