package engine

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jolinysx/Snowflake-RBAC-Structure-v2/pkg/governance"
	"github.com/jolinysx/Snowflake-RBAC-Structure-v2/pkg/stores"
	"github.com/jolinysx/Snowflake-RBAC-Structure-v2/pkg/telemetry"
)

// Recorder evaluates and records governed operations. It is the write path
// of the audit trail: every call produces at most one audit entry plus the
// violations the evaluation found, appended in a single transaction.
//
// RecordOperation never returns an error. The caller already performed the
// operation; a recording failure must not fail it retroactively. Failures
// are folded into the RecordResult and surfaced through logging and metrics.
type Recorder struct {
	evaluator *governance.Evaluator
	audits    AuditStore
	registry  ResourceRegistry
	clock     Clock
	logger    zerolog.Logger
	metrics   *telemetry.Metrics
	events    *telemetry.EventPublisher
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithRecorderClock overrides the recorder clock.
func WithRecorderClock(clock Clock) RecorderOption {
	return func(r *Recorder) { r.clock = clock }
}

// WithRecorderMetrics attaches a metrics collector.
func WithRecorderMetrics(m *telemetry.Metrics) RecorderOption {
	return func(r *Recorder) { r.metrics = m }
}

// WithRecorderEvents attaches an event publisher.
func WithRecorderEvents(ep *telemetry.EventPublisher) RecorderOption {
	return func(r *Recorder) { r.events = ep }
}

// NewRecorder creates a recorder. The registry may be nil, in which case
// quota policies evaluate against a live count of zero and resource
// tracking is skipped.
func NewRecorder(evaluator *governance.Evaluator, audits AuditStore, registry ResourceRegistry, logger zerolog.Logger, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		evaluator: evaluator,
		audits:    audits,
		registry:  registry,
		clock:     SystemClock{},
		logger:    logger.With().Str("component", "recorder").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RecordOperation evaluates the operation against active policies and
// appends it to the audit trail together with any violations.
//
// Only successful CREATE operations are evaluated; failed operations and
// other kinds are recorded verbatim. A blocking verdict turns the audit
// outcome into BLOCKED and the operation must be rolled back by the caller.
func (r *Recorder) RecordOperation(ctx context.Context, req OperationRequest) *RecordResult {
	now := r.clock.Now()
	logger := r.logger.With().
		Str("operation", string(req.Operation)).
		Str("resource_id", req.ResourceID).
		Str("actor", req.Actor).
		Logger()

	result := &RecordResult{Outcome: stores.OutcomeSuccess}
	if !req.Success {
		result.Outcome = stores.OutcomeFailed
	}

	timer := telemetry.NewTimer()
	if req.Success && req.Operation == governance.OpCreate {
		verdict := r.evaluate(ctx, req, now, logger)
		result.Verdict = verdict
		if verdict != nil {
			if r.metrics != nil {
				r.metrics.RecordEvaluation(string(req.Operation), verdict.Block, timer.Duration(), verdict.SkippedPolicies)
			}
			if verdict.Block {
				result.Blocked = true
				result.Outcome = stores.OutcomeBlocked
				if r.metrics != nil {
					r.metrics.RecordBlockedOperation(string(req.Operation), req.Scope)
				}
			}
		}
	}

	violations := r.violationRecords(result.Verdict, req, now)
	for i := range violations {
		result.ViolationIDs = append(result.ViolationIDs, violations[i].ID)
	}

	entry := r.auditEntry(req, result, now)
	if err := r.audits.AppendOperation(ctx, entry, violations); err != nil {
		logger.Error().Err(err).Msg("Failed to append audit entry")
		if r.metrics != nil {
			r.metrics.RecordRecordingFailure("audit")
		}
		return result
	}

	result.AuditID = entry.ID
	result.Recorded = true

	if r.metrics != nil {
		r.metrics.RecordOperationRecorded(string(req.Operation), string(result.Outcome))
		if result.Verdict != nil {
			for i := range result.Verdict.Violations {
				v := &result.Verdict.Violations[i]
				r.metrics.RecordViolation(string(v.PolicyKind), string(v.Severity))
			}
		}
	}
	r.publish(req, result, violations)
	r.track(ctx, req, result, now, logger)

	logger.Info().
		Str("audit_id", entry.ID).
		Str("outcome", string(result.Outcome)).
		Int("violations", len(violations)).
		Msg("Operation recorded")

	return result
}

// Evaluate renders a verdict without recording anything, so a caller can
// pre-check an operation before attempting something irreversible. Unlike
// RecordOperation, evaluation failures are returned to the caller.
func (r *Recorder) Evaluate(ctx context.Context, req OperationRequest) (*governance.Verdict, error) {
	now := r.clock.Now()

	liveCount := 0
	if r.registry != nil {
		count, err := r.registry.LiveResourceCount(ctx, req.Actor, req.Scope)
		if err != nil {
			return nil, NewStorageError("failed to read live resource count", err).WithOperation("evaluate")
		}
		liveCount = count
	}

	verdict, err := r.evaluator.Evaluate(ctx, governance.EvalContext{
		Operation:         req.Operation,
		Scope:             req.Scope,
		ResourceKind:      req.ResourceKind,
		ResourceID:        req.ResourceID,
		ResourceName:      req.ResourceName,
		SourceSchema:      req.SourceSchema,
		SourceName:        req.SourceName,
		Classification:    req.Classification,
		Actor:             req.Actor,
		ActorRole:         req.ActorRole,
		LiveResourceCount: liveCount,
		Now:               now,
	})
	if err != nil {
		return nil, NewStorageError("failed to evaluate operation", err).WithOperation("evaluate")
	}
	return verdict, nil
}

// RecordAccess appends a data access event to the access log. Failures are
// swallowed; the return values carry the assigned access entry ID (zero when
// not recorded) and whether the entry was persisted.
func (r *Recorder) RecordAccess(ctx context.Context, req AccessRequest) (int64, bool) {
	entry := &stores.AccessRecord{
		ResourceID:   req.ResourceID,
		ResourceName: req.ResourceName,
		Actor:        req.Actor,
		AccessType:   req.AccessType,
		Timestamp:    r.clock.Now(),
	}
	if len(req.Details) > 0 {
		if raw, err := json.Marshal(req.Details); err == nil {
			s := string(raw)
			entry.Details = &s
		}
	}

	if err := r.audits.AppendAccess(ctx, entry); err != nil {
		r.logger.Error().Err(err).
			Str("resource_id", req.ResourceID).
			Str("access_type", req.AccessType).
			Msg("Failed to append access entry")
		if r.metrics != nil {
			r.metrics.RecordRecordingFailure("access")
		}
		return 0, false
	}

	if r.metrics != nil {
		r.metrics.RecordAccessRecorded(req.AccessType)
	}
	return entry.ID, true
}

// evaluate runs the policy evaluation, swallowing load failures. A nil
// verdict means evaluation could not run; the operation is still recorded.
func (r *Recorder) evaluate(ctx context.Context, req OperationRequest, now time.Time, logger zerolog.Logger) *governance.Verdict {
	liveCount := 0
	if r.registry != nil {
		count, err := r.registry.LiveResourceCount(ctx, req.Actor, req.Scope)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to read live resource count, quota policies see zero")
		} else {
			liveCount = count
		}
	}

	verdict, err := r.evaluator.Evaluate(ctx, governance.EvalContext{
		Operation:         req.Operation,
		Scope:             req.Scope,
		ResourceKind:      req.ResourceKind,
		ResourceID:        req.ResourceID,
		ResourceName:      req.ResourceName,
		SourceSchema:      req.SourceSchema,
		SourceName:        req.SourceName,
		Classification:    req.Classification,
		Actor:             req.Actor,
		ActorRole:         req.ActorRole,
		LiveResourceCount: liveCount,
		Now:               now,
	})
	if err != nil {
		logger.Error().Err(err).Msg("Policy evaluation failed, recording without verdict")
		if r.metrics != nil {
			r.metrics.RecordError(string(ErrorClassStorage))
		}
		return nil
	}
	return verdict
}

// violationRecords materializes the verdict findings as store records.
func (r *Recorder) violationRecords(verdict *governance.Verdict, req OperationRequest, now time.Time) []*stores.ViolationRecord {
	if verdict == nil || len(verdict.Violations) == 0 {
		return nil
	}

	records := make([]*stores.ViolationRecord, 0, len(verdict.Violations))
	for i := range verdict.Violations {
		v := &verdict.Violations[i]

		var details *string
		if len(v.Details) > 0 {
			if raw, err := json.Marshal(v.Details); err == nil {
				s := string(raw)
				details = &s
			}
		}

		records = append(records, &stores.ViolationRecord{
			ID:           uuid.New().String(),
			PolicyID:     v.PolicyID,
			PolicyName:   v.PolicyName,
			ResourceID:   v.ResourceID,
			ResourceName: v.ResourceName,
			Violator:     v.Violator,
			Message:      v.Message,
			Action:       string(v.Action),
			Severity:     string(v.Severity),
			Status:       string(governance.ViolationOpen),
			Details:      details,
			DetectedAt:   now,
		})
	}
	return records
}

// auditEntry builds the audit record for one operation.
func (r *Recorder) auditEntry(req OperationRequest, result *RecordResult, now time.Time) *stores.AuditRecord {
	entry := &stores.AuditRecord{
		ID:           uuid.New().String(),
		Operation:    string(req.Operation),
		Actor:        req.Actor,
		Scope:        req.Scope,
		ResourceID:   req.ResourceID,
		ResourceName: req.ResourceName,
		Outcome:      result.Outcome,
		Timestamp:    now,
	}

	if req.ActorRole != "" {
		role := req.ActorRole
		entry.ActorRole = &role
	}
	if req.Error != "" {
		msg := req.Error
		entry.Error = &msg
	}
	if len(result.ViolationIDs) > 0 {
		if raw, err := json.Marshal(result.ViolationIDs); err == nil {
			s := string(raw)
			entry.ViolationIDs = &s
		}
	}
	if len(req.Metadata) > 0 {
		if raw, err := json.Marshal(req.Metadata); err == nil {
			s := string(raw)
			entry.Metadata = &s
		}
	}
	return entry
}

// publish emits telemetry events for the recorded operation.
func (r *Recorder) publish(req OperationRequest, result *RecordResult, violations []*stores.ViolationRecord) {
	if r.events == nil {
		return
	}
	for _, v := range violations {
		_ = r.events.PublishViolationDetected(v.ID, v.PolicyID, v.PolicyName, v.ResourceID, v.Severity)
	}
	if result.Blocked {
		_ = r.events.PublishOperationBlocked(string(req.Operation), req.ResourceID, req.Actor, len(violations))
	}
}

// track keeps the live resource registry aligned with the recorded
// operation. Blocked creates are rolled back by the caller and never enter
// the live set.
func (r *Recorder) track(ctx context.Context, req OperationRequest, result *RecordResult, now time.Time, logger zerolog.Logger) {
	if r.registry == nil || !req.Success {
		return
	}

	switch req.Operation {
	case governance.OpCreate:
		if result.Blocked {
			return
		}
		err := r.registry.Track(ctx, LiveResource{
			ID:             req.ResourceID,
			Name:           req.ResourceName,
			Kind:           req.ResourceKind,
			Scope:          req.Scope,
			Owner:          req.Actor,
			SourceSchema:   req.SourceSchema,
			SourceName:     req.SourceName,
			Classification: req.Classification,
			CreatedAt:      now,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to track live resource")
		}
	case governance.OpDelete:
		if err := r.registry.Release(ctx, req.ResourceID); err != nil {
			logger.Warn().Err(err).Msg("Failed to release live resource")
		}
	}
}
