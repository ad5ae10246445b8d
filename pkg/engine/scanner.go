package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jolinysx/Snowflake-RBAC-Structure-v2/pkg/governance"
	"github.com/jolinysx/Snowflake-RBAC-Structure-v2/pkg/stores"
	"github.com/jolinysx/Snowflake-RBAC-Structure-v2/pkg/telemetry"
)

// Scanner sweeps the live resource population against age policies. Only
// MAX_AGE policies participate: every other kind is checked at operation
// time, but a clone ages while nothing happens to it, so age violations can
// only be found by periodic scanning.
type Scanner struct {
	policies   PolicyStore
	violations ViolationStore
	audits     AuditStore
	registry   ResourceRegistry
	clock      Clock
	logger     zerolog.Logger
	metrics    *telemetry.Metrics
	events     *telemetry.EventPublisher
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithScannerClock overrides the scanner clock.
func WithScannerClock(clock Clock) ScannerOption {
	return func(s *Scanner) { s.clock = clock }
}

// WithScannerMetrics attaches a metrics collector.
func WithScannerMetrics(m *telemetry.Metrics) ScannerOption {
	return func(s *Scanner) { s.metrics = m }
}

// WithScannerEvents attaches an event publisher.
func WithScannerEvents(ep *telemetry.EventPublisher) ScannerOption {
	return func(s *Scanner) { s.events = ep }
}

// NewScanner creates a compliance scanner.
func NewScanner(policies PolicyStore, violations ViolationStore, audits AuditStore, registry ResourceRegistry, logger zerolog.Logger, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		policies:   policies,
		violations: violations,
		audits:     audits,
		registry:   registry,
		clock:      SystemClock{},
		logger:     logger.With().Str("component", "compliance-scanner").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// maxAgePolicy is one parsed MAX_AGE policy ready for scanning.
type maxAgePolicy struct {
	stored governance.StoredPolicy
	def    *governance.MaxAgeDef
}

// Scan examines every live resource in the scope against the active MAX_AGE
// policies. New findings and one scan audit entry are appended in a single
// transaction, so a scan either records completely or not at all.
//
// Resources that already carry an open violation for the same policy are
// skipped: re-flagging a known stale clone every pass would only bury the
// finding in duplicates.
func (s *Scanner) Scan(ctx context.Context, scope, actor string) (*ScanResult, error) {
	start := s.clock.Now()
	result := &ScanResult{StartedAt: start}

	agePolicies, err := s.agePolicies(ctx)
	if err != nil {
		s.recordScanMetric("failed", start)
		return nil, err
	}

	resources, err := s.registry.LiveResources(ctx, scope)
	if err != nil {
		s.recordScanMetric("failed", start)
		return nil, NewStorageError("failed to list live resources", err).WithOperation("scan")
	}

	var newViolations []*stores.ViolationRecord
	for i := range resources {
		if err := ctx.Err(); err != nil {
			s.recordScanMetric("cancelled", start)
			return nil, err
		}

		res := &resources[i]
		result.Scanned++
		ageDays := int(start.Sub(res.CreatedAt).Hours() / 24)

		stale := false
		for _, p := range agePolicies {
			if !p.stored.AppliesTo(res.Scope) || ageDays <= p.def.MaxAgeDays {
				continue
			}
			stale = true

			open, err := s.violations.HasOpenViolation(ctx, p.stored.ID, res.ID)
			if err != nil {
				s.recordScanMetric("failed", start)
				return nil, NewStorageError("failed to check open violations", err).WithResource(res.ID).WithOperation("scan")
			}
			if open {
				result.Skipped++
				continue
			}

			newViolations = append(newViolations, s.ageViolation(p, res, ageDays, start))
		}

		// A clone with an already-open finding is still non-compliant.
		if stale {
			result.NonCompliantCount++
		} else {
			result.CompliantCount++
		}
	}

	entry := s.scanEntry(scope, actor, result, len(newViolations), start)
	if err := s.audits.AppendOperation(ctx, entry, newViolations); err != nil {
		s.recordScanMetric("failed", start)
		if s.metrics != nil {
			s.metrics.RecordRecordingFailure("audit")
		}
		return nil, NewStorageError("failed to record scan", err).WithOperation("scan")
	}

	result.NewViolations = len(newViolations)
	result.Violations = newViolations
	result.Duration = s.clock.Now().Sub(start)

	if s.metrics != nil {
		s.metrics.RecordScanCompleted("succeeded", result.Duration)
		for i := range newViolations {
			s.metrics.RecordViolation(string(governance.KindMaxAge), newViolations[i].Severity)
		}
	}
	if s.events != nil {
		_ = s.events.PublishScanCompleted(result.Scanned, result.NewViolations, result.Duration)
		for _, v := range newViolations {
			_ = s.events.PublishViolationDetected(v.ID, v.PolicyID, v.PolicyName, v.ResourceID, v.Severity)
		}
	}

	s.logger.Info().
		Str("scope", scope).
		Int("scanned", result.Scanned).
		Int("new_violations", result.NewViolations).
		Int("skipped", result.Skipped).
		Dur("duration", result.Duration).
		Msg("Compliance scan complete")

	return result, nil
}

// agePolicies loads and parses the active MAX_AGE policies. Malformed
// definitions are skipped, matching evaluation-time isolation.
func (s *Scanner) agePolicies(ctx context.Context) ([]maxAgePolicy, error) {
	policies, err := s.policies.ActivePolicies(ctx)
	if err != nil {
		return nil, NewStorageError("failed to load active policies", err).WithOperation("scan")
	}

	var out []maxAgePolicy
	for i := range policies {
		p := policies[i]
		if p.Kind != governance.KindMaxAge {
			continue
		}
		def, err := governance.ParseDefinition(p.Kind, p.Definition)
		if err != nil {
			s.logger.Warn().Err(err).Str("policy", p.Name).Msg("Skipping policy with malformed definition")
			if s.metrics != nil {
				s.metrics.RecordEvaluation("SCAN", false, 0, 1)
			}
			continue
		}
		ageDef, ok := def.(*governance.MaxAgeDef)
		if !ok {
			continue
		}
		out = append(out, maxAgePolicy{stored: p, def: ageDef})
	}
	return out, nil
}

// ageViolation builds the violation record for one stale resource.
func (s *Scanner) ageViolation(p maxAgePolicy, res *LiveResource, ageDays int, now time.Time) *stores.ViolationRecord {
	record := &stores.ViolationRecord{
		ID:           uuid.New().String(),
		PolicyID:     p.stored.ID,
		PolicyName:   p.stored.Name,
		ResourceID:   res.ID,
		ResourceName: res.Name,
		Violator:     res.Owner,
		Message:      fmt.Sprintf("clone %s is %d days old, maximum age is %d days", res.Name, ageDays, p.def.MaxAgeDays),
		Action:       string(p.def.ConfiguredAction()),
		Severity:     string(p.stored.Severity),
		Status:       string(governance.ViolationOpen),
		DetectedAt:   now,
	}

	details := map[string]interface{}{"age_days": ageDays, "max_age_days": p.def.MaxAgeDays}
	if raw, err := json.Marshal(details); err == nil {
		d := string(raw)
		record.Details = &d
	}
	return record
}

// scanEntry builds the audit record for one scan pass.
func (s *Scanner) scanEntry(scope, actor string, result *ScanResult, newViolations int, now time.Time) *stores.AuditRecord {
	entry := &stores.AuditRecord{
		ID:           uuid.New().String(),
		Operation:    string(governance.OpScan),
		Actor:        actor,
		Scope:        scope,
		ResourceID:   "scan",
		ResourceName: "compliance-scan",
		Outcome:      stores.OutcomeSuccess,
		Timestamp:    now,
	}

	meta := map[string]interface{}{
		"scanned":        result.Scanned,
		"new_violations": newViolations,
		"skipped":        result.Skipped,
	}
	if raw, err := json.Marshal(meta); err == nil {
		m := string(raw)
		entry.Metadata = &m
	}
	return entry
}

// recordScanMetric records a failed or cancelled scan pass.
func (s *Scanner) recordScanMetric(status string, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordScanCompleted(status, s.clock.Now().Sub(start))
}
