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

// Purger removes aged rows from the audit, access, and violation tables.
// Open violations are never purged regardless of age: an unresolved finding
// stays visible until someone resolves it.
type Purger struct {
	retention RetentionStore
	audits    AuditStore
	clock     Clock
	logger    zerolog.Logger
	metrics   *telemetry.Metrics
	events    *telemetry.EventPublisher
}

// PurgerOption configures a Purger.
type PurgerOption func(*Purger)

// WithPurgerClock overrides the purger clock.
func WithPurgerClock(clock Clock) PurgerOption {
	return func(p *Purger) { p.clock = clock }
}

// WithPurgerMetrics attaches a metrics collector.
func WithPurgerMetrics(m *telemetry.Metrics) PurgerOption {
	return func(p *Purger) { p.metrics = m }
}

// WithPurgerEvents attaches an event publisher.
func WithPurgerEvents(ep *telemetry.EventPublisher) PurgerOption {
	return func(p *Purger) { p.events = ep }
}

// NewPurger creates a retention purger.
func NewPurger(retention RetentionStore, audits AuditStore, logger zerolog.Logger, opts ...PurgerOption) *Purger {
	p := &Purger{
		retention: retention,
		audits:    audits,
		clock:     SystemClock{},
		logger:    logger.With().Str("component", "retention-purger").Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Purge removes rows older than retentionDays. In dry-run mode the rows are
// only counted; nothing is deleted and no audit entry is written. A real
// purge appends its own audit entry, so the trail records what was removed
// and when.
func (p *Purger) Purge(ctx context.Context, retentionDays int, dryRun bool, actor string) (*PurgeResult, error) {
	if retentionDays <= 0 {
		return nil, NewValidationError("retention days must be positive", nil).WithOperation("purge")
	}

	now := p.clock.Now()
	cutoff := now.AddDate(0, 0, -retentionDays)
	result := &PurgeResult{DryRun: dryRun, Cutoff: cutoff}

	if dryRun {
		counts, err := p.retention.CountPurgeable(ctx, cutoff)
		if err != nil {
			return nil, NewStorageError("failed to count purgeable rows", err).WithOperation("purge")
		}
		result.Counts = counts

		if p.metrics != nil {
			p.metrics.RecordPurgeCompleted("dry_run")
		}
		if p.events != nil {
			_ = p.events.PublishPurgeCompleted("dry_run", counts.Total(), cutoff)
		}
		p.logger.Info().
			Time("cutoff", cutoff).
			Int64("total", counts.Total()).
			Msg("Purge dry run complete")
		return result, nil
	}

	counts, err := p.retention.DeletePurgeable(ctx, cutoff)
	if err != nil {
		return nil, NewStorageError("failed to purge rows", err).WithOperation("purge")
	}
	result.Counts = counts

	entry := p.purgeEntry(actor, retentionDays, counts, now)
	if err := p.audits.AppendOperation(ctx, entry, nil); err != nil {
		// The purge itself succeeded; a lost audit entry is reported but
		// does not undo it.
		p.logger.Error().Err(err).Msg("Failed to record purge in audit trail")
		if p.metrics != nil {
			p.metrics.RecordRecordingFailure("audit")
		}
	}

	if p.metrics != nil {
		p.metrics.RecordPurgeCompleted("delete")
		p.metrics.RecordRowsPurged("violations", counts.Violations)
		p.metrics.RecordRowsPurged("audit", counts.Audit)
		p.metrics.RecordRowsPurged("access", counts.Access)
	}
	if p.events != nil {
		_ = p.events.PublishPurgeCompleted("delete", counts.Total(), cutoff)
	}

	p.logger.Info().
		Time("cutoff", cutoff).
		Int64("violations", counts.Violations).
		Int64("audit", counts.Audit).
		Int64("access", counts.Access).
		Msg("Purge complete")

	return result, nil
}

// purgeEntry builds the audit record for one purge pass.
func (p *Purger) purgeEntry(actor string, retentionDays int, counts stores.PurgeCounts, now time.Time) *stores.AuditRecord {
	entry := &stores.AuditRecord{
		ID:           uuid.New().String(),
		Operation:    string(governance.OpPurge),
		Actor:        actor,
		Scope:        "",
		ResourceID:   "purge",
		ResourceName: "retention-purge",
		Outcome:      stores.OutcomeSuccess,
		Timestamp:    now,
	}

	meta := map[string]interface{}{
		"retention_days": retentionDays,
		"violations":     counts.Violations,
		"audit":          counts.Audit,
		"access":         counts.Access,
	}
	if raw, err := json.Marshal(meta); err == nil {
		m := string(raw)
		entry.Metadata = &m
	}
	return entry
}
