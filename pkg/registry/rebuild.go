package registry

import (
	"context"

	"github.com/jolinysx/Snowflake-RBAC-Structure-v2/pkg/engine"
	"github.com/jolinysx/Snowflake-RBAC-Structure-v2/pkg/governance"
	"github.com/jolinysx/Snowflake-RBAC-Structure-v2/pkg/stores"
)

// AuditSource provides the audit trail the registry is rebuilt from.
type AuditSource interface {
	ListAuditEntries(ctx context.Context, filter stores.AuditFilter) ([]*stores.AuditRecord, error)
}

// rebuildPageSize bounds one audit page during replay.
const rebuildPageSize = 500

// Rebuild replays the full audit trail into the registry so the live set
// survives process restarts. Successful creates are tracked, successful
// deletes released; blocked and failed operations never entered the live
// set and are skipped. Returns the number of live resources afterwards.
func (m *Memory) Rebuild(ctx context.Context, audits AuditSource) (int, error) {
	// Page through the whole trail; the store caps unbounded queries, and
	// the oldest creates are exactly the ones age scanning must see.
	var entries []*stores.AuditRecord
	filter := stores.AuditFilter{Limit: rebuildPageSize}
	for {
		page, err := audits.ListAuditEntries(ctx, filter)
		if err != nil {
			return 0, err
		}
		entries = append(entries, page...)
		if len(page) < rebuildPageSize {
			break
		}
		filter.Offset += rebuildPageSize
	}

	// Entries arrive newest first; replay oldest first.
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.Outcome != stores.OutcomeSuccess {
			continue
		}

		switch e.Operation {
		case string(governance.OpCreate):
			err := m.Track(ctx, engine.LiveResource{
				ID:        e.ResourceID,
				Name:      e.ResourceName,
				Scope:     e.Scope,
				Owner:     e.Actor,
				CreatedAt: e.Timestamp,
			})
			if err != nil {
				m.logger.Warn().Err(err).Str("resource_id", e.ResourceID).Msg("Skipping unreplayable audit entry")
			}
		case string(governance.OpDelete):
			_ = m.Release(ctx, e.ResourceID)
		}
	}

	count := m.Len()
	m.logger.Info().Int("live_resources", count).Msg("Registry rebuilt from audit trail")
	return count, nil
}
