package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/jolinysx/Snowflake-RBAC-Structure-v2/pkg/engine"
	"github.com/jolinysx/Snowflake-RBAC-Structure-v2/pkg/governance"
	"github.com/jolinysx/Snowflake-RBAC-Structure-v2/pkg/stores"
)

func newTestPurger(store *stores.SQLiteStore, now time.Time) *engine.Purger {
	return engine.NewPurger(store, store, zerolog.Nop(),
		engine.WithPurgerClock(fixedClock{now: now}))
}

// seedAgedData writes one old audit entry carrying one resolved and one open
// violation, plus one old access entry, all 90 days before tuesdayMorning.
func seedAgedData(t *testing.T, store *stores.SQLiteStore) {
	t.Helper()
	ctx := context.Background()
	old := tuesdayMorning.AddDate(0, 0, -90)

	entry := &stores.AuditRecord{
		ID: "audit-old", Operation: "CREATE", Actor: "alice", Scope: "DEV",
		ResourceID: "clone-old", ResourceName: "orders_clone",
		Outcome: stores.OutcomeSuccess, Timestamp: old,
	}
	violations := []*stores.ViolationRecord{
		{
			ID: "vio-resolved", PolicyID: "pol-1", PolicyName: "clone-quota",
			ResourceID: "clone-old", ResourceName: "orders_clone", Violator: "alice",
			Message: "quota exceeded", Action: string(governance.ActionLog),
			Severity: string(governance.SeverityWarning),
			Status:   string(governance.ViolationOpen), DetectedAt: old,
		},
		{
			ID: "vio-open", PolicyID: "pol-1", PolicyName: "clone-quota",
			ResourceID: "clone-old", ResourceName: "orders_clone", Violator: "alice",
			Message: "quota exceeded", Action: string(governance.ActionLog),
			Severity: string(governance.SeverityWarning),
			Status:   string(governance.ViolationOpen), DetectedAt: old,
		},
	}
	if err := store.AppendOperation(ctx, entry, violations); err != nil {
		t.Fatalf("failed to seed audit data: %v", err)
	}
	if err := store.ResolveViolation(ctx, "vio-resolved", "admin", nil, old); err != nil {
		t.Fatalf("failed to resolve violation: %v", err)
	}

	access := &stores.AccessRecord{
		ResourceID: "clone-old", ResourceName: "orders_clone",
		Actor: "bob", AccessType: "READ", Timestamp: old,
	}
	if err := store.AppendAccess(ctx, access); err != nil {
		t.Fatalf("failed to seed access data: %v", err)
	}
}

func TestPurgeDryRun(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	seedAgedData(t, store)

	purger := newTestPurger(store, tuesdayMorning)
	result, err := purger.Purge(ctx, 30, true, "admin")
	if err != nil {
		t.Fatalf("dry run failed: %v", err)
	}

	if !result.DryRun {
		t.Error("expected dry-run result")
	}
	if result.Counts.Violations != 1 {
		t.Errorf("expected 1 purgeable violation, got %d", result.Counts.Violations)
	}
	if result.Counts.Audit != 1 {
		t.Errorf("expected 1 purgeable audit entry, got %d", result.Counts.Audit)
	}
	if result.Counts.Access != 1 {
		t.Errorf("expected 1 purgeable access entry, got %d", result.Counts.Access)
	}

	// Nothing was deleted and no purge entry was written.
	violations, err := store.ListViolations(ctx, stores.ViolationFilter{})
	if err != nil {
		t.Fatalf("failed to list violations: %v", err)
	}
	if len(violations) != 2 {
		t.Errorf("expected both violations to survive a dry run, got %d", len(violations))
	}
	entries, err := store.ListAuditEntries(ctx, stores.AuditFilter{})
	if err != nil {
		t.Fatalf("failed to list audit entries: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected dry run to leave the audit trail untouched, got %d entries", len(entries))
	}
}

func TestPurgeDeletesAgedRows(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	seedAgedData(t, store)

	purger := newTestPurger(store, tuesdayMorning)
	result, err := purger.Purge(ctx, 30, false, "admin")
	if err != nil {
		t.Fatalf("purge failed: %v", err)
	}

	if result.Counts.Violations != 1 || result.Counts.Audit != 1 || result.Counts.Access != 1 {
		t.Errorf("unexpected purge counts: %+v", result.Counts)
	}

	// The open violation outlives the purge regardless of its age.
	remaining, err := store.ListViolations(ctx, stores.ViolationFilter{})
	if err != nil {
		t.Fatalf("failed to list violations: %v", err)
	}
	if len(remaining) != 1 {
		t.Fatalf("expected exactly the open violation to remain, got %d", len(remaining))
	}
	if remaining[0].ID != "vio-open" {
		t.Errorf("expected vio-open to survive, got %s", remaining[0].ID)
	}
	if _, err := store.GetViolation(ctx, "vio-resolved"); !errors.Is(err, stores.ErrNotFound) {
		t.Errorf("expected resolved violation to be purged, got %v", err)
	}

	// The purge recorded itself in the trail it just trimmed.
	entries, err := store.ListAuditEntries(ctx, stores.AuditFilter{})
	if err != nil {
		t.Fatalf("failed to list audit entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the purge entry, got %d", len(entries))
	}
	if entries[0].Operation != string(governance.OpPurge) {
		t.Errorf("expected PURGE operation, got %s", entries[0].Operation)
	}
	if entries[0].Actor != "admin" {
		t.Errorf("expected admin actor, got %s", entries[0].Actor)
	}
}

func TestPurgeIdempotent(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	seedAgedData(t, store)
	purger := newTestPurger(store, tuesdayMorning)

	// A dry run predicts exactly what the real purge then deletes.
	dry, err := purger.Purge(ctx, 30, true, "admin")
	if err != nil {
		t.Fatalf("dry run failed: %v", err)
	}
	deleted, err := purger.Purge(ctx, 30, false, "admin")
	if err != nil {
		t.Fatalf("purge failed: %v", err)
	}
	if deleted.Counts != dry.Counts {
		t.Errorf("real purge counts %+v differ from dry-run counts %+v", deleted.Counts, dry.Counts)
	}

	// A repeat purge over the same window finds nothing left.
	again, err := purger.Purge(ctx, 30, false, "admin")
	if err != nil {
		t.Fatalf("repeat purge failed: %v", err)
	}
	if again.Counts.Total() != 0 {
		t.Errorf("expected a repeat purge to delete nothing, got %+v", again.Counts)
	}
}

func TestPurgeSparesRecentRows(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	seedAgedData(t, store)

	// 120-day retention keeps 90-day-old rows.
	purger := newTestPurger(store, tuesdayMorning)
	result, err := purger.Purge(ctx, 120, false, "admin")
	if err != nil {
		t.Fatalf("purge failed: %v", err)
	}
	if result.Counts.Total() != 0 {
		t.Errorf("expected nothing inside retention to be purged, got %+v", result.Counts)
	}

	violations, err := store.ListViolations(ctx, stores.ViolationFilter{})
	if err != nil {
		t.Fatalf("failed to list violations: %v", err)
	}
	if len(violations) != 2 {
		t.Errorf("expected both violations to survive, got %d", len(violations))
	}
}

func TestPurgeRejectsInvalidRetention(t *testing.T) {
	ctx := context.Background()
	purger := newTestPurger(setupStore(t), tuesdayMorning)

	for _, days := range []int{0, -7} {
		_, err := purger.Purge(ctx, days, false, "admin")
		if err == nil {
			t.Fatalf("expected retention %d to be rejected", days)
		}
		if !engine.IsValidation(err) {
			t.Errorf("expected validation error for retention %d, got %v", days, err)
		}
	}
}
