package engine_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/jolinysx/Snowflake-RBAC-Structure-v2/pkg/engine"
	"github.com/jolinysx/Snowflake-RBAC-Structure-v2/pkg/governance"
	"github.com/jolinysx/Snowflake-RBAC-Structure-v2/pkg/registry"
	"github.com/jolinysx/Snowflake-RBAC-Structure-v2/pkg/stores"
)

func TestRecordOperationClean(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	reg := registry.NewMemory(zerolog.Nop())
	recorder := newTestRecorder(store, reg, tuesdayMorning)

	result := recorder.RecordOperation(ctx, createRequest())

	if !result.Recorded {
		t.Fatal("expected operation to be recorded")
	}
	if result.Blocked {
		t.Error("expected clean operation not to be blocked")
	}
	if result.Outcome != stores.OutcomeSuccess {
		t.Errorf("expected SUCCESS outcome, got %s", result.Outcome)
	}
	if result.Verdict == nil {
		t.Fatal("expected a verdict for a successful CREATE")
	}
	if len(result.ViolationIDs) != 0 {
		t.Errorf("expected no violations, got %d", len(result.ViolationIDs))
	}

	entries, err := store.ListAuditEntries(ctx, stores.AuditFilter{})
	if err != nil {
		t.Fatalf("failed to list audit entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(entries))
	}
	if entries[0].ID != result.AuditID {
		t.Errorf("audit ID mismatch: %s != %s", entries[0].ID, result.AuditID)
	}
	if entries[0].Outcome != stores.OutcomeSuccess {
		t.Errorf("expected SUCCESS audit outcome, got %s", entries[0].Outcome)
	}
}

func TestRecordOperationBlocked(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	reg := registry.NewMemory(zerolog.Nop())
	seedPolicy(t, store, "pol-1", "no-table-clones", governance.KindEnvironmentRestriction,
		scopePtr("PROD"), governance.SeverityCritical,
		`{"action":"BLOCK","restricted_kinds":["TABLE"]}`)

	recorder := newTestRecorder(store, reg, tuesdayMorning)

	req := createRequest()
	req.Scope = "PROD"
	result := recorder.RecordOperation(ctx, req)

	if !result.Recorded {
		t.Fatal("expected blocked operation to still be recorded")
	}
	if !result.Blocked {
		t.Fatal("expected operation to be blocked")
	}
	if result.Outcome != stores.OutcomeBlocked {
		t.Errorf("expected BLOCKED outcome, got %s", result.Outcome)
	}
	if len(result.ViolationIDs) != 1 {
		t.Fatalf("expected 1 violation, got %d", len(result.ViolationIDs))
	}

	violation, err := store.GetViolation(ctx, result.ViolationIDs[0])
	if err != nil {
		t.Fatalf("failed to load violation: %v", err)
	}
	if violation.PolicyID != "pol-1" {
		t.Errorf("expected violation for pol-1, got %s", violation.PolicyID)
	}
	if violation.Status != string(governance.ViolationOpen) {
		t.Errorf("expected OPEN violation, got %s", violation.Status)
	}
	if violation.Severity != string(governance.SeverityCritical) {
		t.Errorf("expected CRITICAL severity, got %s", violation.Severity)
	}

	// Blocked creates never enter the live set.
	count, err := reg.LiveResourceCount(ctx, "alice", "PROD")
	if err != nil {
		t.Fatalf("failed to count live resources: %v", err)
	}
	if count != 0 {
		t.Errorf("expected blocked resource not to be tracked, count=%d", count)
	}
}

func TestRecordOperationFailedNotEvaluated(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	seedPolicy(t, store, "pol-1", "no-table-clones", governance.KindEnvironmentRestriction,
		nil, governance.SeverityError,
		`{"action":"BLOCK","restricted_kinds":["TABLE"]}`)

	recorder := newTestRecorder(store, registry.NewMemory(zerolog.Nop()), tuesdayMorning)

	req := createRequest()
	req.Success = false
	req.Error = "warehouse unavailable"
	result := recorder.RecordOperation(ctx, req)

	if !result.Recorded {
		t.Fatal("expected failed operation to be recorded")
	}
	if result.Verdict != nil {
		t.Error("expected no verdict for a failed operation")
	}
	if result.Outcome != stores.OutcomeFailed {
		t.Errorf("expected FAILED outcome, got %s", result.Outcome)
	}

	entries, err := store.ListAuditEntries(ctx, stores.AuditFilter{})
	if err != nil {
		t.Fatalf("failed to list audit entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(entries))
	}
	if entries[0].Error == nil || *entries[0].Error != "warehouse unavailable" {
		t.Error("expected audit entry to carry the failure message")
	}
}

func TestRecordOperationTracksRegistry(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	reg := registry.NewMemory(zerolog.Nop())
	recorder := newTestRecorder(store, reg, tuesdayMorning)

	recorder.RecordOperation(ctx, createRequest())

	count, _ := reg.LiveResourceCount(ctx, "alice", "DEV")
	if count != 1 {
		t.Fatalf("expected 1 tracked resource after create, got %d", count)
	}

	del := createRequest()
	del.Operation = governance.OpDelete
	recorder.RecordOperation(ctx, del)

	count, _ = reg.LiveResourceCount(ctx, "alice", "DEV")
	if count != 0 {
		t.Errorf("expected 0 tracked resources after delete, got %d", count)
	}
}

func TestRecordOperationQuota(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	reg := registry.NewMemory(zerolog.Nop())
	seedPolicy(t, store, "pol-1", "clone-quota", governance.KindUserQuota,
		nil, governance.SeverityWarning,
		`{"action":"BLOCK","max_resources":2}`)

	recorder := newTestRecorder(store, reg, tuesdayMorning)

	for i, id := range []string{"clone-1", "clone-2"} {
		req := createRequest()
		req.ResourceID = id
		result := recorder.RecordOperation(ctx, req)
		if result.Blocked {
			t.Fatalf("expected create %d to pass under quota, got blocked", i+1)
		}
	}

	req := createRequest()
	req.ResourceID = "clone-3"
	result := recorder.RecordOperation(ctx, req)

	if !result.Blocked {
		t.Fatal("expected third create to exceed quota of 2")
	}
	if result.Outcome != stores.OutcomeBlocked {
		t.Errorf("expected BLOCKED outcome, got %s", result.Outcome)
	}

	count, _ := reg.LiveResourceCount(ctx, "alice", "DEV")
	if count != 2 {
		t.Errorf("expected quota-blocked clone not to be tracked, count=%d", count)
	}
}

func TestRecordOperationMalformedPolicyIsolated(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	seedPolicy(t, store, "pol-bad", "broken", governance.KindUserQuota,
		nil, governance.SeverityWarning, `{"action":"BLOCK"`)
	seedPolicy(t, store, "pol-good", "no-table-clones", governance.KindEnvironmentRestriction,
		nil, governance.SeverityError,
		`{"action":"BLOCK","restricted_kinds":["TABLE"]}`)

	recorder := newTestRecorder(store, registry.NewMemory(zerolog.Nop()), tuesdayMorning)
	result := recorder.RecordOperation(ctx, createRequest())

	if result.Verdict == nil {
		t.Fatal("expected a verdict")
	}
	if result.Verdict.SkippedPolicies != 1 {
		t.Errorf("expected 1 skipped policy, got %d", result.Verdict.SkippedPolicies)
	}
	if !result.Blocked {
		t.Error("expected the healthy policy to still block")
	}
}

func TestEvaluateRecordsNothing(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	reg := registry.NewMemory(zerolog.Nop())
	seedPolicy(t, store, "pol-1", "no-table-clones", governance.KindEnvironmentRestriction,
		scopePtr("PROD"), governance.SeverityCritical,
		`{"action":"BLOCK","restricted_kinds":["TABLE"]}`)

	recorder := newTestRecorder(store, reg, tuesdayMorning)

	req := createRequest()
	req.Scope = "PROD"
	verdict, err := recorder.Evaluate(ctx, req)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if !verdict.Block {
		t.Fatal("expected a blocking verdict")
	}
	if len(verdict.Violations) != 1 {
		t.Fatalf("expected 1 violation in the verdict, got %d", len(verdict.Violations))
	}

	// A pre-check leaves no trace.
	entries, err := store.ListAuditEntries(ctx, stores.AuditFilter{})
	if err != nil {
		t.Fatalf("failed to list audit entries: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no audit entries after evaluate, got %d", len(entries))
	}
	violations, err := store.ListViolations(ctx, stores.ViolationFilter{})
	if err != nil {
		t.Fatalf("failed to list violations: %v", err)
	}
	if len(violations) != 0 {
		t.Errorf("expected no persisted violations after evaluate, got %d", len(violations))
	}
	count, _ := reg.LiveResourceCount(ctx, "alice", "PROD")
	if count != 0 {
		t.Errorf("expected evaluate not to track resources, count=%d", count)
	}
}

func TestEvaluateAllows(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	recorder := newTestRecorder(store, registry.NewMemory(zerolog.Nop()), tuesdayMorning)

	verdict, err := recorder.Evaluate(ctx, createRequest())
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if verdict.Block {
		t.Error("expected a clean request to be allowed")
	}
}

func TestRecordAccess(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	recorder := newTestRecorder(store, nil, tuesdayMorning)

	id, ok := recorder.RecordAccess(ctx, engine.AccessRequest{
		ResourceID:   "clone-1",
		ResourceName: "orders_clone",
		Actor:        "bob",
		AccessType:   "READ",
		Details:      map[string]interface{}{"rows": 120},
	})
	if !ok {
		t.Fatal("expected access entry to be recorded")
	}
	if id == 0 {
		t.Error("expected the assigned access entry ID")
	}

	entries, err := store.ListAccessEntries(ctx, stores.AccessFilter{})
	if err != nil {
		t.Fatalf("failed to list access entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 access entry, got %d", len(entries))
	}
	if entries[0].ID != id {
		t.Errorf("expected entry ID %d, got %d", id, entries[0].ID)
	}
	if entries[0].Actor != "bob" || entries[0].AccessType != "READ" {
		t.Errorf("unexpected access entry: %+v", entries[0])
	}
}
