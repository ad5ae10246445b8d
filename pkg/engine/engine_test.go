package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/jolinysx/Snowflake-RBAC-Structure-v2/pkg/engine"
	"github.com/jolinysx/Snowflake-RBAC-Structure-v2/pkg/governance"
	"github.com/jolinysx/Snowflake-RBAC-Structure-v2/pkg/registry"
	"github.com/jolinysx/Snowflake-RBAC-Structure-v2/pkg/stores"
)

// fixedClock pins time for deterministic assertions.
type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

// tuesdayMorning is a Tuesday at 10:00 UTC, inside any business-hours window.
var tuesdayMorning = time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)

// setupStore creates a migrated in-memory store.
func setupStore(t *testing.T) *stores.SQLiteStore {
	t.Helper()

	store, err := stores.NewSQLiteStore(stores.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}

	t.Cleanup(func() { store.Close() })
	return store
}

// seedPolicy persists a policy directly, bypassing the service.
func seedPolicy(t *testing.T, store *stores.SQLiteStore, id, name string, kind governance.PolicyKind, scope *string, severity governance.Severity, definition string) {
	t.Helper()

	record := &stores.PolicyRecord{
		ID:         id,
		Name:       name,
		Kind:       string(kind),
		Scope:      scope,
		Severity:   string(severity),
		Definition: definition,
		Active:     true,
		CreatedAt:  tuesdayMorning,
		UpdatedAt:  tuesdayMorning,
	}
	if err := store.CreatePolicy(context.Background(), record); err != nil {
		t.Fatalf("failed to seed policy %s: %v", name, err)
	}
}

// newTestRecorder wires a recorder against the given store and registry.
func newTestRecorder(store *stores.SQLiteStore, reg *registry.Memory, now time.Time) *engine.Recorder {
	evaluator := governance.NewEvaluator(store, zerolog.Nop())
	return engine.NewRecorder(evaluator, store, reg, zerolog.Nop(),
		engine.WithRecorderClock(fixedClock{now: now}))
}

// newTestService wires a policy service without a recorder.
func newTestService(store *stores.SQLiteStore, now time.Time) *engine.Service {
	return engine.NewService(store, store, store, nil, zerolog.Nop(),
		engine.WithServiceClock(fixedClock{now: now}))
}

// createRequest is a baseline successful clone creation.
func createRequest() engine.OperationRequest {
	return engine.OperationRequest{
		Operation:    governance.OpCreate,
		Actor:        "alice",
		ActorRole:    "ANALYST",
		Scope:        "DEV",
		ResourceID:   "clone-1",
		ResourceName: "orders_clone",
		ResourceKind: "TABLE",
		SourceSchema: "SALES",
		SourceName:   "ORDERS",
		Success:      true,
	}
}

func scopePtr(s string) *string { return &s }
