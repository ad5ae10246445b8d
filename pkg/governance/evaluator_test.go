package governance

import (
	"context"
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// staticSource serves a fixed policy set to the evaluator under test.
type staticSource struct {
	policies []StoredPolicy
}

func (s *staticSource) ActivePolicies(ctx context.Context) ([]StoredPolicy, error) {
	return s.policies, nil
}

func testPolicy(t *testing.T, name string, kind PolicyKind, scope *string, severity Severity, def Definition) StoredPolicy {
	t.Helper()

	raw, err := MarshalDefinition(def)
	if err != nil {
		t.Fatalf("failed to marshal definition for %s: %v", name, err)
	}

	return StoredPolicy{
		ID:         "pol-" + name,
		Name:       name,
		Kind:       kind,
		Scope:      scope,
		Severity:   severity,
		Active:     true,
		Definition: raw,
	}
}

func newTestEvaluator(policies ...StoredPolicy) *Evaluator {
	return NewEvaluator(&staticSource{policies: policies}, zerolog.Nop())
}

func scopePtr(s string) *string { return &s }

// tuesdayMorning is a Tuesday at 10:00 UTC.
var tuesdayMorning = time.Date(2025, 6, 3, 10, 0, 0, 0, time.UTC)

// saturdayMorning is a Saturday at 10:00 UTC.
var saturdayMorning = time.Date(2025, 6, 7, 10, 0, 0, 0, time.UTC)

func baseContext(now time.Time) EvalContext {
	return EvalContext{
		Operation:    OpCreate,
		Scope:        "PROD",
		ResourceKind: "TABLE",
		ResourceID:   "res-1",
		ResourceName: "orders_clone",
		SourceSchema: "SALES",
		SourceName:   "ORDERS",
		Actor:        "alice",
		ActorRole:    "ANALYST",
		Now:          now,
	}
}

func TestEvaluateKinds(t *testing.T) {
	weekdays := []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}

	tests := []struct {
		name      string
		policy    StoredPolicy
		mutate    func(*EvalContext)
		wantHit   bool
		wantBlock bool
	}{
		{
			name: "environment restriction matches resource kind",
			policy: testPolicy(t, "no-prod-tables", KindEnvironmentRestriction, scopePtr("PROD"), SeverityError,
				&EnvironmentRestrictionDef{Action: ActionBlock, RestrictedKinds: []string{"TABLE"}}),
			wantHit:   true,
			wantBlock: true,
		},
		{
			name: "environment restriction ignores other kinds",
			policy: testPolicy(t, "no-prod-tables", KindEnvironmentRestriction, scopePtr("PROD"), SeverityError,
				&EnvironmentRestrictionDef{Action: ActionBlock, RestrictedKinds: []string{"SCHEMA"}}),
			wantHit: false,
		},
		{
			name: "environment restriction matches kinds case-insensitively",
			policy: testPolicy(t, "no-prod-tables", KindEnvironmentRestriction, scopePtr("PROD"), SeverityError,
				&EnvironmentRestrictionDef{Action: ActionBlock, RestrictedKinds: []string{"table"}}),
			wantHit:   true,
			wantBlock: true,
		},
		{
			name: "user quota at the limit",
			policy: testPolicy(t, "clone-quota", KindUserQuota, nil, SeverityWarning,
				&UserQuotaDef{Action: ActionBlock, MaxResources: 2}),
			mutate:    func(ec *EvalContext) { ec.LiveResourceCount = 2 },
			wantHit:   true,
			wantBlock: true,
		},
		{
			name: "user quota under the limit",
			policy: testPolicy(t, "clone-quota", KindUserQuota, nil, SeverityWarning,
				&UserQuotaDef{Action: ActionBlock, MaxResources: 2}),
			mutate:  func(ec *EvalContext) { ec.LiveResourceCount = 1 },
			wantHit: false,
		},
		{
			name: "time restriction on a weekend",
			policy: testPolicy(t, "business-hours", KindTimeRestriction, nil, SeverityWarning,
				&TimeRestrictionDef{Action: ActionLog, StartHour: 8, EndHour: 18, AllowedWeekdays: weekdays}),
			mutate:    func(ec *EvalContext) { ec.Now = saturdayMorning },
			wantHit:   true,
			wantBlock: false,
		},
		{
			name: "time restriction during business hours",
			policy: testPolicy(t, "business-hours", KindTimeRestriction, nil, SeverityWarning,
				&TimeRestrictionDef{Action: ActionLog, StartHour: 8, EndHour: 18, AllowedWeekdays: weekdays}),
			wantHit: false,
		},
		{
			name: "time restriction outside the hour window",
			policy: testPolicy(t, "business-hours", KindTimeRestriction, nil, SeverityWarning,
				&TimeRestrictionDef{Action: ActionLog, StartHour: 8, EndHour: 18, AllowedWeekdays: weekdays}),
			mutate:  func(ec *EvalContext) { ec.Now = time.Date(2025, 6, 3, 22, 0, 0, 0, time.UTC) },
			wantHit: true,
		},
		{
			name: "sensitive data substring match blocks on require approval",
			policy: testPolicy(t, "pii-schemas", KindSensitiveData, nil, SeverityCritical,
				&SensitiveDataDef{Action: ActionRequireApproval, RestrictedSchemas: []string{"PII"}}),
			mutate:    func(ec *EvalContext) { ec.SourceSchema = "CUSTOMER_PII_V2" },
			wantHit:   true,
			wantBlock: true,
		},
		{
			name: "sensitive data log action does not block",
			policy: testPolicy(t, "pii-schemas", KindSensitiveData, nil, SeverityCritical,
				&SensitiveDataDef{Action: ActionLog, RestrictedSchemas: []string{"PII"}}),
			mutate:    func(ec *EvalContext) { ec.SourceSchema = "CUSTOMER_PII_V2" },
			wantHit:   true,
			wantBlock: false,
		},
		{
			name: "max age flags but never blocks",
			policy: testPolicy(t, "stale-clones", KindMaxAge, nil, SeverityWarning,
				&MaxAgeDef{Action: ActionLog, MaxAgeDays: 30}),
			mutate:    func(ec *EvalContext) { ec.ResourceAgeDays = 45 },
			wantHit:   true,
			wantBlock: false,
		},
		{
			name: "max age within limit",
			policy: testPolicy(t, "stale-clones", KindMaxAge, nil, SeverityWarning,
				&MaxAgeDef{Action: ActionLog, MaxAgeDays: 30}),
			mutate:  func(ec *EvalContext) { ec.ResourceAgeDays = 30 },
			wantHit: false,
		},
		{
			name: "restricted source exact match",
			policy: testPolicy(t, "no-ledger-clones", KindRestrictedSource, nil, SeverityError,
				&RestrictedSourceDef{Action: ActionBlock, RestrictedSources: []string{"orders"}}),
			wantHit:   true,
			wantBlock: true,
		},
		{
			name: "restricted source is not a substring match",
			policy: testPolicy(t, "no-ledger-clones", KindRestrictedSource, nil, SeverityError,
				&RestrictedSourceDef{Action: ActionBlock, RestrictedSources: []string{"ORDER"}}),
			wantHit: false,
		},
		{
			name: "data classification match",
			policy: testPolicy(t, "no-confidential", KindDataClassification, nil, SeverityCritical,
				&DataClassificationDef{Action: ActionBlock, BlockedClassifications: []string{"CONFIDENTIAL"}}),
			mutate:    func(ec *EvalContext) { ec.Classification = "confidential" },
			wantHit:   true,
			wantBlock: true,
		},
		{
			name: "data classification ignores unclassified sources",
			policy: testPolicy(t, "no-confidential", KindDataClassification, nil, SeverityCritical,
				&DataClassificationDef{Action: ActionBlock, BlockedClassifications: []string{"CONFIDENTIAL"}}),
			wantHit: false,
		},
		{
			name: "approval required for non-approver role",
			policy: testPolicy(t, "dba-signoff", KindApprovalRequired, nil, SeverityWarning,
				&ApprovalRequiredDef{Action: ActionRequireApproval, ApproverRoles: []string{"DBA"}}),
			wantHit:   true,
			wantBlock: false,
		},
		{
			name: "approval required satisfied by approver role",
			policy: testPolicy(t, "dba-signoff", KindApprovalRequired, nil, SeverityWarning,
				&ApprovalRequiredDef{Action: ActionRequireApproval, ApproverRoles: []string{"DBA"}}),
			mutate:  func(ec *EvalContext) { ec.ActorRole = "dba" },
			wantHit: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ec := baseContext(tuesdayMorning)
			if tt.mutate != nil {
				tt.mutate(&ec)
			}

			verdict, err := newTestEvaluator(tt.policy).Evaluate(context.Background(), ec)
			if err != nil {
				t.Fatalf("Evaluate failed: %v", err)
			}

			if got := len(verdict.Violations) > 0; got != tt.wantHit {
				t.Errorf("violation hit = %v, want %v (violations: %+v)", got, tt.wantHit, verdict.Violations)
			}
			if verdict.Block != tt.wantBlock {
				t.Errorf("block = %v, want %v", verdict.Block, tt.wantBlock)
			}
			if verdict.EvaluatedPolicies != 1 {
				t.Errorf("evaluated policies = %d, want 1", verdict.EvaluatedPolicies)
			}
		})
	}
}

func TestEvaluateScopeFiltering(t *testing.T) {
	prodOnly := testPolicy(t, "prod-only", KindEnvironmentRestriction, scopePtr("PROD"), SeverityError,
		&EnvironmentRestrictionDef{Action: ActionBlock, RestrictedKinds: []string{"TABLE"}})
	everywhere := testPolicy(t, "everywhere", KindRestrictedSource, nil, SeverityWarning,
		&RestrictedSourceDef{Action: ActionLog, RestrictedSources: []string{"ORDERS"}})

	evaluator := newTestEvaluator(prodOnly, everywhere)

	ec := baseContext(tuesdayMorning)
	ec.Scope = "DEV"

	verdict, err := evaluator.Evaluate(context.Background(), ec)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	if verdict.EvaluatedPolicies != 1 {
		t.Errorf("evaluated policies = %d, want 1 (prod-scoped policy should be filtered)", verdict.EvaluatedPolicies)
	}
	if len(verdict.Violations) != 1 || verdict.Violations[0].PolicyName != "everywhere" {
		t.Errorf("expected only the unscoped policy to fire, got %+v", verdict.Violations)
	}
	if verdict.Block {
		t.Error("LOG action must not block")
	}
}

func TestEvaluateInactivePolicyExcluded(t *testing.T) {
	policy := testPolicy(t, "disabled-rule", KindEnvironmentRestriction, nil, SeverityError,
		&EnvironmentRestrictionDef{Action: ActionBlock, RestrictedKinds: []string{"TABLE"}})
	policy.Active = false

	verdict, err := newTestEvaluator(policy).Evaluate(context.Background(), baseContext(tuesdayMorning))
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	if verdict.EvaluatedPolicies != 0 || len(verdict.Violations) != 0 || verdict.Block {
		t.Errorf("inactive policy must be invisible, got %+v", verdict)
	}
}

func TestEvaluateViolationOrdering(t *testing.T) {
	policies := []StoredPolicy{
		testPolicy(t, "zeta-rule", KindRestrictedSource, nil, SeverityWarning,
			&RestrictedSourceDef{Action: ActionLog, RestrictedSources: []string{"ORDERS"}}),
		testPolicy(t, "alpha-rule", KindEnvironmentRestriction, nil, SeverityWarning,
			&EnvironmentRestrictionDef{Action: ActionLog, RestrictedKinds: []string{"TABLE"}}),
		testPolicy(t, "critical-rule", KindDataClassification, nil, SeverityCritical,
			&DataClassificationDef{Action: ActionLog, BlockedClassifications: []string{"SECRET"}}),
	}

	ec := baseContext(tuesdayMorning)
	ec.Classification = "SECRET"

	verdict, err := newTestEvaluator(policies...).Evaluate(context.Background(), ec)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	var names []string
	for _, v := range verdict.Violations {
		names = append(names, v.PolicyName)
	}

	want := []string{"critical-rule", "alpha-rule", "zeta-rule"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("violation order = %v, want %v", names, want)
	}
}

func TestEvaluateMalformedDefinitionIsolated(t *testing.T) {
	good := testPolicy(t, "good-rule", KindEnvironmentRestriction, nil, SeverityError,
		&EnvironmentRestrictionDef{Action: ActionBlock, RestrictedKinds: []string{"TABLE"}})
	poison := StoredPolicy{
		ID:         "pol-poison",
		Name:       "poison-rule",
		Kind:       KindUserQuota,
		Severity:   SeverityError,
		Active:     true,
		Definition: json.RawMessage(`{"action":"BLOCK","max_resources":"not a number"}`),
	}

	verdict, err := newTestEvaluator(poison, good).Evaluate(context.Background(), baseContext(tuesdayMorning))
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	if verdict.SkippedPolicies != 1 {
		t.Errorf("skipped policies = %d, want 1", verdict.SkippedPolicies)
	}
	if verdict.EvaluatedPolicies != 1 {
		t.Errorf("evaluated policies = %d, want 1", verdict.EvaluatedPolicies)
	}
	if len(verdict.Violations) != 1 || verdict.Violations[0].PolicyName != "good-rule" {
		t.Errorf("good policy must still fire, got %+v", verdict.Violations)
	}
	if !verdict.Block {
		t.Error("good policy's BLOCK must survive the poison policy")
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	policies := []StoredPolicy{
		testPolicy(t, "quota", KindUserQuota, nil, SeverityWarning,
			&UserQuotaDef{Action: ActionBlock, MaxResources: 1}),
		testPolicy(t, "sensitive", KindSensitiveData, nil, SeverityCritical,
			&SensitiveDataDef{Action: ActionRequireApproval, RestrictedSchemas: []string{"SALES"}}),
	}

	evaluator := newTestEvaluator(policies...)

	ec := baseContext(tuesdayMorning)
	ec.LiveResourceCount = 3

	first, err := evaluator.Evaluate(context.Background(), ec)
	if err != nil {
		t.Fatalf("first Evaluate failed: %v", err)
	}
	second, err := evaluator.Evaluate(context.Background(), ec)
	if err != nil {
		t.Fatalf("second Evaluate failed: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("verdicts differ for identical input:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestSeverityOrdering(t *testing.T) {
	ordered := []Severity{SeverityInfo, SeverityWarning, SeverityError, SeverityCritical}
	for i := 1; i < len(ordered); i++ {
		if ordered[i].Rank() <= ordered[i-1].Rank() {
			t.Errorf("severity %s should rank above %s", ordered[i], ordered[i-1])
		}
	}

	if Severity("BOGUS").Rank() != -1 {
		t.Errorf("unknown severity should rank -1, got %d", Severity("BOGUS").Rank())
	}
}
