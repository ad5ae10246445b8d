package governance

import (
	"strings"
	"testing"
	"time"
)

func TestParseDefinition(t *testing.T) {
	tests := []struct {
		name    string
		kind    PolicyKind
		raw     string
		wantErr string
	}{
		{
			name: "valid environment restriction",
			kind: KindEnvironmentRestriction,
			raw:  `{"action":"BLOCK","restricted_kinds":["TABLE","SCHEMA"]}`,
		},
		{
			name:    "environment restriction without kinds",
			kind:    KindEnvironmentRestriction,
			raw:     `{"action":"BLOCK","restricted_kinds":[]}`,
			wantErr: "invalid",
		},
		{
			name: "valid user quota",
			kind: KindUserQuota,
			raw:  `{"action":"BLOCK","max_resources":5}`,
		},
		{
			name:    "user quota with zero maximum",
			kind:    KindUserQuota,
			raw:     `{"action":"BLOCK","max_resources":0}`,
			wantErr: "invalid",
		},
		{
			name: "valid time restriction",
			kind: KindTimeRestriction,
			raw:  `{"action":"LOG","start_hour":8,"end_hour":18,"allowed_weekdays":[1,2,3,4,5]}`,
		},
		{
			name:    "time restriction with inverted window",
			kind:    KindTimeRestriction,
			raw:     `{"action":"LOG","start_hour":18,"end_hour":8,"allowed_weekdays":[1]}`,
			wantErr: "end_hour",
		},
		{
			name: "valid sensitive data",
			kind: KindSensitiveData,
			raw:  `{"action":"REQUIRE_APPROVAL","restricted_schemas":["PII"]}`,
		},
		{
			name: "valid max age",
			kind: KindMaxAge,
			raw:  `{"action":"LOG","max_age_days":30}`,
		},
		{
			name:    "max age may not block",
			kind:    KindMaxAge,
			raw:     `{"action":"BLOCK","max_age_days":30}`,
			wantErr: "not allowed",
		},
		{
			name: "valid restricted source",
			kind: KindRestrictedSource,
			raw:  `{"action":"BLOCK","restricted_sources":["FINANCE.LEDGER"]}`,
		},
		{
			name: "valid data classification",
			kind: KindDataClassification,
			raw:  `{"action":"BLOCK","blocked_classifications":["CONFIDENTIAL"]}`,
		},
		{
			name: "valid approval required",
			kind: KindApprovalRequired,
			raw:  `{"action":"REQUIRE_APPROVAL","approver_roles":["DBA","SECURITY"]}`,
		},
		{
			name:    "unknown action rejected",
			kind:    KindUserQuota,
			raw:     `{"action":"SHRUG","max_resources":5}`,
			wantErr: "unknown policy action",
		},
		{
			name:    "unknown field rejected",
			kind:    KindUserQuota,
			raw:     `{"action":"BLOCK","max_resourcez":5}`,
			wantErr: "unknown field",
		},
		{
			name:    "unknown kind rejected",
			kind:    PolicyKind("MYSTERY"),
			raw:     `{}`,
			wantErr: "unknown policy kind",
		},
		{
			name:    "wrong parameter type rejected",
			kind:    KindUserQuota,
			raw:     `{"action":"BLOCK","max_resources":"five"}`,
			wantErr: "decode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, err := ParseDefinition(tt.kind, []byte(tt.raw))

			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("ParseDefinition failed: %v", err)
				}
				if def.Kind() != tt.kind {
					t.Errorf("definition kind = %s, want %s", def.Kind(), tt.kind)
				}
				return
			}

			if err == nil {
				t.Fatalf("expected error containing %q, got definition %+v", tt.wantErr, def)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestDefinitionRoundTrip(t *testing.T) {
	original := &TimeRestrictionDef{
		Action:          ActionLog,
		StartHour:       9,
		EndHour:         17,
		AllowedWeekdays: []time.Weekday{time.Monday, time.Friday},
	}

	raw, err := MarshalDefinition(original)
	if err != nil {
		t.Fatalf("MarshalDefinition failed: %v", err)
	}

	parsed, err := ParseDefinition(KindTimeRestriction, raw)
	if err != nil {
		t.Fatalf("ParseDefinition failed: %v", err)
	}

	restored, ok := parsed.(*TimeRestrictionDef)
	if !ok {
		t.Fatalf("parsed definition has wrong type %T", parsed)
	}
	if restored.StartHour != 9 || restored.EndHour != 17 {
		t.Errorf("hour window lost in round trip: %+v", restored)
	}
	if !restored.AllowsWeekday(time.Monday) || restored.AllowsWeekday(time.Sunday) {
		t.Errorf("weekday set lost in round trip: %+v", restored.AllowedWeekdays)
	}
}

func TestSensitiveDataMatchedSchema(t *testing.T) {
	def := &SensitiveDataDef{Action: ActionBlock, RestrictedSchemas: []string{"PII", "PHI"}}

	if got := def.MatchedSchema("customer_pii_archive"); got != "PII" {
		t.Errorf("MatchedSchema = %q, want PII", got)
	}
	if got := def.MatchedSchema("SALES"); got != "" {
		t.Errorf("MatchedSchema = %q, want empty", got)
	}
}

func TestPolicyAppliesTo(t *testing.T) {
	prod := "PROD"

	unscoped := Policy{Name: "everywhere"}
	if !unscoped.AppliesTo("DEV") || !unscoped.AppliesTo("PROD") {
		t.Error("policy without scope must apply everywhere")
	}

	scoped := Policy{Name: "prod-only", Scope: &prod}
	if !scoped.AppliesTo("PROD") {
		t.Error("scoped policy must apply to its own scope")
	}
	if scoped.AppliesTo("DEV") {
		t.Error("scoped policy must not apply outside its scope")
	}
}
