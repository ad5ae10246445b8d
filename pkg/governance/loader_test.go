package governance

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func writeSeedFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write seed file: %v", err)
	}
	return path
}

func TestLoaderLoadFromPaths(t *testing.T) {
	dir := t.TempDir()

	writeSeedFile(t, dir, "quota.yaml", `
policies:
  - name: clone-quota
    kind: USER_QUOTA
    severity: WARNING
    definition:
      action: BLOCK
      max_resources: 5
  - name: pii-guard
    kind: SENSITIVE_DATA
    scope: PROD
    severity: CRITICAL
    definition:
      action: REQUIRE_APPROVAL
      restricted_schemas: [PII, PHI]
`)
	writeSeedFile(t, dir, "sources.json", `{
  "policies": [
    {
      "name": "no-ledger",
      "kind": "RESTRICTED_SOURCE",
      "severity": "ERROR",
      "active": false,
      "definition": {"action": "BLOCK", "restricted_sources": ["FINANCE.LEDGER"]}
    }
  ]
}`)
	writeSeedFile(t, dir, "notes.txt", "not a seed file")

	loader := NewLoader(zerolog.Nop())
	policies, err := loader.LoadFromPaths(context.Background(), []string{dir})
	if err != nil {
		t.Fatalf("LoadFromPaths failed: %v", err)
	}

	if len(policies) != 3 {
		t.Fatalf("loaded %d policies, want 3", len(policies))
	}

	byName := make(map[string]Policy)
	for _, p := range policies {
		byName[p.Name] = p
	}

	quota, ok := byName["clone-quota"]
	if !ok {
		t.Fatal("clone-quota not loaded")
	}
	if def, ok := quota.Definition.(*UserQuotaDef); !ok || def.MaxResources != 5 {
		t.Errorf("clone-quota definition = %+v, want max_resources 5", quota.Definition)
	}
	if !quota.Active {
		t.Error("active must default to true")
	}

	pii := byName["pii-guard"]
	if pii.Scope == nil || *pii.Scope != "PROD" {
		t.Errorf("pii-guard scope = %v, want PROD", pii.Scope)
	}

	if byName["no-ledger"].Active {
		t.Error("explicit active: false must be honored")
	}
}

func TestLoaderRejectsInvalidDefinition(t *testing.T) {
	dir := t.TempDir()
	path := writeSeedFile(t, dir, "bad.yaml", `
policies:
  - name: bad-quota
    kind: USER_QUOTA
    severity: WARNING
    definition:
      action: BLOCK
      max_resources: 0
`)

	loader := NewLoader(zerolog.Nop())
	if _, err := loader.LoadFromPaths(context.Background(), []string{path}); err == nil {
		t.Fatal("expected validation error for zero max_resources")
	}
}

func TestSeedPolicyDefaults(t *testing.T) {
	seed := SeedPolicy{
		Name: "defaulted",
		Kind: KindMaxAge,
		Definition: map[string]interface{}{
			"action":       "LOG",
			"max_age_days": 14,
		},
	}

	policy, err := seed.ToPolicy()
	if err != nil {
		t.Fatalf("ToPolicy failed: %v", err)
	}

	if policy.Severity != SeverityWarning {
		t.Errorf("severity = %s, want default WARNING", policy.Severity)
	}
	if !policy.Active {
		t.Error("active must default to true")
	}
}
