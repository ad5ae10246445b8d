package governance

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// StoredPolicy is a policy as read back from the policy store, with its
// definition still encoded. The evaluator decodes definitions one by one so
// a single malformed row cannot poison the whole evaluation.
type StoredPolicy struct {
	ID         string
	Name       string
	Kind       PolicyKind
	Scope      *string
	Severity   Severity
	Active     bool
	Definition json.RawMessage
}

// AppliesTo reports whether the stored policy is in scope for the given
// environment tag.
func (p *StoredPolicy) AppliesTo(scope string) bool {
	return p.Scope == nil || *p.Scope == scope
}

// PolicySource supplies the currently active policies to the evaluator.
type PolicySource interface {
	ActivePolicies(ctx context.Context) ([]StoredPolicy, error)
}

// Evaluator decides, for a single operation context, which active policies
// are violated and whether the operation must be blocked. It holds no
// mutable state and is safe for fully parallel use.
type Evaluator struct {
	source PolicySource
	logger zerolog.Logger
}

// NewEvaluator creates an evaluator reading policies from the given source.
func NewEvaluator(source PolicySource, logger zerolog.Logger) *Evaluator {
	return &Evaluator{
		source: source,
		logger: logger.With().Str("component", "policy-evaluator").Logger(),
	}
}

// Evaluate computes the verdict for one operation context. The clock is
// taken from ec.Now; identical inputs always produce an identical verdict.
func (e *Evaluator) Evaluate(ctx context.Context, ec EvalContext) (*Verdict, error) {
	policies, err := e.source.ActivePolicies(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active policies: %w", err)
	}

	verdict := &Verdict{EvaluatedAt: ec.Now}

	for i := range policies {
		p := &policies[i]
		if !p.Active || !p.AppliesTo(ec.Scope) {
			continue
		}

		def, err := ParseDefinition(p.Kind, p.Definition)
		if err != nil {
			// Poison-policy isolation: one bad definition must not abort
			// the remaining policies.
			verdict.SkippedPolicies++
			e.logger.Warn().Err(err).
				Str("policy", p.Name).
				Str("kind", string(p.Kind)).
				Msg("Skipping policy with malformed definition")
			continue
		}

		verdict.EvaluatedPolicies++

		violation := e.apply(p, def, ec)
		if violation == nil {
			continue
		}

		verdict.Violations = append(verdict.Violations, *violation)
		if violation.Block {
			verdict.Block = true
		}
	}

	sortViolations(verdict.Violations)
	return verdict, nil
}

// apply dispatches one policy against the context and returns the finding,
// or nil if the policy is satisfied.
func (e *Evaluator) apply(p *StoredPolicy, def Definition, ec EvalContext) *Violation {
	switch d := def.(type) {
	case *EnvironmentRestrictionDef:
		for _, kind := range d.RestrictedKinds {
			if strings.EqualFold(kind, ec.ResourceKind) {
				return e.finding(p, d, ec,
					fmt.Sprintf("resource kind %s may not be cloned in this environment", ec.ResourceKind),
					map[string]interface{}{"resource_kind": ec.ResourceKind})
			}
		}

	case *UserQuotaDef:
		if ec.LiveResourceCount >= d.MaxResources {
			return e.finding(p, d, ec,
				fmt.Sprintf("actor %s holds %d live clones, quota is %d", ec.Actor, ec.LiveResourceCount, d.MaxResources),
				map[string]interface{}{"live_count": ec.LiveResourceCount, "max_resources": d.MaxResources})
		}

	case *TimeRestrictionDef:
		hour := ec.Now.Hour()
		outsideHours := hour < d.StartHour || hour >= d.EndHour
		if outsideHours || !d.AllowsWeekday(ec.Now.Weekday()) {
			return e.finding(p, d, ec,
				fmt.Sprintf("operation at %s is outside the allowed window %02d:00-%02d:00", ec.Now.Format(time.RFC3339), d.StartHour, d.EndHour),
				map[string]interface{}{"hour": hour, "weekday": ec.Now.Weekday().String()})
		}

	case *SensitiveDataDef:
		if matched := d.MatchedSchema(ec.SourceSchema); matched != "" {
			return e.finding(p, d, ec,
				fmt.Sprintf("source schema %s contains restricted schema %s", ec.SourceSchema, matched),
				map[string]interface{}{"source_schema": ec.SourceSchema, "matched_schema": matched})
		}

	case *MaxAgeDef:
		if ec.ResourceAgeDays > d.MaxAgeDays {
			return e.finding(p, d, ec,
				fmt.Sprintf("clone %s is %d days old, maximum age is %d days", ec.ResourceName, ec.ResourceAgeDays, d.MaxAgeDays),
				map[string]interface{}{"age_days": ec.ResourceAgeDays, "max_age_days": d.MaxAgeDays})
		}

	case *RestrictedSourceDef:
		if d.Matches(ec.SourceName) {
			return e.finding(p, d, ec,
				fmt.Sprintf("source object %s is restricted from cloning", ec.SourceName),
				map[string]interface{}{"source_name": ec.SourceName})
		}

	case *DataClassificationDef:
		if ec.Classification != "" && d.Matches(ec.Classification) {
			return e.finding(p, d, ec,
				fmt.Sprintf("source classification %s may not be cloned", ec.Classification),
				map[string]interface{}{"classification": ec.Classification})
		}

	case *ApprovalRequiredDef:
		if !d.RoleApproved(ec.ActorRole) {
			return e.finding(p, d, ec,
				fmt.Sprintf("role %s requires approval for this operation", ec.ActorRole),
				map[string]interface{}{"actor_role": ec.ActorRole, "approver_roles": d.ApproverRoles})
		}
	}

	return nil
}

// finding builds a violation candidate for a matched policy.
func (e *Evaluator) finding(p *StoredPolicy, def Definition, ec EvalContext, message string, details map[string]interface{}) *Violation {
	return &Violation{
		PolicyID:     p.ID,
		PolicyName:   p.Name,
		PolicyKind:   p.Kind,
		ResourceID:   ec.ResourceID,
		ResourceName: ec.ResourceName,
		Violator:     ec.Actor,
		Message:      message,
		Action:       def.ConfiguredAction(),
		Severity:     p.Severity,
		Details:      details,
		Block:        blocks(p.Kind, def.ConfiguredAction()),
	}
}

// blocks decides whether a single matched policy vetoes the operation.
// BLOCK always vetoes; REQUIRE_APPROVAL vetoes only for SENSITIVE_DATA,
// where proceeding without sign-off would already expose the data.
func blocks(kind PolicyKind, action PolicyAction) bool {
	if action == ActionBlock {
		return true
	}
	return kind == KindSensitiveData && action == ActionRequireApproval
}

// sortViolations orders findings by descending severity, then by policy
// name, so verdicts are deterministic regardless of store iteration order.
func sortViolations(violations []Violation) {
	sort.SliceStable(violations, func(i, j int) bool {
		if violations[i].Severity.Rank() != violations[j].Severity.Rank() {
			return violations[i].Severity.Rank() > violations[j].Severity.Rank()
		}
		return violations[i].PolicyName < violations[j].PolicyName
	})
}
