package governance

import (
	"time"
)

// Severity represents the severity level of a policy and the violations it produces.
// Severities are ordered: INFO < WARNING < ERROR < CRITICAL.
type Severity string

const (
	// SeverityInfo is for informational findings.
	SeverityInfo Severity = "INFO"

	// SeverityWarning is for findings that should be reviewed.
	SeverityWarning Severity = "WARNING"

	// SeverityError is for findings that indicate a real compliance failure.
	SeverityError Severity = "ERROR"

	// SeverityCritical is for findings that must be addressed immediately.
	SeverityCritical Severity = "CRITICAL"
)

// severityRank maps severities to their position in the ordering.
var severityRank = map[Severity]int{
	SeverityInfo:     0,
	SeverityWarning:  1,
	SeverityError:    2,
	SeverityCritical: 3,
}

// Rank returns the numeric position of the severity in the INFO..CRITICAL
// ordering. Unknown severities rank below INFO.
func (s Severity) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return -1
}

// Valid reports whether the severity is a member of the closed enumeration.
func (s Severity) Valid() bool {
	_, ok := severityRank[s]
	return ok
}

// PolicyKind identifies the rule category of a policy. The set is closed:
// each kind carries its own strongly-typed definition (see definition.go).
type PolicyKind string

const (
	KindEnvironmentRestriction PolicyKind = "ENVIRONMENT_RESTRICTION"
	KindUserQuota              PolicyKind = "USER_QUOTA"
	KindTimeRestriction        PolicyKind = "TIME_RESTRICTION"
	KindSensitiveData          PolicyKind = "SENSITIVE_DATA"
	KindMaxAge                 PolicyKind = "MAX_AGE"
	KindRestrictedSource       PolicyKind = "RESTRICTED_SOURCE"
	KindDataClassification     PolicyKind = "DATA_CLASSIFICATION"
	KindApprovalRequired       PolicyKind = "APPROVAL_REQUIRED"
)

// Kinds returns every member of the policy kind enumeration.
func Kinds() []PolicyKind {
	return []PolicyKind{
		KindEnvironmentRestriction,
		KindUserQuota,
		KindTimeRestriction,
		KindSensitiveData,
		KindMaxAge,
		KindRestrictedSource,
		KindDataClassification,
		KindApprovalRequired,
	}
}

// Valid reports whether the kind is a member of the closed enumeration.
func (k PolicyKind) Valid() bool {
	for _, known := range Kinds() {
		if k == known {
			return true
		}
	}
	return false
}

// PolicyAction is what a matching policy asks the platform to do.
type PolicyAction string

const (
	// ActionLog records the violation without affecting the operation.
	ActionLog PolicyAction = "LOG"

	// ActionBlock records the violation and vetoes the operation.
	ActionBlock PolicyAction = "BLOCK"

	// ActionRequireApproval records the violation and demands a manual
	// sign-off before the operation may proceed.
	ActionRequireApproval PolicyAction = "REQUIRE_APPROVAL"
)

// Valid reports whether the action is a member of the closed enumeration.
func (a PolicyAction) Valid() bool {
	switch a {
	case ActionLog, ActionBlock, ActionRequireApproval:
		return true
	}
	return false
}

// Policy represents a single compliance rule.
type Policy struct {
	// ID is the unique identifier of the policy.
	ID string `json:"id"`

	// Name is the unique human-readable name of the policy.
	Name string `json:"name"`

	// Kind selects the evaluation semantics and the definition shape.
	Kind PolicyKind `json:"kind"`

	// Scope is an optional environment tag (e.g. "PROD"). A nil scope means
	// the policy applies everywhere.
	Scope *string `json:"scope,omitempty"`

	// Definition holds the kind-specific parameters. It is validated against
	// Kind at creation time and never mutated by the evaluator.
	Definition Definition `json:"definition"`

	// Severity is copied onto every violation the policy produces.
	Severity Severity `json:"severity"`

	// Active controls whether the policy participates in evaluation.
	// Inactive policies are retained for audit history.
	Active bool `json:"active"`

	// Description provides a human-readable description.
	Description string `json:"description,omitempty"`

	// CreatedAt is when the policy was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the policy was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// AppliesTo reports whether the policy is in scope for the given environment
// tag. A policy without a scope applies everywhere.
func (p *Policy) AppliesTo(scope string) bool {
	return p.Scope == nil || *p.Scope == scope
}

// OperationKind identifies the governed operation being recorded.
type OperationKind string

const (
	OpCreate       OperationKind = "CREATE"
	OpDelete       OperationKind = "DELETE"
	OpPolicyCreate OperationKind = "POLICY_CREATE"
	OpPolicyUpdate OperationKind = "POLICY_UPDATE"
	OpPolicyDelete OperationKind = "POLICY_DELETE"
	OpScan         OperationKind = "SCAN"
	OpPurge        OperationKind = "PURGE"
)

// EvalContext is the complete input of one evaluation. Every field the
// evaluator consults is carried here explicitly; nothing is read from
// ambient state, so repeated calls with an identical context are
// deterministic.
type EvalContext struct {
	// Operation is the governed operation being checked.
	Operation OperationKind `json:"operation"`

	// Scope is the environment tag of the target resource.
	Scope string `json:"scope"`

	// ResourceKind is the kind of the target resource (e.g. TABLE, SCHEMA).
	ResourceKind string `json:"resource_kind"`

	// ResourceID and ResourceName identify the target clone.
	ResourceID   string `json:"resource_id"`
	ResourceName string `json:"resource_name"`

	// SourceSchema is the schema the clone derives from.
	SourceSchema string `json:"source_schema,omitempty"`

	// SourceName is the source object the clone derives from.
	SourceName string `json:"source_name,omitempty"`

	// Classification is the data classification tag of the source, if any.
	Classification string `json:"classification,omitempty"`

	// Actor is the identity performing the operation; ActorRole its active role.
	Actor     string `json:"actor"`
	ActorRole string `json:"actor_role,omitempty"`

	// LiveResourceCount is the actor's current number of live clones in
	// scope, supplied by the resource registry.
	LiveResourceCount int `json:"live_resource_count"`

	// ResourceAgeDays is the age of an existing resource, used by the
	// compliance scanner for age-bearing policies. Zero for creations.
	ResourceAgeDays int `json:"resource_age_days,omitempty"`

	// Now is the injected evaluation clock.
	Now time.Time `json:"now"`
}

// Violation is a single policy finding produced by the evaluator. It is a
// candidate until the recorder persists it to the violation store.
type Violation struct {
	// PolicyID and PolicyName identify the violated policy. The name is
	// denormalized so the finding stays meaningful if the policy is deleted.
	PolicyID   string `json:"policy_id"`
	PolicyName string `json:"policy_name"`

	// PolicyKind is the kind of the violated policy.
	PolicyKind PolicyKind `json:"policy_kind"`

	// ResourceID and ResourceName identify the offending resource.
	ResourceID   string `json:"resource_id"`
	ResourceName string `json:"resource_name"`

	// Violator is the actor whose operation triggered the finding.
	Violator string `json:"violator"`

	// Message is a human-readable explanation.
	Message string `json:"message"`

	// Action is the policy's configured action at detection time.
	Action PolicyAction `json:"action"`

	// Severity is copied from the policy at detection time and must not
	// change if the policy is later edited.
	Severity Severity `json:"severity"`

	// Details contains kind-specific context for the finding.
	Details map[string]interface{} `json:"details,omitempty"`

	// Block reports whether this single finding vetoes the operation.
	Block bool `json:"block"`
}

// Verdict is the result of one evaluation.
type Verdict struct {
	// Violations lists all findings, ordered by descending severity and
	// then by policy name for deterministic output.
	Violations []Violation `json:"violations,omitempty"`

	// Block is true iff at least one matching policy vetoed the operation.
	Block bool `json:"block"`

	// EvaluatedPolicies is the number of active, in-scope policies consulted.
	EvaluatedPolicies int `json:"evaluated_policies"`

	// SkippedPolicies counts policies whose definitions failed to parse and
	// were isolated from the evaluation.
	SkippedPolicies int `json:"skipped_policies"`

	// EvaluatedAt is the clock value the verdict was computed against.
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// ViolationStatus tracks the lifecycle of a persisted violation.
type ViolationStatus string

const (
	// ViolationOpen marks an unresolved finding. Open violations are never
	// purged regardless of age.
	ViolationOpen ViolationStatus = "OPEN"

	// ViolationResolved marks a finding closed by an explicit resolution.
	ViolationResolved ViolationStatus = "RESOLVED"
)
