package engine

import (
	"context"
	"time"

	"github.com/jolinysx/Snowflake-RBAC-Structure-v2/pkg/governance"
	"github.com/jolinysx/Snowflake-RBAC-Structure-v2/pkg/stores"
)

// PolicyStore is the persistence surface the policy service needs.
// *stores.SQLiteStore satisfies it.
type PolicyStore interface {
	// CreatePolicy persists a new policy.
	CreatePolicy(ctx context.Context, policy *stores.PolicyRecord) error

	// GetPolicy retrieves a policy by ID.
	GetPolicy(ctx context.Context, id string) (*stores.PolicyRecord, error)

	// GetPolicyByName retrieves a policy by its unique name.
	GetPolicyByName(ctx context.Context, name string) (*stores.PolicyRecord, error)

	// UpdatePolicy persists changes to an existing policy.
	UpdatePolicy(ctx context.Context, policy *stores.PolicyRecord) error

	// SetPolicyActive toggles a policy without touching its definition.
	SetPolicyActive(ctx context.Context, id string, active bool, at time.Time) error

	// DeletePolicy removes a policy by ID.
	DeletePolicy(ctx context.Context, id string) error

	// ListPolicies lists policies matching the filter.
	ListPolicies(ctx context.Context, filter stores.PolicyFilter) ([]*stores.PolicyRecord, error)

	// ActivePolicies returns all active policies in evaluation form.
	ActivePolicies(ctx context.Context) ([]governance.StoredPolicy, error)
}

// ViolationStore is the persistence surface for violation lifecycle.
type ViolationStore interface {
	// GetViolation retrieves a violation by ID.
	GetViolation(ctx context.Context, id string) (*stores.ViolationRecord, error)

	// ListViolations lists violations matching the filter.
	ListViolations(ctx context.Context, filter stores.ViolationFilter) ([]*stores.ViolationRecord, error)

	// ResolveViolation transitions an open violation to resolved.
	ResolveViolation(ctx context.Context, id, resolvedBy string, notes *string, at time.Time) error

	// HasOpenViolation reports whether an open violation already exists for
	// the given policy and resource pair.
	HasOpenViolation(ctx context.Context, policyID, resourceID string) (bool, error)
}

// AuditStore is the persistence surface for the audit and access trails.
type AuditStore interface {
	// AppendOperation atomically appends an audit entry and its violations.
	AppendOperation(ctx context.Context, entry *stores.AuditRecord, violations []*stores.ViolationRecord) error

	// AppendAccess appends an access log entry.
	AppendAccess(ctx context.Context, entry *stores.AccessRecord) error

	// ListAuditEntries lists audit entries matching the filter.
	ListAuditEntries(ctx context.Context, filter stores.AuditFilter) ([]*stores.AuditRecord, error)

	// ListAccessEntries lists access entries matching the filter.
	ListAccessEntries(ctx context.Context, filter stores.AccessFilter) ([]*stores.AccessRecord, error)
}

// RetentionStore is the persistence surface for retention purges.
type RetentionStore interface {
	// CountPurgeable counts rows that a purge with the given cutoff would remove.
	CountPurgeable(ctx context.Context, cutoff time.Time) (stores.PurgeCounts, error)

	// DeletePurgeable removes purgeable rows older than the cutoff.
	DeletePurgeable(ctx context.Context, cutoff time.Time) (stores.PurgeCounts, error)
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by time.Now.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// LiveResource describes a governed resource currently present in the
// environment, as reported by the resource registry.
type LiveResource struct {
	// ID is the unique resource identifier.
	ID string `json:"id"`

	// Name is the human-readable resource name.
	Name string `json:"name"`

	// Kind is the resource kind (e.g. TABLE, SCHEMA, DATABASE).
	Kind string `json:"kind"`

	// Scope is the environment tag of the resource.
	Scope string `json:"scope"`

	// Owner is the account that created the resource.
	Owner string `json:"owner"`

	// SourceSchema is the schema the resource was cloned from, if any.
	SourceSchema string `json:"source_schema,omitempty"`

	// SourceName is the object the resource was cloned from, if any.
	SourceName string `json:"source_name,omitempty"`

	// Classification is the data classification label, if any.
	Classification string `json:"classification,omitempty"`

	// CreatedAt is when the resource was created.
	CreatedAt time.Time `json:"created_at"`
}

// ResourceRegistry tracks the live resource population. Quota policies
// and compliance scans consult it; the registry is advisory and never
// persisted by the engine itself.
type ResourceRegistry interface {
	// LiveResourceCount returns the number of live resources owned by the
	// actor within the scope.
	LiveResourceCount(ctx context.Context, actor, scope string) (int, error)

	// LiveResources returns all live resources in the scope. An empty scope
	// returns every resource.
	LiveResources(ctx context.Context, scope string) ([]LiveResource, error)

	// Track registers a resource as live.
	Track(ctx context.Context, res LiveResource) error

	// Release removes a resource from the live set.
	Release(ctx context.Context, resourceID string) error
}
