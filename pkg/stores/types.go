package stores

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jolinysx/Snowflake-RBAC-Structure-v2/pkg/governance"
)

// ErrNotFound is wrapped by every lookup that misses, so callers can turn a
// miss into a structured result instead of a failure.
var ErrNotFound = errors.New("not found")

// AuditOutcome records how a governed operation ended.
type AuditOutcome string

const (
	OutcomeSuccess AuditOutcome = "SUCCESS"
	OutcomeFailed  AuditOutcome = "FAILED"
	OutcomeBlocked AuditOutcome = "BLOCKED"
)

// PolicyRecord is the persisted form of a policy. The definition is stored
// as its JSON encoding; it is parsed back through the typed variants on read.
type PolicyRecord struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Kind        string    `json:"kind"`
	Scope       *string   `json:"scope,omitempty"`
	Severity    string    `json:"severity"`
	Definition  string    `json:"definition"` // JSON blob
	Active      bool      `json:"active"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ViolationRecord is a persisted policy finding. Policy name and severity
// are denormalized at detection time so the record stays meaningful if the
// policy is later edited or deleted.
type ViolationRecord struct {
	ID              string     `json:"id"`
	PolicyID        string     `json:"policy_id"`
	PolicyName      string     `json:"policy_name"`
	ResourceID      string     `json:"resource_id"`
	ResourceName    string     `json:"resource_name"`
	Violator        string     `json:"violator"`
	Message         string     `json:"message"`
	Action          string     `json:"action"`
	Severity        string     `json:"severity"`
	Details         *string    `json:"details,omitempty"` // JSON blob
	Status          string     `json:"status"`            // OPEN or RESOLVED
	ResolvedBy      *string    `json:"resolved_by,omitempty"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
	ResolutionNotes *string    `json:"resolution_notes,omitempty"`
	DetectedAt      time.Time  `json:"detected_at"`
}

// AuditRecord is one append-only entry in the operation audit log.
type AuditRecord struct {
	ID           string       `json:"id"`
	Operation    string       `json:"operation"`
	Actor        string       `json:"actor"`
	ActorRole    *string      `json:"actor_role,omitempty"`
	Scope        string       `json:"scope"`
	ResourceID   string       `json:"resource_id"`
	ResourceName string       `json:"resource_name"`
	Outcome      AuditOutcome `json:"outcome"`
	Error        *string      `json:"error,omitempty"`
	ViolationIDs *string      `json:"violation_ids,omitempty"` // JSON array
	Metadata     *string      `json:"metadata,omitempty"`      // JSON blob
	Timestamp    time.Time    `json:"timestamp"`
}

// AccessRecord is one append-only entry in the read/use access log.
type AccessRecord struct {
	ID           int64     `json:"id"`
	ResourceID   string    `json:"resource_id"`
	ResourceName string    `json:"resource_name"`
	Actor        string    `json:"actor"`
	AccessType   string    `json:"access_type"` // e.g. READ, EXPORT
	Details      *string   `json:"details,omitempty"` // JSON blob
	Timestamp    time.Time `json:"timestamp"`
}

// PolicyFilter narrows policy list queries. Nil fields match everything.
type PolicyFilter struct {
	Kind   *string
	Scope  *string
	Active *bool
	Limit  int
	Offset int
}

// ViolationFilter narrows violation list queries. Nil fields match
// everything; From and To bound the detection time.
type ViolationFilter struct {
	PolicyID   *string
	ResourceID *string
	Violator   *string
	Status     *string
	Severity   *string
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

// AuditFilter narrows audit log queries.
type AuditFilter struct {
	Operation *string
	Actor     *string
	Scope     *string
	Outcome   *string
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

// AccessFilter narrows access log queries.
type AccessFilter struct {
	ResourceID *string
	Actor      *string
	AccessType *string
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

// PurgeCounts reports how many rows a purge pass covers per collection.
type PurgeCounts struct {
	Violations int64 `json:"violations"`
	Audit      int64 `json:"audit"`
	Access     int64 `json:"access"`
}

// Total returns the sum across collections.
func (c PurgeCounts) Total() int64 {
	return c.Violations + c.Audit + c.Access
}

// Store defines the interface for the persistence layer.
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Transaction support
	BeginTx(ctx context.Context) (*sql.Tx, error)

	// Policy operations
	CreatePolicy(ctx context.Context, record *PolicyRecord) error
	GetPolicy(ctx context.Context, id string) (*PolicyRecord, error)
	GetPolicyByName(ctx context.Context, name string) (*PolicyRecord, error)
	UpdatePolicy(ctx context.Context, record *PolicyRecord) error
	SetPolicyActive(ctx context.Context, id string, active bool, at time.Time) error
	DeletePolicy(ctx context.Context, id string) error
	ListPolicies(ctx context.Context, filter PolicyFilter) ([]*PolicyRecord, error)
	ActivePolicies(ctx context.Context) ([]governance.StoredPolicy, error)

	// Violation operations
	GetViolation(ctx context.Context, id string) (*ViolationRecord, error)
	ListViolations(ctx context.Context, filter ViolationFilter) ([]*ViolationRecord, error)
	ResolveViolation(ctx context.Context, id, resolvedBy string, notes *string, at time.Time) error
	HasOpenViolation(ctx context.Context, policyID, resourceID string) (bool, error)

	// Audit operations. AppendOperation writes the audit record and its
	// violations in a single transaction.
	AppendOperation(ctx context.Context, entry *AuditRecord, violations []*ViolationRecord) error
	AppendAccess(ctx context.Context, entry *AccessRecord) error
	ListAuditEntries(ctx context.Context, filter AuditFilter) ([]*AuditRecord, error)
	ListAccessEntries(ctx context.Context, filter AccessFilter) ([]*AccessRecord, error)

	// Retention primitives. Violation counts and deletes cover RESOLVED
	// rows only; OPEN violations are never eligible.
	CountPurgeable(ctx context.Context, cutoff time.Time) (PurgeCounts, error)
	DeletePurgeable(ctx context.Context, cutoff time.Time) (PurgeCounts, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
