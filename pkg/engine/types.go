package engine

import (
	"time"

	"github.com/jolinysx/Snowflake-RBAC-Structure-v2/pkg/governance"
	"github.com/jolinysx/Snowflake-RBAC-Structure-v2/pkg/stores"
)

// OperationStatus is the outcome class of a service operation, surfaced as
// data rather than an error where the caller is expected to branch on it.
type OperationStatus string

const (
	// StatusSuccess indicates the operation completed normally.
	StatusSuccess OperationStatus = "SUCCESS"

	// StatusError indicates the operation was rejected or failed.
	StatusError OperationStatus = "ERROR"

	// StatusNotFound indicates the referenced entity does not exist.
	StatusNotFound OperationStatus = "NOT_FOUND"

	// StatusBlocked indicates the operation was vetoed by policy.
	StatusBlocked OperationStatus = "BLOCKED"
)

// PolicyResult is the structured outcome of a policy authoring operation.
type PolicyResult struct {
	// Status is the outcome class.
	Status OperationStatus `json:"status"`

	// Policy is the affected policy record, when the operation succeeded.
	Policy *stores.PolicyRecord `json:"policy,omitempty"`

	// Message is a human-readable outcome description.
	Message string `json:"message,omitempty"`
}

// OperationRequest describes one governed operation to record.
type OperationRequest struct {
	// Operation is the governed operation kind.
	Operation governance.OperationKind `json:"operation"`

	// Actor is the account performing the operation.
	Actor string `json:"actor"`

	// ActorRole is the role the actor assumed, if known.
	ActorRole string `json:"actor_role,omitempty"`

	// Scope is the environment tag of the target resource.
	Scope string `json:"scope"`

	// ResourceID identifies the target resource.
	ResourceID string `json:"resource_id"`

	// ResourceName is the human-readable resource name.
	ResourceName string `json:"resource_name"`

	// ResourceKind is the kind of the target resource.
	ResourceKind string `json:"resource_kind"`

	// SourceSchema is the schema the resource is cloned from, if any.
	SourceSchema string `json:"source_schema,omitempty"`

	// SourceName is the object the resource is cloned from, if any.
	SourceName string `json:"source_name,omitempty"`

	// Classification is the data classification label, if any.
	Classification string `json:"classification,omitempty"`

	// Success reports whether the underlying operation itself succeeded.
	// Failed operations are recorded but never evaluated.
	Success bool `json:"success"`

	// Error is the operation failure message when Success is false.
	Error string `json:"error,omitempty"`

	// Metadata carries additional key-value context for the audit entry.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// RecordResult is the structured outcome of recording one operation.
// Recording never returns an error: storage failures are folded into
// Recorded=false and surfaced through logging and metrics.
type RecordResult struct {
	// AuditID is the ID of the appended audit entry, when recorded.
	AuditID string `json:"audit_id,omitempty"`

	// Verdict is the policy evaluation verdict, when evaluation ran.
	Verdict *governance.Verdict `json:"verdict,omitempty"`

	// Blocked reports whether the operation was vetoed by policy.
	Blocked bool `json:"blocked"`

	// ViolationIDs are the IDs of violations persisted for this operation.
	ViolationIDs []string `json:"violation_ids,omitempty"`

	// Recorded reports whether the audit entry was persisted.
	Recorded bool `json:"recorded"`

	// Outcome is the audit outcome that was (or would have been) recorded.
	Outcome stores.AuditOutcome `json:"outcome"`
}

// AccessRequest describes one data access event to record.
type AccessRequest struct {
	// ResourceID identifies the accessed resource.
	ResourceID string `json:"resource_id"`

	// ResourceName is the human-readable resource name.
	ResourceName string `json:"resource_name"`

	// Actor is the account performing the access.
	Actor string `json:"actor"`

	// AccessType is the access category (e.g. READ, EXPORT).
	AccessType string `json:"access_type"`

	// Details carries additional key-value context for the access entry.
	Details map[string]interface{} `json:"details,omitempty"`
}

// ScanResult is the outcome of one compliance scan pass.
type ScanResult struct {
	// Scanned is the number of live resources examined.
	Scanned int `json:"scanned"`

	// CompliantCount is the number of scanned resources with no finding.
	CompliantCount int `json:"compliant_count"`

	// NonCompliantCount is the number of scanned resources that violated at
	// least one age policy, whether or not a new violation was opened.
	NonCompliantCount int `json:"non_compliant_count"`

	// NewViolations is the number of violations opened by this pass.
	NewViolations int `json:"new_violations"`

	// Violations are the violation records opened by this pass.
	Violations []*stores.ViolationRecord `json:"violations,omitempty"`

	// Skipped is the number of findings skipped because an equivalent
	// open violation already existed.
	Skipped int `json:"skipped"`

	// Duration is how long the pass took.
	Duration time.Duration `json:"duration"`

	// StartedAt is when the pass began.
	StartedAt time.Time `json:"started_at"`
}

// PurgeResult is the outcome of one retention purge pass.
type PurgeResult struct {
	// DryRun reports whether rows were only counted, not deleted.
	DryRun bool `json:"dry_run"`

	// Cutoff is the retention cutoff applied.
	Cutoff time.Time `json:"cutoff"`

	// Counts holds the per-collection row counts.
	Counts stores.PurgeCounts `json:"counts"`
}

// ViolationResult is the structured outcome of a violation lifecycle operation.
type ViolationResult struct {
	// Status is the outcome class.
	Status OperationStatus `json:"status"`

	// Violation is the affected violation record, when the operation succeeded.
	Violation *stores.ViolationRecord `json:"violation,omitempty"`

	// Message is a human-readable outcome description.
	Message string `json:"message,omitempty"`
}
