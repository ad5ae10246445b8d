// Package engine wires policy evaluation, audit recording, compliance
// scanning, and retention into the governance workflow.
//
// # Overview
//
// The engine sits between the callers that perform clone operations and
// the persistence layer that remembers them. It operates through four
// cooperating components:
//
//  1. Recorder - Evaluate and record governed operations (Recorder)
//  2. Service  - Policy authoring and violation lifecycle (Service)
//  3. Scanner  - Periodic age sweeps over the live population (Scanner)
//  4. Purger   - Retention purges of aged audit data (Purger)
//
// A Runner drives the scanner and purger on tickers for long-running
// deployments; short-lived CLI invocations call them directly.
//
// # Recording model
//
// RecordOperation is the single write path of the audit trail. The caller
// reports an operation that already happened; the recorder evaluates it
// against the active policies, persists the audit entry and any violations
// in one transaction, and returns a structured RecordResult. Recording
// never returns an error: the operation cannot be failed retroactively, so
// storage problems are folded into the result and surfaced through logging
// and metrics.
//
// A blocking verdict marks the audit outcome BLOCKED. Undoing the
// operation itself is the caller's responsibility; the engine only renders
// and records the verdict.
//
// Evaluate is the non-recording counterpart: it renders a verdict for a
// hypothetical operation so callers can pre-check before doing anything
// irreversible. Because nothing is persisted, it reports failures as
// ordinary errors.
//
// # Error model
//
// Errors are classified through GovernanceError:
//
//   - validation: synchronously rejected input on the authoring path
//   - not_found: lookup misses, surfaced as structured result statuses
//   - storage: persistence failures
//   - skip: isolated per-policy evaluation failures
//
// Authoring operations return structured results (PolicyResult,
// ViolationResult) whose Status field carries validation and not-found
// outcomes as data; only storage failures travel as Go errors.
//
// # Storage interfaces
//
// The engine depends on narrow store interfaces (PolicyStore,
// ViolationStore, AuditStore, RetentionStore), all satisfied by
// *stores.SQLiteStore. The ResourceRegistry abstraction supplies live
// resource counts for quota policies and the scan population.
package engine
