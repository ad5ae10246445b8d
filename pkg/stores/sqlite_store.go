package stores

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/jolinysx/Snowflake-RBAC-Structure-v2/pkg/governance"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	return &SQLiteStore{
		path: cfg.Path,
	}, nil
}

// Init initializes the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// Ensure foreign keys are enabled (connection-level setting)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// BeginTx starts a new transaction
func (s *SQLiteStore) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
}

// CreatePolicy creates a new policy record
func (s *SQLiteStore) CreatePolicy(ctx context.Context, record *PolicyRecord) error {
	query := `
		INSERT INTO policies (id, name, kind, scope, severity, definition, active, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		record.ID,
		record.Name,
		record.Kind,
		record.Scope,
		record.Severity,
		record.Definition,
		record.Active,
		record.Description,
		record.CreatedAt,
		record.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create policy: %w", err)
	}

	return nil
}

const policyColumns = `id, name, kind, scope, severity, definition, active, description, created_at, updated_at`

func scanPolicy(row interface{ Scan(...interface{}) error }) (*PolicyRecord, error) {
	record := &PolicyRecord{}
	err := row.Scan(
		&record.ID,
		&record.Name,
		&record.Kind,
		&record.Scope,
		&record.Severity,
		&record.Definition,
		&record.Active,
		&record.Description,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// GetPolicy retrieves a policy by ID
func (s *SQLiteStore) GetPolicy(ctx context.Context, id string) (*PolicyRecord, error) {
	query := `SELECT ` + policyColumns + ` FROM policies WHERE id = ?`

	record, err := scanPolicy(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("policy %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get policy: %w", err)
	}

	return record, nil
}

// GetPolicyByName retrieves a policy by its unique name
func (s *SQLiteStore) GetPolicyByName(ctx context.Context, name string) (*PolicyRecord, error) {
	query := `SELECT ` + policyColumns + ` FROM policies WHERE name = ?`

	record, err := scanPolicy(s.db.QueryRowContext(ctx, query, name))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("policy %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get policy by name: %w", err)
	}

	return record, nil
}

// UpdatePolicy replaces the mutable fields of a policy
func (s *SQLiteStore) UpdatePolicy(ctx context.Context, record *PolicyRecord) error {
	query := `
		UPDATE policies
		SET name = ?, kind = ?, scope = ?, severity = ?, definition = ?, active = ?, description = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		record.Name,
		record.Kind,
		record.Scope,
		record.Severity,
		record.Definition,
		record.Active,
		record.Description,
		record.UpdatedAt,
		record.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update policy: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("policy %s: %w", record.ID, ErrNotFound)
	}

	return nil
}

// SetPolicyActive toggles the active flag of a policy
func (s *SQLiteStore) SetPolicyActive(ctx context.Context, id string, active bool, at time.Time) error {
	query := `UPDATE policies SET active = ?, updated_at = ? WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, active, at, id)
	if err != nil {
		return fmt.Errorf("failed to set policy active flag: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("policy %s: %w", id, ErrNotFound)
	}

	return nil
}

// DeletePolicy deletes a policy by ID. Violations referencing the policy
// keep their denormalized name and severity.
func (s *SQLiteStore) DeletePolicy(ctx context.Context, id string) error {
	query := `DELETE FROM policies WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete policy: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("policy %s: %w", id, ErrNotFound)
	}

	return nil
}

// ListPolicies lists policies with optional filters and pagination
func (s *SQLiteStore) ListPolicies(ctx context.Context, filter PolicyFilter) ([]*PolicyRecord, error) {
	query := `
		SELECT ` + policyColumns + `
		FROM policies
		WHERE (? IS NULL OR kind = ?)
		  AND (? IS NULL OR scope = ?)
		  AND (? IS NULL OR active = ?)
		ORDER BY name ASC
		LIMIT ? OFFSET ?
	`

	limit, offset := normalizePage(filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query,
		filter.Kind, filter.Kind,
		filter.Scope, filter.Scope,
		filter.Active, filter.Active,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}
	defer rows.Close()

	records := []*PolicyRecord{}
	for rows.Next() {
		record, err := scanPolicy(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan policy: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating policies: %w", err)
	}

	return records, nil
}

// ActivePolicies returns every active policy in the evaluator's input form.
// Scope filtering is left to the evaluator.
func (s *SQLiteStore) ActivePolicies(ctx context.Context) ([]governance.StoredPolicy, error) {
	query := `
		SELECT id, name, kind, scope, severity, definition
		FROM policies
		WHERE active = 1
		ORDER BY name ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load active policies: %w", err)
	}
	defer rows.Close()

	policies := []governance.StoredPolicy{}
	for rows.Next() {
		var p governance.StoredPolicy
		var definition string
		err := rows.Scan(&p.ID, &p.Name, &p.Kind, &p.Scope, &p.Severity, &definition)
		if err != nil {
			return nil, fmt.Errorf("failed to scan active policy: %w", err)
		}
		p.Active = true
		p.Definition = json.RawMessage(definition)
		policies = append(policies, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating active policies: %w", err)
	}

	return policies, nil
}

const violationColumns = `id, policy_id, policy_name, resource_id, resource_name, violator, message,
		   action, severity, details, status, resolved_by, resolved_at, resolution_notes, detected_at`

func scanViolation(row interface{ Scan(...interface{}) error }) (*ViolationRecord, error) {
	record := &ViolationRecord{}
	err := row.Scan(
		&record.ID,
		&record.PolicyID,
		&record.PolicyName,
		&record.ResourceID,
		&record.ResourceName,
		&record.Violator,
		&record.Message,
		&record.Action,
		&record.Severity,
		&record.Details,
		&record.Status,
		&record.ResolvedBy,
		&record.ResolvedAt,
		&record.ResolutionNotes,
		&record.DetectedAt,
	)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// GetViolation retrieves a violation by ID
func (s *SQLiteStore) GetViolation(ctx context.Context, id string) (*ViolationRecord, error) {
	query := `SELECT ` + violationColumns + ` FROM violations WHERE id = ?`

	record, err := scanViolation(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("violation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get violation: %w", err)
	}

	return record, nil
}

// ListViolations lists violations with optional filters and pagination
func (s *SQLiteStore) ListViolations(ctx context.Context, filter ViolationFilter) ([]*ViolationRecord, error) {
	query := `
		SELECT ` + violationColumns + `
		FROM violations
		WHERE (? IS NULL OR policy_id = ?)
		  AND (? IS NULL OR resource_id = ?)
		  AND (? IS NULL OR violator = ?)
		  AND (? IS NULL OR status = ?)
		  AND (? IS NULL OR severity = ?)
		  AND (? IS NULL OR detected_at >= ?)
		  AND (? IS NULL OR detected_at <= ?)
		ORDER BY detected_at DESC
		LIMIT ? OFFSET ?
	`

	limit, offset := normalizePage(filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query,
		filter.PolicyID, filter.PolicyID,
		filter.ResourceID, filter.ResourceID,
		filter.Violator, filter.Violator,
		filter.Status, filter.Status,
		filter.Severity, filter.Severity,
		filter.From, filter.From,
		filter.To, filter.To,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list violations: %w", err)
	}
	defer rows.Close()

	records := []*ViolationRecord{}
	for rows.Next() {
		record, err := scanViolation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan violation: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating violations: %w", err)
	}

	return records, nil
}

// ResolveViolation moves an OPEN violation to RESOLVED. Resolving an already
// resolved or unknown violation reports not found.
func (s *SQLiteStore) ResolveViolation(ctx context.Context, id, resolvedBy string, notes *string, at time.Time) error {
	query := `
		UPDATE violations
		SET status = ?, resolved_by = ?, resolved_at = ?, resolution_notes = ?
		WHERE id = ? AND status = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		string(governance.ViolationResolved), resolvedBy, at, notes,
		id, string(governance.ViolationOpen),
	)
	if err != nil {
		return fmt.Errorf("failed to resolve violation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("open violation %s: %w", id, ErrNotFound)
	}

	return nil
}

// HasOpenViolation reports whether an OPEN violation already exists for a
// policy and resource pair. The scanner uses this to avoid duplicates.
func (s *SQLiteStore) HasOpenViolation(ctx context.Context, policyID, resourceID string) (bool, error) {
	query := `SELECT COUNT(*) FROM violations WHERE policy_id = ? AND resource_id = ? AND status = ?`

	var count int64
	err := s.db.QueryRowContext(ctx, query, policyID, resourceID, string(governance.ViolationOpen)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check open violations: %w", err)
	}

	return count > 0, nil
}

// AppendOperation writes an audit record and its violations atomically. If
// any insert fails, the whole batch is rolled back.
func (s *SQLiteStore) AppendOperation(ctx context.Context, entry *AuditRecord, violations []*ViolationRecord) error {
	tx, err := s.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	violationQuery := `
		INSERT INTO violations (` + violationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	for _, v := range violations {
		_, err := tx.ExecContext(ctx, violationQuery,
			v.ID,
			v.PolicyID,
			v.PolicyName,
			v.ResourceID,
			v.ResourceName,
			v.Violator,
			v.Message,
			v.Action,
			v.Severity,
			v.Details,
			v.Status,
			v.ResolvedBy,
			v.ResolvedAt,
			v.ResolutionNotes,
			v.DetectedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create violation: %w", err)
		}
	}

	auditQuery := `
		INSERT INTO audit_log (id, operation, actor, actor_role, scope, resource_id, resource_name,
			outcome, error, violation_ids, metadata, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = tx.ExecContext(ctx, auditQuery,
		entry.ID,
		entry.Operation,
		entry.Actor,
		entry.ActorRole,
		entry.Scope,
		entry.ResourceID,
		entry.ResourceName,
		entry.Outcome,
		entry.Error,
		entry.ViolationIDs,
		entry.Metadata,
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit operation record: %w", err)
	}

	return nil
}

// AppendAccess appends a read/use event to the access log
func (s *SQLiteStore) AppendAccess(ctx context.Context, entry *AccessRecord) error {
	query := `
		INSERT INTO access_log (resource_id, resource_name, actor, access_type, details, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		entry.ResourceID,
		entry.ResourceName,
		entry.Actor,
		entry.AccessType,
		entry.Details,
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to append access entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get access entry ID: %w", err)
	}

	entry.ID = id
	return nil
}

// ListAuditEntries lists audit entries with optional filters and pagination
func (s *SQLiteStore) ListAuditEntries(ctx context.Context, filter AuditFilter) ([]*AuditRecord, error) {
	query := `
		SELECT id, operation, actor, actor_role, scope, resource_id, resource_name,
			   outcome, error, violation_ids, metadata, timestamp
		FROM audit_log
		WHERE (? IS NULL OR operation = ?)
		  AND (? IS NULL OR actor = ?)
		  AND (? IS NULL OR scope = ?)
		  AND (? IS NULL OR outcome = ?)
		  AND (? IS NULL OR timestamp >= ?)
		  AND (? IS NULL OR timestamp <= ?)
		ORDER BY timestamp DESC
		LIMIT ? OFFSET ?
	`

	limit, offset := normalizePage(filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query,
		filter.Operation, filter.Operation,
		filter.Actor, filter.Actor,
		filter.Scope, filter.Scope,
		filter.Outcome, filter.Outcome,
		filter.From, filter.From,
		filter.To, filter.To,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	entries := []*AuditRecord{}
	for rows.Next() {
		entry := &AuditRecord{}
		err := rows.Scan(
			&entry.ID,
			&entry.Operation,
			&entry.Actor,
			&entry.ActorRole,
			&entry.Scope,
			&entry.ResourceID,
			&entry.ResourceName,
			&entry.Outcome,
			&entry.Error,
			&entry.ViolationIDs,
			&entry.Metadata,
			&entry.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}

	return entries, nil
}

// ListAccessEntries lists access log entries with optional filters and pagination
func (s *SQLiteStore) ListAccessEntries(ctx context.Context, filter AccessFilter) ([]*AccessRecord, error) {
	query := `
		SELECT id, resource_id, resource_name, actor, access_type, details, timestamp
		FROM access_log
		WHERE (? IS NULL OR resource_id = ?)
		  AND (? IS NULL OR actor = ?)
		  AND (? IS NULL OR access_type = ?)
		  AND (? IS NULL OR timestamp >= ?)
		  AND (? IS NULL OR timestamp <= ?)
		ORDER BY timestamp DESC
		LIMIT ? OFFSET ?
	`

	limit, offset := normalizePage(filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query,
		filter.ResourceID, filter.ResourceID,
		filter.Actor, filter.Actor,
		filter.AccessType, filter.AccessType,
		filter.From, filter.From,
		filter.To, filter.To,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list access entries: %w", err)
	}
	defer rows.Close()

	entries := []*AccessRecord{}
	for rows.Next() {
		entry := &AccessRecord{}
		err := rows.Scan(
			&entry.ID,
			&entry.ResourceID,
			&entry.ResourceName,
			&entry.Actor,
			&entry.AccessType,
			&entry.Details,
			&entry.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan access entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating access entries: %w", err)
	}

	return entries, nil
}

// CountPurgeable counts the rows a purge pass with the given cutoff would
// remove. Only RESOLVED violations are counted; OPEN ones never expire.
func (s *SQLiteStore) CountPurgeable(ctx context.Context, cutoff time.Time) (PurgeCounts, error) {
	var counts PurgeCounts

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM violations WHERE status = ? AND detected_at < ?`,
		string(governance.ViolationResolved), cutoff,
	).Scan(&counts.Violations)
	if err != nil {
		return counts, fmt.Errorf("failed to count purgeable violations: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_log WHERE timestamp < ?`, cutoff,
	).Scan(&counts.Audit)
	if err != nil {
		return counts, fmt.Errorf("failed to count purgeable audit entries: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM access_log WHERE timestamp < ?`, cutoff,
	).Scan(&counts.Access)
	if err != nil {
		return counts, fmt.Errorf("failed to count purgeable access entries: %w", err)
	}

	return counts, nil
}

// DeletePurgeable removes the rows a purge pass with the given cutoff
// covers, in a single transaction. OPEN violations are never touched.
func (s *SQLiteStore) DeletePurgeable(ctx context.Context, cutoff time.Time) (PurgeCounts, error) {
	var counts PurgeCounts

	tx, err := s.BeginTx(ctx)
	if err != nil {
		return counts, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx,
		`DELETE FROM violations WHERE status = ? AND detected_at < ?`,
		string(governance.ViolationResolved), cutoff,
	)
	if err != nil {
		return counts, fmt.Errorf("failed to purge violations: %w", err)
	}
	if counts.Violations, err = result.RowsAffected(); err != nil {
		return counts, fmt.Errorf("failed to get rows affected: %w", err)
	}

	result, err = tx.ExecContext(ctx, `DELETE FROM audit_log WHERE timestamp < ?`, cutoff)
	if err != nil {
		return counts, fmt.Errorf("failed to purge audit entries: %w", err)
	}
	if counts.Audit, err = result.RowsAffected(); err != nil {
		return counts, fmt.Errorf("failed to get rows affected: %w", err)
	}

	result, err = tx.ExecContext(ctx, `DELETE FROM access_log WHERE timestamp < ?`, cutoff)
	if err != nil {
		return counts, fmt.Errorf("failed to purge access entries: %w", err)
	}
	if counts.Access, err = result.RowsAffected(); err != nil {
		return counts, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return counts, fmt.Errorf("failed to commit purge: %w", err)
	}

	return counts, nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}

// normalizePage clamps pagination parameters to sane defaults.
func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
