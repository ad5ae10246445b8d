// Package stores provides the persistence layer for the governance engine.
// It includes SQLite-based storage with WAL mode, connection pooling, and
// CRUD plus filtered query operations for policies, violations, the
// operation audit log, and the access log.
package stores
