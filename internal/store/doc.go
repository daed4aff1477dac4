// Package store provides SQLite-backed storage for domain entities.
//
// Every entity is one row of the entities table, keyed by (kind, id):
//   - kind: the domain type name
//   - id: allocated from the per-kind sequences table on first save
//   - version: starts at 1 and increments only when the payload changes
//   - payload: the entity's properties as canonical JSON
//
// Locator adapts the store to domain.Locator so stored types plug into the
// service pipeline, and BatchLoader loads a request's ids with one query
// per kind.
//
// # Deterministic reads
//
// Multi-row queries order by id ASC so repeated reads return rows in the
// same order.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
