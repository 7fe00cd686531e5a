// Package store provides transactional record storage for the entities of a
// catalog, on SQLite (default) or PostgreSQL.
//
// The store is the only place SQL is built. Every statement is generated from
// the entity declarations: table and column names are quoted identifiers
// taken from the catalog and every value is a bound parameter.
//
// # Commit cycles
//
// Apply runs updates, then inserts, then deletes in one transaction. Deletes
// run last so a cascade cannot remove a parent row that an update or insert
// of the same cycle still refers to. Any failure rolls back the whole cycle.
//
// A Snapshot carries a token digesting its records. Passing the token to
// Apply makes the cycle fail with *StaleSnapshotError when the table changed
// since the snapshot was read.
//
// # Identifiers
//
// New records get a random UUID from the IDGenerator. Identifiers are never
// taken from caller supplied values: inserts and updates ignore the
// identifier field, and updates and deletes are keyed by ids the caller read
// from a snapshot.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// With foreign keys off (WithForeignKeys(false)) the store walks the
// catalog's dependents and applies each on-delete action itself.
package store
