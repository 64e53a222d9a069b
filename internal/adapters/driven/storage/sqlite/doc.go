// Package sqlite provides a SQLite-based implementation of driven port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements:
//
//   - JobStore: Job record persistence across process restarts
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory as .up.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.talksync/data/jobs.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
