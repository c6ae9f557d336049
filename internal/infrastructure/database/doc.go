// Package database provides SQLite connectivity for the toggle journal.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Connection pooling and lifecycle management
//   - Busy-timeout and foreign-key pragmas
//
// The journal schema is a single table owned by the journal package, which
// creates it at open; there is no migration framework here.
//
// Security Considerations:
//   - All queries use parameterised statements (no SQL injection)
//   - Database file permissions are set to 0600 (owner read/write only)
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Journal.Path})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
package database
