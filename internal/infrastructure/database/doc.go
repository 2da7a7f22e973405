// Package database provides SQL connectivity for the device remote-control service.
//
// This package manages:
//   - SQLite connections (WAL mode, busy timeout, foreign keys) for single-host installs
//   - PostgreSQL connections via lib/pq for shared deployments
//   - Placeholder rebinding so repositories write queries once with ? markers
//   - Embedded, forward-only schema migrations
//
// Security Considerations:
//   - All queries use parameterised statements (no SQL injection)
//   - SQLite database file permissions are set to 0600 (owner read/write only)
//
// Usage:
//
//	db, err := database.Open(database.Config{Driver: "sqlite3", Path: "./data/devremote.db", WALMode: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migration Strategy:
//
// Migration SQL must run unchanged on both SQLite and PostgreSQL:
//   - Timestamps are TEXT in RFC 3339 UTC
//   - Booleans are INTEGER 0/1
//   - JSON documents are TEXT
//   - Each migration file has both .up.sql and .down.sql
package database
