// Package database provides relational storage connectivity for SenseGrid Core.
//
// This package manages:
//   - Connections to SQLite (mattn/go-sqlite3) or Postgres (pgx stdlib)
//   - Placeholder rebinding so repositories write ? once for both dialects
//   - Schema migrations, one embedded directory per dialect
//   - Unique-constraint detection across drivers
//   - The fixed-width timestamp format shared by every table
//
// Security Considerations:
//   - All queries use parameterised statements (no SQL injection)
//   - SQLite database file permissions are set to 0600
//
// Usage:
//
//	db, err := database.Open(database.Config{Driver: "sqlite3", Path: "./data/sensegrid.db"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
package database
