// Package database opens the SQLite file btscanner keeps its suspend
// snapshots in and applies the embedded schema migrations.
//
// The connection runs with WAL journaling and a busy timeout, and the pool is
// pinned to one connection because SQLite allows a single writer.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations are pairs of YYYYMMDD_HHMMSS_name.up.sql and .down.sql files
// registered through MigrationsFS by the migrations package.
package database
