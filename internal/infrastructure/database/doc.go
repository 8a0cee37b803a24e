// Package database provides the SQLite store behind the amplifier bridge.
//
// It opens one database file with WAL and a busy timeout, keeps a single
// writer connection, and applies embedded schema migrations. The only
// consumer today is the operation log (internal/history).
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql, and are registered by the migrations package
// through MigrationsFS.
package database
