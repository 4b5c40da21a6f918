// Package database provides SQLite connectivity for the Gray Logic sequencer.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Schema migrations read from an fs.FS (see the migrations package)
//   - Connection lifecycle and health checks
//
// Sequence definitions and their execution history are the only tables;
// they are owned by the schedule package.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{
//	    Path:        cfg.Database.Path,
//	    WALMode:     cfg.Database.WALMode,
//	    BusyTimeout: cfg.Database.BusyTimeout,
//	})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations are additive-only: new columns must be NULLABLE or have
// DEFAULT values, and each .up.sql file has a matching .down.sql.
package database
