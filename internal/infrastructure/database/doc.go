// Package database provides connectivity for the account store.
//
// SQLite (mattn/go-sqlite3) is the default backend: one writer connection,
// WAL mode, and a small built-in runner applying the additive migrations
// embedded by the migrations package. PostgreSQL is reached through the pgx
// stdlib driver and migrated with goose.
//
//	db, err := database.Open(database.Config{Path: "./data/neogend.db", WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations are additive only: new columns must be nullable or carry a
// default.
package database
