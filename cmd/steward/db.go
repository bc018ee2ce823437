package main

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"steward/pkg/protocol"
)

// openDB opens a SQLite database at path and enforces production-safe
// defaults: WAL journal mode, a 5-second busy timeout and foreign keys on.
// It also pings the connection to verify it is usable before returning.
func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	ctx := context.Background()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s on %s: %w", pragma, path, err)
		}
	}

	return db, nil
}

// openStateDB opens the state database and ensures the schema is applied.
func openStateDB(path string) (*sql.DB, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(context.Background(), protocol.SchemaDDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, nil
}
