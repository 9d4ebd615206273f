package database

import (
	"database/sql"
	"fmt"
	"log"
)

// legacyTable is the table early unversioned builds created.
const legacyTable = "datasets"

func schemaVersion(conn *sql.DB) (int, error) {
	var version int
	if err := conn.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}

func hasTable(conn *sql.DB, name string) (bool, error) {
	var count int
	err := conn.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("looking up table %s: %w", name, err)
	}
	return count > 0, nil
}

// pending returns the migrations newer than version, in order.
func pending(version int) []Migration {
	var out []Migration
	for _, m := range migrations {
		if m.Version > version {
			out = append(out, m)
		}
	}
	return out
}

// migrate brings the schema up to the latest version, tracked in
// PRAGMA user_version. An unversioned database that already has the
// datasets table is stamped as version 1 first.
func migrate(conn *sql.DB) error {
	current, err := schemaVersion(conn)
	if err != nil {
		return err
	}

	if current == 0 {
		legacy, err := hasTable(conn, legacyTable)
		if err != nil {
			return err
		}
		if legacy {
			log.Printf("Unversioned database with %s table, stamping as version 1", legacyTable)
			if err := setVersion(conn, 1); err != nil {
				return err
			}
			current = 1
		}
	}

	for _, m := range pending(current) {
		if err := apply(conn, m); err != nil {
			return err
		}
	}
	return nil
}

func apply(conn *sql.DB, m Migration) error {
	log.Printf("Applying migration %d: %s", m.Version, m.Description)

	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", m.Version, err)
	}
	if err := m.Up(tx); err != nil {
		tx.Rollback()
		return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", m.Version, err)
	}
	// modernc/sqlite rejects user_version inside the transaction; the DDL is
	// idempotent so a crash before this point re-runs the step.
	return setVersion(conn, m.Version)
}

func setVersion(conn *sql.DB, version int) error {
	if _, err := conn.Exec(fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		return fmt.Errorf("setting schema version %d: %w", version, err)
	}
	return nil
}
