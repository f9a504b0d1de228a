package database

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
)

// migration is one forward-only SQL step, checksummed so a changed file is
// caught instead of silently skipped — the teacher's migrations.go ledger
// pattern, repointed at the contact-discovery schema.
type migration struct {
	Version int
	Name    string
	SQL     string
}

func checksum(m migration) string {
	h := sha256.Sum256([]byte(m.SQL))
	return hex.EncodeToString(h[:])
}

const ledgerTableSQL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	checksum TEXT NOT NULL,
	applied_at TIMESTAMP NOT NULL
)`

// applyMigrations runs every migration in order not already recorded in
// schema_migrations, verifying the checksum of any already-applied entry
// so a silently edited migration file fails loudly instead of diverging
// between environments.
func applyMigrations(ctx context.Context, db *sql.DB, migrations []migration, now func() string, ledgerSQL string) error {
	if _, err := db.ExecContext(ctx, ledgerTableSQL); err != nil {
		return fmt.Errorf("create migration ledger: %w", err)
	}

	applied := map[int]string{}
	rows, err := db.QueryContext(ctx, "SELECT version, checksum FROM schema_migrations")
	if err != nil {
		return fmt.Errorf("read migration ledger: %w", err)
	}
	for rows.Next() {
		var v int
		var cs string
		if err := rows.Scan(&v, &cs); err != nil {
			rows.Close()
			return err
		}
		applied[v] = cs
	}
	rows.Close()

	for _, m := range migrations {
		want := checksum(m)
		if got, ok := applied[m.Version]; ok {
			if got != want {
				return fmt.Errorf("migration %d (%s) checksum mismatch: ledger has %s, file has %s", m.Version, m.Name, got, want)
			}
			continue
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Name, err)
		}
		if _, err := tx.ExecContext(ctx, ledgerSQL, m.Version, m.Name, want, now()); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d (%s): %w", m.Version, m.Name, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}
