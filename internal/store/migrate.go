// Package store: database schema migration management.
package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"
)

// Migration represents an applied database schema migration.
type Migration struct {
	Version     int
	AppliedAt   time.Time
	Description string
	Checksum    string
}

// migration couples a schema version with the SQL that produces it.
// Migrations are registered in code rather than read from disk so the
// store works wherever the binary runs.
type migration struct {
	version     int
	description string
	sql         string
}

var migrations = []migration{
	{
		version:     1,
		description: "initial schema",
		sql: `
CREATE TABLE IF NOT EXISTS kv (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS history (
	seq INTEGER PRIMARY KEY,
	kind TEXT NOT NULL CHECK(kind IN ('post', 'delete')),
	target TEXT NOT NULL CHECK(length(target) > 0),
	payload TEXT
);`,
	},
}

// SchemaVersion is the version an up-to-date store reports.
const SchemaVersion = 1

// Migrator handles database schema migrations.
type Migrator struct {
	db *sql.DB
}

// NewMigrator creates a new Migrator instance.
func NewMigrator(db *sql.DB) *Migrator {
	return &Migrator{db: db}
}

// Initialize creates the schema_migrations table if it doesn't exist.
func (m *Migrator) Initialize() error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY CHECK(version > 0),
		applied_at INTEGER NOT NULL CHECK(applied_at > 0),
		description TEXT NOT NULL CHECK(length(description) > 0),
		checksum TEXT NOT NULL CHECK(length(checksum) = 64)
	);`
	_, err := m.db.Exec(query)
	return err
}

// CurrentVersion returns the current schema version.
func (m *Migrator) CurrentVersion() (int, error) {
	var version int
	err := m.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	return version, err
}

// GetAppliedMigrations returns all applied migrations.
func (m *Migrator) GetAppliedMigrations() ([]Migration, error) {
	rows, err := m.db.Query("SELECT version, applied_at, description, checksum FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var applied []Migration
	for rows.Next() {
		var mig Migration
		var appliedAt int64
		if err := rows.Scan(&mig.Version, &appliedAt, &mig.Description, &mig.Checksum); err != nil {
			return nil, err
		}
		mig.AppliedAt = time.Unix(appliedAt, 0)
		applied = append(applied, mig)
	}
	return applied, rows.Err()
}

// Up applies all pending migrations in version order.
func (m *Migrator) Up() error {
	applied, err := m.GetAppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}
	appliedVersions := make(map[int]string)
	for _, mig := range applied {
		appliedVersions[mig.Version] = mig.Checksum
	}

	for _, mig := range migrations {
		checksum := checksumOf(mig.sql)

		if existing, ok := appliedVersions[mig.version]; ok {
			if existing != checksum {
				return fmt.Errorf("migration V%d checksum mismatch: applied %s, registered %s",
					mig.version, existing, checksum)
			}
			continue
		}

		tx, err := m.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin migration V%d: %w", mig.version, err)
		}

		if _, err := tx.Exec(mig.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration V%d failed: %w", mig.version, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, applied_at, description, checksum) VALUES (?, ?, ?, ?)",
			mig.version, time.Now().Unix(), mig.description, checksum); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration V%d: %w", mig.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration V%d: %w", mig.version, err)
		}
	}

	return nil
}

func checksumOf(sqlText string) string {
	sum := sha256.Sum256([]byte(sqlText))
	return hex.EncodeToString(sum[:])
}
