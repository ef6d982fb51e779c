package storage

import (
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"time"
)

const (
	schemaVersionMetaKey = "schema_version"
	auditChainTipMetaKey = "audit_chain_tip"
)

type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

var defaultMigrations = []Migration{
	{
		Version:     1,
		Description: "create tickets table",
		Up: func(tx *sql.Tx) error {
			// Matches the layout of databases created before schema versioning,
			// so IF NOT EXISTS adopts them unchanged.
			_, err := tx.Exec(`CREATE TABLE IF NOT EXISTS tickets (
				ticket_id INTEGER PRIMARY KEY,
				title TEXT NOT NULL,
				requester TEXT NOT NULL,
				owner TEXT,
				priority TEXT NOT NULL,
				status TEXT NOT NULL,
				created_at TEXT NOT NULL
			)`)
			if err != nil {
				return fmt.Errorf("create tickets: %w", err)
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "add activity log",
		Up: func(tx *sql.Tx) error {
			statements := []string{
				`CREATE TABLE IF NOT EXISTS audit_events (
					id TEXT PRIMARY KEY,
					action TEXT NOT NULL,
					target_type TEXT,
					target_id TEXT,
					result TEXT NOT NULL DEFAULT '',
					details_json TEXT NOT NULL DEFAULT '{}',
					prev_hash TEXT NOT NULL DEFAULT '',
					event_hash TEXT NOT NULL DEFAULT '',
					created_at TEXT NOT NULL
				)`,
				`CREATE INDEX IF NOT EXISTS idx_audit_events_action_created_at ON audit_events(action, created_at)`,
				`INSERT OR IGNORE INTO app_meta(key, value) VALUES('` + auditChainTipMetaKey + `', '')`,
			}
			for _, stmt := range statements {
				if _, err := tx.Exec(stmt); err != nil {
					return fmt.Errorf("apply migration v2 statement: %w", err)
				}
			}
			return nil
		},
	},
}

func DefaultMigrations() []Migration {
	out := make([]Migration, len(defaultMigrations))
	copy(out, defaultMigrations)
	return out
}

func CurrentSchemaVersion() int {
	return maxMigrationVersion(defaultMigrations)
}

// EnsureSchema creates every table the store needs if it is absent. It is
// safe to call on every startup; already-applied versions are skipped.
func EnsureSchema(db *sql.DB) error {
	return RunMigrations(db, DefaultMigrations())
}

func RunMigrations(db *sql.DB, migrations []Migration) error {
	if db == nil {
		return storageErrf("run migrations", "db is nil")
	}

	if err := ensureMigrationTables(db); err != nil {
		return err
	}

	ordered := make([]Migration, len(migrations))
	copy(ordered, migrations)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Version < ordered[j].Version })

	current, err := ReadSchemaVersion(db)
	if err != nil {
		return err
	}

	maxVersion := maxMigrationVersion(ordered)
	if current > maxVersion {
		return storageErr("run migrations", fmt.Errorf("%w: db=%d code=%d", ErrSchemaTooNew, current, maxVersion))
	}

	for _, migration := range ordered {
		if migration.Version <= current {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return storageErr(fmt.Sprintf("begin migration v%d", migration.Version), err)
		}

		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return storageErr(fmt.Sprintf("migration v%d (%s)", migration.Version, migration.Description), err)
		}

		if _, err := tx.Exec(`INSERT OR REPLACE INTO schema_migrations(version, applied_at) VALUES (?, ?)`, migration.Version, nowUTCString()); err != nil {
			_ = tx.Rollback()
			return storageErr(fmt.Sprintf("record schema migration v%d", migration.Version), err)
		}

		if _, err := tx.Exec(`INSERT OR REPLACE INTO app_meta(key, value) VALUES(?, ?)`, schemaVersionMetaKey, strconv.Itoa(migration.Version)); err != nil {
			_ = tx.Rollback()
			return storageErr(fmt.Sprintf("update schema version v%d", migration.Version), err)
		}

		if err := tx.Commit(); err != nil {
			return storageErr(fmt.Sprintf("commit migration v%d", migration.Version), err)
		}
	}

	return nil
}

func ensureMigrationTables(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS app_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL
		)`,
		`INSERT OR IGNORE INTO app_meta(key, value) VALUES('` + schemaVersionMetaKey + `', '0')`,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return storageErr("ensure migration tables", err)
		}
	}
	return nil
}

// ReadSchemaVersion returns the highest migration version recorded in db.
func ReadSchemaVersion(db *sql.DB) (int, error) {
	var versionStr string
	if err := db.QueryRow(`SELECT value FROM app_meta WHERE key = ?`, schemaVersionMetaKey).Scan(&versionStr); err != nil {
		return 0, storageErr("read schema version", err)
	}
	version, err := strconv.Atoi(versionStr)
	if err != nil {
		return 0, storageErr("read schema version", fmt.Errorf("parse %q: %w", versionStr, err))
	}
	return version, nil
}

func maxMigrationVersion(migrations []Migration) int {
	max := 0
	for _, migration := range migrations {
		if migration.Version > max {
			max = migration.Version
		}
	}
	return max
}

func nowUTCString() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
