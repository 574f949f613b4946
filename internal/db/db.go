package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/ale2ccc/internal/config"
	_ "modernc.org/sqlite"
)

// FileName is the history database file inside the base directory.
const FileName = "history.db"

// CurrentSchemaVersion is the user_version after every migration has run.
const CurrentSchemaVersion = 1

// migration upgrades the schema from version-1 to version.
type migration struct {
	version int
	stmts   []string
}

var migrations = []migration{
	{
		version: 1,
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS runs (
			  id            TEXT PRIMARY KEY,
			  inputs_json   TEXT NOT NULL,
			  output        TEXT NOT NULL,
			  naming        TEXT NOT NULL,
			  status        TEXT NOT NULL,
			  rows_read     INTEGER NOT NULL,
			  entries       INTEGER NOT NULL,
			  skipped       INTEGER NOT NULL,
			  renamed       INTEGER NOT NULL,
			  error_code    TEXT,
			  error_message TEXT,
			  started_at    INTEGER NOT NULL,
			  finished_at   INTEGER NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC)`,
			`CREATE INDEX IF NOT EXISTS idx_runs_output ON runs(output, started_at DESC)`,
			`CREATE TABLE IF NOT EXISTS corrections (
			  run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			  position   INTEGER NOT NULL,
			  cdl_id     TEXT NOT NULL,
			  raw_name   TEXT NOT NULL,
			  source     TEXT NOT NULL,
			  line       INTEGER NOT NULL,
			  sop_slope  TEXT NOT NULL,
			  sop_offset TEXT NOT NULL,
			  sop_power  TEXT NOT NULL,
			  saturation TEXT NOT NULL,
			  PRIMARY KEY (run_id, position)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_corrections_cdl_id ON corrections(cdl_id)`,
		},
	},
}

// Init opens baseDir/history.db, creating the directory and file as needed,
// and brings the schema up to CurrentSchemaVersion.
func Init(baseDir string) (*sql.DB, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	_ = os.Chmod(baseDir, 0700)

	path := filepath.Join(baseDir, FileName)
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	if mode, err := pragma(db, "journal_mode"); err != nil {
		db.Close()
		return nil, err
	} else if mode != "wal" {
		db.Close()
		return nil, fmt.Errorf("history database journal_mode is %q, want wal", mode)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	_ = os.Chmod(path, 0600)

	return db, nil
}

// ConfigurePool caps open and idle connections when db_max_open_conns is set.
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil || cfg.DBMaxOpenConns <= 0 {
		return
	}
	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxOpenConns)
}

// migrate runs every migration newer than the stored user_version, each in
// its own transaction together with the version bump.
func migrate(db *sql.DB) error {
	current, err := GetUserVersion(db)
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("migration %d: %w", m.version, err)
		}
		for _, stmt := range m.stmts {
			if _, err := tx.Exec(stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("migration %d: %w", m.version, err)
			}
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version=%d", m.version)); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d: %w", m.version, err)
		}
	}
	return nil
}

func pragma(db *sql.DB, name string) (string, error) {
	var v string
	if err := db.QueryRow("PRAGMA " + name).Scan(&v); err != nil {
		return "", fmt.Errorf("read pragma %s: %w", name, err)
	}
	return v, nil
}

// GetUserVersion returns the stored schema version.
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("read user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion overwrites the stored schema version.
func SetUserVersion(db *sql.DB, version int) error {
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version)); err != nil {
		return fmt.Errorf("write user_version: %w", err)
	}
	return nil
}
