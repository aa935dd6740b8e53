package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// InitDB opens or creates the SQLite database at path and ensures the
// controller tables exist.
func InitDB(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." && path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir %q: %w", dir, err)
		}
	}

	db, err := sql.Open(sqliteDriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}

	// one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return db, nil
}

const sqliteDriverName = "sqlite"

const schemaControllerState = `
CREATE TABLE IF NOT EXISTS controller_state (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    total_applied_l REAL NOT NULL,
    pending_l REAL NOT NULL,
    pending_s REAL NOT NULL,
    window_start TIMESTAMP,
    window_end TIMESTAMP,
    errors TEXT,
    updated_at TIMESTAMP NOT NULL
);
`

const schemaIrrigationEvents = `
CREATE TABLE IF NOT EXISTS irrigation_events (
    id TEXT PRIMARY KEY,
    occurred_at TIMESTAMP NOT NULL,
    type TEXT NOT NULL,
    message TEXT NOT NULL,
    meta TEXT
);
`

const indexIrrigationEvents = `
CREATE INDEX IF NOT EXISTS idx_irrigation_events_occurred_at ON irrigation_events (occurred_at);
`

const schemaWeatherHistory = `
CREATE TABLE IF NOT EXISTS weather_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    date TEXT NOT NULL,
    kind TEXT NOT NULL,
    location TEXT NOT NULL,
    condition TEXT,
    condition_code INTEGER,
    max_temp_c REAL,
    min_temp_c REAL,
    avg_temp_c REAL,
    temp_c REAL,
    total_precip_mm REAL,
    precip_mm REAL,
    humidity REAL,
    wind_kph REAL,
    cloud REAL,
    uv REAL,
    chance_of_rain INTEGER,
    sunrise TEXT,
    sunset TEXT,
    moon_phase TEXT,
    recorded_at TIMESTAMP NOT NULL
);
`

const indexWeatherHistory = `
CREATE INDEX IF NOT EXISTS idx_weather_history_date_kind ON weather_history (date, kind);
`

const schemaUsers = `
CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    username TEXT UNIQUE NOT NULL,
    password_hash TEXT NOT NULL
);
`

func ensureSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for i, stmt := range []string{
		schemaControllerState,
		schemaIrrigationEvents,
		indexIrrigationEvents,
		schemaWeatherHistory,
		indexWeatherHistory,
		schemaUsers,
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema transaction: %w", err)
	}
	return nil
}
