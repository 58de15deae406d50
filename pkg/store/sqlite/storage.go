package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

const ChargeTableSchema = `
	CREATE TABLE IF NOT EXISTS charge (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		owner_code TEXT NOT NULL,
		owner_name TEXT,
		debit REAL NOT NULL DEFAULT 0,
		credit REAL NOT NULL DEFAULT 0,
		reference_date TEXT NOT NULL,
		inserted_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(owner_code, reference_date)
	);
`

const OwnerTableSchema = `
	CREATE TABLE IF NOT EXISTS coproprietaires (
		owner_code TEXT PRIMARY KEY,
		owner_name TEXT,
		lot_number TEXT NOT NULL DEFAULT '',
		apartment_type TEXT NOT NULL DEFAULT 'na'
	);
`

const AlertConfigTableSchema = `
	CREATE TABLE IF NOT EXISTS config_alerte (
		apartment_type TEXT PRIMARY KEY,
		average_charge REAL NOT NULL,
		rate REAL NOT NULL DEFAULT 1.33,
		threshold REAL NOT NULL,
		last_update TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
`

const AlertTableSchema = `
	CREATE TABLE IF NOT EXISTS alertes_debit_eleve (
		alert_id INTEGER PRIMARY KEY AUTOINCREMENT,
		origin_id INTEGER NOT NULL,
		owner_name TEXT,
		owner_code TEXT NOT NULL,
		debit REAL NOT NULL,
		apartment_type TEXT NOT NULL,
		first_detection TIMESTAMP NOT NULL,
		last_detection TIMESTAMP NOT NULL,
		occurrence_count INTEGER NOT NULL DEFAULT 1
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_alertes_owner_code
		ON alertes_debit_eleve(owner_code);
`

const SnapshotTableSchema = `
	CREATE TABLE IF NOT EXISTS suivi_alertes (
		reference_date TEXT PRIMARY KEY,
		alert_count INTEGER NOT NULL,
		total_debit REAL NOT NULL,
		nb_2p INTEGER NOT NULL DEFAULT 0,
		nb_3p INTEGER NOT NULL DEFAULT 0,
		nb_4p INTEGER NOT NULL DEFAULT 0,
		nb_5p INTEGER NOT NULL DEFAULT 0,
		nb_na INTEGER NOT NULL DEFAULT 0,
		debit_2p REAL NOT NULL DEFAULT 0,
		debit_3p REAL NOT NULL DEFAULT 0,
		debit_4p REAL NOT NULL DEFAULT 0,
		debit_5p REAL NOT NULL DEFAULT 0,
		debit_na REAL NOT NULL DEFAULT 0
	);
`

const RunTableSchema = `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP,
		status TEXT NOT NULL,
		reference_date TEXT NOT NULL DEFAULT '',
		owners_seen INTEGER NOT NULL DEFAULT 0,
		charges_saved INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT ''
	);
`

var bootQueries = []string{
	ChargeTableSchema,
	OwnerTableSchema,
	AlertConfigTableSchema,
	AlertTableSchema,
	SnapshotTableSchema,
	RunTableSchema,
}

type Settings struct {
	DbPath string
}

// NewDB opens the ledger database and ensures every table and index exists.
// Missing schema components are created on every open, not only on first
// creation, so a database produced by an older build is repaired in place.
func NewDB(settings Settings) (*sql.DB, error) {
	if settings.DbPath != ":memory:" {
		dir := filepath.Dir(settings.DbPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", settings.DbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", settings.DbPath, err)
	}

	// One logical writer per run; a second connection would only contend on
	// the file lock.
	db.SetMaxOpenConns(1)

	for _, query := range bootQueries {
		if _, err := db.Exec(query); err != nil {
			db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
	}

	return db, nil
}
