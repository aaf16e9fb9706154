// Package database journals removal events to SQLite for later
// queries by identity, path, or originating process.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB handles database operations
type DB struct {
	Db *sql.DB
}

// RemovalRecord represents one observed removal in the journal
type RemovalRecord struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	PID       uint32    `json:"pid"`
	Comm      string    `json:"comm"`
	CmdLine   string    `json:"cmdline"`
	ExePath   string    `json:"exe_path"`
	Username  string    `json:"username"`
	Dev       uint64    `json:"dev"`
	Ino       uint64    `json:"ino"`
	Path      string    `json:"path"`
}

// MatchRecord represents a removal that matched a detection rule
type MatchRecord struct {
	ID           int64     `json:"id"`
	EventID      int64     `json:"event_id"`
	RuleID       string    `json:"rule_id"`
	RuleName     string    `json:"rule_name"`
	Severity     string    `json:"severity"`
	Path         string    `json:"path"`
	ProcessName  string    `json:"process_name"`
	Username     string    `json:"username"`
	MatchDetails string    `json:"match_details"`
	CreatedAt    time.Time `json:"created_at"`
}

func NewDB(dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %v", err)
	}

	dbPath := filepath.Join(dataDir, "removals.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %v", err)
	}

	if err := initRemovalSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize removal schema: %v", err)
	}

	if err := initMatchSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize match schema: %v", err)
	}

	return &DB{Db: db}, nil
}

func initRemovalSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS removals (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		pid       INTEGER NOT NULL,
		comm      TEXT,
		cmdline   TEXT,
		exe_path  TEXT,
		username  TEXT,
		dev       INTEGER NOT NULL,
		ino       INTEGER NOT NULL,
		path      TEXT
	);`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create removals table: %v", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_removals_identity ON removals(dev, ino);",
		"CREATE INDEX IF NOT EXISTS idx_removals_timestamp ON removals(timestamp);",
		"CREATE INDEX IF NOT EXISTS idx_removals_pid ON removals(pid);",
	}

	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return fmt.Errorf("failed to create index: %v", err)
		}
	}

	return nil
}

func initMatchSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS rule_matches (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		event_id      INTEGER NOT NULL,
		rule_id       TEXT NOT NULL,
		rule_name     TEXT NOT NULL,
		severity      TEXT NOT NULL,
		path          TEXT,
		process_name  TEXT,
		username      TEXT,
		match_details TEXT,
		created_at    DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_matches_rule_id ON rule_matches(rule_id);
	CREATE INDEX IF NOT EXISTS idx_matches_event_id ON rule_matches(event_id);
	CREATE INDEX IF NOT EXISTS idx_matches_created ON rule_matches(created_at);`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create rule_matches tables: %v", err)
	}

	return nil
}

// InsertRemoval adds a removal record to the journal and returns its
// row id so rule matches can reference it.
func (db *DB) InsertRemoval(record *RemovalRecord) (int64, error) {
	query := `
		INSERT INTO removals (
			timestamp, pid, comm, cmdline, exe_path, username, dev, ino, path
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := db.Db.Exec(query,
		record.Timestamp,
		record.PID,
		record.Comm,
		record.CmdLine,
		record.ExePath,
		record.Username,
		int64(record.Dev),
		int64(record.Ino),
		record.Path,
	)
	if err != nil {
		return 0, err
	}

	return result.LastInsertId()
}

// RecentRemovals returns the newest removals, newest first.
func (db *DB) RecentRemovals(limit int) ([]RemovalRecord, error) {
	query := `
		SELECT id, timestamp, pid, comm, cmdline, exe_path, username, dev, ino, path
		FROM removals ORDER BY id DESC LIMIT ?`

	rows, err := db.Db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRemovals(rows)
}

// RemovalsByIdentity returns every recorded removal of one object.
func (db *DB) RemovalsByIdentity(dev, ino uint64) ([]RemovalRecord, error) {
	query := `
		SELECT id, timestamp, pid, comm, cmdline, exe_path, username, dev, ino, path
		FROM removals WHERE dev = ? AND ino = ? ORDER BY id DESC`

	rows, err := db.Db.Query(query, int64(dev), int64(ino))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRemovals(rows)
}

func scanRemovals(rows *sql.Rows) ([]RemovalRecord, error) {
	var records []RemovalRecord
	for rows.Next() {
		var r RemovalRecord
		var dev, ino int64
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.PID, &r.Comm, &r.CmdLine,
			&r.ExePath, &r.Username, &dev, &ino, &r.Path); err != nil {
			return nil, err
		}
		r.Dev = uint64(dev)
		r.Ino = uint64(ino)
		records = append(records, r)
	}
	return records, rows.Err()
}

// CountRemovals returns the journal size.
func (db *DB) CountRemovals() (int64, error) {
	var count int64
	err := db.Db.QueryRow("SELECT COUNT(*) FROM removals").Scan(&count)
	return count, err
}

// RecentMatches returns the newest rule matches, newest first.
func (db *DB) RecentMatches(limit int) ([]MatchRecord, error) {
	query := `
		SELECT id, event_id, rule_id, rule_name, severity, path,
		       process_name, username, match_details, created_at
		FROM rule_matches ORDER BY id DESC LIMIT ?`

	rows, err := db.Db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []MatchRecord
	for rows.Next() {
		var m MatchRecord
		if err := rows.Scan(&m.ID, &m.EventID, &m.RuleID, &m.RuleName, &m.Severity,
			&m.Path, &m.ProcessName, &m.Username, &m.MatchDetails, &m.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, m)
	}
	return records, rows.Err()
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.Db.Close()
}
