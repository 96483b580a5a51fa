package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database connection with thread-safe access.
type DB struct {
	conn *sql.DB
	mu   sync.RWMutex
}

// New creates and initializes a new SQLite database connection.
func New(dbPath string) (*DB, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// migrate creates the necessary tables if they don't exist.
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		stream TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		ended_at DATETIME,
		duration_seconds REAL DEFAULT 0,
		frames_processed INTEGER DEFAULT 0,
		frames_skipped INTEGER DEFAULT 0,
		regions_blurred INTEGER DEFAULT 0,
		text_matches INTEGER DEFAULT 0,
		detector_errors INTEGER DEFAULT 0,
		ocr_failures INTEGER DEFAULT 0,
		ocr_timeouts INTEGER DEFAULT 0,
		ocr_dropped INTEGER DEFAULT 0,
		ocr_abandoned INTEGER DEFAULT 0,
		flush_failures INTEGER DEFAULT 0,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS session_categories (
		session_id TEXT NOT NULL,
		category TEXT NOT NULL,
		detected INTEGER DEFAULT 0,
		blurred INTEGER DEFAULT 0,
		PRIMARY KEY (session_id, category),
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS profiles (
		name TEXT PRIMARY KEY,
		description TEXT DEFAULT '',
		keyword_list TEXT DEFAULT '',
		text_technique TEXT DEFAULT 'blur',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS profile_rules (
		profile TEXT NOT NULL,
		category TEXT NOT NULL,
		enabled INTEGER DEFAULT 0,
		technique TEXT DEFAULT 'none',
		intensity REAL DEFAULT 0,
		max_intensity REAL DEFAULT 1,
		min_confidence REAL DEFAULT 0,
		PRIMARY KEY (profile, category),
		FOREIGN KEY (profile) REFERENCES profiles(name) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS keyword_lists (
		name TEXT NOT NULL,
		position INTEGER NOT NULL,
		keyword TEXT NOT NULL,
		PRIMARY KEY (name, position)
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_stream ON sessions(stream);
	CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying database connection for use by repositories.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Lock acquires a write lock.
func (db *DB) Lock() {
	db.mu.Lock()
}

// Unlock releases the write lock.
func (db *DB) Unlock() {
	db.mu.Unlock()
}

// RLock acquires a read lock.
func (db *DB) RLock() {
	db.mu.RLock()
}

// RUnlock releases the read lock.
func (db *DB) RUnlock() {
	db.mu.RUnlock()
}
