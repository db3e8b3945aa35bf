// Package relaylog tracks which relay URLs observed which event IDs, so
// the relay client can answer "seen on" queries for multi-relay dedup.
package relaylog

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Log is a sqlite-backed event-id -> observed-relay-URL index.
type Log struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens (creating if necessary) the relaylog database at path.
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create relaylog directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open relaylog database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping relaylog database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	l := &Log{db: db}
	if err := l.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize relaylog schema: %w", err)
	}
	return l, nil
}

func (l *Log) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS seen_on (
		event_id TEXT NOT NULL,
		relay_url TEXT NOT NULL,
		seen_at INTEGER NOT NULL,
		PRIMARY KEY (event_id, relay_url)
	);

	CREATE INDEX IF NOT EXISTS idx_seen_on_event ON seen_on(event_id);
	`
	_, err := l.db.Exec(schema)
	return err
}

// Close closes the underlying database connection.
func (l *Log) Close() error {
	return l.db.Close()
}

// Record upserts that eventID was observed on relayURL.
func (l *Log) Record(eventID, relayURL string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.db.Exec(`
		INSERT INTO seen_on (event_id, relay_url, seen_at)
		VALUES (?, ?, ?)
		ON CONFLICT(event_id, relay_url) DO UPDATE SET seen_at = excluded.seen_at
	`, eventID, relayURL, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("record seen-on: %w", err)
	}
	return nil
}

// SeenOn returns every relay URL that has reported eventID.
func (l *Log) SeenOn(eventID string) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rows, err := l.db.Query(`SELECT relay_url FROM seen_on WHERE event_id = ? ORDER BY relay_url`, eventID)
	if err != nil {
		return nil, fmt.Errorf("query seen-on: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("scan seen-on row: %w", err)
		}
		urls = append(urls, url)
	}
	return urls, rows.Err()
}

// Prune removes seen-on records older than olderThan, returning the
// number of rows removed.
func (l *Log) Prune(olderThan time.Time) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	result, err := l.db.Exec(`DELETE FROM seen_on WHERE seen_at < ?`, olderThan.Unix())
	if err != nil {
		return 0, fmt.Errorf("prune seen-on: %w", err)
	}
	return result.RowsAffected()
}
