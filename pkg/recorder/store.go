package recorder

import (
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

// SQLiteStore persists automation events to a local sqlite database.
// Insert failures are logged and dropped, matching the recorder
// contract that no error reaches the tool layer.
type SQLiteStore struct {
	mu sync.Mutex
	db *sql.DB
}

const storeSchema = `
CREATE TABLE IF NOT EXISTS automation_events (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	ts INTEGER NOT NULL,
	tool TEXT NOT NULL,
	args TEXT,
	result TEXT
);
CREATE INDEX IF NOT EXISTS idx_automation_events_ts ON automation_events(ts);
`

// OpenSQLiteStore opens (creating if needed) the event database.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(storeSchema); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Running reports whether the store is open.
func (s *SQLiteStore) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db != nil
}

// Enqueue inserts the event. Failures are logged, never returned.
func (s *SQLiteStore) Enqueue(ev Event) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return
	}

	args, err := json.Marshal(ev.Args)
	if err != nil {
		args = []byte("{}")
	}

	_, err = db.Exec(
		`INSERT OR REPLACE INTO automation_events (id, type, ts, tool, args, result) VALUES (?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Type, ev.TS.UnixMilli(), ev.Tool, string(args), ev.Result,
	)
	if err != nil {
		log.Debug().Err(err).Str("tool", ev.Tool).Msg("Recorder store insert failed, event dropped")
	}
}

// Recent returns up to limit most recent events, newest first.
func (s *SQLiteStore) Recent(limit int) ([]Event, error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return nil, sql.ErrConnDone
	}

	rows, err := db.Query(
		`SELECT id, type, ts, tool, args, result FROM automation_events ORDER BY ts DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		var ts int64
		var args string
		if err := rows.Scan(&ev.ID, &ev.Type, &ts, &ev.Tool, &args, &ev.Result); err != nil {
			return nil, err
		}
		ev.TS = time.UnixMilli(ts)
		if args != "" {
			_ = json.Unmarshal([]byte(args), &ev.Args)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Close closes the database. Idempotent.
func (s *SQLiteStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return
	}
	if err := s.db.Close(); err != nil {
		log.Debug().Err(err).Msg("Recorder store close error")
	}
	s.db = nil
}
