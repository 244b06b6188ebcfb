package journal

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteJournal stores attempts in a sqlite database.
type SQLiteJournal struct {
	db *sql.DB
	mu sync.Mutex
}

// OpenSQLite opens or creates a sqlite journal. Use ":memory:" for an
// in-memory database.
func OpenSQLite(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// An in-memory database exists per connection.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		PRAGMA journal_mode = WAL;
		PRAGMA synchronous = NORMAL;
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	j := &SQLiteJournal{db: db}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return j, nil
}

func (j *SQLiteJournal) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS attempts (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		number INTEGER NOT NULL,
		source TEXT NOT NULL,
		ssid TEXT NOT NULL,
		outcome TEXT NOT NULL,
		error TEXT,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_attempts_session ON attempts(session_id);
	`
	_, err := j.db.Exec(schema)
	return err
}

// Record implements Journal.
func (j *SQLiteJournal) Record(a Attempt) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.Exec(`
		INSERT INTO attempts (session_id, number, source, ssid, outcome, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, a.SessionID, a.Number, a.Source, a.SSID, a.Outcome.String(), nullString(a.Error), a.StartedAt.UTC(), a.FinishedAt.UTC())
	return err
}

// List implements Journal.
func (j *SQLiteJournal) List(limit int) ([]Attempt, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.Query(`
		SELECT seq, session_id, number, source, ssid, outcome, error, started_at, finished_at
		FROM attempts ORDER BY seq DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		var a Attempt
		var outcome string
		var errMsg sql.NullString
		if err := rows.Scan(&a.Seq, &a.SessionID, &a.Number, &a.Source, &a.SSID, &outcome, &errMsg, &a.StartedAt, &a.FinishedAt); err != nil {
			return nil, err
		}
		if a.Outcome, err = ParseOutcome(outcome); err != nil {
			return nil, err
		}
		a.Error = errMsg.String
		out = append(out, a)
	}
	return out, rows.Err()
}

// Close implements Journal.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
