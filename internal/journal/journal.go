// Package journal keeps a local SQLite record of every answer selection so
// that a crashed or reloaded client can replay what the backend never
// acknowledged.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jonboulle/clockwork"
	"github.com/stemsi/exstem-client/internal/model"
	_ "modernc.org/sqlite" // driver: sqlite
)

// Journal is safe for concurrent use.
type Journal struct {
	db    *sql.DB
	clock clockwork.Clock
}

// Open opens (creating if needed) the journal at path and ensures the schema exists.
func Open(ctx context.Context, path string) (*Journal, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}
	dsn := "file:" + path + "?cache=shared&mode=rwc&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// One writer keeps SQLite from reporting SQLITE_BUSY under the session loop.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Journal{db: db, clock: clockwork.NewRealClock()}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS answers (
  session_id TEXT NOT NULL,
  question_id TEXT NOT NULL,
  choice TEXT NOT NULL,
  selected_at INTEGER NOT NULL,
  persisted_choice TEXT,
  persisted_at INTEGER,
  PRIMARY KEY (session_id, question_id)
);
`

// Close closes the database.
func (j *Journal) Close() error { return j.db.Close() }

// RecordSelection journals the latest choice for a question.
func (j *Journal) RecordSelection(ctx context.Context, sessionID, questionID string, choice model.Choice) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO answers (session_id, question_id, choice, selected_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (session_id, question_id) DO UPDATE
		 SET choice = excluded.choice, selected_at = excluded.selected_at`,
		sessionID, questionID, string(choice), j.now())
	if err != nil {
		return fmt.Errorf("record selection: %w", err)
	}
	return nil
}

// RecordPersisted marks choice as acknowledged by the backend.
func (j *Journal) RecordPersisted(ctx context.Context, sessionID, questionID string, choice model.Choice) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO answers (session_id, question_id, choice, selected_at, persisted_choice, persisted_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (session_id, question_id) DO UPDATE
		 SET persisted_choice = excluded.persisted_choice, persisted_at = excluded.persisted_at`,
		sessionID, questionID, string(choice), j.now(), string(choice), j.now())
	if err != nil {
		return fmt.Errorf("record persisted: %w", err)
	}
	return nil
}

// Pending returns the answers whose latest choice was never acknowledged.
func (j *Journal) Pending(ctx context.Context, sessionID string) (map[string]model.Choice, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT question_id, choice FROM answers
		 WHERE session_id = ? AND (persisted_choice IS NULL OR persisted_choice <> choice)`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("query pending: %w", err)
	}
	defer rows.Close()

	out := make(map[string]model.Choice)
	for rows.Next() {
		var qid, choice string
		if err := rows.Scan(&qid, &choice); err != nil {
			return nil, fmt.Errorf("scan pending: %w", err)
		}
		if c, err := model.ParseChoice(choice); err == nil {
			out[qid] = c
		}
	}
	return out, rows.Err()
}

// Forget removes every entry of a finished session.
func (j *Journal) Forget(ctx context.Context, sessionID string) error {
	if _, err := j.db.ExecContext(ctx, `DELETE FROM answers WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("forget session: %w", err)
	}
	return nil
}

// Replay merges pending journal entries into a resume state. Entries the
// server already holds with the same choice are dropped; the rest become
// unsaved answers. Without server state there is nothing to resume and the
// journal is ignored.
func Replay(state *model.ResumeState, pending map[string]model.Choice) *model.ResumeState {
	if state == nil || len(pending) == 0 {
		return state
	}
	if state.Unsaved == nil {
		state.Unsaved = make(map[string]model.Choice, len(pending))
	}
	for qid, c := range pending {
		if state.Persisted[qid] == c {
			continue
		}
		state.Unsaved[qid] = c
	}
	return state
}

func (j *Journal) now() int64 { return j.clock.Now().UnixMilli() }

// withClock is used by tests to pin timestamps.
func (j *Journal) withClock(c clockwork.Clock) *Journal {
	j.clock = c
	return j
}
