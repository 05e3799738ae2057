package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Session is one recorded engine process.
type Session struct {
	ID        string    `json:"id"`
	Engine    string    `json:"engine"`
	StartedAt time.Time `json:"started_at"`

	// Filled in by ListSessions.
	Exchanges int `json:"exchanges"`
	Errors    int `json:"errors"`
}

// Entry is one request and the engine's answer.
type Entry struct {
	SessionID string        `json:"session_id"`
	Seq       int64         `json:"seq"`
	Command   string        `json:"command"`
	Request   string        `json:"request"` // request line plus block lines, newline separated
	Response  string        `json:"response"`
	ErrorCode string        `json:"error_code,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

const timeLayout = time.RFC3339Nano

// BeginSession records a session. Recording the same ID again is a no-op.
func (s *Store) BeginSession(ctx context.Context, id, engine string, startedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, engine, started_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, engine, startedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("begin session %s: %w", id, err)
	}
	return nil
}

// WriteEntry appends an exchange. A second write with the same session and
// seq is silently ignored; the session must exist.
func (s *Store) WriteEntry(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO exchanges
		(session_id, seq, command, request, response, error_code, started_at, duration_us)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, seq) DO NOTHING
	`,
		e.SessionID,
		e.Seq,
		e.Command,
		e.Request,
		e.Response,
		e.ErrorCode,
		e.StartedAt.UTC().Format(timeLayout),
		e.Duration.Microseconds(),
	)
	if err != nil {
		return fmt.Errorf("write exchange %s/%d: %w", e.SessionID, e.Seq, err)
	}
	return nil
}

// LastSeq returns the highest seq recorded for a session, 0 if none.
func (s *Store) LastSeq(ctx context.Context, sessionID string) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM exchanges WHERE session_id = ?`, sessionID,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last seq for %s: %w", sessionID, err)
	}
	return seq, nil
}

// ListSessions returns every session with its exchange and error counts,
// oldest first. Returns an empty slice, not nil, for an empty journal.
func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.engine, s.started_at,
		       COUNT(e.seq),
		       COALESCE(SUM(CASE WHEN e.error_code != '' THEN 1 ELSE 0 END), 0)
		FROM sessions s
		LEFT JOIN exchanges e ON e.session_id = s.id
		GROUP BY s.id
		ORDER BY s.started_at ASC, s.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var (
			sess    Session
			started string
		)
		if err := rows.Scan(&sess.ID, &sess.Engine, &started, &sess.Exchanges, &sess.Errors); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if sess.StartedAt, err = time.Parse(timeLayout, started); err != nil {
			return nil, fmt.Errorf("session %s: bad started_at %q: %w", sess.ID, started, err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// ReadSession returns a session's exchanges in seq order.
func (s *Store) ReadSession(ctx context.Context, sessionID string) ([]Entry, error) {
	return s.readEntries(ctx, `
		SELECT session_id, seq, command, request, response, error_code, started_at, duration_us
		FROM exchanges
		WHERE session_id = ?
		ORDER BY seq ASC
	`, sessionID)
}

// ReadErrors returns the failed exchanges of a session in seq order.
func (s *Store) ReadErrors(ctx context.Context, sessionID string) ([]Entry, error) {
	return s.readEntries(ctx, `
		SELECT session_id, seq, command, request, response, error_code, started_at, duration_us
		FROM exchanges
		WHERE session_id = ? AND error_code != ''
		ORDER BY seq ASC
	`, sessionID)
}

func (s *Store) readEntries(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query exchanges: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exchanges: %w", err)
	}
	return entries, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		e       Entry
		started string
		micros  int64
	)
	err := rows.Scan(&e.SessionID, &e.Seq, &e.Command, &e.Request, &e.Response, &e.ErrorCode, &started, &micros)
	if err != nil {
		return Entry{}, fmt.Errorf("scan exchange: %w", err)
	}
	if e.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return Entry{}, fmt.Errorf("exchange %s/%d: bad started_at %q: %w", e.SessionID, e.Seq, started, err)
	}
	e.Duration = time.Duration(micros) * time.Microsecond
	return e, nil
}
