package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/andresmejia3/facesignal/internal/types"
)

// ErrNotFound is returned when a session id does not exist.
var ErrNotFound = errors.New("session not found")

// Store manages the PostgreSQL connection used to record classifier sessions.
// Like the underlying pgx.Conn it is not safe for concurrent use.
type Store struct {
	conn *pgx.Conn
}

// Session describes one recorded capture.
type Session struct {
	ID          string
	Source      string
	Label       string
	FrameWidth  int
	FrameHeight int
	StartedAt   time.Time
	Events      int
}

// Event is one persisted state change.
type Event struct {
	ID         int64
	SessionID  string
	Seq        int
	Kind       types.EventKind
	Panel      types.Panel
	Ratios     types.RatioSet
	RecordedAt time.Time
}

// New establishes a connection to the database and ensures the schema is initialized.
func New(ctx context.Context, connString string) (*Store, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}

	// Initialize schema (Auto-Migration)
	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &Store{conn: conn}, nil
}

func initSchema(ctx context.Context, conn *pgx.Conn) error {
	query := `
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			label TEXT NOT NULL DEFAULT '',
			frame_width INT NOT NULL,
			frame_height INT NOT NULL,
			started_at TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS state_events (
			id BIGSERIAL PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			seq INT NOT NULL,
			kind TEXT NOT NULL,
			panel TEXT NOT NULL,
			ratio_right_eye DOUBLE PRECISION NOT NULL,
			ratio_left_eye DOUBLE PRECISION NOT NULL,
			ratio_head_x DOUBLE PRECISION NOT NULL,
			ratio_head_y DOUBLE PRECISION NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS state_events_session_seq_idx ON state_events (session_id, seq);
	`
	_, err := conn.Exec(ctx, query)
	return err
}

// Close terminates the database connection.
func (s *Store) Close(ctx context.Context) {
	s.conn.Close(ctx)
}

// EnsureSession registers a session. Recording the same id again replaces its
// previous events so a re-run of the same input does not duplicate history.
func (s *Store) EnsureSession(ctx context.Context, sess Session) error {
	if _, err := s.conn.Exec(ctx, "DELETE FROM state_events WHERE session_id = $1", sess.ID); err != nil {
		return err
	}

	_, err := s.conn.Exec(ctx, `
		INSERT INTO sessions (id, source, label, frame_width, frame_height, started_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (id) DO UPDATE SET
			source = EXCLUDED.source,
			frame_width = EXCLUDED.frame_width,
			frame_height = EXCLUDED.frame_height,
			started_at = NOW(),
			label = CASE WHEN EXCLUDED.label = '' THEN sessions.label ELSE EXCLUDED.label END
	`, sess.ID, sess.Source, sess.Label, sess.FrameWidth, sess.FrameHeight)
	return err
}

// InsertEvents stores every event of fe in one round trip.
func (s *Store) InsertEvents(ctx context.Context, fe types.FrameEvents) error {
	if len(fe.Events) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, e := range fe.Events {
		batch.Queue(`
			INSERT INTO state_events (session_id, seq, kind, panel,
				ratio_right_eye, ratio_left_eye, ratio_head_x, ratio_head_y, recorded_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, fe.SessionID, fe.Seq, e.Kind.String(), string(e.Kind.Panel()),
			fe.Ratios.RightEye, fe.Ratios.LeftEye, fe.Ratios.HeadPoseX, fe.Ratios.HeadPoseY, fe.Timestamp)
	}

	if err := s.conn.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert events for frame %d: %w", fe.Seq, err)
	}
	return nil
}

// ListSessions returns all sessions, newest first, with their event counts.
func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT s.id, s.source, s.label, s.frame_width, s.frame_height, s.started_at, COUNT(e.id)
		FROM sessions s
		LEFT JOIN state_events e ON e.session_id = s.id
		GROUP BY s.id
		ORDER BY s.started_at DESC, s.id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.Source, &sess.Label, &sess.FrameWidth, &sess.FrameHeight, &sess.StartedAt, &sess.Events); err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// RenameSession sets the human label of a session.
func (s *Store) RenameSession(ctx context.Context, id, label string) error {
	tag, err := s.conn.Exec(ctx, "UPDATE sessions SET label = $1 WHERE id = $2", label, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// SessionEvents returns a session's events in frame order.
func (s *Store) SessionEvents(ctx context.Context, id string) ([]Event, error) {
	var exists bool
	if err := s.conn.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM sessions WHERE id = $1)", id).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	rows, err := s.conn.Query(ctx, `
		SELECT id, session_id, seq, kind, ratio_right_eye, ratio_left_eye, ratio_head_x, ratio_head_y, recorded_at
		FROM state_events
		WHERE session_id = $1
		ORDER BY seq, id
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		var kind string
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.Seq, &kind,
			&ev.Ratios.RightEye, &ev.Ratios.LeftEye, &ev.Ratios.HeadPoseX, &ev.Ratios.HeadPoseY, &ev.RecordedAt); err != nil {
			return nil, err
		}
		if ev.Kind, err = types.ParseEventKind(kind); err != nil {
			return nil, fmt.Errorf("event %d: %w", ev.ID, err)
		}
		ev.Panel = ev.Kind.Panel()
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Reset drops all application tables to clear the database state.
// This is useful for development to force a schema refresh without migrations.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.conn.Exec(ctx, `
		DROP TABLE IF EXISTS state_events CASCADE;
		DROP TABLE IF EXISTS sessions CASCADE;
	`)
	return err
}

// Recorder is a session.Sink that persists events for one session.
type Recorder struct {
	Store *Store
}

func (r Recorder) Emit(ctx context.Context, fe types.FrameEvents) error {
	return r.Store.InsertEvents(ctx, fe)
}
