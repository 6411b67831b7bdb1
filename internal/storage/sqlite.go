package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/sjawhar/kalakaar/internal/apperr"
	"github.com/sjawhar/kalakaar/internal/session"
)

type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		dbPath = filepath.Join("data", "kalakaar.db")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			location TEXT NOT NULL DEFAULT '',
			craft_type TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);
	`); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			owner_user_id INTEGER NOT NULL,
			current_step TEXT NOT NULL,
			collected_answers TEXT NOT NULL DEFAULT '{}',
			turn_log TEXT NOT NULL DEFAULT '[]',
			is_complete INTEGER NOT NULL DEFAULT 0,
			version INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY(owner_user_id) REFERENCES users(id)
		);
	`); err != nil {
		return fmt.Errorf("create sessions table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS artifacts (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			url TEXT NOT NULL,
			filename TEXT NOT NULL DEFAULT '',
			size INTEGER NOT NULL DEFAULT 0,
			metadata TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL,
			FOREIGN KEY(session_id) REFERENCES sessions(id) ON DELETE CASCADE
		);
	`); err != nil {
		return fmt.Errorf("create artifacts table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS contents (
			session_id TEXT PRIMARY KEY,
			platforms TEXT NOT NULL,
			posts TEXT NOT NULL,
			image_url TEXT NOT NULL DEFAULT '',
			updated_at TEXT NOT NULL,
			FOREIGN KEY(session_id) REFERENCES sessions(id) ON DELETE CASCADE
		);
	`); err != nil {
		return fmt.Errorf("create contents table: %w", err)
	}

	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_sessions_owner ON sessions(owner_user_id, created_at)"); err != nil {
		return fmt.Errorf("create sessions index: %w", err)
	}
	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_artifacts_session ON artifacts(session_id, created_at)"); err != nil {
		return fmt.Errorf("create artifacts index: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// NewSessionID returns conv_{owner}_{unix}_{random}. The random part comes
// from a UUIDv7 so ids stay unique within the same second.
func NewSessionID(owner int64, now time.Time) string {
	suffix := strings.ReplaceAll(uuid.Must(uuid.NewV7()).String(), "-", "")
	return fmt.Sprintf("conv_%d_%d_%s", owner, now.Unix(), suffix[len(suffix)-12:])
}

func (s *SQLiteStore) CreateSession(ctx context.Context, ownerUserID int64, firstStepID string) (session.Session, error) {
	if strings.TrimSpace(firstStepID) == "" {
		return session.Session{}, apperr.New(apperr.InvalidInput, "first step is required")
	}

	now := s.now()
	sess := session.Session{
		ID:               NewSessionID(ownerUserID, now),
		OwnerUserID:      ownerUserID,
		CurrentStepID:    firstStepID,
		CollectedAnswers: map[string]session.Answer{},
		TurnLog:          []session.Turn{},
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions(id, owner_user_id, current_step, collected_answers, turn_log, is_complete, version, created_at, updated_at)
		 VALUES(?, ?, ?, '{}', '[]', 0, 1, ?, ?)`,
		sess.ID,
		ownerUserID,
		firstStepID,
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return session.Session{}, apperr.Wrap(apperr.StorageError, "create session", err)
	}
	return sess, nil
}

// GetSession loads a session owned by ownerUserID. A session owned by
// someone else is reported exactly like a missing one.
func (s *SQLiteStore) GetSession(ctx context.Context, id string, ownerUserID int64) (session.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner_user_id, current_step, collected_answers, turn_log, is_complete, version, created_at, updated_at
		 FROM sessions WHERE id = ? AND owner_user_id = ?`,
		id,
		ownerUserID,
	)

	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return session.Session{}, apperr.Wrap(apperr.NotFound, "session not found", err)
		}
		return session.Session{}, apperr.Wrap(apperr.StorageError, "load session", err)
	}
	return sess, nil
}

// UpdateSession replaces the mutable fields of sess if nobody else wrote the
// row since sess was read. Completion never reverts.
func (s *SQLiteStore) UpdateSession(ctx context.Context, sess session.Session) error {
	answers, err := json.Marshal(sess.CollectedAnswers)
	if err != nil {
		return apperr.Wrap(apperr.StorageError, "encode answers", err)
	}
	turns := sess.TurnLog
	if turns == nil {
		turns = []session.Turn{}
	}
	turnLog, err := json.Marshal(turns)
	if err != nil {
		return apperr.Wrap(apperr.StorageError, "encode turn log", err)
	}

	updatedAt := sess.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = s.now()
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions
		 SET current_step = ?, collected_answers = ?, turn_log = ?,
		     is_complete = MAX(is_complete, ?), version = version + 1, updated_at = ?
		 WHERE id = ? AND owner_user_id = ? AND version = ?`,
		sess.CurrentStepID,
		string(answers),
		string(turnLog),
		boolToInt(sess.IsComplete),
		updatedAt.UTC().Format(time.RFC3339Nano),
		sess.ID,
		sess.OwnerUserID,
		sess.Version,
	)
	if err != nil {
		return apperr.Wrap(apperr.StorageError, "update session", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return apperr.Wrap(apperr.StorageError, "update session rows affected", err)
	}
	if rows == 0 {
		return apperr.New(apperr.Conflict, "session was modified or removed concurrently")
	}
	return nil
}

func (s *SQLiteStore) ListSessions(ctx context.Context, ownerUserID int64) ([]session.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_user_id, current_step, collected_answers, turn_log, is_complete, version, created_at, updated_at
		 FROM sessions WHERE owner_user_id = ? ORDER BY created_at DESC`,
		ownerUserID,
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageError, "list sessions", err)
	}
	defer func() { _ = rows.Close() }()

	sessions := make([]session.Session, 0, 8)
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, apperr.Wrap(apperr.StorageError, "scan session", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.StorageError, "iterate sessions rows", err)
	}
	return sessions, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (session.Session, error) {
	var sess session.Session
	var answers, turnLog, createdAt, updatedAt string
	var complete int
	if err := row.Scan(&sess.ID, &sess.OwnerUserID, &sess.CurrentStepID, &answers, &turnLog, &complete, &sess.Version, &createdAt, &updatedAt); err != nil {
		return session.Session{}, err
	}

	if err := json.Unmarshal([]byte(answers), &sess.CollectedAnswers); err != nil {
		return session.Session{}, fmt.Errorf("decode session %s answers: %w", sess.ID, err)
	}
	if sess.CollectedAnswers == nil {
		sess.CollectedAnswers = map[string]session.Answer{}
	}
	if err := json.Unmarshal([]byte(turnLog), &sess.TurnLog); err != nil {
		return session.Session{}, fmt.Errorf("decode session %s turn log: %w", sess.ID, err)
	}
	sess.IsComplete = complete != 0

	var err error
	if sess.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return session.Session{}, fmt.Errorf("parse session %s created_at: %w", sess.ID, err)
	}
	if sess.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return session.Session{}, fmt.Errorf("parse session %s updated_at: %w", sess.ID, err)
	}
	return sess, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
