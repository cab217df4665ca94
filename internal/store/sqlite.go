package store

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

	"github.com/lifecraft/profiler/backend/internal/model/chat"
)

// SQLiteStore implements Store on SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) the database at dsn. A plain file path
// has its parent directory created.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("sqlite dsn is required")
	}
	if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection serializes writers and keeps an in-memory database alive
	// across goroutines.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			module TEXT NOT NULL,
			stage TEXT NOT NULL DEFAULT '',
			exchange_count INTEGER NOT NULL DEFAULT 0,
			extracted INTEGER NOT NULL DEFAULT 0,
			artifact TEXT,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS turns (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			turn_id TEXT NOT NULL UNIQUE,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			stage TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id, seq)`,
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// GetSession loads one session row.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (chat.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, module, stage, exchange_count, extracted, artifact, created_at, updated_at
		FROM sessions WHERE session_id = ?`, id)

	var (
		session   chat.Session
		stage     string
		extracted int
		artifact  sql.NullString
		createdAt int64
		updatedAt int64
	)
	err := row.Scan(&session.ID, &session.Module, &stage, &session.ExchangeCount, &extracted, &artifact, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return chat.Session{}, ErrSessionNotFound
	}
	if err != nil {
		return chat.Session{}, fmt.Errorf("failed to load session: %w", err)
	}

	session.Stage = chat.Stage(stage)
	session.Extracted = extracted != 0
	session.CreatedAt = time.UnixMilli(createdAt).UTC()
	session.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	if artifact.Valid {
		var a chat.Artifact
		if err := json.Unmarshal([]byte(artifact.String), &a); err != nil {
			return chat.Session{}, fmt.Errorf("failed to decode artifact: %w", err)
		}
		session.Artifact = &a
	}
	return session, nil
}

// CreateSession inserts a new session row.
func (s *SQLiteStore) CreateSession(ctx context.Context, session chat.Session) error {
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, module, stage, exchange_count, extracted, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT(session_id) DO NOTHING`,
		session.ID, session.Module, string(session.Stage), session.ExchangeCount,
		session.CreatedAt.UnixMilli(), session.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionExists
	}
	return nil
}

// UpsertSession applies the patch in a single statement so the artifact
// guard and the monotonic counter hold under concurrent writers.
func (s *SQLiteStore) UpsertSession(ctx context.Context, id string, patch Patch) error {
	now := time.Now().UTC().UnixMilli()

	if patch.Module != "" {
		stage := ""
		if patch.Stage != nil {
			stage = string(*patch.Stage)
		}
		if _, err := s.db.ExecContext(ctx, `
			INSERT INTO sessions (session_id, module, stage, exchange_count, extracted, created_at, updated_at)
			VALUES (?, ?, ?, 0, 0, ?, ?)
			ON CONFLICT(session_id) DO NOTHING`, id, patch.Module, stage, now, now); err != nil {
			return fmt.Errorf("failed to insert session: %w", err)
		}
	}

	var stage, exchanges, artifact any
	if patch.Stage != nil {
		stage = string(*patch.Stage)
	}
	if patch.ExchangeCount != nil {
		exchanges = *patch.ExchangeCount
	}
	if patch.Artifact != nil {
		data, err := json.Marshal(patch.Artifact)
		if err != nil {
			return fmt.Errorf("failed to encode artifact: %w", err)
		}
		artifact = string(data)
	}
	override := 0
	if patch.OverrideArtifact {
		override = 1
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET
			stage = COALESCE(?, stage),
			exchange_count = MAX(exchange_count, COALESCE(?, exchange_count)),
			artifact = COALESCE(?, artifact),
			extracted = CASE WHEN ? IS NULL THEN extracted ELSE 1 END,
			updated_at = ?
		WHERE session_id = ? AND (? IS NULL OR artifact IS NULL OR ? = 1)`,
		stage, exchanges, artifact, artifact, now, id, artifact, override)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE session_id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check session: %w", err)
	}
	return ErrArtifactExists
}

// AppendTurns inserts the turns in order within one transaction.
func (s *SQLiteStore) AppendTurns(ctx context.Context, id string, turns []chat.Turn) error {
	if len(turns) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE session_id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check session: %w", err)
	}

	for _, turn := range turns {
		if turn.ID == "" {
			turn.ID = uuid.NewString()
		}
		if turn.CreatedAt.IsZero() {
			turn.CreatedAt = time.Now().UTC()
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO turns (turn_id, session_id, role, content, stage, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			turn.ID, id, string(turn.Role), turn.Content, string(turn.Stage), turn.CreatedAt.UnixMilli()); err != nil {
			return fmt.Errorf("failed to insert turn: %w", err)
		}
	}
	return tx.Commit()
}

// LoadTranscript returns the session's turns in insertion order.
func (s *SQLiteStore) LoadTranscript(ctx context.Context, id string) ([]chat.Turn, error) {
	if _, err := s.GetSession(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT turn_id, role, content, stage, created_at
		FROM turns WHERE session_id = ? ORDER BY seq ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query transcript: %w", err)
	}
	defer rows.Close()

	turns := make([]chat.Turn, 0, 16)
	for rows.Next() {
		var (
			turn      chat.Turn
			role      string
			stage     string
			createdAt int64
		)
		if err := rows.Scan(&turn.ID, &role, &turn.Content, &stage, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		turn.SessionID = id
		turn.Role = chat.Role(role)
		turn.Stage = chat.Stage(stage)
		turn.CreatedAt = time.UnixMilli(createdAt).UTC()
		turns = append(turns, turn)
	}
	return turns, rows.Err()
}

// DeleteSession removes the session and its transcript.
func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM turns WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete transcript: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}
	return tx.Commit()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
