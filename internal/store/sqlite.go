// Package store provides storage backends for hisho.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/hisho-bot/hisho/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists hisho data in a local SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// Compile-time check that SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store. The DSN is a file path; the
// containing directory is created when missing.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveState overwrites the user's conversation state and resets its TTL.
func (s *SQLiteStore) SaveState(userID string, state models.ConversationState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode state for %s: %w", userID, err)
	}
	now := s.now()
	_, err = s.db.Exec(
		`INSERT INTO conversation_states (user_id, state, expires_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET state = excluded.state, expires_at = excluded.expires_at, updated_at = excluded.updated_at`,
		userID, string(payload), now.Add(models.StateTTL).Unix(), now.Unix(),
	)
	if err != nil {
		slog.Error("SQLiteStore SaveState failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to save state for %s: %w", userID, err)
	}
	slog.Debug("SQLiteStore SaveState succeeded", "userID", userID, "action", state.Action)
	return nil
}

// GetState returns the user's conversation state, or nil if absent or expired.
// Expired rows are deleted on the way out.
func (s *SQLiteStore) GetState(userID string) (*models.ConversationState, error) {
	var payload string
	var expiresAt int64
	err := s.db.QueryRow(
		`SELECT state, expires_at FROM conversation_states WHERE user_id = ?`, userID,
	).Scan(&payload, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetState failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to get state for %s: %w", userID, err)
	}
	if expiresAt <= s.now().Unix() {
		slog.Debug("SQLiteStore GetState expired", "userID", userID)
		if err := s.ClearState(userID); err != nil {
			return nil, err
		}
		return nil, nil
	}
	var state models.ConversationState
	if err := json.Unmarshal([]byte(payload), &state); err != nil {
		return nil, fmt.Errorf("failed to decode state for %s: %w", userID, err)
	}
	return &state, nil
}

// ClearState removes the user's conversation state.
func (s *SQLiteStore) ClearState(userID string) error {
	_, err := s.db.Exec(`DELETE FROM conversation_states WHERE user_id = ?`, userID)
	if err != nil {
		slog.Error("SQLiteStore ClearState failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to clear state for %s: %w", userID, err)
	}
	return nil
}

// SaveTokens upserts the user's OAuth token record. An empty refresh token
// keeps the stored one; created_at survives updates.
func (s *SQLiteStore) SaveTokens(rec TokenRecord) error {
	now := s.now()
	existing, err := s.GetTokens(rec.UserID)
	if err != nil {
		return err
	}
	createdAt := now
	if existing != nil {
		createdAt = existing.CreatedAt
		if rec.RefreshToken == "" {
			rec.RefreshToken = existing.RefreshToken
		}
	}
	_, err = s.db.Exec(
		`INSERT INTO oauth_tokens (user_id, access_token, refresh_token, token_expiry, google_email, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET access_token = excluded.access_token, refresh_token = excluded.refresh_token,
			token_expiry = excluded.token_expiry, google_email = excluded.google_email, updated_at = excluded.updated_at`,
		rec.UserID, rec.AccessToken, rec.RefreshToken, rec.TokenExpiry, rec.GoogleEmail, createdAt.Unix(), now.Unix(),
	)
	if err != nil {
		slog.Error("SQLiteStore SaveTokens failed", "error", err, "userID", rec.UserID)
		return fmt.Errorf("failed to save tokens for %s: %w", rec.UserID, err)
	}
	slog.Debug("SQLiteStore SaveTokens succeeded", "userID", rec.UserID)
	return nil
}

// GetTokens returns the user's OAuth token record, or nil if never linked.
func (s *SQLiteStore) GetTokens(userID string) (*TokenRecord, error) {
	var rec TokenRecord
	var createdAt, updatedAt int64
	err := s.db.QueryRow(
		`SELECT user_id, access_token, refresh_token, token_expiry, google_email, created_at, updated_at
		 FROM oauth_tokens WHERE user_id = ?`, userID,
	).Scan(&rec.UserID, &rec.AccessToken, &rec.RefreshToken, &rec.TokenExpiry, &rec.GoogleEmail, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetTokens failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to get tokens for %s: %w", userID, err)
	}
	rec.CreatedAt = time.Unix(createdAt, 0)
	rec.UpdatedAt = time.Unix(updatedAt, 0)
	return &rec, nil
}

// DeleteTokens removes the user's OAuth token record.
func (s *SQLiteStore) DeleteTokens(userID string) error {
	_, err := s.db.Exec(`DELETE FROM oauth_tokens WHERE user_id = ?`, userID)
	if err != nil {
		slog.Error("SQLiteStore DeleteTokens failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to delete tokens for %s: %w", userID, err)
	}
	return nil
}

// RecordInbound inserts a webhook dedup record, returning false for a
// duplicate event ID. Records past retention are pruned opportunistically.
func (s *SQLiteStore) RecordInbound(eventID, userID string) (bool, error) {
	now := s.now()
	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO webhook_dedup (event_id, user_id, received_at) VALUES (?, ?, ?)`,
		eventID, userID, now.Unix(),
	)
	if err != nil {
		slog.Error("SQLiteStore RecordInbound failed", "error", err, "eventID", eventID)
		return false, fmt.Errorf("failed to record inbound event %s: %w", eventID, err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result for %s: %w", eventID, err)
	}
	if _, err := s.db.Exec(
		`DELETE FROM webhook_dedup WHERE received_at < ?`, now.Add(-dedupRetention).Unix(),
	); err != nil {
		slog.Warn("SQLiteStore dedup prune failed", "error", err)
	}
	return inserted > 0, nil
}
