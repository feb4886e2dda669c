// Package store provides storage backends for hisho.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/hisho-bot/hisho/internal/models"
	_ "github.com/lib/pq"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists hisho data in PostgreSQL.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new PostgreSQL store with the given DSN.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &PostgresStore{db: db, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// SaveState overwrites the user's conversation state and resets its TTL.
func (s *PostgresStore) SaveState(userID string, state models.ConversationState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode state for %s: %w", userID, err)
	}
	now := s.now()
	_, err = s.db.Exec(
		`INSERT INTO conversation_states (user_id, state, expires_at, updated_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id) DO UPDATE SET state = EXCLUDED.state, expires_at = EXCLUDED.expires_at, updated_at = EXCLUDED.updated_at`,
		userID, string(payload), now.Add(models.StateTTL).Unix(), now.Unix(),
	)
	if err != nil {
		slog.Error("PostgresStore SaveState failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to save state for %s: %w", userID, err)
	}
	return nil
}

// GetState returns the user's conversation state, or nil if absent or expired.
func (s *PostgresStore) GetState(userID string) (*models.ConversationState, error) {
	var payload string
	var expiresAt int64
	err := s.db.QueryRow(
		`SELECT state, expires_at FROM conversation_states WHERE user_id = $1`, userID,
	).Scan(&payload, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetState failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to get state for %s: %w", userID, err)
	}
	if expiresAt <= s.now().Unix() {
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
func (s *PostgresStore) ClearState(userID string) error {
	_, err := s.db.Exec(`DELETE FROM conversation_states WHERE user_id = $1`, userID)
	if err != nil {
		slog.Error("PostgresStore ClearState failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to clear state for %s: %w", userID, err)
	}
	return nil
}

// SaveTokens upserts the user's OAuth token record. An empty refresh token
// keeps the stored one; created_at survives updates.
func (s *PostgresStore) SaveTokens(rec TokenRecord) error {
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
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (user_id) DO UPDATE SET access_token = EXCLUDED.access_token, refresh_token = EXCLUDED.refresh_token,
			token_expiry = EXCLUDED.token_expiry, google_email = EXCLUDED.google_email, updated_at = EXCLUDED.updated_at`,
		rec.UserID, rec.AccessToken, rec.RefreshToken, rec.TokenExpiry, rec.GoogleEmail, createdAt.Unix(), now.Unix(),
	)
	if err != nil {
		slog.Error("PostgresStore SaveTokens failed", "error", err, "userID", rec.UserID)
		return fmt.Errorf("failed to save tokens for %s: %w", rec.UserID, err)
	}
	return nil
}

// GetTokens returns the user's OAuth token record, or nil if never linked.
func (s *PostgresStore) GetTokens(userID string) (*TokenRecord, error) {
	var rec TokenRecord
	var createdAt, updatedAt int64
	err := s.db.QueryRow(
		`SELECT user_id, access_token, refresh_token, token_expiry, google_email, created_at, updated_at
		 FROM oauth_tokens WHERE user_id = $1`, userID,
	).Scan(&rec.UserID, &rec.AccessToken, &rec.RefreshToken, &rec.TokenExpiry, &rec.GoogleEmail, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetTokens failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to get tokens for %s: %w", userID, err)
	}
	rec.CreatedAt = time.Unix(createdAt, 0)
	rec.UpdatedAt = time.Unix(updatedAt, 0)
	return &rec, nil
}

// DeleteTokens removes the user's OAuth token record.
func (s *PostgresStore) DeleteTokens(userID string) error {
	_, err := s.db.Exec(`DELETE FROM oauth_tokens WHERE user_id = $1`, userID)
	if err != nil {
		slog.Error("PostgresStore DeleteTokens failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to delete tokens for %s: %w", userID, err)
	}
	return nil
}

// RecordInbound inserts a webhook dedup record, returning false for a
// duplicate event ID.
func (s *PostgresStore) RecordInbound(eventID, userID string) (bool, error) {
	now := s.now()
	res, err := s.db.Exec(
		`INSERT INTO webhook_dedup (event_id, user_id, received_at) VALUES ($1, $2, $3) ON CONFLICT (event_id) DO NOTHING`,
		eventID, userID, now.Unix(),
	)
	if err != nil {
		slog.Error("PostgresStore RecordInbound failed", "error", err, "eventID", eventID)
		return false, fmt.Errorf("failed to record inbound event %s: %w", eventID, err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result for %s: %w", eventID, err)
	}
	if _, err := s.db.Exec(
		`DELETE FROM webhook_dedup WHERE received_at < $1`, now.Add(-dedupRetention).Unix(),
	); err != nil {
		slog.Warn("PostgresStore dedup prune failed", "error", err)
	}
	return inserted > 0, nil
}
