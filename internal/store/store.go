// Package store provides storage backends for hisho.
//
// It persists per-user conversation state (with TTL), Google OAuth tokens,
// and webhook-event deduplication records. SQLite and PostgreSQL backends
// share the same interface; an in-memory implementation backs the tests.
package store

import (
	"time"

	"github.com/hisho-bot/hisho/internal/models"
)

// TokenRecord holds one user's Google OAuth tokens.
type TokenRecord struct {
	UserID       string    `json:"user_id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenExpiry  int64     `json:"token_expiry"` // epoch seconds
	GoogleEmail  string    `json:"google_email,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// StateStore persists per-user conversation state with a 10-minute TTL.
type StateStore interface {
	// SaveState overwrites any prior state for the user and resets the TTL.
	SaveState(userID string, state models.ConversationState) error

	// GetState returns the current state, or nil if absent or expired.
	GetState(userID string) (*models.ConversationState, error)

	// ClearState removes the state unconditionally. Clearing an absent state
	// is not an error.
	ClearState(userID string) error
}

// TokenStore persists Google OAuth tokens per user.
type TokenStore interface {
	// SaveTokens upserts the token record. An empty refresh token keeps the
	// previously stored one (Google omits it on re-consent); created_at is
	// preserved across updates.
	SaveTokens(rec TokenRecord) error

	// GetTokens returns the stored record, or nil if the user never linked.
	GetTokens(userID string) (*TokenRecord, error)

	// DeleteTokens removes the record unconditionally.
	DeleteTokens(userID string) error
}

// DedupStore records webhook event IDs so redelivered events are processed
// at most once.
type DedupStore interface {
	// RecordInbound inserts a dedup record for the event. It returns false
	// when the event ID was already recorded.
	RecordInbound(eventID, userID string) (bool, error)
}

// Store is the full persistence surface consumed by the controller and the
// credential provider.
type Store interface {
	StateStore
	TokenStore
	DedupStore

	// Close releases the underlying database resources.
	Close() error
}

// Opts holds configuration options for store implementations.
type Opts struct {
	// DSN is the database connection string: a file path for SQLite, a
	// postgres:// URL or key=value DSN for PostgreSQL.
	DSN string
}

// Option configures store settings.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// dedupRetention bounds how long dedup records are kept. Webhook redelivery
// happens within minutes; a day is comfortably past that.
const dedupRetention = 24 * time.Hour
