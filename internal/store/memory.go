// Package store provides storage backends for hisho.
//
// This file implements an in-memory store used in tests and local
// experimentation. It is not durable and not intended for production.
package store

import (
	"sync"
	"time"

	"github.com/hisho-bot/hisho/internal/models"
)

type memoryState struct {
	state     models.ConversationState
	expiresAt time.Time
}

// MemoryStore is a concurrency-safe in-memory Store implementation.
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]memoryState
	tokens map[string]TokenRecord
	dedup  map[string]time.Time
	now    func() time.Time
}

// Compile-time check that MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states: make(map[string]memoryState),
		tokens: make(map[string]TokenRecord),
		dedup:  make(map[string]time.Time),
		now:    time.Now,
	}
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}

// SaveState overwrites the user's conversation state and resets its TTL.
func (s *MemoryStore) SaveState(userID string, state models.ConversationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[userID] = memoryState{state: state, expiresAt: s.now().Add(models.StateTTL)}
	return nil
}

// GetState returns the user's conversation state, or nil if absent or expired.
func (s *MemoryStore) GetState(userID string) (*models.ConversationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.states[userID]
	if !ok {
		return nil, nil
	}
	if !rec.expiresAt.After(s.now()) {
		delete(s.states, userID)
		return nil, nil
	}
	state := rec.state
	return &state, nil
}

// ClearState removes the user's conversation state.
func (s *MemoryStore) ClearState(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, userID)
	return nil
}

// SaveTokens upserts the user's OAuth token record.
func (s *MemoryStore) SaveTokens(rec TokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if existing, ok := s.tokens[rec.UserID]; ok {
		rec.CreatedAt = existing.CreatedAt
		if rec.RefreshToken == "" {
			rec.RefreshToken = existing.RefreshToken
		}
	} else {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	s.tokens[rec.UserID] = rec
	return nil
}

// GetTokens returns the user's OAuth token record, or nil if never linked.
func (s *MemoryStore) GetTokens(userID string) (*TokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.tokens[userID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// DeleteTokens removes the user's OAuth token record.
func (s *MemoryStore) DeleteTokens(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, userID)
	return nil
}

// RecordInbound inserts a webhook dedup record, returning false for a
// duplicate event ID.
func (s *MemoryStore) RecordInbound(eventID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, at := range s.dedup {
		if now.Sub(at) > dedupRetention {
			delete(s.dedup, id)
		}
	}
	if _, seen := s.dedup[eventID]; seen {
		return false, nil
	}
	s.dedup[eventID] = now
	return true, nil
}
