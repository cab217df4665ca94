package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lifecraft/profiler/backend/internal/model/chat"
)

// MemoryStore keeps sessions in process memory, suitable for development and
// tests.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]chat.Session
	turns    map[string][]chat.Turn
}

// NewMemoryStore bootstraps an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]chat.Session),
		turns:    make(map[string][]chat.Turn),
	}
}

// GetSession retrieves a copy of the session.
func (s *MemoryStore) GetSession(_ context.Context, id string) (chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	return session.Clone(), nil
}

// CreateSession stores a new session.
func (s *MemoryStore) CreateSession(_ context.Context, session chat.Session) error {
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = session.CreatedAt

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; ok {
		return ErrSessionExists
	}
	s.sessions[session.ID] = session.Clone()
	s.turns[session.ID] = make([]chat.Turn, 0, 16)
	return nil
}

// UpsertSession applies the patch, creating the session when Module is set.
func (s *MemoryStore) UpsertSession(_ context.Context, id string, patch Patch) error {
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		if patch.Module == "" {
			return ErrSessionNotFound
		}
		session = chat.Session{ID: id, Module: patch.Module, CreatedAt: now}
		s.turns[id] = make([]chat.Turn, 0, 16)
	}

	if patch.Artifact != nil && session.Artifact != nil && !patch.OverrideArtifact {
		return ErrArtifactExists
	}

	if patch.Stage != nil {
		session.Stage = *patch.Stage
	}
	if patch.ExchangeCount != nil && *patch.ExchangeCount > session.ExchangeCount {
		session.ExchangeCount = *patch.ExchangeCount
	}
	if patch.Artifact != nil {
		artifact := patch.Artifact.Clone()
		session.Artifact = &artifact
		session.Extracted = true
	}
	session.UpdatedAt = now
	s.sessions[id] = session
	return nil
}

// AppendTurns adds turns to the end of the transcript.
func (s *MemoryStore) AppendTurns(_ context.Context, id string, turns []chat.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	for _, turn := range turns {
		if turn.ID == "" {
			turn.ID = uuid.NewString()
		}
		if turn.CreatedAt.IsZero() {
			turn.CreatedAt = time.Now().UTC()
		}
		turn.SessionID = id
		s.turns[id] = append(s.turns[id], turn)
	}
	return nil
}

// LoadTranscript returns the stored turns in order.
func (s *MemoryStore) LoadTranscript(_ context.Context, id string) ([]chat.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns, ok := s.turns[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	copied := make([]chat.Turn, len(turns))
	copy(copied, turns)
	return copied, nil
}

// DeleteSession removes the session and its transcript.
func (s *MemoryStore) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, id)
	delete(s.turns, id)
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
