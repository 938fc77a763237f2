package session

import (
	"context"
	"sync"
)

type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]Turn
	window   int
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(window int) *MemoryStore {
	if window <= 0 {
		window = DefaultWindow
	}
	return &MemoryStore{
		sessions: make(map[string][]Turn),
		window:   window,
	}
}

func (s *MemoryStore) Append(_ context.Context, sessionID string, turns ...Turn) error {
	if sessionID == "" {
		return ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	history := append(s.sessions[sessionID], turns...)
	if len(history) > s.window {
		history = append([]Turn(nil), history[len(history)-s.window:]...)
	}
	s.sessions[sessionID] = history
	return nil
}

func (s *MemoryStore) Turns(_ context.Context, sessionID string) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]Turn{}, s.sessions[sessionID]...), nil
}

func (s *MemoryStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
	return nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
