package storage

import (
	"context"
	"sync"
	"time"

	"github.com/hperssn/interviewclock/internal/domain"
)

type MemoryBackend struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
	closed   bool
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		sessions: make(map[string]*domain.Session),
	}
}

func (m *MemoryBackend) Insert(_ context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}

	if _, exists := m.sessions[s.ID]; exists {
		return ErrSessionExists
	}
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *MemoryBackend) Load(_ context.Context, id string) (*domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStoreClosed
	}

	s, ok := m.sessions[id]
	if !ok {
		return nil, notFound(id)
	}
	return s.Clone(), nil
}

func (m *MemoryBackend) Save(_ context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}

	if _, ok := m.sessions[s.ID]; !ok {
		return notFound(s.ID)
	}
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}

	delete(m.sessions, id)
	return nil
}

func (m *MemoryBackend) Unfinished(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStoreClosed
	}

	var ids []string
	for id, s := range m.sessions {
		if s.State != domain.StateCompleted {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *MemoryBackend) ExpiredBefore(_ context.Context, cutoff time.Time) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStoreClosed
	}

	var ids []string
	for id, s := range m.sessions {
		if expired(s, cutoff) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
