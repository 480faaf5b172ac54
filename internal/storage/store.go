package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hperssn/interviewclock/internal/domain"
)

var (
	ErrSessionExists = errors.New("session already exists")
	ErrLockTimeout   = errors.New("timed out waiting for session lock")
	ErrStoreClosed   = errors.New("store is closed")
)

// Store holds live interview sessions. Every operation on one session id is
// serialized; different ids never wait on each other.
type Store interface {
	Insert(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, id string) (*domain.Session, error)
	// Update loads the session, runs fn on a private copy and persists the copy
	// only when fn succeeds.
	Update(ctx context.Context, id string, fn func(*domain.Session) error) (*domain.Session, error)
	// Unfinished lists sessions not yet stored as completed. Some of them may
	// already be past their last phase and only need advancing.
	Unfinished(ctx context.Context) ([]string, error)
	// PurgeExpired deletes sessions that completed before the cutoff and
	// sessions left paused since before it.
	PurgeExpired(ctx context.Context, before time.Time) (int, error)
	Close() error
}

// Backend persists whole session values. It does not need to serialize
// read-modify-write cycles; the Store wrapping it does.
type Backend interface {
	Insert(ctx context.Context, s *domain.Session) error
	Load(ctx context.Context, id string) (*domain.Session, error)
	Save(ctx context.Context, s *domain.Session) error
	Delete(ctx context.Context, id string) error
	Unfinished(ctx context.Context) ([]string, error)
	ExpiredBefore(ctx context.Context, cutoff time.Time) ([]string, error)
	Close() error
}

// txUpdater is implemented by backends that can run the whole
// read-modify-write inside their own transaction.
type txUpdater interface {
	UpdateTx(ctx context.Context, id string, fn func(*domain.Session) error) (*domain.Session, error)
}

type LockedStore struct {
	backend     Backend
	locks       *keyLock
	lockTimeout time.Duration
}

func NewStore(backend Backend, lockTimeout time.Duration) *LockedStore {
	return &LockedStore{
		backend:     backend,
		locks:       newKeyLock(),
		lockTimeout: lockTimeout,
	}
}

func (s *LockedStore) Insert(ctx context.Context, sess *domain.Session) error {
	unlock, err := s.locks.acquire(ctx, sess.ID, s.lockTimeout)
	if err != nil {
		return err
	}
	defer unlock()

	return s.backend.Insert(ctx, sess.Clone())
}

func (s *LockedStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	return s.backend.Load(ctx, id)
}

func (s *LockedStore) Update(ctx context.Context, id string, fn func(*domain.Session) error) (*domain.Session, error) {
	unlock, err := s.locks.acquire(ctx, id, s.lockTimeout)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if tx, ok := s.backend.(txUpdater); ok {
		return tx.UpdateTx(ctx, id, fn)
	}

	current, err := s.backend.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	if err := s.backend.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("save session %s: %w", id, err)
	}
	return next.Clone(), nil
}

func (s *LockedStore) Unfinished(ctx context.Context) ([]string, error) {
	return s.backend.Unfinished(ctx)
}

func (s *LockedStore) PurgeExpired(ctx context.Context, before time.Time) (int, error) {
	ids, err := s.backend.ExpiredBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("list expired sessions: %w", err)
	}

	purged := 0
	for _, id := range ids {
		ok, err := s.purgeOne(ctx, id, before)
		if err != nil {
			return purged, err
		}
		if ok {
			purged++
		}
	}
	return purged, nil
}

func (s *LockedStore) purgeOne(ctx context.Context, id string, before time.Time) (bool, error) {
	unlock, err := s.locks.acquire(ctx, id, s.lockTimeout)
	if err != nil {
		return false, err
	}
	defer unlock()

	sess, err := s.backend.Load(ctx, id)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !expired(sess, before) {
		return false, nil
	}
	if err := s.backend.Delete(ctx, id); err != nil {
		return false, fmt.Errorf("delete session %s: %w", id, err)
	}
	return true, nil
}

func (s *LockedStore) Close() error {
	return s.backend.Close()
}

// expired reports whether a stored session is past retention. A session
// paused since before the cutoff counts as abandoned.
func expired(s *domain.Session, before time.Time) bool {
	switch s.State {
	case domain.StateCompleted:
		return s.CompletedAt != nil && s.CompletedAt.Before(before)
	case domain.StatePaused:
		return s.PausedAt != nil && s.PausedAt.Before(before)
	}
	return false
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
}
