package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/hperssn/interviewclock/internal/domain"
)

var sessionsBucket = []byte("sessions")

var errBoltInUse = errors.New("bolt database is locked by another process")

// BoltBackend keeps sessions as JSON documents in a single bbolt bucket.
type BoltBackend struct {
	db *bolt.DB
}

func NewBoltBackend(path string) (*BoltBackend, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create bolt dir: %w", err)
		}
	}

	var fileMode fs.FileMode = 0o600
	db, err := bolt.Open(path, fileMode, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		if errors.Is(err, bolt.ErrTimeout) {
			return nil, errBoltInUse
		}
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(sessionsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create sessions bucket: %w", err)
	}

	return &BoltBackend{db: db}, nil
}

func (b *BoltBackend) Insert(_ context.Context, s *domain.Session) error {
	value, err := json.Marshal(s)
	if err != nil {
		return err
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(sessionsBucket)
		if bucket.Get([]byte(s.ID)) != nil {
			return ErrSessionExists
		}
		return bucket.Put([]byte(s.ID), value)
	})
}

func (b *BoltBackend) Load(_ context.Context, id string) (*domain.Session, error) {
	var sess domain.Session

	err := b.db.View(func(tx *bolt.Tx) error {
		value := tx.Bucket(sessionsBucket).Get([]byte(id))
		if len(value) == 0 {
			return notFound(id)
		}
		return json.Unmarshal(value, &sess)
	})
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (b *BoltBackend) Save(_ context.Context, s *domain.Session) error {
	value, err := json.Marshal(s)
	if err != nil {
		return err
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(sessionsBucket)
		if bucket.Get([]byte(s.ID)) == nil {
			return notFound(s.ID)
		}
		return bucket.Put([]byte(s.ID), value)
	})
}

func (b *BoltBackend) Delete(_ context.Context, id string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(sessionsBucket).Delete([]byte(id))
	})
}

func (b *BoltBackend) Unfinished(_ context.Context) ([]string, error) {
	return b.scan(func(s *domain.Session) bool {
		return s.State != domain.StateCompleted
	})
}

func (b *BoltBackend) ExpiredBefore(_ context.Context, cutoff time.Time) ([]string, error) {
	return b.scan(func(s *domain.Session) bool {
		return expired(s, cutoff)
	})
}

func (b *BoltBackend) scan(match func(*domain.Session) bool) ([]string, error) {
	var ids []string

	err := b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(sessionsBucket).Cursor()

		for k, v := c.First(); k != nil; k, v = c.Next() {
			var sess domain.Session
			if err := json.Unmarshal(v, &sess); err != nil {
				return fmt.Errorf("decode session %s: %w", k, err)
			}
			if match(&sess) {
				ids = append(ids, string(k))
			}
		}
		return nil
	})
	return ids, err
}

func (b *BoltBackend) Close() error {
	return b.db.Close()
}
