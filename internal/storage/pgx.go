package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hperssn/interviewclock/internal/domain"
)

var sessionMigrations = []string{
	`CREATE TABLE IF NOT EXISTS interview_sessions (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL,
		completed_at TIMESTAMPTZ,
		payload JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_interview_sessions_completed ON interview_sessions (completed_at) WHERE state = 'completed'`,
}

// PgxBackend stores live sessions in Postgres, one JSONB document per row.
type PgxBackend struct {
	pool *pgxpool.Pool
}

func NewPgxBackend(ctx context.Context, databaseURL string) (*PgxBackend, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := runSessionMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migration: %w", err)
	}
	return &PgxBackend{pool: pool}, nil
}

func runSessionMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	for _, s := range sessionMigrations {
		stmt := strings.TrimSpace(s)
		if stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (p *PgxBackend) Insert(ctx context.Context, s *domain.Session) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return err
	}

	_, err = p.pool.Exec(ctx,
		`INSERT INTO interview_sessions (id, owner_id, state, completed_at, payload)
		 VALUES ($1, $2, $3, $4, $5)`,
		s.ID, s.OwnerID, string(s.State), s.CompletedAt, payload)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrSessionExists
	}
	return err
}

func (p *PgxBackend) Load(ctx context.Context, id string) (*domain.Session, error) {
	var payload []byte
	err := p.pool.QueryRow(ctx,
		`SELECT payload FROM interview_sessions WHERE id = $1`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound(id)
		}
		return nil, err
	}

	var sess domain.Session
	if err := json.Unmarshal(payload, &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &sess, nil
}

func (p *PgxBackend) Save(ctx context.Context, s *domain.Session) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return err
	}

	tag, err := p.pool.Exec(ctx,
		`UPDATE interview_sessions
		 SET state = $2, completed_at = $3, payload = $4, updated_at = NOW()
		 WHERE id = $1`,
		s.ID, string(s.State), s.CompletedAt, payload)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound(s.ID)
	}
	return nil
}

// UpdateTx runs a read-modify-write inside one transaction holding the row
// lock, so several service instances sharing the database stay serialized.
func (p *PgxBackend) UpdateTx(ctx context.Context, id string, fn func(*domain.Session) error) (*domain.Session, error) {
	var out *domain.Session

	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		var payload []byte
		err := tx.QueryRow(ctx,
			`SELECT payload FROM interview_sessions WHERE id = $1 FOR UPDATE`, id).Scan(&payload)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return notFound(id)
			}
			return err
		}

		var sess domain.Session
		if err := json.Unmarshal(payload, &sess); err != nil {
			return fmt.Errorf("decode session %s: %w", id, err)
		}
		if err := fn(&sess); err != nil {
			return err
		}

		updated, err := json.Marshal(&sess)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`UPDATE interview_sessions
			 SET state = $2, completed_at = $3, payload = $4, updated_at = NOW()
			 WHERE id = $1`,
			sess.ID, string(sess.State), sess.CompletedAt, updated)
		if err != nil {
			return err
		}
		out = &sess
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *PgxBackend) Delete(ctx context.Context, id string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM interview_sessions WHERE id = $1`, id)
	return err
}

func (p *PgxBackend) Unfinished(ctx context.Context) ([]string, error) {
	return p.queryIDs(ctx, `SELECT id FROM interview_sessions WHERE state <> 'completed'`)
}

func (p *PgxBackend) ExpiredBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	return p.queryIDs(ctx,
		`SELECT id FROM interview_sessions
		 WHERE (state = 'completed' AND completed_at < $1)
		    OR (state = 'paused' AND (payload->>'paused_at')::timestamptz < $1)`, cutoff)
}

func (p *PgxBackend) queryIDs(ctx context.Context, sql string, args ...any) ([]string, error) {
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (p *PgxBackend) Close() error {
	p.pool.Close()
	return nil
}
