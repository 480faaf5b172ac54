package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/lib/pq"
)

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(connStr string) (*PostgresRepository, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	repo := &PostgresRepository{db: db}
	if err := repo.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	return repo, nil
}

func (r *PostgresRepository) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS interviews (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		planned_minutes INTEGER NOT NULL,
		actual_sec INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		is_custom BOOLEAN NOT NULL DEFAULT FALSE,
		started_at TIMESTAMPTZ NOT NULL,
		completed_at TIMESTAMPTZ NOT NULL,
		phases_json JSONB NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_interviews_user_id ON interviews(user_id);
	CREATE INDEX IF NOT EXISTS idx_interviews_completed_at ON interviews(completed_at);
	`

	_, err := r.db.Exec(schema)
	return err
}

func (r *PostgresRepository) SaveInterview(ctx context.Context, record *InterviewRecord) error {
	phasesJSON, err := json.Marshal(record.Phases)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO interviews (id, user_id, planned_minutes, actual_sec, outcome, is_custom, started_at, completed_at, phases_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			actual_sec = EXCLUDED.actual_sec,
			outcome = EXCLUDED.outcome,
			completed_at = EXCLUDED.completed_at,
			phases_json = EXCLUDED.phases_json
	`

	_, err = r.db.ExecContext(
		ctx,
		query,
		record.ID,
		record.UserID,
		record.PlannedMinutes,
		record.ActualSec,
		record.Outcome,
		record.IsCustom,
		record.StartedAt,
		record.CompletedAt,
		phasesJSON,
	)

	return err
}

func (r *PostgresRepository) GetInterviewsByUser(ctx context.Context, userID string) ([]InterviewRecord, error) {
	query := `
		SELECT id, user_id, planned_minutes, actual_sec, outcome, is_custom, started_at, completed_at, phases_json
		FROM interviews
		WHERE user_id = $1
		ORDER BY completed_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanInterviews(rows)
}

func (r *PostgresRepository) GetRecentInterviews(ctx context.Context, userID string, since time.Time) ([]InterviewRecord, error) {
	query := `
		SELECT id, user_id, planned_minutes, actual_sec, outcome, is_custom, started_at, completed_at, phases_json
		FROM interviews
		WHERE user_id = $1 AND completed_at >= $2
		ORDER BY completed_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanInterviews(rows)
}

func (r *PostgresRepository) GetInterviewStats(ctx context.Context, userID string) (*InterviewStats, error) {
	query := `
		SELECT 
			COUNT(*) as total,
			COALESCE(SUM(CASE WHEN outcome = 'full' THEN 1 ELSE 0 END), 0) as full_count,
			AVG(planned_minutes) as avg_planned,
			SUM(actual_sec) as total_practice
		FROM interviews
		WHERE user_id = $1
	`

	var stats InterviewStats
	var totalPractice sql.NullInt64
	var avgPlanned sql.NullFloat64

	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&stats.TotalInterviews,
		&stats.FullCount,
		&avgPlanned,
		&totalPractice,
	)

	if err != nil {
		return nil, err
	}

	if avgPlanned.Valid {
		stats.AveragePlanned = avgPlanned.Float64
	}
	if totalPractice.Valid {
		stats.TotalPracticeSec = int(totalPractice.Int64)
	}
	finishStats(&stats)

	return &stats, nil
}

func (r *PostgresRepository) scanInterviews(rows *sql.Rows) ([]InterviewRecord, error) {
	var records []InterviewRecord

	for rows.Next() {
		var record InterviewRecord
		var phasesJSON []byte

		err := rows.Scan(
			&record.ID,
			&record.UserID,
			&record.PlannedMinutes,
			&record.ActualSec,
			&record.Outcome,
			&record.IsCustom,
			&record.StartedAt,
			&record.CompletedAt,
			&phasesJSON,
		)
		if err != nil {
			return nil, err
		}

		if err := json.Unmarshal(phasesJSON, &record.Phases); err != nil {
			return nil, err
		}

		records = append(records, record)
	}

	return records, rows.Err()
}

func (r *PostgresRepository) Close() error {
	return r.db.Close()
}
