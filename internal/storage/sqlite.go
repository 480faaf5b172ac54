package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	repo := &SQLiteRepository{db: db}
	if err := repo.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	return repo, nil
}

func (r *SQLiteRepository) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS interviews (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		planned_minutes INTEGER NOT NULL,
		actual_sec INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		is_custom BOOLEAN NOT NULL DEFAULT 0,
		started_at DATETIME NOT NULL,
		completed_at DATETIME NOT NULL,
		phases_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_interviews_user_id ON interviews(user_id);
	CREATE INDEX IF NOT EXISTS idx_interviews_completed_at ON interviews(completed_at);
	`

	_, err := r.db.Exec(schema)
	return err
}

func (r *SQLiteRepository) SaveInterview(ctx context.Context, record *InterviewRecord) error {
	phasesJSON, err := json.Marshal(record.Phases)
	if err != nil {
		return err
	}

	query := `
		INSERT OR REPLACE INTO interviews (id, user_id, planned_minutes, actual_sec, outcome, is_custom, started_at, completed_at, phases_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
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
		record.StartedAt.UTC(),
		record.CompletedAt.UTC(),
		string(phasesJSON),
	)

	return err
}

func (r *SQLiteRepository) GetInterviewsByUser(ctx context.Context, userID string) ([]InterviewRecord, error) {
	query := `
		SELECT id, user_id, planned_minutes, actual_sec, outcome, is_custom, started_at, completed_at, phases_json
		FROM interviews
		WHERE user_id = ?
		ORDER BY completed_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanInterviews(rows)
}

func (r *SQLiteRepository) GetRecentInterviews(ctx context.Context, userID string, since time.Time) ([]InterviewRecord, error) {
	query := `
		SELECT id, user_id, planned_minutes, actual_sec, outcome, is_custom, started_at, completed_at, phases_json
		FROM interviews
		WHERE user_id = ? AND completed_at >= ?
		ORDER BY completed_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanInterviews(rows)
}

func (r *SQLiteRepository) GetInterviewStats(ctx context.Context, userID string) (*InterviewStats, error) {
	query := `
		SELECT 
			COUNT(*) as total,
			COALESCE(SUM(CASE WHEN outcome = 'full' THEN 1 ELSE 0 END), 0) as full_count,
			AVG(planned_minutes) as avg_planned,
			SUM(actual_sec) as total_practice
		FROM interviews
		WHERE user_id = ?
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

func (r *SQLiteRepository) scanInterviews(rows *sql.Rows) ([]InterviewRecord, error) {
	var records []InterviewRecord

	for rows.Next() {
		var record InterviewRecord
		var phasesJSON string

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

		if err := json.Unmarshal([]byte(phasesJSON), &record.Phases); err != nil {
			return nil, err
		}

		records = append(records, record)
	}

	return records, rows.Err()
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}
