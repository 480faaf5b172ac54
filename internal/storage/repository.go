package storage

import (
	"context"
	"time"
)

// Repository archives completed interviews for per-user history.
type Repository interface {
	SaveInterview(ctx context.Context, record *InterviewRecord) error

	GetInterviewsByUser(ctx context.Context, userID string) ([]InterviewRecord, error)

	GetRecentInterviews(ctx context.Context, userID string, since time.Time) ([]InterviewRecord, error)

	GetInterviewStats(ctx context.Context, userID string) (*InterviewStats, error)

	Close() error
}

type InterviewStats struct {
	TotalInterviews  int     `json:"total_interviews"`
	FullCount        int     `json:"full_count"`
	AveragePlanned   float64 `json:"average_planned_minutes"`
	TotalPracticeSec int     `json:"total_practice_sec"`
	CompletionRate   float64 `json:"completion_rate"`
}

func finishStats(stats *InterviewStats) {
	if stats.TotalInterviews > 0 {
		stats.CompletionRate = float64(stats.FullCount) / float64(stats.TotalInterviews) * 100
	}
}
