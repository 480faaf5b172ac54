package runner

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hperssn/interviewclock/internal/domain"
	"github.com/hperssn/interviewclock/internal/storage"
	"github.com/hperssn/interviewclock/internal/webhook"
)

var ErrHistoryDisabled = errors.New("interview history is not configured")

type Options struct {
	// History and Notifier are optional.
	History  storage.Repository
	Notifier webhook.Sender
	Logger   *slog.Logger
	Clock    func() time.Time

	// Retention is how long completed sessions are kept; zero keeps them
	// forever.
	Retention       time.Duration
	CleanupInterval time.Duration
	NotifyTimeout   time.Duration
}

// SessionManager runs the interview operations against the session store.
// It keeps no per-session goroutines: progress is derived from timestamps
// whenever a session is read.
type SessionManager struct {
	store    storage.Store
	history  storage.Repository
	notifier webhook.Sender
	events   *Broadcaster
	logger   *slog.Logger
	now      func() time.Time

	retention       time.Duration
	cleanupInterval time.Duration
	notifyTimeout   time.Duration

	wg sync.WaitGroup
}

func NewSessionManager(store storage.Store, opts Options) *SessionManager {
	m := &SessionManager{
		store:           store,
		history:         opts.History,
		notifier:        opts.Notifier,
		events:          NewBroadcaster(),
		logger:          opts.Logger,
		now:             opts.Clock,
		retention:       opts.Retention,
		cleanupInterval: opts.CleanupInterval,
		notifyTimeout:   opts.NotifyTimeout,
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.cleanupInterval <= 0 {
		m.cleanupInterval = 5 * time.Minute
	}
	if m.notifyTimeout <= 0 {
		m.notifyTimeout = 5 * time.Second
	}
	return m
}

func (m *SessionManager) Start(ctx context.Context, ownerID string, phases []domain.Phase) (*domain.Session, error) {
	sess, err := domain.BuildSession("", ownerID, phases, m.now())
	if err != nil {
		return nil, err
	}
	if err := m.store.Insert(ctx, sess); err != nil {
		return nil, err
	}

	m.logger.Info("interview started",
		"interview_id", sess.ID,
		"user_id", ownerID,
		"phases", len(sess.Phases),
		"total_minutes", sess.TotalDurationMinutes(),
		"custom", sess.IsCustom,
	)
	return sess, nil
}

// Get returns the session with every due transition applied.
func (m *SessionManager) Get(ctx context.Context, id string) (*domain.Session, error) {
	sess, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	probe := sess.Clone()
	if len(domain.Advance(probe, m.now())) == 0 {
		return sess, nil
	}

	updated, _, err := m.mutate(ctx, id, "advance", func(s *domain.Session, now time.Time) ([]domain.Transition, error) {
		return domain.Advance(s, now), nil
	})
	return updated, err
}

// Owner returns the user who started the session.
func (m *SessionManager) Owner(ctx context.Context, id string) (string, error) {
	sess, err := m.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return sess.OwnerID, nil
}

func (m *SessionManager) Status(ctx context.Context, id string) (domain.LiveState, error) {
	sess, err := m.Get(ctx, id)
	if err != nil {
		return domain.LiveState{}, err
	}
	return domain.ComputeLiveState(sess, m.now()), nil
}

func (m *SessionManager) Warnings(ctx context.Context, id string) (domain.TimeWarnings, error) {
	sess, err := m.Get(ctx, id)
	if err != nil {
		return domain.TimeWarnings{}, err
	}
	return domain.ComputeWarnings(sess, m.now()), nil
}

func (m *SessionManager) Pause(ctx context.Context, id string) (*domain.Session, error) {
	sess, _, err := m.mutate(ctx, id, "pause", domain.Pause)
	return sess, err
}

func (m *SessionManager) Resume(ctx context.Context, id string) (*domain.Session, error) {
	sess, _, err := m.mutate(ctx, id, "resume", domain.Resume)
	return sess, err
}

// Skip ends the current phase and returns the live state right after it.
func (m *SessionManager) Skip(ctx context.Context, id string) (domain.LiveState, error) {
	sess, at, err := m.mutate(ctx, id, "skip", domain.Skip)
	if err != nil {
		return domain.LiveState{}, err
	}
	return domain.ComputeLiveState(sess, at), nil
}

func (m *SessionManager) Shorten(ctx context.Context, id string, idx, minutes int) (*domain.Session, error) {
	sess, _, err := m.mutate(ctx, id, "shorten", func(s *domain.Session, now time.Time) ([]domain.Transition, error) {
		return domain.Shorten(s, idx, minutes, now)
	})
	return sess, err
}

// Subscribe streams the events of an existing session.
func (m *SessionManager) Subscribe(ctx context.Context, id string) (<-chan domain.Event, func(), error) {
	if _, err := m.store.Get(ctx, id); err != nil {
		return nil, nil, err
	}
	ch, cancel := m.events.Subscribe(id)
	return ch, cancel, nil
}

// History lists the user's archived interviews, newest first. A zero since
// returns all of them.
func (m *SessionManager) History(ctx context.Context, userID string, since time.Time) ([]storage.InterviewRecord, error) {
	if m.history == nil {
		return nil, ErrHistoryDisabled
	}
	if since.IsZero() {
		return m.history.GetInterviewsByUser(ctx, userID)
	}
	return m.history.GetRecentInterviews(ctx, userID, since)
}

func (m *SessionManager) Stats(ctx context.Context, userID string) (*storage.InterviewStats, error) {
	if m.history == nil {
		return nil, ErrHistoryDisabled
	}
	return m.history.GetInterviewStats(ctx, userID)
}

type operation func(s *domain.Session, now time.Time) ([]domain.Transition, error)

// mutate runs op as one atomic read-modify-write. The clock is read under the
// session lock so operations on one session always see increasing instants.
func (m *SessionManager) mutate(ctx context.Context, id, name string, op operation) (*domain.Session, time.Time, error) {
	var (
		now         time.Time
		transitions []domain.Transition
	)

	updated, err := m.store.Update(ctx, id, func(s *domain.Session) error {
		now = m.now()
		var err error
		transitions, err = op(s, now)
		return err
	})
	if err != nil {
		m.logger.Debug("interview operation rejected", "op", name, "interview_id", id, "error", err)
		return nil, now, err
	}

	m.dispatch(updated, transitions, now)
	return updated, now, nil
}

func (m *SessionManager) dispatch(sess *domain.Session, transitions []domain.Transition, now time.Time) {
	if len(transitions) == 0 {
		return
	}

	events := domain.EventsOf(sess, transitions, now)
	completed := false
	for _, e := range events {
		m.logger.Info("interview transition",
			"interview_id", e.InterviewID,
			"type", e.Type,
			"phase", e.Phase,
			"phase_index", e.PhaseIndex,
		)
		m.events.Publish(e)
		if e.Type == domain.TransitionSessionCompleted {
			completed = true
		}
	}

	var record *storage.InterviewRecord
	if completed && m.history != nil {
		record = storage.FromDomainSession(sess)
	}
	if record == nil && m.notifier == nil {
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.deliver(record, events)
	}()
}

// deliver archives and notifies off the request path. Failures are logged
// and not retried.
func (m *SessionManager) deliver(record *storage.InterviewRecord, events []domain.Event) {
	if record != nil {
		ctx, cancel := context.WithTimeout(context.Background(), m.notifyTimeout)
		if err := m.history.SaveInterview(ctx, record); err != nil {
			m.logger.Error("failed to save interview history", "interview_id", record.ID, "error", err)
		}
		cancel()
	}

	if m.notifier == nil {
		return
	}
	for _, e := range events {
		ctx, cancel := context.WithTimeout(context.Background(), m.notifyTimeout)
		if err := m.notifier.Send(ctx, e); err != nil {
			m.logger.Warn("webhook delivery failed", "interview_id", e.InterviewID, "type", e.Type, "error", err)
		}
		cancel()
	}
}

// Run sweeps stale sessions until ctx is done. It returns immediately when
// retention is disabled.
func (m *SessionManager) Run(ctx context.Context) {
	if m.retention <= 0 {
		return
	}

	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanupOldSessions(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// cleanupOldSessions first completes sessions nobody polled past their last
// phase, so they are archived and notified like any other, then purges
// everything beyond retention.
func (m *SessionManager) cleanupOldSessions(ctx context.Context) {
	m.advanceUnfinished(ctx)

	cutoff := m.now().Add(-m.retention)
	n, err := m.store.PurgeExpired(ctx, cutoff)
	if err != nil {
		m.logger.Error("session cleanup failed", "error", err)
		return
	}
	if n > 0 {
		m.logger.Info("purged expired sessions", "count", n, "cutoff", cutoff)
	}
}

func (m *SessionManager) advanceUnfinished(ctx context.Context) {
	ids, err := m.store.Unfinished(ctx)
	if err != nil {
		m.logger.Error("failed to list unfinished sessions", "error", err)
		return
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}
		if _, err := m.Get(ctx, id); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			m.logger.Warn("failed to advance session", "interview_id", id, "error", err)
		}
	}
}

func (m *SessionManager) Now() time.Time {
	return m.now()
}

// Wait blocks until background deliveries have finished.
func (m *SessionManager) Wait() {
	m.wg.Wait()
}
