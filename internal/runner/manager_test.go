package runner_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/hperssn/interviewclock/internal/domain"
	"github.com/hperssn/interviewclock/internal/runner"
	"github.com/hperssn/interviewclock/internal/storage"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeHistory struct {
	mu    sync.Mutex
	saved []*storage.InterviewRecord
}

func (h *fakeHistory) SaveInterview(_ context.Context, r *storage.InterviewRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.saved = append(h.saved, r)
	return nil
}

func (h *fakeHistory) GetInterviewsByUser(context.Context, string) ([]storage.InterviewRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]storage.InterviewRecord, len(h.saved))
	for i, r := range h.saved {
		out[i] = *r
	}
	return out, nil
}

func (h *fakeHistory) GetRecentInterviews(ctx context.Context, userID string, _ time.Time) ([]storage.InterviewRecord, error) {
	return h.GetInterviewsByUser(ctx, userID)
}

func (h *fakeHistory) GetInterviewStats(context.Context, string) (*storage.InterviewStats, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return &storage.InterviewStats{TotalInterviews: len(h.saved)}, nil
}

func (h *fakeHistory) Close() error { return nil }

func (h *fakeHistory) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.saved)
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []domain.Event
}

func (n *fakeNotifier) Send(_ context.Context, e domain.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
	return nil
}

func (n *fakeNotifier) types() []domain.TransitionType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]domain.TransitionType, len(n.events))
	for i, e := range n.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	manager  *runner.SessionManager
	store    storage.Store
	clock    *fakeClock
	history  *fakeHistory
	notifier *fakeNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:    storage.NewStore(storage.NewMemoryBackend(), time.Second),
		clock:    &fakeClock{now: t0},
		history:  &fakeHistory{},
		notifier: &fakeNotifier{},
	}
	f.manager = runner.NewSessionManager(f.store, runner.Options{
		History:         f.history,
		Notifier:        f.notifier,
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		Clock:           f.clock.Now,
		Retention:       time.Hour,
		CleanupInterval: 5 * time.Millisecond,
	})
	return f
}

func introTech() []domain.Phase {
	return []domain.Phase{
		{Name: "Intro", DurationMinutes: 5},
		{Name: "Tech", DurationMinutes: 10, IsSkippable: true, IsShortenable: true},
	}
}

func (f *fixture) start(t *testing.T, phases []domain.Phase) string {
	t.Helper()
	sess, err := f.manager.Start(context.Background(), "alice", phases)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	return sess.ID
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 0.01
}

func TestSessionManager_StartAndStatus(t *testing.T) {
	f := newFixture(t)
	id := f.start(t, introTech())

	f.clock.Advance(5*time.Minute + time.Second)
	live, err := f.manager.Status(context.Background(), id)
	if err != nil {
		t.Fatalf("status: %v", err)
	}

	if live.CurrentPhase != "Tech" {
		t.Fatalf("expected Tech, got %q", live.CurrentPhase)
	}
	if !approx(live.Elapsed.Minutes(), 5.02) {
		t.Fatalf("expected ~5.02 elapsed minutes, got %.3f", live.Elapsed.Minutes())
	}
	if live.IsCompleted {
		t.Fatalf("session should not be completed")
	}

	stored, _ := f.store.Get(context.Background(), id)
	if stored.CurrentIdx != 1 || stored.Phases[0].Status != domain.PhaseCompleted {
		t.Fatalf("due transition was not persisted: %+v", stored.Phases[0])
	}
}

func TestSessionManager_StartInvalid(t *testing.T) {
	f := newFixture(t)

	_, err := f.manager.Start(context.Background(), "alice", []domain.Phase{{Name: "x", DurationMinutes: 0}})
	if !errors.Is(err, domain.ErrInvalidSchedule) {
		t.Fatalf("expected ErrInvalidSchedule, got %v", err)
	}
	_, err = f.manager.Start(context.Background(), "alice", nil)
	if !errors.Is(err, domain.ErrInvalidSchedule) {
		t.Fatalf("expected ErrInvalidSchedule for empty list, got %v", err)
	}
}

func TestSessionManager_NotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.manager.Status(ctx, "missing"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("status: expected ErrSessionNotFound, got %v", err)
	}
	if _, err := f.manager.Pause(ctx, "missing"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("pause: expected ErrSessionNotFound, got %v", err)
	}
	if _, _, err := f.manager.Subscribe(ctx, "missing"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("subscribe: expected ErrSessionNotFound, got %v", err)
	}
}

func TestSessionManager_PauseResume(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.start(t, introTech())

	f.clock.Advance(2 * time.Minute)
	sess, err := f.manager.Pause(ctx, id)
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	if sess.State != domain.StatePaused {
		t.Fatalf("expected paused, got %s", sess.State)
	}

	f.clock.Advance(3 * time.Minute)
	if _, err := f.manager.Resume(ctx, id); err != nil {
		t.Fatalf("resume: %v", err)
	}

	f.clock.Advance(time.Minute)
	live, err := f.manager.Status(ctx, id)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !approx(live.Elapsed.Minutes(), 3) {
		t.Fatalf("expected ~3 elapsed minutes, got %.3f", live.Elapsed.Minutes())
	}
}

func TestSessionManager_InvalidStateTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.start(t, introTech())

	if _, err := f.manager.Resume(ctx, id); !errors.Is(err, domain.ErrInvalidSessionState) {
		t.Fatalf("resume running: expected ErrInvalidSessionState, got %v", err)
	}

	if _, err := f.manager.Pause(ctx, id); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if _, err := f.manager.Pause(ctx, id); !errors.Is(err, domain.ErrInvalidSessionState) {
		t.Fatalf("pause paused: expected ErrInvalidSessionState, got %v", err)
	}
}

func TestSessionManager_SkipUnskippableLeavesSessionUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.start(t, introTech())

	f.clock.Advance(time.Minute)
	before, _ := f.store.Get(ctx, id)

	if _, err := f.manager.Skip(ctx, id); !errors.Is(err, domain.ErrPhaseNotSkippable) {
		t.Fatalf("expected ErrPhaseNotSkippable, got %v", err)
	}

	after, _ := f.store.Get(ctx, id)
	if after.CurrentIdx != before.CurrentIdx || after.Phases[0].Status != domain.PhaseActive {
		t.Fatalf("failed skip changed the session")
	}
}

func TestSessionManager_SkipLastPhaseCompletes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.start(t, introTech())

	f.clock.Advance(6 * time.Minute)
	live, err := f.manager.Skip(ctx, id)
	if err != nil {
		t.Fatalf("skip: %v", err)
	}
	if !live.IsCompleted || !live.IsSkipped || live.CurrentPhase != "Tech" {
		t.Fatalf("unexpected live state %+v", live)
	}

	if _, err := f.manager.Skip(ctx, id); !errors.Is(err, domain.ErrSessionAlreadyCompleted) {
		t.Fatalf("expected ErrSessionAlreadyCompleted, got %v", err)
	}
}

func TestSessionManager_Shorten(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.start(t, introTech())

	sess, err := f.manager.Shorten(ctx, id, 1, 4)
	if err != nil {
		t.Fatalf("shorten: %v", err)
	}
	if sess.TotalDurationMinutes() != 9 {
		t.Fatalf("expected total 9, got %d", sess.TotalDurationMinutes())
	}

	if _, err := f.manager.Shorten(ctx, id, 0, 2); !errors.Is(err, domain.ErrPhaseNotShortenable) {
		t.Fatalf("shorten active: expected ErrPhaseNotShortenable, got %v", err)
	}
	if _, err := f.manager.Shorten(ctx, id, 1, 4); !errors.Is(err, domain.ErrInvalidSchedule) {
		t.Fatalf("shorten to same length: expected ErrInvalidSchedule, got %v", err)
	}
}

func TestSessionManager_CompletionArchivesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.start(t, introTech())

	f.clock.Advance(time.Hour)
	first, err := f.manager.Status(ctx, id)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	second, err := f.manager.Status(ctx, id)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	f.manager.Wait()

	if !first.IsCompleted || first.Elapsed != 15*time.Minute || second.Elapsed != first.Elapsed {
		t.Fatalf("completed status not stable: %v vs %v", first.Elapsed, second.Elapsed)
	}
	if f.history.count() != 1 {
		t.Fatalf("expected one archived interview, got %d", f.history.count())
	}

	want := []domain.TransitionType{
		domain.TransitionPhaseCompleted,
		domain.TransitionPhaseCompleted,
		domain.TransitionSessionCompleted,
	}
	got := f.notifier.types()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}

	records, _ := f.manager.History(ctx, "alice", time.Time{})
	if len(records) != 1 || records[0].ID != id {
		t.Fatalf("unexpected history %+v", records)
	}
}

func TestSessionManager_HistoryDisabled(t *testing.T) {
	m := runner.NewSessionManager(storage.NewStore(storage.NewMemoryBackend(), time.Second), runner.Options{})

	if _, err := m.History(context.Background(), "alice", time.Time{}); !errors.Is(err, runner.ErrHistoryDisabled) {
		t.Fatalf("expected ErrHistoryDisabled, got %v", err)
	}
	if _, err := m.Stats(context.Background(), "alice"); !errors.Is(err, runner.ErrHistoryDisabled) {
		t.Fatalf("expected ErrHistoryDisabled, got %v", err)
	}
}

func TestSessionManager_SubscribeReceivesTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.start(t, introTech())

	events, cancel, err := f.manager.Subscribe(ctx, id)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	if _, err := f.manager.Pause(ctx, id); err != nil {
		t.Fatalf("pause: %v", err)
	}

	select {
	case e := <-events:
		if e.Type != domain.TransitionSessionPaused || e.InterviewID != id {
			t.Fatalf("unexpected event %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestSessionManager_ConcurrentPauseIsSerialized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.start(t, introTech())

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.manager.Pause(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, domain.ErrInvalidSessionState):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 || rejected != 19 {
		t.Fatalf("expected exactly one pause to win, got %d succeeded and %d rejected", succeeded, rejected)
	}
}

func TestSessionManager_RunPurgesOldSessions(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := f.start(t, introTech())
	f.clock.Advance(20 * time.Minute)
	if _, err := f.manager.Status(ctx, done); err != nil {
		t.Fatalf("status: %v", err)
	}
	// Never polled again after its phases ran out.
	abandoned := f.start(t, introTech())
	paused := f.start(t, introTech())
	if _, err := f.manager.Pause(ctx, paused); err != nil {
		t.Fatalf("pause: %v", err)
	}
	f.clock.Advance(2 * time.Hour)
	fresh := f.start(t, introTech())

	go f.manager.Run(ctx)

	deadline := time.After(time.Second)
	for _, id := range []string{done, abandoned, paused} {
		for {
			_, err := f.store.Get(ctx, id)
			if errors.Is(err, domain.ErrSessionNotFound) {
				break
			}
			select {
			case <-deadline:
				t.Fatalf("session %s was never purged", id)
			case <-time.After(5 * time.Millisecond):
			}
		}
	}

	sess, err := f.store.Get(ctx, fresh)
	if err != nil {
		t.Fatalf("fresh session should survive, got %v", err)
	}
	if sess.State != domain.StateRunning {
		t.Fatalf("expected fresh session running, got %s", sess.State)
	}

	cancel()
	f.manager.Wait()
	if got := f.history.count(); got != 2 {
		t.Fatalf("expected done and abandoned sessions archived, got %d records", got)
	}
	completions := 0
	for _, typ := range f.notifier.types() {
		if typ == domain.TransitionSessionCompleted {
			completions++
		}
	}
	if completions != 2 {
		t.Fatalf("expected 2 completion notifications, got %d", completions)
	}
}
