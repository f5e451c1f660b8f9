package services

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"cognita/internal/amqp"
	"cognita/internal/cache"
	"cognita/internal/core"
	"cognita/internal/log"
	"cognita/internal/metrics"
	"cognita/internal/storage"
)

var testNow = time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)

type fakePublisher struct {
	mu       sync.Mutex
	messages []*amqp.RecordChanged
	err      error
}

func (p *fakePublisher) PublishRecordChanged(_ context.Context, msg *amqp.RecordChanged) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	return p.err
}

func (p *fakePublisher) last() *amqp.RecordChanged {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.messages) == 0 {
		return nil
	}
	return p.messages[len(p.messages)-1]
}

type countingLoader struct {
	mu       sync.Mutex
	snapshot core.Snapshot
	calls    int
	err      error
}

func (l *countingLoader) LoadSnapshot(_ context.Context, _ uuid.UUID) (core.Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	return l.snapshot, l.err
}

func testLogger(buf *bytes.Buffer) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Output = buf
	cfg.Level = -8
	return log.New(cfg)
}

func newTestStack(t *testing.T) (*RecordService, *DashboardService, *fakePublisher) {
	t.Helper()
	var buf bytes.Buffer
	return newLoggedTestStack(t, &buf)
}

func newLoggedTestStack(t *testing.T, buf *bytes.Buffer) (*RecordService, *DashboardService, *fakePublisher) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "cognita.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	logger := testLogger(buf)
	dash := NewDashboardService(repo, cache.NewLocalStore[metrics.DashboardSummary](16, time.Minute), metrics.New(nil), logger)
	pub := &fakePublisher{}
	records := NewRecordService(repo, dash, pub, logger)
	records.now = func() time.Time { return testNow }
	return records, dash, pub
}

func TestDashboardService_SummaryCachesPerUser(t *testing.T) {
	loader := &countingLoader{snapshot: core.Snapshot{
		Sessions: []core.StudySession{{Subject: "Math", DurationMinutes: 30, SessionDate: testNow}},
	}}
	store := cache.NewLocalStore[metrics.DashboardSummary](16, time.Minute)
	svc := NewDashboardService(loader, store, metrics.New(nil), nil)
	user := uuid.New()

	first, err := svc.Summary(context.Background(), user, testNow)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if first.TodayStudyMinutes != 30 {
		t.Fatalf("today minutes = %d, want 30", first.TodayStudyMinutes)
	}
	if _, err := svc.Summary(context.Background(), user, testNow); err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cached second call, loader called %d times", loader.calls)
	}

	if _, err := svc.Summary(context.Background(), uuid.New(), testNow); err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("other users must not share the cache entry, loader called %d times", loader.calls)
	}

	if err := svc.Invalidate(context.Background(), user); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, err := svc.Summary(context.Background(), user, testNow); err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if loader.calls != 3 {
		t.Fatalf("invalidation should force a recompute, loader called %d times", loader.calls)
	}
}

func TestDashboardService_CachedSummaryExpiresAtMidnight(t *testing.T) {
	loader := &countingLoader{snapshot: core.Snapshot{
		Habits: []core.Habit{{Name: "Read", IsActive: true, Completions: core.NewCompletionSet("2025-03-12")}},
	}}
	store := cache.NewLocalStore[metrics.DashboardSummary](16, time.Hour)
	svc := NewDashboardService(loader, store, metrics.New(nil), nil)
	user := uuid.New()
	ctx := context.Background()

	before, err := svc.Summary(ctx, user, time.Date(2025, 3, 12, 23, 59, 50, 0, time.UTC))
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if before.Habits.RatePercent != 100 {
		t.Fatalf("habit rate before midnight = %d, want 100", before.Habits.RatePercent)
	}

	after, err := svc.Summary(ctx, user, time.Date(2025, 3, 13, 0, 0, 10, 0, time.UTC))
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if after.Today != "2025-03-13" || after.Habits.RatePercent != 0 {
		t.Fatalf("summary after midnight: today=%s habits=%+v", after.Today, after.Habits)
	}
	if loader.calls != 2 {
		t.Fatalf("a new day should recompute, loader called %d times", loader.calls)
	}

	cached, ok, _ := store.Get(ctx, CacheKey(user))
	if !ok || cached.Today != "2025-03-13" {
		t.Fatalf("cache should hold the new day, got %v %q", ok, cached.Today)
	}
}

// invalidatingLoader runs a write's invalidation while the snapshot is read.
type invalidatingLoader struct {
	svc   *DashboardService
	user  uuid.UUID
	calls int
}

func (l *invalidatingLoader) LoadSnapshot(ctx context.Context, _ uuid.UUID) (core.Snapshot, error) {
	l.calls++
	if l.calls == 1 {
		if err := l.svc.Invalidate(ctx, l.user); err != nil {
			return core.Snapshot{}, err
		}
	}
	return core.Snapshot{}, nil
}

func TestDashboardService_WriteDuringComputeIsNotCached(t *testing.T) {
	user := uuid.New()
	loader := &invalidatingLoader{user: user}
	store := cache.NewLocalStore[metrics.DashboardSummary](16, time.Hour)
	svc := NewDashboardService(loader, store, metrics.New(nil), nil)
	loader.svc = svc
	ctx := context.Background()

	if _, err := svc.Summary(ctx, user, testNow); err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if _, ok, _ := store.Get(ctx, CacheKey(user)); ok {
		t.Fatal("summary computed across an invalidation must not stay cached")
	}

	if _, err := svc.Summary(ctx, user, testNow); err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if _, ok, _ := store.Get(ctx, CacheKey(user)); !ok {
		t.Fatal("an undisturbed recompute should be cached")
	}
	if loader.calls != 2 {
		t.Fatalf("loader called %d times, want 2", loader.calls)
	}
}

func TestDashboardService_ComputeBypassesCache(t *testing.T) {
	loader := &countingLoader{}
	store := cache.NewLocalStore[metrics.DashboardSummary](16, time.Minute)
	svc := NewDashboardService(loader, store, metrics.New(nil), nil)
	user := uuid.New()

	if _, err := svc.Compute(context.Background(), user, testNow); err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if _, ok, _ := store.Get(context.Background(), CacheKey(user)); ok {
		t.Fatal("Compute must not populate the cache")
	}

	if _, err := svc.Refresh(context.Background(), user, testNow); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	cached, ok, _ := store.Get(context.Background(), CacheKey(user))
	if !ok || !cached.GeneratedAt.Equal(testNow) {
		t.Fatalf("Refresh should store the summary, got ok=%v %+v", ok, cached)
	}
}

func TestDashboardService_LoadError(t *testing.T) {
	loader := &countingLoader{err: errors.New("db down")}
	svc := NewDashboardService(loader, nil, metrics.New(nil), nil)
	_, err := svc.Summary(context.Background(), uuid.New(), testNow)
	if err == nil || !strings.Contains(err.Error(), "load snapshot: db down") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDashboardService_WarnsOnUnknownTransactionTypes(t *testing.T) {
	var buf bytes.Buffer
	loader := &countingLoader{snapshot: core.Snapshot{Transactions: []core.FinanceTransaction{
		{Type: core.Income, Amount: decimal.NewFromInt(100), Category: "Salary", TransactionDate: testNow},
		{Type: "refund", Amount: decimal.NewFromInt(40), Category: "Shop", TransactionDate: testNow},
	}}}
	svc := NewDashboardService(loader, nil, metrics.New(nil), testLogger(&buf))

	summary, err := svc.Compute(context.Background(), uuid.New(), testNow)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if !summary.Finance.Balance.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("balance = %s, want 100", summary.Finance.Balance)
	}
	if !strings.Contains(buf.String(), "unknown type") || !strings.Contains(buf.String(), "count=1") {
		t.Fatalf("expected warning with count, got %q", buf.String())
	}
}

func TestRecordService_CreateValidatesAndPublishes(t *testing.T) {
	records, _, pub := newTestStack(t)
	ctx := context.Background()
	user := uuid.New()

	_, err := records.CreateStudySession(ctx, user, core.StudySession{DurationMinutes: 10, SessionDate: testNow})
	if !errors.Is(err, core.ErrEmptySubject) {
		t.Fatalf("expected ErrEmptySubject, got %v", err)
	}
	if pub.last() != nil {
		t.Fatal("invalid records must not be announced")
	}

	s, err := records.CreateStudySession(ctx, user, core.StudySession{Subject: "Math", DurationMinutes: 25, SessionDate: testNow})
	if err != nil {
		t.Fatalf("CreateStudySession: %v", err)
	}
	if s.ID == uuid.Nil || s.UserID != user {
		t.Fatalf("expected assigned id and owner, got %+v", s)
	}
	msg := pub.last()
	if msg == nil || msg.Entity != amqp.EntityStudySession || msg.Op != amqp.OpCreate || msg.ID != s.ID || msg.UserID != user {
		t.Fatalf("unexpected message %+v", msg)
	}

	list, err := records.ListStudySessions(ctx, user)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListStudySessions = %v, %v", list, err)
	}
}

func TestRecordService_WritesInvalidateDashboard(t *testing.T) {
	records, dash, _ := newTestStack(t)
	ctx := context.Background()
	user := uuid.New()

	before, err := dash.Summary(ctx, user, testNow)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if before.TotalStudyMinutes != 0 {
		t.Fatalf("expected empty dashboard, got %d", before.TotalStudyMinutes)
	}

	if _, err := records.CreateStudySession(ctx, user, core.StudySession{Subject: "Math", DurationMinutes: 40, SessionDate: testNow}); err != nil {
		t.Fatalf("CreateStudySession: %v", err)
	}
	after, err := dash.Summary(ctx, user, testNow)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if after.TotalStudyMinutes != 40 {
		t.Fatalf("stale dashboard after write: %d", after.TotalStudyMinutes)
	}
}

func TestRecordService_PublishFailureDoesNotFailWrite(t *testing.T) {
	var buf bytes.Buffer
	records, _, pub := newLoggedTestStack(t, &buf)
	pub.err = errors.New("circuit breaker is open")

	tx, err := records.CreateTransaction(context.Background(), uuid.New(), core.FinanceTransaction{
		Type: core.Expense, Amount: decimal.RequireFromString("9.99"), Category: "Food", TransactionDate: testNow,
	})
	if err != nil {
		t.Fatalf("CreateTransaction should succeed, got %v", err)
	}
	if tx.ID == uuid.Nil {
		t.Fatal("expected id")
	}
	out := buf.String()
	if !strings.Contains(out, "Failed to publish record change") || !strings.Contains(out, "circuit breaker is open") ||
		!strings.Contains(out, "component=amqp") || !strings.Contains(out, "record_id="+tx.ID.String()) {
		t.Fatalf("publish failure not logged with record context:\n%s", out)
	}
}

func TestRecordService_HabitDefaultsAndToggle(t *testing.T) {
	records, _, pub := newTestStack(t)
	ctx := context.Background()
	user := uuid.New()

	h, err := records.CreateHabit(ctx, user, core.Habit{Name: "Read", IsActive: true})
	if err != nil {
		t.Fatalf("CreateHabit: %v", err)
	}
	if h.TargetFrequency != core.Daily || h.Color != DefaultHabitColor {
		t.Fatalf("defaults not applied: %+v", h)
	}

	if _, err := records.ToggleHabitCompletion(ctx, user, h.ID, "12/03/2025"); !errors.Is(err, core.ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}

	done, err := records.ToggleHabitCompletion(ctx, user, h.ID, "2025-03-12")
	if err != nil || !done {
		t.Fatalf("first toggle = %v, %v", done, err)
	}
	if msg := pub.last(); msg.Op != amqp.OpToggle || msg.Entity != amqp.EntityHabit {
		t.Fatalf("unexpected message %+v", msg)
	}
	done, err = records.ToggleHabitCompletion(ctx, user, h.ID, "2025-03-12")
	if err != nil || done {
		t.Fatalf("second toggle = %v, %v", done, err)
	}

	_, err = records.ToggleHabitCompletion(ctx, uuid.New(), h.ID, "2025-03-12")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("toggle by another user should be not found, got %v", err)
	}
}

func TestRecordService_MoodUpsertReportsOperation(t *testing.T) {
	records, _, pub := newTestStack(t)
	ctx := context.Background()
	user := uuid.New()

	first, err := records.UpsertMoodEntry(ctx, user, core.MoodEntry{MoodRating: 3, EnergyLevel: 3, StressLevel: 3, EntryDate: "2025-03-12"})
	if err != nil {
		t.Fatalf("UpsertMoodEntry: %v", err)
	}
	if pub.last().Op != amqp.OpCreate {
		t.Fatalf("first upsert should be a create, got %s", pub.last().Op)
	}

	second, err := records.UpsertMoodEntry(ctx, user, core.MoodEntry{MoodRating: 5, EnergyLevel: 4, StressLevel: 1, EntryDate: "2025-03-12"})
	if err != nil {
		t.Fatalf("UpsertMoodEntry: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("same-day upsert should keep id %s, got %s", first.ID, second.ID)
	}
	if pub.last().Op != amqp.OpUpdate {
		t.Fatalf("second upsert should be an update, got %s", pub.last().Op)
	}

	if _, err := records.UpsertMoodEntry(ctx, user, core.MoodEntry{MoodRating: 6, EnergyLevel: 3, StressLevel: 3, EntryDate: "2025-03-12"}); !errors.Is(err, core.ErrInvalidRating) {
		t.Fatalf("expected ErrInvalidRating, got %v", err)
	}
}

func TestRecordService_TaskCompletionStamp(t *testing.T) {
	records, _, _ := newTestStack(t)
	ctx := context.Background()
	user := uuid.New()

	task, err := records.CreateTask(ctx, user, core.Task{Title: "Write report"})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if task.Status != core.StatusPending || task.Priority != core.PriorityMedium || task.CompletedAt != nil {
		t.Fatalf("unexpected defaults %+v", task)
	}

	task.Status = core.StatusCompleted
	task, err = records.UpdateTask(ctx, user, task)
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if task.CompletedAt == nil || !task.CompletedAt.Equal(testNow) {
		t.Fatalf("completion not stamped: %+v", task.CompletedAt)
	}

	records.now = func() time.Time { return testNow.Add(time.Hour) }
	task.Title = "Write final report"
	task, err = records.UpdateTask(ctx, user, task)
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if !task.CompletedAt.Equal(testNow) {
		t.Fatalf("completion stamp should be kept, got %v", task.CompletedAt)
	}

	task.Status = core.StatusInProgress
	task, err = records.UpdateTask(ctx, user, task)
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if task.CompletedAt != nil {
		t.Fatalf("completion stamp should be cleared, got %v", task.CompletedAt)
	}

	stored, err := records.GetTask(ctx, user, task.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if stored.Title != "Write final report" || stored.CompletedAt != nil {
		t.Fatalf("unexpected stored task %+v", stored)
	}

	missing := core.Task{ID: uuid.New(), Title: "ghost", Priority: core.PriorityLow, Status: core.StatusPending}
	if _, err := records.UpdateTask(ctx, user, missing); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRecordService_DeleteNotFound(t *testing.T) {
	records, _, pub := newTestStack(t)
	err := records.DeleteTask(context.Background(), uuid.New(), uuid.New())
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if pub.last() != nil {
		t.Fatal("failed deletes must not be announced")
	}
}
