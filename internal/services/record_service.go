package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cognita/internal/amqp"
	"cognita/internal/core"
	"cognita/internal/log"
)

// DefaultHabitColor is used when a habit is created without a color.
const DefaultHabitColor = "#3b82f6"

// RecordStore persists a user's productivity records.
type RecordStore interface {
	ListStudySessions(ctx context.Context, userID uuid.UUID) ([]core.StudySession, error)
	CreateStudySession(ctx context.Context, s core.StudySession) error
	DeleteStudySession(ctx context.Context, userID, id uuid.UUID) error

	ListHabits(ctx context.Context, userID uuid.UUID) ([]core.Habit, error)
	CreateHabit(ctx context.Context, h core.Habit) error
	UpdateHabit(ctx context.Context, h core.Habit) error
	DeleteHabit(ctx context.Context, userID, id uuid.UUID) error
	ToggleHabitCompletion(ctx context.Context, userID, habitID uuid.UUID, day string) (bool, error)

	ListTransactions(ctx context.Context, userID uuid.UUID) ([]core.FinanceTransaction, error)
	GetTransaction(ctx context.Context, userID, id uuid.UUID) (core.FinanceTransaction, error)
	CreateTransaction(ctx context.Context, t core.FinanceTransaction) error
	DeleteTransaction(ctx context.Context, userID, id uuid.UUID) error

	ListMoodEntries(ctx context.Context, userID uuid.UUID) ([]core.MoodEntry, error)
	UpsertMoodEntry(ctx context.Context, e core.MoodEntry) (core.MoodEntry, error)
	DeleteMoodEntry(ctx context.Context, userID, id uuid.UUID) error

	ListTasks(ctx context.Context, userID uuid.UUID) ([]core.Task, error)
	GetTask(ctx context.Context, userID, id uuid.UUID) (core.Task, error)
	CreateTask(ctx context.Context, t core.Task) error
	UpdateTask(ctx context.Context, t core.Task) error
	DeleteTask(ctx context.Context, userID, id uuid.UUID) error
}

// Publisher announces record changes to other processes.
type Publisher interface {
	PublishRecordChanged(ctx context.Context, msg *amqp.RecordChanged) error
}

// Invalidator drops derived data that a record change made stale.
type Invalidator interface {
	Invalidate(ctx context.Context, userID uuid.UUID) error
}

// RecordService orchestrates record writes across storage, the dashboard
// cache and AMQP.
type RecordService struct {
	store       RecordStore
	invalidator Invalidator
	publisher   Publisher
	logger      *log.Logger
	events      *log.StructuredLogger
	now         func() time.Time
}

// NewRecordService creates a record service. invalidator and publisher are
// optional; pass a nil interface, not a typed nil pointer, to disable them.
func NewRecordService(store RecordStore, invalidator Invalidator, publisher Publisher, logger *log.Logger) *RecordService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &RecordService{
		store:       store,
		invalidator: invalidator,
		publisher:   publisher,
		logger:      logger.WithComponent(log.ComponentRecords),
		events:      log.NewStructuredLogger(logger),
		now:         time.Now,
	}
}

// Study sessions

func (s *RecordService) ListStudySessions(ctx context.Context, userID uuid.UUID) ([]core.StudySession, error) {
	return s.store.ListStudySessions(ctx, userID)
}

func (s *RecordService) CreateStudySession(ctx context.Context, userID uuid.UUID, session core.StudySession) (core.StudySession, error) {
	session.ID = uuid.New()
	session.UserID = userID
	if err := session.Validate(); err != nil {
		return session, err
	}
	if err := s.store.CreateStudySession(ctx, session); err != nil {
		return session, fmt.Errorf("save study session: %w", err)
	}
	s.changed(ctx, amqp.EntityStudySession, amqp.OpCreate, userID, session.ID)
	return session, nil
}

func (s *RecordService) DeleteStudySession(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.store.DeleteStudySession(ctx, userID, id); err != nil {
		return err
	}
	s.changed(ctx, amqp.EntityStudySession, amqp.OpDelete, userID, id)
	return nil
}

// Habits

func (s *RecordService) ListHabits(ctx context.Context, userID uuid.UUID) ([]core.Habit, error) {
	return s.store.ListHabits(ctx, userID)
}

func (s *RecordService) CreateHabit(ctx context.Context, userID uuid.UUID, h core.Habit) (core.Habit, error) {
	h.ID = uuid.New()
	h.UserID = userID
	if h.TargetFrequency == "" {
		h.TargetFrequency = core.Daily
	}
	if h.Color == "" {
		h.Color = DefaultHabitColor
	}
	if h.Completions == nil {
		h.Completions = core.NewCompletionSet()
	}
	if err := h.Validate(); err != nil {
		return h, err
	}
	if err := s.store.CreateHabit(ctx, h); err != nil {
		return h, fmt.Errorf("save habit: %w", err)
	}
	s.changed(ctx, amqp.EntityHabit, amqp.OpCreate, userID, h.ID)
	return h, nil
}

// UpdateHabit overwrites the attributes of an existing habit. Its
// completions are not touched.
func (s *RecordService) UpdateHabit(ctx context.Context, userID uuid.UUID, h core.Habit) (core.Habit, error) {
	h.UserID = userID
	if h.Color == "" {
		h.Color = DefaultHabitColor
	}
	if err := h.Validate(); err != nil {
		return h, err
	}
	if err := s.store.UpdateHabit(ctx, h); err != nil {
		return h, err
	}
	s.changed(ctx, amqp.EntityHabit, amqp.OpUpdate, userID, h.ID)
	return h, nil
}

func (s *RecordService) DeleteHabit(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.store.DeleteHabit(ctx, userID, id); err != nil {
		return err
	}
	s.changed(ctx, amqp.EntityHabit, amqp.OpDelete, userID, id)
	return nil
}

// ToggleHabitCompletion flips the habit's completion on day (YYYY-MM-DD) and
// reports whether it is completed afterwards.
func (s *RecordService) ToggleHabitCompletion(ctx context.Context, userID, habitID uuid.UUID, day string) (bool, error) {
	if _, err := core.ParseDateKey(day); err != nil {
		return false, core.ErrInvalidDate
	}
	completed, err := s.store.ToggleHabitCompletion(ctx, userID, habitID, day)
	if err != nil {
		return false, err
	}
	s.changed(ctx, amqp.EntityHabit, amqp.OpToggle, userID, habitID)
	return completed, nil
}

// Finance transactions

func (s *RecordService) ListTransactions(ctx context.Context, userID uuid.UUID) ([]core.FinanceTransaction, error) {
	return s.store.ListTransactions(ctx, userID)
}

func (s *RecordService) GetTransaction(ctx context.Context, userID, id uuid.UUID) (core.FinanceTransaction, error) {
	return s.store.GetTransaction(ctx, userID, id)
}

func (s *RecordService) CreateTransaction(ctx context.Context, userID uuid.UUID, t core.FinanceTransaction) (core.FinanceTransaction, error) {
	t.ID = uuid.New()
	t.UserID = userID
	if err := t.Validate(); err != nil {
		return t, err
	}
	if err := s.store.CreateTransaction(ctx, t); err != nil {
		return t, fmt.Errorf("save transaction: %w", err)
	}
	s.changed(ctx, amqp.EntityFinance, amqp.OpCreate, userID, t.ID)
	return t, nil
}

func (s *RecordService) DeleteTransaction(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.store.DeleteTransaction(ctx, userID, id); err != nil {
		return err
	}
	s.changed(ctx, amqp.EntityFinance, amqp.OpDelete, userID, id)
	return nil
}

// Mood

func (s *RecordService) ListMoodEntries(ctx context.Context, userID uuid.UUID) ([]core.MoodEntry, error) {
	return s.store.ListMoodEntries(ctx, userID)
}

// UpsertMoodEntry stores the entry for its day, replacing an earlier entry
// of the same day.
func (s *RecordService) UpsertMoodEntry(ctx context.Context, userID uuid.UUID, e core.MoodEntry) (core.MoodEntry, error) {
	e.ID = uuid.New()
	e.UserID = userID
	if err := e.Validate(); err != nil {
		return e, err
	}
	saved, err := s.store.UpsertMoodEntry(ctx, e)
	if err != nil {
		return e, fmt.Errorf("save mood entry: %w", err)
	}
	op := amqp.OpUpdate
	if saved.ID == e.ID {
		op = amqp.OpCreate
	}
	s.changed(ctx, amqp.EntityMood, op, userID, saved.ID)
	return saved, nil
}

func (s *RecordService) DeleteMoodEntry(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.store.DeleteMoodEntry(ctx, userID, id); err != nil {
		return err
	}
	s.changed(ctx, amqp.EntityMood, amqp.OpDelete, userID, id)
	return nil
}

// Tasks

func (s *RecordService) ListTasks(ctx context.Context, userID uuid.UUID) ([]core.Task, error) {
	return s.store.ListTasks(ctx, userID)
}

func (s *RecordService) GetTask(ctx context.Context, userID, id uuid.UUID) (core.Task, error) {
	return s.store.GetTask(ctx, userID, id)
}

func (s *RecordService) CreateTask(ctx context.Context, userID uuid.UUID, t core.Task) (core.Task, error) {
	t.ID = uuid.New()
	t.UserID = userID
	if t.Priority == "" {
		t.Priority = core.PriorityMedium
	}
	if t.Status == "" {
		t.Status = core.StatusPending
	}
	t.CompletedAt = nil
	if t.Status == core.StatusCompleted {
		now := s.now().UTC()
		t.CompletedAt = &now
	}
	if err := t.Validate(); err != nil {
		return t, err
	}
	if err := s.store.CreateTask(ctx, t); err != nil {
		return t, fmt.Errorf("save task: %w", err)
	}
	s.changed(ctx, amqp.EntityTask, amqp.OpCreate, userID, t.ID)
	return t, nil
}

// UpdateTask overwrites an existing task. CompletedAt is stamped when the
// task moves to completed, kept while it stays completed and cleared when it
// leaves that status.
func (s *RecordService) UpdateTask(ctx context.Context, userID uuid.UUID, t core.Task) (core.Task, error) {
	t.UserID = userID
	if err := t.Validate(); err != nil {
		return t, err
	}
	current, err := s.store.GetTask(ctx, userID, t.ID)
	if err != nil {
		return t, err
	}
	switch {
	case t.Status != core.StatusCompleted:
		t.CompletedAt = nil
	case current.Status == core.StatusCompleted && current.CompletedAt != nil:
		t.CompletedAt = current.CompletedAt
	default:
		now := s.now().UTC()
		t.CompletedAt = &now
	}
	if err := s.store.UpdateTask(ctx, t); err != nil {
		return t, err
	}
	s.changed(ctx, amqp.EntityTask, amqp.OpUpdate, userID, t.ID)
	return t, nil
}

func (s *RecordService) DeleteTask(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.store.DeleteTask(ctx, userID, id); err != nil {
		return err
	}
	s.changed(ctx, amqp.EntityTask, amqp.OpDelete, userID, id)
	return nil
}

// changed runs the side effects of a successful write. None of them fail the
// request: the record is already stored.
func (s *RecordService) changed(ctx context.Context, entity, op string, userID, id uuid.UUID) {
	s.events.LogRecordChanged(ctx, op, userID.String(), entity, id.String())

	if s.invalidator != nil {
		if err := s.invalidator.Invalidate(ctx, userID); err != nil {
			s.logger.WarnContext(ctx, "Failed to invalidate dashboard",
				log.FieldUserID, userID.String(), log.FieldError, err.Error())
		}
	}

	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishRecordChanged(ctx, amqp.NewRecordChanged(entity, op, id, userID)); err != nil {
		s.events.LogError(ctx, "Failed to publish record change", err, log.ComponentAMQP, op,
			log.NewFields().WithRecord(userID.String(), entity, id.String()))
	}
}
