package core

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"

	Daily  Frequency = "daily"
	Weekly Frequency = "weekly"

	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"

	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
)

type (
	TransactionType string
	Frequency       string
	Priority        string
	TaskStatus      string

	StudySession struct {
		ID              uuid.UUID `json:"id"`
		UserID          uuid.UUID `json:"user_id"`
		Subject         string    `json:"subject"`
		DurationMinutes int       `json:"duration_minutes"`
		Notes           string    `json:"notes,omitempty"`
		SessionDate     time.Time `json:"session_date"`
	}

	Habit struct {
		ID              uuid.UUID     `json:"id"`
		UserID          uuid.UUID     `json:"user_id"`
		Name            string        `json:"name"`
		Description     string        `json:"description,omitempty"`
		TargetFrequency Frequency     `json:"target_frequency"`
		Color           string        `json:"color"`
		IsActive        bool          `json:"is_active"`
		Completions     CompletionSet `json:"completions"`
	}

	FinanceTransaction struct {
		ID              uuid.UUID       `json:"id"`
		UserID          uuid.UUID       `json:"user_id"`
		Type            TransactionType `json:"type"`
		Amount          decimal.Decimal `json:"amount"`
		Category        string          `json:"category"`
		Description     string          `json:"description"`
		TransactionDate time.Time       `json:"transaction_date"`
	}

	MoodEntry struct {
		ID          uuid.UUID `json:"id"`
		UserID      uuid.UUID `json:"user_id"`
		MoodRating  int       `json:"mood_rating"`
		EnergyLevel int       `json:"energy_level"`
		StressLevel int       `json:"stress_level"`
		Notes       string    `json:"notes,omitempty"`
		EntryDate   string    `json:"entry_date"` // YYYY-MM-DD
	}

	Task struct {
		ID               uuid.UUID  `json:"id"`
		UserID           uuid.UUID  `json:"user_id"`
		Title            string     `json:"title"`
		Description      string     `json:"description,omitempty"`
		DueDate          *time.Time `json:"due_date,omitempty"`
		Priority         Priority   `json:"priority"`
		Status           TaskStatus `json:"status"`
		EstimatedMinutes *int       `json:"estimated_minutes,omitempty"`
		CompletedAt      *time.Time `json:"completed_at,omitempty"`
	}

	// Snapshot is the set of collections the dashboard is computed from.
	// Callers must not mutate it while it is being aggregated.
	Snapshot struct {
		Sessions     []StudySession
		Habits       []Habit
		Transactions []FinanceTransaction
		Moods        []MoodEntry
		Tasks        []Task
	}
)

var (
	ErrEmptySubject       = errors.New("empty subject")
	ErrInvalidDuration    = errors.New("invalid duration")
	ErrMissingDate        = errors.New("missing date")
	ErrInvalidDate        = errors.New("invalid date")
	ErrEmptyName          = errors.New("empty name")
	ErrInvalidFrequency   = errors.New("invalid target frequency")
	ErrInvalidType        = errors.New("invalid transaction type")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEmptyCategory      = errors.New("empty category")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
	ErrInvalidRating      = errors.New("rating must be between 1 and 5")
	ErrEmptyTitle         = errors.New("empty title")
	ErrInvalidPriority    = errors.New("invalid priority")
	ErrInvalidStatus      = errors.New("invalid status")
)

func (t TransactionType) Valid() bool { return t == Income || t == Expense }

func (f Frequency) Valid() bool { return f == Daily || f == Weekly }

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

func (s TaskStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

func (s StudySession) Validate() error {
	if strings.TrimSpace(s.Subject) == "" {
		return ErrEmptySubject
	}
	if s.DurationMinutes < 0 {
		return ErrInvalidDuration
	}
	if s.SessionDate.IsZero() {
		return ErrMissingDate
	}
	return nil
}

func (h Habit) Validate() error {
	if strings.TrimSpace(h.Name) == "" {
		return ErrEmptyName
	}
	if !h.TargetFrequency.Valid() {
		return ErrInvalidFrequency
	}
	for key := range h.Completions {
		if _, err := ParseDateKey(key); err != nil {
			return ErrInvalidDate
		}
	}
	return nil
}

func (t FinanceTransaction) Validate() error {
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if t.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if len(t.Description) > 200 {
		return ErrDescriptionTooLong
	}
	if t.TransactionDate.IsZero() {
		return ErrMissingDate
	}
	return nil
}

func (m MoodEntry) Validate() error {
	for _, r := range []int{m.MoodRating, m.EnergyLevel, m.StressLevel} {
		if r < 1 || r > 5 {
			return ErrInvalidRating
		}
	}
	if _, err := ParseDateKey(m.EntryDate); err != nil {
		return ErrInvalidDate
	}
	return nil
}

func (t Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return ErrEmptyTitle
	}
	if !t.Priority.Valid() {
		return ErrInvalidPriority
	}
	if !t.Status.Valid() {
		return ErrInvalidStatus
	}
	if t.EstimatedMinutes != nil && *t.EstimatedMinutes < 0 {
		return ErrInvalidDuration
	}
	return nil
}

// Clone returns a copy of t that shares no pointers with it.
func (t Task) Clone() Task {
	c := t
	if t.DueDate != nil {
		d := *t.DueDate
		c.DueDate = &d
	}
	if t.EstimatedMinutes != nil {
		m := *t.EstimatedMinutes
		c.EstimatedMinutes = &m
	}
	if t.CompletedAt != nil {
		d := *t.CompletedAt
		c.CompletedAt = &d
	}
	return c
}

var validationErrors = []error{
	ErrEmptySubject, ErrInvalidDuration, ErrMissingDate, ErrInvalidDate,
	ErrEmptyName, ErrInvalidFrequency, ErrInvalidType, ErrInvalidAmount,
	ErrEmptyCategory, ErrDescriptionTooLong, ErrInvalidRating, ErrEmptyTitle,
	ErrInvalidPriority, ErrInvalidStatus,
}

// IsValidation reports whether err is one of the record validation errors.
func IsValidation(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
