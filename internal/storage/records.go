package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"cognita/internal/core"
)

// Study sessions

func (r *Repository) ListStudySessions(ctx context.Context, userID uuid.UUID) ([]core.StudySession, error) {
	rows, err := r.query(ctx, `
		SELECT id, user_id, subject, duration_minutes, notes, session_date
		FROM study_sessions WHERE user_id = ?
		ORDER BY session_date DESC, created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list study sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]core.StudySession, 0)
	for rows.Next() {
		var (
			s    core.StudySession
			date dbTime
		)
		if err := rows.Scan(&s.ID, &s.UserID, &s.Subject, &s.DurationMinutes, &s.Notes, &date); err != nil {
			return nil, fmt.Errorf("scan study session: %w", err)
		}
		s.SessionDate = date.Time
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *Repository) CreateStudySession(ctx context.Context, s core.StudySession) error {
	_, err := r.exec(ctx, `
		INSERT INTO study_sessions (id, user_id, subject, duration_minutes, notes, session_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.Subject, s.DurationMinutes, s.Notes, s.SessionDate.UTC(), r.stamp())
	if err != nil {
		return fmt.Errorf("create study session: %w", err)
	}
	slog.InfoContext(ctx, "Study session saved", "component", "storage", "id", s.ID, "minutes", s.DurationMinutes)
	return nil
}

func (r *Repository) DeleteStudySession(ctx context.Context, userID, id uuid.UUID) error {
	if err := r.execOne(ctx, `DELETE FROM study_sessions WHERE id = ? AND user_id = ?`, id, userID); err != nil {
		return fmt.Errorf("delete study session %s: %w", id, err)
	}
	return nil
}

// Habits

func (r *Repository) ListHabits(ctx context.Context, userID uuid.UUID) ([]core.Habit, error) {
	rows, err := r.query(ctx, `
		SELECT id, user_id, name, description, target_frequency, color, is_active
		FROM habits WHERE user_id = ?
		ORDER BY created_at ASC, id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}
	defer rows.Close()

	habits := make([]core.Habit, 0)
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var h core.Habit
		if err := rows.Scan(&h.ID, &h.UserID, &h.Name, &h.Description, &h.TargetFrequency, &h.Color, &h.IsActive); err != nil {
			return nil, fmt.Errorf("scan habit: %w", err)
		}
		h.Completions = core.NewCompletionSet()
		index[h.ID] = len(habits)
		habits = append(habits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}
	rows.Close()

	crows, err := r.query(ctx, `
		SELECT c.habit_id, c.completed_date
		FROM habit_completions c JOIN habits h ON h.id = c.habit_id
		WHERE h.user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("list habit completions: %w", err)
	}
	defer crows.Close()
	for crows.Next() {
		var (
			habitID uuid.UUID
			day     dateKey
		)
		if err := crows.Scan(&habitID, &day); err != nil {
			return nil, fmt.Errorf("scan habit completion: %w", err)
		}
		if i, ok := index[habitID]; ok {
			habits[i].Completions[string(day)] = struct{}{}
		}
	}
	return habits, crows.Err()
}

func (r *Repository) CreateHabit(ctx context.Context, h core.Habit) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, r.rebind(`
		INSERT INTO habits (id, user_id, name, description, target_frequency, color, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		h.ID, h.UserID, h.Name, h.Description, h.TargetFrequency, h.Color, h.IsActive, r.stamp())
	if err != nil {
		return fmt.Errorf("create habit: %w", err)
	}
	for _, day := range h.Completions.Keys() {
		if _, err := tx.ExecContext(ctx, r.rebind(`INSERT INTO habit_completions (habit_id, completed_date) VALUES (?, ?)`), h.ID, day); err != nil {
			return fmt.Errorf("create habit completion: %w", err)
		}
	}
	return tx.Commit()
}

// UpdateHabit overwrites the habit's attributes. Completions are managed by
// ToggleHabitCompletion and left untouched.
func (r *Repository) UpdateHabit(ctx context.Context, h core.Habit) error {
	err := r.execOne(ctx, `
		UPDATE habits SET name = ?, description = ?, target_frequency = ?, color = ?, is_active = ?
		WHERE id = ? AND user_id = ?`,
		h.Name, h.Description, h.TargetFrequency, h.Color, h.IsActive, h.ID, h.UserID)
	if err != nil {
		return fmt.Errorf("update habit %s: %w", h.ID, err)
	}
	return nil
}

func (r *Repository) DeleteHabit(ctx context.Context, userID, id uuid.UUID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, r.rebind(`
		DELETE FROM habit_completions
		WHERE habit_id IN (SELECT id FROM habits WHERE id = ? AND user_id = ?)`), id, userID); err != nil {
		return fmt.Errorf("delete habit completions: %w", err)
	}
	res, err := tx.ExecContext(ctx, r.rebind(`DELETE FROM habits WHERE id = ? AND user_id = ?`), id, userID)
	if err != nil {
		return fmt.Errorf("delete habit %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("delete habit %s: %w", id, err)
	} else if n == 0 {
		return fmt.Errorf("delete habit %s: %w", id, ErrNotFound)
	}
	return tx.Commit()
}

// ToggleHabitCompletion marks the habit done on day if it was not, and undoes
// it otherwise. It reports whether the habit is completed on day afterwards.
func (r *Repository) ToggleHabitCompletion(ctx context.Context, userID, habitID uuid.UUID, day string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var owner uuid.UUID
	err = tx.QueryRowContext(ctx, r.rebind(`SELECT user_id FROM habits WHERE id = ?`), habitID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && owner != userID) {
		return false, fmt.Errorf("toggle habit %s: %w", habitID, ErrNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("toggle habit %s: %w", habitID, err)
	}

	res, err := tx.ExecContext(ctx, r.rebind(`DELETE FROM habit_completions WHERE habit_id = ? AND completed_date = ?`), habitID, day)
	if err != nil {
		return false, fmt.Errorf("remove habit completion: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove habit completion: %w", err)
	}
	completed := removed == 0
	if completed {
		if _, err := tx.ExecContext(ctx, r.rebind(`INSERT INTO habit_completions (habit_id, completed_date) VALUES (?, ?)`), habitID, day); err != nil {
			return false, fmt.Errorf("add habit completion: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit habit toggle: %w", err)
	}
	return completed, nil
}

// Finance transactions

const transactionColumns = `id, user_id, type, amount, category, description, transaction_date`

func scanTransaction(sc interface{ Scan(...any) error }) (core.FinanceTransaction, error) {
	var (
		t    core.FinanceTransaction
		date dbTime
	)
	if err := sc.Scan(&t.ID, &t.UserID, &t.Type, &t.Amount, &t.Category, &t.Description, &date); err != nil {
		return t, err
	}
	t.TransactionDate = date.Time
	return t, nil
}

func (r *Repository) ListTransactions(ctx context.Context, userID uuid.UUID) ([]core.FinanceTransaction, error) {
	rows, err := r.query(ctx, `
		SELECT `+transactionColumns+`
		FROM finance_transactions WHERE user_id = ?
		ORDER BY transaction_date DESC, created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	transactions := make([]core.FinanceTransaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

func (r *Repository) GetTransaction(ctx context.Context, userID, id uuid.UUID) (core.FinanceTransaction, error) {
	t, err := scanTransaction(r.queryRow(ctx, `
		SELECT `+transactionColumns+` FROM finance_transactions WHERE id = ? AND user_id = ?`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return t, fmt.Errorf("get transaction %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return t, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return t, nil
}

func (r *Repository) CreateTransaction(ctx context.Context, t core.FinanceTransaction) error {
	_, err := r.exec(ctx, `
		INSERT INTO finance_transactions (id, user_id, type, amount, category, description, transaction_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Type, t.Amount.StringFixed(2), t.Category, t.Description, t.TransactionDate.UTC(), r.stamp())
	if err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	slog.InfoContext(ctx, "Transaction saved", "component", "storage", "id", t.ID, "type", t.Type, "amount", t.Amount.StringFixed(2))
	return nil
}

func (r *Repository) DeleteTransaction(ctx context.Context, userID, id uuid.UUID) error {
	if err := r.execOne(ctx, `DELETE FROM finance_transactions WHERE id = ? AND user_id = ?`, id, userID); err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	return nil
}

// Mood entries

func (r *Repository) ListMoodEntries(ctx context.Context, userID uuid.UUID) ([]core.MoodEntry, error) {
	rows, err := r.query(ctx, `
		SELECT id, user_id, mood_rating, energy_level, stress_level, notes, entry_date
		FROM mood_entries WHERE user_id = ?
		ORDER BY entry_date DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list mood entries: %w", err)
	}
	defer rows.Close()

	entries := make([]core.MoodEntry, 0)
	for rows.Next() {
		var (
			e   core.MoodEntry
			day dateKey
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.MoodRating, &e.EnergyLevel, &e.StressLevel, &e.Notes, &day); err != nil {
			return nil, fmt.Errorf("scan mood entry: %w", err)
		}
		e.EntryDate = string(day)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// UpsertMoodEntry stores e, replacing any entry the user already logged for
// the same day. The returned entry carries the surviving id.
func (r *Repository) UpsertMoodEntry(ctx context.Context, e core.MoodEntry) (core.MoodEntry, error) {
	err := r.queryRow(ctx, `
		INSERT INTO mood_entries (id, user_id, mood_rating, energy_level, stress_level, notes, entry_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, entry_date) DO UPDATE SET
			mood_rating = excluded.mood_rating,
			energy_level = excluded.energy_level,
			stress_level = excluded.stress_level,
			notes = excluded.notes
		RETURNING id`,
		e.ID, e.UserID, e.MoodRating, e.EnergyLevel, e.StressLevel, e.Notes, e.EntryDate, r.stamp()).Scan(&e.ID)
	if err != nil {
		return e, fmt.Errorf("upsert mood entry: %w", err)
	}
	return e, nil
}

func (r *Repository) DeleteMoodEntry(ctx context.Context, userID, id uuid.UUID) error {
	if err := r.execOne(ctx, `DELETE FROM mood_entries WHERE id = ? AND user_id = ?`, id, userID); err != nil {
		return fmt.Errorf("delete mood entry %s: %w", id, err)
	}
	return nil
}

// Tasks

const taskColumns = `id, user_id, title, description, due_date, priority, status, estimated_minutes, completed_at`

func scanTask(sc interface{ Scan(...any) error }) (core.Task, error) {
	var (
		t         core.Task
		due, done dbTime
		estimate  sql.NullInt64
	)
	if err := sc.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &due, &t.Priority, &t.Status, &estimate, &done); err != nil {
		return t, err
	}
	t.DueDate = due.ptr()
	t.CompletedAt = done.ptr()
	if estimate.Valid {
		m := int(estimate.Int64)
		t.EstimatedMinutes = &m
	}
	return t, nil
}

func (r *Repository) ListTasks(ctx context.Context, userID uuid.UUID) ([]core.Task, error) {
	rows, err := r.query(ctx, `
		SELECT `+taskColumns+`
		FROM tasks WHERE user_id = ?
		ORDER BY created_at DESC, id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]core.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (r *Repository) GetTask(ctx context.Context, userID, id uuid.UUID) (core.Task, error) {
	t, err := scanTask(r.queryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ? AND user_id = ?`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return t, fmt.Errorf("get task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return t, fmt.Errorf("get task %s: %w", id, err)
	}
	return t, nil
}

func (r *Repository) CreateTask(ctx context.Context, t core.Task) error {
	_, err := r.exec(ctx, `
		INSERT INTO tasks (id, user_id, title, description, due_date, priority, status, estimated_minutes, completed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Title, t.Description, nullableTime(t.DueDate), t.Priority, t.Status,
		nullableInt(t.EstimatedMinutes), nullableTime(t.CompletedAt), r.stamp())
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (r *Repository) UpdateTask(ctx context.Context, t core.Task) error {
	err := r.execOne(ctx, `
		UPDATE tasks SET title = ?, description = ?, due_date = ?, priority = ?, status = ?,
			estimated_minutes = ?, completed_at = ?
		WHERE id = ? AND user_id = ?`,
		t.Title, t.Description, nullableTime(t.DueDate), t.Priority, t.Status,
		nullableInt(t.EstimatedMinutes), nullableTime(t.CompletedAt), t.ID, t.UserID)
	if err != nil {
		return fmt.Errorf("update task %s: %w", t.ID, err)
	}
	return nil
}

func (r *Repository) DeleteTask(ctx context.Context, userID, id uuid.UUID) error {
	if err := r.execOne(ctx, `DELETE FROM tasks WHERE id = ? AND user_id = ?`, id, userID); err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	return nil
}
