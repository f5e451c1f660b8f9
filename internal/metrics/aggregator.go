// Package metrics derives the dashboard summary from raw productivity records.
//
// Everything here is pure: no I/O, no clock reads, no mutation of the inputs.
// The reference instant is always passed in explicitly, so two calls with the
// same snapshot and the same instant produce identical results.
package metrics

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"cognita/internal/core"
)

const (
	DefaultHorizonDays = 3
	DefaultSeriesDays  = 7
	DefaultTopN        = 5
)

type (
	HabitRate struct {
		CompletedCount int `json:"completed_count"`
		ActiveCount    int `json:"active_count"`
		RatePercent    int `json:"rate_percent"`
	}

	TaskRate struct {
		Completed   int `json:"completed"`
		Total       int `json:"total"`
		RatePercent int `json:"rate_percent"`
	}

	Finance struct {
		Balance       decimal.Decimal `json:"balance"`
		TotalIncome   decimal.Decimal `json:"total_income"`
		TotalExpense  decimal.Decimal `json:"total_expense"`
		WeeklyExpense decimal.Decimal `json:"weekly_expense"`
	}

	// DashboardSummary is recomputed on demand and never persisted.
	DashboardSummary struct {
		GeneratedAt          time.Time       `json:"generated_at"`
		Today                string          `json:"today"`
		TodayStudyMinutes    int             `json:"today_study_minutes"`
		TotalStudyMinutes    int             `json:"total_study_minutes"`
		Habits               HabitRate       `json:"habits"`
		Finance              Finance         `json:"finance"`
		TodayMood            *core.MoodEntry `json:"today_mood"`
		AverageMood          float64         `json:"average_mood"`
		Tasks                TaskRate        `json:"tasks"`
		UpcomingTasks        []core.Task     `json:"upcoming_tasks"`
		StudySeries          []Point[int]    `json:"study_series"`
		MaxStudyMinutes      int             `json:"max_study_minutes"`
		MoodSeries           []MoodPoint     `json:"mood_series"`
		TopExpenseCategories []CategoryShare `json:"top_expense_categories"`
		TopStudySubjects     []SubjectShare  `json:"top_study_subjects"`
	}
)

// Aggregator computes dashboard metrics on a fixed calendar.
type Aggregator struct {
	Calendar    Calendar
	HorizonDays int
	SeriesDays  int
	TopN        int
}

// New returns an Aggregator with the dashboard defaults in loc (UTC if nil).
func New(loc *time.Location) Aggregator {
	return Aggregator{
		Calendar:    NewCalendar(loc),
		HorizonDays: DefaultHorizonDays,
		SeriesDays:  DefaultSeriesDays,
		TopN:        DefaultTopN,
	}
}

// Summarize builds the full dashboard summary for snapshot at now.
func (a Aggregator) Summarize(s core.Snapshot, now time.Time) DashboardSummary {
	study := StudySeries(a.Calendar, s.Sessions, now, a.SeriesDays)
	return DashboardSummary{
		GeneratedAt:          now,
		Today:                a.Calendar.Key(now),
		TodayStudyMinutes:    a.TodayStudyMinutes(s.Sessions, now),
		TotalStudyMinutes:    TotalStudyMinutes(s.Sessions),
		Habits:               a.HabitCompletionRate(s.Habits, now),
		Finance:              a.FinanceBalance(s.Transactions, now),
		TodayMood:            a.TodayMood(s.Moods, now),
		AverageMood:          AverageMood(s.Moods),
		Tasks:                TaskCompletionRate(s.Tasks),
		UpcomingTasks:        UpcomingTasks(s.Tasks, now, a.HorizonDays),
		StudySeries:          study,
		MaxStudyMinutes:      maxValue(study),
		MoodSeries:           MoodSeries(a.Calendar, s.Moods, now, a.SeriesDays),
		TopExpenseCategories: TopNByCategory(s.Transactions, a.TopN),
		TopStudySubjects:     TopNBySubject(s.Sessions, a.TopN),
	}
}

// TodayStudyMinutes sums the minutes of sessions on now's calendar day.
func (a Aggregator) TodayStudyMinutes(sessions []core.StudySession, now time.Time) int {
	total := 0
	for _, s := range sessions {
		if !s.SessionDate.IsZero() && a.Calendar.SameDay(s.SessionDate, now) {
			total += s.DurationMinutes
		}
	}
	return total
}

// TotalStudyMinutes sums every session regardless of date.
func TotalStudyMinutes(sessions []core.StudySession) int {
	total := 0
	for _, s := range sessions {
		total += s.DurationMinutes
	}
	return total
}

// HabitCompletionRate counts active habits completed on now's calendar day.
func (a Aggregator) HabitCompletionRate(habits []core.Habit, now time.Time) HabitRate {
	today := a.Calendar.Key(now)
	var r HabitRate
	for _, h := range habits {
		if !h.IsActive {
			continue
		}
		r.ActiveCount++
		if h.Completions.Has(today) {
			r.CompletedCount++
		}
	}
	r.RatePercent = ratePercent(r.CompletedCount, r.ActiveCount)
	return r
}

// FinanceBalance returns income minus expenses and the expenses dated on or
// after seven days before now. Transactions of any other type are ignored.
func (a Aggregator) FinanceBalance(transactions []core.FinanceTransaction, now time.Time) Finance {
	weekAgo := now.In(a.Calendar.Location()).AddDate(0, 0, -7)
	f := Finance{
		Balance:       decimal.Zero,
		TotalIncome:   decimal.Zero,
		TotalExpense:  decimal.Zero,
		WeeklyExpense: decimal.Zero,
	}
	for _, t := range transactions {
		switch t.Type {
		case core.Income:
			f.TotalIncome = f.TotalIncome.Add(t.Amount)
		case core.Expense:
			f.TotalExpense = f.TotalExpense.Add(t.Amount)
			if !t.TransactionDate.IsZero() && !t.TransactionDate.Before(weekAgo) {
				f.WeeklyExpense = f.WeeklyExpense.Add(t.Amount)
			}
		}
	}
	f.Balance = f.TotalIncome.Sub(f.TotalExpense)
	return f
}

// TodayMood returns a copy of the first entry logged for now's calendar day.
func (a Aggregator) TodayMood(entries []core.MoodEntry, now time.Time) *core.MoodEntry {
	e := firstMoodOn(entries, a.Calendar.Key(now))
	if e == nil {
		return nil
	}
	c := *e
	return &c
}

// AverageMood is the mean mood rating over all entries, to one decimal.
func AverageMood(entries []core.MoodEntry) float64 {
	if len(entries) == 0 {
		return 0
	}
	sum := 0
	for _, e := range entries {
		sum += e.MoodRating
	}
	return math.Round(float64(sum)/float64(len(entries))*10) / 10
}

// TaskCompletionRate counts completed tasks over all tasks.
func TaskCompletionRate(tasks []core.Task) TaskRate {
	r := TaskRate{Total: len(tasks)}
	for _, t := range tasks {
		if t.Status == core.StatusCompleted {
			r.Completed++
		}
	}
	r.RatePercent = ratePercent(r.Completed, r.Total)
	return r
}

// UpcomingTasks keeps open tasks whose due date, rounded up to whole days
// from now, lies in [0, horizonDays]. Input order is preserved. A task
// overdue by less than a day rounds up to 0 and is kept.
func UpcomingTasks(tasks []core.Task, now time.Time, horizonDays int) []core.Task {
	out := make([]core.Task, 0)
	for _, t := range tasks {
		if t.Status == core.StatusCompleted || t.DueDate == nil || t.DueDate.IsZero() {
			continue
		}
		diffDays := math.Ceil(float64(t.DueDate.Sub(now)) / float64(24*time.Hour))
		if diffDays >= 0 && diffDays <= float64(horizonDays) {
			out = append(out, t.Clone())
		}
	}
	return out
}

func ratePercent(part, whole int) int {
	if whole <= 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(whole) * 100))
}

// maxValue is the chart scale for a series; it never drops below 1.
func maxValue(points []Point[int]) int {
	m := 1
	for _, p := range points {
		if p.Value > m {
			m = p.Value
		}
	}
	return m
}
