package metrics

import (
	"slices"

	"github.com/shopspring/decimal"

	"cognita/internal/core"
)

// CategoryShare is one row of the expense-by-category breakdown.
type CategoryShare struct {
	Name         string          `json:"name"`
	Amount       decimal.Decimal `json:"amount"`
	PercentOfTop float64         `json:"percent_of_top"`
	PercentOfMax float64         `json:"percent_of_max"`
}

// SubjectShare is one row of the study-time-by-subject breakdown.
type SubjectShare struct {
	Name         string  `json:"name"`
	Minutes      int     `json:"minutes"`
	PercentOfTop float64 `json:"percent_of_top"`
	PercentOfMax float64 `json:"percent_of_max"`
}

var hundred = decimal.NewFromInt(100)

// TopNByCategory sums expenses per exact category string and returns the n
// largest, ties kept in first-seen order. PercentOfTop is relative to the sum
// of the returned rows, not to all expenses.
func TopNByCategory(transactions []core.FinanceTransaction, n int) []CategoryShare {
	groups := make([]CategoryShare, 0)
	index := make(map[string]int)
	for _, t := range transactions {
		if t.Type != core.Expense {
			continue
		}
		i, ok := index[t.Category]
		if !ok {
			i = len(groups)
			index[t.Category] = i
			groups = append(groups, CategoryShare{Name: t.Category, Amount: decimal.Zero})
		}
		groups[i].Amount = groups[i].Amount.Add(t.Amount)
	}

	slices.SortStableFunc(groups, func(a, b CategoryShare) int {
		return b.Amount.Cmp(a.Amount)
	})
	groups = truncate(groups, n)

	total := decimal.Zero
	for _, g := range groups {
		total = total.Add(g.Amount)
	}
	for i := range groups {
		groups[i].PercentOfTop = percentDecimal(groups[i].Amount, total)
		groups[i].PercentOfMax = percentDecimal(groups[i].Amount, groups[0].Amount)
	}
	return groups
}

// TopNBySubject is TopNByCategory over study sessions grouped by subject.
func TopNBySubject(sessions []core.StudySession, n int) []SubjectShare {
	groups := make([]SubjectShare, 0)
	index := make(map[string]int)
	for _, s := range sessions {
		i, ok := index[s.Subject]
		if !ok {
			i = len(groups)
			index[s.Subject] = i
			groups = append(groups, SubjectShare{Name: s.Subject})
		}
		groups[i].Minutes += s.DurationMinutes
	}

	slices.SortStableFunc(groups, func(a, b SubjectShare) int {
		return b.Minutes - a.Minutes
	})
	groups = truncate(groups, n)

	total := 0
	for _, g := range groups {
		total += g.Minutes
	}
	for i := range groups {
		groups[i].PercentOfTop = percent(groups[i].Minutes, total)
		groups[i].PercentOfMax = percent(groups[i].Minutes, groups[0].Minutes)
	}
	return groups
}

func truncate[T any](s []T, n int) []T {
	if n < 0 {
		n = 0
	}
	if len(s) > n {
		return s[:n]
	}
	return s
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) * 100 / float64(whole)
}

func percentDecimal(part, whole decimal.Decimal) float64 {
	if whole.IsZero() {
		return 0
	}
	f, _ := part.Mul(hundred).Div(whole).Float64()
	return f
}
