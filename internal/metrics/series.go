package metrics

import (
	"time"

	"cognita/internal/core"
)

// Number is the set of values DailySeries can sum.
type Number interface {
	~int | ~int64 | ~float64
}

// Point is one calendar day of a series.
type Point[V Number] struct {
	Day     string `json:"day"`
	Weekday string `json:"weekday"`
	Value   V      `json:"value"`
}

// MoodPoint is one calendar day of the mood series; zeros mean no entry.
type MoodPoint struct {
	Day     string `json:"day"`
	Weekday string `json:"weekday"`
	Mood    int    `json:"mood"`
	Energy  int    `json:"energy"`
	Stress  int    `json:"stress"`
}

// DailySeries buckets records into the last days calendar days ending on
// now's day, oldest first. Records whose dateOf reports false are skipped.
func DailySeries[R any, V Number](cal Calendar, records []R, now time.Time, days int, dateOf func(R) (time.Time, bool), valueOf func(R) V) []Point[V] {
	buckets := cal.LastDays(now, days)
	index := make(map[string]int, len(buckets))
	points := make([]Point[V], len(buckets))
	for i, day := range buckets {
		key := cal.Key(day)
		index[key] = i
		points[i] = Point[V]{Day: key, Weekday: day.Weekday().String()[:3]}
	}

	for _, r := range records {
		t, ok := dateOf(r)
		if !ok {
			continue
		}
		if i, ok := index[cal.Key(t)]; ok {
			points[i].Value += valueOf(r)
		}
	}
	return points
}

// StudySeries is DailySeries over session minutes.
func StudySeries(cal Calendar, sessions []core.StudySession, now time.Time, days int) []Point[int] {
	return DailySeries(cal, sessions, now, days, sessionDate, func(s core.StudySession) int {
		return s.DurationMinutes
	})
}

// MoodSeries picks, for each of the last days calendar days, the first entry
// logged for that date. Mood entries are day-keyed, so nothing is summed.
func MoodSeries(cal Calendar, entries []core.MoodEntry, now time.Time, days int) []MoodPoint {
	buckets := cal.LastDays(now, days)
	points := make([]MoodPoint, len(buckets))
	for i, day := range buckets {
		key := cal.Key(day)
		points[i] = MoodPoint{Day: key, Weekday: day.Weekday().String()[:3]}
		if e := firstMoodOn(entries, key); e != nil {
			points[i].Mood = e.MoodRating
			points[i].Energy = e.EnergyLevel
			points[i].Stress = e.StressLevel
		}
	}
	return points
}

func firstMoodOn(entries []core.MoodEntry, key string) *core.MoodEntry {
	for i := range entries {
		if entries[i].EntryDate == key {
			return &entries[i]
		}
	}
	return nil
}

func sessionDate(s core.StudySession) (time.Time, bool) {
	return s.SessionDate, !s.SessionDate.IsZero()
}
