package core

import (
	"encoding/json"
	"sort"
	"time"
)

// DateKeyLayout is the calendar-day key used by habit completions and mood entries.
const DateKeyLayout = "2006-01-02"

// ParseDateKey parses a YYYY-MM-DD key. The returned time is midnight UTC.
func ParseDateKey(s string) (time.Time, error) {
	return time.Parse(DateKeyLayout, s)
}

// CompletionSet holds the calendar days a habit was completed on.
type CompletionSet map[string]struct{}

// NewCompletionSet builds a set from date keys, dropping duplicates.
func NewCompletionSet(keys ...string) CompletionSet {
	s := make(CompletionSet, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

func (s CompletionSet) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// Keys returns the keys in ascending order.
func (s CompletionSet) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s CompletionSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Keys())
}

func (s *CompletionSet) UnmarshalJSON(data []byte) error {
	var keys []string
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}
	*s = NewCompletionSet(keys...)
	return nil
}
