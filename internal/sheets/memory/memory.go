package memory

import (
	"context"
	"fmt"
	"sync"

	"cognita/internal/core"
	"cognita/internal/sheets"
)

// Store keeps exported rows in memory. It stands in for the spreadsheet in
// tests and in deployments without one.
type Store struct {
	mu   sync.Mutex
	rows [][]string
}

var _ sheets.FinanceExporter = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// ExportTransaction stores the row and returns a synthetic row reference.
func (s *Store) ExportTransaction(_ context.Context, t core.FinanceTransaction) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, sheets.Row(t))
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// Rows returns a copy of the exported rows in export order.
func (s *Store) Rows() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, len(s.rows))
	for i, r := range s.rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}
