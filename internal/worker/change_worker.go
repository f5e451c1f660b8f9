package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"cognita/internal/amqp"
	"cognita/internal/core"
	"cognita/internal/metrics"
	"cognita/internal/sheets"
	"cognita/internal/storage"
)

// DefaultRetention is how long a user stays in the periodic refresh set
// after their last change.
const DefaultRetention = 24 * time.Hour

type (
	// DashboardRefresher recomputes and stores a user's dashboard.
	DashboardRefresher interface {
		Refresh(ctx context.Context, userID uuid.UUID, now time.Time) (metrics.DashboardSummary, error)
	}

	// TransactionReader loads a single finance transaction.
	TransactionReader interface {
		GetTransaction(ctx context.Context, userID, id uuid.UUID) (core.FinanceTransaction, error)
	}
)

// ChangeWorker reacts to RecordChanged messages: it re-warms the user's
// dashboard and exports new finance transactions to the spreadsheet.
type ChangeWorker struct {
	dashboard    DashboardRefresher
	transactions TransactionReader
	exporter     sheets.FinanceExporter
	retention    time.Duration
	now          func() time.Time

	mu   sync.Mutex
	seen map[uuid.UUID]time.Time
}

// NewChangeWorker creates a worker. exporter may be nil to skip the export.
func NewChangeWorker(dashboard DashboardRefresher, transactions TransactionReader, exporter sheets.FinanceExporter) *ChangeWorker {
	return &ChangeWorker{
		dashboard:    dashboard,
		transactions: transactions,
		exporter:     exporter,
		retention:    DefaultRetention,
		now:          time.Now,
		seen:         make(map[uuid.UUID]time.Time),
	}
}

// Handle processes one RecordChanged message. A returned error asks the
// broker to redeliver it, so every step is safe to repeat.
func (w *ChangeWorker) Handle(ctx context.Context, msg *amqp.RecordChanged) error {
	slog.InfoContext(ctx, "Processing record change",
		"entity", msg.Entity,
		"op", msg.Op,
		"id", msg.ID,
		"user_id", msg.UserID)

	w.remember(msg.UserID)

	if _, err := w.dashboard.Refresh(ctx, msg.UserID, w.now()); err != nil {
		return fmt.Errorf("refresh dashboard: %w", err)
	}

	if msg.Entity == amqp.EntityFinance && msg.Op == amqp.OpCreate {
		return w.exportTransaction(ctx, msg.UserID, msg.ID)
	}
	return nil
}

func (w *ChangeWorker) exportTransaction(ctx context.Context, userID, id uuid.UUID) error {
	if w.exporter == nil {
		return nil
	}

	t, err := w.transactions.GetTransaction(ctx, userID, id)
	if errors.Is(err, storage.ErrNotFound) {
		slog.WarnContext(ctx, "Transaction deleted before export, skipping", "id", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get transaction from storage: %w", err)
	}

	ref, err := w.exporter.ExportTransaction(ctx, t)
	if err != nil {
		return fmt.Errorf("export transaction to sheets: %w", err)
	}

	slog.InfoContext(ctx, "Successfully exported transaction",
		"id", id,
		"sheets_ref", ref,
		"category", t.Category,
		"amount", t.Amount.StringFixed(2))
	return nil
}

func (w *ChangeWorker) remember(userID uuid.UUID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.seen[userID] = w.now()
}

// ActiveUsers returns the users that changed something within the retention
// window and forgets the others.
func (w *ChangeWorker) ActiveUsers() []uuid.UUID {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := w.now().Add(-w.retention)
	users := make([]uuid.UUID, 0, len(w.seen))
	for id, last := range w.seen {
		if last.Before(cutoff) {
			delete(w.seen, id)
			continue
		}
		users = append(users, id)
	}
	return users
}

// RefreshActive re-warms the dashboard of every active user. It keeps going
// past individual failures and returns how many refreshes succeeded.
func (w *ChangeWorker) RefreshActive(ctx context.Context) int {
	users := w.ActiveUsers()
	refreshed := 0
	for _, id := range users {
		if ctx.Err() != nil {
			break
		}
		if _, err := w.dashboard.Refresh(ctx, id, w.now()); err != nil {
			slog.ErrorContext(ctx, "Failed to refresh dashboard", "user_id", id, "error", err)
			continue
		}
		refreshed++
	}
	if len(users) > 0 {
		slog.InfoContext(ctx, "Periodic dashboard refresh completed",
			"users", len(users),
			"refreshed", refreshed)
	}
	return refreshed
}

// Run refreshes active dashboards every interval until ctx is done.
func (w *ChangeWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RefreshActive(ctx)
		}
	}
}
