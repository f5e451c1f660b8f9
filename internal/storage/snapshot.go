package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"cognita/internal/core"
)

// LoadSnapshot fetches the five record collections of a user concurrently.
func (r *Repository) LoadSnapshot(ctx context.Context, userID uuid.UUID) (core.Snapshot, error) {
	var s core.Snapshot
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		s.Sessions, err = r.ListStudySessions(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		s.Habits, err = r.ListHabits(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		s.Transactions, err = r.ListTransactions(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		s.Moods, err = r.ListMoodEntries(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		s.Tasks, err = r.ListTasks(gctx, userID)
		return err
	})

	if err := g.Wait(); err != nil {
		return core.Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}
	return s, nil
}
