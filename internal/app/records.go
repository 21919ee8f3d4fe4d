package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/hurttlocker/starbound/internal/habits"
	"github.com/hurttlocker/starbound/internal/journal"
	"github.com/hurttlocker/starbound/internal/nudge"
	"github.com/hurttlocker/starbound/internal/store"
)

// Entry returns one stored entry by id.
func (a *App) Entry(ctx context.Context, id string) (journal.Entry, error) {
	return a.Store.GetEntry(ctx, strings.TrimSpace(id))
}

// DeleteEntry removes a stored entry. It returns store.ErrNotFound for an
// unknown id.
func (a *App) DeleteEntry(ctx context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.Store.DeleteEntry(ctx, strings.TrimSpace(id)); err != nil {
		return err
	}
	a.Search.Invalidate()
	return nil
}

// Vacuum compacts the database file.
func (a *App) Vacuum(ctx context.Context) error {
	if err := a.Store.Vacuum(ctx); err != nil {
		return fmt.Errorf("vacuuming %s: %w", a.Store.Path(), err)
	}
	return nil
}

// BankNudge saves catalogue nudge id for later. Unknown ids return
// nudge.ErrUnknownNudge.
func (a *App) BankNudge(ctx context.Context, id int) (nudge.Banked, error) {
	n, err := a.Catalog.Get(id)
	if err != nil {
		return nudge.Banked{}, err
	}
	banked, err := a.Store.BankNudge(ctx, n)
	if err != nil {
		return nudge.Banked{}, err
	}
	a.Search.Invalidate()
	return banked, nil
}

// UnbankNudge removes a banked nudge, or returns store.ErrNotFound.
func (a *App) UnbankNudge(ctx context.Context, id int) error {
	if err := a.Store.UnbankNudge(ctx, id); err != nil {
		return err
	}
	a.Search.Invalidate()
	return nil
}

// CheckIn records a daily habit value.
func (a *App) CheckIn(ctx context.Context, date, habit, value string) (store.HabitEntry, error) {
	e, err := a.Store.SetHabit(ctx, date, habit, value)
	if err != nil {
		return store.HabitEntry{}, err
	}
	a.Search.Invalidate()
	return e, nil
}

// HabitStatus reports what happened to a suggested tag. Aliases resolve to
// their canonical key first; a tag never suggested returns
// store.ErrNotFound.
func (a *App) HabitStatus(ctx context.Context, tag string) (string, habits.Status, error) {
	tag = strings.TrimSpace(tag)
	if key, ok := a.Registry.Resolve(tag); ok {
		tag = key
	}
	status, err := a.Store.SuggestionStatus(ctx, tag)
	return tag, status, err
}
