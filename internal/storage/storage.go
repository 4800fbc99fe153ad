package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Tiliavir/schedsync/internal/model"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateRemoteKey is returned when a schedule would reuse a
	// (remote calendar, remote event) pair held by another schedule.
	ErrDuplicateRemoteKey = errors.New("duplicate remote calendar event")
	// ErrInvalidRecord is returned for records violating model invariants.
	ErrInvalidRecord = errors.New("invalid record")
)

// ScheduleStore owns local schedule records.
type ScheduleStore interface {
	FindByUser(ctx context.Context, userID string) ([]model.Schedule, error)
	FindByID(ctx context.Context, id string) (model.Schedule, error)
	FindByRemoteKey(ctx context.Context, calendarID, eventID string) (model.Schedule, error)
	ExistsByRemoteKey(ctx context.Context, calendarID, eventID string) (bool, error)
	// Save inserts or replaces a schedule, assigning an id when empty.
	Save(ctx context.Context, s model.Schedule) (model.Schedule, error)
	DeleteByID(ctx context.Context, id string) error
}

// UserStore holds user records with their linked calendar.
type UserStore interface {
	FindUser(ctx context.Context, id string) (model.User, error)
	SaveUser(ctx context.Context, u model.User) error
}

// WorkStore holds work shift entries.
type WorkStore interface {
	FindWorksByUser(ctx context.Context, userID string) ([]model.Work, error)
	SaveWork(ctx context.Context, w model.Work) (model.Work, error)
}

// LedgerStore holds income and expense entries.
type LedgerStore interface {
	FindLedgerByUser(ctx context.Context, userID string) ([]model.LedgerEntry, error)
	SaveLedgerEntry(ctx context.Context, e model.LedgerEntry) (model.LedgerEntry, error)
	DailyTotals(ctx context.Context, userID string) (model.DailyTotals, error)
}

// Backend is the full persistence surface used by the application.
type Backend interface {
	ScheduleStore
	UserStore
	WorkStore
	LedgerStore
	Close() error
}

// BaseDir returns the root data directory (~/.schedsync).
func BaseDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".schedsync"), nil
}

// SumDaily groups ledger entries by date and sums their amounts per kind.
func SumDaily(entries []model.LedgerEntry) model.DailyTotals {
	totals := model.DailyTotals{Income: map[string]int64{}, Expense: map[string]int64{}}
	for _, e := range entries {
		switch e.Kind {
		case model.LedgerIncome:
			totals.Income[e.Date] += e.Amount
		case model.LedgerExpense:
			totals.Expense[e.Date] += e.Amount
		}
	}
	return totals
}

func validateSchedule(s model.Schedule) error {
	if s.UserID == "" {
		return fmt.Errorf("%w: schedule without owner", ErrInvalidRecord)
	}
	if s.RemoteEventID != nil && s.RemoteCalendarID == nil {
		return fmt.Errorf("%w: remote event id without remote calendar id", ErrInvalidRecord)
	}
	return nil
}
