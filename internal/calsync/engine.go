// Package calsync keeps local schedules and a user's remote calendar in step.
//
// Pushes (create, update, delete) go to the remote calendar first and are
// committed locally only after the remote call succeeded. Pulls import remote
// events into the local store and never delete anything locally.
package calsync

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/Tiliavir/schedsync/internal/eventid"
	"github.com/Tiliavir/schedsync/internal/gcal"
	"github.com/Tiliavir/schedsync/internal/model"
	"github.com/Tiliavir/schedsync/internal/storage"
	"github.com/Tiliavir/schedsync/internal/timecalc"
)

// DefaultCreateAttempts is how many event ids are tried against the remote
// calendar before a create gives up on repeated conflicts.
const DefaultCreateAttempts = 3

// RemoteCalendar is the provider API used by the engine.
type RemoteCalendar interface {
	CreateEvent(ctx context.Context, token, calendarID string, req gcal.EventRequest) (gcal.RemoteEvent, error)
	UpdateEvent(ctx context.Context, token, calendarID, eventID string, req gcal.EventRequest) error
	DeleteEvent(ctx context.Context, token, calendarID, eventID string) error
	ListEvents(ctx context.Context, token, calendarID string) ([]gcal.RemoteEvent, error)
}

// TokenSource yields a bearer token for a user.
type TokenSource interface {
	AccessToken(ctx context.Context, userID string) (string, error)
}

// IDGenerator produces event ids unused within a calendar.
type IDGenerator interface {
	Generate(ctx context.Context, calendarID string) (string, error)
}

// WorkReader lists a user's work entries for the calendar view.
type WorkReader interface {
	FindWorksByUser(ctx context.Context, userID string) ([]model.Work, error)
}

// LedgerReader provides per-day income and expense sums.
type LedgerReader interface {
	DailyTotals(ctx context.Context, userID string) (model.DailyTotals, error)
}

// Options wires an Engine. Store, Remote and Tokens are required.
type Options struct {
	Store  storage.ScheduleStore
	Works  WorkReader
	Ledger LedgerReader
	Remote RemoteCalendar
	Tokens TokenSource
	// IDs defaults to an eventid.Generator over Store.
	IDs            IDGenerator
	Logger         log.Logger
	CreateAttempts int
}

// Engine runs push and pull operations. It is safe for concurrent use.
type Engine struct {
	store          storage.ScheduleStore
	works          WorkReader
	ledger         LedgerReader
	remote         RemoteCalendar
	tokens         TokenSource
	ids            IDGenerator
	logger         log.Logger
	locks          *keyedMutex
	createAttempts int
}

// New returns an Engine for opts.
func New(opts Options) *Engine {
	e := &Engine{
		store:          opts.Store,
		works:          opts.Works,
		ledger:         opts.Ledger,
		remote:         opts.Remote,
		tokens:         opts.Tokens,
		ids:            opts.IDs,
		logger:         opts.Logger,
		locks:          newKeyedMutex(),
		createAttempts: opts.CreateAttempts,
	}
	if e.ids == nil {
		e.ids = eventid.NewGenerator(opts.Store, 0)
	}
	if e.logger == nil {
		e.logger = log.NewNopLogger()
	}
	if e.createAttempts <= 0 {
		e.createAttempts = DefaultCreateAttempts
	}
	return e
}

// CreateSchedule stores a new schedule. For a linked user the schedule is
// first created as an all-day event on the user's calendar under a freshly
// generated event id; nothing is stored if that fails.
func (e *Engine) CreateSchedule(ctx context.Context, user model.User, in model.ScheduleInput) (model.Schedule, error) {
	const op = "create schedule"
	if err := validateInput(in); err != nil {
		return model.Schedule{}, opError(op, ErrInvalidInput, err)
	}
	sched := model.Schedule{
		UserID: user.ID,
		Name:   in.Name,
		Date:   in.Date,
		Budget: in.Budget,
		Color:  in.Color,
	}
	if !user.Linked() {
		saved, err := e.store.Save(ctx, sched)
		if err != nil {
			return model.Schedule{}, opError(op, ErrStorage, err)
		}
		return saved, nil
	}

	calendarID := *user.RemoteCalendarID
	token, err := e.tokens.AccessToken(ctx, user.ID)
	if err != nil {
		return model.Schedule{}, opError(op, ErrAuth, err)
	}
	req, err := allDayRequest(in)
	if err != nil {
		return model.Schedule{}, opError(op, ErrInvalidInput, err)
	}

	for attempt := 1; ; attempt++ {
		req.ID, err = e.ids.Generate(ctx, calendarID)
		if err != nil {
			if errors.Is(err, eventid.ErrExhausted) {
				return model.Schedule{}, opError(op, ErrGeneratorExhausted, err)
			}
			return model.Schedule{}, opError(op, ErrStorage, err)
		}
		_, err = e.remote.CreateEvent(ctx, token, calendarID, req)
		if err == nil {
			break
		}
		if gcal.IsConflict(err) && attempt < e.createAttempts {
			level.Warn(e.logger).Log("msg", "event id taken on remote calendar, regenerating",
				"user", user.ID, "calendar", calendarID, "attempt", attempt)
			continue
		}
		return model.Schedule{}, opError(op, ErrRemoteAPI, err)
	}

	sched.RemoteCalendarID = model.StringPtr(calendarID)
	sched.RemoteEventID = model.StringPtr(req.ID)
	saved, err := e.store.Save(ctx, sched)
	if errors.Is(err, storage.ErrDuplicateRemoteKey) {
		// A concurrent pull imported the new event first. The row references
		// the remote event, so it must not be deleted.
		adopted, aerr := e.adoptImported(ctx, user, sched)
		if aerr != nil {
			return model.Schedule{}, opError(op, ErrStorage, aerr)
		}
		level.Debug(e.logger).Log("msg", "schedule created over pulled copy", "user", user.ID, "schedule", adopted.ID, "event", req.ID)
		return adopted, nil
	}
	if err != nil {
		// The event exists remotely without a local record; try to undo it.
		if derr := e.remote.DeleteEvent(ctx, token, calendarID, req.ID); derr != nil {
			level.Error(e.logger).Log("msg", "orphaned remote event after local save failure",
				"user", user.ID, "calendar", calendarID, "event", req.ID, "err", derr)
		}
		return model.Schedule{}, opError(op, ErrStorage, err)
	}
	level.Debug(e.logger).Log("msg", "schedule created", "user", user.ID, "schedule", saved.ID, "event", req.ID)
	return saved, nil
}

// adoptImported overlays a freshly created schedule onto the row a pull
// stored for the same remote event.
func (e *Engine) adoptImported(ctx context.Context, user model.User, sched model.Schedule) (model.Schedule, error) {
	calendarID, eventID := model.Deref(sched.RemoteCalendarID), model.Deref(sched.RemoteEventID)
	existing, err := e.store.FindByRemoteKey(ctx, calendarID, eventID)
	if err != nil {
		return model.Schedule{}, err
	}
	if existing.UserID != user.ID {
		return model.Schedule{}, fmt.Errorf("event %s on %s belongs to another user: %w",
			eventID, calendarID, storage.ErrDuplicateRemoteKey)
	}
	unlock := e.locks.Lock(existing.ID)
	defer unlock()
	current, err := e.store.FindByID(ctx, existing.ID)
	if err != nil {
		return model.Schedule{}, err
	}
	current.Name = sched.Name
	current.Date = sched.Date
	current.Budget = sched.Budget
	current.Color = sched.Color
	return e.store.Save(ctx, current)
}

// CreateSchedules creates inputs in order and stops at the first failure.
// Schedules created before the failure stay committed and are returned
// together with the error.
func (e *Engine) CreateSchedules(ctx context.Context, user model.User, inputs []model.ScheduleInput) ([]model.Schedule, error) {
	created := make([]model.Schedule, 0, len(inputs))
	for i, in := range inputs {
		s, err := e.CreateSchedule(ctx, user, in)
		if err != nil {
			level.Warn(e.logger).Log("msg", "batch create stopped", "user", user.ID,
				"index", i, "committed", len(created), "err", err)
			return created, err
		}
		created = append(created, s)
	}
	return created, nil
}

// UpdateSchedule replaces a schedule's fields. A linked schedule is updated on
// the calendar it was created against before the local record changes.
func (e *Engine) UpdateSchedule(ctx context.Context, user model.User, id string, in model.ScheduleInput) (model.Schedule, error) {
	const op = "update schedule"
	if err := validateInput(in); err != nil {
		return model.Schedule{}, opError(op, ErrInvalidInput, err)
	}
	unlock := e.locks.Lock(id)
	defer unlock()

	existing, err := e.findOwned(ctx, user, id)
	if err != nil {
		return model.Schedule{}, opError(op, kindOf(err), err)
	}
	if existing.Linked() {
		token, err := e.tokens.AccessToken(ctx, user.ID)
		if err != nil {
			return model.Schedule{}, opError(op, ErrAuth, err)
		}
		req, err := allDayRequest(in)
		if err != nil {
			return model.Schedule{}, opError(op, ErrInvalidInput, err)
		}
		if err := e.remote.UpdateEvent(ctx, token, *existing.RemoteCalendarID, *existing.RemoteEventID, req); err != nil {
			return model.Schedule{}, opError(op, ErrRemoteAPI, err)
		}
	}

	existing.Name = in.Name
	existing.Date = in.Date
	existing.Budget = in.Budget
	existing.Color = in.Color
	saved, err := e.store.Save(ctx, existing)
	if err != nil {
		return model.Schedule{}, opError(op, ErrStorage, err)
	}
	return saved, nil
}

// DeleteSchedule removes a schedule. A linked schedule's remote event is
// deleted first; the local record survives a remote failure.
func (e *Engine) DeleteSchedule(ctx context.Context, user model.User, id string) error {
	const op = "delete schedule"
	unlock := e.locks.Lock(id)
	defer unlock()

	existing, err := e.findOwned(ctx, user, id)
	if err != nil {
		return opError(op, kindOf(err), err)
	}
	if existing.Linked() {
		token, err := e.tokens.AccessToken(ctx, user.ID)
		if err != nil {
			return opError(op, ErrAuth, err)
		}
		if err := e.remote.DeleteEvent(ctx, token, *existing.RemoteCalendarID, *existing.RemoteEventID); err != nil {
			return opError(op, ErrRemoteAPI, err)
		}
	}
	if err := e.store.DeleteByID(ctx, id); err != nil {
		return opError(op, kindOf(err), err)
	}
	return nil
}

// SyncResult counts what a pull did with each listed event.
type SyncResult struct {
	Imported  int
	Updated   int
	Unchanged int
	Filtered  int
	Malformed int
	Errors    int
}

// Reconcile imports the user's remote events. Untitled and recurring events
// are skipped; matches by (calendar, event id) take the remote name and date.
// Unlinked users are a no-op. A missing token or a failed listing changes
// nothing and is returned as an error.
func (e *Engine) Reconcile(ctx context.Context, user model.User) (SyncResult, error) {
	const op = "reconcile"
	var result SyncResult
	if !user.Linked() {
		return result, nil
	}
	calendarID := *user.RemoteCalendarID
	token, err := e.tokens.AccessToken(ctx, user.ID)
	if err != nil {
		return result, opError(op, ErrAuth, err)
	}
	events, err := e.remote.ListEvents(ctx, token, calendarID)
	if err != nil {
		return result, opError(op, ErrRemoteAPI, err)
	}

	for _, ev := range events {
		if !e.eligible(ev) {
			result.Filtered++
			continue
		}
		if ev.ID == "" {
			level.Warn(e.logger).Log("msg", "skipping remote event", "calendar", calendarID,
				"summary", ev.Summary, "err", opError(op, ErrMalformedRemoteData, errors.New("missing event id")))
			result.Malformed++
			continue
		}
		date := eventDate(ev)
		if date == "" {
			level.Info(e.logger).Log("msg", "remote event has no start, date left empty",
				"calendar", calendarID, "event", ev.ID)
		}

		switch outcome, err := e.upsert(ctx, user, calendarID, ev.ID, ev.Summary, date); {
		case err != nil:
			level.Error(e.logger).Log("msg", "storing remote event", "calendar", calendarID, "event", ev.ID, "err", err)
			result.Errors++
		case outcome == upsertImported:
			result.Imported++
		case outcome == upsertUpdated:
			result.Updated++
		default:
			result.Unchanged++
		}
	}

	level.Info(e.logger).Log("msg", "reconciled", "user", user.ID, "calendar", calendarID,
		"listed", len(events), "imported", result.Imported, "updated", result.Updated,
		"unchanged", result.Unchanged, "filtered", result.Filtered,
		"malformed", result.Malformed, "errors", result.Errors)
	return result, nil
}

type upsertOutcome int

const (
	upsertUnchanged upsertOutcome = iota
	upsertImported
	upsertUpdated
)

func (e *Engine) upsert(ctx context.Context, user model.User, calendarID, eventID, name, date string) (upsertOutcome, error) {
	existing, err := e.store.FindByRemoteKey(ctx, calendarID, eventID)
	if errors.Is(err, storage.ErrNotFound) {
		_, err := e.store.Save(ctx, model.Schedule{
			UserID:           user.ID,
			RemoteCalendarID: model.StringPtr(calendarID),
			RemoteEventID:    model.StringPtr(eventID),
			Name:             name,
			Date:             date,
			Color:            model.DefaultColor,
		})
		if err != nil {
			return upsertUnchanged, err
		}
		return upsertImported, nil
	}
	if err != nil {
		return upsertUnchanged, err
	}
	if existing.Name == name && existing.Date == date {
		return upsertUnchanged, nil
	}

	unlock := e.locks.Lock(existing.ID)
	defer unlock()
	current, err := e.store.FindByID(ctx, existing.ID)
	if err != nil {
		return upsertUnchanged, err
	}
	current.Name = name
	current.Date = date
	if _, err := e.store.Save(ctx, current); err != nil {
		return upsertUnchanged, err
	}
	return upsertUpdated, nil
}

// eligible applies the import filter: a title and no recurrence. The
// provider omits empty titles, so an empty Summary means the event has none.
func (e *Engine) eligible(ev gcal.RemoteEvent) bool {
	if ev.Summary == "" {
		return false
	}
	if ev.Recurring() {
		level.Debug(e.logger).Log("msg", "skipping recurring event", "event", ev.ID,
			"rules", strings.Join(ev.Recurrence, ";"), "series", ev.RecurringEventID)
		return false
	}
	return true
}

// CalendarView reconciles, then composes the user's schedules, works and
// ledger totals. Reconcile failures are logged and the local state is shown.
func (e *Engine) CalendarView(ctx context.Context, user model.User) (model.CalendarView, error) {
	const op = "calendar view"
	if _, err := e.Reconcile(ctx, user); err != nil {
		level.Warn(e.logger).Log("msg", "showing local state, reconcile failed", "user", user.ID, "err", err)
	}
	view := model.CalendarView{
		Schedules:    []model.Schedule{},
		Works:        []model.Work{},
		DailyIncome:  map[string]int64{},
		DailyExpense: map[string]int64{},
	}
	schedules, err := e.store.FindByUser(ctx, user.ID)
	if err != nil {
		return model.CalendarView{}, opError(op, ErrStorage, err)
	}
	if schedules != nil {
		view.Schedules = schedules
	}
	if e.works != nil {
		works, err := e.works.FindWorksByUser(ctx, user.ID)
		if err != nil {
			return model.CalendarView{}, opError(op, ErrStorage, err)
		}
		if works != nil {
			view.Works = works
		}
	}
	if e.ledger != nil {
		totals, err := e.ledger.DailyTotals(ctx, user.ID)
		if err != nil {
			return model.CalendarView{}, opError(op, ErrStorage, err)
		}
		if totals.Income != nil {
			view.DailyIncome = totals.Income
		}
		if totals.Expense != nil {
			view.DailyExpense = totals.Expense
		}
	}
	return view, nil
}

func (e *Engine) findOwned(ctx context.Context, user model.User, id string) (model.Schedule, error) {
	s, err := e.store.FindByID(ctx, id)
	if err != nil {
		return model.Schedule{}, err
	}
	if s.UserID != user.ID {
		// Other users' schedules are indistinguishable from missing ones.
		return model.Schedule{}, storage.ErrNotFound
	}
	return s, nil
}

func kindOf(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFound
	}
	return ErrStorage
}

func validateInput(in model.ScheduleInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return errors.New("name is required")
	}
	if _, err := timecalc.ParseDate(in.Date); err != nil {
		return err
	}
	if in.Color < 0 {
		return errors.New("color must not be negative")
	}
	return nil
}

func allDayRequest(in model.ScheduleInput) (gcal.EventRequest, error) {
	start, end, err := timecalc.AllDaySpan(in.Date)
	if err != nil {
		return gcal.EventRequest{}, err
	}
	return gcal.EventRequest{
		Summary: in.Name,
		Start:   gcal.EventTime{Date: start},
		End:     gcal.EventTime{Date: end},
	}, nil
}

// eventDate prefers a timed start over an all-day one.
func eventDate(ev gcal.RemoteEvent) string {
	if ev.Start == nil {
		return ""
	}
	if ev.Start.DateTime != "" {
		return ev.Start.DateTime
	}
	return ev.Start.Date
}
