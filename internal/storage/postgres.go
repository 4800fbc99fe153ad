package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Tiliavir/schedsync/internal/model"
)

const (
	postgresTablePrefix      = "schedsync"
	postgresOperationTimeout = 5 * time.Second
	postgresUniqueViolation  = "23505"
)

type sqlOpenFunc func(driverName, dsn string) (*sql.DB, error)

// PostgresStore keeps records in four tables sharing a name prefix. The
// remote-key uniqueness invariant is a partial unique index.
type PostgresStore struct {
	dsn    string
	prefix string
	openDB sqlOpenFunc

	initOnce sync.Once
	initErr  error
	db       *sql.DB
}

// NewPostgresStore returns a store for dsn. The connection and schema are
// established on first use.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("%w: empty postgres dsn", ErrInvalidRecord)
	}
	return &PostgresStore{dsn: dsn, prefix: postgresTablePrefix, openDB: sql.Open}, nil
}

func (p *PostgresStore) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

func (p *PostgresStore) table(name string) string {
	return postgresQuoteIdentifier(p.prefix + "_" + name)
}

func (p *PostgresStore) ensureReady() error {
	p.initOnce.Do(func() {
		db, err := p.openDB("postgres", p.dsn)
		if err != nil {
			p.initErr = err
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), postgresOperationTimeout)
		defer cancel()

		statements := []string{
			fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS %s (
					id TEXT PRIMARY KEY,
					remote_calendar_id TEXT
				)`, p.table("users")),
			fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS %s (
					seq BIGSERIAL,
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					remote_calendar_id TEXT,
					remote_event_id TEXT,
					name TEXT NOT NULL,
					date TEXT NOT NULL,
					budget BIGINT NOT NULL DEFAULT 0,
					color INTEGER NOT NULL DEFAULT 0,
					CHECK (remote_event_id IS NULL OR remote_calendar_id IS NOT NULL)
				)`, p.table("schedules")),
			fmt.Sprintf(`
				CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (remote_calendar_id, remote_event_id)
				WHERE remote_event_id IS NOT NULL`,
				postgresQuoteIdentifier(p.prefix+"_schedules_remote_key"), p.table("schedules")),
			fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS %s (
					seq BIGSERIAL,
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					name TEXT NOT NULL,
					date TEXT NOT NULL,
					pay BIGINT NOT NULL DEFAULT 0,
					payday TEXT NOT NULL DEFAULT '',
					color INTEGER NOT NULL DEFAULT 0,
					start_time TEXT NOT NULL DEFAULT '',
					end_time TEXT NOT NULL DEFAULT ''
				)`, p.table("works")),
			fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS %s (
					seq BIGSERIAL,
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					kind TEXT NOT NULL,
					date TEXT NOT NULL,
					amount BIGINT NOT NULL,
					content TEXT NOT NULL DEFAULT ''
				)`, p.table("ledger")),
		}
		for _, stmt := range statements {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				_ = db.Close()
				p.initErr = err
				return
			}
		}
		p.db = db
	})
	return p.initErr
}

// begin prepares the connection and bounds ctx by the operation timeout.
func (p *PostgresStore) begin(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if err := p.ensureReady(); err != nil {
		return nil, nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	return ctx, cancel, nil
}

const scheduleColumns = "id, user_id, remote_calendar_id, remote_event_id, name, date, budget, color"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(row rowScanner) (model.Schedule, error) {
	var (
		s       model.Schedule
		calID   sql.NullString
		eventID sql.NullString
	)
	if err := row.Scan(&s.ID, &s.UserID, &calID, &eventID, &s.Name, &s.Date, &s.Budget, &s.Color); err != nil {
		return model.Schedule{}, err
	}
	if calID.Valid {
		s.RemoteCalendarID = &calID.String
	}
	if eventID.Valid {
		s.RemoteEventID = &eventID.String
	}
	return s, nil
}

func (p *PostgresStore) FindByUser(ctx context.Context, userID string) ([]model.Schedule, error) {
	ctx, cancel, err := p.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	query := fmt.Sprintf("SELECT %s FROM %s WHERE user_id = $1 ORDER BY seq", scheduleColumns, p.table("schedules"))
	rows, err := p.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *PostgresStore) FindByID(ctx context.Context, id string) (model.Schedule, error) {
	ctx, cancel, err := p.begin(ctx)
	if err != nil {
		return model.Schedule{}, err
	}
	defer cancel()
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", scheduleColumns, p.table("schedules"))
	s, err := scanSchedule(p.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Schedule{}, fmt.Errorf("schedule %s: %w", id, ErrNotFound)
	}
	return s, err
}

func (p *PostgresStore) FindByRemoteKey(ctx context.Context, calendarID, eventID string) (model.Schedule, error) {
	ctx, cancel, err := p.begin(ctx)
	if err != nil {
		return model.Schedule{}, err
	}
	defer cancel()
	query := fmt.Sprintf("SELECT %s FROM %s WHERE remote_calendar_id = $1 AND remote_event_id = $2",
		scheduleColumns, p.table("schedules"))
	s, err := scanSchedule(p.db.QueryRowContext(ctx, query, calendarID, eventID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Schedule{}, fmt.Errorf("schedule for event %s/%s: %w", calendarID, eventID, ErrNotFound)
	}
	return s, err
}

func (p *PostgresStore) ExistsByRemoteKey(ctx context.Context, calendarID, eventID string) (bool, error) {
	ctx, cancel, err := p.begin(ctx)
	if err != nil {
		return false, err
	}
	defer cancel()
	query := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE remote_calendar_id = $1 AND remote_event_id = $2)",
		p.table("schedules"))
	var exists bool
	err = p.db.QueryRowContext(ctx, query, calendarID, eventID).Scan(&exists)
	return exists, err
}

func (p *PostgresStore) Save(ctx context.Context, s model.Schedule) (model.Schedule, error) {
	if err := validateSchedule(s); err != nil {
		return model.Schedule{}, err
	}
	ctx, cancel, err := p.begin(ctx)
	if err != nil {
		return model.Schedule{}, err
	}
	defer cancel()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (id, user_id, remote_calendar_id, remote_event_id, name, date, budget, color)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			remote_calendar_id = EXCLUDED.remote_calendar_id,
			remote_event_id = EXCLUDED.remote_event_id,
			name = EXCLUDED.name,
			date = EXCLUDED.date,
			budget = EXCLUDED.budget,
			color = EXCLUDED.color`, p.table("schedules"))
	_, err = p.db.ExecContext(ctx, query, s.ID, s.UserID,
		nullString(s.RemoteCalendarID), nullString(s.RemoteEventID), s.Name, s.Date, s.Budget, s.Color)
	if err != nil {
		return model.Schedule{}, mapPostgresError(err)
	}
	return s, nil
}

func (p *PostgresStore) DeleteByID(ctx context.Context, id string) error {
	ctx, cancel, err := p.begin(ctx)
	if err != nil {
		return err
	}
	defer cancel()
	res, err := p.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", p.table("schedules")), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("schedule %s: %w", id, ErrNotFound)
	}
	return nil
}

func (p *PostgresStore) FindUser(ctx context.Context, id string) (model.User, error) {
	ctx, cancel, err := p.begin(ctx)
	if err != nil {
		return model.User{}, err
	}
	defer cancel()
	var calID sql.NullString
	query := fmt.Sprintf("SELECT remote_calendar_id FROM %s WHERE id = $1", p.table("users"))
	err = p.db.QueryRowContext(ctx, query, id).Scan(&calID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.User{}, err
	}
	return model.User{ID: id, RemoteCalendarID: model.StringPtr(calID.String)}, nil
}

func (p *PostgresStore) SaveUser(ctx context.Context, u model.User) error {
	if u.ID == "" {
		return fmt.Errorf("%w: user without id", ErrInvalidRecord)
	}
	ctx, cancel, err := p.begin(ctx)
	if err != nil {
		return err
	}
	defer cancel()
	query := fmt.Sprintf(`
		INSERT INTO %s (id, remote_calendar_id) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET remote_calendar_id = EXCLUDED.remote_calendar_id`, p.table("users"))
	_, err = p.db.ExecContext(ctx, query, u.ID, nullString(model.StringPtr(model.Deref(u.RemoteCalendarID))))
	return err
}

func (p *PostgresStore) FindWorksByUser(ctx context.Context, userID string) ([]model.Work, error) {
	ctx, cancel, err := p.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	query := fmt.Sprintf(`SELECT id, user_id, name, date, pay, payday, color, start_time, end_time
		FROM %s WHERE user_id = $1 ORDER BY seq`, p.table("works"))
	rows, err := p.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Work
	for rows.Next() {
		var w model.Work
		if err := rows.Scan(&w.ID, &w.UserID, &w.Name, &w.Date, &w.Pay, &w.Payday, &w.Color, &w.Start, &w.End); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (p *PostgresStore) SaveWork(ctx context.Context, w model.Work) (model.Work, error) {
	if w.UserID == "" {
		return model.Work{}, fmt.Errorf("%w: work without owner", ErrInvalidRecord)
	}
	ctx, cancel, err := p.begin(ctx)
	if err != nil {
		return model.Work{}, err
	}
	defer cancel()
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (id, user_id, name, date, pay, payday, color, start_time, end_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, date = EXCLUDED.date, pay = EXCLUDED.pay,
			payday = EXCLUDED.payday, color = EXCLUDED.color,
			start_time = EXCLUDED.start_time, end_time = EXCLUDED.end_time`, p.table("works"))
	_, err = p.db.ExecContext(ctx, query, w.ID, w.UserID, w.Name, w.Date, w.Pay, w.Payday, w.Color, w.Start, w.End)
	if err != nil {
		return model.Work{}, err
	}
	return w, nil
}

func (p *PostgresStore) FindLedgerByUser(ctx context.Context, userID string) ([]model.LedgerEntry, error) {
	ctx, cancel, err := p.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	query := fmt.Sprintf(`SELECT id, user_id, kind, date, amount, content
		FROM %s WHERE user_id = $1 ORDER BY seq`, p.table("ledger"))
	rows, err := p.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.LedgerEntry
	for rows.Next() {
		var e model.LedgerEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Kind, &e.Date, &e.Amount, &e.Content); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (p *PostgresStore) SaveLedgerEntry(ctx context.Context, e model.LedgerEntry) (model.LedgerEntry, error) {
	if e.UserID == "" {
		return model.LedgerEntry{}, fmt.Errorf("%w: ledger entry without owner", ErrInvalidRecord)
	}
	if e.Kind != model.LedgerIncome && e.Kind != model.LedgerExpense {
		return model.LedgerEntry{}, fmt.Errorf("%w: ledger kind %q", ErrInvalidRecord, e.Kind)
	}
	ctx, cancel, err := p.begin(ctx)
	if err != nil {
		return model.LedgerEntry{}, err
	}
	defer cancel()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (id, user_id, kind, date, amount, content)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			kind = EXCLUDED.kind, date = EXCLUDED.date,
			amount = EXCLUDED.amount, content = EXCLUDED.content`, p.table("ledger"))
	_, err = p.db.ExecContext(ctx, query, e.ID, e.UserID, string(e.Kind), e.Date, e.Amount, e.Content)
	if err != nil {
		return model.LedgerEntry{}, err
	}
	return e, nil
}

func (p *PostgresStore) DailyTotals(ctx context.Context, userID string) (model.DailyTotals, error) {
	ctx, cancel, err := p.begin(ctx)
	if err != nil {
		return model.DailyTotals{}, err
	}
	defer cancel()
	query := fmt.Sprintf(`SELECT kind, date, SUM(amount) FROM %s
		WHERE user_id = $1 GROUP BY kind, date`, p.table("ledger"))
	rows, err := p.db.QueryContext(ctx, query, userID)
	if err != nil {
		return model.DailyTotals{}, err
	}
	defer rows.Close()
	totals := model.DailyTotals{Income: map[string]int64{}, Expense: map[string]int64{}}
	for rows.Next() {
		var (
			kind   string
			date   string
			amount int64
		)
		if err := rows.Scan(&kind, &date, &amount); err != nil {
			return model.DailyTotals{}, err
		}
		switch model.LedgerKind(kind) {
		case model.LedgerIncome:
			totals.Income[date] = amount
		case model.LedgerExpense:
			totals.Expense[date] = amount
		}
	}
	return totals, rows.Err()
}

// mapPostgresError translates unique violations into ErrDuplicateRemoteKey.
// The schedules table has no other unique constraint reachable from Save.
func mapPostgresError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == postgresUniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicateRemoteKey, pqErr.Message)
	}
	return err
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func postgresQuoteIdentifier(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return "\"\""
	}
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}
