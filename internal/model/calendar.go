package model

// Work is a shift entry shown on the calendar. It is never synced remotely.
type Work struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Date   string `json:"date"`
	Pay    int64  `json:"pay"`
	Payday string `json:"payday"`
	Color  int    `json:"color"`
	Start  string `json:"start"`
	End    string `json:"end"`
}

// LedgerKind distinguishes income from expense entries.
type LedgerKind string

const (
	LedgerIncome  LedgerKind = "income"
	LedgerExpense LedgerKind = "expense"
)

// LedgerEntry is a single income or expense line.
type LedgerEntry struct {
	ID      string     `json:"id"`
	UserID  string     `json:"user_id"`
	Kind    LedgerKind `json:"kind"`
	Date    string     `json:"date"`
	Amount  int64      `json:"amount"`
	Content string     `json:"content"`
}

// DailyTotals holds per-date sums keyed by date string. Map order carries no
// meaning; consumers sort the keys when display order matters.
type DailyTotals struct {
	Income  map[string]int64 `json:"income"`
	Expense map[string]int64 `json:"expense"`
}

// CalendarView is the composed read model for a user's calendar.
type CalendarView struct {
	Schedules    []Schedule       `json:"schedules"`
	Works        []Work           `json:"works"`
	DailyIncome  map[string]int64 `json:"daily_income"`
	DailyExpense map[string]int64 `json:"daily_expense"`
}
