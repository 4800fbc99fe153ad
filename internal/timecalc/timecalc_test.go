package timecalc_test

import (
	"math"
	"testing"
	"time"

	"github.com/Tiliavir/schedsync/internal/timecalc"
)

func TestAllDaySpan(t *testing.T) {
	tests := []struct {
		date      string
		wantStart string
		wantEnd   string
	}{
		{"2024-03-01", "2024-03-01", "2024-03-02"},
		{"2024-02-28", "2024-02-28", "2024-02-29"},
		{"2024-02-29", "2024-02-29", "2024-03-01"},
		{"2023-12-31", "2023-12-31", "2024-01-01"},
	}
	for _, tt := range tests {
		start, end, err := timecalc.AllDaySpan(tt.date)
		if err != nil {
			t.Fatalf("AllDaySpan(%q): %v", tt.date, err)
		}
		if start != tt.wantStart || end != tt.wantEnd {
			t.Errorf("AllDaySpan(%q) = %q, %q, want %q, %q", tt.date, start, end, tt.wantStart, tt.wantEnd)
		}
	}
}

func TestAllDaySpanRejectsDateTime(t *testing.T) {
	if _, _, err := timecalc.AllDaySpan("2024-03-01T10:00:00Z"); err == nil {
		t.Fatal("expected error for date-time input")
	}
	if _, _, err := timecalc.AllDaySpan(""); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestParseScheduleDate(t *testing.T) {
	d, allDay, err := timecalc.ParseScheduleDate("2024-03-10")
	if err != nil {
		t.Fatalf("ParseScheduleDate date: %v", err)
	}
	if !allDay || !d.Equal(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("ParseScheduleDate date = %v, %v", d, allDay)
	}

	dt, allDay, err := timecalc.ParseScheduleDate("2024-03-10T09:30:00+09:00")
	if err != nil {
		t.Fatalf("ParseScheduleDate date-time: %v", err)
	}
	if allDay {
		t.Error("expected timed value")
	}
	if dt.Hour() != 9 || dt.Minute() != 30 {
		t.Errorf("ParseScheduleDate date-time = %v", dt)
	}

	if _, _, err := timecalc.ParseScheduleDate("next tuesday"); err == nil {
		t.Error("expected error for garbage")
	}
}

func TestDayKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2024-03-10", "2024-03-10"},
		{"2024-03-10T23:30:00-05:00", "2024-03-10"},
		{"", ""},
		{"garbage", ""},
	}
	for _, tt := range tests {
		if got := timecalc.DayKey(tt.in); got != tt.want {
			t.Errorf("DayKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSortedDays(t *testing.T) {
	got := timecalc.SortedDays(map[string]int64{"2024-03-10": 1, "2024-01-02": 2, "2024-02-15": 3})
	want := []string{"2024-01-02", "2024-02-15", "2024-03-10"}
	if len(got) != len(want) {
		t.Fatalf("SortedDays len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("SortedDays[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		amount int64
		want   string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1000000, "1,000,000"},
		{-12345, "-12,345"},
		{math.MaxInt64, "9,223,372,036,854,775,807"},
		{math.MinInt64, "-9,223,372,036,854,775,808"},
	}
	for _, tt := range tests {
		if got := timecalc.FormatAmount(tt.amount); got != tt.want {
			t.Errorf("FormatAmount(%d) = %q, want %q", tt.amount, got, tt.want)
		}
	}
}
