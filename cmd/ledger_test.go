package cmd

import (
	"errors"
	"testing"

	"github.com/Tiliavir/schedsync/internal/model"
)

func TestParseLedgerArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		date    string
		want    model.LedgerEntry
		wantErr bool
	}{
		{
			name: "income",
			args: []string{"income", "1500"},
			date: "2024-03-01",
			want: model.LedgerEntry{Kind: model.LedgerIncome, Date: "2024-03-01", Amount: 1500, Content: "note"},
		},
		{
			name: "expense",
			args: []string{"expense", "0"},
			date: "2024-12-31",
			want: model.LedgerEntry{Kind: model.LedgerExpense, Date: "2024-12-31", Amount: 0, Content: "note"},
		},
		{name: "unknown kind", args: []string{"gift", "10"}, date: "2024-03-01", wantErr: true},
		{name: "negative amount", args: []string{"income", "-5"}, date: "2024-03-01", wantErr: true},
		{name: "non-numeric amount", args: []string{"income", "ten"}, date: "2024-03-01", wantErr: true},
		{name: "bad date", args: []string{"income", "10"}, date: "01.03.2024", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseLedgerArgs(tt.args, tt.date, "note")
			if tt.wantErr {
				if !errors.Is(err, errUsage) {
					t.Fatalf("err = %v, want usage error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseLedgerArgsDefaultsToToday(t *testing.T) {
	got, err := parseLedgerArgs([]string{"income", "1"}, "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Date != today() {
		t.Errorf("date = %q, want %q", got.Date, today())
	}
}
