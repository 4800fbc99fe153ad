package storage_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Tiliavir/schedsync/internal/model"
	"github.com/Tiliavir/schedsync/internal/storage"
)

func linked(userID, name, calID, eventID string) model.Schedule {
	return model.Schedule{
		UserID:           userID,
		Name:             name,
		Date:             "2024-03-10",
		RemoteCalendarID: model.StringPtr(calID),
		RemoteEventID:    model.StringPtr(eventID),
		Color:            2,
	}
}

func backends(t *testing.T) map[string]storage.Backend {
	t.Helper()
	return map[string]storage.Backend{
		"memory": storage.NewMemoryStore(),
		"file":   storage.NewFileStore(filepath.Join(t.TempDir(), "data.json")),
	}
}

func TestSaveAssignsIDAndFinds(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			saved, err := store.Save(ctx, linked("u1", "Dentist", "cal-1", "evt-1"))
			if err != nil {
				t.Fatalf("Save: %v", err)
			}
			if saved.ID == "" {
				t.Fatal("Save did not assign an id")
			}

			byID, err := store.FindByID(ctx, saved.ID)
			if err != nil {
				t.Fatalf("FindByID: %v", err)
			}
			if byID.Name != "Dentist" || model.Deref(byID.RemoteEventID) != "evt-1" {
				t.Errorf("FindByID = %+v", byID)
			}

			byKey, err := store.FindByRemoteKey(ctx, "cal-1", "evt-1")
			if err != nil {
				t.Fatalf("FindByRemoteKey: %v", err)
			}
			if byKey.ID != saved.ID {
				t.Errorf("FindByRemoteKey id = %q, want %q", byKey.ID, saved.ID)
			}

			exists, err := store.ExistsByRemoteKey(ctx, "cal-1", "evt-1")
			if err != nil || !exists {
				t.Errorf("ExistsByRemoteKey = %v, %v; want true", exists, err)
			}
			exists, err = store.ExistsByRemoteKey(ctx, "cal-2", "evt-1")
			if err != nil || exists {
				t.Errorf("ExistsByRemoteKey other calendar = %v, %v; want false", exists, err)
			}
		})
	}
}

func TestSaveRejectsDuplicateRemoteKey(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := store.Save(ctx, linked("u1", "A", "cal-1", "evt-1")); err != nil {
				t.Fatalf("Save: %v", err)
			}
			_, err := store.Save(ctx, linked("u2", "B", "cal-1", "evt-1"))
			if !errors.Is(err, storage.ErrDuplicateRemoteKey) {
				t.Fatalf("err = %v, want ErrDuplicateRemoteKey", err)
			}
			// Same event id under another calendar is a different key.
			if _, err := store.Save(ctx, linked("u2", "B", "cal-2", "evt-1")); err != nil {
				t.Fatalf("Save other calendar: %v", err)
			}
		})
	}
}

func TestSaveReplacesExisting(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			saved, err := store.Save(ctx, linked("u1", "Old", "cal-1", "evt-1"))
			if err != nil {
				t.Fatalf("Save: %v", err)
			}
			saved.Name = "New"
			if _, err := store.Save(ctx, saved); err != nil {
				t.Fatalf("Save update: %v", err)
			}
			all, err := store.FindByUser(ctx, "u1")
			if err != nil {
				t.Fatalf("FindByUser: %v", err)
			}
			if len(all) != 1 || all[0].Name != "New" {
				t.Errorf("FindByUser = %+v, want single renamed record", all)
			}
		})
	}
}

func TestSaveRejectsEventWithoutCalendar(t *testing.T) {
	store := storage.NewMemoryStore()
	s := model.Schedule{UserID: "u1", Name: "x", RemoteEventID: model.StringPtr("evt")}
	if _, err := store.Save(context.Background(), s); !errors.Is(err, storage.ErrInvalidRecord) {
		t.Fatalf("err = %v, want ErrInvalidRecord", err)
	}
}

func TestFindByUserFilters(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	for _, s := range []model.Schedule{
		{UserID: "u1", Name: "a"},
		{UserID: "u2", Name: "b"},
		{UserID: "u1", Name: "c"},
	} {
		if _, err := store.Save(ctx, s); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	got, err := store.FindByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("FindByUser: %v", err)
	}
	if len(got) != 2 || got[0].Name != "a" || got[1].Name != "c" {
		t.Errorf("FindByUser(u1) = %+v", got)
	}
}

func TestDeleteByID(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			saved, err := store.Save(ctx, model.Schedule{UserID: "u1", Name: "x"})
			if err != nil {
				t.Fatalf("Save: %v", err)
			}
			if err := store.DeleteByID(ctx, saved.ID); err != nil {
				t.Fatalf("DeleteByID: %v", err)
			}
			if _, err := store.FindByID(ctx, saved.ID); !errors.Is(err, storage.ErrNotFound) {
				t.Errorf("FindByID after delete err = %v, want ErrNotFound", err)
			}
			if err := store.DeleteByID(ctx, saved.ID); !errors.Is(err, storage.ErrNotFound) {
				t.Errorf("second DeleteByID err = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestReturnedScheduleIsDetached(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	saved, err := store.Save(ctx, linked("u1", "x", "cal-1", "evt-1"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	*saved.RemoteEventID = "mutated"
	if exists, _ := store.ExistsByRemoteKey(ctx, "cal-1", "evt-1"); !exists {
		t.Error("mutating a returned record changed stored state")
	}
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	if _, err := store.FindUser(ctx, "u1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("FindUser missing err = %v, want ErrNotFound", err)
	}
	if err := store.SaveUser(ctx, model.User{ID: "u1", RemoteCalendarID: model.StringPtr("cal-1")}); err != nil {
		t.Fatalf("SaveUser: %v", err)
	}
	u, err := store.FindUser(ctx, "u1")
	if err != nil {
		t.Fatalf("FindUser: %v", err)
	}
	if !u.Linked() || model.Deref(u.RemoteCalendarID) != "cal-1" {
		t.Errorf("FindUser = %+v", u)
	}
	if err := store.SaveUser(ctx, model.User{ID: "u1"}); err != nil {
		t.Fatalf("SaveUser unlink: %v", err)
	}
	u, _ = store.FindUser(ctx, "u1")
	if u.Linked() {
		t.Error("user still linked after unlink")
	}
}

func TestWorksAndLedger(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			w, err := store.SaveWork(ctx, model.Work{UserID: "u1", Name: "Cafe", Date: "2024-03-10", Pay: 12000})
			if err != nil {
				t.Fatalf("SaveWork: %v", err)
			}
			if w.ID == "" {
				t.Error("SaveWork did not assign an id")
			}
			works, err := store.FindWorksByUser(ctx, "u1")
			if err != nil || len(works) != 1 {
				t.Fatalf("FindWorksByUser = %v, %v", works, err)
			}

			entries := []model.LedgerEntry{
				{UserID: "u1", Kind: model.LedgerIncome, Date: "2024-03-10", Amount: 1000},
				{UserID: "u1", Kind: model.LedgerIncome, Date: "2024-03-10", Amount: 500},
				{UserID: "u1", Kind: model.LedgerExpense, Date: "2024-03-11", Amount: 300},
				{UserID: "u2", Kind: model.LedgerExpense, Date: "2024-03-11", Amount: 999},
			}
			for _, e := range entries {
				if _, err := store.SaveLedgerEntry(ctx, e); err != nil {
					t.Fatalf("SaveLedgerEntry: %v", err)
				}
			}
			totals, err := store.DailyTotals(ctx, "u1")
			if err != nil {
				t.Fatalf("DailyTotals: %v", err)
			}
			if totals.Income["2024-03-10"] != 1500 {
				t.Errorf("income 2024-03-10 = %d, want 1500", totals.Income["2024-03-10"])
			}
			if totals.Expense["2024-03-11"] != 300 {
				t.Errorf("expense 2024-03-11 = %d, want 300", totals.Expense["2024-03-11"])
			}
		})
	}
}

func TestSaveLedgerEntryRejectsUnknownKind(t *testing.T) {
	store := storage.NewMemoryStore()
	_, err := store.SaveLedgerEntry(context.Background(), model.LedgerEntry{UserID: "u1", Kind: "refund"})
	if !errors.Is(err, storage.ErrInvalidRecord) {
		t.Fatalf("err = %v, want ErrInvalidRecord", err)
	}
}

func TestFileStorePersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "data.json")
	first := storage.NewFileStore(path)
	saved, err := first.Save(ctx, linked("u1", "Dentist", "cal-1", "evt-1"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	second := storage.NewFileStore(path)
	got, err := second.FindByID(ctx, saved.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.Name != "Dentist" {
		t.Errorf("Name = %q, want Dentist", got.Name)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	if err := os.WriteFile(path, []byte("not json{{{"), 0o600); err != nil {
		t.Fatal(err)
	}
	store := storage.NewFileStore(path)
	if _, err := store.FindByUser(context.Background(), "u1"); err == nil {
		t.Fatal("expected error on corrupt JSON")
	}
	if _, err := os.Stat(path + ".corrupt"); err != nil {
		t.Errorf("corrupt backup not created: %v", err)
	}
}

func TestSumDaily(t *testing.T) {
	totals := storage.SumDaily([]model.LedgerEntry{
		{Kind: model.LedgerIncome, Date: "d1", Amount: 1},
		{Kind: model.LedgerIncome, Date: "d1", Amount: 2},
		{Kind: model.LedgerExpense, Date: "d2", Amount: 5},
	})
	if totals.Income["d1"] != 3 || totals.Expense["d2"] != 5 || len(totals.Expense) != 1 {
		t.Errorf("SumDaily = %+v", totals)
	}
}
