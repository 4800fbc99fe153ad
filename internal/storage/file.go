package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/Tiliavir/schedsync/internal/model"
)

// document is the top-level structure stored in the JSON data file.
type document struct {
	Users     []model.User        `json:"users"`
	Schedules []model.Schedule    `json:"schedules"`
	Works     []model.Work        `json:"works"`
	Ledger    []model.LedgerEntry `json:"ledger"`
}

// FileStore keeps all records in a single JSON document. With an empty path
// the document lives only in memory.
type FileStore struct {
	mu   sync.Mutex
	path string
	mem  document
}

// NewMemoryStore returns a store that never touches disk.
func NewMemoryStore() *FileStore {
	return &FileStore{}
}

// NewFileStore returns a store persisting to path. The file is created on
// first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Close() error { return nil }

// load reads the document from disk. A missing file yields an empty document.
func (s *FileStore) load() (document, error) {
	if s.path == "" {
		return s.mem, nil
	}
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return document{}, nil
	}
	if err != nil {
		return document{}, fmt.Errorf("storage error reading %s: %w", s.path, err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		// Back up corrupt file and abort.
		backupPath := s.path + ".corrupt"
		_ = os.Rename(s.path, backupPath)
		return document{}, fmt.Errorf("corrupt JSON in %s (backed up to %s): %w", s.path, backupPath, err)
	}
	return doc, nil
}

// save atomically writes the document.
func (s *FileStore) save(doc document) error {
	if s.path == "" {
		s.mem = doc
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("storage error creating directories: %w", err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("storage error marshalling JSON: %w", err)
	}
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("storage error writing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("storage error renaming temp file: %w", err)
	}
	return nil
}

func (s *FileStore) read(fn func(doc *document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return err
	}
	return fn(&doc)
}

func (s *FileStore) write(fn func(doc *document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(&doc); err != nil {
		return err
	}
	return s.save(doc)
}

func (s *FileStore) FindByUser(_ context.Context, userID string) ([]model.Schedule, error) {
	var out []model.Schedule
	err := s.read(func(doc *document) error {
		for _, sc := range doc.Schedules {
			if sc.UserID == userID {
				out = append(out, cloneSchedule(sc))
			}
		}
		return nil
	})
	return out, err
}

func (s *FileStore) FindByID(_ context.Context, id string) (model.Schedule, error) {
	var out model.Schedule
	err := s.read(func(doc *document) error {
		for _, sc := range doc.Schedules {
			if sc.ID == id {
				out = cloneSchedule(sc)
				return nil
			}
		}
		return fmt.Errorf("schedule %s: %w", id, ErrNotFound)
	})
	return out, err
}

func (s *FileStore) FindByRemoteKey(_ context.Context, calendarID, eventID string) (model.Schedule, error) {
	var out model.Schedule
	err := s.read(func(doc *document) error {
		if i := indexByRemoteKey(doc.Schedules, calendarID, eventID); i >= 0 {
			out = cloneSchedule(doc.Schedules[i])
			return nil
		}
		return fmt.Errorf("schedule for event %s/%s: %w", calendarID, eventID, ErrNotFound)
	})
	return out, err
}

func (s *FileStore) ExistsByRemoteKey(_ context.Context, calendarID, eventID string) (bool, error) {
	var found bool
	err := s.read(func(doc *document) error {
		found = indexByRemoteKey(doc.Schedules, calendarID, eventID) >= 0
		return nil
	})
	return found, err
}

func (s *FileStore) Save(_ context.Context, sc model.Schedule) (model.Schedule, error) {
	if err := validateSchedule(sc); err != nil {
		return model.Schedule{}, err
	}
	sc = cloneSchedule(sc)
	err := s.write(func(doc *document) error {
		if sc.RemoteEventID != nil {
			i := indexByRemoteKey(doc.Schedules, *sc.RemoteCalendarID, *sc.RemoteEventID)
			if i >= 0 && doc.Schedules[i].ID != sc.ID {
				return fmt.Errorf("event %s/%s: %w", *sc.RemoteCalendarID, *sc.RemoteEventID, ErrDuplicateRemoteKey)
			}
		}
		if sc.ID == "" {
			sc.ID = uuid.NewString()
			doc.Schedules = append(doc.Schedules, sc)
			return nil
		}
		for i := range doc.Schedules {
			if doc.Schedules[i].ID == sc.ID {
				doc.Schedules[i] = sc
				return nil
			}
		}
		doc.Schedules = append(doc.Schedules, sc)
		return nil
	})
	if err != nil {
		return model.Schedule{}, err
	}
	return cloneSchedule(sc), nil
}

func (s *FileStore) DeleteByID(_ context.Context, id string) error {
	return s.write(func(doc *document) error {
		for i := range doc.Schedules {
			if doc.Schedules[i].ID == id {
				doc.Schedules = append(doc.Schedules[:i], doc.Schedules[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("schedule %s: %w", id, ErrNotFound)
	})
}

func (s *FileStore) FindUser(_ context.Context, id string) (model.User, error) {
	var out model.User
	err := s.read(func(doc *document) error {
		for _, u := range doc.Users {
			if u.ID == id {
				out = model.User{ID: u.ID, RemoteCalendarID: model.StringPtr(model.Deref(u.RemoteCalendarID))}
				return nil
			}
		}
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	})
	return out, err
}

func (s *FileStore) SaveUser(_ context.Context, u model.User) error {
	if u.ID == "" {
		return fmt.Errorf("%w: user without id", ErrInvalidRecord)
	}
	u.RemoteCalendarID = model.StringPtr(model.Deref(u.RemoteCalendarID))
	return s.write(func(doc *document) error {
		for i := range doc.Users {
			if doc.Users[i].ID == u.ID {
				doc.Users[i] = u
				return nil
			}
		}
		doc.Users = append(doc.Users, u)
		return nil
	})
}

func (s *FileStore) FindWorksByUser(_ context.Context, userID string) ([]model.Work, error) {
	var out []model.Work
	err := s.read(func(doc *document) error {
		for _, w := range doc.Works {
			if w.UserID == userID {
				out = append(out, w)
			}
		}
		return nil
	})
	return out, err
}

func (s *FileStore) SaveWork(_ context.Context, w model.Work) (model.Work, error) {
	if w.UserID == "" {
		return model.Work{}, fmt.Errorf("%w: work without owner", ErrInvalidRecord)
	}
	err := s.write(func(doc *document) error {
		if w.ID == "" {
			w.ID = uuid.NewString()
		}
		for i := range doc.Works {
			if doc.Works[i].ID == w.ID {
				doc.Works[i] = w
				return nil
			}
		}
		doc.Works = append(doc.Works, w)
		return nil
	})
	return w, err
}

func (s *FileStore) FindLedgerByUser(_ context.Context, userID string) ([]model.LedgerEntry, error) {
	var out []model.LedgerEntry
	err := s.read(func(doc *document) error {
		for _, e := range doc.Ledger {
			if e.UserID == userID {
				out = append(out, e)
			}
		}
		return nil
	})
	return out, err
}

func (s *FileStore) SaveLedgerEntry(_ context.Context, e model.LedgerEntry) (model.LedgerEntry, error) {
	if e.UserID == "" {
		return model.LedgerEntry{}, fmt.Errorf("%w: ledger entry without owner", ErrInvalidRecord)
	}
	if e.Kind != model.LedgerIncome && e.Kind != model.LedgerExpense {
		return model.LedgerEntry{}, fmt.Errorf("%w: ledger kind %q", ErrInvalidRecord, e.Kind)
	}
	err := s.write(func(doc *document) error {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		for i := range doc.Ledger {
			if doc.Ledger[i].ID == e.ID {
				doc.Ledger[i] = e
				return nil
			}
		}
		doc.Ledger = append(doc.Ledger, e)
		return nil
	})
	return e, err
}

func (s *FileStore) DailyTotals(ctx context.Context, userID string) (model.DailyTotals, error) {
	entries, err := s.FindLedgerByUser(ctx, userID)
	if err != nil {
		return model.DailyTotals{}, err
	}
	return SumDaily(entries), nil
}

func indexByRemoteKey(schedules []model.Schedule, calendarID, eventID string) int {
	for i, sc := range schedules {
		if sc.RemoteCalendarID != nil && sc.RemoteEventID != nil &&
			*sc.RemoteCalendarID == calendarID && *sc.RemoteEventID == eventID {
			return i
		}
	}
	return -1
}

// cloneSchedule detaches the optional fields so callers cannot mutate stored state.
func cloneSchedule(sc model.Schedule) model.Schedule {
	if sc.RemoteCalendarID != nil {
		v := *sc.RemoteCalendarID
		sc.RemoteCalendarID = &v
	}
	if sc.RemoteEventID != nil {
		v := *sc.RemoteEventID
		sc.RemoteEventID = &v
	}
	return sc
}
