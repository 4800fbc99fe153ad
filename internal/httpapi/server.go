// Package httpapi exposes the schedule operations over HTTP. Callers are
// authenticated upstream; the user id arrives in the X-User-ID header.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/Tiliavir/schedsync/internal/calsync"
	"github.com/Tiliavir/schedsync/internal/model"
	"github.com/Tiliavir/schedsync/internal/storage"
)

// UserHeader carries the authenticated user id.
const UserHeader = "X-User-ID"

// Engine is the sync surface the API drives.
type Engine interface {
	CreateSchedules(ctx context.Context, user model.User, inputs []model.ScheduleInput) ([]model.Schedule, error)
	UpdateSchedule(ctx context.Context, user model.User, id string, in model.ScheduleInput) (model.Schedule, error)
	DeleteSchedule(ctx context.Context, user model.User, id string) error
	CalendarView(ctx context.Context, user model.User) (model.CalendarView, error)
}

// Store holds the records the API writes directly.
type Store interface {
	FindUser(ctx context.Context, id string) (model.User, error)
	SaveWork(ctx context.Context, w model.Work) (model.Work, error)
	SaveLedgerEntry(ctx context.Context, e model.LedgerEntry) (model.LedgerEntry, error)
}

type ServerConfig struct {
	MaxBodyBytes int64
	Logger       log.Logger
}

type Server struct {
	engine  Engine
	store   Store
	cfg     ServerConfig
	logger  log.Logger
	schemas map[string]*jsonschema.Schema
	mux     *http.ServeMux
}

func NewServer(engine Engine, store Store, cfg ServerConfig) (*Server, error) {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	schemas, err := compileSchemas()
	if err != nil {
		return nil, err
	}
	s := &Server{engine: engine, store: store, cfg: cfg, logger: logger, schemas: schemas, mux: http.NewServeMux()}
	s.mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	s.mux.HandleFunc("GET /calendar", s.withUser(s.handleCalendar))
	s.mux.HandleFunc("POST /calendar/schedules", s.withUser(s.handleCreateSchedules))
	s.mux.HandleFunc("PUT /calendar/schedules/{id}", s.withUser(s.handleUpdateSchedule))
	s.mux.HandleFunc("DELETE /calendar/schedules/{id}", s.withUser(s.handleDeleteSchedule))
	s.mux.HandleFunc("POST /calendar/works", s.withUser(s.handleCreateWorks))
	s.mux.HandleFunc("POST /ledger/entries", s.withUser(s.handleCreateLedgerEntry))
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

type userHandler func(w http.ResponseWriter, r *http.Request, user model.User)

func (s *Server) withUser(next userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(UserHeader))
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing "+UserHeader+" header")
			return
		}
		user, err := s.store.FindUser(r.Context(), userID)
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "unknown user")
			return
		}
		if err != nil {
			level.Error(s.logger).Log("msg", "loading user", "user", userID, "err", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "could not load user")
			return
		}
		next(w, r, user)
	}
}

type scheduleBatchRequest struct {
	Schedules []model.ScheduleInput `json:"schedules"`
}

type workBatchRequest struct {
	Works []model.Work `json:"works"`
}

type ledgerEntryRequest struct {
	Kind    model.LedgerKind `json:"kind"`
	Date    string           `json:"date"`
	Amount  int64            `json:"amount"`
	Content string           `json:"content"`
}

type resultResponse struct {
	Success   bool            `json:"success"`
	Created   int             `json:"created,omitempty"`
	Schedule  *model.Schedule `json:"schedule,omitempty"`
	Code      string          `json:"code,omitempty"`
	Message   string          `json:"message,omitempty"`
	Committed *int            `json:"committed,omitempty"`
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request, user model.User) {
	view, err := s.engine.CalendarView(r.Context(), user)
	if err != nil {
		s.writeSyncError(w, user, "calendar view", err, nil)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleCreateSchedules(w http.ResponseWriter, r *http.Request, user model.User) {
	var req scheduleBatchRequest
	if !s.decodeValidated(w, r, "schedule-batch.json", &req) {
		return
	}
	created, err := s.engine.CreateSchedules(r.Context(), user, req.Schedules)
	if err != nil {
		committed := len(created)
		s.writeSyncError(w, user, "create schedules", err, &committed)
		return
	}
	writeJSON(w, http.StatusCreated, resultResponse{Success: true, Created: len(created)})
}

func (s *Server) handleUpdateSchedule(w http.ResponseWriter, r *http.Request, user model.User) {
	var in model.ScheduleInput
	if !s.decodeValidated(w, r, "schedule.json", &in) {
		return
	}
	updated, err := s.engine.UpdateSchedule(r.Context(), user, r.PathValue("id"), in)
	if err != nil {
		s.writeSyncError(w, user, "update schedule", err, nil)
		return
	}
	writeJSON(w, http.StatusOK, resultResponse{Success: true, Schedule: &updated})
}

func (s *Server) handleDeleteSchedule(w http.ResponseWriter, r *http.Request, user model.User) {
	if err := s.engine.DeleteSchedule(r.Context(), user, r.PathValue("id")); err != nil {
		s.writeSyncError(w, user, "delete schedule", err, nil)
		return
	}
	writeJSON(w, http.StatusOK, resultResponse{Success: true})
}

func (s *Server) handleCreateWorks(w http.ResponseWriter, r *http.Request, user model.User) {
	var req workBatchRequest
	if !s.decodeValidated(w, r, "work-batch.json", &req) {
		return
	}
	for i, work := range req.Works {
		work.ID = ""
		work.UserID = user.ID
		if _, err := s.store.SaveWork(r.Context(), work); err != nil {
			level.Error(s.logger).Log("msg", "saving work", "user", user.ID, "index", i, "err", err)
			committed := i
			writeJSON(w, http.StatusInternalServerError, resultResponse{
				Code: "internal_error", Message: "could not save work", Committed: &committed,
			})
			return
		}
	}
	writeJSON(w, http.StatusCreated, resultResponse{Success: true, Created: len(req.Works)})
}

func (s *Server) handleCreateLedgerEntry(w http.ResponseWriter, r *http.Request, user model.User) {
	var req ledgerEntryRequest
	if !s.decodeValidated(w, r, "ledger-entry.json", &req) {
		return
	}
	entry, err := s.store.SaveLedgerEntry(r.Context(), model.LedgerEntry{
		UserID:  user.ID,
		Kind:    req.Kind,
		Date:    req.Date,
		Amount:  req.Amount,
		Content: req.Content,
	})
	if err != nil {
		level.Error(s.logger).Log("msg", "saving ledger entry", "user", user.ID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "could not save ledger entry")
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// writeSyncError maps an engine error to a coarse response. Remote statuses
// and causes are logged, never returned.
func (s *Server) writeSyncError(w http.ResponseWriter, user model.User, op string, err error, committed *int) {
	status, code, message := http.StatusInternalServerError, "internal_error", "operation failed"
	switch {
	case errors.Is(err, calsync.ErrInvalidInput):
		status, code, message = http.StatusBadRequest, "invalid_input", "invalid schedule"
	case errors.Is(err, calsync.ErrNotFound):
		status, code, message = http.StatusNotFound, "not_found", "schedule not found"
	case errors.Is(err, calsync.ErrAuth):
		status, code, message = http.StatusForbidden, "calendar_unauthorized", "remote calendar access is not authorized"
	case errors.Is(err, calsync.ErrRemoteAPI):
		status, code, message = http.StatusBadGateway, "calendar_unavailable", "remote calendar rejected the change"
	case errors.Is(err, calsync.ErrGeneratorExhausted):
		status, code, message = http.StatusServiceUnavailable, "id_exhausted", "could not allocate an event id"
	}
	logFn := level.Warn
	if status == http.StatusInternalServerError {
		logFn = level.Error
	}
	logFn(s.logger).Log("msg", op+" failed", "user", user.ID, "err", err)
	writeJSON(w, status, resultResponse{Code: code, Message: message, Committed: committed})
}

func (s *Server) readRequestBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body exceeds configured limit")
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "bad_request", "failed to read request body")
		return nil, false
	}
	return body, true
}

func (s *Server) decodeValidated(w http.ResponseWriter, r *http.Request, schema string, dst any) bool {
	body, ok := s.readRequestBody(w, r)
	if !ok {
		return false
	}
	if err := validate(s.schemas[schema], body); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, "invalid_input", verr.Error())
			return false
		}
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json body")
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"code":    code,
		"message": message,
	})
}
