package gcal_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Tiliavir/schedsync/internal/gcal"
)

type recorded struct {
	method string
	path   string
	auth   string
	query  string
	body   map[string]any
}

type fakeCalendar struct {
	mu       sync.Mutex
	requests []recorded
	handle   func(w http.ResponseWriter, r *http.Request)
}

func (f *fakeCalendar) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec := recorded{method: r.Method, path: r.URL.Path, auth: r.Header.Get("Authorization"), query: r.URL.RawQuery}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&rec.body)
	}
	f.mu.Lock()
	f.requests = append(f.requests, rec)
	f.mu.Unlock()
	f.handle(w, r)
}

func newClient(t *testing.T, handle func(w http.ResponseWriter, r *http.Request)) (*gcal.Client, *fakeCalendar) {
	t.Helper()
	fake := &fakeCalendar{handle: handle}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return gcal.NewClient(gcal.Config{Endpoint: srv.URL + "/", Timeout: 2 * time.Second}), fake
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestCreateEventSendsAllDayEvent(t *testing.T) {
	client, fake := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"id":      "abc123abc123abc123abc123abc123",
			"summary": "Dentist",
			"start":   map[string]string{"date": "2024-03-10"},
			"end":     map[string]string{"date": "2024-03-11"},
		})
	})

	ev, err := client.CreateEvent(context.Background(), "tok-1", "cal-1", gcal.EventRequest{
		ID:      "abc123abc123abc123abc123abc123",
		Summary: "Dentist",
		Start:   gcal.EventTime{Date: "2024-03-10"},
		End:     gcal.EventTime{Date: "2024-03-11"},
	})
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	if ev.ID != "abc123abc123abc123abc123abc123" || ev.Start == nil || ev.Start.Date != "2024-03-10" {
		t.Errorf("CreateEvent = %+v", ev)
	}

	if len(fake.requests) != 1 {
		t.Fatalf("requests = %d, want 1", len(fake.requests))
	}
	req := fake.requests[0]
	if req.method != http.MethodPost || req.path != "/calendars/cal-1/events" {
		t.Errorf("request = %s %s", req.method, req.path)
	}
	if req.auth != "Bearer tok-1" {
		t.Errorf("Authorization = %q", req.auth)
	}
	if req.body["id"] != "abc123abc123abc123abc123abc123" || req.body["summary"] != "Dentist" {
		t.Errorf("body = %v", req.body)
	}
	start, _ := req.body["start"].(map[string]any)
	end, _ := req.body["end"].(map[string]any)
	if start["date"] != "2024-03-10" || end["date"] != "2024-03-11" {
		t.Errorf("start/end = %v / %v", start, end)
	}
}

func TestCreateEventConflict(t *testing.T) {
	client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error": map[string]any{"code": 409, "message": "The requested identifier already exists."},
		})
	})
	_, err := client.CreateEvent(context.Background(), "tok", "cal-1", gcal.EventRequest{ID: "x", Summary: "s"})
	if !gcal.IsConflict(err) {
		t.Fatalf("err = %v, want conflict", err)
	}
	var se *gcal.StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusConflict {
		t.Fatalf("err = %#v, want *StatusError 409", err)
	}
}

func TestUpdateEvent(t *testing.T) {
	client, fake := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"id": "evt-1"})
	})
	err := client.UpdateEvent(context.Background(), "tok", "cal-1", "evt-1", gcal.EventRequest{
		Summary: "Renamed",
		Start:   gcal.EventTime{Date: "2024-04-01"},
		End:     gcal.EventTime{Date: "2024-04-02"},
	})
	if err != nil {
		t.Fatalf("UpdateEvent: %v", err)
	}
	req := fake.requests[0]
	if req.method != http.MethodPut || req.path != "/calendars/cal-1/events/evt-1" {
		t.Errorf("request = %s %s", req.method, req.path)
	}
	if req.body["summary"] != "Renamed" {
		t.Errorf("body = %v", req.body)
	}
}

func TestUpdateEventServerError(t *testing.T) {
	client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": map[string]any{"code": 500, "message": "backend error"},
		})
	})
	err := client.UpdateEvent(context.Background(), "tok", "cal-1", "evt-1", gcal.EventRequest{Summary: "x"})
	var se *gcal.StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusInternalServerError {
		t.Fatalf("err = %v, want *StatusError 500", err)
	}
	if gcal.IsConflict(err) {
		t.Error("500 reported as conflict")
	}
}

func TestDeleteEvent(t *testing.T) {
	client, fake := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	if err := client.DeleteEvent(context.Background(), "tok", "cal-1", "evt-9"); err != nil {
		t.Fatalf("DeleteEvent: %v", err)
	}
	req := fake.requests[0]
	if req.method != http.MethodDelete || req.path != "/calendars/cal-1/events/evt-9" {
		t.Errorf("request = %s %s", req.method, req.path)
	}
}

func TestDeleteEventNotFound(t *testing.T) {
	client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": map[string]any{"code": 404, "message": "Not Found"}})
	})
	err := client.DeleteEvent(context.Background(), "tok", "cal-1", "evt-9")
	var se *gcal.StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusNotFound {
		t.Fatalf("err = %v, want *StatusError 404", err)
	}
}

func TestListEventsFollowsPages(t *testing.T) {
	client, fake := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("pageToken") == "" {
			writeJSON(w, http.StatusOK, map[string]any{
				"items": []map[string]any{
					{"id": "e1", "summary": "One", "start": map[string]string{"date": "2024-03-10"}},
					{"id": "e2", "summary": "Weekly", "recurrence": []string{"RRULE:FREQ=WEEKLY"}},
				},
				"nextPageToken": "p2",
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": []map[string]any{
				{"id": "e3", "summary": "Three", "start": map[string]string{"dateTime": "2024-03-12T09:00:00Z"}, "recurringEventId": "e2"},
			},
		})
	})

	events, err := client.ListEvents(context.Background(), "tok", "cal-1")
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}
	if len(fake.requests) != 2 {
		t.Errorf("requests = %d, want 2", len(fake.requests))
	}
	if events[0].Recurring() || !events[1].Recurring() || !events[2].Recurring() {
		t.Errorf("Recurring flags wrong: %+v", events)
	}
	if events[2].Start == nil || events[2].Start.DateTime != "2024-03-12T09:00:00Z" {
		t.Errorf("events[2].Start = %+v", events[2].Start)
	}
	if events[1].Start != nil {
		t.Errorf("events[1].Start = %+v, want nil", events[1].Start)
	}
}

func TestCallsAreBoundedByTimeout(t *testing.T) {
	fake := &fakeCalendar{handle: func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	client := gcal.NewClient(gcal.Config{Endpoint: srv.URL + "/", Timeout: 50 * time.Millisecond})

	start := time.Now()
	err := client.DeleteEvent(context.Background(), "tok", "cal-1", "evt-1")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	var se *gcal.StatusError
	if errors.As(err, &se) {
		t.Errorf("timeout surfaced as status error %v", se)
	}
	if time.Since(start) > time.Second {
		t.Errorf("call took %v, want bounded by timeout", time.Since(start))
	}
}

func TestSharedClientSendsEachCallersToken(t *testing.T) {
	client, fake := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	tokens := []string{"tok-alice", "tok-bob", "tok-carol", "tok-dave"}
	var wg sync.WaitGroup
	for _, tok := range tokens {
		wg.Add(1)
		go func(tok string) {
			defer wg.Done()
			if err := client.DeleteEvent(context.Background(), tok, "cal-1", tok); err != nil {
				t.Errorf("DeleteEvent(%s): %v", tok, err)
			}
		}(tok)
	}
	wg.Wait()

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.requests) != len(tokens) {
		t.Fatalf("requests = %d, want %d", len(fake.requests), len(tokens))
	}
	for _, req := range fake.requests {
		tok := req.path[len("/calendars/cal-1/events/"):]
		if req.auth != "Bearer "+tok {
			t.Errorf("event %s sent Authorization %q", tok, req.auth)
		}
	}
}

func TestEmptyTokenIsRejectedLocally(t *testing.T) {
	client, fake := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	if err := client.DeleteEvent(context.Background(), "", "cal-1", "evt-1"); err == nil {
		t.Fatal("expected error for empty token")
	}
	if len(fake.requests) != 0 {
		t.Errorf("requests = %d, want none", len(fake.requests))
	}
}
