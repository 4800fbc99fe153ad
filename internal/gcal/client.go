// Package gcal is a thin Google Calendar client used for pushing schedules as
// all-day events and listing events back. Every call carries the caller's
// bearer token; the client itself holds no credentials.
package gcal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// DefaultTimeout bounds each remote call.
const DefaultTimeout = 10 * time.Second

// EventTime is either an all-day Date (YYYY-MM-DD) or a DateTime (RFC3339).
type EventTime struct {
	Date     string `json:"date,omitempty"`
	DateTime string `json:"dateTime,omitempty"`
}

// EventRequest is the payload for creating or replacing an event.
type EventRequest struct {
	ID      string
	Summary string
	Start   EventTime
	End     EventTime
}

// RemoteEvent is an event as reported by the provider.
type RemoteEvent struct {
	ID               string
	Summary          string
	Start            *EventTime
	End              *EventTime
	Recurrence       []string
	RecurringEventID string
}

// Recurring reports whether the event is a recurring series or an instance of one.
func (e RemoteEvent) Recurring() bool {
	return len(e.Recurrence) > 0 || e.RecurringEventID != ""
}

// StatusError is a non-2xx provider response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("calendar API error %d", e.StatusCode)
	}
	return fmt.Sprintf("calendar API error %d: %s", e.StatusCode, e.Body)
}

// IsConflict reports whether err is a 409 from the provider, which for inserts
// means the event id is already taken.
func IsConflict(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusConflict
}

// Config configures a Client. Zero values select production defaults.
type Config struct {
	// Endpoint overrides the API base URL, e.g. for tests.
	Endpoint string
	Timeout  time.Duration
	// Transport is the base round tripper under the bearer token transport.
	Transport http.RoundTripper
}

// Client talks to the Google Calendar v3 API. It is safe for concurrent use.
// One calendar.Service is shared; the caller's token travels in the request
// context.
type Client struct {
	endpoint string
	timeout  time.Duration
	base     http.RoundTripper

	once   sync.Once
	svc    *calendar.Service
	svcErr error
}

// NewClient returns a client for cfg.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Transport == nil {
		cfg.Transport = http.DefaultTransport
	}
	return &Client{endpoint: cfg.Endpoint, timeout: cfg.Timeout, base: cfg.Transport}
}

type tokenKey struct{}

// bearerTransport sets the Authorization header from the token stored in
// the request context.
type bearerTransport struct {
	base http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	tok, _ := req.Context().Value(tokenKey{}).(*oauth2.Token)
	if tok == nil || tok.AccessToken == "" {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, errors.New("calendar request without access token")
	}
	out := req.Clone(req.Context())
	tok.SetAuthHeader(out)
	return t.base.RoundTrip(out)
}

// service returns the shared calendar service and a context carrying token.
func (c *Client) service(ctx context.Context, token string) (*calendar.Service, context.Context, error) {
	c.once.Do(func() {
		opts := []option.ClientOption{
			option.WithHTTPClient(&http.Client{Transport: &bearerTransport{base: c.base}}),
		}
		if c.endpoint != "" {
			opts = append(opts, option.WithEndpoint(c.endpoint))
		}
		c.svc, c.svcErr = calendar.NewService(context.Background(), opts...)
	})
	if c.svcErr != nil {
		return nil, nil, fmt.Errorf("creating calendar service: %w", c.svcErr)
	}
	tok := &oauth2.Token{AccessToken: token, TokenType: "Bearer"}
	return c.svc, context.WithValue(ctx, tokenKey{}, tok), nil
}

// CreateEvent inserts req into calendarID. req.ID is the client-chosen event id.
func (c *Client) CreateEvent(ctx context.Context, token, calendarID string, req EventRequest) (RemoteEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	svc, ctx, err := c.service(ctx, token)
	if err != nil {
		return RemoteEvent{}, err
	}
	created, err := svc.Events.Insert(calendarID, toAPIEvent(req)).Context(ctx).Do()
	if err != nil {
		return RemoteEvent{}, mapError(err)
	}
	return fromAPIEvent(created), nil
}

// UpdateEvent replaces the event's summary and times.
func (c *Client) UpdateEvent(ctx context.Context, token, calendarID, eventID string, req EventRequest) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	svc, ctx, err := c.service(ctx, token)
	if err != nil {
		return err
	}
	req.ID = eventID
	if _, err := svc.Events.Update(calendarID, eventID, toAPIEvent(req)).Context(ctx).Do(); err != nil {
		return mapError(err)
	}
	return nil
}

// DeleteEvent removes the event.
func (c *Client) DeleteEvent(ctx context.Context, token, calendarID, eventID string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	svc, ctx, err := c.service(ctx, token)
	if err != nil {
		return err
	}
	if err := svc.Events.Delete(calendarID, eventID).Context(ctx).Do(); err != nil {
		return mapError(err)
	}
	return nil
}

// ListEvents returns every event in calendarID, following page tokens.
// The timeout applies to the listing as a whole.
func (c *Client) ListEvents(ctx context.Context, token, calendarID string) ([]RemoteEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	svc, ctx, err := c.service(ctx, token)
	if err != nil {
		return nil, err
	}
	var all []RemoteEvent
	err = svc.Events.List(calendarID).Pages(ctx, func(page *calendar.Events) error {
		for _, item := range page.Items {
			if item == nil {
				continue
			}
			all = append(all, fromAPIEvent(item))
		}
		return nil
	})
	if err != nil {
		return nil, mapError(err)
	}
	return all, nil
}

func mapError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		body := gerr.Body
		if body == "" {
			body = gerr.Message
		}
		return &StatusError{StatusCode: gerr.Code, Body: body}
	}
	return err
}

func toAPIEvent(req EventRequest) *calendar.Event {
	return &calendar.Event{
		Id:      req.ID,
		Summary: req.Summary,
		Start:   &calendar.EventDateTime{Date: req.Start.Date, DateTime: req.Start.DateTime},
		End:     &calendar.EventDateTime{Date: req.End.Date, DateTime: req.End.DateTime},
	}
}

func fromAPIEvent(ev *calendar.Event) RemoteEvent {
	out := RemoteEvent{
		ID:               ev.Id,
		Summary:          ev.Summary,
		Recurrence:       ev.Recurrence,
		RecurringEventID: ev.RecurringEventId,
	}
	if ev.Start != nil {
		out.Start = &EventTime{Date: ev.Start.Date, DateTime: ev.Start.DateTime}
	}
	if ev.End != nil {
		out.End = &EventTime{Date: ev.End.Date, DateTime: ev.End.DateTime}
	}
	return out
}
