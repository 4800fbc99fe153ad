package model

// DefaultColor is the palette index assigned to schedules imported from the
// remote calendar, which has no notion of our colors.
const DefaultColor = 1

// Schedule is a local calendar entry, optionally mirrored to a remote calendar.
type Schedule struct {
	ID               string  `json:"id"`
	UserID           string  `json:"user_id"`
	RemoteCalendarID *string `json:"remote_calendar_id"`
	RemoteEventID    *string `json:"remote_event_id"`
	Name             string  `json:"name"`
	// Date is an ISO date for pushed schedules. Pulled schedules carry the
	// provider's dateTime or date value verbatim and may be empty.
	Date   string `json:"date"`
	Budget int64  `json:"budget"`
	Color  int    `json:"color"`
}

// Linked reports whether the schedule is mirrored to a remote event.
func (s Schedule) Linked() bool {
	return s.RemoteCalendarID != nil && s.RemoteEventID != nil
}

// ScheduleInput is the user-supplied payload for creating or updating a schedule.
type ScheduleInput struct {
	Name   string `json:"name"`
	Date   string `json:"date"`
	Budget int64  `json:"budget"`
	Color  int    `json:"color"`
}

// User is the authenticated user context driving sync operations.
type User struct {
	ID string `json:"id"`
	// RemoteCalendarID is nil when the user has not linked a remote calendar.
	RemoteCalendarID *string `json:"remote_calendar_id"`
}

// Linked reports whether the user has a remote calendar.
func (u User) Linked() bool {
	return u.RemoteCalendarID != nil && *u.RemoteCalendarID != ""
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
