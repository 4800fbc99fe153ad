// Package icsexport renders schedules as an iCalendar (RFC 5545) document.
package icsexport

import (
	"fmt"
	"io"
	"strconv"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/Tiliavir/schedsync/internal/model"
	"github.com/Tiliavir/schedsync/internal/timecalc"
)

const (
	productID = "-//schedsync//schedule export//EN"

	propColor  = ical.ComponentProperty("X-SCHEDSYNC-COLOR")
	propBudget = ical.ComponentProperty("X-SCHEDSYNC-BUDGET")
)

// Write serializes schedules to w and returns how many became events.
// Schedules without a usable date are left out.
func Write(w io.Writer, schedules []model.Schedule, now time.Time) (int, error) {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)

	written := 0
	for _, s := range schedules {
		start, allDay, err := timecalc.ParseScheduleDate(s.Date)
		if err != nil {
			continue
		}
		ev := cal.AddEvent(uid(s))
		ev.SetDtStampTime(now.UTC())
		ev.SetSummary(s.Name)
		if allDay {
			ev.SetAllDayStartAt(start)
			ev.SetAllDayEndAt(timecalc.NextDay(start))
		} else {
			ev.SetStartAt(start)
		}
		ev.AddProperty(propColor, strconv.Itoa(s.Color))
		if s.Budget != 0 {
			ev.AddProperty(propBudget, strconv.FormatInt(s.Budget, 10))
		}
		written++
	}
	if err := cal.SerializeTo(w); err != nil {
		return 0, fmt.Errorf("writing calendar: %w", err)
	}
	return written, nil
}

// uid prefers the remote event id so re-exports of synced schedules line up
// with the events already on the remote calendar.
func uid(s model.Schedule) string {
	if s.Linked() {
		return *s.RemoteEventID + "@" + *s.RemoteCalendarID
	}
	return s.ID + "@schedsync"
}
