package views

import (
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/example/roombooking/internal/domain"
)

const productID = "-//roombooking//meetings//EN"

// MeetingsICS renders meetings as an iCalendar document. Room names resolve
// against the cache; stamp becomes every event's DTSTAMP. Meetings without
// a start time are left out.
func MeetingsICS(src Source, meetings []domain.Meeting, stamp time.Time) string {
	rooms := make(map[domain.ID]string)
	for _, room := range src.Rooms() {
		rooms[room.ID.Canonical()] = room.Name
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRCalName("Meetings")

	for _, meeting := range meetings {
		if meeting.StartTime.IsZero() {
			continue
		}
		event := cal.AddEvent("meeting-" + string(meeting.ID.Canonical()) + "@roombooking")
		event.SetDtStampTime(stamp.UTC())
		event.SetStartAt(meeting.StartTime.UTC())
		if meeting.EndTime.After(meeting.StartTime) {
			event.SetEndAt(meeting.EndTime.UTC())
		}
		event.SetSummary(meeting.Title)
		if agenda := firstNonEmpty(meeting.Agenda, meeting.Description); agenda != "" {
			event.SetDescription(agenda)
		}
		if name := rooms[meeting.RoomID.Canonical()]; name != "" {
			event.SetLocation(name)
		}
		switch meeting.Status {
		case domain.MeetingCancelled:
			event.SetStatus(ical.ObjectStatusCancelled)
		case domain.MeetingPending:
			event.SetStatus(ical.ObjectStatusTentative)
		default:
			event.SetStatus(ical.ObjectStatusConfirmed)
		}
	}
	return cal.Serialize()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
