package testfixtures

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/roombooking/internal/application"
	"github.com/example/roombooking/internal/domain"
)

var (
	roomCounter    atomic.Int64
	userCounter    atomic.Int64
	meetingCounter atomic.Int64
)

var referenceTime = time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures:
// Monday 2024-03-04 09:00 UTC.
func ReferenceTime() time.Time {
	return referenceTime
}

// Record is one backend record as it appears inside a list response.
type Record map[string]any

// ----------------------------- Payload shapes -----------------------------

// BareArray encodes records as a top-level JSON array.
func BareArray(records ...Record) []byte {
	return mustJSON(nonNilRecords(records))
}

// DataEnvelope encodes records as {"data": [...]}.
func DataEnvelope(records ...Record) []byte {
	return mustJSON(map[string]any{"data": nonNilRecords(records)})
}

// KindEnvelope encodes records under the plural key of kind, e.g.
// {"rooms": [...]}.
func KindEnvelope(kind domain.Kind, records ...Record) []byte {
	return mustJSON(map[string]any{kind.Plural(): nonNilRecords(records)})
}

// Single encodes one record as a bare object, the shape most backends use
// for write responses.
func Single(record Record) []byte {
	return mustJSON(record)
}

func nonNilRecords(records []Record) []Record {
	if records == nil {
		return []Record{}
	}
	return records
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("testfixtures: encode payload: %v", err))
	}
	return data
}

// ----------------------------- Room fixtures -----------------------------

// RoomFixture is a deterministic room that can be rendered as a backend
// record, a canonical entity or a draft.
type RoomFixture struct {
	ID       int64
	Name     string
	Location string
	Capacity int
	Status   string
	Features []int64
}

// RoomOption customises a RoomFixture.
type RoomOption func(*RoomFixture)

// NewRoomFixture returns a room with a unique id and sensible defaults.
func NewRoomFixture(opts ...RoomOption) RoomFixture {
	n := roomCounter.Add(1)
	fixture := RoomFixture{
		ID:       n,
		Name:     fmt.Sprintf("Room %d", n),
		Location: "Floor 1",
		Capacity: 8,
		Status:   "available",
		Features: []int64{1, 2},
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

func WithRoomID(id int64) RoomOption {
	return func(f *RoomFixture) { f.ID = id }
}

func WithRoomName(name string) RoomOption {
	return func(f *RoomFixture) { f.Name = name }
}

func WithRoomCapacity(capacity int) RoomOption {
	return func(f *RoomFixture) { f.Capacity = capacity }
}

func WithRoomFeatures(ids ...int64) RoomOption {
	return func(f *RoomFixture) { f.Features = append([]int64(nil), ids...) }
}

// Record renders the room the way the backend lists it. Features travel as
// objects so the normalizer's id extraction is exercised.
func (f RoomFixture) Record() Record {
	features := make([]map[string]any, 0, len(f.Features))
	for _, id := range f.Features {
		features = append(features, map[string]any{"id": id})
	}
	return Record{
		"id":       f.ID,
		"name":     f.Name,
		"location": f.Location,
		"capacity": f.Capacity,
		"status":   f.Status,
		"features": features,
	}
}

func (f RoomFixture) Domain() domain.Room {
	return domain.Room{
		ID:       domain.ID(fmt.Sprint(f.ID)),
		Name:     f.Name,
		Location: f.Location,
		Capacity: f.Capacity,
		Status:   f.Status,
		Features: append([]int64{}, f.Features...),
	}
}

func (f RoomFixture) Draft() application.RoomDraft {
	return application.RoomDraft{
		Name:     f.Name,
		Location: f.Location,
		Capacity: f.Capacity,
		Status:   f.Status,
		Features: append([]int64(nil), f.Features...),
	}
}

// ----------------------------- User fixtures -----------------------------

// UserFixture is a deterministic user.
type UserFixture struct {
	ID     int64
	Name   string
	Email  string
	RoleID int64
}

// UserOption customises a UserFixture.
type UserOption func(*UserFixture)

func NewUserFixture(opts ...UserOption) UserFixture {
	n := userCounter.Add(1)
	fixture := UserFixture{
		ID:     n,
		Name:   fmt.Sprintf("User %d", n),
		Email:  fmt.Sprintf("user%d@example.com", n),
		RoleID: 2,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

func WithUserID(id int64) UserOption {
	return func(f *UserFixture) { f.ID = id }
}

func WithUserName(name string) UserOption {
	return func(f *UserFixture) { f.Name = name }
}

func WithUserEmail(email string) UserOption {
	return func(f *UserFixture) { f.Email = email }
}

func (f UserFixture) Record() Record {
	return Record{"id": f.ID, "name": f.Name, "email": f.Email, "role_id": f.RoleID}
}

func (f UserFixture) Draft() application.UserDraft {
	return application.UserDraft{
		Name:   f.Name,
		Email:  f.Email,
		RoleID: domain.ID(fmt.Sprint(f.RoleID)),
	}
}

// ----------------------------- Meeting fixtures -----------------------------

// MeetingFixture is a deterministic meeting. Times default to one hour from
// ReferenceTime.
type MeetingFixture struct {
	ID      int64
	Title   string
	Agenda  string
	Start   time.Time
	End     time.Time
	RoomID  int64
	UserID  int64
	Status  string
	Invitee []int64
}

// MeetingOption customises a MeetingFixture.
type MeetingOption func(*MeetingFixture)

func NewMeetingFixture(opts ...MeetingOption) MeetingFixture {
	n := meetingCounter.Add(1)
	fixture := MeetingFixture{
		ID:     n,
		Title:  fmt.Sprintf("Meeting %d", n),
		Agenda: "Status update",
		Start:  referenceTime.Add(time.Hour),
		End:    referenceTime.Add(2 * time.Hour),
		Status: "scheduled",
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

func WithMeetingID(id int64) MeetingOption {
	return func(f *MeetingFixture) { f.ID = id }
}

func WithMeetingTitle(title string) MeetingOption {
	return func(f *MeetingFixture) { f.Title = title }
}

func WithMeetingWindow(start, end time.Time) MeetingOption {
	return func(f *MeetingFixture) {
		f.Start = start
		f.End = end
	}
}

func WithMeetingRoom(id int64) MeetingOption {
	return func(f *MeetingFixture) { f.RoomID = id }
}

func WithMeetingOrganizer(id int64) MeetingOption {
	return func(f *MeetingFixture) { f.UserID = id }
}

func WithMeetingStatus(status string) MeetingOption {
	return func(f *MeetingFixture) { f.Status = status }
}

// WithMeetingAttendees nests attendee records for the given user ids.
func WithMeetingAttendees(userIDs ...int64) MeetingOption {
	return func(f *MeetingFixture) { f.Invitee = append([]int64(nil), userIDs...) }
}

func (f MeetingFixture) Record() Record {
	record := Record{
		"id":         f.ID,
		"title":      f.Title,
		"agenda":     f.Agenda,
		"start_time": f.Start.Format(time.RFC3339),
		"end_time":   f.End.Format(time.RFC3339),
		"room_id":    f.RoomID,
		"user_id":    f.UserID,
		"status":     f.Status,
	}
	if len(f.Invitee) > 0 {
		attendees := make([]map[string]any, 0, len(f.Invitee))
		for i, userID := range f.Invitee {
			attendees = append(attendees, map[string]any{
				"id":         f.ID*100 + int64(i) + 1,
				"meeting_id": f.ID,
				"user_id":    userID,
			})
		}
		record["attendees"] = attendees
	}
	return record
}

// Draft renders the meeting as a draft with zone-less local times, the way a
// form submits them.
func (f MeetingFixture) Draft() application.MeetingDraft {
	const layout = "2006-01-02T15:04"
	return application.MeetingDraft{
		Title:     f.Title,
		Agenda:    f.Agenda,
		StartTime: f.Start.Format(layout),
		EndTime:   f.End.Format(layout),
		RoomID:    domain.ID(fmt.Sprint(f.RoomID)),
		UserID:    domain.ID(fmt.Sprint(f.UserID)),
		Status:    f.Status,
	}
}

// AttendeeRecord renders a standalone attendee record.
func AttendeeRecord(id, meetingID, userID int64, name string) Record {
	return Record{"id": id, "meeting_id": meetingID, "user_id": userID, "name": name}
}
