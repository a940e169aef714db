package application

import (
	"time"

	"github.com/example/roombooking/internal/domain"
	"github.com/example/roombooking/internal/normalize"
)

// Snapshot is the read-only view of the cache that validation runs against.
type Snapshot struct {
	Rooms    []domain.Room
	Users    []domain.User
	Meetings []domain.Meeting
	// Location interprets zone-less draft timestamps. Nil means UTC.
	Location *time.Location
}

func (s Snapshot) location() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}

func (s Snapshot) hasRoom(id domain.ID) bool {
	for _, room := range s.Rooms {
		if sameID(room.ID, id) {
			return true
		}
	}
	return false
}

func (s Snapshot) hasUser(id domain.ID) bool {
	for _, user := range s.Users {
		if sameID(user.ID, id) {
			return true
		}
	}
	return false
}

func (s Snapshot) hasMeeting(id domain.ID) bool {
	for _, meeting := range s.Meetings {
		if sameID(meeting.ID, id) {
			return true
		}
	}
	return false
}

// sameID compares ids in their canonical textual form.
func sameID(a, b domain.ID) bool {
	ca := a.Canonical()
	return !ca.IsZero() && ca == b.Canonical()
}

// MeetingDraft is a user-entered meeting. Times are ISO-like strings as
// produced by date/time form inputs.
type MeetingDraft struct {
	ID          domain.ID       `json:"id,omitempty"`
	Title       string          `json:"title"`
	Agenda      string          `json:"agenda"`
	Description string          `json:"description"`
	StartTime   string          `json:"start_time"`
	EndTime     string          `json:"end_time"`
	RoomID      domain.ID       `json:"room_id"`
	UserID      domain.ID       `json:"user_id"`
	Type        string          `json:"type"`
	Status      string          `json:"status"`
	Uploads     []domain.Upload `json:"-"`
}

// RoomDraft is a user-entered room.
type RoomDraft struct {
	ID          domain.ID       `json:"id,omitempty"`
	Name        string          `json:"name"`
	Location    string          `json:"location"`
	Description string          `json:"description"`
	Capacity    int             `json:"capacity"`
	Status      string          `json:"status"`
	Features    []int64         `json:"features"`
	Uploads     []domain.Upload `json:"-"`
}

// UserDraft is a user-entered account. RoleID is written back; the display
// role is never sent.
type UserDraft struct {
	ID     domain.ID `json:"id,omitempty"`
	Name   string    `json:"name"`
	Email  string    `json:"email"`
	RoleID domain.ID `json:"role_id"`
}

// AttendeeDraft adds or edits a participant of one meeting.
type AttendeeDraft struct {
	ID        domain.ID `json:"id,omitempty"`
	MeetingID domain.ID `json:"meeting_id"`
	UserID    domain.ID `json:"user_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
}

// ActionItemDraft is a user-entered follow-up task.
type ActionItemDraft struct {
	ID         domain.ID `json:"id,omitempty"`
	MeetingID  domain.ID `json:"meeting_id"`
	MinutesID  domain.ID `json:"minutes_id"`
	Task       string    `json:"task"`
	AssignedTo domain.ID `json:"assigned_to"`
	DueDate    string    `json:"due_date"`
	Status     string    `json:"status"`
}

// MinutesDraft records the notes of a meeting together with its action items.
type MinutesDraft struct {
	ID          domain.ID         `json:"id,omitempty"`
	MeetingID   domain.ID         `json:"meeting_id"`
	Notes       string            `json:"notes"`
	Decisions   string            `json:"decisions"`
	ActionItems []ActionItemDraft `json:"action_items"`
	Uploads     []domain.Upload   `json:"-"`
}

// ValidationResult is the outcome of validating a meeting draft. Meeting holds
// the canonical meeting built from the draft and is only meaningful when Valid.
type ValidationResult struct {
	Valid   bool              `json:"valid"`
	Errors  map[string]string `json:"errors"`
	Meeting domain.Meeting    `json:"-"`
}

// FetchState is the per-kind fetch lifecycle.
type FetchState string

const (
	FetchIdle     FetchState = "idle"
	FetchFetching FetchState = "fetching"
	FetchReady    FetchState = "ready"
	FetchFailed   FetchState = "fetch_failed"
)

// MutationState is the lifecycle of one submitted mutation.
type MutationState string

const (
	MutationIdle         MutationState = "idle"
	MutationValidating   MutationState = "validating"
	MutationRejected     MutationState = "rejected"
	MutationSubmitting   MutationState = "submitting"
	MutationApplied      MutationState = "applied"
	MutationSubmitFailed MutationState = "submit_failed"
)

// Operation names a mutation.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// FetchOutcome reports how a refresh of one kind ended.
type FetchOutcome struct {
	Kind  domain.Kind     `json:"kind"`
	State FetchState      `json:"state"`
	Shape normalize.Shape `json:"shape,omitempty"`
	// Matched is false when the payload matched no known response shape.
	Matched bool `json:"matched"`
	// Applied is the number of entities written to the cache.
	Applied int `json:"applied"`
	Skipped int `json:"skipped"`
	// Stale is set when a newer fetch was initiated before this one finished;
	// nothing was written.
	Stale bool `json:"stale"`
	// Fallback is set when a failed room fetch was answered from the mirror.
	Fallback bool   `json:"stale_fallback"`
	Err      error  `json:"-"`
	Error    string `json:"error,omitempty"`
}

// SoftFailure reports a failed fetch whose cache contents are still usable.
func (o FetchOutcome) SoftFailure() bool {
	return o.State == FetchFailed && o.Fallback
}

// ConflictWarning describes an overlapping meeting that should be surfaced to callers.
type ConflictWarning struct {
	MeetingID     domain.ID `json:"meeting_id"`
	Type          string    `json:"type"`
	ParticipantID domain.ID `json:"participant_id,omitempty"`
	RoomID        domain.ID `json:"room_id,omitempty"`
}

// MutationOutcome reports how a submitted mutation ended.
type MutationOutcome struct {
	Kind      domain.Kind       `json:"kind"`
	Operation Operation         `json:"operation"`
	State     MutationState     `json:"state"`
	ID        domain.ID         `json:"id,omitempty"`
	Errors    map[string]string `json:"errors,omitempty"`
	Warnings  []ConflictWarning `json:"warnings,omitempty"`
	// Refreshed holds the re-fetches triggered after an applied mutation.
	Refreshed []FetchOutcome `json:"refreshed,omitempty"`
	Err       error          `json:"-"`
	Error     string         `json:"error,omitempty"`
}
