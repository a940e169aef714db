package domain

import "time"

// Entity is implemented by every canonical entity held in the cache.
type Entity interface {
	EntityID() ID
	EntityKind() Kind
}

// Room represents a bookable meeting room.
type Room struct {
	ID          ID      `json:"id"`
	Name        string  `json:"name"`
	Location    string  `json:"location"`
	Description string  `json:"description,omitempty"`
	Capacity    int     `json:"capacity"`
	Status      string  `json:"status,omitempty"`
	Features    []int64 `json:"features"`
}

// Feature is a room amenity catalog entry.
type Feature struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

// NoRoleAssigned is the display role of users whose payload carries none.
const NoRoleAssigned = "No role assigned"

// User is an account that can organize meetings or be assigned action items.
// Role holds the display name; RoleID is kept separately for write-back.
type User struct {
	ID     ID     `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	RoleID ID     `json:"role_id,omitempty"`
}

// Meeting is a booking of a room by an organizer.
type Meeting struct {
	ID          ID            `json:"id"`
	Title       string        `json:"title"`
	Agenda      string        `json:"agenda"`
	Description string        `json:"description"`
	StartTime   time.Time     `json:"start_time"`
	EndTime     time.Time     `json:"end_time"`
	RoomID      ID            `json:"room_id"`
	UserID      ID            `json:"user_id"`
	Type        string        `json:"type,omitempty"`
	Status      MeetingStatus `json:"status"`
	Attendees   []Attendee    `json:"attendees"`
	Attachments []Attachment  `json:"attachments"`
}

// Attendee is a participant scoped to exactly one meeting.
type Attendee struct {
	ID        ID     `json:"id"`
	MeetingID ID     `json:"meeting_id"`
	UserID    ID     `json:"user_id,omitempty"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
}

// ActionItem is a follow-up task scoped to a meeting or to minutes.
type ActionItem struct {
	ID         ID               `json:"id"`
	MeetingID  ID               `json:"meeting_id,omitempty"`
	MinutesID  ID               `json:"minutes_id,omitempty"`
	Task       string           `json:"task"`
	AssignedTo ID               `json:"assigned_to,omitempty"`
	DueDate    *time.Time       `json:"due_date,omitempty"`
	Status     ActionItemStatus `json:"status"`
}

// Minutes records the notes and decisions of a meeting.
type Minutes struct {
	ID          ID           `json:"id"`
	MeetingID   ID           `json:"meeting_id"`
	Notes       string       `json:"notes"`
	Decisions   string       `json:"decisions"`
	ActionItems []ActionItem `json:"action_items"`
	Attachments []Attachment `json:"attachments"`
}

// Attachment describes a file already stored by the backend.
type Attachment struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type"`
	URL  string `json:"url,omitempty"`
}

// Upload is a file the user attached to a draft. Drafts carrying uploads are
// sent as multipart/form-data.
type Upload struct {
	Name        string
	ContentType string
	Content     []byte
}

// Descriptor returns the attachment descriptor of the upload.
func (u Upload) Descriptor() Attachment {
	return Attachment{Name: u.Name, Size: int64(len(u.Content)), Type: u.ContentType}
}

func (r Room) EntityID() ID { return r.ID }

func (Room) EntityKind() Kind { return KindRoom }

func (f Feature) EntityID() ID { return f.ID }

func (Feature) EntityKind() Kind { return KindFeature }

func (u User) EntityID() ID { return u.ID }

func (User) EntityKind() Kind { return KindUser }

func (m Meeting) EntityID() ID { return m.ID }

func (Meeting) EntityKind() Kind { return KindMeeting }

func (a Attendee) EntityID() ID { return a.ID }

func (Attendee) EntityKind() Kind { return KindAttendee }

func (m Minutes) EntityID() ID { return m.ID }

func (Minutes) EntityKind() Kind { return KindMinutes }

func (a ActionItem) EntityID() ID { return a.ID }

func (ActionItem) EntityKind() Kind { return KindActionItem }
