// Package views derives filtered, searched and sorted projections from the
// cache. Every function recomputes from the current cache contents and keeps
// no state of its own. Results are deterministic: with no sort key, entities
// come back in cache insertion order.
package views

import (
	"sort"
	"strings"
	"time"

	"github.com/example/roombooking/internal/domain"
	"github.com/example/roombooking/internal/normalize"
)

// Source is the read side of the cache. *cache.Store satisfies it.
type Source interface {
	Rooms() []domain.Room
	Features() []domain.Feature
	Users() []domain.User
	Meetings() []domain.Meeting
	Attendees() []domain.Attendee
	ActionItems() []domain.ActionItem
}

// MeetingSort names a meeting ordering.
type MeetingSort string

const (
	SortInsertion MeetingSort = ""
	SortStartTime MeetingSort = "start_time"
	SortTitle     MeetingSort = "title"
)

// ParseMeetingSort reports false for unknown sort keys.
func ParseMeetingSort(value string) (MeetingSort, bool) {
	switch MeetingSort(strings.ToLower(strings.TrimSpace(value))) {
	case SortInsertion:
		return SortInsertion, true
	case SortStartTime:
		return SortStartTime, true
	case SortTitle:
		return SortTitle, true
	}
	return "", false
}

// MeetingFilter narrows FilterMeetings. Zero values match everything.
type MeetingFilter struct {
	// Status matches case-insensitively; "all" matches every status.
	Status     string
	SearchText string
	// Date keeps meetings overlapping that calendar day in Location.
	Date     time.Time
	RoomID   domain.ID
	SortBy   MeetingSort
	Location *time.Location
}

// FilterMeetings returns the cached meetings matching filter. SearchText is a
// case-insensitive substring match across title, agenda and the organizer's
// display name.
func FilterMeetings(src Source, filter MeetingFilter) []domain.Meeting {
	organizers := userNames(src.Users())
	needle := normalizeNeedle(filter.SearchText)
	status := strings.ToLower(strings.TrimSpace(filter.Status))
	roomID := filter.RoomID.Canonical()

	var dayStart, dayEnd time.Time
	if !filter.Date.IsZero() {
		dayStart, dayEnd = dayBounds(filter.Date, filter.Location)
	}

	out := make([]domain.Meeting, 0)
	for _, meeting := range src.Meetings() {
		if status != "" && status != "all" && string(meeting.Status) != status {
			continue
		}
		if !roomID.IsZero() && meeting.RoomID.Canonical() != roomID {
			continue
		}
		if !dayStart.IsZero() && !overlapsDay(meeting, dayStart, dayEnd) {
			continue
		}
		if needle != "" && !containsAny(needle, meeting.Title, meeting.Agenda, organizers[meeting.UserID.Canonical()]) {
			continue
		}
		out = append(out, meeting)
	}

	switch filter.SortBy {
	case SortStartTime:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].StartTime.Before(out[j].StartTime)
		})
	case SortTitle:
		sort.SliceStable(out, func(i, j int) bool {
			return strings.ToLower(out[i].Title) < strings.ToLower(out[j].Title)
		})
	}
	return out
}

// RoomFilter narrows FilterRooms. Zero values match everything.
type RoomFilter struct {
	SearchText  string
	Status      string
	MinCapacity int
	// Features lists feature ids a room must all carry.
	Features []int64
}

// FilterRooms returns the cached rooms matching filter. SearchText matches
// name, description and location.
func FilterRooms(src Source, filter RoomFilter) []domain.Room {
	needle := normalizeNeedle(filter.SearchText)
	status := strings.ToLower(strings.TrimSpace(filter.Status))

	out := make([]domain.Room, 0)
	for _, room := range src.Rooms() {
		if status != "" && status != "all" && strings.ToLower(room.Status) != status {
			continue
		}
		if room.Capacity < filter.MinCapacity {
			continue
		}
		if !hasAllFeatures(room.Features, filter.Features) {
			continue
		}
		if needle != "" && !containsAny(needle, room.Name, room.Description, room.Location) {
			continue
		}
		out = append(out, room)
	}
	return out
}

// UserFilter narrows FilterUsers.
type UserFilter struct {
	SearchText string
	Role       string
}

// FilterUsers returns the cached users whose name, email or role contains
// SearchText and whose role equals Role when set.
func FilterUsers(src Source, filter UserFilter) []domain.User {
	needle := normalizeNeedle(filter.SearchText)
	role := strings.TrimSpace(filter.Role)

	out := make([]domain.User, 0)
	for _, user := range src.Users() {
		if role != "" && !strings.EqualFold(user.Role, role) {
			continue
		}
		if needle != "" && !containsAny(needle, user.Name, user.Email, user.Role) {
			continue
		}
		out = append(out, user)
	}
	return out
}

// ActionItemFilter narrows FilterActionItems.
type ActionItemFilter struct {
	Status     string
	AssignedTo domain.ID
	MeetingID  domain.ID
	MinutesID  domain.ID
	SearchText string
}

// FilterActionItems returns the cached action items matching filter.
func FilterActionItems(src Source, filter ActionItemFilter) []domain.ActionItem {
	needle := normalizeNeedle(filter.SearchText)
	var status domain.ActionItemStatus
	if raw := strings.TrimSpace(filter.Status); raw != "" && !strings.EqualFold(raw, "all") {
		parsed, ok := domain.ParseActionItemStatus(raw)
		if !ok {
			return []domain.ActionItem{}
		}
		status = parsed
	}
	assignee := filter.AssignedTo.Canonical()
	meetingID := filter.MeetingID.Canonical()
	minutesID := filter.MinutesID.Canonical()

	out := make([]domain.ActionItem, 0)
	for _, item := range src.ActionItems() {
		switch {
		case status != "" && item.Status != status:
			continue
		case !assignee.IsZero() && item.AssignedTo.Canonical() != assignee:
			continue
		case !meetingID.IsZero() && item.MeetingID.Canonical() != meetingID:
			continue
		case !minutesID.IsZero() && item.MinutesID.Canonical() != minutesID:
			continue
		case needle != "" && !containsAny(needle, item.Task):
			continue
		}
		out = append(out, item)
	}
	return out
}

// MeetingRoster lists the attendees of a meeting. Attendees fetched from the
// attendee collection win; the meeting's nested attendees are used when the
// collection holds none for it. Blank names are filled from linked users.
func MeetingRoster(src Source, meetingID domain.ID) []domain.Attendee {
	meetingID = meetingID.Canonical()
	roster := make([]domain.Attendee, 0)
	for _, attendee := range src.Attendees() {
		if attendee.MeetingID.Canonical() == meetingID {
			roster = append(roster, attendee)
		}
	}
	if len(roster) == 0 {
		for _, meeting := range src.Meetings() {
			if meeting.ID.Canonical() == meetingID {
				roster = append(roster, meeting.Attendees...)
				break
			}
		}
	}

	users := make(map[domain.ID]domain.User)
	for _, user := range src.Users() {
		users[user.ID.Canonical()] = user
	}
	for i, attendee := range roster {
		user, ok := users[attendee.UserID.Canonical()]
		if !ok {
			continue
		}
		if strings.TrimSpace(attendee.Name) == "" {
			roster[i].Name = user.Name
		}
		if strings.TrimSpace(attendee.Email) == "" {
			roster[i].Email = user.Email
		}
	}
	return roster
}

// FeatureNames resolves the display names of a room's features against the
// cached catalog, or the built-in catalog when none is cached.
func FeatureNames(src Source, room domain.Room) []string {
	return normalize.FeatureNames(room.Features, normalize.FeatureCatalog(src.Features()))
}

func userNames(users []domain.User) map[domain.ID]string {
	names := make(map[domain.ID]string, len(users))
	for _, user := range users {
		names[user.ID.Canonical()] = user.Name
	}
	return names
}

func normalizeNeedle(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

func containsAny(needle string, fields ...string) bool {
	for _, field := range fields {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

func hasAllFeatures(have, want []int64) bool {
	for _, w := range want {
		found := false
		for _, h := range have {
			if h == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func dayBounds(day time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	local := day.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

func overlapsDay(meeting domain.Meeting, start, end time.Time) bool {
	if meeting.StartTime.IsZero() {
		return false
	}
	meetingEnd := meeting.EndTime
	if meetingEnd.IsZero() || !meetingEnd.After(meeting.StartTime) {
		return !meeting.StartTime.Before(start) && meeting.StartTime.Before(end)
	}
	return meeting.StartTime.Before(end) && meetingEnd.After(start)
}
