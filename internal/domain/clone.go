package domain

import "time"

// Clone returns a deep copy of the room.
func (r Room) Clone() Room {
	r.Features = cloneSlice(r.Features)
	return r
}

// Clone returns a deep copy of the meeting.
func (m Meeting) Clone() Meeting {
	m.Attendees = cloneSlice(m.Attendees)
	m.Attachments = cloneSlice(m.Attachments)
	return m
}

// Clone returns a deep copy of the action item.
func (a ActionItem) Clone() ActionItem {
	a.DueDate = cloneTime(a.DueDate)
	return a
}

// Clone returns a deep copy of the minutes.
func (m Minutes) Clone() Minutes {
	if m.ActionItems != nil {
		items := make([]ActionItem, len(m.ActionItems))
		for i, item := range m.ActionItems {
			items[i] = item.Clone()
		}
		m.ActionItems = items
	}
	m.Attachments = cloneSlice(m.Attachments)
	return m
}

// CloneEntity deep-copies any canonical entity.
func CloneEntity(e Entity) Entity {
	switch v := e.(type) {
	case Room:
		return v.Clone()
	case Meeting:
		return v.Clone()
	case ActionItem:
		return v.Clone()
	case Minutes:
		return v.Clone()
	default:
		// Feature, User and Attendee hold no reference fields.
		return e
	}
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
