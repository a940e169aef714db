package normalize

import (
	"github.com/example/roombooking/internal/domain"
)

func (n *Normalizer) room(id domain.ID, r record) domain.Room {
	capacity, _ := r.integer("capacity", "max_capacity", "maxCapacity", "seats")
	if capacity < 0 {
		capacity = 0
	}
	return domain.Room{
		ID:          id,
		Name:        r.str("name", "room_name", "roomName"),
		Location:    r.str("location", "floor", "building"),
		Description: r.text("description"),
		Capacity:    int(capacity),
		Status:      r.str("status", "availability"),
		Features:    FeatureIDs(r.list("features", "feature_ids", "featureIds", "room_features", "roomFeatures")),
	}
}

func feature(id domain.ID, r record) domain.Feature {
	return domain.Feature{
		ID:   id,
		Name: r.str("name", "feature_name", "featureName", "label"),
	}
}

func user(id domain.ID, r record) domain.User {
	u := domain.User{
		ID:     id,
		Name:   r.str("name", "full_name", "fullName", "username"),
		Email:  r.str("email", "email_address", "emailAddress"),
		RoleID: r.id(domain.Kind("role"), "role_id", "roleId"),
	}
	role := r.str("role_name", "roleName")
	switch v := r["role"].(type) {
	case map[string]any:
		nested := record(v)
		if u.RoleID.IsZero() {
			u.RoleID = nested.id(domain.Kind("role"), "id", "Id", "role_id", "roleId")
		}
		if name := nested.str("name", "role_name", "roleName", "title"); name != "" {
			role = name
		}
	case string:
		if s, _ := scalarString(v); s != "" {
			role = s
		}
	case nil:
	default:
		if roleID, ok := domain.ParseID(v); ok && u.RoleID.IsZero() {
			u.RoleID = roleID
		}
	}
	u.Role = role
	return u
}

// resolveRoles fills the display role of users that carry only a role id. Names
// come from other users in the same payload that carry the same role with a
// name; unknown ids get a placeholder.
func resolveRoles(entities []domain.Entity) {
	roles := make(map[domain.ID]string)
	for _, e := range entities {
		if u, ok := e.(domain.User); ok && u.Role != "" && !u.RoleID.IsZero() {
			if _, seen := roles[u.RoleID]; !seen {
				roles[u.RoleID] = u.Role
			}
		}
	}
	for i, e := range entities {
		if u, ok := e.(domain.User); ok && u.Role == "" {
			u.Role = RoleName(u.RoleID, roles)
			entities[i] = u
		}
	}
}

func (n *Normalizer) meeting(id domain.ID, r record) domain.Meeting {
	m := domain.Meeting{
		ID:          id,
		Title:       r.str("title", "name", "subject"),
		Agenda:      r.text("agenda"),
		Description: r.text("description"),
		RoomID:      r.id(domain.KindRoom, "room_id", "roomId", "room"),
		UserID:      r.id(domain.KindUser, "user_id", "userId", "organizer_id", "organizerId", "organizer"),
		Type:        r.str("type", "meeting_type", "meetingType"),
		Status:      meetingStatus(r.str("status")),
		Attachments: attachments(r.list("attachments", "files")),
	}
	m.StartTime, _ = r.timestamp(n.loc, "start_time", "startTime", "start")
	m.EndTime, _ = r.timestamp(n.loc, "end_time", "endTime", "end")
	for _, item := range r.list("attendees", "participants") {
		if a, ok := nestedAttendee(item, id); ok {
			m.Attendees = append(m.Attendees, a)
		}
	}
	return m
}

func meetingStatus(value string) domain.MeetingStatus {
	if value == "" {
		return domain.MeetingScheduled
	}
	if status, ok := domain.ParseMeetingStatus(value); ok {
		return status
	}
	return domain.MeetingPending
}

func attendee(id, meetingID domain.ID, r record) domain.Attendee {
	a := domain.Attendee{
		ID:        id,
		MeetingID: r.id(domain.KindMeeting, "meeting_id", "meetingId", "meeting"),
		UserID:    r.id(domain.KindUser, "user_id", "userId", "user"),
		Name:      r.str("name", "full_name", "fullName", "attendee_name", "attendeeName"),
		Email:     r.str("email", "email_address", "emailAddress"),
		Role:      r.str("role", "attendee_role", "attendeeRole"),
	}
	if u, ok := r.nested("user"); ok {
		if a.Name == "" {
			a.Name = u.str("name", "full_name", "fullName", "username")
		}
		if a.Email == "" {
			a.Email = u.str("email")
		}
	}
	if a.MeetingID.IsZero() {
		a.MeetingID = meetingID
	}
	return a
}

// nestedAttendee accepts attendee objects and bare user ids. Nested attendees
// may lack an id of their own.
func nestedAttendee(item any, meetingID domain.ID) (domain.Attendee, bool) {
	obj, ok := item.(map[string]any)
	if !ok {
		userID, ok := domain.ParseID(item)
		if !ok {
			return domain.Attendee{}, false
		}
		return domain.Attendee{MeetingID: meetingID, UserID: userID}, true
	}
	r := record(obj)
	a := attendee(r.id(domain.KindAttendee, domain.KindAttendee.IDAliases()...), meetingID, r)
	if a.ID.IsZero() && a.UserID.IsZero() && a.Name == "" && a.Email == "" {
		return domain.Attendee{}, false
	}
	return a, true
}

func (n *Normalizer) minutes(id domain.ID, r record) domain.Minutes {
	m := domain.Minutes{
		ID:          id,
		MeetingID:   r.id(domain.KindMeeting, "meeting_id", "meetingId", "meeting"),
		Notes:       r.text("notes", "content", "summary"),
		Decisions:   r.text("decisions", "decision"),
		Attachments: attachments(r.list("attachments", "files")),
	}
	for _, item := range r.list("action_items", "actionItems") {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		nested := record(obj)
		ai := n.actionItem(nested.id(domain.KindActionItem, domain.KindActionItem.IDAliases()...), m.MeetingID, id, nested)
		if ai.ID.IsZero() && ai.Task == "" {
			continue
		}
		m.ActionItems = append(m.ActionItems, ai)
	}
	return m
}

func (n *Normalizer) actionItem(id, meetingID, minutesID domain.ID, r record) domain.ActionItem {
	ai := domain.ActionItem{
		ID:         id,
		MeetingID:  r.id(domain.KindMeeting, "meeting_id", "meetingId", "meeting"),
		MinutesID:  r.id(domain.KindMinutes, "minutes_id", "minutesId", "minute_id", "minuteId", "minutes"),
		Task:       r.text("task", "title", "description"),
		AssignedTo: r.id(domain.KindUser, "assigned_to", "assignedTo", "assignee_id", "assigneeId", "assignee", "user_id", "userId"),
		Status:     actionItemStatus(r.str("status")),
	}
	if due, ok := r.timestamp(n.loc, "due_date", "dueDate", "due"); ok {
		ai.DueDate = &due
	}
	if ai.MeetingID.IsZero() {
		ai.MeetingID = meetingID
	}
	if ai.MinutesID.IsZero() {
		ai.MinutesID = minutesID
	}
	return ai
}

func actionItemStatus(value string) domain.ActionItemStatus {
	if status, ok := domain.ParseActionItemStatus(value); ok {
		return status
	}
	return domain.ActionPending
}

func attachments(items []any) []domain.Attachment {
	var out []domain.Attachment
	for _, item := range items {
		switch v := item.(type) {
		case string:
			if v != "" {
				out = append(out, domain.Attachment{Name: v})
			}
		case map[string]any:
			r := record(v)
			size, _ := r.integer("size", "file_size", "fileSize")
			a := domain.Attachment{
				Name: r.str("name", "filename", "file_name", "fileName", "original_name"),
				Size: size,
				Type: r.str("type", "mime_type", "mimeType", "content_type", "contentType"),
				URL:  r.str("url", "path", "download_url", "downloadUrl"),
			}
			if a.Name == "" && a.URL == "" {
				continue
			}
			out = append(out, a)
		}
	}
	return out
}

// FeatureIDs converges a features array of raw ids, numeric strings and nested
// feature objects into integer ids, dropping duplicates and keeping first-seen
// order. Entries without an integer id are ignored.
func FeatureIDs(items []any) []int64 {
	out := make([]int64, 0, len(items))
	seen := make(map[int64]struct{}, len(items))
	for _, item := range items {
		var (
			id int64
			ok bool
		)
		if obj, isObj := item.(map[string]any); isObj {
			id, ok = record(obj).integer(domain.KindFeature.IDAliases()...)
		} else {
			id, ok = toInt(item)
		}
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
