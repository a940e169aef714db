package application

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/example/roombooking/internal/domain"
)

// Draft is a user-authored candidate entity submitted through the controller.
type Draft interface {
	DraftKind() domain.Kind
	DraftID() domain.ID
	// validate checks the draft against snap and returns the request fields to
	// send when it is valid.
	validate(snap Snapshot, op Operation) (map[string]any, *ValidationError)
	uploads() []domain.Upload
}

func (d MeetingDraft) DraftKind() domain.Kind { return domain.KindMeeting }

func (d RoomDraft) DraftKind() domain.Kind { return domain.KindRoom }

func (d UserDraft) DraftKind() domain.Kind { return domain.KindUser }

func (d AttendeeDraft) DraftKind() domain.Kind { return domain.KindAttendee }

func (d MinutesDraft) DraftKind() domain.Kind { return domain.KindMinutes }

func (d ActionItemDraft) DraftKind() domain.Kind { return domain.KindActionItem }

func (d MeetingDraft) DraftID() domain.ID { return d.ID }

func (d RoomDraft) DraftID() domain.ID { return d.ID }

func (d UserDraft) DraftID() domain.ID { return d.ID }

func (d AttendeeDraft) DraftID() domain.ID { return d.ID }

func (d MinutesDraft) DraftID() domain.ID { return d.ID }

func (d ActionItemDraft) DraftID() domain.ID { return d.ID }

func (d MeetingDraft) uploads() []domain.Upload { return d.Uploads }

func (d RoomDraft) uploads() []domain.Upload { return d.Uploads }

func (d UserDraft) uploads() []domain.Upload { return nil }

func (d AttendeeDraft) uploads() []domain.Upload { return nil }

func (d MinutesDraft) uploads() []domain.Upload { return d.Uploads }

func (d ActionItemDraft) uploads() []domain.Upload { return nil }

// ValidateMeetingDraft checks a meeting draft against the rooms and users in
// snap. Every rule runs so that all field errors are reported together:
//
//  1. title, and agenda or description, are non-empty after trimming
//  2. start_time and end_time are present and parseable
//  3. end_time is strictly after start_time
//  4. room_id names a room in snap
//  5. user_id names an organizer in snap
//  6. status, when present, is one of the meeting statuses
//
// The function never mutates snap.
func ValidateMeetingDraft(draft MeetingDraft, snap Snapshot) ValidationResult {
	meeting, vErr := buildMeeting(draft, snap)
	return ValidationResult{
		Valid:   !vErr.HasErrors(),
		Errors:  vErr.fields(),
		Meeting: meeting,
	}
}

// ValidateDraft runs the rules of any draft kind. Meeting drafts also get the
// canonical meeting in the result.
func ValidateDraft(draft Draft, snap Snapshot) ValidationResult {
	if meeting, ok := draft.(MeetingDraft); ok {
		return ValidateMeetingDraft(meeting, snap)
	}
	_, vErr := draft.validate(snap, OperationCreate)
	return ValidationResult{Valid: !vErr.HasErrors(), Errors: vErr.fields()}
}

func buildMeeting(draft MeetingDraft, snap Snapshot) (domain.Meeting, *ValidationError) {
	vErr := &ValidationError{}
	loc := snap.location()

	title := strings.TrimSpace(draft.Title)
	agenda := strings.TrimSpace(draft.Agenda)
	description := strings.TrimSpace(draft.Description)
	if title == "" {
		vErr.add("title", "title is required")
	}
	if agenda == "" && description == "" {
		vErr.add("agenda", "agenda or description is required")
	}

	start, startOK := parseDraftTime(vErr, "start_time", "start time", draft.StartTime, loc)
	end, endOK := parseDraftTime(vErr, "end_time", "end time", draft.EndTime, loc)
	if startOK && endOK && !end.After(start) {
		vErr.add("end_time", "end time must be after start time")
	}

	roomID := draft.RoomID.Canonical()
	switch {
	case roomID.IsZero():
		vErr.add("room_id", "room is required")
	case !snap.hasRoom(roomID):
		vErr.add("room_id", "room does not exist")
	}

	userID := draft.UserID.Canonical()
	switch {
	case userID.IsZero():
		vErr.add("user_id", "organizer is required")
	case !snap.hasUser(userID):
		vErr.add("user_id", "organizer does not exist")
	}

	status := domain.MeetingScheduled
	if raw := strings.TrimSpace(draft.Status); raw != "" {
		parsed, ok := domain.ParseMeetingStatus(raw)
		if ok {
			status = parsed
		} else {
			vErr.add("status", fmt.Sprintf("status must be one of %s", meetingStatusList()))
		}
	}

	meeting := domain.Meeting{
		ID:          draft.ID.Canonical(),
		Title:       title,
		Agenda:      agenda,
		Description: description,
		StartTime:   start,
		EndTime:     end,
		RoomID:      roomID,
		UserID:      userID,
		Type:        strings.TrimSpace(draft.Type),
		Status:      status,
	}
	for _, upload := range draft.Uploads {
		meeting.Attachments = append(meeting.Attachments, upload.Descriptor())
	}
	return meeting, vErr
}

func (d MeetingDraft) validate(snap Snapshot, op Operation) (map[string]any, *ValidationError) {
	meeting, vErr := buildMeeting(d, snap)
	if vErr.HasErrors() {
		return nil, vErr
	}
	fields := map[string]any{
		"title":       meeting.Title,
		"agenda":      meeting.Agenda,
		"description": meeting.Description,
		"start_time":  meeting.StartTime.Format(time.RFC3339),
		"end_time":    meeting.EndTime.Format(time.RFC3339),
		"room_id":     meeting.RoomID,
		"user_id":     meeting.UserID,
	}
	if meeting.Type != "" {
		fields["type"] = meeting.Type
	}
	// Updates without a status leave the stored status alone.
	if strings.TrimSpace(d.Status) != "" || op == OperationCreate {
		fields["status"] = string(meeting.Status)
	}
	return fields, nil
}

func (d RoomDraft) validate(_ Snapshot, _ Operation) (map[string]any, *ValidationError) {
	vErr := &ValidationError{}
	name := strings.TrimSpace(d.Name)
	if name == "" {
		vErr.add("name", "name is required")
	}
	if d.Capacity < 0 {
		vErr.add("capacity", "capacity must not be negative")
	}
	features := make([]int64, 0, len(d.Features))
	seen := make(map[int64]struct{}, len(d.Features))
	for _, id := range d.Features {
		if id <= 0 {
			vErr.add("features", "feature ids must be positive")
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		features = append(features, id)
	}
	if vErr.HasErrors() {
		return nil, vErr
	}
	fields := map[string]any{
		"name":        name,
		"location":    strings.TrimSpace(d.Location),
		"description": strings.TrimSpace(d.Description),
		"capacity":    d.Capacity,
		"features":    features,
	}
	if status := strings.TrimSpace(d.Status); status != "" {
		fields["status"] = status
	}
	return fields, nil
}

func (d UserDraft) validate(_ Snapshot, _ Operation) (map[string]any, *ValidationError) {
	vErr := &ValidationError{}
	name := strings.TrimSpace(d.Name)
	if name == "" {
		vErr.add("name", "name is required")
	}
	email := strings.TrimSpace(d.Email)
	switch {
	case email == "":
		vErr.add("email", "email is required")
	case !validEmail(email):
		vErr.add("email", "email is not a valid address")
	}
	if vErr.HasErrors() {
		return nil, vErr
	}
	fields := map[string]any{"name": name, "email": email}
	if roleID := d.RoleID.Canonical(); !roleID.IsZero() {
		fields["role_id"] = roleID
	}
	return fields, nil
}

func (d AttendeeDraft) validate(snap Snapshot, _ Operation) (map[string]any, *ValidationError) {
	vErr := &ValidationError{}
	meetingID := d.MeetingID.Canonical()
	switch {
	case meetingID.IsZero():
		vErr.add("meeting_id", "meeting is required")
	case !snap.hasMeeting(meetingID):
		vErr.add("meeting_id", "meeting does not exist")
	}

	userID := d.UserID.Canonical()
	name := strings.TrimSpace(d.Name)
	if !userID.IsZero() && !snap.hasUser(userID) {
		vErr.add("user_id", "user does not exist")
	}
	if userID.IsZero() && name == "" {
		vErr.add("name", "name or linked user is required")
	}
	email := strings.TrimSpace(d.Email)
	if email != "" && !validEmail(email) {
		vErr.add("email", "email is not a valid address")
	}
	if vErr.HasErrors() {
		return nil, vErr
	}

	fields := map[string]any{
		"meeting_id": meetingID,
		"name":       name,
		"email":      email,
		"role":       strings.TrimSpace(d.Role),
	}
	if !userID.IsZero() {
		fields["user_id"] = userID
	}
	return fields, nil
}

func (d ActionItemDraft) validate(snap Snapshot, _ Operation) (map[string]any, *ValidationError) {
	fields, vErr := d.check(snap)
	if vErr.HasErrors() {
		return nil, vErr
	}
	return fields, nil
}

// check validates the action item and builds its fields even when invalid,
// so that minutes can collect nested errors.
func (d ActionItemDraft) check(snap Snapshot) (map[string]any, *ValidationError) {
	vErr := &ValidationError{}
	task := strings.TrimSpace(d.Task)
	if task == "" {
		vErr.add("task", "task is required")
	}

	fields := map[string]any{"task": task}

	if meetingID := d.MeetingID.Canonical(); !meetingID.IsZero() {
		if !snap.hasMeeting(meetingID) {
			vErr.add("meeting_id", "meeting does not exist")
		}
		fields["meeting_id"] = meetingID
	}
	if minutesID := d.MinutesID.Canonical(); !minutesID.IsZero() {
		fields["minutes_id"] = minutesID
	}
	if assignee := d.AssignedTo.Canonical(); !assignee.IsZero() {
		if !snap.hasUser(assignee) {
			vErr.add("assigned_to", "assigned user does not exist")
		}
		fields["assigned_to"] = assignee
	}
	if raw := strings.TrimSpace(d.DueDate); raw != "" {
		due, err := domain.ParseTimestamp(raw, snap.location())
		if err != nil {
			vErr.add("due_date", "due date is not a valid date")
		} else {
			fields["due_date"] = due.Format("2006-01-02")
		}
	}

	status := domain.ActionPending
	if raw := strings.TrimSpace(d.Status); raw != "" {
		parsed, ok := domain.ParseActionItemStatus(raw)
		if ok {
			status = parsed
		} else {
			vErr.add("status", "status must be one of pending, in_progress, done")
		}
	}
	fields["status"] = string(status)
	return fields, vErr
}

func (d MinutesDraft) validate(snap Snapshot, _ Operation) (map[string]any, *ValidationError) {
	vErr := &ValidationError{}
	meetingID := d.MeetingID.Canonical()
	switch {
	case meetingID.IsZero():
		vErr.add("meeting_id", "meeting is required")
	case !snap.hasMeeting(meetingID):
		vErr.add("meeting_id", "meeting does not exist")
	}

	notes := strings.TrimSpace(d.Notes)
	decisions := strings.TrimSpace(d.Decisions)
	if notes == "" && decisions == "" {
		vErr.add("notes", "notes or decisions are required")
	}

	items := make([]map[string]any, 0, len(d.ActionItems))
	for i, item := range d.ActionItems {
		if item.MeetingID.Canonical().IsZero() {
			item.MeetingID = meetingID
		}
		if item.MinutesID.Canonical().IsZero() {
			item.MinutesID = d.ID
		}
		itemFields, itemErr := item.check(snap)
		if !snap.hasMeeting(meetingID) {
			// Already reported on the minutes themselves.
			delete(itemErr.FieldErrors, "meeting_id")
		}
		vErr.merge(fmt.Sprintf("action_items[%d].", i), itemErr)
		items = append(items, itemFields)
	}
	if vErr.HasErrors() {
		return nil, vErr
	}

	return map[string]any{
		"meeting_id":   meetingID,
		"notes":        notes,
		"decisions":    decisions,
		"action_items": items,
	}, nil
}

func parseDraftTime(vErr *ValidationError, field, label, value string, loc *time.Location) (time.Time, bool) {
	if strings.TrimSpace(value) == "" {
		vErr.add(field, label+" is required")
		return time.Time{}, false
	}
	t, err := domain.ParseTimestamp(value, loc)
	if err != nil {
		vErr.add(field, label+" is not a valid timestamp")
		return time.Time{}, false
	}
	return t, true
}

func validEmail(value string) bool {
	addr, err := mail.ParseAddress(value)
	return err == nil && addr.Address == value
}

func meetingStatusList() string {
	statuses := domain.MeetingStatuses()
	names := make([]string, len(statuses))
	for i, status := range statuses {
		names[i] = string(status)
	}
	return strings.Join(names, ", ")
}
