package domain

import "strings"

// MeetingStatus is the lifecycle state of a meeting.
type MeetingStatus string

const (
	MeetingPending   MeetingStatus = "pending"
	MeetingOngoing   MeetingStatus = "ongoing"
	MeetingCompleted MeetingStatus = "completed"
	MeetingCancelled MeetingStatus = "cancelled"
	MeetingScheduled MeetingStatus = "scheduled"
)

// MeetingStatuses lists the enumerated meeting statuses.
func MeetingStatuses() []MeetingStatus {
	return []MeetingStatus{MeetingPending, MeetingOngoing, MeetingCompleted, MeetingCancelled, MeetingScheduled}
}

// ParseMeetingStatus matches value case-insensitively against the enumerated
// statuses and returns the canonical lower-case form.
func ParseMeetingStatus(value string) (MeetingStatus, bool) {
	key := strings.ToLower(strings.TrimSpace(value))
	if key == "canceled" {
		key = string(MeetingCancelled)
	}
	for _, status := range MeetingStatuses() {
		if key == string(status) {
			return status, true
		}
	}
	return "", false
}

// ActionItemStatus is the progress state of an action item.
type ActionItemStatus string

const (
	ActionPending    ActionItemStatus = "pending"
	ActionInProgress ActionItemStatus = "in_progress"
	ActionDone       ActionItemStatus = "done"
)

// ActionItemStatuses lists the enumerated action item statuses.
func ActionItemStatuses() []ActionItemStatus {
	return []ActionItemStatus{ActionPending, ActionInProgress, ActionDone}
}

// ParseActionItemStatus resolves the canonical status, accepting the spellings
// the backend has been seen to use.
func ParseActionItemStatus(value string) (ActionItemStatus, bool) {
	key := strings.ToLower(strings.TrimSpace(value))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	switch key {
	case "pending", "open", "todo":
		return ActionPending, true
	case "in_progress", "inprogress":
		return ActionInProgress, true
	case "done", "complete", "completed", "closed":
		return ActionDone, true
	}
	return "", false
}
