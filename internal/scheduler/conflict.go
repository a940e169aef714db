// Package scheduler detects double bookings between meetings.
package scheduler

import (
	"time"

	"github.com/example/roombooking/internal/domain"
)

// Booking is the part of a meeting that matters for overlap detection.
// Participants holds user ids: the organizer and every linked attendee.
type Booking struct {
	MeetingID    domain.ID
	RoomID       domain.ID
	Participants []domain.ID
	Start        time.Time
	End          time.Time
}

// ConflictType describes the type of conflict detected between bookings.
type ConflictType string

const (
	// ConflictTypeParticipant indicates a participant is double-booked.
	ConflictTypeParticipant ConflictType = "participant"
	// ConflictTypeRoom indicates a room is double-booked.
	ConflictTypeRoom ConflictType = "room"
)

// Conflict details an overlapping booking that callers can present to users.
type Conflict struct {
	WithMeetingID domain.ID
	Type          ConflictType
	Participant   domain.ID
	RoomID        domain.ID
}

// Overlaps reports whether two half-open intervals intersect. Touching
// intervals do not overlap.
func Overlaps(startA, endA, startB, endB time.Time) bool {
	return startA.Before(endB) && startB.Before(endA)
}

// DetectConflicts returns the conflicts between candidate and existing, in the
// order of existing. A booking never conflicts with itself, and bookings with
// an empty or inverted interval are ignored. For each overlapping booking a
// room conflict comes first, followed by one conflict per shared participant
// in candidate order.
func DetectConflicts(existing []Booking, candidate Booking) []Conflict {
	if !candidate.End.After(candidate.Start) {
		return nil
	}

	var conflicts []Conflict
	for _, other := range existing {
		if !candidate.MeetingID.IsZero() && other.MeetingID == candidate.MeetingID {
			continue
		}
		if !other.End.After(other.Start) {
			continue
		}
		if !Overlaps(candidate.Start, candidate.End, other.Start, other.End) {
			continue
		}

		if !candidate.RoomID.IsZero() && candidate.RoomID == other.RoomID {
			conflicts = append(conflicts, Conflict{
				WithMeetingID: other.MeetingID,
				Type:          ConflictTypeRoom,
				RoomID:        other.RoomID,
			})
		}

		busy := make(map[domain.ID]struct{}, len(other.Participants))
		for _, p := range other.Participants {
			busy[p] = struct{}{}
		}
		reported := make(map[domain.ID]struct{})
		for _, p := range candidate.Participants {
			if p.IsZero() {
				continue
			}
			if _, ok := busy[p]; !ok {
				continue
			}
			if _, dup := reported[p]; dup {
				continue
			}
			reported[p] = struct{}{}
			conflicts = append(conflicts, Conflict{
				WithMeetingID: other.MeetingID,
				Type:          ConflictTypeParticipant,
				Participant:   p,
			})
		}
	}
	return conflicts
}
