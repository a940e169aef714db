package cache

import "github.com/example/roombooking/internal/domain"

// Rooms returns the cached rooms in insertion order.
func (s *Store) Rooms() []domain.Room { return typed[domain.Room](s, domain.KindRoom) }

// Features returns the cached feature catalog.
func (s *Store) Features() []domain.Feature { return typed[domain.Feature](s, domain.KindFeature) }

// Users returns the cached users.
func (s *Store) Users() []domain.User { return typed[domain.User](s, domain.KindUser) }

// Meetings returns the cached meetings.
func (s *Store) Meetings() []domain.Meeting { return typed[domain.Meeting](s, domain.KindMeeting) }

// Attendees returns the cached attendees of every meeting.
func (s *Store) Attendees() []domain.Attendee { return typed[domain.Attendee](s, domain.KindAttendee) }

// Minutes returns the cached minutes.
func (s *Store) Minutes() []domain.Minutes { return typed[domain.Minutes](s, domain.KindMinutes) }

// ActionItems returns the cached action items.
func (s *Store) ActionItems() []domain.ActionItem {
	return typed[domain.ActionItem](s, domain.KindActionItem)
}

// Room returns the cached room with id.
func (s *Store) Room(id domain.ID) (domain.Room, bool) { return one[domain.Room](s, domain.KindRoom, id) }

// User returns the cached user with id.
func (s *Store) User(id domain.ID) (domain.User, bool) { return one[domain.User](s, domain.KindUser, id) }

// Meeting returns the cached meeting with id.
func (s *Store) Meeting(id domain.ID) (domain.Meeting, bool) {
	return one[domain.Meeting](s, domain.KindMeeting, id)
}

func typed[T domain.Entity](s *Store, kind domain.Kind) []T {
	all := s.All(kind)
	out := make([]T, 0, len(all))
	for _, entity := range all {
		if v, ok := entity.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

func one[T domain.Entity](s *Store, kind domain.Kind, id domain.ID) (T, bool) {
	var zero T
	entity, ok := s.Get(kind, id)
	if !ok {
		return zero, false
	}
	v, ok := entity.(T)
	return v, ok
}
