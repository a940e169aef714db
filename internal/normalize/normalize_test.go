package normalize

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/roombooking/internal/domain"
)

const roomRecords = `[
	{"id": 1, "name": "Aurora", "location": "3F", "capacity": 8, "features": [1, 2]},
	{"room_id": "2", "name": "Borealis", "location": "4F", "capacity": "12", "features": [{"id": 3, "name": "Video Conferencing"}]}
]`

func TestNormalizeShapesAreEquivalent(t *testing.T) {
	payloads := map[Shape]string{
		ShapeBareArray:    roomRecords,
		ShapeDataEnvelope: `{"data": ` + roomRecords + `}`,
		ShapeKindEnvelope: `{"rooms": ` + roomRecords + `}`,
	}

	var baseline []domain.Entity
	for shape, payload := range payloads {
		t.Run(string(shape), func(t *testing.T) {
			result := Normalize([]byte(payload), domain.KindRoom)
			require.True(t, result.Matched())
			assert.Equal(t, shape, result.Shape)
			require.Len(t, result.Entities, 2)
			if baseline == nil {
				baseline = result.Entities
				return
			}
			assert.Equal(t, baseline, result.Entities)
		})
	}

	rooms := Rooms(baseline)
	require.Len(t, rooms, 2)
	assert.Equal(t, domain.ID("1"), rooms[0].ID)
	assert.Equal(t, domain.ID("2"), rooms[1].ID)
	assert.Equal(t, 12, rooms[1].Capacity)
	assert.Equal(t, []int64{3}, rooms[1].Features)
}

func TestNormalizeShapeOrder(t *testing.T) {
	t.Run("data wins over the kind key", func(t *testing.T) {
		result := Normalize([]byte(`{"data": [{"id": 1}], "rooms": [{"id": 2}, {"id": 3}]}`), domain.KindRoom)
		assert.Equal(t, ShapeDataEnvelope, result.Shape)
		assert.Len(t, result.Entities, 1)
	})

	t.Run("non-array data falls through to the kind key", func(t *testing.T) {
		result := Normalize([]byte(`{"data": {"total": 2}, "rooms": [{"id": 2}, {"id": 3}]}`), domain.KindRoom)
		assert.Equal(t, ShapeKindEnvelope, result.Shape)
		assert.Len(t, result.Entities, 2)
	})

	t.Run("camel case plural", func(t *testing.T) {
		result := Normalize([]byte(`{"actionItems": [{"id": 4, "task": "book caterer"}]}`), domain.KindActionItem)
		assert.Equal(t, ShapeKindEnvelope, result.Shape)
		assert.Len(t, result.Entities, 1)
	})
}

func TestNormalizeUnrecognized(t *testing.T) {
	for name, payload := range map[string]string{
		"wrong envelope": `{"items": [{"id": 1}]}`,
		"single object":  `{"id": 1, "name": "Aurora"}`,
		"scalar":         `42`,
		"invalid json":   `{"rooms": [`,
		"empty":          ``,
	} {
		t.Run(name, func(t *testing.T) {
			result := Normalize([]byte(payload), domain.KindRoom)
			assert.False(t, result.Matched())
			assert.Equal(t, ShapeUnrecognized, result.Shape)
			assert.Empty(t, result.Entities)
		})
	}

	t.Run("empty array is a match", func(t *testing.T) {
		result := Normalize([]byte(`[]`), domain.KindRoom)
		assert.True(t, result.Matched())
		assert.Empty(t, result.Entities)
	})
}

func TestNormalizeSkipsUnusableElements(t *testing.T) {
	result := Normalize([]byte(`[{"id": 1}, "junk", {"name": "no id"}, {"id": null, "Id": 7}]`), domain.KindRoom)
	require.True(t, result.Matched())
	assert.Equal(t, 2, result.Skipped)
	rooms := Rooms(result.Entities)
	require.Len(t, rooms, 2)
	assert.Equal(t, domain.ID("7"), rooms[1].ID)
}

func TestIDAliasPriority(t *testing.T) {
	result := Normalize([]byte(`[{"meetingId": 9, "meeting_id": 8, "Id": 7}]`), domain.KindMeeting)
	meetings := Meetings(result.Entities)
	require.Len(t, meetings, 1)
	assert.Equal(t, domain.ID("7"), meetings[0].ID)
}

func TestRoomFeaturesConverge(t *testing.T) {
	payloads := map[string]string{
		"raw ids":        `[{"id": 1, "features": [3, 1, 3]}]`,
		"nested objects": `[{"id": 1, "features": [{"id": 3, "name": "Video Conferencing"}, {"feature_id": 1}, {"id": "3"}]}]`,
		"mixed":          `[{"id": 1, "features": ["3", {"id": 1, "name": "Projector"}, 3, {"name": "nameless"}]}]`,
	}
	for name, payload := range payloads {
		t.Run(name, func(t *testing.T) {
			rooms := Rooms(Normalize([]byte(payload), domain.KindRoom).Entities)
			require.Len(t, rooms, 1)
			assert.Equal(t, []int64{3, 1}, rooms[0].Features)
		})
	}
}

func TestUserRoleResolution(t *testing.T) {
	payload := `[
		{"id": 1, "name": "Ana", "role": "Admin", "role_id": 2},
		{"id": 2, "name": "Ben", "role": {"id": 3, "name": "Manager"}},
		{"id": 3, "name": "Cy"},
		{"id": 4, "name": "Di", "role": 5}
	]`
	users := Users(Normalize([]byte(payload), domain.KindUser).Entities)
	require.Len(t, users, 4)

	assert.Equal(t, "Admin", users[0].Role)
	assert.Equal(t, domain.ID("2"), users[0].RoleID)

	assert.Equal(t, "Manager", users[1].Role)
	assert.Equal(t, domain.ID("3"), users[1].RoleID)

	assert.Equal(t, domain.NoRoleAssigned, users[2].Role)
	assert.True(t, users[2].RoleID.IsZero())

	assert.Equal(t, "Role 5", users[3].Role)
	assert.Equal(t, domain.ID("5"), users[3].RoleID)
}

func TestUserRoleNamesFromSamePayload(t *testing.T) {
	payload := `{"users": [
		{"id": 1, "name": "Ana", "role_id": 3},
		{"id": 2, "name": "Ben", "role": {"id": 3, "name": "Manager"}},
		{"id": 3, "name": "Cy", "roleId": "4"}
	]}`
	users := Users(Normalize([]byte(payload), domain.KindUser).Entities)
	require.Len(t, users, 3)

	assert.Equal(t, "Manager", users[0].Role)
	assert.Equal(t, "Manager", users[1].Role)
	assert.Equal(t, "Role 4", users[2].Role)
}

func TestMeetingFields(t *testing.T) {
	payload := `{"meetings": [{
		"Id": "11",
		"title": "Weekly Team Standup",
		"agenda": "status",
		"startTime": "2024-05-01T09:00:00Z",
		"end": "2024-05-01T09:15:00Z",
		"room": {"id": 2, "name": "Borealis"},
		"organizer": 4,
		"status": "Ongoing",
		"attendees": [{"id": 1, "name": "Ana", "email": "ana@example.com"}, 6],
		"files": [{"filename": "notes.pdf", "file_size": 2048, "mime_type": "application/pdf"}]
	}]}`
	meetings := Meetings(Normalize([]byte(payload), domain.KindMeeting).Entities)
	require.Len(t, meetings, 1)
	m := meetings[0]

	assert.Equal(t, domain.ID("11"), m.ID)
	assert.Equal(t, domain.ID("2"), m.RoomID)
	assert.Equal(t, domain.ID("4"), m.UserID)
	assert.Equal(t, domain.MeetingOngoing, m.Status)
	assert.True(t, m.StartTime.Equal(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)))
	assert.True(t, m.EndTime.Equal(time.Date(2024, 5, 1, 9, 15, 0, 0, time.UTC)))
	require.Len(t, m.Attendees, 2)
	assert.Equal(t, domain.ID("11"), m.Attendees[0].MeetingID)
	assert.Equal(t, domain.ID("6"), m.Attendees[1].UserID)
	assert.Equal(t, []domain.Attachment{{Name: "notes.pdf", Size: 2048, Type: "application/pdf"}}, m.Attachments)
}

func TestMeetingStatusDefaults(t *testing.T) {
	meetings := Meetings(Normalize([]byte(`[{"id": 1}, {"id": 2, "status": "postponed"}, {"id": 3, "status": "CANCELED"}]`), domain.KindMeeting).Entities)
	require.Len(t, meetings, 3)
	assert.Equal(t, domain.MeetingScheduled, meetings[0].Status)
	assert.Equal(t, domain.MeetingPending, meetings[1].Status)
	assert.Equal(t, domain.MeetingCancelled, meetings[2].Status)
}

func TestMinutesAndActionItems(t *testing.T) {
	payload := `[{
		"minute_id": 3,
		"meetingId": 11,
		"notes": "went well",
		"decisions": ["ship it", "hire"],
		"actionItems": [
			{"id": 20, "task": "deploy", "assignee": {"id": 4, "name": "Di"}, "dueDate": "2024-05-10", "status": "In Progress"},
			{"title": "draft memo", "status": "closed"}
		]
	}]`
	entities := Normalize([]byte(payload), domain.KindMinutes).Entities
	require.Len(t, entities, 1)
	minutes := entities[0].(domain.Minutes)

	assert.Equal(t, domain.ID("3"), minutes.ID)
	assert.Equal(t, "ship it\nhire", minutes.Decisions)
	require.Len(t, minutes.ActionItems, 2)

	first := minutes.ActionItems[0]
	assert.Equal(t, domain.ID("4"), first.AssignedTo)
	assert.Equal(t, domain.ActionInProgress, first.Status)
	assert.Equal(t, domain.ID("11"), first.MeetingID)
	assert.Equal(t, domain.ID("3"), first.MinutesID)
	require.NotNil(t, first.DueDate)
	assert.True(t, first.DueDate.Equal(time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)))

	assert.Equal(t, domain.ActionDone, minutes.ActionItems[1].Status)
	assert.True(t, minutes.ActionItems[1].ID.IsZero())
}

func TestNormalizeIsIdempotent(t *testing.T) {
	payloads := map[domain.Kind]string{
		domain.KindRoom:    `{"data": ` + roomRecords + `}`,
		domain.KindFeature: `[{"id": 1, "feature_name": "Projector"}]`,
		domain.KindUser:    `[{"userId": 1, "full_name": "Ana", "role": {"id": 2, "name": "Admin"}}, {"id": 2, "name": "Ben"}]`,
		domain.KindMeeting: `[{"id": 5, "title": "Retro", "start_time": "2024-05-01T09:00:00Z", "end_time": "2024-05-01T10:00:00Z",
			"room_id": "2", "user_id": 1, "status": "DONE?", "attendees": [{"user_id": 2}], "attachments": ["plan.txt"]}]`,
		domain.KindAttendee:   `[{"attendee_id": 3, "meetingId": 5, "user": {"id": 2, "name": "Ben"}, "role": "note taker"}]`,
		domain.KindMinutes:    `[{"id": 1, "meeting_id": 5, "notes": "n", "action_items": [{"task": "t", "due": "2024-06-01"}]}]`,
		domain.KindActionItem: `[{"id": 9, "task": "t", "assigned_to": 1, "status": "todo"}]`,
	}
	for kind, payload := range payloads {
		t.Run(string(kind), func(t *testing.T) {
			first := Normalize([]byte(payload), kind)
			require.True(t, first.Matched())
			require.NotEmpty(t, first.Entities)

			canonical, err := json.Marshal(first.Entities)
			require.NoError(t, err)
			second := Normalize(canonical, kind)

			assert.Equal(t, ShapeBareArray, second.Shape)
			assert.Equal(t, first.Entities, second.Entities)
		})
	}
}

func TestNormalizerLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	n := New(tokyo)
	meetings := Meetings(n.Normalize([]byte(`[{"id": 1, "start_time": "2024-05-01 09:00"}]`), domain.KindMeeting).Entities)
	require.Len(t, meetings, 1)
	assert.True(t, meetings[0].StartTime.Equal(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)))
}
