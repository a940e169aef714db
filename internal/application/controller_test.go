package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/roombooking/internal/cache"
	"github.com/example/roombooking/internal/domain"
	"github.com/example/roombooking/internal/normalize"
	"github.com/example/roombooking/internal/transport"
)

type listCall struct {
	kind domain.Kind
	n    int
}

type writeCall struct {
	kind   domain.Kind
	id     domain.ID
	fields map[string]any
	files  []domain.Upload
}

type backendStub struct {
	mu sync.Mutex

	// list answers List; n counts calls per kind starting at 1.
	list    func(ctx context.Context, kind domain.Kind, n int) ([]byte, error)
	started chan listCall
	calls   map[domain.Kind]int

	createResp []byte
	createErr  error
	updateErr  error
	deleteErr  error

	creates []writeCall
	updates []writeCall
	deletes []writeCall
}

func newBackendStub(payloads map[domain.Kind]string) *backendStub {
	return &backendStub{
		calls: make(map[domain.Kind]int),
		list: func(_ context.Context, kind domain.Kind, _ int) ([]byte, error) {
			if payload, ok := payloads[kind]; ok {
				return []byte(payload), nil
			}
			return []byte(`[]`), nil
		},
	}
}

func (b *backendStub) List(ctx context.Context, kind domain.Kind) ([]byte, error) {
	b.mu.Lock()
	b.calls[kind]++
	n := b.calls[kind]
	b.mu.Unlock()
	if b.started != nil {
		b.started <- listCall{kind: kind, n: n}
	}
	return b.list(ctx, kind, n)
}

func (b *backendStub) Create(_ context.Context, kind domain.Kind, fields map[string]any, files []domain.Upload) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.creates = append(b.creates, writeCall{kind: kind, fields: fields, files: files})
	return b.createResp, b.createErr
}

func (b *backendStub) Update(_ context.Context, kind domain.Kind, id domain.ID, fields map[string]any, files []domain.Upload) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.updates = append(b.updates, writeCall{kind: kind, id: id, fields: fields, files: files})
	return nil, b.updateErr
}

func (b *backendStub) Delete(_ context.Context, kind domain.Kind, id domain.ID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deletes = append(b.deletes, writeCall{kind: kind, id: id})
	return b.deleteErr
}

func (b *backendStub) listCalls(kind domain.Kind) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[kind]
}

type mirrorStub struct {
	mu    sync.Mutex
	rooms []domain.Room
	saves int
	err   error
}

func (m *mirrorStub) SaveRooms(_ context.Context, rooms []domain.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.err != nil {
		return m.err
	}
	m.rooms = rooms
	return nil
}

func (m *mirrorStub) LoadRooms(context.Context) ([]domain.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rooms, nil
}

func fixedNow() time.Time {
	return time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
}

func newTestController(backend Backend, mirror *mirrorStub) *Controller {
	var store *cache.Store
	if mirror != nil {
		store = cache.NewStore(mirror)
	} else {
		store = cache.NewStore(nil)
	}
	return NewController(backend, store, normalize.New(time.UTC), fixedNow)
}

const (
	roomsPayload    = `{"data":[{"id":5,"name":"Orion","capacity":8}]}`
	usersPayload    = `[{"user_id":"7","name":"Ada","email":"ada@example.com","role":{"id":1,"name":"Admin"}}]`
	meetingsPayload = `{"meetings":[{"id":11,"title":"Standup","agenda":"Status","start_time":"2024-01-01T09:00:00Z","end_time":"2024-01-01T09:15:00Z","room_id":5,"user_id":7,"status":"scheduled"}]}`
)

func seededController(t *testing.T, backend *backendStub) *Controller {
	t.Helper()
	c := newTestController(backend, nil)
	for _, kind := range []domain.Kind{domain.KindRoom, domain.KindUser, domain.KindMeeting} {
		outcome := c.Refresh(context.Background(), kind)
		require.Equal(t, FetchReady, outcome.State, "seed %s: %s", kind, outcome.Error)
	}
	return c
}

func defaultPayloads() map[domain.Kind]string {
	return map[domain.Kind]string{
		domain.KindRoom:    roomsPayload,
		domain.KindUser:    usersPayload,
		domain.KindMeeting: meetingsPayload,
	}
}

func TestRefreshAppliesNormalizedEntities(t *testing.T) {
	backend := newBackendStub(defaultPayloads())
	c := newTestController(backend, nil)

	assert.Equal(t, FetchIdle, c.State(domain.KindRoom))
	outcome := c.Refresh(context.Background(), domain.KindRoom)

	require.NoError(t, outcome.Err)
	assert.Equal(t, FetchReady, outcome.State)
	assert.Equal(t, normalize.ShapeDataEnvelope, outcome.Shape)
	assert.True(t, outcome.Matched)
	assert.Equal(t, 1, outcome.Applied)
	assert.Equal(t, FetchReady, c.State(domain.KindRoom))

	room, ok := c.Store().Room("5")
	require.True(t, ok)
	assert.Equal(t, "Orion", room.Name)
	assert.Equal(t, []int64{}, room.Features)
}

func TestRefreshUpsertsInPlace(t *testing.T) {
	backend := newBackendStub(nil)
	backend.list = func(_ context.Context, _ domain.Kind, n int) ([]byte, error) {
		if n == 1 {
			return []byte(`[{"id":1,"name":"A"},{"id":2,"name":"B"}]`), nil
		}
		return []byte(`[{"id":2,"name":"B2"}]`), nil
	}
	c := newTestController(backend, nil)

	c.Refresh(context.Background(), domain.KindRoom)
	c.Refresh(context.Background(), domain.KindRoom)

	rooms := c.Store().Rooms()
	require.Len(t, rooms, 2)
	assert.Equal(t, "A", rooms[0].Name)
	assert.Equal(t, "B2", rooms[1].Name)
}

func TestRefreshUnknownKind(t *testing.T) {
	backend := newBackendStub(nil)
	c := newTestController(backend, nil)

	outcome := c.Refresh(context.Background(), domain.Kind("widget"))
	assert.Equal(t, FetchFailed, outcome.State)
	assert.ErrorIs(t, outcome.Err, ErrUnknownKind)
	assert.Zero(t, backend.listCalls(domain.Kind("widget")))
}

func TestRefreshShapeMismatchKeepsCache(t *testing.T) {
	backend := newBackendStub(nil)
	backend.list = func(_ context.Context, _ domain.Kind, n int) ([]byte, error) {
		if n == 1 {
			return []byte(roomsPayload), nil
		}
		return []byte(`{"status":"ok"}`), nil
	}
	c := newTestController(backend, nil)
	c.Refresh(context.Background(), domain.KindRoom)

	outcome := c.Refresh(context.Background(), domain.KindRoom)
	assert.Equal(t, FetchReady, outcome.State)
	assert.False(t, outcome.Matched)
	assert.NoError(t, outcome.Err)
	assert.Equal(t, 1, c.Store().Len(domain.KindRoom))
}

func TestRefreshHardFailureRetainsCache(t *testing.T) {
	backend := newBackendStub(nil)
	backend.list = func(_ context.Context, _ domain.Kind, n int) ([]byte, error) {
		if n == 1 {
			return []byte(meetingsPayload), nil
		}
		return nil, &transport.StatusError{Method: "GET", Path: "/meetings", StatusCode: 502}
	}
	c := newTestController(backend, nil)
	c.Refresh(context.Background(), domain.KindMeeting)

	outcome := c.Refresh(context.Background(), domain.KindMeeting)
	assert.Equal(t, FetchFailed, outcome.State)
	assert.False(t, outcome.SoftFailure())
	assert.ErrorIs(t, outcome.Err, ErrBackend)
	assert.Equal(t, "transport", ErrorKind(outcome.Err))
	assert.Equal(t, FetchFailed, c.State(domain.KindMeeting))
	assert.Equal(t, 1, c.Store().Len(domain.KindMeeting))
}

func TestRefreshRoomsFallsBackToMirror(t *testing.T) {
	mirror := &mirrorStub{rooms: []domain.Room{
		{ID: "1", Name: "A", Features: []int64{}},
		{ID: "2", Name: "B", Features: []int64{1}},
		{ID: "3", Name: "C", Features: []int64{}},
	}}
	backend := newBackendStub(nil)
	backend.list = func(context.Context, domain.Kind, int) ([]byte, error) {
		return nil, errors.New("connection refused")
	}
	c := newTestController(backend, mirror)

	outcome := c.Refresh(context.Background(), domain.KindRoom)

	assert.Equal(t, FetchFailed, outcome.State)
	assert.True(t, outcome.Fallback)
	assert.True(t, outcome.SoftFailure())
	rooms := c.Store().Rooms()
	require.Len(t, rooms, 3)
	assert.Equal(t, []string{"A", "B", "C"}, []string{rooms[0].Name, rooms[1].Name, rooms[2].Name})
	assert.Zero(t, mirror.saves, "restoring must not write the mirror back")
}

func TestRefreshRoomsWithoutMirrorIsHardFailure(t *testing.T) {
	backend := newBackendStub(nil)
	backend.list = func(context.Context, domain.Kind, int) ([]byte, error) {
		return nil, errors.New("connection refused")
	}
	c := newTestController(backend, &mirrorStub{})

	outcome := c.Refresh(context.Background(), domain.KindRoom)
	assert.Equal(t, FetchFailed, outcome.State)
	assert.False(t, outcome.Fallback)
	assert.Empty(t, c.Store().Rooms())
}

func TestRefreshWritesRoomMirror(t *testing.T) {
	mirror := &mirrorStub{}
	backend := newBackendStub(defaultPayloads())
	c := newTestController(backend, mirror)

	c.Refresh(context.Background(), domain.KindRoom)
	c.Refresh(context.Background(), domain.KindMeeting)

	assert.Equal(t, 1, mirror.saves)
	require.Len(t, mirror.rooms, 1)
	assert.Equal(t, domain.ID("5"), mirror.rooms[0].ID)
}

func TestReloadDiscardsSupersededResponse(t *testing.T) {
	payloads := map[domain.Kind]string{
		domain.KindRoom:    `[{"id":1,"name":%q}]`,
		domain.KindMeeting: `[{"id":1,"title":%q,"start_time":"2024-03-04T10:00:00Z","end_time":"2024-03-04T11:00:00Z"}]`,
	}
	label := func(e domain.Entity) string {
		switch v := e.(type) {
		case domain.Room:
			return v.Name
		case domain.Meeting:
			return v.Title
		}
		return ""
	}
	for kind, payload := range payloads {
		for name, olderFirst := range map[string]bool{"older finishes last": false, "older finishes first": true} {
			t.Run(string(kind)+"/"+name, func(t *testing.T) {
				gates := map[int]chan struct{}{1: make(chan struct{}), 2: make(chan struct{})}
				backend := newBackendStub(nil)
				backend.started = make(chan listCall, 2)
				backend.list = func(_ context.Context, _ domain.Kind, n int) ([]byte, error) {
					<-gates[n]
					if n == 1 {
						return []byte(fmt.Sprintf(payload, "old")), nil
					}
					return []byte(fmt.Sprintf(payload, "new")), nil
				}
				c := newTestController(backend, nil)

				first := make(chan FetchOutcome, 1)
				go func() { first <- c.Refresh(context.Background(), kind) }()
				<-backend.started

				second := make(chan FetchOutcome, 1)
				go func() { second <- c.Reload(context.Background(), kind) }()
				<-backend.started

				var older, newer FetchOutcome
				if olderFirst {
					close(gates[1])
					older = <-first
					close(gates[2])
					newer = <-second
				} else {
					close(gates[2])
					newer = <-second
					close(gates[1])
					older = <-first
				}

				assert.True(t, older.Stale)
				assert.Zero(t, older.Applied)
				assert.False(t, newer.Stale)
				assert.Equal(t, 1, newer.Applied)

				entity, ok := c.Store().Get(kind, "1")
				require.True(t, ok)
				assert.Equal(t, "new", label(entity))
				assert.Equal(t, 1, c.Store().Len(kind))
				assert.Equal(t, FetchReady, c.State(kind))
			})
		}
	}
}

func TestRefreshCoalescesConcurrentCallers(t *testing.T) {
	gate := make(chan struct{})
	backend := newBackendStub(nil)
	backend.started = make(chan listCall, 4)
	backend.list = func(context.Context, domain.Kind, int) ([]byte, error) {
		<-gate
		return []byte(roomsPayload), nil
	}
	c := newTestController(backend, nil)

	const callers = 3
	results := make(chan FetchOutcome, callers)
	go func() { results <- c.Refresh(context.Background(), domain.KindRoom) }()
	<-backend.started
	for i := 1; i < callers; i++ {
		go func() { results <- c.Refresh(context.Background(), domain.KindRoom) }()
	}
	time.Sleep(50 * time.Millisecond)
	close(gate)

	for i := 0; i < callers; i++ {
		outcome := <-results
		assert.Equal(t, FetchReady, outcome.State)
	}
	assert.Equal(t, 1, backend.listCalls(domain.KindRoom))
}

func TestRefreshCallerCancellation(t *testing.T) {
	gate := make(chan struct{})
	backend := newBackendStub(nil)
	backend.list = func(context.Context, domain.Kind, int) ([]byte, error) {
		<-gate
		return []byte(roomsPayload), nil
	}
	c := newTestController(backend, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	outcome := c.Refresh(ctx, domain.KindRoom)
	assert.ErrorIs(t, outcome.Err, context.Canceled)

	close(gate)
	assert.Eventually(t, func() bool { return c.State(domain.KindRoom) == FetchReady }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, c.Store().Len(domain.KindRoom))
}

func TestSubmitCreateRejectedWithoutNetwork(t *testing.T) {
	backend := newBackendStub(defaultPayloads())
	c := seededController(t, backend)

	draft := validMeetingDraft()
	draft.EndTime = draft.StartTime
	outcome := c.SubmitCreate(context.Background(), draft)

	assert.Equal(t, MutationRejected, outcome.State)
	assert.Contains(t, outcome.Errors, "end_time")
	assert.Equal(t, "validation", ErrorKind(outcome.Err))
	assert.Empty(t, backend.creates)
	assert.Equal(t, 1, backend.listCalls(domain.KindMeeting))
}

func TestSubmitCreateFailureIsNotRetried(t *testing.T) {
	backend := newBackendStub(defaultPayloads())
	backend.createErr = &transport.StatusError{Method: "POST", Path: "/meetings", StatusCode: 500}
	c := seededController(t, backend)

	outcome := c.SubmitCreate(context.Background(), validMeetingDraft())

	assert.Equal(t, MutationSubmitFailed, outcome.State)
	assert.ErrorIs(t, outcome.Err, ErrBackend)
	assert.Len(t, backend.creates, 1)
	assert.Equal(t, 1, backend.listCalls(domain.KindMeeting), "failed submits do not refetch")
}

func TestSubmitCreateAppliedRefetches(t *testing.T) {
	payloads := defaultPayloads()
	backend := newBackendStub(payloads)
	c := seededController(t, backend)

	payloads[domain.KindMeeting] = `[` +
		`{"id":11,"title":"Standup","agenda":"Status","start_time":"2024-01-01T09:00:00Z","end_time":"2024-01-01T09:15:00Z","room_id":5,"user_id":7},` +
		`{"id":42,"title":"Planning","agenda":"Quarterly goals","start_time":"2024-01-01T10:00:00Z","end_time":"2024-01-01T11:00:00Z","room_id":5,"user_id":7}]`
	backend.createResp = []byte(`{"id":42,"title":"ignored"}`)

	outcome := c.SubmitCreate(context.Background(), validMeetingDraft())

	require.Equal(t, MutationApplied, outcome.State, outcome.Error)
	assert.Equal(t, domain.ID("42"), outcome.ID)
	require.Len(t, backend.creates, 1)
	assert.Equal(t, domain.KindMeeting, backend.creates[0].kind)
	assert.Equal(t, "Planning", backend.creates[0].fields["title"])

	require.Len(t, outcome.Refreshed, 2)
	assert.Equal(t, domain.KindMeeting, outcome.Refreshed[0].Kind)
	assert.Equal(t, domain.KindAttendee, outcome.Refreshed[1].Kind)

	meeting, ok := c.Store().Meeting("42")
	require.True(t, ok)
	assert.Equal(t, "Planning", meeting.Title)
	assert.Empty(t, outcome.Warnings)
}

func TestSubmitCreateReportsConflicts(t *testing.T) {
	backend := newBackendStub(defaultPayloads())
	c := seededController(t, backend)

	draft := validMeetingDraft()
	draft.StartTime = "2024-01-01T09:10"
	draft.EndTime = "2024-01-01T09:30"
	outcome := c.SubmitCreate(context.Background(), draft)

	require.Equal(t, MutationApplied, outcome.State, outcome.Error)
	require.Len(t, outcome.Warnings, 2)
	assert.Equal(t, "room", outcome.Warnings[0].Type)
	assert.Equal(t, domain.ID("11"), outcome.Warnings[0].MeetingID)
	assert.Equal(t, "participant", outcome.Warnings[1].Type)
	assert.Equal(t, domain.ID("7"), outcome.Warnings[1].ParticipantID)
}

func TestSubmitUpdateRequiresCachedEntity(t *testing.T) {
	backend := newBackendStub(defaultPayloads())
	c := seededController(t, backend)

	draft := validMeetingDraft()
	draft.ID = "99"
	outcome := c.SubmitUpdate(context.Background(), draft)
	assert.Equal(t, MutationRejected, outcome.State)
	assert.Contains(t, outcome.Errors, "id")
	assert.Empty(t, backend.updates)

	draft.ID = "11"
	outcome = c.SubmitUpdate(context.Background(), draft)
	require.Equal(t, MutationApplied, outcome.State, outcome.Error)
	require.Len(t, backend.updates, 1)
	assert.Equal(t, domain.ID("11"), backend.updates[0].id)
	assert.NotContains(t, backend.updates[0].fields, "status")
	assert.Empty(t, outcome.Warnings, "a meeting never conflicts with itself")
}

func TestSubmitUpdatePassesUploads(t *testing.T) {
	backend := newBackendStub(defaultPayloads())
	c := seededController(t, backend)

	upload := domain.Upload{Name: "plan.pdf", ContentType: "application/pdf", Content: []byte("%PDF")}
	outcome := c.SubmitUpdate(context.Background(), RoomDraft{ID: "5", Name: "Orion", Capacity: 10, Uploads: []domain.Upload{upload}})

	require.Equal(t, MutationApplied, outcome.State, outcome.Error)
	require.Len(t, backend.updates, 1)
	assert.Equal(t, []domain.Upload{upload}, backend.updates[0].files)
	require.Len(t, outcome.Refreshed, 1)
	assert.Equal(t, domain.KindRoom, outcome.Refreshed[0].Kind)
}

func TestSubmitDelete(t *testing.T) {
	payloads := defaultPayloads()
	backend := newBackendStub(payloads)
	c := seededController(t, backend)
	payloads[domain.KindMeeting] = `[]`

	outcome := c.SubmitDelete(context.Background(), domain.KindMeeting, "11")

	require.Equal(t, MutationApplied, outcome.State, outcome.Error)
	require.Len(t, backend.deletes, 1)
	_, ok := c.Store().Meeting("11")
	assert.False(t, ok)
	assert.Equal(t, 2, backend.listCalls(domain.KindMeeting))
}

func TestSubmitDeleteRejections(t *testing.T) {
	backend := newBackendStub(nil)
	c := newTestController(backend, nil)

	outcome := c.SubmitDelete(context.Background(), domain.KindFeature, "1")
	assert.Equal(t, MutationRejected, outcome.State)
	assert.ErrorIs(t, outcome.Err, ErrReadOnlyKind)

	outcome = c.SubmitDelete(context.Background(), domain.KindMeeting, " ")
	assert.Equal(t, MutationRejected, outcome.State)
	assert.Contains(t, outcome.Errors, "id")

	outcome = c.SubmitDelete(context.Background(), domain.Kind("widget"), "1")
	assert.ErrorIs(t, outcome.Err, ErrUnknownKind)
	assert.Empty(t, backend.deletes)
}

func TestSubmitDeleteFailureKeepsCache(t *testing.T) {
	backend := newBackendStub(defaultPayloads())
	backend.deleteErr = transport.ErrCircuitOpen
	c := seededController(t, backend)

	outcome := c.SubmitDelete(context.Background(), domain.KindMeeting, "11")
	assert.Equal(t, MutationSubmitFailed, outcome.State)
	assert.Equal(t, "circuit_open", ErrorKind(outcome.Err))
	_, ok := c.Store().Meeting("11")
	assert.True(t, ok)
}

func TestControllerValidateMeetingDraftUsesCache(t *testing.T) {
	backend := newBackendStub(defaultPayloads())
	c := seededController(t, backend)

	draft := validMeetingDraft()
	draft.RoomID = "5"
	assert.True(t, c.ValidateMeetingDraft(draft).Valid)

	draft.RoomID = "6"
	result := c.ValidateMeetingDraft(draft)
	assert.False(t, result.Valid)
	assert.Contains(t, result.Errors, "room_id")
}

func TestCreatedID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, domain.ID("42"), createdID([]byte(`{"id":42}`), domain.KindMeeting))
	assert.Equal(t, domain.ID("42"), createdID([]byte(`{"data":[{"meeting_id":"42"}]}`), domain.KindMeeting))
	assert.Equal(t, domain.ID(""), createdID(nil, domain.KindMeeting))
	assert.Equal(t, domain.ID(""), createdID([]byte(`{"ok":true}`), domain.KindMeeting))
}
