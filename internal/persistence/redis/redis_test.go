package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/roombooking/internal/domain"
	"github.com/example/roombooking/internal/persistence"
)

func newTestMirror(t *testing.T) (*Mirror, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewWithClient(client, ""), server
}

func TestMirrorRoundTrip(t *testing.T) {
	ctx := context.Background()
	mirror, server := newTestMirror(t)

	rooms, err := mirror.LoadRooms(ctx)
	require.NoError(t, err)
	assert.Nil(t, rooms)

	want := []domain.Room{
		{ID: "1", Name: "A", Capacity: 4, Features: []int64{2}},
		{ID: "2", Name: "B", Features: []int64{}},
		{ID: "3", Name: "C", Features: []int64{}},
	}
	require.NoError(t, mirror.SaveRooms(ctx, want))

	stored, err := server.Get(DefaultKey)
	require.NoError(t, err)
	assert.Contains(t, stored, `"name":"A"`)
	assert.Equal(t, 0, int(server.TTL(DefaultKey)), "mirror never expires")

	got, err := mirror.LoadRooms(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestMirrorCorruptValue(t *testing.T) {
	mirror, server := newTestMirror(t)
	require.NoError(t, server.Set(DefaultKey, "{broken"))

	_, err := mirror.LoadRooms(context.Background())
	assert.ErrorIs(t, err, persistence.ErrMirrorCorrupt)
}

func TestMirrorUnavailable(t *testing.T) {
	mirror, server := newTestMirror(t)
	server.Close()

	err := mirror.SaveRooms(context.Background(), []domain.Room{{ID: "1"}})
	assert.Error(t, err)
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(context.Background(), "not a url")
	assert.Error(t, err)
}

func TestNewConnects(t *testing.T) {
	server := miniredis.RunT(t)
	mirror, err := New(context.Background(), "redis://"+server.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = mirror.Close() })
	assert.NoError(t, mirror.Ping(context.Background()))
}
