package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/example/roombooking/internal/domain"
	"github.com/example/roombooking/internal/persistence"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "mirror.db")
	storage, err := Open(dsn)
	if err != nil {
		t.Fatalf("failed to open storage: %v", err)
	}

	t.Cleanup(func() {
		_ = storage.Close()
	})

	if err := storage.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	return storage
}

func TestStorageRoomMirror(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	storage.now = func() time.Time { return fixed }

	rooms, err := storage.LoadRooms(ctx)
	if err != nil {
		t.Fatalf("LoadRooms on empty mirror failed: %v", err)
	}
	if rooms != nil {
		t.Fatalf("expected no rooms, got %#v", rooms)
	}
	if _, ok, err := storage.UpdatedAt(ctx); err != nil || ok {
		t.Fatalf("expected no timestamp, got ok=%v err=%v", ok, err)
	}

	first := []domain.Room{{ID: "1", Name: "A", Features: []int64{1, 3}}}
	if err := storage.SaveRooms(ctx, first); err != nil {
		t.Fatalf("SaveRooms failed: %v", err)
	}

	want := []domain.Room{
		{ID: "1", Name: "A", Features: []int64{}},
		{ID: "2", Name: "B", Capacity: 6, Features: []int64{2}},
		{ID: "3", Name: "C", Location: "5F", Features: []int64{}},
	}
	if err := storage.SaveRooms(ctx, want); err != nil {
		t.Fatalf("SaveRooms overwrite failed: %v", err)
	}

	got, err := storage.LoadRooms(ctx)
	if err != nil {
		t.Fatalf("LoadRooms failed: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected rooms:\n got %#v\nwant %#v", got, want)
	}

	updated, ok, err := storage.UpdatedAt(ctx)
	if err != nil || !ok {
		t.Fatalf("UpdatedAt failed: ok=%v err=%v", ok, err)
	}
	if !updated.Equal(fixed) {
		t.Fatalf("expected timestamp %v, got %v", fixed, updated)
	}
}

func TestStorageCorruptPayload(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)

	if _, err := storage.db.ExecContext(ctx, `INSERT INTO room_mirror (id, payload, updated_at) VALUES (1, 'oops', '')`); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	_, err := storage.LoadRooms(ctx)
	if !errors.Is(err, persistence.ErrMirrorCorrupt) {
		t.Fatalf("expected ErrMirrorCorrupt, got %v", err)
	}
}

func TestOpenRequiresDSN(t *testing.T) {
	if _, err := Open(" "); err == nil {
		t.Fatal("expected error for blank dsn")
	}
}
