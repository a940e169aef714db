// Package persistence defines the durable Room mirror that backs the cache when
// the backend cannot be reached. Every backend stores the same document: a
// plain JSON array of canonical rooms, overwritten wholesale on each save.
package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/example/roombooking/internal/domain"
)

var (
	// ErrMirrorCorrupt is returned when a stored mirror cannot be decoded.
	ErrMirrorCorrupt = errors.New("persistence: mirror corrupt")
	// ErrMirrorClosed is returned by backends used after Close.
	ErrMirrorClosed = errors.New("persistence: mirror closed")
)

// RoomMirror persists the last known Room collection.
type RoomMirror interface {
	// SaveRooms replaces the stored collection.
	SaveRooms(ctx context.Context, rooms []domain.Room) error
	// LoadRooms returns the stored collection. A mirror that was never written
	// yields nil rooms and a nil error.
	LoadRooms(ctx context.Context) ([]domain.Room, error)
}

// EncodeRooms renders rooms as the mirror document. A nil slice encodes as an
// empty array.
func EncodeRooms(rooms []domain.Room) ([]byte, error) {
	if rooms == nil {
		rooms = []domain.Room{}
	}
	data, err := json.Marshal(rooms)
	if err != nil {
		return nil, fmt.Errorf("persistence: encode rooms: %w", err)
	}
	return data, nil
}

// DecodeRooms parses a mirror document. Empty input yields no rooms.
func DecodeRooms(data []byte) ([]domain.Room, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var rooms []domain.Room
	if err := json.Unmarshal(data, &rooms); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMirrorCorrupt, err)
	}
	for i, room := range rooms {
		if room.ID.IsZero() {
			return nil, fmt.Errorf("%w: room %d has no id", ErrMirrorCorrupt, i)
		}
		if room.Features == nil {
			rooms[i].Features = []int64{}
		}
	}
	return rooms, nil
}
