// Package file stores the Room mirror as a JSON file on local disk.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/example/roombooking/internal/domain"
	"github.com/example/roombooking/internal/persistence"
)

// Mirror writes the Room collection to Path. Saves go through a temporary file
// renamed over the target so a crash never leaves a half-written mirror.
type Mirror struct {
	path string
	mu   sync.Mutex
}

var _ persistence.RoomMirror = (*Mirror)(nil)

// New returns a mirror stored at path.
func New(path string) (*Mirror, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("file mirror: path is required")
	}
	return &Mirror{path: path}, nil
}

// Path returns the mirror file location.
func (m *Mirror) Path() string {
	return m.path
}

// SaveRooms overwrites the mirror file with rooms.
func (m *Mirror) SaveRooms(ctx context.Context, rooms []domain.Room) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := persistence.EncodeRooms(rooms)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if dir := filepath.Dir(m.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("file mirror: create directory: %w", err)
		}
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("file mirror: write: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("file mirror: replace: %w", err)
	}
	return nil
}

// LoadRooms reads the mirror file. A missing file yields no rooms.
func (m *Mirror) LoadRooms(ctx context.Context) ([]domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	data, err := os.ReadFile(m.path)
	m.mu.Unlock()

	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("file mirror: read: %w", err)
	}
	return persistence.DecodeRooms(data)
}
