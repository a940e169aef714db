package testfixtures

import (
	"context"
	"sync"

	"github.com/example/roombooking/internal/domain"
	"github.com/example/roombooking/internal/persistence"
)

// MemoryMirror is an in-process room mirror. It stores the encoded mirror
// document so the codec runs exactly as it does for the durable backends.
type MemoryMirror struct {
	mu       sync.Mutex
	document []byte
	saves    int
	saveErr  error
	loadErr  error
}

// NewMemoryMirror returns a mirror pre-loaded with rooms. No rooms means a
// mirror that was never written.
func NewMemoryMirror(rooms ...domain.Room) *MemoryMirror {
	m := &MemoryMirror{}
	if len(rooms) > 0 {
		document, err := persistence.EncodeRooms(rooms)
		if err != nil {
			panic(err)
		}
		m.document = document
	}
	return m
}

func (m *MemoryMirror) SaveRooms(_ context.Context, rooms []domain.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	document, err := persistence.EncodeRooms(rooms)
	if err != nil {
		return err
	}
	m.document = document
	return nil
}

func (m *MemoryMirror) LoadRooms(context.Context) ([]domain.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return persistence.DecodeRooms(m.document)
}

// FailSaves makes SaveRooms fail with err. A nil err restores success.
func (m *MemoryMirror) FailSaves(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveErr = err
}

// FailLoads makes LoadRooms fail with err.
func (m *MemoryMirror) FailLoads(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadErr = err
}

// Saves returns how many times SaveRooms was called.
func (m *MemoryMirror) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Corrupt replaces the stored document with raw bytes.
func (m *MemoryMirror) Corrupt(raw []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.document = append([]byte(nil), raw...)
}
