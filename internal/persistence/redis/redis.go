// Package redis stores the Room mirror under a single Redis key.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/example/roombooking/internal/domain"
	"github.com/example/roombooking/internal/persistence"
)

// DefaultKey is the key used when none is configured.
const DefaultKey = "roombooking:rooms"

// Mirror keeps the Room collection as a JSON string value.
type Mirror struct {
	client *goredis.Client
	key    string
}

var _ persistence.RoomMirror = (*Mirror)(nil)

// New connects to the server at redisURL and verifies it is reachable.
func New(ctx context.Context, redisURL string) (*Mirror, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewWithClient(client, DefaultKey), nil
}

// NewWithClient wraps an existing client. An empty key selects DefaultKey.
func NewWithClient(client *goredis.Client, key string) *Mirror {
	if key == "" {
		key = DefaultKey
	}
	return &Mirror{client: client, key: key}
}

// SaveRooms overwrites the stored collection.
func (m *Mirror) SaveRooms(ctx context.Context, rooms []domain.Room) error {
	data, err := persistence.EncodeRooms(rooms)
	if err != nil {
		return err
	}
	if err := m.client.Set(ctx, m.key, data, 0).Err(); err != nil {
		return fmt.Errorf("save room mirror: %w", err)
	}
	return nil
}

// LoadRooms reads the stored collection. An absent key yields no rooms.
func (m *Mirror) LoadRooms(ctx context.Context) ([]domain.Room, error) {
	data, err := m.client.Get(ctx, m.key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load room mirror: %w", err)
	}
	return persistence.DecodeRooms(data)
}

// Ping checks if Redis is reachable.
func (m *Mirror) Ping(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (m *Mirror) Close() error {
	return m.client.Close()
}
