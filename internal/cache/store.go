// Package cache holds the canonical entity collections shared by the
// reconciliation controller and the view projections.
//
// The Store keeps one insertion-ordered collection per kind, keyed by canonical
// id. Entities go in and come out as deep copies, so no caller can mutate cached
// state. Rooms are additionally written through to a persisted mirror that is
// read back when the backend cannot be reached.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/example/roombooking/internal/domain"
	"github.com/example/roombooking/internal/metrics"
	"github.com/example/roombooking/internal/persistence"
)

var (
	// ErrUnknownKind is returned for kinds the store does not hold.
	ErrUnknownKind = errors.New("cache: unknown kind")
	// ErrKindMismatch is returned when an entity is stored under the wrong kind.
	ErrKindMismatch = errors.New("cache: entity kind mismatch")
	// ErrMissingID is returned when an entity has no id.
	ErrMissingID = errors.New("cache: entity has no id")
)

// StoreOptions configures a Store.
type StoreOptions struct {
	// Mirror receives every Room write. Nil disables the mirror.
	Mirror  persistence.RoomMirror
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Store is the process-wide entity cache.
type Store struct {
	mu          sync.RWMutex
	collections map[domain.Kind]*collection

	// mirrorMu serializes mirror writes so the last write always carries the
	// newest room snapshot.
	mirrorMu sync.Mutex
	mirror   persistence.RoomMirror

	listenersMu  sync.Mutex
	listeners    map[int]func(domain.Kind)
	nextListener int

	logger  *slog.Logger
	metrics *metrics.Metrics
}

type collection struct {
	order []domain.ID
	items map[domain.ID]domain.Entity
}

func newCollection() *collection {
	return &collection{items: make(map[domain.ID]domain.Entity)}
}

// NewStore returns an empty store writing rooms through to mirror.
func NewStore(mirror persistence.RoomMirror) *Store {
	return NewStoreWithOptions(StoreOptions{Mirror: mirror})
}

// NewStoreWithOptions returns an empty store configured by opts.
func NewStoreWithOptions(opts StoreOptions) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		collections: make(map[domain.Kind]*collection, len(domain.Kinds())),
		mirror:      opts.Mirror,
		listeners:   make(map[int]func(domain.Kind)),
		logger:      logger.With("component", "cache"),
		metrics:     opts.Metrics,
	}
	for _, kind := range domain.Kinds() {
		s.collections[kind] = newCollection()
	}
	return s
}

// HasMirror reports whether rooms are mirrored.
func (s *Store) HasMirror() bool {
	return s.mirror != nil
}

// UpsertMany replaces cached entities that share an id with one of entities and
// appends the rest in order. Existing entities keep their position. Every
// entity must belong to kind and carry an id; otherwise nothing is written.
func (s *Store) UpsertMany(ctx context.Context, kind domain.Kind, entities []domain.Entity) error {
	copies := make([]domain.Entity, 0, len(entities))
	for i, entity := range entities {
		if entity == nil || entity.EntityKind() != kind {
			return fmt.Errorf("%w: element %d is not a %s", ErrKindMismatch, i, kind)
		}
		if entity.EntityID().Canonical().IsZero() {
			return fmt.Errorf("%w: element %d", ErrMissingID, i)
		}
		copies = append(copies, domain.CloneEntity(entity))
	}

	size, err := s.write(kind, func(c *collection) {
		for _, entity := range copies {
			id := entity.EntityID().Canonical()
			if _, exists := c.items[id]; !exists {
				c.order = append(c.order, id)
			}
			c.items[id] = entity
		}
	})
	if err != nil {
		return err
	}

	s.afterWrite(ctx, kind, size, true)
	return nil
}

// Remove deletes the entity with id and reports whether it was cached.
func (s *Store) Remove(ctx context.Context, kind domain.Kind, id domain.ID) (bool, error) {
	id = id.Canonical()
	removed := false
	size, err := s.write(kind, func(c *collection) {
		if _, ok := c.items[id]; !ok {
			return
		}
		delete(c.items, id)
		for i, existing := range c.order {
			if existing == id {
				c.order = append(c.order[:i:i], c.order[i+1:]...)
				break
			}
		}
		removed = true
	})
	if err != nil || !removed {
		return false, err
	}

	s.afterWrite(ctx, kind, size, true)
	return true, nil
}

// All returns copies of every cached entity of kind in insertion order.
func (s *Store) All(kind domain.Kind) []domain.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[kind]
	if !ok {
		return nil
	}
	out := make([]domain.Entity, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, domain.CloneEntity(c.items[id]))
	}
	return out
}

// Get returns a copy of the entity with id. Ids compare in canonical form, so
// "5" finds an entity stored with id 5.
func (s *Store) Get(kind domain.Kind, id domain.ID) (domain.Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[kind]
	if !ok {
		return nil, false
	}
	entity, ok := c.items[id.Canonical()]
	if !ok {
		return nil, false
	}
	return domain.CloneEntity(entity), true
}

// Len returns the number of cached entities of kind.
func (s *Store) Len(kind domain.Kind) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, ok := s.collections[kind]; ok {
		return len(c.order)
	}
	return 0
}

// RestoreRooms loads the persisted mirror into the room collection and returns
// how many rooms it held. The mirror is not written back.
func (s *Store) RestoreRooms(ctx context.Context) (int, error) {
	if s.mirror == nil {
		return 0, nil
	}
	rooms, err := s.mirror.LoadRooms(ctx)
	if err != nil {
		return 0, fmt.Errorf("cache: restore rooms: %w", err)
	}
	if len(rooms) == 0 {
		return 0, nil
	}

	entities := make([]domain.Entity, 0, len(rooms))
	for _, room := range rooms {
		if room.ID.Canonical().IsZero() {
			continue
		}
		entities = append(entities, room)
	}
	size, err := s.write(domain.KindRoom, func(c *collection) {
		for _, entity := range entities {
			id := entity.EntityID().Canonical()
			if _, exists := c.items[id]; !exists {
				c.order = append(c.order, id)
			}
			c.items[id] = entity
		}
	})
	if err != nil {
		return 0, err
	}
	s.afterWrite(ctx, domain.KindRoom, size, false)
	return len(entities), nil
}

// Reset clears the collection of kind. The room mirror is left intact.
func (s *Store) Reset(kind domain.Kind) {
	size, err := s.write(kind, func(c *collection) {
		c.order = nil
		c.items = make(map[domain.ID]domain.Entity)
	})
	if err != nil {
		return
	}
	s.afterWrite(context.Background(), kind, size, false)
}

// ResetAll clears every collection.
func (s *Store) ResetAll() {
	for _, kind := range domain.Kinds() {
		s.Reset(kind)
	}
}

// Subscribe registers fn to be called with the kind of every collection that
// changes. Notifications carry no values; readers pull what they need. The
// returned function cancels the subscription.
func (s *Store) Subscribe(fn func(domain.Kind)) (cancel func()) {
	s.listenersMu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.listenersMu.Lock()
			delete(s.listeners, id)
			s.listenersMu.Unlock()
		})
	}
}

func (s *Store) write(kind domain.Kind, fn func(c *collection)) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[kind]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	fn(c)
	return len(c.order), nil
}

func (s *Store) afterWrite(ctx context.Context, kind domain.Kind, size int, mirror bool) {
	s.metrics.SetCacheSize(kind, size)
	if mirror && kind == domain.KindRoom {
		s.saveMirror(ctx)
	}
	s.notify(kind)
}

// saveMirror writes the current room collection. Failures are logged and
// counted but never undo the cache write.
func (s *Store) saveMirror(ctx context.Context) {
	if s.mirror == nil {
		return
	}
	s.mirrorMu.Lock()
	defer s.mirrorMu.Unlock()

	rooms := s.Rooms()
	err := s.mirror.SaveRooms(context.WithoutCancel(ctx), rooms)
	s.metrics.MirrorWrite(err)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to write room mirror", "error", err, "rooms", len(rooms))
		return
	}
	s.logger.DebugContext(ctx, "room mirror written", "rooms", len(rooms))
}

func (s *Store) notify(kind domain.Kind) {
	s.listenersMu.Lock()
	listeners := make([]func(domain.Kind), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.listenersMu.Unlock()

	for _, fn := range listeners {
		fn(kind)
	}
}
