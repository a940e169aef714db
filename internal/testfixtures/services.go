package testfixtures

import (
	"io"
	"log/slog"
	"time"

	"github.com/example/roombooking/internal/application"
	"github.com/example/roombooking/internal/cache"
	"github.com/example/roombooking/internal/metrics"
	"github.com/example/roombooking/internal/normalize"
	"github.com/example/roombooking/internal/persistence"
)

// ServiceFactory assembles a controller over a fake backend with a
// deterministic clock, so tests only script what they care about.
type ServiceFactory struct {
	Clock    *Clock
	Backend  *FakeBackend
	Mirror   persistence.RoomMirror
	Location *time.Location
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a factory with a fresh backend, an empty
// memory mirror, UTC and a discarding logger.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:    NewClock(time.Time{}),
		Backend:  NewFakeBackend(),
		Mirror:   NewMemoryMirror(),
		Location: time.UTC,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:  metrics.New(),
	}
	for _, opt := range opts {
		opt(factory)
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithMirror overrides the room mirror. Nil disables mirroring.
func WithMirror(mirror persistence.RoomMirror) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Mirror = mirror
	}
}

// WithLocation sets the zone used for zone-less draft times.
func WithLocation(loc *time.Location) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Location = loc
	}
}

// WithLogger routes controller and cache logs to logger.
func WithLogger(logger *slog.Logger) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Logger = logger
	}
}

// NewStore returns an empty cache writing through to the factory mirror.
func (f *ServiceFactory) NewStore() *cache.Store {
	return cache.NewStoreWithOptions(cache.StoreOptions{
		Mirror:  f.Mirror,
		Logger:  f.Logger,
		Metrics: f.Metrics,
	})
}

// NewController returns a controller over the factory backend and a new store.
func (f *ServiceFactory) NewController() *application.Controller {
	return application.NewControllerWithLogger(
		f.Backend,
		f.NewStore(),
		normalize.New(f.Location),
		f.Clock.NowFunc(),
		f.Logger,
		f.Metrics,
	)
}
