package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/roombooking/internal/application"
	"github.com/example/roombooking/internal/cache"
	"github.com/example/roombooking/internal/config"
	httptransport "github.com/example/roombooking/internal/http"
	"github.com/example/roombooking/internal/logging"
	"github.com/example/roombooking/internal/metrics"
	"github.com/example/roombooking/internal/normalize"
	"github.com/example/roombooking/internal/persistence"
	"github.com/example/roombooking/internal/persistence/file"
	"github.com/example/roombooking/internal/persistence/redis"
	"github.com/example/roombooking/internal/persistence/sqlite"
	"github.com/example/roombooking/internal/refresher"
	"github.com/example/roombooking/internal/transport"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stdout); err != nil {
		slog.Error("booking daemon stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, out io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, out)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	m := metrics.New()

	mirror, closeMirror, err := openMirror(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open room mirror: %w", err)
	}
	defer func() {
		if cerr := closeMirror(); cerr != nil {
			logger.Error("failed to close room mirror", "error", cerr)
		}
	}()

	client, err := transport.NewWithOptions(transport.Config{
		BaseURL:            cfg.BackendURL,
		Token:              cfg.BackendToken,
		Timeout:            cfg.RequestTimeout,
		RateLimit:          cfg.RateLimit,
		RateBurst:          cfg.RateBurst,
		BreakerMaxFailures: cfg.BreakerMaxFailures,
		BreakerTimeout:     cfg.BreakerTimeout,
		Endpoints:          cfg.Endpoints,
	}, transport.Options{Logger: logger, Metrics: m})
	if err != nil {
		return fmt.Errorf("build backend client: %w", err)
	}

	store := cache.NewStoreWithOptions(cache.StoreOptions{Mirror: mirror, Logger: logger, Metrics: m})
	controller := application.NewControllerWithLogger(client, store, normalize.New(cfg.Timezone), time.Now, logger, m)

	var sched *refresher.Refresher
	if cfg.RefreshCron != "" {
		sched, err = refresher.New(cfg.RefreshCron, cfg.RefreshKinds, controller, cfg.Timezone, logger)
		if err != nil {
			return err
		}
	}

	server := newServer(cfg.HTTPPort, newHandler(controller, m, logger))

	// The first load runs alongside the server so rooms restored from the
	// mirror are served while the backend is slow or down.
	go func() {
		for _, outcome := range controller.RefreshAll(ctx, cfg.RefreshKinds) {
			logger.InfoContext(ctx, "initial load", "kind", outcome.Kind, "state", outcome.State, "stale_fallback", outcome.Fallback)
		}
		if sched != nil && ctx.Err() == nil {
			sched.Start(ctx)
		}
	}()

	return serve(ctx, server, logger, func() {
		if sched != nil {
			<-sched.Stop().Done()
		}
	})
}

// openMirror selects the room mirror backend. The returned close function is
// never nil.
func openMirror(ctx context.Context, cfg config.Config) (persistence.RoomMirror, func() error, error) {
	noop := func() error { return nil }

	switch cfg.MirrorBackend {
	case config.MirrorSQLite:
		storage, err := sqlite.Open(cfg.MirrorDSN)
		if err != nil {
			return nil, noop, err
		}
		if err := storage.Migrate(ctx); err != nil {
			_ = storage.Close()
			return nil, noop, err
		}
		return storage, storage.Close, nil
	case config.MirrorRedis:
		mirror, err := redis.New(ctx, cfg.RedisURL)
		if err != nil {
			return nil, noop, err
		}
		return mirror, mirror.Close, nil
	case config.MirrorFile, "":
		mirror, err := file.New(cfg.MirrorPath)
		if err != nil {
			return nil, noop, err
		}
		return mirror, noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown mirror backend %q", cfg.MirrorBackend)
	}
}

func newHandler(controller *application.Controller, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	store := controller.Store()
	return httptransport.NewRouter(httptransport.RouterConfig{
		Collections: httptransport.NewCollectionHandler(controller, store, logger),
		Meetings:    httptransport.NewMeetingHandler(controller, store, time.Now, logger),
		Sync:        httptransport.NewSyncHandler(controller, logger),
		Events:      httptransport.NewEventsHandler(store, logger),
		Metrics:     m.Handler(),
		Middleware:  []func(http.Handler) http.Handler{httptransport.RequestLogger(logger)},
	})
}

func newServer(port int, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// serve runs server until ctx is done, then drains requests and calls
// onShutdown before returning.
func serve(ctx context.Context, server *http.Server, logger *slog.Logger, onShutdown func()) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("booking API listening", "addr", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("failed to shutdown server", "error", err)
	}
	if onShutdown != nil {
		onShutdown()
	}
	logger.Info("booking API stopped")
	return nil
}
