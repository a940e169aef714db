// Package refresher re-fetches cached collections on a cron schedule so that
// the cache converges with the backend without user interaction.
package refresher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/example/roombooking/internal/application"
	"github.com/example/roombooking/internal/domain"
)

// Target is the controller side the refresher drives.
type Target interface {
	Refresh(ctx context.Context, kind domain.Kind) application.FetchOutcome
}

// Refresher runs Refresh for a fixed list of kinds on every cron tick. Ticks
// that fire while the previous run is still going are skipped.
type Refresher struct {
	target Target
	kinds  []domain.Kind
	logger *slog.Logger
	cron   *cron.Cron

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// New parses spec and prepares a refresher. Nothing runs until Start.
func New(spec string, kinds []domain.Kind, target Target, loc *time.Location, logger *slog.Logger) (*Refresher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	logger = logger.With("component", "refresher")

	cronLogger := slogAdapter{logger: logger}
	r := &Refresher{
		target: target,
		kinds:  append([]domain.Kind(nil), kinds...),
		logger: logger,
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		ctx: context.Background(),
	}
	if _, err := r.cron.AddFunc(spec, r.tick); err != nil {
		return nil, fmt.Errorf("refresher: invalid schedule %q: %w", spec, err)
	}
	return r, nil
}

// RunOnce refreshes every configured kind in order and returns the outcomes.
func (r *Refresher) RunOnce(ctx context.Context) []application.FetchOutcome {
	outcomes := make([]application.FetchOutcome, 0, len(r.kinds))
	failed := 0
	for _, kind := range r.kinds {
		if ctx.Err() != nil {
			break
		}
		outcome := r.target.Refresh(ctx, kind)
		if outcome.State == application.FetchFailed && !outcome.SoftFailure() {
			failed++
		}
		outcomes = append(outcomes, outcome)
	}
	r.logger.With("kinds", len(outcomes), "failed", failed).InfoContext(ctx, "scheduled refresh finished")
	return outcomes
}

// Start begins scheduling. Runs use ctx until Stop is called.
func (r *Refresher) Start(ctx context.Context) {
	r.mu.Lock()
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.mu.Unlock()
	r.cron.Start()
	r.logger.InfoContext(ctx, "refresher started", "next", r.Next())
}

// Stop halts scheduling, cancels a run in progress and returns a context that
// is done once that run has returned.
func (r *Refresher) Stop() context.Context {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()
	return r.cron.Stop()
}

// Next reports the next scheduled run, or the zero time before Start.
func (r *Refresher) Next() time.Time {
	entries := r.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (r *Refresher) tick() {
	r.mu.Lock()
	ctx := r.ctx
	r.mu.Unlock()
	r.RunOnce(ctx)
}

// slogAdapter routes cron's internal logging to slog.
type slogAdapter struct {
	logger *slog.Logger
}

func (a slogAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Debug(msg, keysAndValues...)
}

func (a slogAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
