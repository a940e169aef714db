package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/example/roombooking/internal/cache"
	"github.com/example/roombooking/internal/domain"
	"github.com/example/roombooking/internal/metrics"
	"github.com/example/roombooking/internal/normalize"
	"github.com/example/roombooking/internal/scheduler"
)

// Backend is the REST collaborator the controller fetches from and submits to.
type Backend interface {
	List(ctx context.Context, kind domain.Kind) ([]byte, error)
	Create(ctx context.Context, kind domain.Kind, fields map[string]any, files []domain.Upload) ([]byte, error)
	Update(ctx context.Context, kind domain.Kind, id domain.ID, fields map[string]any, files []domain.Upload) ([]byte, error)
	Delete(ctx context.Context, kind domain.Kind, id domain.ID) error
}

// Controller runs the fetch and mutation cycles. It is the only writer of the
// cache store.
//
// Fetches for one kind are serialized by generation: every initiated fetch
// takes the next generation number, and a response is applied only while its
// generation is still the newest for the kind. Older responses are discarded.
type Controller struct {
	backend    Backend
	store      *cache.Store
	normalizer *normalize.Normalizer
	now        func() time.Time
	logger     *slog.Logger
	metrics    *metrics.Metrics

	group singleflight.Group

	applyMu     sync.Mutex
	mu          sync.Mutex
	generations map[domain.Kind]uint64
	states      map[domain.Kind]FetchState
}

// NewController constructs a controller with the provided dependencies.
func NewController(backend Backend, store *cache.Store, normalizer *normalize.Normalizer, now func() time.Time) *Controller {
	return NewControllerWithLogger(backend, store, normalizer, now, nil, nil)
}

// NewControllerWithLogger constructs a controller with a specified logger and metrics.
func NewControllerWithLogger(backend Backend, store *cache.Store, normalizer *normalize.Normalizer, now func() time.Time, logger *slog.Logger, m *metrics.Metrics) *Controller {
	if normalizer == nil {
		normalizer = normalize.New(time.UTC)
	}
	if now == nil {
		now = time.Now
	}
	return &Controller{
		backend:     backend,
		store:       store,
		normalizer:  normalizer,
		now:         now,
		logger:      defaultLogger(logger),
		metrics:     m,
		generations: make(map[domain.Kind]uint64),
		states:      make(map[domain.Kind]FetchState),
	}
}

func (c *Controller) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, c.logger, "Controller", operation, attrs...)
}

// Store returns the cache the controller writes to.
func (c *Controller) Store() *cache.Store {
	return c.store
}

// Location returns the location used for zone-less timestamps.
func (c *Controller) Location() *time.Location {
	return c.normalizer.Location()
}

// State returns the fetch state of kind.
func (c *Controller) State(kind domain.Kind) FetchState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if state, ok := c.states[kind]; ok {
		return state
	}
	return FetchIdle
}

// Snapshot captures the cache contents validation needs.
func (c *Controller) Snapshot() Snapshot {
	return Snapshot{
		Rooms:    c.store.Rooms(),
		Users:    c.store.Users(),
		Meetings: c.store.Meetings(),
		Location: c.normalizer.Location(),
	}
}

// ValidateMeetingDraft validates draft against the current cache.
func (c *Controller) ValidateMeetingDraft(draft MeetingDraft) ValidationResult {
	return ValidateMeetingDraft(draft, c.Snapshot())
}

// Refresh fetches kind unless a fetch for it is already in flight, in which
// case the caller shares that fetch's outcome.
func (c *Controller) Refresh(ctx context.Context, kind domain.Kind) FetchOutcome {
	if !kind.Valid() {
		return unknownKindOutcome(kind)
	}
	return c.shared(ctx, kind)
}

// Reload always initiates a new fetch of kind. Any fetch still in flight is
// superseded and its response discarded.
func (c *Controller) Reload(ctx context.Context, kind domain.Kind) FetchOutcome {
	if !kind.Valid() {
		return unknownKindOutcome(kind)
	}
	c.group.Forget(string(kind))
	return c.shared(ctx, kind)
}

// RefreshAll refreshes every kind in order.
func (c *Controller) RefreshAll(ctx context.Context, kinds []domain.Kind) []FetchOutcome {
	outcomes := make([]FetchOutcome, 0, len(kinds))
	for _, kind := range kinds {
		outcomes = append(outcomes, c.Refresh(ctx, kind))
	}
	return outcomes
}

func (c *Controller) shared(ctx context.Context, kind domain.Kind) FetchOutcome {
	ch := c.group.DoChan(string(kind), func() (interface{}, error) {
		// The fetch outlives any single caller so that coalesced callers are
		// not cancelled by the one that started it.
		return c.fetch(context.WithoutCancel(ctx), kind), nil
	})
	select {
	case res := <-ch:
		return res.Val.(FetchOutcome)
	case <-ctx.Done():
		return FetchOutcome{Kind: kind, State: c.State(kind), Err: ctx.Err(), Error: ctx.Err().Error()}
	}
}

func unknownKindOutcome(kind domain.Kind) FetchOutcome {
	err := fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	return FetchOutcome{Kind: kind, State: FetchFailed, Err: err, Error: err.Error()}
}

func (c *Controller) begin(kind domain.Kind) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[kind]++
	c.states[kind] = FetchFetching
	return c.generations[kind]
}

// settle runs apply while gen is still the newest fetch of kind and records
// state. It reports false, without running apply, for superseded fetches.
// Applies are serialized by applyMu so that an older response can never land
// after a newer one; mu is not held during apply so cache listeners may read
// controller state.
func (c *Controller) settle(kind domain.Kind, gen uint64, state FetchState, apply func()) bool {
	c.applyMu.Lock()
	defer c.applyMu.Unlock()

	if !c.current(kind, gen) {
		return false
	}
	if apply != nil {
		apply()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[kind] == gen {
		c.states[kind] = state
	}
	return true
}

func (c *Controller) current(kind domain.Kind, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[kind] == gen
}

func (c *Controller) fetch(ctx context.Context, kind domain.Kind) (outcome FetchOutcome) {
	gen := c.begin(kind)
	start := c.now()
	logger := c.loggerWith(ctx, "Refresh", "kind", kind, "generation", gen)
	outcome = FetchOutcome{Kind: kind}

	defer func() {
		if outcome.Err != nil {
			outcome.Error = outcome.Err.Error()
		}
		switch {
		case outcome.Stale:
			c.metrics.StaleDiscard(kind)
			logger.InfoContext(ctx, "discarded superseded fetch response")
		case outcome.Err != nil && outcome.Fallback:
			logger.WarnContext(ctx, "fetch failed; serving room mirror", "error", outcome.Err, "error_kind", ErrorKind(outcome.Err))
		case outcome.Err != nil:
			logger.ErrorContext(ctx, "fetch failed", "error", outcome.Err, "error_kind", ErrorKind(outcome.Err))
		case !outcome.Matched:
			logger.WarnContext(ctx, "response matched no known shape", "error_kind", ErrorKind(ErrShapeMismatch))
		default:
			logger.With("applied", outcome.Applied, "skipped", outcome.Skipped, "shape", outcome.Shape).InfoContext(ctx, "fetch applied")
		}
		if !outcome.Stale {
			c.metrics.ObserveFetch(kind, string(outcome.State), c.now().Sub(start))
		}
	}()

	raw, err := c.backend.List(ctx, kind)
	if err != nil {
		c.fetchFailed(ctx, kind, gen, fmt.Errorf("%w: %w", ErrBackend, err), &outcome)
		return outcome
	}

	result := c.normalizer.Normalize(raw, kind)
	outcome.Shape = result.Shape
	outcome.Matched = result.Matched()
	outcome.Skipped = result.Skipped

	var storeErr error
	applied := c.settle(kind, gen, FetchReady, func() {
		if !result.Matched() || len(result.Entities) == 0 {
			return
		}
		storeErr = c.store.UpsertMany(ctx, kind, result.Entities)
	})
	switch {
	case !applied:
		outcome.Stale = true
		outcome.State = c.State(kind)
	case storeErr != nil:
		c.settle(kind, gen, FetchFailed, nil)
		outcome.State = FetchFailed
		outcome.Err = storeErr
	default:
		outcome.State = FetchReady
		if result.Matched() {
			outcome.Applied = len(result.Entities)
		}
	}
	return outcome
}

// fetchFailed records a transport failure. Rooms fall back to the persisted
// mirror; every other kind keeps whatever the cache already holds.
func (c *Controller) fetchFailed(ctx context.Context, kind domain.Kind, gen uint64, err error, outcome *FetchOutcome) {
	outcome.Err = err
	outcome.State = FetchFailed

	var restoreErr error
	ok := c.settle(kind, gen, FetchFailed, func() {
		if kind != domain.KindRoom || !c.store.HasMirror() {
			return
		}
		var restored int
		restored, restoreErr = c.store.RestoreRooms(ctx)
		if restoreErr == nil && (restored > 0 || c.store.Len(domain.KindRoom) > 0) {
			outcome.Fallback = true
			c.metrics.MirrorFallback()
		}
	})
	if !ok {
		outcome.Stale = true
		outcome.State = c.State(kind)
		return
	}
	if restoreErr != nil {
		outcome.Err = errors.Join(err, restoreErr)
	}
}

// SubmitCreate validates draft and, when valid, creates it on the backend and
// re-fetches the affected kinds.
func (c *Controller) SubmitCreate(ctx context.Context, draft Draft) MutationOutcome {
	return c.submit(ctx, OperationCreate, draft)
}

// SubmitUpdate validates draft and, when valid, replaces the entity it names.
// The entity must be cached.
func (c *Controller) SubmitUpdate(ctx context.Context, draft Draft) MutationOutcome {
	return c.submit(ctx, OperationUpdate, draft)
}

// SubmitDelete deletes the entity of kind with id. On success the entity is
// removed from the cache before the kind is re-fetched.
func (c *Controller) SubmitDelete(ctx context.Context, kind domain.Kind, id domain.ID) (outcome MutationOutcome) {
	id = id.Canonical()
	outcome = MutationOutcome{Kind: kind, Operation: OperationDelete, ID: id, State: MutationValidating}
	logger := c.loggerWith(ctx, "SubmitDelete", "kind", kind, "id", id)
	defer c.finishMutation(ctx, logger, &outcome)

	if err := checkMutable(kind); err != nil {
		c.reject(&outcome, err, map[string]string{"kind": err.Error()})
		return outcome
	}
	if id.IsZero() {
		vErr := &ValidationError{}
		vErr.add("id", "id is required")
		c.reject(&outcome, vErr, vErr.fields())
		return outcome
	}

	outcome.State = MutationSubmitting
	if err := c.backend.Delete(ctx, kind, id); err != nil {
		outcome.State = MutationSubmitFailed
		outcome.Err = fmt.Errorf("%w: %w", ErrBackend, err)
		return outcome
	}

	outcome.State = MutationApplied
	if _, err := c.store.Remove(ctx, kind, id); err != nil {
		logger.WarnContext(ctx, "failed to drop deleted entity from cache", "error", err)
	}
	outcome.Refreshed = c.reloadAfter(ctx, kind)
	return outcome
}

func (c *Controller) submit(ctx context.Context, op Operation, draft Draft) (outcome MutationOutcome) {
	kind := draft.DraftKind()
	id := draft.DraftID().Canonical()
	outcome = MutationOutcome{Kind: kind, Operation: op, ID: id, State: MutationValidating}
	logger := c.loggerWith(ctx, "Submit", "kind", kind, "mutation", op, "id", id)
	defer c.finishMutation(ctx, logger, &outcome)

	if err := checkMutable(kind); err != nil {
		c.reject(&outcome, err, map[string]string{"kind": err.Error()})
		return outcome
	}

	snap := c.Snapshot()
	fields, vErr := draft.validate(snap, op)
	if vErr == nil {
		vErr = &ValidationError{}
	}
	if op == OperationUpdate {
		switch {
		case id.IsZero():
			vErr.add("id", "id is required")
		default:
			if _, ok := c.store.Get(kind, id); !ok {
				vErr.add("id", fmt.Sprintf("%s does not exist", kind))
			}
		}
	}
	if vErr.HasErrors() {
		c.reject(&outcome, vErr, vErr.fields())
		return outcome
	}

	if meeting, ok := draft.(MeetingDraft); ok {
		outcome.Warnings = meetingConflicts(meeting, snap, c.store.Attendees())
	}

	outcome.State = MutationSubmitting
	var (
		raw []byte
		err error
	)
	if op == OperationCreate {
		raw, err = c.backend.Create(ctx, kind, fields, draft.uploads())
	} else {
		raw, err = c.backend.Update(ctx, kind, id, fields, draft.uploads())
	}
	if err != nil {
		outcome.State = MutationSubmitFailed
		outcome.Err = fmt.Errorf("%w: %w", ErrBackend, err)
		return outcome
	}

	outcome.State = MutationApplied
	if op == OperationCreate {
		outcome.ID = createdID(raw, kind)
	}
	outcome.Refreshed = c.reloadAfter(ctx, kind)
	return outcome
}

func (c *Controller) reject(outcome *MutationOutcome, err error, fields map[string]string) {
	outcome.State = MutationRejected
	outcome.Err = err
	outcome.Errors = fields
}

func (c *Controller) finishMutation(ctx context.Context, logger *slog.Logger, outcome *MutationOutcome) {
	if outcome.Err != nil {
		outcome.Error = outcome.Err.Error()
	}
	c.metrics.ObserveMutation(outcome.Kind, string(outcome.Operation), string(outcome.State))
	switch outcome.State {
	case MutationApplied:
		logger.With("id", outcome.ID, "warnings", len(outcome.Warnings)).InfoContext(ctx, "mutation applied")
	case MutationRejected:
		logger.InfoContext(ctx, "mutation rejected", "error", outcome.Err, "error_kind", ErrorKind(outcome.Err))
	default:
		logger.ErrorContext(ctx, "mutation failed", "error", outcome.Err, "error_kind", ErrorKind(outcome.Err))
	}
}

// reloadAfter re-fetches every kind a mutation of kind can change. Write
// responses are never trusted for cache state.
func (c *Controller) reloadAfter(ctx context.Context, kind domain.Kind) []FetchOutcome {
	kinds := []domain.Kind{kind}
	switch kind {
	case domain.KindMeeting:
		kinds = append(kinds, domain.KindAttendee)
	case domain.KindAttendee:
		kinds = append(kinds, domain.KindMeeting)
	case domain.KindMinutes:
		kinds = append(kinds, domain.KindActionItem)
	}
	outcomes := make([]FetchOutcome, 0, len(kinds))
	for _, k := range kinds {
		outcomes = append(outcomes, c.Reload(ctx, k))
	}
	return outcomes
}

func checkMutable(kind domain.Kind) error {
	switch {
	case !kind.Valid():
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	case kind == domain.KindFeature:
		return fmt.Errorf("%w: %s", ErrReadOnlyKind, kind)
	}
	return nil
}

// createdID extracts the id of a created entity from a write response. The
// response is otherwise ignored.
func createdID(raw []byte, kind domain.Kind) domain.ID {
	result := normalize.Normalize(raw, kind)
	if len(result.Entities) == 1 {
		return result.Entities[0].EntityID()
	}
	var wrapped []byte
	wrapped = append(wrapped, '[')
	wrapped = append(wrapped, raw...)
	wrapped = append(wrapped, ']')
	if result = normalize.Normalize(wrapped, kind); len(result.Entities) == 1 {
		return result.Entities[0].EntityID()
	}
	return ""
}

func meetingConflicts(draft MeetingDraft, snap Snapshot, attendees []domain.Attendee) []ConflictWarning {
	candidate, _ := buildMeeting(draft, snap)
	participants := func(m domain.Meeting) []domain.ID {
		ids := []domain.ID{m.UserID}
		for _, a := range m.Attendees {
			if !a.UserID.IsZero() {
				ids = append(ids, a.UserID)
			}
		}
		for _, a := range attendees {
			if sameID(a.MeetingID, m.ID) && !a.UserID.IsZero() {
				ids = append(ids, a.UserID)
			}
		}
		return ids
	}

	existing := make([]scheduler.Booking, 0, len(snap.Meetings))
	for _, m := range snap.Meetings {
		if m.Status == domain.MeetingCancelled {
			continue
		}
		existing = append(existing, scheduler.Booking{
			MeetingID:    m.ID,
			RoomID:       m.RoomID,
			Participants: participants(m),
			Start:        m.StartTime,
			End:          m.EndTime,
		})
	}
	conflicts := scheduler.DetectConflicts(existing, scheduler.Booking{
		MeetingID:    candidate.ID,
		RoomID:       candidate.RoomID,
		Participants: participants(candidate),
		Start:        candidate.StartTime,
		End:          candidate.EndTime,
	})
	return toConflictWarnings(conflicts)
}

func toConflictWarnings(conflicts []scheduler.Conflict) []ConflictWarning {
	if len(conflicts) == 0 {
		return nil
	}

	warnings := make([]ConflictWarning, 0, len(conflicts))
	for _, conflict := range conflicts {
		warnings = append(warnings, ConflictWarning{
			MeetingID:     conflict.WithMeetingID,
			Type:          string(conflict.Type),
			ParticipantID: conflict.Participant,
			RoomID:        conflict.RoomID,
		})
	}
	return warnings
}
