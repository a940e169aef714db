package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/example/roombooking/internal/application"
	"github.com/example/roombooking/internal/domain"
	"github.com/example/roombooking/internal/normalize"
	"github.com/example/roombooking/internal/views"
)

// Controller is the reconciliation surface driven by the handlers.
// *application.Controller satisfies it.
type Controller interface {
	State(kind domain.Kind) application.FetchState
	Location() *time.Location
	Refresh(ctx context.Context, kind domain.Kind) application.FetchOutcome
	Reload(ctx context.Context, kind domain.Kind) application.FetchOutcome
	ValidateMeetingDraft(draft application.MeetingDraft) application.ValidationResult
	SubmitCreate(ctx context.Context, draft application.Draft) application.MutationOutcome
	SubmitUpdate(ctx context.Context, draft application.Draft) application.MutationOutcome
	SubmitDelete(ctx context.Context, kind domain.Kind, id domain.ID) application.MutationOutcome
}

// Cache is the read side of the entity cache. *cache.Store satisfies it.
type Cache interface {
	views.Source
	Minutes() []domain.Minutes
	Get(kind domain.Kind, id domain.ID) (domain.Entity, bool)
}

// CollectionHandler serves the generic per-kind collection endpoints.
type CollectionHandler struct {
	controller Controller
	cache      Cache
	responder  responder
	logger     *slog.Logger
}

func NewCollectionHandler(controller Controller, cache Cache, logger *slog.Logger) *CollectionHandler {
	logger = defaultLogger(logger)
	return &CollectionHandler{
		controller: controller,
		cache:      cache,
		responder:  newResponder(logger),
		logger:     logger,
	}
}

func (h *CollectionHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "CollectionHandler", operation, attrs...)
}

type listResponse struct {
	Kind  domain.Kind            `json:"kind"`
	State application.FetchState `json:"state"`
	Items any                    `json:"items"`
}

// List writes the filtered collection named by the request kind.
func (h *CollectionHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	kind, ok := KindFromContext(ctx)
	if !ok {
		h.responder.handleServiceError(ctx, w, application.ErrUnknownKind)
		return
	}
	logger := h.log(ctx, "List")

	items, err := h.items(kind, r.URL.Query())
	if err != nil {
		logger.WarnContext(ctx, "rejected list query", "error", err)
		h.responder.writeError(ctx, w, http.StatusBadRequest, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, listResponse{
		Kind:  kind,
		State: h.controller.State(kind),
		Items: items,
	})
}

// Get writes one cached entity.
func (h *CollectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	kind, _ := KindFromContext(ctx)
	id, ok := EntityIDFromContext(ctx)
	if !ok {
		h.responder.writeError(ctx, w, http.StatusBadRequest, errMissingID)
		return
	}

	entity, found := h.cache.Get(kind, id)
	if !found {
		h.log(ctx, "Get").DebugContext(ctx, "entity not cached")
		h.responder.handleServiceError(ctx, w, fmt.Errorf("%w: %s %s", application.ErrNotFound, kind, id))
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, entity)
}

// Create submits a new entity of the request kind.
func (h *CollectionHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	kind, _ := KindFromContext(ctx)
	logger := h.log(ctx, "Create")

	draft, err := decodeDraft(r, kind, "")
	if err != nil {
		logger.WarnContext(ctx, "failed to decode draft", "error", err)
		h.writeDecodeError(ctx, w, err)
		return
	}
	h.responder.writeMutationOutcome(ctx, w, h.controller.SubmitCreate(ctx, draft))
}

// Update submits a replacement for the entity named by the request path.
func (h *CollectionHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	kind, _ := KindFromContext(ctx)
	id, ok := EntityIDFromContext(ctx)
	if !ok {
		h.responder.writeError(ctx, w, http.StatusBadRequest, errMissingID)
		return
	}
	logger := h.log(ctx, "Update")

	draft, err := decodeDraft(r, kind, id)
	if err != nil {
		logger.WarnContext(ctx, "failed to decode draft", "error", err)
		h.writeDecodeError(ctx, w, err)
		return
	}
	h.responder.writeMutationOutcome(ctx, w, h.controller.SubmitUpdate(ctx, draft))
}

// Delete submits the removal of the entity named by the request path.
func (h *CollectionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	kind, _ := KindFromContext(ctx)
	id, ok := EntityIDFromContext(ctx)
	if !ok {
		h.responder.writeError(ctx, w, http.StatusBadRequest, errMissingID)
		return
	}
	h.responder.writeMutationOutcome(ctx, w, h.controller.SubmitDelete(ctx, kind, id))
}

func (h *CollectionHandler) writeDecodeError(ctx context.Context, w http.ResponseWriter, err error) {
	if errors.Is(err, application.ErrUnknownKind) {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeError(ctx, w, http.StatusBadRequest, err)
}

func (h *CollectionHandler) items(kind domain.Kind, query url.Values) (any, error) {
	search := query.Get("q")
	switch kind {
	case domain.KindRoom:
		filter := views.RoomFilter{SearchText: search, Status: query.Get("status")}
		if raw := strings.TrimSpace(query.Get("min_capacity")); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: min_capacity must be a whole number", errInvalidQuery)
			}
			filter.MinCapacity = n
		}
		if raw := query["features"]; len(raw) > 0 {
			ids, err := formFeatureIDs(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: features must be a list of ids", errInvalidQuery)
			}
			filter.Features = ids
		}
		return views.FilterRooms(h.cache, filter), nil
	case domain.KindFeature:
		return normalize.FeatureCatalog(h.cache.Features()), nil
	case domain.KindUser:
		return views.FilterUsers(h.cache, views.UserFilter{SearchText: search, Role: query.Get("role")}), nil
	case domain.KindMeeting:
		filter, err := meetingFilter(query, h.controller.Location())
		if err != nil {
			return nil, err
		}
		return views.FilterMeetings(h.cache, filter), nil
	case domain.KindAttendee:
		if meetingID := domain.ID(strings.TrimSpace(query.Get("meeting_id"))); !meetingID.IsZero() {
			return views.MeetingRoster(h.cache, meetingID), nil
		}
		return nonNil(h.cache.Attendees()), nil
	case domain.KindMinutes:
		return minutesFor(h.cache.Minutes(), domain.ID(strings.TrimSpace(query.Get("meeting_id")))), nil
	case domain.KindActionItem:
		return views.FilterActionItems(h.cache, views.ActionItemFilter{
			Status:     query.Get("status"),
			AssignedTo: domain.ID(strings.TrimSpace(query.Get("assigned_to"))),
			MeetingID:  domain.ID(strings.TrimSpace(query.Get("meeting_id"))),
			MinutesID:  domain.ID(strings.TrimSpace(query.Get("minutes_id"))),
			SearchText: search,
		}), nil
	}
	return nil, fmt.Errorf("%w: %q", application.ErrUnknownKind, kind)
}

// meetingFilter reads the meeting list query. Dates are calendar days in loc.
func meetingFilter(query url.Values, loc *time.Location) (views.MeetingFilter, error) {
	if loc == nil {
		loc = time.UTC
	}
	filter := views.MeetingFilter{
		Status:     query.Get("status"),
		SearchText: query.Get("q"),
		RoomID:     domain.ID(strings.TrimSpace(query.Get("room_id"))),
		Location:   loc,
	}
	sortBy, ok := views.ParseMeetingSort(query.Get("sort"))
	if !ok {
		return filter, fmt.Errorf("%w: unknown sort %q", errInvalidQuery, query.Get("sort"))
	}
	filter.SortBy = sortBy
	if raw := strings.TrimSpace(query.Get("date")); raw != "" {
		day, err := time.ParseInLocation(time.DateOnly, raw, loc)
		if err != nil {
			return filter, fmt.Errorf("%w: date must be YYYY-MM-DD", errInvalidQuery)
		}
		filter.Date = day
	}
	return filter, nil
}

func minutesFor(all []domain.Minutes, meetingID domain.ID) []domain.Minutes {
	out := make([]domain.Minutes, 0, len(all))
	want := meetingID.Canonical()
	for _, minutes := range all {
		if !want.IsZero() && minutes.MeetingID.Canonical() != want {
			continue
		}
		out = append(out, minutes)
	}
	return out
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
