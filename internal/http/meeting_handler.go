package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/roombooking/internal/application"
	"github.com/example/roombooking/internal/domain"
	"github.com/example/roombooking/internal/views"
)

// MeetingHandler serves the meeting specific endpoints: draft validation,
// rosters and the iCalendar feed.
type MeetingHandler struct {
	controller Controller
	cache      Cache
	now        func() time.Time
	responder  responder
	logger     *slog.Logger
}

func NewMeetingHandler(controller Controller, cache Cache, now func() time.Time, logger *slog.Logger) *MeetingHandler {
	logger = defaultLogger(logger)
	if now == nil {
		now = time.Now
	}
	return &MeetingHandler{
		controller: controller,
		cache:      cache,
		now:        now,
		responder:  newResponder(logger),
		logger:     logger,
	}
}

func (h *MeetingHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "MeetingHandler", operation, attrs...)
}

// Validate checks a meeting draft against the cache without submitting it.
// An invalid draft is still a 200: the verdict is the payload.
func (h *MeetingHandler) Validate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	draft, err := decodeDraft(r, domain.KindMeeting, "")
	if err != nil {
		h.log(ctx, "Validate").WarnContext(ctx, "failed to decode draft", "error", err)
		h.responder.writeError(ctx, w, http.StatusBadRequest, err)
		return
	}
	result := h.controller.ValidateMeetingDraft(draft.(application.MeetingDraft))
	if result.Errors == nil {
		result.Errors = map[string]string{}
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, result)
}

// Roster lists the attendees of the meeting named by the request path.
func (h *MeetingHandler) Roster(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := EntityIDFromContext(ctx)
	if !ok {
		h.responder.writeError(ctx, w, http.StatusBadRequest, errMissingID)
		return
	}
	if _, found := h.cache.Get(domain.KindMeeting, id); !found {
		h.responder.handleServiceError(ctx, w, application.ErrNotFound)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, listResponse{
		Kind:  domain.KindAttendee,
		State: h.controller.State(domain.KindAttendee),
		Items: views.MeetingRoster(h.cache, id),
	})
}

// Calendar writes the meetings matching the list query as text/calendar.
func (h *MeetingHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter, err := meetingFilter(r.URL.Query(), h.controller.Location())
	if err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, err)
		return
	}
	meetings := views.FilterMeetings(h.cache, filter)
	body := views.MeetingsICS(h.cache, meetings, h.now())

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="meetings.ics"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(body)); err != nil {
		h.log(ctx, "Calendar").ErrorContext(ctx, "failed to write calendar", "error", err)
	}
}
