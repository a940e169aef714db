package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/example/roombooking/internal/domain"
)

// SyncHandler serves refresh requests and the health report.
type SyncHandler struct {
	controller Controller
	responder  responder
	logger     *slog.Logger
}

func NewSyncHandler(controller Controller, logger *slog.Logger) *SyncHandler {
	logger = defaultLogger(logger)
	return &SyncHandler{controller: controller, responder: newResponder(logger), logger: logger}
}

func (h *SyncHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "SyncHandler", operation, attrs...)
}

// Refresh fetches the request kind. A caller joins a fetch already in
// flight unless force is set.
func (h *SyncHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	kind, _ := KindFromContext(ctx)
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	logger := h.log(ctx, "Refresh", "force", force)

	refresh := h.controller.Refresh
	if force {
		refresh = h.controller.Reload
	}
	outcome := refresh(ctx, kind)
	logger.DebugContext(ctx, "refresh finished", "state", outcome.State, "stale", outcome.Stale)
	h.responder.writeFetchOutcome(ctx, w, outcome)
}

type healthResponse struct {
	Status string                 `json:"status"`
	Kinds  map[domain.Kind]string `json:"kinds"`
}

// Health reports liveness together with the fetch state of every kind.
func (h *SyncHandler) Health(w http.ResponseWriter, r *http.Request) {
	states := make(map[domain.Kind]string, len(domain.Kinds()))
	for _, kind := range domain.Kinds() {
		states[kind] = string(h.controller.State(kind))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, healthResponse{Status: "ok", Kinds: states})
}
