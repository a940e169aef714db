package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/example/roombooking/internal/domain"
)

const (
	eventConnected = "connected"
	eventChanged   = "changed"

	eventWriteTimeout = 5 * time.Second
	eventBuffer       = 64
)

// Subscriber delivers cache change notifications. *cache.Store satisfies it.
type Subscriber interface {
	Subscribe(fn func(domain.Kind)) (cancel func())
}

// Event is one websocket message. Change events carry the kind only; clients
// pull the new contents themselves.
type Event struct {
	Kind     domain.Kind `json:"kind,omitempty"`
	Event    string      `json:"event"`
	ClientID string      `json:"client_id,omitempty"`
}

// EventsHandler streams cache change notifications over websockets.
type EventsHandler struct {
	source  Subscriber
	options *websocket.AcceptOptions
	logger  *slog.Logger
	clients atomic.Int64
}

// NewEventsHandler returns a handler accepting websocket clients whose Origin
// matches one of originPatterns. Same-origin and Origin-less clients are
// always accepted.
func NewEventsHandler(source Subscriber, logger *slog.Logger, originPatterns ...string) *EventsHandler {
	return &EventsHandler{
		source:  source,
		options: &websocket.AcceptOptions{OriginPatterns: originPatterns},
		logger:  defaultLogger(logger),
	}
}

// Clients returns the number of connected clients.
func (h *EventsHandler) Clients() int64 {
	return h.clients.Load()
}

func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clientID := uuid.NewString()
	ctx := r.Context()
	logger := handlerLogger(ctx, h.logger, "EventsHandler", "Stream", "client_id", clientID)

	// Subscribe before the handshake completes so no change made after the
	// client sees the upgrade is missed.
	events := make(chan domain.Kind, eventBuffer)
	cancel := h.source.Subscribe(func(kind domain.Kind) {
		select {
		case events <- kind:
		default:
			logger.WarnContext(ctx, "dropping change event for slow client", "kind", kind)
		}
	})
	defer cancel()

	conn, err := websocket.Accept(w, r, h.options)
	if err != nil {
		logger.WarnContext(ctx, "websocket handshake failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "unexpected shutdown")

	h.clients.Add(1)
	defer h.clients.Add(-1)
	logger.InfoContext(ctx, "events client connected", "clients", h.clients.Load())

	// Clients never send; CloseRead handles control frames and cancels ctx
	// once the peer goes away.
	ctx = conn.CloseRead(ctx)
	if err := h.write(ctx, conn, Event{Event: eventConnected, ClientID: clientID}); err != nil {
		logger.WarnContext(ctx, "failed to greet events client", "error", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			logger.InfoContext(ctx, "events client disconnected")
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case kind := <-events:
			if err := h.write(ctx, conn, Event{Kind: kind, Event: eventChanged}); err != nil {
				if !errors.Is(err, context.Canceled) {
					logger.WarnContext(ctx, "failed to send change event", "kind", kind, "error", err)
				}
				return
			}
		}
	}
}

func (h *EventsHandler) write(ctx context.Context, conn *websocket.Conn, event Event) error {
	writeCtx, cancel := context.WithTimeout(ctx, eventWriteTimeout)
	defer cancel()
	return wsjson.Write(writeCtx, conn, event)
}
