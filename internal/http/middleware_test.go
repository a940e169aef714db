package http

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/roombooking/internal/logging"
)

func TestRequestLogger(t *testing.T) {
	t.Parallel()

	t.Run("issues a request id and scopes the logger", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		base := slog.New(slog.NewJSONHandler(&buf, nil))

		var seenID string
		handler := RequestLogger(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := RequestIDFromContext(r.Context())
			require.True(t, ok)
			seenID = id
			require.NotNil(t, logging.FromContext(r.Context()))
			w.WriteHeader(http.StatusTeapot)
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rooms", nil))

		assert.Equal(t, http.StatusTeapot, rec.Code)
		_, err := uuid.Parse(seenID)
		require.NoError(t, err)
		assert.Equal(t, seenID, rec.Header().Get(RequestIDHeader))

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 2)
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(lines[1]), &entry))
		assert.Equal(t, "request completed", entry["msg"])
		assert.Equal(t, seenID, entry["request_id"])
		assert.Equal(t, "/rooms", entry["path"])
	})

	t.Run("keeps the caller's request id", func(t *testing.T) {
		t.Parallel()

		handler := RequestLogger(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
	})
}

func TestHandlerLoggerPrefersRequestLogger(t *testing.T) {
	t.Parallel()

	var scoped, fallback bytes.Buffer
	ctx := logging.ContextWithLogger(httptest.NewRequest(http.MethodGet, "/", nil).Context(),
		slog.New(slog.NewJSONHandler(&scoped, nil)))

	handlerLogger(ctx, slog.New(slog.NewJSONHandler(&fallback, nil)), "CollectionHandler", "List", "kind", "room").Info("listed")

	assert.Zero(t, fallback.Len())
	var entry map[string]any
	require.NoError(t, json.Unmarshal(scoped.Bytes(), &entry))
	assert.Equal(t, "CollectionHandler", entry["handler"])
	assert.Equal(t, "List", entry["operation"])
	assert.Equal(t, "room", entry["kind"])
}

func TestHandlerLoggerAddsRoutedAttributes(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	ctx := httptest.NewRequest(http.MethodGet, "/", nil).Context()
	ctx = ContextWithEntityID(ContextWithKind(ctx, "meeting"), "11")

	handlerLogger(ctx, slog.New(slog.NewJSONHandler(&buf, nil)), "CollectionHandler", "Get").Info("fetched")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "meeting", entry["kind"])
	assert.Equal(t, "11", entry["id"])
}
