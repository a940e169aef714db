package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/example/roombooking/internal/domain"
	"github.com/example/roombooking/internal/testfixtures"
)

func TestEventsStreamChanges(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	server := httptest.NewServer(srv.handler)
	t.Cleanup(server.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/events"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "test complete")

	var hello Event
	require.NoError(t, wsjson.Read(ctx, conn, &hello))
	assert.Equal(t, eventConnected, hello.Event)
	assert.NotEmpty(t, hello.ClientID)

	srv.factory.Backend.SetList(domain.KindRoom, testfixtures.BareArray(testfixtures.NewRoomFixture(testfixtures.WithRoomID(1)).Record()))
	srv.controller.Refresh(ctx, domain.KindRoom)

	var changed Event
	require.NoError(t, wsjson.Read(ctx, conn, &changed))
	assert.Equal(t, Event{Kind: domain.KindRoom, Event: eventChanged}, changed)
}

func TestEventsRejectsPlainRequests(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	rec := srv.do(t, http.MethodGet, "/events", nil, "")
	assert.Equal(t, http.StatusUpgradeRequired, rec.Code)
}
