package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/roombooking/internal/application"
	"github.com/example/roombooking/internal/domain"
)

func TestDecodeDraftJSON(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodPost, "/minutes", strings.NewReader(
		`{"meeting_id":"11","notes":"Shipped","action_items":[{"task":"Write recap","assigned_to":7}]}`))
	req.Header.Set("Content-Type", "application/json")

	draft, err := decodeDraft(req, domain.KindMinutes, "")
	require.NoError(t, err)
	minutes, ok := draft.(application.MinutesDraft)
	require.True(t, ok)
	assert.Equal(t, domain.ID("11"), minutes.MeetingID)
	require.Len(t, minutes.ActionItems, 1)
	assert.Equal(t, domain.ID("7"), minutes.ActionItems[0].AssignedTo)
}

func TestDecodeDraftRejectsEmptyBody(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader("  "))
	_, err := decodeDraft(req, domain.KindUser, "")
	assert.ErrorIs(t, err, errBadRequestBody)

	_, err = decodeDraft(httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{}")), domain.Kind("booking"), "")
	assert.ErrorIs(t, err, application.ErrUnknownKind)
}

func TestFormDocument(t *testing.T) {
	t.Parallel()

	doc, err := formDocument(domain.KindRoom, map[string][]string{
		"name":     {"Cedar"},
		"capacity": {" 12 "},
		"features": {"2, 4", "6"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "Cedar", "capacity": 12, "features": []int64{2, 4, 6}}, doc)

	_, err = formDocument(domain.KindRoom, map[string][]string{"capacity": {"twelve"}})
	assert.ErrorIs(t, err, errBadRequestBody)

	doc, err = formDocument(domain.KindMinutes, map[string][]string{
		"meeting_id":   {"11"},
		"action_items": {`[{"task":"Book venue"}]`},
	})
	require.NoError(t, err)
	encoded, err := json.Marshal(doc)
	require.NoError(t, err)
	var minutes application.MinutesDraft
	require.NoError(t, json.Unmarshal(encoded, &minutes))
	require.Len(t, minutes.ActionItems, 1)
	assert.Equal(t, "Book venue", minutes.ActionItems[0].Task)

	doc, err = formDocument(domain.KindUser, map[string][]string{"capacity": {"3"}})
	require.NoError(t, err)
	assert.Equal(t, "3", doc["capacity"], "only rooms have a numeric capacity")
}
