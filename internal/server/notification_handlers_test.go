package server

import (
	"net/http"
	"strconv"
	"testing"

	"devshelf/internal/models"
	"devshelf/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestNotificationInbox(t *testing.T) {
	ts := newTestServer(t)
	alice := testutil.CreateUser(t, ts.db, "alice")
	aliceToken := ts.tokenFor(t, alice)

	// Three followers produce three follow notifications for Alice.
	for _, name := range []string{"bob", "carol", "dave"} {
		follower := testutil.CreateUser(t, ts.db, name)
		status, _ := ts.do(t, http.MethodPost, userPath(alice, "/follow"), nil, ts.tokenFor(t, follower))
		require.Equal(t, http.StatusOK, status)
	}

	status, body := ts.do(t, http.MethodGet, "/api/notifications", nil, aliceToken)
	require.Equal(t, http.StatusOK, status)
	items := gjson.Parse(body).Array()
	require.Len(t, items, 3)
	assert.Equal(t, string(models.NotificationFollow), items[0].Get("type").String())
	assert.Equal(t, "dave", items[0].Get("actor.username").String())
	assert.NotEmpty(t, items[0].Get("message").String())
	assert.False(t, items[0].Get("is_read").Bool())

	firstID := strconv.FormatInt(items[0].Get("id").Int(), 10)

	status, _ = ts.do(t, http.MethodPost, "/api/notifications/"+firstID+"/read", nil, aliceToken)
	require.Equal(t, http.StatusOK, status)

	status, body = ts.do(t, http.MethodGet, "/api/notifications/unread-count", nil, aliceToken)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(2), gjson.Get(body, "count").Int())

	status, body = ts.do(t, http.MethodGet, "/api/notifications?unread=true", nil, aliceToken)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, gjson.Parse(body).Array(), 2)

	status, body = ts.do(t, http.MethodGet, "/api/notifications?limit=1&offset=1", nil, aliceToken)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "carol", gjson.Get(body, "0.actor.username").String())

	t.Run("other users cannot touch the inbox", func(t *testing.T) {
		mallory := testutil.CreateUser(t, ts.db, "mallory")
		malloryToken := ts.tokenFor(t, mallory)

		status, _ := ts.do(t, http.MethodPost, "/api/notifications/"+firstID+"/read", nil, malloryToken)
		assert.Equal(t, http.StatusNotFound, status)
		status, _ = ts.do(t, http.MethodDelete, "/api/notifications/"+firstID, nil, malloryToken)
		assert.Equal(t, http.StatusNotFound, status)
	})

	status, body = ts.do(t, http.MethodPost, "/api/notifications/read-all", nil, aliceToken)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(2), gjson.Get(body, "updated").Int())

	status, _ = ts.do(t, http.MethodDelete, "/api/notifications/"+firstID, nil, aliceToken)
	require.Equal(t, http.StatusOK, status)

	status, body = ts.do(t, http.MethodGet, "/api/notifications", nil, aliceToken)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, gjson.Parse(body).Array(), 2)

	status, body = ts.do(t, http.MethodGet, "/api/notifications/unread-count", nil, aliceToken)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(0), gjson.Get(body, "count").Int())
}

func TestNotifications_RequireAuth(t *testing.T) {
	ts := newTestServer(t)

	status, _ := ts.do(t, http.MethodGet, "/api/notifications", nil, "")

	assert.Equal(t, http.StatusUnauthorized, status)
}
