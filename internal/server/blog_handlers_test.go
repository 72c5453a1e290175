package server

import (
	"net/http"
	"strconv"
	"testing"

	"devshelf/internal/models"
	"devshelf/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func blogPath(id int64, suffix string) string {
	return "/api/blogs/" + strconv.FormatInt(id, 10) + suffix
}

func TestBlogLifecycle(t *testing.T) {
	ts := newTestServer(t)
	alice := testutil.CreateUser(t, ts.db, "alice")
	bob := testutil.CreateUser(t, ts.db, "bob")
	aliceToken := ts.tokenFor(t, alice)
	bobToken := ts.tokenFor(t, bob)

	// Bob follows Alice so her new post fans out to him.
	status, _ := ts.do(t, http.MethodPost, userPath(alice, "/follow"), nil, bobToken)
	require.Equal(t, http.StatusOK, status)

	status, body := ts.do(t, http.MethodPost, "/api/blogs", fiber.Map{
		"title":   "Graceful shutdown in Go",
		"content": "# Intro\n\nUse **context** and `signal.NotifyContext` to drain requests.",
		"tags":    []string{"Go", "go", "servers"},
	}, aliceToken)
	require.Equal(t, http.StatusCreated, status, body)

	id := gjson.Get(body, "id").Int()
	shareCode := gjson.Get(body, "share_code").String()
	assert.True(t, gjson.Get(body, "published").Bool(), "blogs are published unless asked otherwise")
	assert.NotEmpty(t, shareCode)
	assert.Equal(t, "alice", gjson.Get(body, "author.username").String())
	assert.NotContains(t, gjson.Get(body, "excerpt").String(), "**")
	assert.Len(t, gjson.Get(body, "tags").Array(), 2)
	assert.NotEmpty(t, gjson.Get(body, "topic").String())

	status, body = ts.do(t, http.MethodGet, "/api/notifications", nil, bobToken)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, string(models.NotificationNewBlog), gjson.Get(body, "0.type").String())

	t.Run("read by id and share code", func(t *testing.T) {
		status, body := ts.do(t, http.MethodGet, blogPath(id, ""), nil, "")
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "Graceful shutdown in Go", gjson.Get(body, "title").String())

		status, body = ts.do(t, http.MethodGet, "/api/blogs/s/"+shareCode, nil, "")
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, id, gjson.Get(body, "id").Int())

		status, _ = ts.do(t, http.MethodGet, "/api/blogs/s/not-a-code", nil, "")
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("list and search", func(t *testing.T) {
		status, body := ts.do(t, http.MethodGet, "/api/blogs?q=shutdown", nil, "")
		require.Equal(t, http.StatusOK, status)
		assert.Len(t, gjson.Parse(body).Array(), 1)

		status, body = ts.do(t, http.MethodGet, "/api/blogs?q=kubernetes", nil, "")
		require.Equal(t, http.StatusOK, status)
		assert.Len(t, gjson.Parse(body).Array(), 0)

		status, _ = ts.do(t, http.MethodGet, "/api/blogs?sort=sideways", nil, "")
		assert.Equal(t, http.StatusBadRequest, status)

		status, _ = ts.do(t, http.MethodGet, "/api/blogs?sort=following", nil, "")
		assert.Equal(t, http.StatusUnauthorized, status)

		status, body = ts.do(t, http.MethodGet, "/api/blogs?sort=following", nil, bobToken)
		require.Equal(t, http.StatusOK, status)
		assert.Len(t, gjson.Parse(body).Array(), 1)
	})

	t.Run("only the author edits", func(t *testing.T) {
		status, _ := ts.do(t, http.MethodPut, blogPath(id, ""), fiber.Map{"title": "Hijacked"}, bobToken)
		assert.Equal(t, http.StatusUnauthorized, status)

		status, body := ts.do(t, http.MethodPut, blogPath(id, ""), fiber.Map{"title": "Graceful shutdown, revisited"}, aliceToken)
		require.Equal(t, http.StatusOK, status, body)
		assert.Equal(t, "Graceful shutdown, revisited", gjson.Get(body, "title").String())
		assert.Equal(t, shareCode, gjson.Get(body, "share_code").String())
	})

	t.Run("delete", func(t *testing.T) {
		status, _ := ts.do(t, http.MethodDelete, blogPath(id, ""), nil, bobToken)
		assert.Equal(t, http.StatusUnauthorized, status)

		status, _ = ts.do(t, http.MethodDelete, blogPath(id, ""), nil, aliceToken)
		require.Equal(t, http.StatusOK, status)

		status, _ = ts.do(t, http.MethodGet, blogPath(id, ""), nil, "")
		assert.Equal(t, http.StatusNotFound, status)
	})
}

func TestCreateBlog_Validation(t *testing.T) {
	ts := newTestServer(t)
	token := ts.tokenFor(t, testutil.CreateUser(t, ts.db, "alice"))

	tests := []struct {
		name string
		body fiber.Map
	}{
		{"missing title", fiber.Map{"content": "body"}},
		{"missing content", fiber.Map{"title": "Title"}},
		{"unknown topic", fiber.Map{"title": "Title", "content": "body", "topic": "astrology"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := ts.do(t, http.MethodPost, "/api/blogs", tt.body, token)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, models.CodeValidation, gjson.Get(body, "code").String())
		})
	}

	status, _ := ts.do(t, http.MethodPost, "/api/blogs", fiber.Map{"title": "T", "content": "c"}, "")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestDraftBlogVisibility(t *testing.T) {
	ts := newTestServer(t)
	alice := testutil.CreateUser(t, ts.db, "alice")
	bob := testutil.CreateUser(t, ts.db, "bob")
	aliceToken := ts.tokenFor(t, alice)

	status, body := ts.do(t, http.MethodPost, "/api/blogs", fiber.Map{
		"title":     "Not ready yet",
		"content":   "draft body",
		"topic":     "backend",
		"published": false,
	}, aliceToken)
	require.Equal(t, http.StatusCreated, status, body)
	id := gjson.Get(body, "id").Int()
	assert.False(t, gjson.Get(body, "published").Bool())

	status, _ = ts.do(t, http.MethodGet, blogPath(id, ""), nil, "")
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = ts.do(t, http.MethodGet, blogPath(id, ""), nil, ts.tokenFor(t, bob))
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = ts.do(t, http.MethodGet, blogPath(id, ""), nil, aliceToken)
	assert.Equal(t, http.StatusOK, status)

	status, body = ts.do(t, http.MethodGet, "/api/blogs", nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, gjson.Parse(body).Array(), 0)

	status, body = ts.do(t, http.MethodPut, blogPath(id, ""), fiber.Map{"published": true}, aliceToken)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, gjson.Get(body, "published").Bool())
	assert.True(t, gjson.Get(body, "published_at").Exists())
}

func TestVoteBlog(t *testing.T) {
	ts := newTestServer(t)
	alice := testutil.CreateUser(t, ts.db, "alice")
	bob := testutil.CreateUser(t, ts.db, "bob")
	blog := testutil.CreateBlog(t, ts.db, alice, "Vote on me")
	path := blogPath(int64(blog.ID), "/vote")
	bobToken := ts.tokenFor(t, bob)

	status, body := ts.do(t, http.MethodPost, path, fiber.Map{"type": "up"}, bobToken)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, int64(1), gjson.Get(body, "upvotes").Int())
	assert.Equal(t, int64(1), gjson.Get(body, "score").Int())
	assert.True(t, gjson.Get(body, "upvoted").Bool())

	// Switching sides replaces the vote.
	status, body = ts.do(t, http.MethodPost, path, fiber.Map{"type": "down"}, bobToken)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(0), gjson.Get(body, "upvotes").Int())
	assert.Equal(t, int64(1), gjson.Get(body, "downvotes").Int())
	assert.Equal(t, int64(-1), gjson.Get(body, "score").Int())

	// Repeating the same vote retracts it.
	status, body = ts.do(t, http.MethodPost, path, fiber.Map{"type": "down"}, bobToken)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(0), gjson.Get(body, "score").Int())
	assert.False(t, gjson.Get(body, "downvoted").Bool())

	status, _ = ts.do(t, http.MethodPost, path, fiber.Map{"type": "sideways"}, bobToken)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = ts.do(t, http.MethodPost, blogPath(9999, "/vote"), fiber.Map{"type": "up"}, bobToken)
	assert.Equal(t, http.StatusNotFound, status)

	// Only the first upvote notifies the author.
	status, body = ts.do(t, http.MethodGet, "/api/notifications/unread-count", nil, ts.tokenFor(t, alice))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(1), gjson.Get(body, "count").Int())
}

func TestSaveBlog(t *testing.T) {
	ts := newTestServer(t)
	alice := testutil.CreateUser(t, ts.db, "alice")
	bob := testutil.CreateUser(t, ts.db, "bob")
	blog := testutil.CreateBlog(t, ts.db, alice, "Save me")
	path := blogPath(int64(blog.ID), "/save")
	bobToken := ts.tokenFor(t, bob)

	steps := []struct {
		method    string
		wantSaved bool
		wantCount int64
	}{
		{http.MethodPut, true, 1},
		{http.MethodPut, true, 1},
		{http.MethodPost, false, 0},
		{http.MethodPost, true, 1},
		{http.MethodDelete, false, 0},
		{http.MethodDelete, false, 0},
	}
	for i, step := range steps {
		status, body := ts.do(t, step.method, path, nil, bobToken)
		require.Equal(t, http.StatusOK, status, "step %d", i)
		assert.Equal(t, step.wantSaved, gjson.Get(body, "saved").Bool(), "step %d", i)
		assert.Equal(t, step.wantCount, gjson.Get(body, "saves_count").Int(), "step %d", i)
	}

	status, _ := ts.do(t, http.MethodPut, path, nil, bobToken)
	require.Equal(t, http.StatusOK, status)

	status, body := ts.do(t, http.MethodGet, "/api/users/me/saved-blogs", nil, bobToken)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, gjson.Parse(body).Array(), 1)
	assert.Equal(t, "Save me", gjson.Get(body, "0.title").String())
	assert.True(t, gjson.Get(body, "0.saved").Bool())
}

func TestComments(t *testing.T) {
	ts := newTestServer(t)
	alice := testutil.CreateUser(t, ts.db, "alice")
	bob := testutil.CreateUser(t, ts.db, "bob")
	carol := testutil.CreateUser(t, ts.db, "carol")
	blog := testutil.CreateBlog(t, ts.db, alice, "Discuss")
	commentsPath := blogPath(int64(blog.ID), "/comments")
	bobToken := ts.tokenFor(t, bob)
	carolToken := ts.tokenFor(t, carol)

	status, body := ts.do(t, http.MethodPost, commentsPath, fiber.Map{"content": "Great read"}, bobToken)
	require.Equal(t, http.StatusCreated, status, body)
	rootID := gjson.Get(body, "id").Int()
	assert.Equal(t, "bob", gjson.Get(body, "author.username").String())

	status, body = ts.do(t, http.MethodPost, commentsPath, fiber.Map{"content": "Agreed", "parent_id": rootID}, carolToken)
	require.Equal(t, http.StatusCreated, status, body)
	replyID := gjson.Get(body, "id").Int()

	status, body = ts.do(t, http.MethodGet, commentsPath, nil, "")
	require.Equal(t, http.StatusOK, status)
	require.Len(t, gjson.Parse(body).Array(), 1)
	assert.Equal(t, replyID, gjson.Get(body, "0.replies.0.id").Int())

	// Alice hears about the comment, Bob about the reply.
	status, body = ts.do(t, http.MethodGet, "/api/notifications", nil, ts.tokenFor(t, alice))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, string(models.NotificationBlogComment), gjson.Get(body, "0.type").String())
	status, body = ts.do(t, http.MethodGet, "/api/notifications", nil, bobToken)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, string(models.NotificationCommentReply), gjson.Get(body, "0.type").String())

	t.Run("validation", func(t *testing.T) {
		status, _ := ts.do(t, http.MethodPost, commentsPath, fiber.Map{"content": "   "}, bobToken)
		assert.Equal(t, http.StatusBadRequest, status)

		status, _ = ts.do(t, http.MethodPost, commentsPath, fiber.Map{"content": "orphan", "parent_id": 9999}, bobToken)
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("edit is owner only", func(t *testing.T) {
		path := commentsPath + "/" + strconv.FormatInt(rootID, 10)
		status, _ := ts.do(t, http.MethodPut, path, fiber.Map{"content": "edited by carol"}, carolToken)
		assert.Equal(t, http.StatusUnauthorized, status)

		status, body := ts.do(t, http.MethodPut, path, fiber.Map{"content": "Great read, bookmarked"}, bobToken)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "Great read, bookmarked", gjson.Get(body, "content").String())
	})

	t.Run("likes", func(t *testing.T) {
		path := "/api/comments/" + strconv.FormatInt(rootID, 10) + "/like"
		status, body := ts.do(t, http.MethodPut, path, nil, carolToken)
		require.Equal(t, http.StatusOK, status)
		assert.True(t, gjson.Get(body, "liked").Bool())
		assert.Equal(t, int64(1), gjson.Get(body, "likes_count").Int())

		status, body = ts.do(t, http.MethodPost, path, nil, carolToken)
		require.Equal(t, http.StatusOK, status)
		assert.False(t, gjson.Get(body, "liked").Bool())

		status, _ = ts.do(t, http.MethodDelete, "/api/comments/9999/like", nil, carolToken)
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("blog author may delete a thread", func(t *testing.T) {
		path := commentsPath + "/" + strconv.FormatInt(rootID, 10)
		status, _ := ts.do(t, http.MethodDelete, path, nil, carolToken)
		assert.Equal(t, http.StatusUnauthorized, status)

		status, body := ts.do(t, http.MethodDelete, path, nil, ts.tokenFor(t, alice))
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, int64(2), gjson.Get(body, "deleted").Int())

		status, body = ts.do(t, http.MethodGet, commentsPath, nil, "")
		require.Equal(t, http.StatusOK, status)
		assert.Len(t, gjson.Parse(body).Array(), 0)
	})
}

func TestImportBlog_RejectsPrivateAddresses(t *testing.T) {
	ts := newTestServer(t)
	token := ts.tokenFor(t, testutil.CreateUser(t, ts.db, "alice"))

	for _, target := range []string{"http://127.0.0.1/admin", "http://localhost:8080/", "ftp://example.com/file"} {
		status, body := ts.do(t, http.MethodPost, "/api/blogs/import", fiber.Map{"url": target}, token)
		assert.Equal(t, http.StatusBadRequest, status, target)
		assert.Equal(t, models.CodeValidation, gjson.Get(body, "code").String(), target)
	}
}

func TestDraftBlogVisibility_RevokedOrBannedToken(t *testing.T) {
	ts := newTestServer(t)
	alice := testutil.CreateUser(t, ts.db, "alice")
	aliceToken := ts.tokenFor(t, alice)

	status, body := ts.do(t, http.MethodPost, "/api/blogs", fiber.Map{
		"title":     "Private notes",
		"content":   "draft body",
		"topic":     "backend",
		"published": false,
	}, aliceToken)
	require.Equal(t, http.StatusCreated, status, body)
	draft := blogPath(gjson.Get(body, "id").Int(), "")

	t.Run("revoked", func(t *testing.T) {
		token := ts.tokenFor(t, alice)
		status, _ := ts.do(t, http.MethodGet, draft, nil, token)
		require.Equal(t, http.StatusOK, status)

		status, _ = ts.do(t, http.MethodPost, "/api/auth/logout", nil, token)
		require.Equal(t, http.StatusOK, status)

		status, _ = ts.do(t, http.MethodGet, draft, nil, token)
		assert.Equal(t, http.StatusNotFound, status)
		status, _ = ts.do(t, http.MethodGet, draft+"/comments", nil, token)
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("banned", func(t *testing.T) {
		admin := testutil.CreateUser(t, ts.db, "root")
		ts.makeAdmin(t, admin)
		status, _ := ts.do(t, http.MethodPost, adminUserPath(alice, "/ban"), nil, ts.tokenFor(t, admin))
		require.Equal(t, http.StatusOK, status)

		status, _ = ts.do(t, http.MethodGet, draft, nil, aliceToken)
		assert.Equal(t, http.StatusNotFound, status)

		status, body := ts.do(t, http.MethodGet, "/api/blogs?author="+strconv.FormatUint(uint64(alice.ID), 10), nil, aliceToken)
		require.Equal(t, http.StatusOK, status)
		assert.Len(t, gjson.Parse(body).Array(), 0)
	})
}
