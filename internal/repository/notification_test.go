package repository

import (
	"context"
	"testing"

	"devshelf/internal/models"
	"devshelf/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationRepository(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")

	batch := []*models.Notification{
		{RecipientID: alice.ID, ActorID: bob.ID, Type: models.NotificationFollow, TargetType: models.TargetUser, TargetID: bob.ID, Message: "bob followed you"},
		{RecipientID: alice.ID, ActorID: bob.ID, Type: models.NotificationBlogUpvote, TargetType: models.TargetBlog, TargetID: 7, Message: "bob upvoted"},
		{RecipientID: bob.ID, ActorID: alice.ID, Type: models.NotificationFollow, TargetType: models.TargetUser, TargetID: alice.ID},
	}
	require.NoError(t, repo.CreateBatch(ctx, batch))
	for _, n := range batch {
		assert.NotZero(t, n.ID)
	}

	unread, err := repo.UnreadCount(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), unread)

	// Only the recipient may mark a notification.
	err = repo.MarkRead(ctx, bob.ID, batch[0].ID)
	assert.Equal(t, 404, models.StatusFor(err))

	require.NoError(t, repo.MarkRead(ctx, alice.ID, batch[0].ID))

	list, err := repo.List(ctx, alice.ID, true, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, batch[1].ID, list[0].ID)
	assert.Equal(t, "bob", list[0].Actor.Username)
	assert.Empty(t, list[0].Actor.Email)

	n, err := repo.MarkAllRead(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	unread, err = repo.UnreadCount(ctx, alice.ID)
	require.NoError(t, err)
	assert.Zero(t, unread)

	assert.Equal(t, 404, models.StatusFor(repo.Delete(ctx, alice.ID, batch[2].ID)))
	require.NoError(t, repo.Delete(ctx, bob.ID, batch[2].ID))

	all, err := repo.List(ctx, alice.ID, false, 10, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
