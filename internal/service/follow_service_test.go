package service

import (
	"context"
	"testing"

	"devshelf/internal/models"
	"devshelf/internal/repository"
	"devshelf/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFollowService(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)
	ada := testutil.CreateUser(t, db, "ada")
	grace := testutil.CreateUser(t, db, "grace")
	notifier := &notifierSpy{}
	svc := NewFollowService(repository.NewFollowRepository(db), repository.NewUserRepository(db), notifier)
	ctx := context.Background()

	_, err := svc.Follow(ctx, ada.ID, ada.ID)
	assertValidationError(t, err)
	_, err = svc.Follow(ctx, ada.ID, 999)
	assertNotFoundError(t, err)

	res, err := svc.Follow(ctx, grace.ID, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, &FollowResult{Following: true, Followers: 1}, res)

	res, err = svc.Follow(ctx, grace.ID, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, &FollowResult{Following: true, Followers: 1}, res)

	calls := notifier.calls()
	require.Len(t, calls, 1, "a repeated follow does not notify again")
	assert.Equal(t, models.NotificationFollow, calls[0].Input.Type)
	assert.Equal(t, ada.ID, calls[0].Recipient)
	assert.Equal(t, grace.ID, calls[0].Input.TargetID)

	followers, err := svc.Followers(ctx, ada.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, followers, 1)
	assert.Equal(t, "grace", followers[0].Username)

	following, err := svc.Following(ctx, grace.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, following, 1)
	assert.Equal(t, "ada", following[0].Username)

	_, err = svc.Followers(ctx, 999, 10, 0)
	assertNotFoundError(t, err)

	res, err = svc.Unfollow(ctx, grace.ID, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, &FollowResult{Following: false, Followers: 0}, res)
	res, err = svc.Unfollow(ctx, grace.ID, ada.ID)
	require.NoError(t, err)
	assert.False(t, res.Following)
}
