package seed

import (
	"net/url"
	"testing"
	"time"

	"devshelf/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildBlog_TimestampsAndDrafts(t *testing.T) {
	f := NewFactory(nil, Options{DryRun: true, MaxDays: 30, RandomSeed: 7})
	author := &models.User{ID: 1}

	b := f.BuildBlog(author)
	assert.True(t, b.Published)
	require.NotNil(t, b.PublishedAt)
	assert.LessOrEqual(t, time.Since(b.CreatedAt), 31*24*time.Hour)
	assert.NotEmpty(t, b.Tags)
	assert.Contains(t, blogTopics, b.Topic)
	assert.NotEmpty(t, b.Excerpt)

	drafts := NewFactory(nil, Options{DryRun: true, DraftRatio: 1})
	d := drafts.BuildBlog(author)
	assert.False(t, d.Published)
	assert.Nil(t, d.PublishedAt)
}

func TestBuildResource_HasValidURL(t *testing.T) {
	f := NewFactory(nil, Options{DryRun: true, RandomSeed: 7})

	r := f.BuildResource(&models.User{ID: 1})
	u, err := url.ParseRequestURI(r.URL)
	require.NoError(t, err)
	assert.Equal(t, "https", u.Scheme)
	assert.Len(t, r.Tags, 2)
	assert.NotEmpty(t, r.Category)
}

func TestFactory_DryRunAssignsSyntheticIDs(t *testing.T) {
	f := NewFactory(nil, Options{DryRun: true, SkipBcrypt: true})

	u, err := f.CreateUser()
	require.NoError(t, err)
	b, err := f.CreateBlog(u)
	require.NoError(t, err)

	assert.NotZero(t, u.ID)
	assert.Greater(t, b.ID, u.ID)
	assert.Equal(t, DefaultPassword, u.Password)
	assert.LessOrEqual(t, len(u.Username), 30)
}
