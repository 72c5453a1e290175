package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"

	"devshelf/internal/models"
	"devshelf/internal/repository"
	"devshelf/internal/testutil"
	"devshelf/internal/webimport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// linkStub blocks any host ending in .internal and serves fixed previews.
type linkStub struct {
	previews map[string]*webimport.Preview
}

func (l *linkStub) ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || strings.HasSuffix(u.Hostname(), ".internal") {
		return webimport.ErrBlockedURL
	}
	return nil
}

func (l *linkStub) Preview(_ context.Context, rawURL string) (*webimport.Preview, error) {
	if err := l.ValidateURL(rawURL); err != nil {
		return nil, err
	}
	p, ok := l.previews[rawURL]
	if !ok {
		return nil, errors.New("fetch: HTTP 404")
	}
	return p, nil
}

type resourceFixture struct {
	db       *gorm.DB
	svc      *ResourceService
	notifier *notifierSpy
	owner    *models.User
	reader   *models.User
	admin    *models.User
}

func newResourceFixture(t *testing.T) *resourceFixture {
	t.Helper()
	db := testutil.NewTestDB(t)
	f := &resourceFixture{db: db, notifier: &notifierSpy{}}
	f.owner = testutil.CreateUser(t, db, "owner")
	f.reader = testutil.CreateUser(t, db, "reader")
	f.admin = testutil.CreateUser(t, db, "moderator")
	links := &linkStub{previews: map[string]*webimport.Preview{
		"https://kubernetes.io/docs": {
			URL:         "https://kubernetes.io/docs",
			Title:       "Kubernetes Documentation",
			Description: "Deploy containers with kubernetes and docker.",
		},
	}}
	f.svc = NewResourceService(repository.NewResourceRepository(db), links, f.notifier, adminIDs(f.admin.ID))
	return f
}

func TestResourceService_CreateResource(t *testing.T) {
	t.Parallel()
	f := newResourceFixture(t)
	ctx := context.Background()

	res, err := f.svc.CreateResource(ctx, CreateResourceInput{
		UserID:      f.owner.ID,
		Title:       "React hooks cheatsheet",
		URL:         "https://Example.com/react#hooks",
		Description: "Every hook with a typescript example",
		Tags:        []string{"React", "Hooks"},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/react", res.URL)
	assert.Equal(t, "frontend", res.Category)
	assert.Equal(t, []string{"react", "hooks"}, []string(res.Tags))

	_, err = f.svc.CreateResource(ctx, CreateResourceInput{UserID: f.reader.ID, Title: "Same link", URL: "https://example.com/react"})
	assertStatus(t, err, 409)

	tests := []struct {
		name string
		in   CreateResourceInput
	}{
		{"missing url", CreateResourceInput{UserID: f.owner.ID, Title: "No link"}},
		{"ftp url", CreateResourceInput{UserID: f.owner.ID, Title: "FTP", URL: "ftp://example.com/file"}},
		{"relative url", CreateResourceInput{UserID: f.owner.ID, Title: "Relative", URL: "/docs"}},
		{"private host", CreateResourceInput{UserID: f.owner.ID, Title: "Metadata", URL: "http://metadata.internal/"}},
		{"unknown category", CreateResourceInput{UserID: f.owner.ID, Title: "Cats", URL: "https://cats.example.com", Category: "cats"}},
		{"long description", CreateResourceInput{UserID: f.owner.ID, Title: "Wordy", URL: "https://wordy.example.com", Description: strings.Repeat("x", 2001)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateResource(ctx, tt.in)
			assertValidationError(t, err)
		})
	}
}

func TestResourceService_UpdateAndDelete_Ownership(t *testing.T) {
	t.Parallel()
	f := newResourceFixture(t)
	ctx := context.Background()
	r := testutil.CreateResource(t, f.db, f.owner, "Terraform guide", "https://example.com/tf", "devops")

	_, err := f.svc.UpdateResource(ctx, UpdateResourceInput{UserID: f.reader.ID, ResourceID: r.ID, Title: ptr("Mine now")})
	assertUnauthorizedError(t, err)
	assertUnauthorizedError(t, f.svc.DeleteResource(ctx, f.reader.ID, r.ID))

	updated, err := f.svc.UpdateResource(ctx, UpdateResourceInput{UserID: f.owner.ID, ResourceID: r.ID, Category: ptr("")})
	require.NoError(t, err)
	assert.Equal(t, "devops", updated.Category, "an empty category is derived from the text")

	updated, err = f.svc.UpdateResource(ctx, UpdateResourceInput{UserID: f.admin.ID, ResourceID: r.ID, Category: ptr("career")})
	require.NoError(t, err)
	assert.Equal(t, "career", updated.Category)

	require.NoError(t, f.svc.DeleteResource(ctx, f.admin.ID, r.ID))
	_, err = f.svc.GetResource(ctx, r.ID, 0)
	assertNotFoundError(t, err)
}

func TestResourceService_LikeAndBookmark(t *testing.T) {
	t.Parallel()
	f := newResourceFixture(t)
	ctx := context.Background()
	r := testutil.CreateResource(t, f.db, f.owner, "Go by Example", "https://gobyexample.com", "backend")

	like, err := f.svc.SetLiked(ctx, f.reader.ID, r.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, &LikeResult{Liked: true, LikesCount: 1}, like)
	like, err = f.svc.SetLiked(ctx, f.reader.ID, r.ID, ptr(true))
	require.NoError(t, err)
	assert.Equal(t, &LikeResult{Liked: true, LikesCount: 1}, like)

	mark, err := f.svc.SetBookmarked(ctx, f.reader.ID, r.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, &BookmarkResult{Bookmarked: true, BookmarksCount: 1}, mark)
	mark, err = f.svc.SetBookmarked(ctx, f.reader.ID, r.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, &BookmarkResult{Bookmarked: false, BookmarksCount: 0}, mark)

	// The owner liking their own resource is counted but not notified.
	like, err = f.svc.SetLiked(ctx, f.owner.ID, r.ID, ptr(true))
	require.NoError(t, err)
	assert.Equal(t, int64(2), like.LikesCount)

	assert.Equal(t, []models.NotificationType{models.NotificationResourceLike, models.NotificationResourceBookmark}, f.notifier.types())

	_, err = f.svc.SetLiked(ctx, f.reader.ID, 999, nil)
	assertNotFoundError(t, err)
}

func TestResourceService_ListAndCategories(t *testing.T) {
	t.Parallel()
	f := newResourceFixture(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		testutil.CreateResource(t, f.db, f.owner, fmt.Sprintf("Backend %d", i), fmt.Sprintf("https://example.com/b%d", i), "backend")
	}
	testutil.CreateResource(t, f.db, f.owner, "Figma tips", "https://example.com/figma", "design")

	_, err := f.svc.ListResources(ctx, ListResourcesInput{Filter: repository.ResourceFilter{Sort: "oldest"}})
	assertValidationError(t, err)
	_, err = f.svc.ListResources(ctx, ListResourcesInput{Filter: repository.ResourceFilter{Category: "cats"}})
	assertValidationError(t, err)

	list, err := f.svc.ListResources(ctx, ListResourcesInput{Filter: repository.ResourceFilter{Category: "backend"}, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, list, 3)

	cats, err := f.svc.Categories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 10)
	assert.Equal(t, "frontend", cats[0].Category)
	assert.Equal(t, "other", cats[len(cats)-1].Category)
	counts := map[string]int64{}
	for _, c := range cats {
		counts[c.Category] = c.Count
	}
	assert.Equal(t, int64(3), counts["backend"])
	assert.Equal(t, int64(1), counts["design"])
	assert.Zero(t, counts["mobile"])
}

func TestResourceService_PreviewAndClassify(t *testing.T) {
	t.Parallel()
	f := newResourceFixture(t)
	ctx := context.Background()

	p, err := f.svc.Preview(ctx, "https://kubernetes.io/docs")
	require.NoError(t, err)
	assert.Equal(t, "Kubernetes Documentation", p.Title)
	assert.Equal(t, "devops", p.Category)
	assert.Contains(t, p.SuggestedTags, "kubernetes")

	_, err = f.svc.Preview(ctx, "https://missing.example.com/")
	assertValidationError(t, err)
	_, err = f.svc.Preview(ctx, "http://metadata.internal/")
	assertValidationError(t, err)

	c := f.svc.Classify(CategorizeInput{Title: "Interview prep", Description: "Resume and salary negotiation"})
	assert.Equal(t, "career", c.Category)
	assert.Equal(t, 3, c.Scores["career"])
}
