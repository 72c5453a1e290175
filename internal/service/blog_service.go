package service

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"devshelf/internal/categorize"
	"devshelf/internal/middleware"
	"devshelf/internal/models"
	"devshelf/internal/repository"
	"devshelf/internal/validation"
	"devshelf/internal/webimport"
)

const maxBlogContentRunes = 100000

var (
	mdFenceRe   = regexp.MustCompile("(?s)```.*?```")
	mdImageRe   = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	mdLinkRe    = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	mdSyntaxRe  = regexp.MustCompile("(?m)^\\s{0,3}(#{1,6}|>|[-*+]|\\d+\\.)\\s+")
	mdInlineRe  = regexp.MustCompile("[*_`~]+")
	mdHTMLTagRe = regexp.MustCompile(`<[^>]+>`)
)

// ArticleImporter fetches a page and extracts its article as markdown.
type ArticleImporter interface {
	Article(ctx context.Context, rawURL string) (*webimport.Article, error)
}

// BlogService implements blog publishing, voting, saving and import.
type BlogService struct {
	blogRepo   repository.BlogRepository
	followRepo repository.FollowRepository
	notifier   NotificationSender
	importer   ArticleImporter
	codec      *ShareCodec
	isAdmin    AdminChecker
	now        func() time.Time
}

// NewBlogService wires a BlogService. notifier and importer may be nil.
func NewBlogService(
	blogRepo repository.BlogRepository,
	followRepo repository.FollowRepository,
	notifier NotificationSender,
	importer ArticleImporter,
	codec *ShareCodec,
	isAdmin AdminChecker,
) *BlogService {
	return &BlogService{
		blogRepo:   blogRepo,
		followRepo: followRepo,
		notifier:   notifier,
		importer:   importer,
		codec:      codec,
		isAdmin:    isAdmin,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

type ListBlogsInput struct {
	Filter   repository.BlogFilter
	Limit    int
	Offset   int
	ViewerID uint
}

type CreateBlogInput struct {
	UserID     uint
	Title      string
	Content    string
	Tags       []string
	CoverImage string
	Topic      string
	Published  bool
	SourceURL  string
}

// UpdateBlogInput carries a partial update; nil fields are left unchanged.
type UpdateBlogInput struct {
	UserID     uint
	BlogID     uint
	Title      *string
	Content    *string
	Tags       *[]string
	CoverImage *string
	Topic      *string
	Published  *bool
}

// BlogDraft is an unsaved blog produced from an imported page.
type BlogDraft struct {
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	Excerpt    string   `json:"excerpt"`
	Topic      string   `json:"topic"`
	Tags       []string `json:"tags"`
	CoverImage string   `json:"cover_image,omitempty"`
	SourceURL  string   `json:"source_url"`
}

// SaveResult is the derived save state of a blog after a toggle.
type SaveResult struct {
	Saved      bool  `json:"saved"`
	SavesCount int64 `json:"saves_count"`
}

func (s *BlogService) ListBlogs(ctx context.Context, in ListBlogsInput) ([]*models.Blog, error) {
	f := in.Filter
	switch f.Sort {
	case "", repository.BlogSortLatest, repository.BlogSortTop:
	case repository.BlogSortFollowing:
		if in.ViewerID == 0 {
			return nil, models.NewUnauthorizedError("Sign in to see blogs from people you follow")
		}
	default:
		return nil, models.NewValidationError("sort must be one of latest, top, following")
	}
	if f.Topic != "" && !categorize.Valid(f.Topic) {
		return nil, models.NewValidationError("Unknown topic")
	}
	f.IncludeDrafts = f.AuthorID != 0 && f.AuthorID == in.ViewerID

	blogs, err := s.blogRepo.List(ctx, f, in.Limit, in.Offset, in.ViewerID)
	if err != nil {
		return nil, err
	}
	s.attachShareCodes(blogs...)
	return blogs, nil
}

func (s *BlogService) ListSaved(ctx context.Context, userID uint, limit, offset int) ([]*models.Blog, error) {
	blogs, err := s.blogRepo.ListSaved(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	s.attachShareCodes(blogs...)
	return blogs, nil
}

// GetBlog returns a blog with derived counters. Drafts are only visible to their author.
func (s *BlogService) GetBlog(ctx context.Context, id, viewerID uint) (*models.Blog, error) {
	blog, err := s.blogRepo.GetByID(ctx, id, viewerID)
	if err != nil {
		return nil, err
	}
	if !blog.Published && blog.UserID != viewerID {
		return nil, models.NewNotFoundError("Blog", id)
	}
	s.attachShareCodes(blog)
	return blog, nil
}

func (s *BlogService) GetByShareCode(ctx context.Context, code string, viewerID uint) (*models.Blog, error) {
	if s.codec == nil {
		return nil, models.NewNotFoundError("Blog", code)
	}
	id, err := s.codec.Decode(code)
	if err != nil {
		return nil, err
	}
	return s.GetBlog(ctx, id, viewerID)
}

func (s *BlogService) CreateBlog(ctx context.Context, in CreateBlogInput) (*models.Blog, error) {
	if in.UserID == 0 {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	if err := validation.ValidateTitle(in.Title); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	content, err := requireText(in.Content, "Content", maxBlogContentRunes)
	if err != nil {
		return nil, err
	}
	tags, err := validation.NormalizeTags(in.Tags)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	title := strings.TrimSpace(in.Title)

	topic, err := resolveTopic(in.Topic, title, content, tags)
	if err != nil {
		return nil, err
	}

	blog := &models.Blog{
		UserID:     in.UserID,
		Title:      title,
		Content:    content,
		Excerpt:    excerptFromMarkdown(content),
		CoverImage: strings.TrimSpace(in.CoverImage),
		Tags:       tags,
		Topic:      topic,
		Published:  in.Published,
		SourceURL:  strings.TrimSpace(in.SourceURL),
	}
	if blog.Published {
		now := s.now()
		blog.PublishedAt = &now
	}
	if err := s.blogRepo.Create(ctx, blog); err != nil {
		return nil, err
	}

	if blog.Published {
		s.fanOutNewBlog(ctx, blog)
	}
	return s.GetBlog(ctx, blog.ID, in.UserID)
}

func (s *BlogService) UpdateBlog(ctx context.Context, in UpdateBlogInput) (*models.Blog, error) {
	blog, err := s.blogRepo.GetByID(ctx, in.BlogID, in.UserID)
	if err != nil {
		return nil, err
	}
	ok, err := canModerate(ctx, s.isAdmin, in.UserID, blog.UserID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NewUnauthorizedError("You can only edit your own blogs")
	}

	if in.Title != nil {
		if err := validation.ValidateTitle(*in.Title); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		blog.Title = strings.TrimSpace(*in.Title)
	}
	if in.Content != nil {
		content, err := requireText(*in.Content, "Content", maxBlogContentRunes)
		if err != nil {
			return nil, err
		}
		blog.Content = content
		blog.Excerpt = excerptFromMarkdown(content)
	}
	if in.Tags != nil {
		tags, err := validation.NormalizeTags(*in.Tags)
		if err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		blog.Tags = tags
	}
	if in.CoverImage != nil {
		blog.CoverImage = strings.TrimSpace(*in.CoverImage)
	}
	if in.Topic != nil {
		topic, err := resolveTopic(*in.Topic, blog.Title, blog.Content, blog.Tags)
		if err != nil {
			return nil, err
		}
		blog.Topic = topic
	}

	firstPublish := false
	if in.Published != nil {
		blog.Published = *in.Published
		if blog.Published && blog.PublishedAt == nil {
			now := s.now()
			blog.PublishedAt = &now
			firstPublish = true
		}
	}

	if err := s.blogRepo.Update(ctx, blog); err != nil {
		return nil, err
	}
	if firstPublish {
		s.fanOutNewBlog(ctx, blog)
	}
	// Admins may edit drafts they cannot see through GetBlog.
	updated, err := s.blogRepo.GetByID(ctx, blog.ID, in.UserID)
	if err != nil {
		return nil, err
	}
	s.attachShareCodes(updated)
	return updated, nil
}

func (s *BlogService) DeleteBlog(ctx context.Context, userID, blogID uint) error {
	blog, err := s.blogRepo.GetByID(ctx, blogID, 0)
	if err != nil {
		return err
	}
	ok, err := canModerate(ctx, s.isAdmin, userID, blog.UserID)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewUnauthorizedError("You can only delete your own blogs")
	}
	return s.blogRepo.Delete(ctx, blogID)
}

// Vote applies an up or down vote. Repeating a vote removes it and the
// opposite vote is replaced.
func (s *BlogService) Vote(ctx context.Context, userID, blogID uint, voteType models.VoteType) (*models.VoteTally, error) {
	if !voteType.Valid() {
		return nil, models.NewValidationError(`type must be "up" or "down"`)
	}
	blog, err := s.GetBlog(ctx, blogID, userID)
	if err != nil {
		return nil, err
	}
	tally, added, err := s.blogRepo.Vote(ctx, userID, blogID, voteType)
	if err != nil {
		return nil, err
	}
	if added && voteType == models.VoteUp {
		notifyQuietly(ctx, s.notifier, blog.UserID, NotifyInput{
			Type:       models.NotificationBlogUpvote,
			ActorID:    userID,
			TargetType: models.TargetBlog,
			TargetID:   blog.ID,
			Subject:    blog.Title,
		})
	}
	return tally, nil
}

// SetSaved flips the save when want is nil, otherwise sets it to *want.
func (s *BlogService) SetSaved(ctx context.Context, userID, blogID uint, want *bool) (*SaveResult, error) {
	blog, err := s.GetBlog(ctx, blogID, userID)
	if err != nil {
		return nil, err
	}
	res, err := s.blogRepo.SetSaved(ctx, userID, blogID, want)
	if err != nil {
		return nil, err
	}
	if res.Changed && res.Active {
		notifyQuietly(ctx, s.notifier, blog.UserID, NotifyInput{
			Type:       models.NotificationBlogSave,
			ActorID:    userID,
			TargetType: models.TargetBlog,
			TargetID:   blog.ID,
			Subject:    blog.Title,
		})
	}
	return &SaveResult{Saved: res.Active, SavesCount: res.Count}, nil
}

// ImportDraft fetches rawURL and converts its main article into an unsaved draft.
func (s *BlogService) ImportDraft(ctx context.Context, rawURL string) (*BlogDraft, error) {
	if s.importer == nil {
		return nil, models.NewInternalError(errors.New("blog import is not configured"))
	}
	if strings.TrimSpace(rawURL) == "" {
		return nil, models.NewValidationError("url is required")
	}
	article, err := s.importer.Article(ctx, rawURL)
	if err != nil {
		if errors.Is(err, webimport.ErrBlockedURL) {
			return nil, models.NewValidationError("url must be a public http(s) address")
		}
		return nil, &models.AppError{Code: models.CodeValidation, Message: "Could not import that page", Err: err}
	}

	content := truncateRunes(article.Content, maxBlogContentRunes)
	title := truncateRunes(article.Title, validation.MaxTitleLength)
	tags := categorize.SuggestTags(title+" "+content, 5)
	excerpt := article.Excerpt
	if excerpt == "" {
		excerpt = excerptFromMarkdown(content)
	}
	return &BlogDraft{
		Title:      title,
		Content:    content,
		Excerpt:    excerpt,
		Topic:      categorize.Categorize(title, article.Excerpt, content).Category,
		Tags:       tags,
		CoverImage: article.Image,
		SourceURL:  article.SourceURL,
	}, nil
}

func (s *BlogService) fanOutNewBlog(ctx context.Context, blog *models.Blog) {
	if s.notifier == nil || s.followRepo == nil {
		return
	}
	followers, err := s.followRepo.FollowerIDs(ctx, blog.UserID)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "failed to load followers for fan-out",
			slog.Uint64("blog_id", uint64(blog.ID)),
			slog.String("error", err.Error()),
		)
		return
	}
	n, err := s.notifier.NotifyMany(ctx, followers, NotifyInput{
		Type:       models.NotificationNewBlog,
		ActorID:    blog.UserID,
		TargetType: models.TargetBlog,
		TargetID:   blog.ID,
		Subject:    blog.Title,
	})
	if err != nil {
		middleware.Logger.WarnContext(ctx, "new blog fan-out failed",
			slog.Uint64("blog_id", uint64(blog.ID)),
			slog.String("error", err.Error()),
		)
		return
	}
	middleware.Logger.InfoContext(ctx, "new blog fan-out",
		slog.Uint64("blog_id", uint64(blog.ID)),
		slog.Int("recipients", n),
	)
}

func (s *BlogService) attachShareCodes(blogs ...*models.Blog) {
	if s.codec == nil {
		return
	}
	for _, b := range blogs {
		b.ShareCode = s.codec.Encode(b.ID)
	}
}

// resolveTopic validates an explicit topic or derives one from the text.
func resolveTopic(topic, title, content string, tags []string) (string, error) {
	topic = strings.ToLower(strings.TrimSpace(topic))
	if topic != "" {
		if !categorize.Valid(topic) {
			return "", models.NewValidationError("Unknown topic")
		}
		return topic, nil
	}
	return categorize.Categorize(title, strings.Join(tags, " "), content).Category, nil
}

// excerptFromMarkdown strips common markdown syntax and shortens the result.
func excerptFromMarkdown(content string) string {
	text := mdFenceRe.ReplaceAllString(content, " ")
	text = mdImageRe.ReplaceAllString(text, " ")
	text = mdLinkRe.ReplaceAllString(text, "$1")
	text = mdHTMLTagRe.ReplaceAllString(text, " ")
	text = mdSyntaxRe.ReplaceAllString(text, "")
	text = mdInlineRe.ReplaceAllString(text, "")
	return webimport.Excerpt(text)
}
