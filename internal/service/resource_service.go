package service

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"devshelf/internal/categorize"
	"devshelf/internal/models"
	"devshelf/internal/repository"
	"devshelf/internal/validation"
	"devshelf/internal/webimport"
)

const (
	maxResourceDescriptionRunes = 2000
	maxURLLength                = 2048
)

// LinkInspector validates and previews external links.
type LinkInspector interface {
	ValidateURL(rawURL string) error
	Preview(ctx context.Context, rawURL string) (*webimport.Preview, error)
}

// ResourceService implements the resource directory.
type ResourceService struct {
	repo     repository.ResourceRepository
	links    LinkInspector
	notifier NotificationSender
	isAdmin  AdminChecker
}

func NewResourceService(
	repo repository.ResourceRepository,
	links LinkInspector,
	notifier NotificationSender,
	isAdmin AdminChecker,
) *ResourceService {
	return &ResourceService{repo: repo, links: links, notifier: notifier, isAdmin: isAdmin}
}

type ListResourcesInput struct {
	Filter   repository.ResourceFilter
	Limit    int
	Offset   int
	ViewerID uint
}

type CreateResourceInput struct {
	UserID      uint
	Title       string
	URL         string
	Description string
	Tags        []string
	Category    string
	Image       string
}

// UpdateResourceInput carries a partial update; nil fields are left unchanged.
type UpdateResourceInput struct {
	UserID      uint
	ResourceID  uint
	Title       *string
	URL         *string
	Description *string
	Tags        *[]string
	Category    *string
	Image       *string
}

type CategorizeInput struct {
	Title       string
	Description string
	Tags        []string
}

// Classification is the categorization preview for a piece of content.
type Classification struct {
	categorize.Result
	SuggestedTags []string `json:"suggested_tags"`
}

// ResourcePreview is a link card plus the category it would be filed under.
type ResourcePreview struct {
	webimport.Preview
	Category      string   `json:"category"`
	SuggestedTags []string `json:"suggested_tags"`
}

type BookmarkResult struct {
	Bookmarked     bool  `json:"bookmarked"`
	BookmarksCount int64 `json:"bookmarks_count"`
}

func (s *ResourceService) ListResources(ctx context.Context, in ListResourcesInput) ([]*models.Resource, error) {
	switch in.Filter.Sort {
	case "", repository.ResourceSortLatest, repository.ResourceSortPopular:
	default:
		return nil, models.NewValidationError("sort must be one of latest, popular")
	}
	if in.Filter.Category != "" && !categorize.Valid(in.Filter.Category) {
		return nil, models.NewValidationError("Unknown category")
	}
	return s.repo.List(ctx, in.Filter, in.Limit, in.Offset, in.ViewerID)
}

func (s *ResourceService) ListBookmarked(ctx context.Context, userID uint, limit, offset int) ([]*models.Resource, error) {
	return s.repo.ListBookmarked(ctx, userID, limit, offset)
}

func (s *ResourceService) GetResource(ctx context.Context, id, viewerID uint) (*models.Resource, error) {
	return s.repo.GetByID(ctx, id, viewerID)
}

// Categories returns every category in table order with its resource count,
// including empty ones.
func (s *ResourceService) Categories(ctx context.Context) ([]models.CategoryCount, error) {
	counts, err := s.repo.CategoryCounts(ctx)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]int64, len(counts))
	for _, c := range counts {
		byName[c.Category] = c.Count
	}
	names := append(categorize.Default().Categories(), categorize.Other)
	out := make([]models.CategoryCount, 0, len(names))
	for _, name := range names {
		out = append(out, models.CategoryCount{Category: name, Count: byName[name]})
	}
	return out, nil
}

func (s *ResourceService) CreateResource(ctx context.Context, in CreateResourceInput) (*models.Resource, error) {
	if in.UserID == 0 {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	if err := validation.ValidateTitle(in.Title); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	link, err := s.normalizeURL(in.URL)
	if err != nil {
		return nil, err
	}
	description := strings.TrimSpace(in.Description)
	if len([]rune(description)) > maxResourceDescriptionRunes {
		return nil, models.NewValidationError("Description is too long")
	}
	tags, err := validation.NormalizeTags(in.Tags)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	title := strings.TrimSpace(in.Title)
	category, err := resolveCategory(in.Category, title, description, tags)
	if err != nil {
		return nil, err
	}

	resource := &models.Resource{
		UserID:      in.UserID,
		Title:       title,
		URL:         link,
		Description: description,
		Category:    category,
		Tags:        tags,
		Image:       strings.TrimSpace(in.Image),
	}
	if err := s.repo.Create(ctx, resource); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, resource.ID, in.UserID)
}

func (s *ResourceService) UpdateResource(ctx context.Context, in UpdateResourceInput) (*models.Resource, error) {
	resource, err := s.repo.GetByID(ctx, in.ResourceID, in.UserID)
	if err != nil {
		return nil, err
	}
	ok, err := canModerate(ctx, s.isAdmin, in.UserID, resource.UserID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NewUnauthorizedError("You can only edit your own resources")
	}

	if in.Title != nil {
		if err := validation.ValidateTitle(*in.Title); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		resource.Title = strings.TrimSpace(*in.Title)
	}
	if in.URL != nil {
		link, err := s.normalizeURL(*in.URL)
		if err != nil {
			return nil, err
		}
		resource.URL = link
	}
	if in.Description != nil {
		description := strings.TrimSpace(*in.Description)
		if len([]rune(description)) > maxResourceDescriptionRunes {
			return nil, models.NewValidationError("Description is too long")
		}
		resource.Description = description
	}
	if in.Tags != nil {
		tags, err := validation.NormalizeTags(*in.Tags)
		if err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		resource.Tags = tags
	}
	if in.Category != nil {
		category, err := resolveCategory(*in.Category, resource.Title, resource.Description, resource.Tags)
		if err != nil {
			return nil, err
		}
		resource.Category = category
	}
	if in.Image != nil {
		resource.Image = strings.TrimSpace(*in.Image)
	}

	if err := s.repo.Update(ctx, resource); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, resource.ID, in.UserID)
}

func (s *ResourceService) DeleteResource(ctx context.Context, userID, resourceID uint) error {
	resource, err := s.repo.GetByID(ctx, resourceID, 0)
	if err != nil {
		return err
	}
	ok, err := canModerate(ctx, s.isAdmin, userID, resource.UserID)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewUnauthorizedError("You can only delete your own resources")
	}
	return s.repo.Delete(ctx, resourceID)
}

// SetLiked flips the like when want is nil, otherwise sets it to *want.
func (s *ResourceService) SetLiked(ctx context.Context, userID, resourceID uint, want *bool) (*LikeResult, error) {
	resource, err := s.repo.GetByID(ctx, resourceID, 0)
	if err != nil {
		return nil, err
	}
	res, err := s.repo.SetLiked(ctx, userID, resourceID, want)
	if err != nil {
		return nil, err
	}
	if res.Changed && res.Active {
		notifyQuietly(ctx, s.notifier, resource.UserID, NotifyInput{
			Type:       models.NotificationResourceLike,
			ActorID:    userID,
			TargetType: models.TargetResource,
			TargetID:   resource.ID,
			Subject:    resource.Title,
		})
	}
	return &LikeResult{Liked: res.Active, LikesCount: res.Count}, nil
}

// SetBookmarked flips the bookmark when want is nil, otherwise sets it to *want.
func (s *ResourceService) SetBookmarked(ctx context.Context, userID, resourceID uint, want *bool) (*BookmarkResult, error) {
	resource, err := s.repo.GetByID(ctx, resourceID, 0)
	if err != nil {
		return nil, err
	}
	res, err := s.repo.SetBookmarked(ctx, userID, resourceID, want)
	if err != nil {
		return nil, err
	}
	if res.Changed && res.Active {
		notifyQuietly(ctx, s.notifier, resource.UserID, NotifyInput{
			Type:       models.NotificationResourceBookmark,
			ActorID:    userID,
			TargetType: models.TargetResource,
			TargetID:   resource.ID,
			Subject:    resource.Title,
		})
	}
	return &BookmarkResult{Bookmarked: res.Active, BookmarksCount: res.Count}, nil
}

// Preview fetches rawURL and suggests how the resource would be filed.
func (s *ResourceService) Preview(ctx context.Context, rawURL string) (*ResourcePreview, error) {
	link, err := s.normalizeURL(rawURL)
	if err != nil {
		return nil, err
	}
	if s.links == nil {
		return nil, models.NewInternalError(errors.New("link preview is not configured"))
	}
	p, err := s.links.Preview(ctx, link)
	if err != nil {
		if errors.Is(err, webimport.ErrBlockedURL) {
			return nil, models.NewValidationError("url must be a public http(s) address")
		}
		return nil, &models.AppError{Code: models.CodeValidation, Message: "Could not fetch that page", Err: err}
	}
	c := s.Classify(CategorizeInput{Title: p.Title, Description: p.Description})
	return &ResourcePreview{Preview: *p, Category: c.Category, SuggestedTags: c.SuggestedTags}, nil
}

// Classify runs the categorizer over title, description and tags.
func (s *ResourceService) Classify(in CategorizeInput) Classification {
	text := strings.Join([]string{in.Title, in.Description, strings.Join(in.Tags, " ")}, " ")
	return Classification{
		Result:        categorize.Categorize(text),
		SuggestedTags: categorize.SuggestTags(text, 5),
	}
}

// normalizeURL checks rawURL is an absolute public http(s) URL and drops its fragment.
func (s *ResourceService) normalizeURL(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", models.NewValidationError("url is required")
	}
	if len(rawURL) > maxURLLength {
		return "", models.NewValidationError("url is too long")
	}
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", models.NewValidationError("url must be an absolute http(s) URL")
	}
	if s.links != nil {
		if err := s.links.ValidateURL(rawURL); err != nil {
			return "", models.NewValidationError("url must be a public http(s) address")
		}
	}
	u.Fragment = ""
	u.Host = strings.ToLower(u.Host)
	return u.String(), nil
}

func resolveCategory(category, title, description string, tags []string) (string, error) {
	category = strings.ToLower(strings.TrimSpace(category))
	if category != "" {
		if !categorize.Valid(category) {
			return "", models.NewValidationError("Unknown category")
		}
		return category, nil
	}
	return categorize.Categorize(title, description, strings.Join(tags, " ")).Category, nil
}
