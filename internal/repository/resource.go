package repository

import (
	"context"
	"time"

	"devshelf/internal/cache"
	"devshelf/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Resource list orderings.
const (
	ResourceSortLatest  = "latest"
	ResourceSortPopular = "popular"
)

// ResourceFilter narrows a resource listing.
type ResourceFilter struct {
	Query    string
	Category string
	Tag      string
	UserID   uint
	Sort     string
}

// ResourceRepository defines persistence operations for the resource directory.
type ResourceRepository interface {
	Create(ctx context.Context, resource *models.Resource) error
	GetByID(ctx context.Context, id uint, viewerID uint) (*models.Resource, error)
	List(ctx context.Context, filter ResourceFilter, limit, offset int, viewerID uint) ([]*models.Resource, error)
	ListBookmarked(ctx context.Context, userID uint, limit, offset int) ([]*models.Resource, error)
	CategoryCounts(ctx context.Context) ([]models.CategoryCount, error)
	Update(ctx context.Context, resource *models.Resource) error
	Delete(ctx context.Context, id uint) error
	SetLiked(ctx context.Context, userID, resourceID uint, want *bool) (models.ToggleResult, error)
	SetBookmarked(ctx context.Context, userID, resourceID uint, want *bool) (models.ToggleResult, error)
}

type resourceRepository struct {
	db *gorm.DB
}

// NewResourceRepository returns a ResourceRepository backed by db.
func NewResourceRepository(db *gorm.DB) ResourceRepository {
	return &resourceRepository{db: db}
}

func (r *resourceRepository) Create(ctx context.Context, resource *models.Resource) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(resource).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("A resource with this URL already exists")
		}
		return models.NewInternalError(err)
	}
	cache.InvalidateResourceCategories(ctx)
	return nil
}

const resourceLikesExpr = "(SELECT COUNT(*) FROM resource_likes WHERE resource_likes.resource_id = resources.id)"

func applyResourceDetails(db *gorm.DB, viewerID uint) *gorm.DB {
	selectQuery := "resources.*, " +
		resourceLikesExpr + " AS likes_count, " +
		"(SELECT COUNT(*) FROM resource_bookmarks WHERE resource_bookmarks.resource_id = resources.id) AS bookmarks_count"
	if viewerID != 0 {
		return db.Select(selectQuery+", "+
			"EXISTS(SELECT 1 FROM resource_likes WHERE resource_likes.resource_id = resources.id AND resource_likes.user_id = ?) AS liked, "+
			"EXISTS(SELECT 1 FROM resource_bookmarks WHERE resource_bookmarks.resource_id = resources.id AND resource_bookmarks.user_id = ?) AS bookmarked",
			viewerID, viewerID)
	}
	return db.Select(selectQuery + ", false AS liked, false AS bookmarked")
}

func (r *resourceRepository) GetByID(ctx context.Context, id uint, viewerID uint) (*models.Resource, error) {
	var resource models.Resource
	err := applyResourceDetails(readDB(r.db).WithContext(ctx).Model(&models.Resource{}), viewerID).
		Preload("User").
		Where("resources.id = ?", id).
		Take(&resource).Error
	if err != nil {
		return nil, lookupError(err, "Resource", id)
	}
	return &resource, nil
}

func (r *resourceRepository) List(ctx context.Context, filter ResourceFilter, limit, offset int, viewerID uint) ([]*models.Resource, error) {
	q := applyResourceDetails(readDB(r.db).WithContext(ctx).Model(&models.Resource{}), viewerID).Preload("User")

	if filter.Query != "" {
		p := likePattern(filter.Query)
		q = q.Where(`(LOWER(resources.title) LIKE ? ESCAPE '\' OR LOWER(resources.description) LIKE ? ESCAPE '\')`, p, p)
	}
	if filter.Category != "" {
		q = q.Where("resources.category = ?", filter.Category)
	}
	if filter.Tag != "" {
		q = q.Where("CAST(resources.tags AS TEXT) LIKE ?", tagPattern(filter.Tag))
	}
	if filter.UserID != 0 {
		q = q.Where("resources.user_id = ?", filter.UserID)
	}

	if filter.Sort == ResourceSortPopular {
		q = q.Order(resourceLikesExpr + " DESC")
	}
	q = q.Order("resources.created_at DESC").Order("resources.id DESC")

	var resources []*models.Resource
	if err := q.Limit(limit).Offset(offset).Find(&resources).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return resources, nil
}

func (r *resourceRepository) ListBookmarked(ctx context.Context, userID uint, limit, offset int) ([]*models.Resource, error) {
	var resources []*models.Resource
	err := applyResourceDetails(readDB(r.db).WithContext(ctx).Model(&models.Resource{}), userID).
		Preload("User").
		Joins("JOIN resource_bookmarks rb ON rb.resource_id = resources.id AND rb.user_id = ?", userID).
		Order("rb.created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&resources).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return resources, nil
}

// CategoryCounts returns the number of resources per category, largest first.
func (r *resourceRepository) CategoryCounts(ctx context.Context) ([]models.CategoryCount, error) {
	var counts []models.CategoryCount
	err := cache.Aside(ctx, cache.ResourceCategoriesKey, &counts, cache.ResourceCategoriesTTL, func() error {
		return readDB(r.db).WithContext(ctx).Model(&models.Resource{}).
			Select("category, COUNT(*) AS count").
			Group("category").
			Order("count DESC").
			Order("category ASC").
			Scan(&counts).Error
	})
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return counts, nil
}

func (r *resourceRepository) Update(ctx context.Context, resource *models.Resource) error {
	err := r.db.WithContext(ctx).Model(&models.Resource{ID: resource.ID}).
		Select("title", "url", "description", "category", "tags", "image", "updated_at").
		Updates(map[string]interface{}{
			"title":       resource.Title,
			"url":         resource.URL,
			"description": resource.Description,
			"category":    resource.Category,
			"tags":        resource.Tags,
			"image":       resource.Image,
			"updated_at":  time.Now().UTC(),
		}).Error
	if err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("A resource with this URL already exists")
		}
		return models.NewInternalError(err)
	}
	cache.InvalidateResourceCategories(ctx)
	return nil
}

// Delete removes a resource with its likes, bookmarks and notifications in one transaction.
func (r *resourceRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := []uint{id}
		if err := resourceLikes.deleteForTargets(tx, ids); err != nil {
			return err
		}
		if err := resourceBookmarks.deleteForTargets(tx, ids); err != nil {
			return err
		}
		if err := deleteNotificationsFor(tx, models.TargetResource, ids); err != nil {
			return err
		}
		res := tx.Delete(&models.Resource{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return lookupError(err, "Resource", id)
	}
	cache.InvalidateResourceCategories(ctx)
	return nil
}

func (r *resourceRepository) SetLiked(ctx context.Context, userID, resourceID uint, want *bool) (models.ToggleResult, error) {
	return r.applyInTx(ctx, resourceLikes, userID, resourceID, want)
}

func (r *resourceRepository) SetBookmarked(ctx context.Context, userID, resourceID uint, want *bool) (models.ToggleResult, error) {
	return r.applyInTx(ctx, resourceBookmarks, userID, resourceID, want)
}

func (r *resourceRepository) applyInTx(ctx context.Context, i interaction, userID, resourceID uint, want *bool) (models.ToggleResult, error) {
	var result models.ToggleResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = i.apply(tx, userID, resourceID, want)
		return err
	})
	if err != nil {
		return result, models.NewInternalError(err)
	}
	return result, nil
}
