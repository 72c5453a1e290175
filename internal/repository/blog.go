package repository

import (
	"context"
	"time"

	"devshelf/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Blog list orderings.
const (
	BlogSortLatest    = "latest"
	BlogSortTop       = "top"
	BlogSortFollowing = "following"
)

// BlogFilter narrows a blog listing. Zero values mean "no constraint".
type BlogFilter struct {
	Query    string
	Tag      string
	Topic    string
	AuthorID uint
	Sort     string
	// IncludeDrafts lists unpublished blogs too; only honoured together with AuthorID.
	IncludeDrafts bool
}

// BlogRepository defines persistence operations for blogs and their votes and saves.
type BlogRepository interface {
	Create(ctx context.Context, blog *models.Blog) error
	GetByID(ctx context.Context, id uint, viewerID uint) (*models.Blog, error)
	List(ctx context.Context, filter BlogFilter, limit, offset int, viewerID uint) ([]*models.Blog, error)
	ListSaved(ctx context.Context, userID uint, limit, offset int) ([]*models.Blog, error)
	RecentTitles(ctx context.Context, userID uint, n int) ([]string, error)
	Update(ctx context.Context, blog *models.Blog) error
	Delete(ctx context.Context, id uint) error
	Vote(ctx context.Context, userID, blogID uint, voteType models.VoteType) (*models.VoteTally, bool, error)
	SetSaved(ctx context.Context, userID, blogID uint, want *bool) (models.ToggleResult, error)
}

type blogRepository struct {
	db *gorm.DB
}

// NewBlogRepository returns a BlogRepository backed by db.
func NewBlogRepository(db *gorm.DB) BlogRepository {
	return &blogRepository{db: db}
}

func (r *blogRepository) Create(ctx context.Context, blog *models.Blog) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(blog).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// applyBlogDetails selects the counters derived from blog_votes, blog_saves and comments
// plus the viewer's own vote and save state.
const (
	blogUpvotesExpr   = "(SELECT COUNT(*) FROM blog_votes WHERE blog_votes.blog_id = blogs.id AND blog_votes.type = 'up')"
	blogDownvotesExpr = "(SELECT COUNT(*) FROM blog_votes WHERE blog_votes.blog_id = blogs.id AND blog_votes.type = 'down')"
	blogScoreExpr     = "(" + blogUpvotesExpr + " - " + blogDownvotesExpr + ")"
)

func applyBlogDetails(db *gorm.DB, viewerID uint) *gorm.DB {
	selectQuery := "blogs.*, " +
		blogUpvotesExpr + " AS upvotes, " +
		blogDownvotesExpr + " AS downvotes, " +
		blogScoreExpr + " AS score, " +
		"(SELECT COUNT(*) FROM blog_saves WHERE blog_saves.blog_id = blogs.id) AS saves_count, " +
		"(SELECT COUNT(*) FROM comments WHERE comments.blog_id = blogs.id) AS comments_count"

	if viewerID != 0 {
		return db.Select(selectQuery+", "+
			"EXISTS(SELECT 1 FROM blog_votes WHERE blog_votes.blog_id = blogs.id AND blog_votes.user_id = ? AND blog_votes.type = 'up') AS upvoted, "+
			"EXISTS(SELECT 1 FROM blog_votes WHERE blog_votes.blog_id = blogs.id AND blog_votes.user_id = ? AND blog_votes.type = 'down') AS downvoted, "+
			"EXISTS(SELECT 1 FROM blog_saves WHERE blog_saves.blog_id = blogs.id AND blog_saves.user_id = ?) AS saved",
			viewerID, viewerID, viewerID)
	}
	return db.Select(selectQuery + ", false AS upvoted, false AS downvoted, false AS saved")
}

func (r *blogRepository) GetByID(ctx context.Context, id uint, viewerID uint) (*models.Blog, error) {
	var blog models.Blog
	err := applyBlogDetails(readDB(r.db).WithContext(ctx).Model(&models.Blog{}), viewerID).
		Preload("User").
		Where("blogs.id = ?", id).
		Take(&blog).Error
	if err != nil {
		return nil, lookupError(err, "Blog", id)
	}
	return &blog, nil
}

func (r *blogRepository) List(ctx context.Context, filter BlogFilter, limit, offset int, viewerID uint) ([]*models.Blog, error) {
	q := applyBlogDetails(readDB(r.db).WithContext(ctx).Model(&models.Blog{}), viewerID).Preload("User")

	if !(filter.IncludeDrafts && filter.AuthorID != 0) {
		q = q.Where("blogs.published = ?", true)
	}
	if filter.AuthorID != 0 {
		q = q.Where("blogs.user_id = ?", filter.AuthorID)
	}
	if filter.Query != "" {
		p := likePattern(filter.Query)
		q = q.Where(`(LOWER(blogs.title) LIKE ? ESCAPE '\' OR LOWER(blogs.content) LIKE ? ESCAPE '\')`, p, p)
	}
	if filter.Tag != "" {
		q = q.Where("CAST(blogs.tags AS TEXT) LIKE ?", tagPattern(filter.Tag))
	}
	if filter.Topic != "" {
		q = q.Where("blogs.topic = ?", filter.Topic)
	}

	switch filter.Sort {
	case BlogSortTop:
		// Ordered by the expression, the alias can collide with a column on some drivers.
		q = q.Order(blogScoreExpr + " DESC").Order("blogs.created_at DESC").Order("blogs.id DESC")
	case BlogSortFollowing:
		q = q.Where("blogs.user_id IN (SELECT following_id FROM follows WHERE follower_id = ?)", viewerID).
			Order("blogs.published_at DESC").Order("blogs.id DESC")
	default:
		q = q.Order("blogs.created_at DESC").Order("blogs.id DESC")
	}

	var blogs []*models.Blog
	if err := q.Limit(limit).Offset(offset).Find(&blogs).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return blogs, nil
}

func (r *blogRepository) ListSaved(ctx context.Context, userID uint, limit, offset int) ([]*models.Blog, error) {
	var blogs []*models.Blog
	err := applyBlogDetails(readDB(r.db).WithContext(ctx).Model(&models.Blog{}), userID).
		Preload("User").
		Joins("JOIN blog_saves bs ON bs.blog_id = blogs.id AND bs.user_id = ?", userID).
		Where("blogs.published = ?", true).
		Order("bs.created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&blogs).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return blogs, nil
}

func (r *blogRepository) RecentTitles(ctx context.Context, userID uint, n int) ([]string, error) {
	var titles []string
	err := readDB(r.db).WithContext(ctx).Model(&models.Blog{}).
		Where("user_id = ? AND published = ?", userID, true).
		Order("created_at DESC").
		Limit(n).
		Pluck("title", &titles).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return titles, nil
}

func (r *blogRepository) Update(ctx context.Context, blog *models.Blog) error {
	err := r.db.WithContext(ctx).Model(&models.Blog{ID: blog.ID}).
		Select("title", "content", "excerpt", "cover_image", "tags", "topic", "published", "published_at", "updated_at").
		Updates(map[string]interface{}{
			"title":        blog.Title,
			"content":      blog.Content,
			"excerpt":      blog.Excerpt,
			"cover_image":  blog.CoverImage,
			"tags":         blog.Tags,
			"topic":        blog.Topic,
			"published":    blog.Published,
			"published_at": blog.PublishedAt,
			"updated_at":   time.Now().UTC(),
		}).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// Delete removes a blog together with its comments, comment likes, votes, saves
// and the notifications pointing at it, in one transaction.
func (r *blogRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var commentIDs []uint
		if err := tx.Model(&models.Comment{}).Where("blog_id = ?", id).Pluck("id", &commentIDs).Error; err != nil {
			return err
		}
		if err := commentLikes.deleteForTargets(tx, commentIDs); err != nil {
			return err
		}
		if err := deleteNotificationsFor(tx, models.TargetComment, commentIDs); err != nil {
			return err
		}
		if err := tx.Where("blog_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("blog_id = ?", id).Delete(&models.BlogVote{}).Error; err != nil {
			return err
		}
		if err := blogSaves.deleteForTargets(tx, []uint{id}); err != nil {
			return err
		}
		if err := deleteNotificationsFor(tx, models.TargetBlog, []uint{id}); err != nil {
			return err
		}
		res := tx.Delete(&models.Blog{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return lookupError(err, "Blog", id)
	}
	return nil
}

// Vote applies a vote of voteType. Casting a vote the user already holds removes it;
// casting the opposite direction replaces the other vote. The returned bool is true
// when a new vote row was written.
func (r *blogRepository) Vote(ctx context.Context, userID, blogID uint, voteType models.VoteType) (*models.VoteTally, bool, error) {
	var tally models.VoteTally
	var added bool

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.BlogVote{}).
			Where("user_id = ? AND blog_id = ? AND type = ?", userID, blogID, voteType).
			Count(&existing).Error; err != nil {
			return err
		}

		if existing > 0 {
			if err := tx.Where("user_id = ? AND blog_id = ? AND type = ?", userID, blogID, voteType).
				Delete(&models.BlogVote{}).Error; err != nil {
				return err
			}
		} else {
			if err := tx.Where("user_id = ? AND blog_id = ? AND type = ?", userID, blogID, voteType.Opposite()).
				Delete(&models.BlogVote{}).Error; err != nil {
				return err
			}
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.BlogVote{
				UserID: userID,
				BlogID: blogID,
				Type:   voteType,
			})
			if res.Error != nil {
				return res.Error
			}
			added = res.RowsAffected > 0
		}

		return tallyVotes(tx, userID, blogID, &tally)
	})
	if err != nil {
		return nil, false, models.NewInternalError(err)
	}
	return &tally, added, nil
}

func tallyVotes(tx *gorm.DB, userID, blogID uint, tally *models.VoteTally) error {
	type row struct {
		Type  models.VoteType
		Total int64
		Mine  int64
	}
	var rows []row
	err := tx.Model(&models.BlogVote{}).
		Select("type, COUNT(*) AS total, SUM(CASE WHEN user_id = ? THEN 1 ELSE 0 END) AS mine", userID).
		Where("blog_id = ?", blogID).
		Group("type").
		Scan(&rows).Error
	if err != nil {
		return err
	}
	for _, r := range rows {
		switch r.Type {
		case models.VoteUp:
			tally.Upvotes = r.Total
			tally.Upvoted = r.Mine > 0
		case models.VoteDown:
			tally.Downvotes = r.Total
			tally.Downvoted = r.Mine > 0
		}
	}
	tally.Score = tally.Upvotes - tally.Downvotes
	return nil
}

func (r *blogRepository) SetSaved(ctx context.Context, userID, blogID uint, want *bool) (models.ToggleResult, error) {
	var result models.ToggleResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = blogSaves.apply(tx, userID, blogID, want)
		return err
	})
	if err != nil {
		return result, models.NewInternalError(err)
	}
	return result, nil
}

func deleteNotificationsFor(tx *gorm.DB, targetType string, ids []uint) error {
	for _, chunk := range chunkIDs(ids) {
		if err := tx.Where("target_type = ? AND target_id IN ?", targetType, chunk).
			Delete(&models.Notification{}).Error; err != nil {
			return err
		}
	}
	return nil
}
