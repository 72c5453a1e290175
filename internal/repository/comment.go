package repository

import (
	"context"
	"time"

	"devshelf/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CommentRepository defines interface for comment operations
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	ListByBlog(ctx context.Context, blogID uint, viewerID uint) ([]*models.Comment, error)
	Update(ctx context.Context, comment *models.Comment) error
	DeleteTree(ctx context.Context, id uint) (int, error)
	SetLiked(ctx context.Context, userID, commentID uint, want *bool) (models.ToggleResult, error)
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(comment).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).Preload("User").First(&comment, id).Error; err != nil {
		return nil, lookupError(err, "Comment", id)
	}
	return &comment, nil
}

// ListByBlog returns the flat comment list of a blog, newest first, with like counts.
func (r *commentRepository) ListByBlog(ctx context.Context, blogID uint, viewerID uint) ([]*models.Comment, error) {
	q := readDB(r.db).WithContext(ctx).Model(&models.Comment{}).Preload("User")
	const likes = "(SELECT COUNT(*) FROM comment_likes WHERE comment_likes.comment_id = comments.id) AS likes_count"
	if viewerID != 0 {
		q = q.Select("comments.*, "+likes+", "+
			"EXISTS(SELECT 1 FROM comment_likes WHERE comment_likes.comment_id = comments.id AND comment_likes.user_id = ?) AS liked", viewerID)
	} else {
		q = q.Select("comments.*, " + likes + ", false AS liked")
	}

	var comments []*models.Comment
	err := q.Where("comments.blog_id = ?", blogID).
		Order("comments.created_at DESC").
		Order("comments.id DESC").
		Find(&comments).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return comments, nil
}

func (r *commentRepository) Update(ctx context.Context, comment *models.Comment) error {
	err := r.db.WithContext(ctx).Model(&models.Comment{ID: comment.ID}).
		Updates(map[string]interface{}{
			"content":    comment.Content,
			"updated_at": time.Now().UTC(),
		}).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// DeleteTree deletes a comment and all of its descendants, their likes and the
// notifications that point at them. Descendants are gathered one level at a time;
// the visited set stops the walk if parent links ever form a cycle.
func (r *commentRepository) DeleteTree(ctx context.Context, id uint) (int, error) {
	var removed int

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var root models.Comment
		if err := tx.Select("id").First(&root, id).Error; err != nil {
			return err
		}

		visited := map[uint]struct{}{root.ID: {}}
		all := []uint{root.ID}
		frontier := []uint{root.ID}

		for len(frontier) > 0 {
			var next []uint
			for _, chunk := range chunkIDs(frontier) {
				var children []uint
				if err := tx.Model(&models.Comment{}).Where("parent_id IN ?", chunk).Pluck("id", &children).Error; err != nil {
					return err
				}
				for _, child := range children {
					if _, seen := visited[child]; seen {
						continue
					}
					visited[child] = struct{}{}
					next = append(next, child)
				}
			}
			all = append(all, next...)
			frontier = next
		}

		if err := commentLikes.deleteForTargets(tx, all); err != nil {
			return err
		}
		if err := deleteNotificationsFor(tx, models.TargetComment, all); err != nil {
			return err
		}
		for _, chunk := range chunkIDs(all) {
			res := tx.Where("id IN ?", chunk).Delete(&models.Comment{})
			if res.Error != nil {
				return res.Error
			}
			removed += int(res.RowsAffected)
		}
		return nil
	})
	if err != nil {
		return 0, lookupError(err, "Comment", id)
	}
	return removed, nil
}

func (r *commentRepository) SetLiked(ctx context.Context, userID, commentID uint, want *bool) (models.ToggleResult, error) {
	var result models.ToggleResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = commentLikes.apply(tx, userID, commentID, want)
		return err
	})
	if err != nil {
		return result, models.NewInternalError(err)
	}
	return result, nil
}
