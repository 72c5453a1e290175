package service

import (
	"context"

	"devshelf/internal/models"
	"devshelf/internal/repository"
)

const maxCommentRunes = 10000

type CommentService struct {
	commentRepo repository.CommentRepository
	blogRepo    repository.BlogRepository
	notifier    NotificationSender
	isAdmin     AdminChecker
}

type CreateCommentInput struct {
	UserID   uint
	BlogID   uint
	ParentID *uint
	Content  string
}

type UpdateCommentInput struct {
	UserID    uint
	BlogID    uint
	CommentID uint
	Content   string
}

type DeleteCommentInput struct {
	UserID    uint
	BlogID    uint
	CommentID uint
}

// LikeResult is the derived like state of a comment or resource after a toggle.
type LikeResult struct {
	Liked      bool  `json:"liked"`
	LikesCount int64 `json:"likes_count"`
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	blogRepo repository.BlogRepository,
	notifier NotificationSender,
	isAdmin AdminChecker,
) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		blogRepo:    blogRepo,
		notifier:    notifier,
		isAdmin:     isAdmin,
	}
}

// visibleBlog loads a blog the viewer may read; drafts of other users are NOT_FOUND.
func (s *CommentService) visibleBlog(ctx context.Context, blogID, viewerID uint) (*models.Blog, error) {
	blog, err := s.blogRepo.GetByID(ctx, blogID, viewerID)
	if err != nil {
		return nil, err
	}
	if !blog.Published && blog.UserID != viewerID {
		return nil, models.NewNotFoundError("Blog", blogID)
	}
	return blog, nil
}

// ListComments returns the blog's comment tree: roots newest first, replies oldest first.
func (s *CommentService) ListComments(ctx context.Context, blogID, viewerID uint) ([]*models.Comment, error) {
	if _, err := s.visibleBlog(ctx, blogID, viewerID); err != nil {
		return nil, err
	}
	flat, err := s.commentRepo.ListByBlog(ctx, blogID, viewerID)
	if err != nil {
		return nil, err
	}
	return models.BuildCommentTree(flat), nil
}

func (s *CommentService) CreateComment(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	content, err := requireText(in.Content, "Content", maxCommentRunes)
	if err != nil {
		return nil, err
	}
	blog, err := s.visibleBlog(ctx, in.BlogID, in.UserID)
	if err != nil {
		return nil, err
	}

	var parent *models.Comment
	if in.ParentID != nil {
		parent, err = s.commentRepo.GetByID(ctx, *in.ParentID)
		if err != nil {
			if isNotFound(err) {
				return nil, models.NewValidationError("Parent comment does not exist")
			}
			return nil, err
		}
		if parent.BlogID != blog.ID {
			return nil, models.NewValidationError("Parent comment belongs to a different blog")
		}
	}

	comment := &models.Comment{
		BlogID:   blog.ID,
		UserID:   in.UserID,
		ParentID: in.ParentID,
		Content:  content,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}

	if parent != nil {
		notifyQuietly(ctx, s.notifier, parent.UserID, NotifyInput{
			Type:       models.NotificationCommentReply,
			ActorID:    in.UserID,
			TargetType: models.TargetComment,
			TargetID:   comment.ID,
			Subject:    blog.Title,
		})
	} else {
		notifyQuietly(ctx, s.notifier, blog.UserID, NotifyInput{
			Type:       models.NotificationBlogComment,
			ActorID:    in.UserID,
			TargetType: models.TargetBlog,
			TargetID:   blog.ID,
			Subject:    blog.Title,
		})
	}

	return s.commentRepo.GetByID(ctx, comment.ID)
}

// commentOnBlog loads a comment and checks it hangs under blogID.
func (s *CommentService) commentOnBlog(ctx context.Context, blogID, commentID uint) (*models.Comment, error) {
	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if blogID != 0 && comment.BlogID != blogID {
		return nil, models.NewNotFoundError("Comment", commentID)
	}
	return comment, nil
}

func (s *CommentService) UpdateComment(ctx context.Context, in UpdateCommentInput) (*models.Comment, error) {
	comment, err := s.commentOnBlog(ctx, in.BlogID, in.CommentID)
	if err != nil {
		return nil, err
	}
	if comment.UserID != in.UserID {
		return nil, models.NewUnauthorizedError("You can only update your own comments")
	}
	content, err := requireText(in.Content, "Content", maxCommentRunes)
	if err != nil {
		return nil, err
	}

	comment.Content = content
	if err := s.commentRepo.Update(ctx, comment); err != nil {
		return nil, err
	}
	return s.commentRepo.GetByID(ctx, comment.ID)
}

// DeleteComment removes a comment and all of its replies. The comment author,
// the blog author and admins may delete. It returns the number of comments removed.
func (s *CommentService) DeleteComment(ctx context.Context, in DeleteCommentInput) (int, error) {
	comment, err := s.commentOnBlog(ctx, in.BlogID, in.CommentID)
	if err != nil {
		return 0, err
	}

	allowed := comment.UserID == in.UserID
	if !allowed {
		blog, err := s.blogRepo.GetByID(ctx, comment.BlogID, 0)
		if err != nil {
			return 0, err
		}
		allowed, err = canModerate(ctx, s.isAdmin, in.UserID, blog.UserID)
		if err != nil {
			return 0, err
		}
	}
	if !allowed {
		return 0, models.NewUnauthorizedError("You can only delete your own comments")
	}

	return s.commentRepo.DeleteTree(ctx, comment.ID)
}

// SetLiked flips the like when want is nil, otherwise sets it to *want.
func (s *CommentService) SetLiked(ctx context.Context, userID, commentID uint, want *bool) (*LikeResult, error) {
	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if _, err := s.visibleBlog(ctx, comment.BlogID, userID); err != nil {
		return nil, err
	}
	res, err := s.commentRepo.SetLiked(ctx, userID, commentID, want)
	if err != nil {
		return nil, err
	}
	if res.Changed && res.Active {
		notifyQuietly(ctx, s.notifier, comment.UserID, NotifyInput{
			Type:       models.NotificationCommentLike,
			ActorID:    userID,
			TargetType: models.TargetComment,
			TargetID:   comment.ID,
		})
	}
	return &LikeResult{Liked: res.Active, LikesCount: res.Count}, nil
}
