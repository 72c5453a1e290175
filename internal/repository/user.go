package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"devshelf/internal/cache"
	"devshelf/internal/models"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	SetAdmin(ctx context.Context, id uint, admin bool) error
	SetBanned(ctx context.Context, id uint, banned bool) error
	ListAdmins(ctx context.Context) ([]models.User, error)
	Stats(ctx context.Context, userID uint) (models.ProfileStats, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := cache.Aside(ctx, cache.UserKey(id), &user, cache.UserTTL, func() error {
		if err := readDB(r.db).WithContext(ctx).First(&user, id).Error; err != nil {
			return lookupError(err, "User", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail returns (nil, nil) when no user has the address.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := readDB(r.db).WithContext(ctx).Where("LOWER(username) = ?", strings.ToLower(username)).First(&user).Error
	if err != nil {
		return nil, lookupError(err, "User", username)
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("Username or email is already taken")
		}
		return models.NewInternalError(err)
	}
	return nil
}

// profileColumns are the fields Update writes. Users read through the cache carry
// no password hash, so a full Save would clear it.
var profileColumns = []string{"name", "bio", "avatar", "website", "github_url", "location", "skills", "updated_at"}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	if err := r.db.WithContext(ctx).Model(&models.User{ID: user.ID}).Select(profileColumns).Updates(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("Username or email is already taken")
		}
		return models.NewInternalError(err)
	}
	cache.InvalidateUser(ctx, user.ID, user.Username)
	return nil
}

func (r *userRepository) setFlag(ctx context.Context, id uint, column string, value bool) error {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return lookupError(err, "User", id)
	}
	if err := r.db.WithContext(ctx).Model(&user).Update(column, value).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateUser(ctx, user.ID, user.Username)
	return nil
}

func (r *userRepository) SetAdmin(ctx context.Context, id uint, admin bool) error {
	return r.setFlag(ctx, id, "is_admin", admin)
}

func (r *userRepository) SetBanned(ctx context.Context, id uint, banned bool) error {
	return r.setFlag(ctx, id, "is_banned", banned)
}

func (r *userRepository) ListAdmins(ctx context.Context) ([]models.User, error) {
	var admins []models.User
	if err := r.db.WithContext(ctx).Where("is_admin = ?", true).Order("id ASC").Find(&admins).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return admins, nil
}

// Stats counts a user's content and follow edges concurrently.
func (r *userRepository) Stats(ctx context.Context, userID uint) (models.ProfileStats, error) {
	var stats models.ProfileStats
	db := readDB(r.db)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return db.WithContext(gctx).Model(&models.Blog{}).
			Where("user_id = ? AND published = ?", userID, true).Count(&stats.Blogs).Error
	})
	g.Go(func() error {
		return db.WithContext(gctx).Model(&models.Resource{}).
			Where("user_id = ?", userID).Count(&stats.Resources).Error
	})
	g.Go(func() error {
		return db.WithContext(gctx).Model(&models.Follow{}).
			Where("following_id = ?", userID).Count(&stats.Followers).Error
	})
	g.Go(func() error {
		return db.WithContext(gctx).Model(&models.Follow{}).
			Where("follower_id = ?", userID).Count(&stats.Following).Error
	})

	if err := g.Wait(); err != nil {
		return models.ProfileStats{}, models.NewInternalError(err)
	}
	return stats, nil
}
