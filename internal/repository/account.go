package repository

import (
	"context"
	"errors"
	"time"

	"devshelf/internal/models"

	"gorm.io/gorm"
)

// PasswordResetRepository stores hashed password reset tokens.
type PasswordResetRepository interface {
	Create(ctx context.Context, token *models.PasswordResetToken) error
	// Redeem claims the token with tokenHash and sets the owner's password hash in one
	// transaction. It returns VALIDATION_ERROR for unknown, expired or used tokens.
	Redeem(ctx context.Context, tokenHash, passwordHash string, now time.Time) (uint, error)
}

type passwordResetRepository struct {
	db *gorm.DB
}

// NewPasswordResetRepository returns a PasswordResetRepository backed by db.
func NewPasswordResetRepository(db *gorm.DB) PasswordResetRepository {
	return &passwordResetRepository{db: db}
}

func (r *passwordResetRepository) Create(ctx context.Context, token *models.PasswordResetToken) error {
	if err := r.db.WithContext(ctx).Create(token).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

var errInvalidResetToken = models.NewValidationError("Reset link is invalid or has expired")

func (r *passwordResetRepository) Redeem(ctx context.Context, tokenHash, passwordHash string, now time.Time) (uint, error) {
	var userID uint
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var token models.PasswordResetToken
		if err := tx.Where("token_hash = ?", tokenHash).First(&token).Error; err != nil {
			return err
		}
		if !token.Usable(now) {
			return errInvalidResetToken
		}

		// The guarded update is the claim: a concurrent redemption sees zero rows.
		res := tx.Model(&models.PasswordResetToken{}).
			Where("id = ? AND used_at IS NULL AND expires_at > ?", token.ID, now).
			Update("used_at", now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return errInvalidResetToken
		}

		upd := tx.Model(&models.User{}).Where("id = ?", token.UserID).
			Updates(map[string]interface{}{"password": passwordHash, "updated_at": now})
		if upd.Error != nil {
			return upd.Error
		}
		if upd.RowsAffected == 0 {
			return errInvalidResetToken
		}
		userID = token.UserID
		return nil
	})
	if err != nil {
		if errors.Is(err, errInvalidResetToken) || errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, errInvalidResetToken
		}
		return 0, models.NewInternalError(err)
	}
	return userID, nil
}

// ContactRepository archives contact form submissions.
type ContactRepository interface {
	Create(ctx context.Context, msg *models.ContactMessage) error
	MarkDelivered(ctx context.Context, id uint) error
	List(ctx context.Context, limit, offset int) ([]*models.ContactMessage, error)
}

type contactRepository struct {
	db *gorm.DB
}

// NewContactRepository returns a ContactRepository backed by db.
func NewContactRepository(db *gorm.DB) ContactRepository {
	return &contactRepository{db: db}
}

func (r *contactRepository) Create(ctx context.Context, msg *models.ContactMessage) error {
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *contactRepository) MarkDelivered(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Model(&models.ContactMessage{}).Where("id = ?", id).Update("delivered", true).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *contactRepository) List(ctx context.Context, limit, offset int) ([]*models.ContactMessage, error) {
	var out []*models.ContactMessage
	if err := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Limit(limit).Offset(offset).Find(&out).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return out, nil
}
