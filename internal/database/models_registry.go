package database

import "devshelf/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Follow{},
		&models.Blog{},
		&models.BlogVote{},
		&models.BlogSave{},
		&models.Comment{},
		&models.CommentLike{},
		&models.Resource{},
		&models.ResourceLike{},
		&models.ResourceBookmark{},
		&models.Notification{},
		&models.PasswordResetToken{},
		&models.ContactMessage{},
	}
}
