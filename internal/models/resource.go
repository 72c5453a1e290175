package models

import (
	"time"

	"gorm.io/datatypes"
)

// Resource is a shared link in the developer resource directory.
type Resource struct {
	ID          uint                        `gorm:"primaryKey" json:"id"`
	UserID      uint                        `gorm:"not null;index" json:"user_id"`
	User        User                        `gorm:"foreignKey:UserID" json:"submitter"`
	Title       string                      `gorm:"size:200;not null" json:"title"`
	URL         string                      `gorm:"uniqueIndex;not null" json:"url"`
	Description string                      `gorm:"type:text" json:"description"`
	Category    string                      `gorm:"size:32;index" json:"category"`
	Tags        datatypes.JSONSlice[string] `json:"tags"`
	Image       string                      `json:"image"`

	LikesCount     int  `gorm:"->;-:migration" json:"likes_count"`
	BookmarksCount int  `gorm:"->;-:migration" json:"bookmarks_count"`
	Liked          bool `gorm:"->;-:migration" json:"liked"`
	Bookmarked     bool `gorm:"->;-:migration" json:"bookmarked"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ResourceLike is a user's like on a resource.
type ResourceLike struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;uniqueIndex:idx_resource_like_user" json:"user_id"`
	ResourceID uint      `gorm:"not null;uniqueIndex:idx_resource_like_user;index" json:"resource_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// ResourceBookmark is a user's bookmark of a resource.
type ResourceBookmark struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;uniqueIndex:idx_resource_bookmark_user" json:"user_id"`
	ResourceID uint      `gorm:"not null;uniqueIndex:idx_resource_bookmark_user;index" json:"resource_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// CategoryCount is the number of resources filed under a category.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

// ToggleResult is the derived state of an interaction after it was set, cleared or flipped.
type ToggleResult struct {
	Active bool  `json:"active"`
	Count  int64 `json:"count"`

	// Changed is false when the request left the interaction as it was.
	Changed bool `json:"-"`
}
