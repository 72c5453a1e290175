package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Blog is a markdown article written by a user.
type Blog struct {
	ID          uint                        `gorm:"primaryKey" json:"id"`
	UserID      uint                        `gorm:"not null;index" json:"user_id"`
	User        User                        `gorm:"foreignKey:UserID" json:"author"`
	Title       string                      `gorm:"size:200;not null" json:"title"`
	Content     string                      `gorm:"type:text;not null" json:"content"`
	Excerpt     string                      `gorm:"size:300" json:"excerpt"`
	CoverImage  string                      `json:"cover_image"`
	Tags        datatypes.JSONSlice[string] `json:"tags"`
	Topic       string                      `gorm:"size:32;index" json:"topic"`
	Published   bool                        `gorm:"default:false;index" json:"published"`
	PublishedAt *time.Time                  `json:"published_at,omitempty"`
	SourceURL   string                      `json:"source_url,omitempty"`

	// Derived from blog_votes, blog_saves and comments at query time.
	Upvotes       int  `gorm:"->;-:migration" json:"upvotes"`
	Downvotes     int  `gorm:"->;-:migration" json:"downvotes"`
	Score         int  `gorm:"->;-:migration" json:"score"`
	SavesCount    int  `gorm:"->;-:migration" json:"saves_count"`
	CommentsCount int  `gorm:"->;-:migration" json:"comments_count"`
	Upvoted       bool `gorm:"->;-:migration" json:"upvoted"`
	Downvoted     bool `gorm:"->;-:migration" json:"downvoted"`
	Saved         bool `gorm:"->;-:migration" json:"saved"`

	ShareCode string `gorm:"-" json:"share_code,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// VoteType is the direction of a blog vote.
type VoteType string

const (
	VoteUp   VoteType = "up"
	VoteDown VoteType = "down"
)

// Valid reports whether v is a known vote direction.
func (v VoteType) Valid() bool {
	return v == VoteUp || v == VoteDown
}

// Opposite returns the other vote direction.
func (v VoteType) Opposite() VoteType {
	if v == VoteUp {
		return VoteDown
	}
	return VoteUp
}

// BlogVote records one vote of a given type by a user on a blog.
type BlogVote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_blog_vote_user_type" json:"user_id"`
	BlogID    uint      `gorm:"not null;uniqueIndex:idx_blog_vote_user_type;index" json:"blog_id"`
	Type      VoteType  `gorm:"size:8;not null;uniqueIndex:idx_blog_vote_user_type" json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

// BlogSave records that a user saved a blog for later.
type BlogSave struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_blog_save_user" json:"user_id"`
	BlogID    uint      `gorm:"not null;uniqueIndex:idx_blog_save_user;index" json:"blog_id"`
	CreatedAt time.Time `json:"created_at"`
}

// VoteTally is the derived vote state of a blog after a vote change.
type VoteTally struct {
	Upvotes   int64 `json:"upvotes"`
	Downvotes int64 `json:"downvotes"`
	Score     int64 `json:"score"`
	Upvoted   bool  `json:"upvoted"`
	Downvoted bool  `json:"downvoted"`
}
