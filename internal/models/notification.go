package models

import "time"

// NotificationType identifies the interaction that produced a notification.
type NotificationType string

const (
	NotificationFollow           NotificationType = "follow"
	NotificationNewBlog          NotificationType = "new_blog"
	NotificationBlogUpvote       NotificationType = "blog_upvote"
	NotificationBlogSave         NotificationType = "blog_save"
	NotificationBlogComment      NotificationType = "blog_comment"
	NotificationCommentReply     NotificationType = "comment_reply"
	NotificationCommentLike      NotificationType = "comment_like"
	NotificationResourceLike     NotificationType = "resource_like"
	NotificationResourceBookmark NotificationType = "resource_bookmark"
)

// Target types referenced by Notification.TargetType.
const (
	TargetBlog     = "blog"
	TargetComment  = "comment"
	TargetResource = "resource"
	TargetUser     = "user"
)

// Notification is a single in-app notification delivered to RecipientID.
type Notification struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	RecipientID uint             `gorm:"not null;index:idx_notifications_recipient_read" json:"recipient_id"`
	ActorID     uint             `gorm:"not null" json:"actor_id"`
	Actor       User             `gorm:"foreignKey:ActorID" json:"actor"`
	Type        NotificationType `gorm:"size:32;not null" json:"type"`
	TargetType  string           `gorm:"size:16" json:"target_type"`
	TargetID    uint             `json:"target_id"`
	Message     string           `gorm:"size:300" json:"message"`
	IsRead      bool             `gorm:"default:false;index:idx_notifications_recipient_read" json:"is_read"`
	CreatedAt   time.Time        `gorm:"index" json:"created_at"`
}
