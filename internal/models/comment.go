package models

import (
	"cmp"
	"slices"
	"time"
)

// Comment is a threaded comment on a blog. Top-level comments have no ParentID.
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	BlogID    uint      `gorm:"not null;index" json:"blog_id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID" json:"author"`
	ParentID  *uint     `gorm:"index" json:"parent_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	LikesCount int  `gorm:"->;-:migration" json:"likes_count"`
	Liked      bool `gorm:"->;-:migration" json:"liked"`

	Replies []*Comment `gorm:"-" json:"replies"`
}

// CommentLike is a user's reaction to a comment.
type CommentLike struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_comment_like_user" json:"user_id"`
	CommentID uint      `gorm:"not null;uniqueIndex:idx_comment_like_user;index" json:"comment_id"`
	CreatedAt time.Time `json:"created_at"`
}

// BuildCommentTree nests a flat list of comments under their parents.
// Roots keep the order they arrive in; replies are sorted oldest first.
// Comments whose parent is missing from the list are treated as roots, and so is
// the earliest listed member of any parent cycle.
func BuildCommentTree(flat []*Comment) []*Comment {
	byID := make(map[uint]*Comment, len(flat))
	pos := make(map[uint]int, len(flat))
	for i, c := range flat {
		c.Replies = []*Comment{}
		byID[c.ID] = c
		pos[c.ID] = i
	}
	cut := cycleRoots(flat, byID, pos)

	roots := make([]*Comment, 0, len(flat))
	for _, c := range flat {
		if parent := parentIn(byID, c); parent != nil && !cut[c.ID] {
			parent.Replies = append(parent.Replies, c)
			continue
		}
		roots = append(roots, c)
	}

	for _, c := range flat {
		sortOldestFirst(c.Replies)
	}
	return roots
}

func parentIn(byID map[uint]*Comment, c *Comment) *Comment {
	if c.ParentID == nil {
		return nil
	}
	parent, ok := byID[*c.ParentID]
	if !ok || parent == c {
		return nil
	}
	return parent
}

// cycleRoots walks each parent chain once and returns the comments whose parent
// link must be ignored to break a cycle.
func cycleRoots(flat []*Comment, byID map[uint]*Comment, pos map[uint]int) map[uint]bool {
	const (
		unvisited = iota
		onPath
		done
	)
	state := make(map[uint]int, len(flat))
	cut := make(map[uint]bool)
	for _, start := range flat {
		var path []*Comment
		c := start
		for c != nil && state[c.ID] == unvisited {
			state[c.ID] = onPath
			path = append(path, c)
			c = parentIn(byID, c)
		}
		if c != nil && state[c.ID] == onPath {
			cycle := path[slices.Index(path, c):]
			first := slices.MinFunc(cycle, func(a, b *Comment) int { return cmp.Compare(pos[a.ID], pos[b.ID]) })
			cut[first.ID] = true
		}
		for _, p := range path {
			state[p.ID] = done
		}
	}
	return cut
}

func sortOldestFirst(cs []*Comment) {
	slices.SortStableFunc(cs, func(a, b *Comment) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
