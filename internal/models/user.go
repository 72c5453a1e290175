// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User represents a registered developer account.
type User struct {
	ID        uint                        `gorm:"primaryKey" json:"id"`
	Username  string                      `gorm:"uniqueIndex;size:32;not null" json:"username"`
	Email     string                      `gorm:"uniqueIndex;not null" json:"email,omitempty"`
	Password  string                      `gorm:"not null" json:"-"`
	Name      string                      `gorm:"size:100" json:"name"`
	Bio       string                      `gorm:"type:text" json:"bio"`
	Avatar    string                      `json:"avatar"`
	Website   string                      `json:"website"`
	GithubURL string                      `json:"github_url"`
	Location  string                      `gorm:"size:100" json:"location"`
	Skills    datatypes.JSONSlice[string] `json:"skills"`
	IsAdmin   bool                        `gorm:"default:false;index" json:"is_admin"`
	IsBanned  bool                        `gorm:"default:false" json:"is_banned,omitempty"`
	CreatedAt time.Time                   `json:"created_at"`
	UpdatedAt time.Time                   `json:"updated_at"`
	DeletedAt gorm.DeletedAt              `gorm:"index" json:"-"`
}

// Public returns a copy of the user without private contact fields.
func (u User) Public() User {
	u.Email = ""
	u.IsBanned = false
	return u
}

// ProfileStats aggregates derived counts shown on a profile page.
type ProfileStats struct {
	Blogs     int64 `json:"blogs"`
	Resources int64 `json:"resources"`
	Followers int64 `json:"followers"`
	Following int64 `json:"following"`
}

// Profile is the public view of a user with their stats.
type Profile struct {
	User        User         `json:"user"`
	Stats       ProfileStats `json:"stats"`
	IsFollowing bool         `json:"is_following"`
}
