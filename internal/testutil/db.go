// Package testutil provides shared test doubles and fixtures for backend tests.
package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"devshelf/internal/database"
	"devshelf/internal/middleware"
	"devshelf/internal/models"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DefaultPassword is the plain-text password of users created by CreateUser.
const DefaultPassword = "Password123!"

var dbSeq atomic.Int64

// NewTestDB opens a fresh migrated in-memory sqlite database. Each call gets its own
// database; a single connection keeps transactions and plain queries on the same handle.
func NewTestDB(t testing.TB) *gorm.DB {
	t.Helper()
	name := fmt.Sprintf("file:devshelf_test_%d?mode=memory&cache=shared&_foreign_keys=0", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(name), &gorm.Config{
		Logger: database.NewGormLogger(middleware.Logger, logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

var passwordHash = func() string {
	h, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return string(h)
}()

// CreateUser inserts a user named username with DefaultPassword.
func CreateUser(t testing.TB, db *gorm.DB, username string) *models.User {
	t.Helper()
	u := &models.User{
		Username: username,
		Email:    strings.ToLower(username) + "@example.com",
		Password: passwordHash,
		Name:     username,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// CreateBlog inserts a published blog by author.
func CreateBlog(t testing.TB, db *gorm.DB, author *models.User, title string, tags ...string) *models.Blog {
	t.Helper()
	now := time.Now().UTC()
	b := &models.Blog{
		UserID:      author.ID,
		Title:       title,
		Content:     "Content of " + title,
		Tags:        tags,
		Topic:       "backend",
		Published:   true,
		PublishedAt: &now,
	}
	require.NoError(t, db.Omit("User").Create(b).Error)
	return b
}

// CreateComment inserts a comment on blog, optionally replying to parent.
func CreateComment(t testing.TB, db *gorm.DB, blog *models.Blog, author *models.User, parent *models.Comment, content string) *models.Comment {
	t.Helper()
	c := &models.Comment{BlogID: blog.ID, UserID: author.ID, Content: content}
	if parent != nil {
		c.ParentID = &parent.ID
	}
	require.NoError(t, db.Omit("User").Create(c).Error)
	return c
}

// CreateResource inserts a resource in category submitted by owner.
func CreateResource(t testing.TB, db *gorm.DB, owner *models.User, title, url, category string) *models.Resource {
	t.Helper()
	r := &models.Resource{
		UserID:      owner.ID,
		Title:       title,
		URL:         url,
		Description: "About " + title,
		Category:    category,
		Tags:        []string{category},
	}
	require.NoError(t, db.Omit("User").Create(r).Error)
	return r
}
