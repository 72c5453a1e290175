// Package repository implements the data access layer for the application.
package repository

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"devshelf/internal/database"
	"devshelf/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const uniqueViolation = "23505"

// inChunk bounds the size of IN (...) lists sent in one statement.
const inChunk = 500

func readDB(primary *gorm.DB) *gorm.DB {
	if db := database.GetReadDB(); db != nil {
		return db
	}
	return primary
}

// isUniqueConstraintError checks if a DB error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

// lookupError maps a single-record lookup failure to an AppError.
func lookupError(err error, resource string, id interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	return models.NewInternalError(err)
}

func chunkIDs(ids []uint) [][]uint {
	var out [][]uint
	for len(ids) > inChunk {
		out = append(out, ids[:inChunk])
		ids = ids[inChunk:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}

// likePattern builds a case-insensitive LIKE pattern; callers compare against LOWER(column).
func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(strings.TrimSpace(q))) + "%"
}

// tagPattern matches one element of a JSON string array stored as text.
func tagPattern(tag string) string {
	return `%"` + strings.ToLower(strings.TrimSpace(tag)) + `"%`
}

// interaction is a (user, target) join table whose rows are the ground truth for a counter.
type interaction struct {
	table     string
	targetCol string
}

var (
	blogSaves         = interaction{table: "blog_saves", targetCol: "blog_id"}
	commentLikes      = interaction{table: "comment_likes", targetCol: "comment_id"}
	resourceLikes     = interaction{table: "resource_likes", targetCol: "resource_id"}
	resourceBookmarks = interaction{table: "resource_bookmarks", targetCol: "resource_id"}
)

// apply sets the interaction to want, or flips it when want is nil, and returns
// the state recounted from the table. It must run inside a transaction.
func (i interaction) apply(tx *gorm.DB, userID, targetID uint, want *bool) (models.ToggleResult, error) {
	var result models.ToggleResult

	active, err := i.exists(tx, userID, targetID)
	if err != nil {
		return result, err
	}
	target := !active
	if want != nil {
		target = *want
	}

	switch {
	case target && !active:
		res := tx.Exec(
			fmt.Sprintf("INSERT INTO %s (user_id, %s, created_at) VALUES (?, ?, ?) ON CONFLICT DO NOTHING", i.table, i.targetCol),
			userID, targetID, time.Now().UTC(),
		)
		if res.Error != nil {
			return result, res.Error
		}
		result.Changed = res.RowsAffected > 0
	case !target && active:
		res := tx.Exec(
			fmt.Sprintf("DELETE FROM %s WHERE user_id = ? AND %s = ?", i.table, i.targetCol),
			userID, targetID,
		)
		if res.Error != nil {
			return result, res.Error
		}
		result.Changed = res.RowsAffected > 0
	}

	result.Active = target
	if err := tx.Table(i.table).Where(i.targetCol+" = ?", targetID).Count(&result.Count).Error; err != nil {
		return result, err
	}
	return result, nil
}

func (i interaction) exists(db *gorm.DB, userID, targetID uint) (bool, error) {
	var n int64
	err := db.Table(i.table).
		Where("user_id = ? AND "+i.targetCol+" = ?", userID, targetID).
		Count(&n).Error
	return n > 0, err
}

// deleteForTargets removes every interaction row pointing at targetIDs.
func (i interaction) deleteForTargets(tx *gorm.DB, targetIDs []uint) error {
	for _, chunk := range chunkIDs(targetIDs) {
		if err := tx.Exec(fmt.Sprintf("DELETE FROM %s WHERE %s IN ?", i.table, i.targetCol), chunk).Error; err != nil {
			return err
		}
	}
	return nil
}
