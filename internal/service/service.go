// Package service holds the business rules between HTTP handlers and repositories.
package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"devshelf/internal/models"
)

// AdminChecker reports whether a user has admin rights.
type AdminChecker func(ctx context.Context, userID uint) (bool, error)

// canModerate allows owners, and admins when checker is set.
func canModerate(ctx context.Context, isAdmin AdminChecker, userID, ownerID uint) (bool, error) {
	if userID != 0 && userID == ownerID {
		return true, nil
	}
	if isAdmin == nil || userID == 0 {
		return false, nil
	}
	return isAdmin(ctx, userID)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func requireText(value, field string, maxRunes int) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", models.NewValidationError(field + " is required")
	}
	if utf8.RuneCountInString(value) > maxRunes {
		return "", models.NewValidationError(field + " is too long")
	}
	return value, nil
}

func isNotFound(err error) bool {
	var appErr *models.AppError
	return errors.As(err, &appErr) && appErr.Code == models.CodeNotFound
}
