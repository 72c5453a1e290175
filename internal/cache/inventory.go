package cache

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	ProfileKeyPrefix      = "profile:%s"
	UserKeyPrefix         = "user:%d"
	ResourceCategoriesKey = "resources:categories"
	WSTicketKeyPrefix     = "ws_ticket:%s"
)

const (
	ProfileTTL            = 5 * time.Minute
	UserTTL               = 5 * time.Minute
	ResourceCategoriesTTL = 10 * time.Minute
	WSTicketTTL           = 60 * time.Second
)

func ProfileKey(username string) string {
	return fmt.Sprintf(ProfileKeyPrefix, strings.ToLower(username))
}

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func WSTicketKey(ticket string) string {
	return fmt.Sprintf(WSTicketKeyPrefix, ticket)
}

func Invalidate(ctx context.Context, keys ...string) {
	if client != nil && len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

// InvalidateUser drops every cached view of a user.
func InvalidateUser(ctx context.Context, userID uint, username string) {
	Invalidate(ctx, UserKey(userID), ProfileKey(username))
}

func InvalidateResourceCategories(ctx context.Context) {
	Invalidate(ctx, ResourceCategoriesKey)
}
