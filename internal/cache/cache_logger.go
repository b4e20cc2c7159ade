package cache

import (
	"context"
	"fmt"
	"log/slog"
)

// SafeInvalidatePattern invalidates a pattern and logs instead of failing.
func SafeInvalidatePattern(ctx context.Context, helper *CacheHelper, pattern string) {
	if err := helper.InvalidatePattern(ctx, pattern); err != nil {
		slog.ErrorContext(ctx, "Failed to invalidate cache pattern",
			"error", err,
			"pattern", pattern)
	}
}

// SafeDelete deletes keys and logs instead of failing.
func SafeDelete(ctx context.Context, helper *CacheHelper, keys ...string) {
	if err := helper.Delete(ctx, keys...); err != nil {
		slog.ErrorContext(ctx, "Failed to delete cache keys",
			"error", err,
			"keys", keys)
	}
}

// MistakeReportKey is the cache key of one of a user's mistake reports.
func MistakeReportKey(userID, report string) string {
	return fmt.Sprintf("user:%s:%s", userID, report)
}

// SessionAnalyticsKey is the cache key of a completed session's analytics.
func SessionAnalyticsKey(sessionID uint) string {
	return fmt.Sprintf("id:%d", sessionID)
}

// SessionKey is the cache key of a session view.
func SessionKey(sessionID uint) string {
	return fmt.Sprintf("id:%d", sessionID)
}

// InvalidateUserReports drops every cached mistake report of a user.
func InvalidateUserReports(ctx context.Context, cm *CacheManager, userID string) {
	SafeInvalidatePattern(ctx, cm.Mistakes, fmt.Sprintf("user:%s:*", userID))
}

// InvalidateSession drops cached copies of one session.
func InvalidateSession(ctx context.Context, cm *CacheManager, sessionID uint) {
	SafeDelete(ctx, cm.Session, SessionKey(sessionID))
	SafeDelete(ctx, cm.Analytics, SessionAnalyticsKey(sessionID))
}
