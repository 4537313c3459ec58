package cache

import (
	"fmt"
	"time"
)

const (
	FollowingKeyPrefix    = "following:%d"
	DiscoverFeedKeyPrefix = "feed:discover:%d"
	StatisticsKeyPrefix   = "stats:%d"
)

const (
	FollowingTTL    = 10 * time.Minute
	DiscoverFeedTTL = 30 * time.Second
	StatisticsTTL   = 2 * time.Minute
)

// UserScopedPatterns match every per-user key. User ids are reused after a
// database reset, so a reset must drop these too.
var UserScopedPatterns = []string{"following:*", "stats:*", "feed:discover:*"}

// FollowingKey holds the set of user ids a user follows.
func FollowingKey(userID uint) string {
	return fmt.Sprintf(FollowingKeyPrefix, userID)
}

// DiscoverFeedKey holds the anonymous discover feed for one page size.
func DiscoverFeedKey(limit int) string {
	return fmt.Sprintf(DiscoverFeedKeyPrefix, limit)
}

// StatisticsKey holds a user's statistics dashboard.
func StatisticsKey(userID uint) string {
	return fmt.Sprintf(StatisticsKeyPrefix, userID)
}
