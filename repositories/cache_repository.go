package repositories

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const uploadStatsKey = "stats:uploads"

func albumListingKey(userID uint) string {
	return fmt.Sprintf("albums:sidebar:%d", userID)
}

type RedisCacheRepository struct {
	redis *redis.Client
}

func NewRedisCacheRepository(redisClient *redis.Client) *RedisCacheRepository {
	return &RedisCacheRepository{redis: redisClient}
}

func (r *RedisCacheRepository) InvalidateUploadStats(ctx context.Context) error {
	return r.redis.Del(ctx, uploadStatsKey).Err()
}

func (r *RedisCacheRepository) InvalidateAlbumListing(ctx context.Context, userIDs []uint) error {
	if len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(userIDs))
	for _, userID := range userIDs {
		keys = append(keys, albumListingKey(userID))
	}
	return r.redis.Del(ctx, keys...).Err()
}
