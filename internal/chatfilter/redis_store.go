package chatfilter

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisUserKeyPrefix = "chatfilter:user:"
	redisDupeKey       = "chatfilter:recent"
	redisKeyTTL        = 10 * time.Minute
)

// RedisWindowStore implements WindowStore on top of Redis sorted sets so
// multiple control-plane replicas share one rate-limit and duplicate-text
// view. Per-user windows use ZADD/ZREMRANGEBYSCORE keyed by timestamp;
// duplicate detection uses one global sorted set capped to
// recentMessagesWindow entries via ZREMRANGEBYRANK.
type RedisWindowStore struct {
	client *redis.Client
}

func NewRedisWindowStore(client *redis.Client) *RedisWindowStore {
	return &RedisWindowStore{client: client}
}

func (s *RedisWindowStore) RecordAndCountRecent(ctx context.Context, userID string, now time.Time) (int, error) {
	key := redisUserKeyPrefix + userID
	cutoff := now.Add(-rateLimitWindow).UnixNano()

	if err := s.client.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10)).Err(); err != nil {
		return 0, fmt.Errorf("chatfilter: prune user window: %w", err)
	}

	member := fmt.Sprintf("%d", now.UnixNano())
	if err := s.client.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: member}).Err(); err != nil {
		return 0, fmt.Errorf("chatfilter: record user message: %w", err)
	}
	if err := s.client.ZRemRangeByRank(ctx, key, 0, -(userTimesWindow + 1)); err != nil {
		// Trimming failure doesn't affect correctness of the count, only
		// long-run memory, so it is not fatal.
		_ = err
	}
	s.client.Expire(ctx, key, redisKeyTTL)

	count, err := s.client.ZCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("chatfilter: count user window: %w", err)
	}
	return int(count), nil
}

func (s *RedisWindowStore) RecordAndCountDuplicate(ctx context.Context, normalized string, now time.Time) (int, error) {
	before, err := s.client.ZCount(ctx, redisDupeKey, "-inf", "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("chatfilter: count recent window: %w", err)
	}

	matches, err := s.countDuplicates(ctx, normalized)
	if err != nil {
		return 0, err
	}

	member := fmt.Sprintf("%d:%s", now.UnixNano(), normalized)
	if err := s.client.ZAdd(ctx, redisDupeKey, redis.Z{Score: float64(now.UnixNano()), Member: member}).Err(); err != nil {
		return 0, fmt.Errorf("chatfilter: record recent text: %w", err)
	}
	if before+1 > recentMessagesWindow {
		if err := s.client.ZRemRangeByRank(ctx, redisDupeKey, 0, before+1-recentMessagesWindow-1).Err(); err != nil {
			_ = err
		}
	}
	s.client.Expire(ctx, redisDupeKey, redisKeyTTL)

	return matches, nil
}

func (s *RedisWindowStore) countDuplicates(ctx context.Context, normalized string) (int, error) {
	members, err := s.client.ZRange(ctx, redisDupeKey, 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("chatfilter: scan recent window: %w", err)
	}
	suffix := ":" + normalized
	count := 0
	for _, m := range members {
		if len(m) >= len(suffix) && m[len(m)-len(suffix):] == suffix {
			count++
		}
	}
	return count, nil
}

func (s *RedisWindowStore) ResetUser(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, redisUserKeyPrefix+userID).Err(); err != nil {
		return fmt.Errorf("chatfilter: reset user window: %w", err)
	}
	return nil
}

func (s *RedisWindowStore) SweepIdleUsers(_ context.Context, _ time.Time, _ time.Duration) error {
	// Per-user keys carry their own TTL (redisKeyTTL); Redis expires idle
	// users automatically, so there is nothing to actively sweep here.
	return nil
}
