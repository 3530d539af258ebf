package presence

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTracker stores typing state in a per-group sorted set scored by the
// last update time, so freshness survives process restarts and is shared
// across instances. Expiry is purely score-based; there are no timers.
type RedisTracker struct {
	client *redis.Client
	window time.Duration
	now    func() time.Time
}

// NewRedisTracker constructs a RedisTracker.
func NewRedisTracker(client *redis.Client, window time.Duration) *RedisTracker {
	if window <= 0 {
		window = DefaultWindow
	}
	return &RedisTracker{client: client, window: window, now: time.Now}
}

func typingKey(groupID int) string {
	return fmt.Sprintf("quix:typing:%d", groupID)
}

// SetTyping adds or removes the user from the group's typing set.
func (t *RedisTracker) SetTyping(ctx context.Context, userID, groupID int, isTyping bool) error {
	k := typingKey(groupID)
	member := strconv.Itoa(userID)

	if !isTyping {
		return t.client.ZRem(ctx, k, member).Err()
	}

	pipe := t.client.Pipeline()
	pipe.ZAdd(ctx, k, redis.Z{Score: float64(t.now().UnixMilli()), Member: member})
	// the set as a whole only needs to outlive its freshest entry
	pipe.Expire(ctx, k, 2*t.window)
	_, err := pipe.Exec(ctx)
	return err
}

// TypingUsers prunes stale entries and returns the fresh ones.
func (t *RedisTracker) TypingUsers(ctx context.Context, groupID int) ([]int, error) {
	k := typingKey(groupID)
	cutoff := t.now().Add(-t.window).UnixMilli()

	if err := t.client.ZRemRangeByScore(ctx, k, "-inf", strconv.FormatInt(cutoff, 10)).Err(); err != nil {
		return nil, err
	}

	members, err := t.client.ZRangeByScore(ctx, k, &redis.ZRangeBy{
		Min: strconv.FormatInt(cutoff, 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, err
	}

	users := make([]int, 0, len(members))
	for _, m := range members {
		id, err := strconv.Atoi(m)
		if err != nil {
			continue
		}
		users = append(users, id)
	}
	return users, nil
}
