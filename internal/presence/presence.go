// Package presence keeps ephemeral online state and request budgets in
// redis, keyed with TTLs so state self-expires when connections die.
package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Tracker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewTracker(client *redis.Client, ttl time.Duration) *Tracker {
	return &Tracker{client: client, ttl: ttl}
}

func presenceKey(userID string) string {
	return "presence:" + userID
}

// Heartbeat marks the user online for the tracker TTL. Called at admission
// and on every websocket pong.
func (t *Tracker) Heartbeat(ctx context.Context, userID string) error {
	return t.client.Set(ctx, presenceKey(userID), time.Now().UTC().Format(time.RFC3339), t.ttl).Err()
}

func (t *Tracker) Offline(ctx context.Context, userID string) error {
	return t.client.Del(ctx, presenceKey(userID)).Err()
}

// Online reports which of the given users currently hold a presence mark.
func (t *Tracker) Online(ctx context.Context, userIDs []string) (map[string]bool, error) {
	result := make(map[string]bool, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = presenceKey(id)
	}
	values, err := t.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, value := range values {
		result[userIDs[i]] = value != nil
	}
	return result, nil
}

type Limiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// NewLimiter builds a fixed-window counter limiter: at most limit calls per
// window per user.
func NewLimiter(client *redis.Client, limit int, window time.Duration) *Limiter {
	return &Limiter{client: client, limit: limit, window: window}
}

// Allow consumes one unit of the user's budget and reports whether the call
// may proceed.
func (l *Limiter) Allow(ctx context.Context, userID string) (bool, error) {
	key := fmt.Sprintf("ratelimit:chat:%s:%d", userID, time.Now().Unix()/int64(l.window.Seconds()))
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		_ = l.client.Expire(ctx, key, l.window).Err()
	}
	return count <= int64(l.limit), nil
}
