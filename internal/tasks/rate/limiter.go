package rate

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// FloodLimit caps how many events an identifier may produce per window.
type FloodLimit struct {
	Window time.Duration
	Max    int
}

// FloodLimiter is a Redis sliding-window counter. The audit recorder uses
// it per resource so one hammered host cannot flood the audit queue.
type FloodLimiter struct {
	redis *redis.Client
	name  string
	limit FloodLimit
}

func NewFloodLimiter(redis *redis.Client, name string, limit FloodLimit) *FloodLimiter {
	return &FloodLimiter{
		redis: redis,
		name:  name,
		limit: limit,
	}
}

// Allow records one event for identifier and reports whether it is within
// the window's budget.
func (fl *FloodLimiter) Allow(ctx context.Context, identifier string) (bool, error) {
	key := fmt.Sprintf("flood_limit:%s:%s", fl.name, identifier)

	pipe := fl.redis.Pipeline()
	now := time.Now().UnixNano()
	windowStart := now - fl.limit.Window.Nanoseconds()

	// Drop entries that fell out of the window, count the rest, record
	// this event, and keep the key from lingering forever.
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart, 10))
	countCmd := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now), Member: now})
	pipe.Expire(ctx, key, fl.limit.Window*2)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis pipeline error: %w", err)
	}

	return countCmd.Val() < int64(fl.limit.Max), nil
}
