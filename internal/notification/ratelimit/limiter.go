// Package ratelimit caps notification dispatches per owner and channel with
// a Redis sliding-window log.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"listing_leads_backend/internal/notification/preferences"
	"listing_leads_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "notify:ratelimit:"

// The log holds one member per dispatch scored by unix millis. Entries older
// than a day are trimmed on every call. Returns 1 when the dispatch is
// admitted and recorded, 0 when a window is full.
var slidingWindow = redis.NewScript(`
local now = tonumber(ARGV[1])
local hour = tonumber(ARGV[2])
local day = tonumber(ARGV[3])
local maxHour = tonumber(ARGV[4])
local maxDay = tonumber(ARGV[5])

redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', now - day)

if maxDay > 0 and redis.call('ZCARD', KEYS[1]) >= maxDay then
  return 0
end
if maxHour > 0 and redis.call('ZCOUNT', KEYS[1], now - hour, '+inf') >= maxHour then
  return 0
end

redis.call('ZADD', KEYS[1], now, ARGV[6])
redis.call('PEXPIRE', KEYS[1], day)
return 1
`)

type Limiter struct {
	rdb redis.Scripter
	log *logger.Logger
	now func() time.Time
}

func New(rdb redis.Scripter, log *logger.Logger) *Limiter {
	return &Limiter{rdb: rdb, log: log, now: time.Now}
}

// Allow admits and records one dispatch when both windows have room. Unlimited
// channels never touch Redis. A Redis failure admits the dispatch.
func (l *Limiter) Allow(ctx context.Context, ownerID uuid.UUID, channel preferences.Channel, limit preferences.RateLimit) bool {
	if limit.MaxPerHour <= 0 && limit.MaxPerDay <= 0 {
		return true
	}
	if l == nil || l.rdb == nil {
		return true
	}

	now := l.now().UnixMilli()
	key := keyPrefix + ownerID.String() + ":" + string(channel)
	member := fmt.Sprintf("%d-%s", now, uuid.NewString())

	res, err := slidingWindow.Run(ctx, l.rdb, []string{key},
		now,
		time.Hour.Milliseconds(),
		(24 * time.Hour).Milliseconds(),
		limit.MaxPerHour,
		limit.MaxPerDay,
		member,
	).Int()
	if err != nil {
		l.log.Warn("rate limiter unavailable, allowing dispatch", "owner_id", ownerID, "channel", channel, "error", err)
		return true
	}
	return res == 1
}
