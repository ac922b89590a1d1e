package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/arklim/maintenance-service/internal/core/port"
)

// admitScript trims, counts and conditionally records in one round trip so concurrent replicas
// cannot admit more than limit requests per window.
//
// KEYS[1] window key
// ARGV[1] exclusive trim threshold, ARGV[2] limit, ARGV[3] score, ARGV[4] member, ARGV[5] ttl ms
var admitScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
local count = redis.call('ZCARD', KEYS[1])
local admitted = 0
if count < tonumber(ARGV[2]) then
	redis.call('ZADD', KEYS[1], ARGV[3], ARGV[4])
	count = count + 1
	admitted = 1
end
redis.call('PEXPIRE', KEYS[1], ARGV[5])
local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
local score = ''
if #oldest == 2 then
	score = oldest[2]
end
return {admitted, count, score}
`)

// RequestWindowRepository keeps per-caller request timestamps in Redis sorted sets scored in
// microseconds.
type RequestWindowRepository struct {
	client    *redis.Client
	keyPrefix string
}

// NewRequestWindowRepository constructs a repository storing windows under keyPrefix.
func NewRequestWindowRepository(client *redis.Client, keyPrefix string) *RequestWindowRepository {
	return &RequestWindowRepository{client: client, keyPrefix: keyPrefix}
}

// Admit records the request when the window has room. Keys expire after two windows of
// inactivity.
func (r *RequestWindowRepository) Admit(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (port.WindowUsage, error) {
	if window <= 0 {
		return port.WindowUsage{}, errors.New("window must be positive")
	}
	if limit <= 0 {
		return port.WindowUsage{}, errors.New("limit must be positive")
	}

	micros := now.UnixMicro()
	args := []any{
		"(" + strconv.FormatInt(now.Add(-window).UnixMicro(), 10),
		limit,
		micros,
		strconv.FormatInt(micros, 10) + "-" + uuid.NewString(),
		(2 * window).Milliseconds(),
	}

	values, err := admitScript.Run(ctx, r.client, []string{r.key(key)}, args...).Slice()
	if err != nil {
		return port.WindowUsage{}, fmt.Errorf("redis admit: %w", err)
	}

	return parseUsage(values)
}

func parseUsage(values []any) (port.WindowUsage, error) {
	if len(values) != 3 {
		return port.WindowUsage{}, fmt.Errorf("redis admit: unexpected reply length %d", len(values))
	}

	admitted, ok := values[0].(int64)
	if !ok {
		return port.WindowUsage{}, fmt.Errorf("redis admit: unexpected admitted value %T", values[0])
	}
	count, ok := values[1].(int64)
	if !ok {
		return port.WindowUsage{}, fmt.Errorf("redis admit: unexpected count value %T", values[1])
	}

	usage := port.WindowUsage{Admitted: admitted == 1, Count: int(count)}

	if raw, _ := values[2].(string); raw != "" {
		score, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return port.WindowUsage{}, fmt.Errorf("redis admit: parse oldest score: %w", err)
		}
		usage.Oldest = time.UnixMicro(int64(score))
	}

	return usage, nil
}

func (r *RequestWindowRepository) key(key string) string {
	if r.keyPrefix == "" {
		return key
	}
	return r.keyPrefix + ":" + key
}

var _ port.RequestWindowStore = (*RequestWindowRepository)(nil)
