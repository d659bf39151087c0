// Package redisstore keeps quota counters in Redis for deployments that want
// the hot counter path off Postgres.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"contentaudit/internal/domain"
	"contentaudit/internal/ports"
)

// Daily counters outlive the longest history window.
const counterTTL = 35 * 24 * time.Hour

type Quota struct {
	rdb    *redis.Client
	prefix string
}

var _ ports.QuotaRepository = (*Quota)(nil)

func New(rdb *redis.Client) *Quota {
	return &Quota{rdb: rdb, prefix: "quota"}
}

// Open parses a redis:// URL and pings the server.
func Open(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

func (q *Quota) counterKey(accountID, domainName string, day time.Time) string {
	return fmt.Sprintf("%s:%s:%s:%s", q.prefix, accountID, domainName, day.UTC().Format(time.DateOnly))
}

func (q *Quota) domainsKey(accountID string) string {
	return fmt.Sprintf("%s:domains:%s", q.prefix, accountID)
}

func (q *Quota) QuotaCount(ctx context.Context, accountID, domainName string, day time.Time) (int, error) {
	n, err := q.rdb.Get(ctx, q.counterKey(accountID, domainName, day)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// consumeScript checks both limits and increments in one server-side step.
// Returns {allowed, reason, used}; reason 1 is the daily limit, 2 the domain
// limit. A negative limit is unlimited.
var consumeScript = redis.NewScript(`
local used = tonumber(redis.call('GET', KEYS[1]) or '0')
local daily = tonumber(ARGV[2])
if daily >= 0 and used >= daily then
  return {0, 1, used}
end
local maxDomains = tonumber(ARGV[3])
if maxDomains >= 0 and redis.call('SISMEMBER', KEYS[2], ARGV[1]) == 0 then
  local n = redis.call('SCARD', KEYS[2])
  if n >= maxDomains then
    return {0, 2, n}
  end
end
local n = redis.call('INCR', KEYS[1])
redis.call('EXPIRE', KEYS[1], ARGV[4])
redis.call('SADD', KEYS[2], ARGV[1])
return {1, 0, n}
`)

func (q *Quota) ConsumeQuota(ctx context.Context, c ports.QuotaClaim) (ports.QuotaOutcome, error) {
	keys := []string{q.counterKey(c.AccountID, c.Domain, c.Day), q.domainsKey(c.AccountID)}
	res, err := consumeScript.Run(ctx, q.rdb, keys,
		c.Domain, c.DailyLimit, c.DomainLimit, int64(counterTTL/time.Second)).Int64Slice()
	if err != nil {
		return ports.QuotaOutcome{}, err
	}
	if len(res) != 3 {
		return ports.QuotaOutcome{}, fmt.Errorf("consume script: unexpected reply %v", res)
	}
	out := ports.QuotaOutcome{Allowed: res[0] == 1, Used: int(res[2])}
	switch res[1] {
	case 1:
		out.Reason = domain.QuotaDailyLimit
	case 2:
		out.Reason = domain.QuotaDomainLimit
	}
	return out, nil
}

func (q *Quota) CountDomains(ctx context.Context, accountID string) (int, error) {
	n, err := q.rdb.SCard(ctx, q.domainsKey(accountID)).Result()
	return int(n), err
}

func (q *Quota) HasDomain(ctx context.Context, accountID, domainName string) (bool, error) {
	return q.rdb.SIsMember(ctx, q.domainsKey(accountID), domainName).Result()
}

func (q *Quota) QuotaHistory(ctx context.Context, accountID, domainName string, from, to time.Time) ([]domain.DailyCount, error) {
	var (
		days []time.Time
		keys []string
	)
	for d := startOfDay(from); !d.After(startOfDay(to)); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
		keys = append(keys, q.counterKey(accountID, domainName, d))
	}
	if len(keys) == 0 {
		return nil, nil
	}
	vals, err := q.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.DailyCount, len(days))
	for i, d := range days {
		out[i] = domain.DailyCount{Day: d}
		s, ok := vals[i].(string)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", keys[i], err)
		}
		out[i].Count = n
	}
	return out, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
