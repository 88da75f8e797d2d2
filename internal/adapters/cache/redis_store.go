package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	codeKeyPrefix    = "otp:code:"
	requestKeyPrefix = "otp:requests:"
)

// reserveScript increments KEYS[1] when it is below ARGV[1] and refreshes its TTL (ARGV[2] ms)
var reserveScript = redis.NewScript(`
local n = tonumber(redis.call('GET', KEYS[1]) or '0')
if n >= tonumber(ARGV[1]) then
  return {n, 0}
end
n = redis.call('INCR', KEYS[1])
redis.call('PEXPIRE', KEYS[1], ARGV[2])
return {n, 1}
`)

// RedisStore keeps codes and request counters in Redis so several instances share them
type RedisStore struct {
	client        *redis.Client
	codeTTL       time.Duration
	requestWindow time.Duration
}

// NewRedisStore creates a Redis-backed OTP store. Capacities are left to Redis eviction.
func NewRedisStore(client *redis.Client, opts Options) *RedisStore {
	return &RedisStore{
		client:        client,
		codeTTL:       opts.CodeTTL,
		requestWindow: opts.RequestWindow,
	}
}

func (s *RedisStore) PutCode(ctx context.Context, userID, code string) error {
	if err := s.client.Set(ctx, codeKeyPrefix+userID, code, s.codeTTL).Err(); err != nil {
		return fmt.Errorf("store otp code: %w", err)
	}
	return nil
}

func (s *RedisStore) GetCode(ctx context.Context, userID string) (string, bool, error) {
	code, err := s.client.Get(ctx, codeKeyPrefix+userID).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load otp code: %w", err)
	}
	return code, true, nil
}

func (s *RedisStore) DeleteCode(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, codeKeyPrefix+userID).Err(); err != nil {
		return fmt.Errorf("delete otp code: %w", err)
	}
	return nil
}

// ReserveRequest atomically increments the counter for userID unless it already reached max
func (s *RedisStore) ReserveRequest(ctx context.Context, userID string, max int) (int, bool, error) {
	res, err := reserveScript.Run(ctx, s.client, []string{requestKeyPrefix + userID}, max, s.requestWindow.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, false, fmt.Errorf("reserve otp request: %w", err)
	}
	if len(res) != 2 {
		return 0, false, fmt.Errorf("reserve otp request: unexpected reply %v", res)
	}
	return int(res[0]), res[1] == 1, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Backend() string { return BackendRedis }
