package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "refreshToken:"

// swapScript is a compare-and-set on a single key.
var swapScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
	return 1
end
return 0
`)

type RedisRepo struct {
	client redis.UniversalClient
}

var _ Repo = (*RedisRepo)(nil)

// NewRedisRepo creates a Redis-backed renewal token repo.
func NewRedisRepo(client redis.UniversalClient) *RedisRepo {
	return &RedisRepo{client: client}
}

func (r *RedisRepo) key(subject string) string {
	return keyPrefix + subject
}

func (r *RedisRepo) Put(ctx context.Context, subject, token string, ttl time.Duration) error {
	if subject == "" || token == "" {
		return errors.New("refresh: missing subject or token")
	}
	if ttl <= 0 {
		return fmt.Errorf("refresh: ttl must be positive, got %s", ttl)
	}
	return r.client.Set(ctx, r.key(subject), token, ttl).Err()
}

func (r *RedisRepo) Get(ctx context.Context, subject string) (string, error) {
	val, err := r.client.Get(ctx, r.key(subject)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (r *RedisRepo) Delete(ctx context.Context, subject string) error {
	return r.client.Del(ctx, r.key(subject)).Err()
}

func (r *RedisRepo) Swap(ctx context.Context, subject, expected, next string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, fmt.Errorf("refresh: ttl must be positive, got %s", ttl)
	}
	n, err := swapScript.Run(ctx, r.client, []string{r.key(subject)}, expected, next, ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Ping reports whether Redis is reachable.
func (r *RedisRepo) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
