package credentials

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the hash that holds the pair when no key is configured.
const DefaultRedisKey = "campus-portal:credentials"

// RedisRepo keeps the pair in a single redis hash so that both fields are
// written by one HSET and removed by one DEL.
type RedisRepo struct {
	client redis.UniversalClient
	key    string
}

var _ Repo = (*RedisRepo)(nil)

// NewRedisRepo stores the pair under key, or DefaultRedisKey when key is empty.
func NewRedisRepo(client redis.UniversalClient, key string) *RedisRepo {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisRepo{client: client, key: key}
}

func (r *RedisRepo) Load(ctx context.Context) (Pair, error) {
	fields, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return Pair{}, fmt.Errorf("redis load credentials: %w", err)
	}

	remember, _ := strconv.ParseBool(fields[KeyRemember])
	pair := Pair{
		AccessToken: fields[KeyAccessToken],
		UserID:      fields[KeyUserID],
		Remember:    remember,
	}
	if !pair.Complete() {
		return Pair{}, ErrNotFound
	}
	return pair, nil
}

func (r *RedisRepo) Save(ctx context.Context, pair Pair) error {
	if err := validate(pair); err != nil {
		return err
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.key)
		pipe.HSet(ctx, r.key,
			KeyAccessToken, pair.AccessToken,
			KeyUserID, pair.UserID,
			KeyRemember, strconv.FormatBool(pair.Remember),
		)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save credentials: %w", err)
	}
	return nil
}

func (r *RedisRepo) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("redis clear credentials: %w", err)
	}
	return nil
}
