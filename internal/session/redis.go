package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultSessionKey = "chatsync:session"

// RedisStore persists the session as a Redis hash so it survives restarts
// and can be refreshed by another process (e.g. a login helper).
type RedisStore struct {
	rdb *redis.Client
	key string
}

// NewRedisStore creates a RedisStore under key.
func NewRedisStore(rdb *redis.Client, key string) *RedisStore {
	if key == "" {
		key = defaultSessionKey
	}
	return &RedisStore{rdb: rdb, key: key}
}

func (r *RedisStore) Load(ctx context.Context) (Session, error) {
	fields, err := r.rdb.HGetAll(ctx, r.key).Result()
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	if len(fields) == 0 {
		return Session{}, ErrNoSession
	}

	s := Session{
		UserID:   fields["user_id"],
		Username: fields["username"],
		Token:    fields["token"],
	}
	if raw := fields["expires_at"]; raw != "" {
		unix, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Session{}, fmt.Errorf("decode session expiry: %w", err)
		}
		s.ExpiresAt = time.Unix(unix, 0)
	}
	return s, nil
}

func (r *RedisStore) Save(ctx context.Context, s Session) error {
	if r.rdb == nil {
		return errors.New("redis client is not configured")
	}
	values := map[string]interface{}{
		"user_id":  s.UserID,
		"username": s.Username,
		"token":    s.Token,
	}
	if !s.ExpiresAt.IsZero() {
		values["expires_at"] = strconv.FormatInt(s.ExpiresAt.Unix(), 10)
	}

	pipe := r.rdb.TxPipeline()
	pipe.Del(ctx, r.key)
	pipe.HSet(ctx, r.key, values)
	if !s.ExpiresAt.IsZero() {
		pipe.ExpireAt(ctx, r.key, s.ExpiresAt)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (r *RedisStore) Clear(ctx context.Context) error {
	return r.rdb.Del(ctx, r.key).Err()
}
