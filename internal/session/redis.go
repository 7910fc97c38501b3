package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ Store = (*RedisStore)(nil)

// RedisStore keeps each session as a Redis hash, one field per session key.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore returns a RedisStore. A zero ttl keeps sessions forever.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Load reads the session stored under id.
func (r *RedisStore) Load(ctx context.Context, id string) (*Session, error) {
	fields, err := r.client.HGetAll(ctx, sessionKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("loading session %q: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	s := &Session{ID: id, values: make(map[string][]byte, len(fields))}
	for k, v := range fields {
		s.values[k] = []byte(v)
	}
	return s, nil
}

// Save replaces the stored session with s in a single MULTI/EXEC block and
// refreshes its expiry. A session without values is removed.
func (r *RedisStore) Save(ctx context.Context, s *Session) error {
	key := sessionKey(s.ID)

	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		if len(s.values) == 0 {
			return nil
		}

		args := make([]any, 0, 2*len(s.values))
		for k, v := range s.values {
			args = append(args, k, v)
		}
		p.HSet(ctx, key, args...)
		if r.ttl > 0 {
			p.Expire(ctx, key, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving session %q: %w", s.ID, err)
	}

	s.markSaved()
	return nil
}

func sessionKey(id string) string {
	return "session:" + id
}
