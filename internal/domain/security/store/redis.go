package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"medboard-server-go/internal/domain/security/model"
)

type redisStore struct {
	client *redis.Client
	prefix string
}

// NewRedis constructs a redis-backed lockout store. Records carry no
// backend TTL: the escalation counters must survive past the lockout
// window, so removal is left to the explicit cleanup sweep.
func NewRedis(cfg Config) (Store, error) {
	if cfg.Redis == nil {
		return nil, fmt.Errorf("redis configuration missing")
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis address required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	prefix := cfg.Redis.Prefix
	if prefix == "" {
		prefix = "medboard:lockout:"
	}
	return &redisStore{client: client, prefix: prefix}, nil
}

func (s *redisStore) key(email string) string {
	return s.prefix + email
}

func (s *redisStore) Put(ctx context.Context, rec model.LockoutRecord) error {
	if rec.Email == "" {
		return fmt.Errorf("email required")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(rec.Email), data, 0).Err()
}

func (s *redisStore) Get(ctx context.Context, email string) (model.LockoutRecord, error) {
	raw, err := s.client.Get(ctx, s.key(email)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return model.LockoutRecord{}, ErrNotFound
		}
		return model.LockoutRecord{}, err
	}
	var rec model.LockoutRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return model.LockoutRecord{}, fmt.Errorf("malformed lockout record %s: %w", email, err)
	}
	return rec, nil
}

func (s *redisStore) Delete(ctx context.Context, email string) error {
	return s.client.Del(ctx, s.key(email)).Err()
}

func (s *redisStore) List(ctx context.Context) ([]model.LockoutRecord, error) {
	recs := make([]model.LockoutRecord, 0)

	var cursor uint64
	pattern := s.prefix + "*"
	for {
		keys, nextCursor, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			raw, err := s.client.Get(ctx, key).Bytes()
			if err != nil {
				if err == redis.Nil {
					continue
				}
				return nil, err
			}
			var rec model.LockoutRecord
			if err := json.Unmarshal(raw, &rec); err != nil {
				continue
			}
			recs = append(recs, rec)
		}
		if nextCursor == 0 {
			break
		}
		cursor = nextCursor
	}
	return recs, nil
}

func (s *redisStore) CleanupExpired(ctx context.Context, age time.Duration) (int, error) {
	recs, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	now := time.Now()
	removed := 0
	for _, rec := range recs {
		if cleanupEligible(rec, now, age) {
			if err := s.Delete(ctx, rec.Email); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

func (s *redisStore) Close(context.Context) error {
	return s.client.Close()
}
