package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"medboard-server-go/internal/domain/session/model"
)

type redisStore struct {
	client    *redis.Client
	prefix    string
	retention time.Duration
}

// NewRedis constructs a redis-backed session store. Records are stored as
// JSON values with a physical TTL past their logical expiry; a per-user
// index set tracks session ownership (the hosted store's per-user session
// counter).
func NewRedis(cfg Config) (Store, error) {
	if cfg.Redis == nil {
		return nil, fmt.Errorf("redis configuration missing")
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis address required")
	}

	opts := &redis.Options{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	prefix := cfg.Redis.Prefix
	if prefix == "" {
		prefix = "medboard:session:"
	}
	retention := cfg.Redis.Retention
	if retention <= 0 {
		retention = time.Hour
	}
	return &redisStore{
		client:    client,
		prefix:    prefix,
		retention: retention,
	}, nil
}

func (s *redisStore) recKey(id string) string {
	return s.prefix + "rec:" + id
}

func (s *redisStore) userKey(userID string) string {
	return s.prefix + "user:" + userID
}

func (s *redisStore) Put(ctx context.Context, rec model.Record) error {
	if rec.SessionID == "" {
		return fmt.Errorf("session id required")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	ttl := time.Until(rec.ExpiresAt) + s.retention
	if ttl <= 0 {
		ttl = s.retention
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.recKey(rec.SessionID), data, ttl)
	pipe.SAdd(ctx, s.userKey(rec.UserID), rec.SessionID)
	pipe.Expire(ctx, s.userKey(rec.UserID), ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *redisStore) Get(ctx context.Context, sessionID string) (model.Record, error) {
	raw, err := s.client.Get(ctx, s.recKey(sessionID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return model.Record{}, ErrNotFound
		}
		return model.Record{}, err
	}
	var rec model.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		// malformed value: reject rather than trust shape
		return model.Record{}, fmt.Errorf("malformed session record %s: %w", sessionID, err)
	}
	return rec, nil
}

func (s *redisStore) Delete(ctx context.Context, sessionID string) error {
	rec, err := s.Get(ctx, sessionID)
	if err != nil {
		if err == ErrNotFound {
			return nil
		}
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.recKey(sessionID))
	pipe.SRem(ctx, s.userKey(rec.UserID), sessionID)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *redisStore) ListByUser(ctx context.Context, userID string) ([]model.Record, error) {
	ids, err := s.client.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	recs := make([]model.Record, 0, len(ids))
	for _, id := range ids {
		rec, err := s.Get(ctx, id)
		if err != nil {
			if err == ErrNotFound {
				// stale index entry, record already evicted by TTL
				_ = s.client.SRem(ctx, s.userKey(userID), id).Err()
				continue
			}
			return nil, err
		}
		if rec.Live(now) {
			recs = append(recs, rec)
		}
	}
	return recs, nil
}

func (s *redisStore) ListAll(ctx context.Context) ([]model.Record, error) {
	recs := make([]model.Record, 0)
	now := time.Now()

	var cursor uint64
	pattern := s.prefix + "rec:*"
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
			var rec model.Record
			if err := json.Unmarshal(raw, &rec); err != nil {
				continue
			}
			if rec.Live(now) {
				recs = append(recs, rec)
			}
		}
		if nextCursor == 0 {
			break
		}
		cursor = nextCursor
	}
	return recs, nil
}

func (s *redisStore) CleanupExpired(ctx context.Context) ([]model.Record, error) {
	removed := make([]model.Record, 0)
	now := time.Now()

	var cursor uint64
	pattern := s.prefix + "rec:*"
	for {
		keys, nextCursor, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return removed, err
		}
		for _, key := range keys {
			raw, err := s.client.Get(ctx, key).Bytes()
			if err != nil {
				continue
			}
			var rec model.Record
			if err := json.Unmarshal(raw, &rec); err != nil {
				// unparseable record: drop it, fail closed
				_ = s.client.Del(ctx, key).Err()
				continue
			}
			if rec.Live(now) {
				continue
			}
			if err := s.Delete(ctx, rec.SessionID); err == nil {
				removed = append(removed, rec)
			}
		}
		if nextCursor == 0 {
			break
		}
		cursor = nextCursor
	}
	return removed, nil
}

func (s *redisStore) Stats(ctx context.Context) (map[string]any, error) {
	size, err := s.client.DBSize(ctx).Result()
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"type":  "redis",
		"total": size,
	}, nil
}

func (s *redisStore) Close(context.Context) error {
	return s.client.Close()
}
