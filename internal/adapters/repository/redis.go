package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rebooked/apsmatch/internal/domain/model"
	"github.com/rebooked/apsmatch/pkg/metrics"
)

const (
	backendRedis       = "redis"
	defaultRedisPrefix = "apsmatch:evaluation"
	defaultRedisTTL    = 24 * time.Hour
	scanBatch          = 500
)

// RedisConfig holds connection settings for NewRedisClient.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient opens a pooled client and pings it.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%w: redis ping %s: %v", ErrBackend, cfg.Addr, err)
	}
	return rdb, nil
}

// RedisStore keeps evaluations as JSON strings under "<prefix>:<id>".
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore wraps an existing client. The store owns the client and
// closes it on Close.
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client: client,
		prefix: defaultRedisPrefix,
		ttl:    defaultRedisTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(id string) string {
	return s.prefix + ":" + id
}

func (s *RedisStore) Put(ctx context.Context, e model.Evaluation) error {
	if e.ID == "" {
		metrics.RecordStoreError(backendRedis, "put")
		return ErrInvalidID
	}
	payload, err := json.Marshal(e)
	if err != nil {
		metrics.RecordStoreError(backendRedis, "put")
		return fmt.Errorf("marshal evaluation %s: %w", e.ID, err)
	}
	if err := s.client.Set(ctx, s.key(e.ID), payload, s.ttl).Err(); err != nil {
		metrics.RecordStoreError(backendRedis, "put")
		return fmt.Errorf("%w: set %s: %v", ErrBackend, e.ID, err)
	}
	metrics.RecordStoreOperation(backendRedis, "put")
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (model.Evaluation, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.RecordStoreOperation(backendRedis, "get")
		return model.Evaluation{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		metrics.RecordStoreError(backendRedis, "get")
		return model.Evaluation{}, fmt.Errorf("%w: get %s: %v", ErrBackend, id, err)
	}

	var e model.Evaluation
	if err := json.Unmarshal(raw, &e); err != nil {
		metrics.RecordStoreError(backendRedis, "get")
		return model.Evaluation{}, fmt.Errorf("%w: decode %s: %v", ErrBackend, id, err)
	}
	metrics.RecordStoreOperation(backendRedis, "get")
	return e, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		metrics.RecordStoreError(backendRedis, "delete")
		return fmt.Errorf("%w: del %s: %v", ErrBackend, id, err)
	}
	metrics.RecordStoreOperation(backendRedis, "delete")
	return nil
}

// Count scans the prefix. It is O(keys) and meant for stats endpoints and
// slow sampling, not per request.
func (s *RedisStore) Count(ctx context.Context) (int, error) {
	var (
		cursor uint64
		total  int
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, globEscape(s.prefix)+":*", scanBatch).Result()
		if err != nil {
			metrics.RecordStoreError(backendRedis, "count")
			return 0, fmt.Errorf("%w: scan: %v", ErrBackend, err)
		}
		total += len(keys)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	metrics.UpdateStoreEntries(total)
	return total, nil
}

func (s *RedisStore) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

// globEscape quotes the characters SCAN MATCH treats as wildcards.
func globEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
