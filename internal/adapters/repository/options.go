package repository

import "time"

// MemoryOption applies a configuration option to the MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMaxEntries bounds the store; the oldest insert is evicted first.
// Zero or less means unbounded.
func WithMaxEntries(n int) MemoryOption {
	return func(s *MemoryStore) {
		s.maxEntries = n
	}
}

// RedisOption applies a configuration option to the RedisStore.
type RedisOption func(*RedisStore)

// WithPrefix sets the key prefix; keys are "<prefix>:<id>".
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithTTL sets how long results live in redis. Zero keeps them forever.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		if ttl >= 0 {
			s.ttl = ttl
		}
	}
}
