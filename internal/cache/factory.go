package cache

import (
	"github.com/redis/go-redis/v9"
)

// Backend selects which Cache implementation New builds.
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendRedis  Backend = "redis"
)

// Options configures New.
type Options struct {
	Backend   Backend
	RedisAddr string
	RedisDB   int
	KeyPrefix string
}

// New builds a Cache per opts.Backend, defaulting to an in-process map when
// unset or when the backend name is unrecognized.
func New(opts Options) Cache {
	switch opts.Backend {
	case BackendRedis:
		client := redis.NewClient(&redis.Options{Addr: opts.RedisAddr, DB: opts.RedisDB})
		return NewRedisCache(client, opts.KeyPrefix)
	default:
		return NewMemoryCache()
	}
}
