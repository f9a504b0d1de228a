package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewDefaultsToMemoryCache(t *testing.T) {
	c := New(Options{})
	_, ok := c.(*MemoryCache)
	assert.True(t, ok)
}

func TestNewBuildsRedisCacheForRedisBackend(t *testing.T) {
	c := New(Options{Backend: BackendRedis, RedisAddr: "localhost:6379"})
	_, ok := c.(*RedisCache)
	assert.True(t, ok)
}
