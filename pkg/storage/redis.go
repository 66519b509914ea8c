package storage

import (
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisClient connects to the cache instance backing the edge, count and
// login caches. One client per component, shared across requests.
func RedisClient(address string, port int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%d", address, port),
	})
}
