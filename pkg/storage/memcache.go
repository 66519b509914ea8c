package storage

import (
	"fmt"

	"github.com/bradfitz/gomemcache/memcache"
)

// MemCachedClient connects to the memcached instance holding user snapshots.
// The idle pool is sized for the fan-out of concurrent user lookups.
func MemCachedClient(address string, port int) *memcache.Client {
	client := memcache.New(fmt.Sprintf("%s:%d", address, port))
	client.MaxIdleConns = 1000
	return client
}
