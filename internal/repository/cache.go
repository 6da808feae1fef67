package repository

import (
	"fmt"

	"github.com/gregjones/httpcache"
	lru "github.com/hashicorp/golang-lru/v2"
)

var _ httpcache.Cache = (*responseCache)(nil)

// responseCache is a fixed-capacity httpcache.Cache. The key space is
// caller-chosen repository names, so the least recently used response is
// evicted once the cache is full.
type responseCache struct {
	entries *lru.Cache[string, []byte]
}

func newResponseCache(size int) (*responseCache, error) {
	entries, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("creating response cache: %w", err)
	}
	return &responseCache{entries: entries}, nil
}

func (c *responseCache) Get(key string) ([]byte, bool) {
	return c.entries.Get(key)
}

func (c *responseCache) Set(key string, resp []byte) {
	c.entries.Add(key, resp)
}

func (c *responseCache) Delete(key string) {
	c.entries.Remove(key)
}

// Len reports the number of cached responses.
func (c *responseCache) Len() int {
	return c.entries.Len()
}
