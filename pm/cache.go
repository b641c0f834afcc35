package pm

import (
	"context"
	"fmt"

	"github.com/eak1mov/tilerange/pm/spec"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// DirectoryKey identifies a directory by archive and byte range.
type DirectoryKey struct {
	Archive string
	Offset  uint64
	Length  uint64
}

func (k DirectoryKey) String() string {
	return fmt.Sprintf("%s@%d+%d", k.Archive, k.Offset, k.Length)
}

// DirectoryLoader fetches and decodes a single directory.
type DirectoryLoader = func(ctx context.Context) ([]spec.Entry, error)

// DirectoryCache returns the directory stored under key, calling load to
// populate it when missing. Implementations must be safe for concurrent use.
// Returned entries are shared and must not be modified.
type DirectoryCache interface {
	GetDirectory(ctx context.Context, key DirectoryKey, load DirectoryLoader) ([]spec.Entry, error)
}

type noCache struct{}

func (noCache) GetDirectory(ctx context.Context, _ DirectoryKey, load DirectoryLoader) ([]spec.Entry, error) {
	return load(ctx)
}

// NoCache loads every directory on each request.
var NoCache DirectoryCache = noCache{}

const DefaultCacheSize = 128

// LRUCache keeps the most recently used directories in memory.
// Concurrent misses for the same key share a single load, which keeps running
// when the caller that started it gives up. Failed loads are not cached.
type LRUCache struct {
	entries *lru.Cache[DirectoryKey, []spec.Entry]
	group   singleflight.Group
}

// NewLRUCache creates a cache holding up to size directories.
// Non-positive sizes fall back to DefaultCacheSize.
func NewLRUCache(size int) *LRUCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, _ := lru.New[DirectoryKey, []spec.Entry](size)
	return &LRUCache{entries: entries}
}

func (c *LRUCache) GetDirectory(ctx context.Context, key DirectoryKey, load DirectoryLoader) ([]spec.Entry, error) {
	if entries, ok := c.entries.Get(key); ok {
		return entries, nil
	}

	resultCh := c.group.DoChan(key.String(), func() (any, error) {
		if entries, ok := c.entries.Get(key); ok {
			return entries, nil
		}
		entries, err := load(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		c.entries.Add(key, entries)
		return entries, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result := <-resultCh:
		if result.Err != nil {
			return nil, result.Err
		}
		return result.Val.([]spec.Entry), nil
	}
}

// Len returns the number of cached directories.
func (c *LRUCache) Len() int {
	return c.entries.Len()
}

// Purge drops all cached directories.
func (c *LRUCache) Purge() {
	c.entries.Purge()
}
