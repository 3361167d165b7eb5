// Package usercache resolves user ids to user names with an expiring LRU cache.
package usercache

import (
	"math/rand"
	"os/user"
	"strconv"
	"time"

	utilcache "k8s.io/apimachinery/pkg/util/cache"
	"k8s.io/utils/clock"
)

const (
	defaultSize = 1024
	// unknown uids are retried sooner than known ones
	missTTL = time.Minute
)

// LookupFunc resolves a uid to a user name.
type LookupFunc func(uid string) (string, error)

// Cache maps uids to user names.
type Cache struct {
	cache  *utilcache.LRUExpireCache
	lookup LookupFunc
}

// New returns a cache backed by os/user.
func New() *Cache {
	return NewWithLookup(defaultSize, clock.RealClock{}, lookupUsername)
}

// NewWithLookup returns a cache of the given size using lookup and clk.
func NewWithLookup(size int, clk clock.PassiveClock, lookup LookupFunc) *Cache {
	return &Cache{
		cache:  utilcache.NewLRUExpireCacheWithClock(size, clk),
		lookup: lookup,
	}
}

// Username returns the name for uid, or "" when it has none.
func (c *Cache) Username(uid uint32) string {
	key := strconv.FormatUint(uint64(uid), 10)
	if item, ok := c.cache.Get(key); ok {
		return item.(string)
	}

	name, err := c.lookup(key)
	if err != nil {
		c.cache.Add(key, "", missTTL)
		return ""
	}
	// jitter so entries loaded together do not expire together
	ttl := time.Hour + time.Duration(rand.Intn(600))*time.Second //nolint:gosec // not security sensitive
	c.cache.Add(key, name, ttl)
	return name
}

func lookupUsername(uid string) (string, error) {
	u, err := user.LookupId(uid)
	if err != nil {
		return "", err
	}
	return u.Username, nil
}
