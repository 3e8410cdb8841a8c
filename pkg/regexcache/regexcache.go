// Package regexcache provides a thread-safe, bounded cache of compiled
// regular expressions. Template filters compile patterns supplied by
// report authors on every render, so compiled patterns are shared across
// renders and exports; the bound keeps a template that generates patterns
// dynamically from growing the cache without limit.
//
// Usage:
//
//	re, err := regexcache.Get(`CVE-\d{4}-\d+`)
//	if err != nil {
//	    // handle error
//	}
//	id := re.FindString(input)
package regexcache

import (
	"regexp"
	"sync"
	"sync/atomic"
)

// DefaultMaxEntries bounds the package-level cache.
const DefaultMaxEntries = 512

// Cache holds compiled expressions keyed by pattern. The zero value is not
// usable; call New.
type Cache struct {
	max     int
	entries sync.Map
	size    atomic.Int64
}

// New returns a cache that stores at most max patterns. Patterns compiled
// after the cache is full are returned but not stored.
func New(max int) *Cache {
	if max <= 0 {
		max = DefaultMaxEntries
	}
	return &Cache{max: max}
}

// Get returns the compiled expression for pattern, compiling and storing
// it on first use.
func (c *Cache) Get(pattern string) (*regexp.Regexp, error) {
	if cached, ok := c.entries.Load(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	if c.size.Load() >= int64(c.max) {
		return re, nil
	}
	actual, loaded := c.entries.LoadOrStore(pattern, re)
	if !loaded {
		c.size.Add(1)
	}
	return actual.(*regexp.Regexp), nil
}

// MustGet is Get that panics on an invalid pattern. Use it only for
// patterns fixed at compile time.
func (c *Cache) MustGet(pattern string) *regexp.Regexp {
	re, err := c.Get(pattern)
	if err != nil {
		panic(err)
	}
	return re
}

// Len returns the number of stored patterns.
func (c *Cache) Len() int {
	return int(c.size.Load())
}

// Clear removes all stored patterns.
func (c *Cache) Clear() {
	c.entries.Range(func(key, _ any) bool {
		c.entries.Delete(key)
		return true
	})
	c.size.Store(0)
}

var shared = New(DefaultMaxEntries)

// Get compiles pattern through the package-level cache.
func Get(pattern string) (*regexp.Regexp, error) {
	return shared.Get(pattern)
}

// MustGet compiles pattern through the package-level cache and panics if
// it is invalid.
func MustGet(pattern string) *regexp.Regexp {
	return shared.MustGet(pattern)
}
