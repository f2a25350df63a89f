package preview

import (
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

type cacheEntry struct {
	result  *Result
	created time.Time
}

// pageCache keeps preview results for a fixed time. A zero TTL disables it.
type pageCache struct {
	mu   sync.RWMutex
	now  func() time.Time
	ttl  time.Duration
	data map[string]cacheEntry
}

func newPageCache(now func() time.Time, ttl time.Duration) *pageCache {
	if now == nil {
		now = time.Now
	}
	return &pageCache{
		now:  now,
		ttl:  ttl,
		data: make(map[string]cacheEntry),
	}
}

// cacheKey identifies one preview: the page, how it was loaded, who asked
// for it and the headers sent upstream on their behalf. Visitors never share
// an entry because each fetches with their own cookie jar.
func cacheKey(target, mode, pageHost, visitor string, hdr http.Header) string {
	names := make([]string, 0, len(hdr))
	for name := range hdr {
		names = append(names, http.CanonicalHeaderKey(name))
	}
	sort.Strings(names)
	var b strings.Builder
	b.WriteString(target + "|" + mode + "|" + pageHost + "|" + visitor)
	for _, name := range names {
		b.WriteString("|" + name + "=" + strings.Join(hdr.Values(name), ","))
	}
	return b.String()
}

func (c *pageCache) Store(key string, res *Result) {
	if c.ttl <= 0 || res == nil {
		return
	}
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.data {
		if now.Sub(e.created) >= c.ttl {
			delete(c.data, k)
		}
	}
	c.data[key] = cacheEntry{result: res, created: now}
}

func (c *pageCache) Get(key string) (*Result, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	c.mu.RLock()
	entry, ok := c.data[key]
	c.mu.RUnlock()
	if !ok || c.now().Sub(entry.created) >= c.ttl {
		return nil, false
	}
	return entry.result, true
}
