package retrieval

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

// resultCache memoizes ranked responses per owner and query fingerprint for
// a short TTL. Any write for an owner invalidates every cached query of
// that owner.
type resultCache struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
}

type cacheEntry struct {
	key       string
	ownerID   string
	response  *Response
	expiresAt time.Time
}

func newResultCache(maxEntries int, ttl time.Duration) *resultCache {
	return &resultCache{
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
	}
}

// fingerprint keys a query by owner, text and keyword set.
func fingerprint(ownerID, text string, keywords []string) string {
	h := sha256.New()
	h.Write([]byte(ownerID))
	h.Write([]byte{0})
	h.Write([]byte(strings.ToLower(strings.TrimSpace(text))))
	h.Write([]byte{0})
	h.Write([]byte(strings.ToLower(strings.Join(keywords, ","))))
	return ownerID + ":" + hex.EncodeToString(h.Sum(nil))
}

func (c *resultCache) get(key string) (*Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	ce := el.Value.(*cacheEntry)
	if c.now().After(ce.expiresAt) {
		c.order.Remove(el)
		delete(c.entries, key)
		return nil, false
	}
	c.order.MoveToFront(el)
	return ce.response, true
}

func (c *resultCache) put(key, ownerID string, resp *Response) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		ce := el.Value.(*cacheEntry)
		ce.response = resp
		ce.expiresAt = c.now().Add(c.ttl)
		c.order.MoveToFront(el)
		return
	}
	for c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
	el := c.order.PushFront(&cacheEntry{
		key:       key,
		ownerID:   ownerID,
		response:  resp,
		expiresAt: c.now().Add(c.ttl),
	})
	c.entries[key] = el
}

// invalidate drops every cached response for the owner.
func (c *resultCache) invalidate(ownerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var next *list.Element
	for el := c.order.Front(); el != nil; el = next {
		next = el.Next()
		ce := el.Value.(*cacheEntry)
		if ce.ownerID == ownerID {
			c.order.Remove(el)
			delete(c.entries, ce.key)
		}
	}
}
