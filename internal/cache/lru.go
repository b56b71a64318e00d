package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// LRUCache is the in-process cache. It bounds the number of identity
// responses held and keeps quota counters in a separate map that is
// never evicted by size.
type LRUCache struct {
	mu       sync.Mutex
	capacity int
	index    map[string]*list.Element
	recency  *list.List // front is most recently used
	windows  map[string]*window
	now      func() time.Time
}

type lruItem struct {
	key     string
	data    []byte
	expires time.Time
}

type window struct {
	hits int64
	ends time.Time
}

// NewLRUCache creates a cache holding at most capacity entries.
func NewLRUCache(capacity int) *LRUCache {
	if capacity <= 0 {
		capacity = 10000
	}
	c := &LRUCache{capacity: capacity, now: time.Now}
	c.reset()
	return c
}

func (c *LRUCache) reset() {
	c.index = make(map[string]*list.Element)
	c.recency = list.New()
	c.windows = make(map[string]*window)
}

func scopedKey(namespace, key string) (string, error) {
	if namespace == "" {
		return "", ErrNamespaceRequired
	}
	return namespace + ":" + key, nil
}

// Get returns nil, nil on a miss or an expired entry.
func (c *LRUCache) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	k, err := scopedKey(namespace, key)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[k]
	if !ok {
		return nil, nil
	}
	item := el.Value.(*lruItem)
	if !c.now().Before(item.expires) {
		c.drop(el)
		return nil, nil
	}
	c.recency.MoveToFront(el)
	return item.data, nil
}

// Set stores value until ttl elapses. When full, expired entries are
// dropped before the least recently used one.
func (c *LRUCache) Set(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error {
	k, err := scopedKey(namespace, key)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if el, ok := c.index[k]; ok {
		item := el.Value.(*lruItem)
		item.data, item.expires = value, now.Add(ttl)
		c.recency.MoveToFront(el)
		return nil
	}

	if c.recency.Len() >= c.capacity {
		c.sweep(now)
	}
	for c.recency.Len() >= c.capacity {
		c.drop(c.recency.Back())
	}
	c.index[k] = c.recency.PushFront(&lruItem{key: k, data: value, expires: now.Add(ttl)})
	return nil
}

func (c *LRUCache) Delete(ctx context.Context, namespace, key string) error {
	k, err := scopedKey(namespace, key)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.index[k]; ok {
		c.drop(el)
	}
	return nil
}

// IncrementCounter counts hits in a fixed window opened by the first hit.
func (c *LRUCache) IncrementCounter(ctx context.Context, namespace, key string, period time.Duration) (int64, error) {
	k, err := scopedKey(namespace, key)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	w, ok := c.windows[k]
	if !ok || !now.Before(w.ends) {
		for name, old := range c.windows {
			if !now.Before(old.ends) {
				delete(c.windows, name)
			}
		}
		w = &window{ends: now.Add(period)}
		c.windows[k] = w
	}
	w.hits++
	return w.hits, nil
}

func (c *LRUCache) Ping(ctx context.Context) error { return nil }

// Close empties the cache, counters included.
func (c *LRUCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
	return nil
}

// Len returns the number of cached entries, expired ones included until swept.
func (c *LRUCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recency.Len()
}

// sweep drops every expired entry. Callers hold mu.
func (c *LRUCache) sweep(now time.Time) {
	for el := c.recency.Back(); el != nil; {
		prev := el.Prev()
		if !now.Before(el.Value.(*lruItem).expires) {
			c.drop(el)
		}
		el = prev
	}
}

func (c *LRUCache) drop(el *list.Element) {
	c.recency.Remove(el)
	delete(c.index, el.Value.(*lruItem).key)
}
