package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

const noExpiry = 7 * 24 * time.Hour

type memEntry struct {
	key      string
	data     []byte
	expireAt time.Time
	lock     bool
}

// MemoryCache is the in-process Service used when Redis is not configured.
// Reads and writes move a key to the front; the back is evicted past MaxSize.
type MemoryCache struct {
	mu      sync.Mutex
	items   map[string]*list.Element
	order   *list.List
	maxSize int
	now     func() time.Time

	stop      chan struct{}
	closeOnce sync.Once
}

func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{MaxSize: 1000, CleanupInterval: 5 * time.Minute}
	for _, opt := range opts {
		opt(cfg)
	}
	mc := &MemoryCache{
		items:   make(map[string]*list.Element),
		order:   list.New(),
		maxSize: cfg.MaxSize,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go mc.sweep(cfg.CleanupInterval)
	return mc
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	if expiration <= 0 {
		expiration = noExpiry
	}
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.put(&memEntry{key: key, data: data, expireAt: mc.now().Add(expiration)})
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	mc.mu.Lock()
	e := mc.live(key)
	if e == nil {
		mc.mu.Unlock()
		return ErrCacheMiss
	}
	mc.order.MoveToFront(mc.items[key])
	data := e.data
	mc.mu.Unlock()
	return decode(data, dest)
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for _, k := range keys {
		mc.remove(k)
	}
	return nil
}

// TryLock succeeds when key is absent or expired.
func (mc *MemoryCache) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if mc.live(key) != nil {
		return false, nil
	}
	mc.put(&memEntry{key: key, data: []byte("locked"), expireAt: mc.now().Add(ttl), lock: true})
	return true, nil
}

// Unlock leaves keys written by Set alone.
func (mc *MemoryCache) Unlock(_ context.Context, key string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if e := mc.live(key); e != nil && e.lock {
		mc.remove(key)
	}
	return nil
}

func (mc *MemoryCache) Close() error {
	mc.closeOnce.Do(func() { close(mc.stop) })
	return nil
}

// live returns the unexpired entry for key, dropping it if it has expired.
func (mc *MemoryCache) live(key string) *memEntry {
	el, ok := mc.items[key]
	if !ok {
		return nil
	}
	e := el.Value.(*memEntry)
	if mc.now().After(e.expireAt) {
		mc.remove(key)
		return nil
	}
	return e
}

func (mc *MemoryCache) put(e *memEntry) {
	if el, ok := mc.items[e.key]; ok {
		el.Value = e
		mc.order.MoveToFront(el)
		return
	}
	if mc.maxSize > 0 && len(mc.items) >= mc.maxSize {
		if back := mc.order.Back(); back != nil {
			mc.remove(back.Value.(*memEntry).key)
		}
	}
	mc.items[e.key] = mc.order.PushFront(e)
}

func (mc *MemoryCache) remove(key string) {
	if el, ok := mc.items[key]; ok {
		mc.order.Remove(el)
		delete(mc.items, key)
	}
}

func (mc *MemoryCache) sweep(every time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-mc.stop:
			return
		case <-t.C:
		}
		mc.mu.Lock()
		now := mc.now()
		for el := mc.order.Back(); el != nil; {
			prev := el.Prev()
			if e := el.Value.(*memEntry); now.After(e.expireAt) {
				mc.remove(e.key)
			}
			el = prev
		}
		mc.mu.Unlock()
	}
}
