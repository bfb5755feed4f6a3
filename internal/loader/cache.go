package loader

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"

	"github.com/tacogips/modelres/internal/content"
	"github.com/tacogips/modelres/internal/debug"
)

var (
	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modelres_loader_cache_lookups_total",
		Help: "Model cache lookups by result",
	}, []string{"result"})

	cacheLoads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "modelres_loader_cache_loads_total",
		Help: "Models loaded to populate the cache",
	})
)

// maxSharedRetries bounds how often a caller restarts a shared load that
// failed with another caller's cancellation.
const maxSharedRetries = 2

// Cache adds process-wide caching to a Reader.
//
// Thread Safety:
//
//	Cache is safe for concurrent use. Concurrent loads of the same location
//	are coalesced; population is idempotent, so a location evicted by
//	Forget and loaded again simply repeats the work.
type Cache struct {
	reader Reader

	mu      sync.RWMutex
	entries map[string]*Model
	flight  singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCache creates a cache around reader.
func NewCache(reader Reader) *Cache {
	return &Cache{
		reader:  reader,
		entries: make(map[string]*Model),
	}
}

var (
	sharedOnce  sync.Once
	sharedCache *Cache
)

// Shared returns the process-wide OBJ loader cache.
func Shared() *Cache {
	sharedOnce.Do(func() {
		sharedCache = NewCache(NewObjLoader())
	})
	return sharedCache
}

// Load reads h without consulting or filling the cache.
func (c *Cache) Load(ctx context.Context, h content.Handle) (*Model, error) {
	return c.reader.Load(ctx, h)
}

// LoadCached returns the cached model for h.Key(), loading it on a miss.
// Errors are not cached. A caller that gives up while a load is shared
// stops waiting without cancelling the load for the others.
func (c *Cache) LoadCached(ctx context.Context, h content.Handle) (*Model, error) {
	key := h.Key()

	c.mu.RLock()
	m, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		c.hits.Add(1)
		cacheLookups.WithLabelValues("hit").Inc()
		return m, nil
	}
	c.misses.Add(1)
	cacheLookups.WithLabelValues("miss").Inc()

	for attempt := 0; ; attempt++ {
		// The shared load must not inherit one caller's cancellation: the
		// others joined it with live contexts of their own.
		ch := c.flight.DoChan(key, func() (interface{}, error) {
			m, err := c.reader.Load(context.WithoutCancel(ctx), h)
			if err != nil {
				return nil, err
			}
			cacheLoads.Inc()
			c.mu.Lock()
			c.entries[key] = m
			c.mu.Unlock()
			return m, nil
		})

		var res singleflight.Result
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res = <-ch:
		}

		if res.Err != nil {
			if errors.Is(res.Err, context.Canceled) && ctx.Err() == nil && attempt < maxSharedRetries {
				debug.Debug("[cache] Retrying load of %s cancelled elsewhere", key)
				continue
			}
			return nil, res.Err
		}
		if res.Shared {
			debug.Debug("[cache] Shared in-flight load of %s", key)
		}
		return res.Val.(*Model), nil
	}
}

// Forget drops the cached model for key.
func (c *Cache) Forget(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len returns the number of cached models.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns the hit and miss counts.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
