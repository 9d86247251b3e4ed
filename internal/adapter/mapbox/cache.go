package mapbox

import (
	"container/list"
	"context"
	"strings"
	"sync"

	"github.com/couchcryptid/od-flow-service/internal/domain"
	"github.com/couchcryptid/od-flow-service/internal/observability"
)

// CachedGeocoder wraps a Geocoder with an in-memory LRU cache keyed by zone.
// The same zone appears in many OD pairs, so most lookups after warm-up hit.
type CachedGeocoder struct {
	inner   domain.Geocoder
	cache   *zoneCache
	metrics *observability.Metrics
}

// NewCachedGeocoder creates a cache decorator around a geocoder.
func NewCachedGeocoder(inner domain.Geocoder, maxEntries int, metrics *observability.Metrics) *CachedGeocoder {
	return &CachedGeocoder{
		inner:   inner,
		cache:   newZoneCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedGeocoder) ForwardGeocode(ctx context.Context, name, state string) (domain.GeocodingResult, error) {
	key := cacheKey(name, state)
	if result, ok := c.cache.get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues("hit").Inc()
		return result, nil
	}
	c.metrics.GeocodeCache.WithLabelValues("miss").Inc()

	result, err := c.inner.ForwardGeocode(ctx, name, state)
	if err != nil {
		return result, err
	}
	// Only cache non-empty results so "not found" responses can be retried.
	if result.FormattedAddress != "" {
		c.cache.put(key, result)
	}
	return result, nil
}

func cacheKey(name, state string) string {
	return strings.ToLower(strings.TrimSpace(name)) + "|" + strings.ToLower(strings.TrimSpace(state))
}

// zoneCache is a mutex-guarded LRU of geocoded zones. The front of order is
// the most recently used entry.
type zoneCache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	byKey    map[string]*list.Element
}

type zoneEntry struct {
	key    string
	result domain.GeocodingResult
}

func newZoneCache(capacity int) *zoneCache {
	return &zoneCache{
		capacity: max(capacity, 1),
		order:    list.New(),
		byKey:    make(map[string]*list.Element),
	}
}

func (c *zoneCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *zoneCache) get(key string) (domain.GeocodingResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.byKey[key]
	if !ok {
		return domain.GeocodingResult{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*zoneEntry).result, true
}

func (c *zoneCache) put(key string, result domain.GeocodingResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.byKey[key]; ok {
		el.Value.(*zoneEntry).result = result
		c.order.MoveToFront(el)
		return
	}

	c.byKey[key] = c.order.PushFront(&zoneEntry{key: key, result: result})
	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.byKey, oldest.Value.(*zoneEntry).key)
	}
}
