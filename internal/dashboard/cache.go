package dashboard

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/capstone-impacta/engagement-cli/internal/metrics"
)

// DefaultCacheTTL bounds how long a loaded dataset is reused.
const DefaultCacheTTL = 600 * time.Second

// datasetKey is the single cache key; the whole dataset is one entry.
const datasetKey = "dataset"

// CachedSource reuses a loaded Dataset until its TTL expires. Hits do not
// extend the TTL and nothing invalidates an entry early. Concurrent misses
// share one load. Failed loads are not cached.
type CachedSource struct {
	src   Source
	cache *ttlcache.Cache[string, *Dataset]
	group singleflight.Group
}

// NewCachedSource wraps src. A non-positive ttl uses DefaultCacheTTL.
func NewCachedSource(src Source, ttl time.Duration) *CachedSource {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedSource{
		src: src,
		cache: ttlcache.New[string, *Dataset](
			ttlcache.WithTTL[string, *Dataset](ttl),
			ttlcache.WithDisableTouchOnHit[string, *Dataset](),
		),
	}
}

func (c *CachedSource) Load(ctx context.Context) (*Dataset, error) {
	if item := c.cache.Get(datasetKey); item != nil {
		metrics.CacheRequests.WithLabelValues("hit").Inc()
		return item.Value(), nil
	}
	metrics.CacheRequests.WithLabelValues("miss").Inc()

	// The shared load outlives any single caller's cancellation.
	loadCtx := context.WithoutCancel(ctx)
	v, err, _ := c.group.Do(datasetKey, func() (any, error) {
		ds, err := c.src.Load(loadCtx)
		if err != nil {
			return nil, err
		}
		c.cache.Set(datasetKey, ds, ttlcache.DefaultTTL)
		zap.L().Debug("dashboard dataset loaded",
			zap.Int("faculty_rows", len(ds.Faculty)),
			zap.Int("network_rows", len(ds.Network)),
		)
		return ds, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Dataset), nil
}
