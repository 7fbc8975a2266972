// Package cache holds the Redis-backed sector snapshot cache. Sector rows
// change slowly intraday, so the review surfaces share one cached scrape
// instead of hitting the aggregator on every request.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/hsliang/redboard/internal/metrics"
	"github.com/hsliang/redboard/internal/source"
)

const sectorKey = "redboard:sector:rows"

// SectorCache stores raw sector table rows in Redis with a TTL.
type SectorCache struct {
	rdb     redis.Cmdable
	ttl     time.Duration
	metrics *metrics.Registry
	log     zerolog.Logger
}

// NewSectorCache builds a cache over a Redis connection. A nil metrics
// registry disables hit/miss counting.
func NewSectorCache(rdb redis.Cmdable, ttl time.Duration, reg *metrics.Registry, log zerolog.Logger) *SectorCache {
	return &SectorCache{rdb: rdb, ttl: ttl, metrics: reg, log: log}
}

// Get returns the cached rows, or ok=false on a miss. Redis errors count
// as misses; the caller falls through to the live source.
func (c *SectorCache) Get(ctx context.Context) ([][]string, bool) {
	data, err := c.rdb.Get(ctx, sectorKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn().Err(err).Msg("sector cache read failed")
		}
		c.miss()
		return nil, false
	}

	var rows [][]string
	if err := json.Unmarshal(data, &rows); err != nil {
		c.log.Warn().Err(err).Msg("sector cache held invalid payload")
		c.miss()
		return nil, false
	}
	c.hit()
	return rows, true
}

// Set stores rows under the cache TTL. Failures are logged and swallowed.
func (c *SectorCache) Set(ctx context.Context, rows [][]string) {
	data, err := json.Marshal(rows)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, sectorKey, data, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Msg("sector cache write failed")
	}
}

func (c *SectorCache) hit() {
	if c.metrics != nil {
		c.metrics.CacheHits.Inc()
	}
}

func (c *SectorCache) miss() {
	if c.metrics != nil {
		c.metrics.CacheMisses.Inc()
	}
}

// cachedSource wraps a row source, serving SectorRows from the cache. All
// other calls pass through untouched.
type cachedSource struct {
	source.RowSource
	cache *SectorCache
}

// WrapSource layers the sector cache over a row source. A nil cache returns
// the source unchanged.
func WrapSource(src source.RowSource, cache *SectorCache) source.RowSource {
	if cache == nil {
		return src
	}
	return &cachedSource{RowSource: src, cache: cache}
}

func (s *cachedSource) SectorRows(ctx context.Context) ([][]string, error) {
	if rows, ok := s.cache.Get(ctx); ok {
		return rows, nil
	}
	rows, err := s.RowSource.SectorRows(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, rows)
	return rows, nil
}
