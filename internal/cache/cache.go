// Package cache fronts the Store Gateway's stopsInBox query with a
// Redis-backed cache, keyed by a rounded bounding box. It is a pure
// latency optimization: unavailability is logged and falls through to
// the store, never surfaced as a request error.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/transitway/transitd/internal/models"
)

const ttl = 30 * time.Second

type StopBoxCache struct {
	client *redis.Client
	prefix string
}

// New parses a redis:// URL and returns a cache handle. It does not ping
// the server; failures surface lazily on first Get/Set and are treated
// as cache misses, never fatal.
func New(redisURL string) (*StopBoxCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &StopBoxCache{client: redis.NewClient(opts), prefix: "transitd:stopbox:"}, nil
}

func (c *StopBoxCache) Close() error {
	return c.client.Close()
}

// key rounds the box to a coarse grid so that nearby queries (repeated
// map pans, repeated journey requests from the same neighborhood) share
// a cache entry.
func (c *StopBoxCache) key(minLat, minLon, maxLat, maxLon float64) string {
	round := func(v float64) float64 { return math.Round(v*1000) / 1000 }
	return fmt.Sprintf("%s%.3f,%.3f,%.3f,%.3f", c.prefix, round(minLat), round(minLon), round(maxLat), round(maxLon))
}

// Get returns cached stops for the box, and whether there was a hit.
// Any Redis error is treated as a miss.
func (c *StopBoxCache) Get(ctx context.Context, minLat, minLon, maxLat, maxLon float64) ([]models.Stop, bool) {
	data, err := c.client.Get(ctx, c.key(minLat, minLon, maxLat, maxLon)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("stopbox cache get failed: %v", err)
		}
		return nil, false
	}
	var stops []models.Stop
	if err := json.Unmarshal(data, &stops); err != nil {
		log.Printf("stopbox cache decode failed: %v", err)
		return nil, false
	}
	return stops, true
}

// Set populates the cache. Errors are logged, never returned, so callers
// never need to branch on cache-write failure.
func (c *StopBoxCache) Set(ctx context.Context, minLat, minLon, maxLat, maxLon float64, stops []models.Stop) {
	data, err := json.Marshal(stops)
	if err != nil {
		log.Printf("stopbox cache encode failed: %v", err)
		return
	}
	if err := c.client.Set(ctx, c.key(minLat, minLon, maxLat, maxLon), data, ttl).Err(); err != nil {
		log.Printf("stopbox cache set failed: %v", err)
	}
}
