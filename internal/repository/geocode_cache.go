package repository

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shiva/moveops/internal/model"
)

// GeocodeCache keeps geocoded addresses in Redis. Addresses rarely move, so
// entries live for a long TTL and a miss simply falls through to the provider.
type GeocodeCache struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewGeocodeCache creates a new geocode cache.
func NewGeocodeCache(redis *redis.Client, ttl time.Duration) *GeocodeCache {
	return &GeocodeCache{redis: redis, ttl: ttl}
}

const redisGeocodeKeyPrefix = "geocode:"

// geocodeKey normalises an address into a fixed-length Redis key.
func geocodeKey(address string) string {
	norm := strings.Join(strings.Fields(strings.ToLower(address)), " ")
	sum := sha1.Sum([]byte(norm))
	return redisGeocodeKeyPrefix + hex.EncodeToString(sum[:])
}

// Get returns the cached place for an address, or false on a miss.
func (c *GeocodeCache) Get(ctx context.Context, address string) (*model.Place, bool) {
	raw, err := c.redis.Get(ctx, geocodeKey(address)).Bytes()
	if err != nil {
		return nil, false
	}
	var p model.Place
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, false
	}
	return &p, true
}

// Put caches a place (fire-and-forget).
func (c *GeocodeCache) Put(ctx context.Context, address string, p *model.Place) {
	payload, err := json.Marshal(p)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, geocodeKey(address), payload, c.ttl).Err()
}
