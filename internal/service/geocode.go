package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/shiva/moveops/internal/model"
)

// PlaceCache stores geocoded addresses.
type PlaceCache interface {
	Get(ctx context.Context, address string) (*model.Place, bool)
	Put(ctx context.Context, address string, p *model.Place)
}

// CachedGeocoder puts a PlaceCache in front of a Geocoder. Routes are not
// cached: they depend on both ends and are cheap relative to geocoding.
type CachedGeocoder struct {
	next  Geocoder
	cache PlaceCache
	log   zerolog.Logger
}

// NewCachedGeocoder wraps next with cache.
func NewCachedGeocoder(next Geocoder, cache PlaceCache, log zerolog.Logger) *CachedGeocoder {
	return &CachedGeocoder{next: next, cache: cache, log: log}
}

// Geocode returns the cached place for address or asks the provider.
func (g *CachedGeocoder) Geocode(ctx context.Context, address string) (*model.Place, error) {
	if p, ok := g.cache.Get(ctx, address); ok {
		g.log.Debug().Str("address", address).Msg("geocode cache hit")
		return p, nil
	}
	p, err := g.next.Geocode(ctx, address)
	if err != nil {
		return nil, err
	}
	g.cache.Put(ctx, address, p)
	return p, nil
}

// Route delegates to the provider.
func (g *CachedGeocoder) Route(ctx context.Context, origin, destination model.Location) (*model.Route, error) {
	return g.next.Route(ctx, origin, destination)
}
