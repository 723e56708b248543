package geo

import (
	"context"
	"time"

	"gatecheck/internal/cache"
)

// geoAnswer caches a lookup outcome including "unknown", so an IP missing
// from the databases doesn't get re-resolved on every request.
type countryAnswer struct {
	code  string
	known bool
}

type asnAnswer struct {
	asn   uint
	known bool
}

// Cached wraps a Resolver with the ephemeral cache. Geolocation changes
// rarely, so entries live much longer than access-relevant data.
type Cached struct {
	inner Resolver
	cache *cache.Cache
	ttl   time.Duration
}

func NewCached(inner Resolver, c *cache.Cache, ttl time.Duration) *Cached {
	return &Cached{inner: inner, cache: c, ttl: ttl}
}

func (c *Cached) LookupCountry(ctx context.Context, ip string) (string, bool) {
	key := cache.Key("geoip", ip)
	if v, ok := c.cache.Get(key); ok {
		a := v.(countryAnswer)
		return a.code, a.known
	}
	code, known := c.inner.LookupCountry(ctx, ip)
	c.cache.Set(key, countryAnswer{code: code, known: known}, c.ttl)
	return code, known
}

func (c *Cached) LookupASN(ctx context.Context, ip string) (uint, bool) {
	key := cache.Key("asn", ip)
	if v, ok := c.cache.Get(key); ok {
		a := v.(asnAnswer)
		return a.asn, a.known
	}
	asn, known := c.inner.LookupASN(ctx, ip)
	c.cache.Set(key, asnAnswer{asn: asn, known: known}, c.ttl)
	return asn, known
}
