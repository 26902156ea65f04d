// Package geoip resolves the country behind an IP address through an
// external lookup service. The lookup is advisory: every failure mode
// collapses to "no country" so callers on the write path never block on
// or fail because of it.
package geoip

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"example.com/backoffice/services/complaints/config"
	"example.com/backoffice/services/complaints/internal/cache"
)

// lookupResponse mirrors the fields requested from the lookup service
type lookupResponse struct {
	CountryCode string `json:"countryCode"`
	Proxy       bool   `json:"proxy"`
}

// Resolver performs IP-to-country lookups
type Resolver struct {
	client   *http.Client
	baseURL  string
	cache    *cache.RedisCache
	cacheTTL time.Duration
}

// NewResolver creates a new geolocation resolver. The cache is optional
// and may be nil or disabled.
func NewResolver(cfg config.GeoIPConfig, redisCache *cache.RedisCache) *Resolver {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Resolver{
		client:   &http.Client{Timeout: timeout},
		baseURL:  cfg.BaseURL,
		cache:    redisCache,
		cacheTTL: cfg.CacheTTL,
	}
}

// ResolveCountry returns the country code for an IP address, with ok
// false when no usable answer was obtained. A single attempt is made;
// network errors, timeouts, malformed payloads, proxy-flagged sources
// and codeless responses all yield ("", false).
func (r *Resolver) ResolveCountry(ctx context.Context, ip string) (string, bool) {
	if ip == "" {
		return "", false
	}

	if country, ok := r.cachedCountry(ctx, ip); ok {
		return country, true
	}

	url := BuildLookupURL(r.baseURL, ip)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		log.Warn().Err(err).Str("ip", ip).Msg("Failed to build geolocation request")
		return "", false
	}

	resp, err := r.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("ip", ip).Msg("Geolocation lookup failed")
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Warn().Int("status", resp.StatusCode).Str("ip", ip).Msg("Geolocation lookup returned non-OK status")
		return "", false
	}

	var payload lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		log.Warn().Err(err).Str("ip", ip).Msg("Failed to decode geolocation response")
		return "", false
	}

	if payload.CountryCode == "" || payload.Proxy {
		log.Debug().Str("ip", ip).Bool("proxy", payload.Proxy).Msg("Geolocation response unusable")
		return "", false
	}

	log.Info().Str("ip", ip).Str("country", payload.CountryCode).Msg("Resolved country from IP")
	r.storeCountry(ctx, ip, payload.CountryCode)

	return payload.CountryCode, true
}

// cachedCountry checks the cache for a previous positive lookup
func (r *Resolver) cachedCountry(ctx context.Context, ip string) (string, bool) {
	if !r.cache.Enabled() {
		return "", false
	}

	var country string
	if err := r.cache.Get(ctx, cache.GeoIPCacheKey(ip), &country); err != nil {
		return "", false
	}
	if country == "" {
		return "", false
	}

	log.Debug().Str("ip", ip).Str("country", country).Msg("Geolocation cache hit")
	return country, true
}

// storeCountry caches a positive lookup, ignoring cache failures
func (r *Resolver) storeCountry(ctx context.Context, ip, country string) {
	if !r.cache.Enabled() {
		return
	}

	if err := r.cache.Set(ctx, cache.GeoIPCacheKey(ip), country, r.cacheTTL); err != nil {
		log.Debug().Err(err).Str("ip", ip).Msg("Failed to cache geolocation result")
	}
}

// BuildLookupURL builds the lookup service URL for an IP address
func BuildLookupURL(baseURL, ip string) string {
	return fmt.Sprintf("%s/%s?fields=countryCode,proxy", baseURL, ip)
}
