package config

import "time"

// CacheConfig defines settings for the response cache on public property
// reads.  Caching is disabled when Enabled is false or no Redis client is
// available.  Only successful responses of the listed Methods are stored.
type CacheConfig struct {
	Enabled      bool
	Methods      map[string]bool
	TTL          time.Duration
	KeyStrategy  string
	Prefix       string
	MaxBodyBytes int
	// InvalidateDelay is how long after a calendar change the property
	// view is dropped a second time, catching reads that were in flight.
	InvalidateDelay time.Duration
}

// LoadCacheConfig reads CACHE_* variables.
func LoadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:      envBool("CACHE_ENABLED", true),
		Methods:      envList("CACHE_METHODS", "GET"),
		TTL:          envDur("CACHE_TTL", 30*time.Second),
		KeyStrategy:  envStr("CACHE_KEY_STRATEGY", "route_query"),
		Prefix:       envStr("CACHE_PREFIX", "cache"),
		MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),

		InvalidateDelay: envDur("CACHE_INVALIDATE_DELAY", time.Second),
	}
}
