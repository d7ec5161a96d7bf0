package cache

import "time"

// CacheService is a process-local key/value cache for short-lived derived data
// such as dashboard aggregates. Values are returned as stored.
type CacheService interface {
	Get(key string) (any, bool)
	// Set stores value for ttl. A zero ttl uses the backend default.
	Set(key string, value any, ttl time.Duration)
	Delete(key string)
}
