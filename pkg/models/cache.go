package models

import "time"

// CacheEntry stores a resolved profile under its content key.
type CacheEntry struct {
	Key       string        `json:"key"`
	Payload   Profile       `json:"payload"`
	CreatedAt time.Time     `json:"created_at"`
	TTL       time.Duration `json:"ttl"`
}

// Expired reports whether the entry is past its time-to-live at now.
func (e CacheEntry) Expired(now time.Time) bool {
	return now.Sub(e.CreatedAt) > e.TTL
}

// CacheStats reports cache performance metrics.
type CacheStats struct {
	Entries int64 `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}
