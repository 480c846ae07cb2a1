package cache

// Stats is a point-in-time view of a store's counters.
type Stats struct {
	Hits           int64   `json:"hits"`
	Misses         int64   `json:"misses"`
	Evictions      int64   `json:"evictions"`
	Entries        int     `json:"entries"`
	SizeBytes      int64   `json:"size_bytes"`
	MaxSizeBytes   int64   `json:"max_size_bytes"`
	HitRatePercent float64 `json:"hit_rate_percent"`
}

// hitRate returns hits / (hits + misses) * 100, or 0 before any lookup.
func hitRate(hits, misses int64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}
