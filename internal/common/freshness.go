package common

import "time"

// Freshness TTLs for cached data
const (
	FreshnessTodayBar = 1 * time.Hour   // re-fetch the trailing day of price history at most hourly
	FreshnessRealtime = 3 * time.Minute // realtime snapshots older than this no longer override the cached value
)
