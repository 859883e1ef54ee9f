package models

import "encoding/json"

// Entry is the persisted form of one cached value.
// WrittenAt and TTL are milliseconds; the entry is valid while now-WrittenAt <= TTL.
type Entry struct {
	Value     json.RawMessage `json:"value"`
	WrittenAt int64           `json:"writtenAt"`
	TTL       int64           `json:"ttl"`
}

// Expired reports whether the entry is past its TTL at nowMs.
func (e Entry) Expired(nowMs int64) bool {
	return nowMs-e.WrittenAt > e.TTL
}

// CacheStats reports cache contents and read outcomes.
type CacheStats struct {
	Entries int64 `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Expired int64 `json:"expired"`
	Corrupt int64 `json:"corrupt"`
}
