package cache

import (
	"fmt"
	"time"
)

// TTL tiers. Callers pick one by how volatile the data is; the cache itself
// accepts any duration.
const (
	// TTLShort suits fast-moving collections such as conversations and notifications.
	TTLShort = time.Minute
	// TTLMedium is the default, for listings such as open jobs.
	TTLMedium = 5 * time.Minute
	TTLLong   = 15 * time.Minute
	// TTLVeryLong suits near-static reference content.
	TTLVeryLong = time.Hour

	// DefaultTTL applies when no tier is named.
	DefaultTTL = TTLMedium
)

// ParseTTL accepts a tier name (short, medium, long, very-long) or a Go duration.
func ParseTTL(s string) (time.Duration, error) {
	switch s {
	case "short":
		return TTLShort, nil
	case "":
		return DefaultTTL, nil
	case "medium":
		return TTLMedium, nil
	case "long":
		return TTLLong, nil
	case "very-long", "verylong":
		return TTLVeryLong, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("parse ttl %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("parse ttl %q: must be positive", s)
	}
	return d, nil
}
