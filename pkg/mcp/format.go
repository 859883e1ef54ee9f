package mcp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/iopps/iopps-sync/pkg/cache"
	"github.com/iopps/iopps-sync/pkg/models"
)

// formatCacheStats formats cache stats as text.
func formatCacheStats(stats models.CacheStats) string {
	total := stats.Hits + stats.Misses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(stats.Hits) / float64(total) * 100
	}
	return fmt.Sprintf("Cache Statistics\n"+
		"  Entries:  %d\n"+
		"  Hits:     %d\n"+
		"  Misses:   %d\n"+
		"  Hit Rate: %.1f%%\n"+
		"  Expired:  %d\n"+
		"  Corrupt:  %d\n",
		stats.Entries, stats.Hits, stats.Misses, hitRate, stats.Expired, stats.Corrupt)
}

func formatKeys(keys []cache.Key) string {
	if len(keys) == 0 {
		return "No cached keys."
	}
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// FormatValue pretty-prints a cached JSON value.
func FormatValue(raw json.RawMessage) string {
	var b bytes.Buffer
	if err := json.Indent(&b, raw, "", "  "); err != nil {
		return string(raw)
	}
	return b.String()
}

func formatCleared(n int) string {
	if n == 1 {
		return "Removed 1 expired cache entry."
	}
	return fmt.Sprintf("Removed %d expired cache entries.", n)
}

// FormatMutations formats journal records as a text table.
func FormatMutations(recs []models.MutationRecord) string {
	if len(recs) == 0 {
		return "No mutation attempts found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-20s %-28s %-30s %-12s %8s  %s\n",
		"Time", "Name", "Key", "Outcome", "Latency", "Error")
	b.WriteString(strings.Repeat("-", 110) + "\n")
	for _, r := range recs {
		key := r.Key
		if len(key) > 30 {
			key = key[:27] + "..."
		}
		fmt.Fprintf(&b, "%-20s %-28s %-30s %-12s %6dms  %s\n",
			r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			r.Name, key, r.Outcome, r.LatencyMs, r.Error)
	}
	return b.String()
}

// FormatJournalStats formats journal stats as a text table.
func FormatJournalStats(stats []models.JournalStat) string {
	if len(stats) == 0 {
		return "No mutation attempts recorded."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-12s %-28s %-12s %8s\n", "Day", "Name", "Outcome", "Count")
	b.WriteString(strings.Repeat("-", 63) + "\n")
	for _, s := range stats {
		fmt.Fprintf(&b, "%-12s %-28s %-12s %8d\n", s.Day, s.Name, s.Outcome, s.Count)
	}
	return b.String()
}
