package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/iopps/iopps-sync/pkg/cache"
	"github.com/iopps/iopps-sync/pkg/models"
)

const defaultSearchLimit = 50

type tool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema schema `json:"inputSchema"`

	call func(ctx context.Context, s *Server, args json.RawMessage) (toolResult, error)
}

type schema struct {
	Type       string              `json:"type"`
	Required   []string            `json:"required,omitempty"`
	Properties map[string]property `json:"properties"`
}

type property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

func object(required []string, props map[string]property) schema {
	if props == nil {
		props = map[string]property{}
	}
	return schema{Type: "object", Required: required, Properties: props}
}

var toolset = []*tool{
	{
		Name:        "cache_stats",
		Description: "Show cache statistics (entries, hits, misses, expirations, corrupt records).",
		InputSchema: object(nil, nil),
		call:        cacheStats,
	},
	{
		Name:        "cache_keys",
		Description: "List cached keys, optionally only those starting with a kind such as \"job:\".",
		InputSchema: object(nil, map[string]property{
			"starts_with": {Type: "string", Description: "Only list keys with this prefix (optional)"},
		}),
		call: cacheKeys,
	},
	{
		Name:        "cache_get",
		Description: "Show the cached JSON value for a key, e.g. \"jobs\" or \"notifications:<userId>\".",
		InputSchema: object([]string{"key"}, map[string]property{
			"key": {Type: "string", Description: "Unprefixed cache key"},
		}),
		call: cacheGet,
	},
	{
		Name:        "cache_clear",
		Description: "Clear the cache. With expired_only, only expired and corrupt records are removed.",
		InputSchema: object(nil, map[string]property{
			"expired_only": {Type: "boolean", Description: "Only remove expired records (optional)"},
		}),
		call: cacheClear,
	},
	{
		Name:        "journal_search",
		Description: "Search recorded optimistic mutation attempts with optional filters.",
		InputSchema: object(nil, map[string]property{
			"name":    {Type: "string", Description: "Filter by mutation name, e.g. send_message (optional)"},
			"outcome": {Type: "string", Description: "Filter by outcome: reconciled or rolled_back (optional)"},
			"key":     {Type: "string", Description: "Filter by cache key (optional)"},
			"since":   {Type: "string", Description: "Start date in YYYY-MM-DD format (optional)"},
			"limit":   {Type: "integer", Description: "Maximum records to return, default 50 (optional)"},
		}),
		call: journalSearch,
	},
	{
		Name:        "journal_stats",
		Description: "Show mutation attempt counts by name, outcome and day.",
		InputSchema: object(nil, nil),
		call:        journalStats,
	},
}

func decodeArgs[T any](raw json.RawMessage) (T, error) {
	var args T
	if len(raw) == 0 {
		return args, nil
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return args, fmt.Errorf("%w: %v", errInvalidArgs, err)
	}
	return args, nil
}

func cacheStats(ctx context.Context, s *Server, _ json.RawMessage) (toolResult, error) {
	stats, err := s.cache.Stats(ctx)
	if err != nil {
		return toolResult{}, fmt.Errorf("read cache stats: %w", err)
	}
	return typed(formatCacheStats(stats), stats), nil
}

type keyList struct {
	Keys []string `json:"keys"`
}

func cacheKeys(ctx context.Context, s *Server, raw json.RawMessage) (toolResult, error) {
	args, err := decodeArgs[struct {
		StartsWith string `json:"starts_with"`
	}](raw)
	if err != nil {
		return toolResult{}, err
	}
	keys, err := s.cache.Keys(ctx)
	if err != nil {
		return toolResult{}, fmt.Errorf("list cache keys: %w", err)
	}

	out := keyList{Keys: []string{}}
	var matched []cache.Key
	for _, k := range keys {
		if strings.HasPrefix(k.String(), args.StartsWith) {
			matched = append(matched, k)
			out.Keys = append(out.Keys, k.String())
		}
	}
	return typed(formatKeys(matched), out), nil
}

// cachedValue is the structured output of cache_get.
type cachedValue struct {
	Key   string          `json:"key"`
	Found bool            `json:"found"`
	Value json.RawMessage `json:"value,omitempty"`
}

func cacheGet(ctx context.Context, s *Server, raw json.RawMessage) (toolResult, error) {
	args, err := decodeArgs[struct {
		Key string `json:"key"`
	}](raw)
	if err != nil {
		return toolResult{}, err
	}
	if args.Key == "" {
		return toolResult{}, fmt.Errorf("%w: key is required", errInvalidArgs)
	}
	key, err := cache.ParseKey(args.Key)
	if err != nil {
		return toolResult{}, fmt.Errorf("%w: %v", errInvalidArgs, err)
	}

	v, ok := s.cache.Lookup(ctx, key)
	out := cachedValue{Key: key.String(), Found: ok, Value: v}
	if !ok {
		return typed("No valid entry for "+key.String()+".", out), nil
	}
	return typed(FormatValue(v), out), nil
}

type clearResult struct {
	ExpiredOnly bool `json:"expiredOnly"`
	Removed     int  `json:"removed,omitempty"`
}

func cacheClear(ctx context.Context, s *Server, raw json.RawMessage) (toolResult, error) {
	args, err := decodeArgs[struct {
		ExpiredOnly bool `json:"expired_only"`
	}](raw)
	if err != nil {
		return toolResult{}, err
	}
	if args.ExpiredOnly {
		n := s.cache.ClearExpired(ctx)
		return typed(formatCleared(n), clearResult{ExpiredOnly: true, Removed: n}), nil
	}
	s.cache.ClearAll(ctx)
	return typed("All cache entries cleared.", clearResult{}), nil
}

type mutationList struct {
	Records []models.MutationRecord `json:"records"`
}

func journalSearch(ctx context.Context, s *Server, raw json.RawMessage) (toolResult, error) {
	if s.journal == nil {
		return toolResult{}, errJournalDisabled
	}
	args, err := decodeArgs[struct {
		Name    string `json:"name"`
		Outcome string `json:"outcome"`
		Key     string `json:"key"`
		Since   string `json:"since"`
		Limit   int    `json:"limit"`
	}](raw)
	if err != nil {
		return toolResult{}, err
	}

	opts := models.JournalQueryOpts{
		Name:    args.Name,
		Outcome: args.Outcome,
		Key:     args.Key,
		Limit:   args.Limit,
	}
	if opts.Limit <= 0 {
		opts.Limit = defaultSearchLimit
	}
	if args.Since != "" {
		t, err := time.Parse("2006-01-02", args.Since)
		if err != nil {
			return toolResult{}, fmt.Errorf("%w: since must be YYYY-MM-DD", errInvalidArgs)
		}
		opts.Since = t
	}

	recs, err := s.journal.Query(ctx, opts)
	if err != nil {
		return toolResult{}, fmt.Errorf("search journal: %w", err)
	}
	if recs == nil {
		recs = []models.MutationRecord{}
	}
	return typed(FormatMutations(recs), mutationList{Records: recs}), nil
}

type statList struct {
	Stats []models.JournalStat `json:"stats"`
}

func journalStats(ctx context.Context, s *Server, _ json.RawMessage) (toolResult, error) {
	if s.journal == nil {
		return toolResult{}, errJournalDisabled
	}
	stats, err := s.journal.Stats(ctx)
	if err != nil {
		return toolResult{}, fmt.Errorf("read journal stats: %w", err)
	}
	if stats == nil {
		stats = []models.JournalStat{}
	}
	return typed(FormatJournalStats(stats), statList{Stats: stats}), nil
}
