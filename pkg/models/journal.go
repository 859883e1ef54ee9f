package models

import "time"

// Mutation outcomes recorded in the journal.
const (
	OutcomeReconciled = "reconciled"
	OutcomeRolledBack = "rolled_back"
)

// MutationRecord is one optimistic mutation attempt.
type MutationRecord struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Key       string    `json:"key,omitempty"`
	Outcome   string    `json:"outcome"`
	Error     string    `json:"error,omitempty"`
	LatencyMs int64     `json:"latency_ms"`
	CreatedAt time.Time `json:"created_at"`
}

// JournalConfig controls the mutation journal.
type JournalConfig struct {
	Enabled       bool     `yaml:"enabled"`
	DBPath        string   `yaml:"db_path"`
	RetentionDays int      `yaml:"retention_days"`
	MaxErrorSize  int      `yaml:"max_error_size"`
	Exclude       []string `yaml:"exclude"`
}

// JournalQueryOpts specifies filters for querying the journal.
type JournalQueryOpts struct {
	ID      string
	Name    string
	Key     string
	Outcome string
	Since   time.Time
	Limit   int
}

// JournalStat holds attempt counts for a mutation/outcome/day combination.
type JournalStat struct {
	Name    string `json:"name"`
	Outcome string `json:"outcome"`
	Day     string `json:"day"`
	Count   int    `json:"count"`
}
