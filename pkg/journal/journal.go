// Package journal records optimistic mutation attempts in SQLite so rolled
// back writes can be inspected after the fact.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/iopps/iopps-sync/pkg/models"
	"github.com/iopps/iopps-sync/pkg/optimistic"
)

// Journal writes and queries mutation records in a dedicated SQLite database.
type Journal struct {
	db      *sql.DB
	cfg     models.JournalConfig
	logger  *slog.Logger
	done    chan struct{}
	wg      sync.WaitGroup
	exclude map[string]bool
}

// New opens the journal database and creates the schema.
func New(cfg models.JournalConfig, logger *slog.Logger) (*Journal, error) {
	db, err := sql.Open("sqlite", cfg.DBPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate journal db: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	exc := make(map[string]bool)
	for _, v := range cfg.Exclude {
		exc[v] = true
	}

	j := &Journal{
		db:      db,
		cfg:     cfg,
		logger:  logger,
		done:    make(chan struct{}),
		exclude: exc,
	}

	j.wg.Add(1)
	go j.retentionLoop()

	return j, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS mutations (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		key        TEXT,
		outcome    TEXT NOT NULL,
		error      TEXT,
		latency_ms INTEGER,
		created_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_mutations_name ON mutations(name)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_mutations_created ON mutations(created_at)`)
	return err
}

// Record inserts a mutation record. Records for excluded names are dropped.
func (j *Journal) Record(ctx context.Context, rec models.MutationRecord) error {
	if j == nil || j.db == nil {
		return nil
	}
	if j.exclude[rec.Name] {
		return nil
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if j.cfg.MaxErrorSize > 0 && len(rec.Error) > j.cfg.MaxErrorSize {
		rec.Error = rec.Error[:j.cfg.MaxErrorSize]
	}

	_, err := j.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO mutations
		(id, name, key, outcome, error, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Name, rec.Key, rec.Outcome, rec.Error, rec.LatencyMs, rec.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record mutation: %w", err)
	}
	return nil
}

// Observe implements optimistic.Observer.
func (j *Journal) Observe(ctx context.Context, a optimistic.Attempt) {
	rec := models.MutationRecord{
		Name:      a.Name,
		Key:       a.Key,
		Outcome:   a.Phase.String(),
		LatencyMs: a.Latency.Milliseconds(),
		CreatedAt: a.At,
	}
	if a.Err != nil {
		rec.Error = a.Err.Error()
	}
	if err := j.Record(ctx, rec); err != nil {
		j.logger.Error("journal write error", "name", a.Name, "error", err)
	}
}

// Query returns records matching opts, newest first.
func (j *Journal) Query(ctx context.Context, opts models.JournalQueryOpts) ([]models.MutationRecord, error) {
	q := `SELECT id, name, key, outcome, error, latency_ms, created_at
		FROM mutations WHERE 1=1`
	var args []any

	if opts.ID != "" {
		q += " AND id = ?"
		args = append(args, opts.ID)
	}
	if opts.Name != "" {
		q += " AND name = ?"
		args = append(args, opts.Name)
	}
	if opts.Key != "" {
		q += " AND key = ?"
		args = append(args, opts.Key)
	}
	if opts.Outcome != "" {
		q += " AND outcome = ?"
		args = append(args, opts.Outcome)
	}
	if !opts.Since.IsZero() {
		q += " AND created_at >= ?"
		args = append(args, opts.Since.UTC())
	}

	q += " ORDER BY created_at DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	q += " LIMIT ?"
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var recs []models.MutationRecord
	for rows.Next() {
		var r models.MutationRecord
		var key, errText sql.NullString
		if err := rows.Scan(&r.ID, &r.Name, &key, &r.Outcome, &errText, &r.LatencyMs, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan journal row: %w", err)
		}
		r.Key = key.String
		r.Error = errText.String
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// Stats returns attempt counts grouped by name, outcome and day.
func (j *Journal) Stats(ctx context.Context) ([]models.JournalStat, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT name, outcome, date(created_at) as day, count(*) as cnt
		 FROM mutations GROUP BY name, outcome, day ORDER BY day DESC, name, outcome`)
	if err != nil {
		return nil, fmt.Errorf("journal stats: %w", err)
	}
	defer rows.Close()

	var stats []models.JournalStat
	for rows.Next() {
		var s models.JournalStat
		var day sql.NullString
		if err := rows.Scan(&s.Name, &s.Outcome, &day, &s.Count); err != nil {
			return nil, fmt.Errorf("scan journal stat: %w", err)
		}
		s.Day = day.String
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// Cleanup deletes records older than the configured retention period.
func (j *Journal) Cleanup(ctx context.Context) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -j.cfg.RetentionDays).UTC()
	res, err := j.db.ExecContext(ctx,
		`DELETE FROM mutations WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("journal cleanup: %w", err)
	}
	return res.RowsAffected()
}

// Close stops the retention goroutine and closes the database.
func (j *Journal) Close() error {
	close(j.done)
	j.wg.Wait()
	return j.db.Close()
}

func (j *Journal) retentionLoop() {
	defer j.wg.Done()
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			n, err := j.Cleanup(context.Background())
			if err != nil {
				j.logger.Error("journal retention error", "error", err)
				continue
			}
			if n > 0 {
				j.logger.Info("journal retention", "deleted", n)
			}
		}
	}
}
