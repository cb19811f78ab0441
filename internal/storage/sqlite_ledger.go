package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Fatnaoui/crawler-project/pkg/logging"

	_ "modernc.org/sqlite"
)

// DefaultLedgerName is the ledger file created inside the output folder
const DefaultLedgerName = "ledger.db"

const defaultRunLimit = 50

// Fixed-width so timestamps sort as text
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteLedger is the Ledger backed by a single SQLite file
type SQLiteLedger struct {
	db      *sql.DB
	path    string
	metrics MetricsCollector
	logger  zerolog.Logger
}

// OpenSQLiteLedger opens or creates the ledger at path. metrics may be nil.
func OpenSQLiteLedger(path string, metrics MetricsCollector) (*SQLiteLedger, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	// SQLite has a single writer; one connection also keeps :memory: stable
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	l := &SQLiteLedger{
		db:      db,
		path:    path,
		metrics: metrics,
		logger:  logging.GetLogger("ledger"),
	}
	if err := l.ensureSchemaExists(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize ledger schema: %w", err)
	}

	l.logger.Debug().Str("path", path).Msg("Ledger opened")
	return l, nil
}

func (l *SQLiteLedger) ensureSchemaExists() error {
	var name string
	err := l.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='runs'").Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		_, err = l.db.Exec(schema)
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to check schema: %w", err)
	}
	return nil
}

// Path returns the ledger file path
func (l *SQLiteLedger) Path() string {
	return l.path
}

func (l *SQLiteLedger) record(op string, start time.Time, rows int, err error) {
	if l.metrics == nil {
		return
	}
	l.metrics.RecordMetric(LedgerMetrics{
		OperationType: op,
		Duration:      time.Since(start).Nanoseconds(),
		Success:       err == nil,
		Rows:          rows,
		Error:         err,
	})
}

// CreateRun inserts run. A missing ID, start time or status is filled in.
func (l *SQLiteLedger) CreateRun(ctx context.Context, run *Run) (err error) {
	start := time.Now()
	defer func() { l.record("create_run", start, 1, err) }()

	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = RunStatusRunning
	}

	_, err = l.db.ExecContext(ctx, `INSERT INTO runs
		(run_id, input_dir, output_dir, tasks, workers, status, documents_read, documents_kept, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.InputDir, run.OutputDir, run.Tasks, run.Workers, run.Status,
		run.DocumentsRead, run.DocumentsKept, formatTime(run.StartedAt))
	if err != nil {
		return fmt.Errorf("failed to create run %s: %w", run.ID, err)
	}
	return nil
}

// FinishRun stores the final status and document counts of run
func (l *SQLiteLedger) FinishRun(ctx context.Context, run *Run) (err error) {
	start := time.Now()
	defer func() { l.record("finish_run", start, 1, err) }()

	if run.FinishedAt == nil {
		now := time.Now().UTC()
		run.FinishedAt = &now
	}
	if run.Status == "" || run.Status == RunStatusRunning {
		run.Status = RunStatusCompleted
	}

	res, err := l.db.ExecContext(ctx, `UPDATE runs
		SET status = ?, documents_read = ?, documents_kept = ?, finished_at = ?, error = ?
		WHERE run_id = ?`,
		run.Status, run.DocumentsRead, run.DocumentsKept, formatTime(*run.FinishedAt), nullString(run.Error), run.ID)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", run.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", run.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("run %s: %w", run.ID, ErrNotFound)
	}
	return nil
}

const runColumns = `run_id, input_dir, output_dir, tasks, workers, status,
	documents_read, documents_kept, started_at, finished_at, error`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run        Run
		startedAt  string
		finishedAt sql.NullString
		runErr     sql.NullString
	)
	if err := row.Scan(&run.ID, &run.InputDir, &run.OutputDir, &run.Tasks, &run.Workers, &run.Status,
		&run.DocumentsRead, &run.DocumentsKept, &startedAt, &finishedAt, &runErr); err != nil {
		return nil, err
	}

	var err error
	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if finishedAt.Valid {
		t, err := parseTime(finishedAt.String)
		if err != nil {
			return nil, err
		}
		run.FinishedAt = &t
	}
	run.Error = runErr.String
	return &run, nil
}

// GetRun loads one run, or ErrNotFound
func (l *SQLiteLedger) GetRun(ctx context.Context, id string) (run *Run, err error) {
	start := time.Now()
	defer func() { l.record("get_run", start, 1, err) }()

	row := l.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE run_id = ?", id)
	run, err = scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first
func (l *SQLiteLedger) ListRuns(ctx context.Context, limit int) (runs []*Run, err error) {
	start := time.Now()
	defer func() { l.record("list_runs", start, len(runs), err) }()

	if limit <= 0 {
		limit = defaultRunLimit
	}
	rows, err := l.db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM runs ORDER BY started_at DESC, run_id LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// AddStageStats adds stats onto the counters already stored for runID
func (l *SQLiteLedger) AddStageStats(ctx context.Context, runID string, stats []StageStat) (err error) {
	start := time.Now()
	defer func() { l.record("add_stage_stats", start, len(stats), err) }()

	if len(stats) == 0 {
		return nil
	}
	return l.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO stage_stats (run_id, stage, stage_index, counter, value)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(run_id, stage, counter) DO UPDATE SET value = value + excluded.value`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, s := range stats {
			if _, err := stmt.ExecContext(ctx, runID, s.Stage, s.Index, s.Counter, s.Value); err != nil {
				return fmt.Errorf("failed to store %s/%s: %w", s.Stage, s.Counter, err)
			}
		}
		return nil
	})
}

// StageStats returns the counters of runID ordered by stage position
func (l *SQLiteLedger) StageStats(ctx context.Context, runID string) (stats []StageStat, err error) {
	start := time.Now()
	defer func() { l.record("stage_stats", start, len(stats), err) }()

	rows, err := l.db.QueryContext(ctx, `SELECT stage, stage_index, counter, value
		FROM stage_stats WHERE run_id = ? ORDER BY stage_index, counter`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load stage stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s StageStat
		if err := rows.Scan(&s.Stage, &s.Index, &s.Counter, &s.Value); err != nil {
			return nil, fmt.Errorf("failed to scan stage stat: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// RecordRejections stores a batch of rejections in one transaction
func (l *SQLiteLedger) RecordRejections(ctx context.Context, rejections []Rejection) (err error) {
	start := time.Now()
	defer func() { l.record("record_rejections", start, len(rejections), err) }()

	if len(rejections) == 0 {
		return nil
	}
	return l.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO rejections
			(run_id, stage, reason, document_id, url, warc_file, rank, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		now := time.Now().UTC()
		for _, r := range rejections {
			created := r.CreatedAt
			if created.IsZero() {
				created = now
			}
			if _, err := stmt.ExecContext(ctx, r.RunID, r.Stage, r.Reason, r.DocumentID,
				nullString(r.URL), nullString(r.WARCFile), r.Rank, formatTime(created)); err != nil {
				return fmt.Errorf("failed to store rejection of %s: %w", r.DocumentID, err)
			}
		}
		return nil
	})
}

// ListRejections returns rejections of one run in insertion order
func (l *SQLiteLedger) ListRejections(ctx context.Context, q RejectionQuery) (out []Rejection, err error) {
	start := time.Now()
	defer func() { l.record("list_rejections", start, len(out), err) }()

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultRejectionLimit
	}

	qb := sq.Select("rejection_id", "run_id", "stage", "reason", "document_id", "url", "warc_file", "rank", "created_at").
		From("rejections").
		Where(sq.Eq{"run_id": q.RunID}).
		OrderBy("rejection_id").
		Limit(uint64(limit))
	if q.Stage != "" {
		qb = qb.Where(sq.Eq{"stage": q.Stage})
	}
	if q.Reason != "" {
		qb = qb.Where(sq.Eq{"reason": q.Reason})
	}
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build rejection query: %w", err)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list rejections: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r         Rejection
			url, warc sql.NullString
			created   string
		)
		if err := rows.Scan(&r.ID, &r.RunID, &r.Stage, &r.Reason, &r.DocumentID, &url, &warc, &r.Rank, &created); err != nil {
			return nil, fmt.Errorf("failed to scan rejection: %w", err)
		}
		r.URL = url.String
		r.WARCFile = warc.String
		if r.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RejectionCounts returns stage -> reason -> count for runID
func (l *SQLiteLedger) RejectionCounts(ctx context.Context, runID string) (counts map[string]map[string]int64, err error) {
	start := time.Now()
	defer func() { l.record("rejection_counts", start, len(counts), err) }()

	rows, err := l.db.QueryContext(ctx, `SELECT stage, reason, COUNT(*)
		FROM rejections WHERE run_id = ? GROUP BY stage, reason`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to count rejections: %w", err)
	}
	defer rows.Close()

	counts = make(map[string]map[string]int64)
	for rows.Next() {
		var (
			stage, reason string
			n             int64
		)
		if err := rows.Scan(&stage, &reason, &n); err != nil {
			return nil, fmt.Errorf("failed to scan rejection count: %w", err)
		}
		if counts[stage] == nil {
			counts[stage] = make(map[string]int64)
		}
		counts[stage][reason] = n
	}
	return counts, rows.Err()
}

// Health checks that the database answers
func (l *SQLiteLedger) Health(ctx context.Context) error {
	if err := l.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ledger unavailable: %w", err)
	}
	return nil
}

// Close closes the database
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

func (l *SQLiteLedger) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
