package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a run does not exist in the ledger
var ErrNotFound = errors.New("not found")

// Run status values
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Run is one execution of the curation pipeline
type Run struct {
	ID            string     `json:"id"`
	InputDir      string     `json:"input_dir"`
	OutputDir     string     `json:"output_dir"`
	Tasks         int        `json:"tasks"`
	Workers       int        `json:"workers"`
	Status        string     `json:"status"`
	DocumentsRead int64      `json:"documents_read"`
	DocumentsKept int64      `json:"documents_kept"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// StageStat is one counter of one stage, summed over all ranks of a run
type StageStat struct {
	Stage   string `json:"stage"`
	Index   int    `json:"index"`
	Counter string `json:"counter"`
	Value   int64  `json:"value"`
}

// Rejection records one document dropped by a stage
type Rejection struct {
	ID         int64     `json:"id"`
	RunID      string    `json:"run_id"`
	Stage      string    `json:"stage"`
	Reason     string    `json:"reason"`
	DocumentID string    `json:"document_id"`
	URL        string    `json:"url,omitempty"`
	WARCFile   string    `json:"warc_file,omitempty"`
	Rank       int       `json:"rank"`
	CreatedAt  time.Time `json:"created_at"`
}

// RejectionQuery narrows a rejection listing. Empty Stage matches all
// stages; Limit <= 0 uses DefaultRejectionLimit.
type RejectionQuery struct {
	RunID  string
	Stage  string
	Reason string
	Limit  int
}

// DefaultRejectionLimit caps rejection listings
const DefaultRejectionLimit = 100

// Ledger persists run history, per-stage counters and every rejection
type Ledger interface {
	CreateRun(ctx context.Context, run *Run) error
	FinishRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)
	AddStageStats(ctx context.Context, runID string, stats []StageStat) error
	StageStats(ctx context.Context, runID string) ([]StageStat, error)
	RecordRejections(ctx context.Context, rejections []Rejection) error
	ListRejections(ctx context.Context, q RejectionQuery) ([]Rejection, error)
	RejectionCounts(ctx context.Context, runID string) (map[string]map[string]int64, error)
	Health(ctx context.Context) error
	Close() error
}

// LedgerMetrics provides telemetry for ledger operations
type LedgerMetrics struct {
	OperationType string
	Duration      int64 // nanoseconds
	Success       bool
	Rows          int
	Error         error
}

// MetricsCollector receives ledger operation metrics
type MetricsCollector interface {
	RecordMetric(metric LedgerMetrics)
}
