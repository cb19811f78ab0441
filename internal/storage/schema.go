package storage

const schema = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA foreign_keys = ON;

-- One row per pipeline execution
CREATE TABLE IF NOT EXISTS runs (
    run_id TEXT PRIMARY KEY,
    input_dir TEXT NOT NULL,
    output_dir TEXT NOT NULL,
    tasks INTEGER NOT NULL DEFAULT 1,
    workers INTEGER NOT NULL DEFAULT 1,
    status TEXT NOT NULL,
    documents_read INTEGER NOT NULL DEFAULT 0,
    documents_kept INTEGER NOT NULL DEFAULT 0,
    started_at TEXT NOT NULL,
    finished_at TEXT,
    error TEXT
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

-- Stage counters, summed over ranks
CREATE TABLE IF NOT EXISTS stage_stats (
    run_id TEXT NOT NULL,
    stage TEXT NOT NULL,
    stage_index INTEGER NOT NULL,
    counter TEXT NOT NULL,
    value INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (run_id, stage, counter),
    FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
);

-- Every document dropped by a stage
CREATE TABLE IF NOT EXISTS rejections (
    rejection_id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL,
    stage TEXT NOT NULL,
    reason TEXT NOT NULL,
    document_id TEXT NOT NULL,
    url TEXT,
    warc_file TEXT,
    rank INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_rejections_run_stage ON rejections(run_id, stage);
CREATE INDEX IF NOT EXISTS idx_rejections_reason ON rejections(run_id, reason);
`
