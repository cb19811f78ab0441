package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Fatnaoui/crawler-project/internal/filters"
	"github.com/Fatnaoui/crawler-project/internal/sink"
	"github.com/Fatnaoui/crawler-project/internal/storage"
	"github.com/Fatnaoui/crawler-project/internal/warc"
	"github.com/Fatnaoui/crawler-project/pkg/document"
	"github.com/Fatnaoui/crawler-project/pkg/extractor"
	"github.com/Fatnaoui/crawler-project/pkg/logging"
	config "github.com/Fatnaoui/crawler-project/pkg/pipeline"
)

// Reader counters
const (
	CounterRecords           = "records"
	CounterMalformedRecord   = "malformed_record"
	CounterPayloadError      = "payload_error"
	CounterSkippedStatus     = "skipped_status"
	CounterSkippedType       = "skipped_content_type"
	CounterSkippedSize       = "skipped_too_large"
	CounterExtractionTimeout = "extraction_timeout"
	CounterExtractionEmpty   = "extraction_empty"
	CounterExtractionFailed  = "extraction_failed"
	CounterDocuments         = "documents"
)

var errLimitReached = errors.New("document limit reached")

// TextExtractor turns an HTTP payload into main text
type TextExtractor interface {
	Extract(ctx context.Context, content []byte, contentType, pageURL string) (*extractor.Result, error)
}

// Summary describes a finished run
type Summary struct {
	RunID         string          `json:"run_id"`
	Files         int             `json:"files"`
	DocumentsRead int64           `json:"documents_read"`
	DocumentsKept int64           `json:"documents_kept"`
	Stages        []StageCounters `json:"stages"`
	Duration      time.Duration   `json:"duration"`
}

// Executor reads WARC shards, runs each document through the chain and
// writes kept documents and per-stage rejections as JSONL.
type Executor struct {
	config    *config.PipelineConfig
	factory   StageFactory
	extractor TextExtractor
	ledger    storage.Ledger
	stats     *RunStats
	logger    zerolog.Logger
}

// Option customizes an Executor
type Option func(*Executor)

// WithLedger records the run, its stats and every rejection in l
func WithLedger(l storage.Ledger) Option {
	return func(e *Executor) { e.ledger = l }
}

// WithStageFactory replaces the chain built from the config
func WithStageFactory(f StageFactory) Option {
	return func(e *Executor) { e.factory = f }
}

// WithExtractor replaces the default extraction engine
func WithExtractor(x TextExtractor) Option {
	return func(e *Executor) { e.extractor = x }
}

// NewExecutor validates cfg and prepares an executor
func NewExecutor(cfg *config.PipelineConfig, opts ...Option) (*Executor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Executor{
		config: cfg,
		stats:  NewRunStats(),
		logger: logging.GetPipelineLogger(cfg.Name, "executor"),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.factory == nil {
		factory, err := NewStageFactory(cfg, nil)
		if err != nil {
			return nil, err
		}
		e.factory = factory
	}
	if e.extractor == nil {
		e.extractor = extractor.NewEngine(cfg.Extraction.Timeout)
	}
	return e, nil
}

// Stats returns the live aggregate
func (e *Executor) Stats() *RunStats {
	return e.stats
}

// Run processes every input file. Ranks run concurrently up to the worker
// limit; the first rank error cancels the others.
func (e *Executor) Run(ctx context.Context) (*Summary, error) {
	ec := e.config.Executor
	start := time.Now()

	files, err := ListInputFiles(ec.InputDir, ec.GlobPattern)
	if err != nil {
		return nil, err
	}

	run := &storage.Run{
		InputDir:  ec.InputDir,
		OutputDir: ec.OutputDir,
		Tasks:     ec.Tasks,
		Workers:   ec.Workers,
	}
	if e.ledger != nil {
		if err := e.ledger.CreateRun(ctx, run); err != nil {
			return nil, err
		}
	} else {
		run.ID = uuid.New().String()
	}

	logger := e.logger.With().Str("run_id", run.ID).Logger()
	logger.Info().
		Int("files", len(files)).
		Int("tasks", ec.Tasks).
		Int("workers", ec.Workers).
		Strs("stages", e.config.Stages).
		Msg("Pipeline run started")

	bus := NewEventBus()
	var recorder *RejectionRecorder
	if e.ledger != nil {
		recorder = NewRejectionRecorder(e.ledger, run.ID, 0)
		if _, err := bus.Subscribe(recorder.EventTypes(), recorder.Handle, 1024); err != nil {
			return nil, err
		}
	}
	if _, err := bus.Subscribe([]EventType{EventRankFinished}, e.logRank(logger), 16); err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ec.Workers)
	for rank := 0; rank < ec.Tasks; rank++ {
		shard := Shard(files, ec.Tasks, rank)
		g.Go(func() error {
			return e.runRank(gctx, bus, run.ID, rank, shard)
		})
	}
	runErr := g.Wait()
	bus.Close()

	// Bookkeeping still happens when ctx was cancelled
	bookCtx := context.WithoutCancel(ctx)
	if recorder != nil {
		if err := recorder.Flush(bookCtx); err != nil {
			runErr = errors.Join(runErr, err)
		} else if err := recorder.Err(); err != nil && runErr == nil {
			runErr = err
		}
	}

	read, kept := e.stats.Documents()
	summary := &Summary{
		RunID:         run.ID,
		Files:         len(files),
		DocumentsRead: read,
		DocumentsKept: kept,
		Stages:        e.stats.Stages(),
		Duration:      time.Since(start),
	}

	if e.ledger != nil {
		if err := e.ledger.AddStageStats(bookCtx, run.ID, e.stats.LedgerStats()); err != nil {
			runErr = errors.Join(runErr, err)
		}
		run.DocumentsRead = read
		run.DocumentsKept = kept
		run.Status = storage.RunStatusCompleted
		if runErr != nil {
			run.Status = storage.RunStatusFailed
			run.Error = runErr.Error()
		}
		if err := e.ledger.FinishRun(bookCtx, run); err != nil {
			runErr = errors.Join(runErr, err)
		}
	}

	if runErr != nil {
		logger.Error().Err(runErr).Int64("documents_read", read).Msg("Pipeline run failed")
		return summary, runErr
	}
	logger.Info().
		Int64("documents_read", read).
		Int64("documents_kept", kept).
		Dur("duration", summary.Duration).
		Msg("Pipeline run completed")
	return summary, nil
}

func (e *Executor) logRank(logger zerolog.Logger) EventHandler {
	return func(ctx context.Context, event *DocumentEvent) error {
		logger.Info().
			Int("rank", event.Rank).
			Interface("documents_read", event.Metadata["documents_read"]).
			Interface("documents_kept", event.Metadata["documents_kept"]).
			Msg("Rank finished")
		return nil
	}
}

// rankOutput holds the sinks of one rank
type rankOutput struct {
	data     *sink.Writer
	rejected []*sink.Writer
}

func (o *rankOutput) Close() error {
	errs := []error{o.data.Close()}
	for _, w := range o.rejected {
		errs = append(errs, w.Close())
	}
	return errors.Join(errs...)
}

func (e *Executor) runRank(ctx context.Context, bus *EventBus, runID string, rank int, files []string) (err error) {
	logger := logging.GetWorkerLogger(e.config.Name, rank)

	chain, err := e.factory()
	if err != nil {
		return err
	}

	out := e.config.Executor.OutputDir
	output := &rankOutput{
		data:     sink.NewWriter(sink.DataPath(out, rank)),
		rejected: make([]*sink.Writer, chain.Len()),
	}
	for i, stage := range chain.Stages() {
		output.rejected[i] = sink.NewWriter(sink.RejectedPath(out, i, stage.Name(), rank))
	}

	reader := filters.NewStats()
	var read, kept int64

	defer func() {
		if cerr := output.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}

		e.stats.MergeStage(ReaderStageIndex, ReaderStage, reader.Snapshot())
		for i, stage := range chain.Stages() {
			e.stats.MergeStage(i, stage.Name(), chain.StageCounts(i))
		}
		e.stats.MergeRank(read, kept)

		ev := NewDocumentEvent(EventRankFinished, nil)
		ev.RunID = runID
		ev.Rank = rank
		ev.Metadata["documents_read"] = read
		ev.Metadata["documents_kept"] = kept
		if err != nil {
			ev.Error = err.Error()
		}
		if perr := bus.Publish(context.WithoutCancel(ctx), ev); perr != nil {
			logger.Warn().Err(perr).Msg("Failed to publish rank event")
		}
	}()

	logger.Debug().Int("files", len(files)).Msg("Rank started")

	handle := func(doc *document.Document) error {
		read++
		idx, verdict := chain.Process(doc)
		if idx < 0 {
			if err := output.data.Write(doc); err != nil {
				return err
			}
			kept++
			return nil
		}

		stage := chain.Stages()[idx]
		if err := output.rejected[idx].Write(doc); err != nil {
			return err
		}
		ev := NewDocumentEvent(EventDocumentRejected, doc)
		ev.RunID = runID
		ev.Rank = rank
		ev.Stage = stage.Name()
		ev.StageIndex = idx
		ev.Reason = verdict.Reason()
		return bus.Publish(ctx, ev)
	}

	limit := int64(e.config.Executor.Limit)
	for _, path := range files {
		err := e.readFile(ctx, path, reader, logger, func(doc *document.Document) error {
			if limit > 0 && read >= limit {
				return errLimitReached
			}
			return handle(doc)
		})
		if errors.Is(err, errLimitReached) {
			break
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// readFile streams the documents of one archive into fn
func (e *Executor) readFile(ctx context.Context, path string, stats *filters.Stats, logger zerolog.Logger, fn func(*document.Document) error) error {
	r, err := warc.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()

	warcFile := path
	if rel, err := filepath.Rel(e.config.Executor.InputDir, path); err == nil {
		warcFile = rel
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if errors.Is(err, warc.ErrMalformedRecord) {
			stats.Inc(CounterMalformedRecord)
			logger.Warn().Err(err).Str("file", path).Msg("Skipping malformed WARC record")
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		stats.Inc(CounterRecords)

		doc, err := e.recordDocument(ctx, rec, warcFile, stats)
		if err != nil {
			return err
		}
		if doc == nil {
			continue
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
}

// recordDocument turns a response record into a document. It returns nil
// for records that carry no usable page; only context errors are returned.
func (e *Executor) recordDocument(ctx context.Context, rec *warc.Record, warcFile string, stats *filters.Stats) (*document.Document, error) {
	if rec.Type != warc.TypeResponse {
		return nil, nil
	}

	payload, err := rec.HTTPPayload()
	if err != nil {
		stats.Inc(CounterPayloadError)
		return nil, nil
	}
	if payload.StatusCode < 200 || payload.StatusCode >= 300 {
		stats.Inc(CounterSkippedStatus)
		return nil, nil
	}
	if !payload.IsHTML() {
		stats.Inc(CounterSkippedType)
		return nil, nil
	}
	if limit := e.config.Extraction.MaxPayloadBytes; limit > 0 && len(payload.Body) > limit {
		stats.Inc(CounterSkippedSize)
		return nil, nil
	}

	res, err := e.extractor.Extract(ctx, payload.Body, payload.ContentType, rec.TargetURI)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case errors.Is(err, context.DeadlineExceeded):
			stats.Inc(CounterExtractionTimeout)
		case errors.Is(err, extractor.ErrNoContent):
			stats.Inc(CounterExtractionEmpty)
		default:
			stats.Inc(CounterExtractionFailed)
		}
		return nil, nil
	}
	stats.Inc(CounterDocuments)

	doc := document.New(res.Text)
	if rec.ID != "" {
		doc.ID = rec.ID
	}
	doc.Source = document.Source{Type: "html", URL: rec.TargetURI, Path: warcFile}

	meta := doc.Meta()
	meta[document.MetaURL] = rec.TargetURI
	meta[document.MetaWARCFile] = warcFile
	meta[document.MetaDate] = rec.Date
	meta[document.MetaExtractionMethod] = res.Method
	if res.Title != "" {
		meta[document.MetaTitle] = res.Title
	}
	return doc, nil
}
