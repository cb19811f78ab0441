package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/Fatnaoui/crawler-project/internal/api"
	"github.com/Fatnaoui/crawler-project/internal/pipeline"
	"github.com/Fatnaoui/crawler-project/internal/sink"
	"github.com/Fatnaoui/crawler-project/internal/sitemap"
	"github.com/Fatnaoui/crawler-project/internal/storage"
	"github.com/Fatnaoui/crawler-project/pkg/document"
	"github.com/Fatnaoui/crawler-project/pkg/logging"
	config "github.com/Fatnaoui/crawler-project/pkg/pipeline"
	"github.com/Fatnaoui/crawler-project/pkg/segment"
)

const shutdownTimeout = 10 * time.Second

// loadConfig reads --config, applies command-line overrides and sets up logging
func loadConfig(c *cli.Context) (*config.PipelineConfig, error) {
	cfg := config.DefaultPipelineConfig()
	if path := c.String("config"); path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if c.IsSet("input") {
		cfg.Executor.InputDir = c.String("input")
	}
	if c.IsSet("output") {
		cfg.Executor.OutputDir = c.String("output")
	}
	if c.IsSet("tasks") {
		cfg.Executor.Tasks = c.Int("tasks")
	}
	if c.IsSet("workers") {
		cfg.Executor.Workers = c.Int("workers")
	}
	if c.IsSet("limit") {
		cfg.Executor.Limit = c.Int("limit")
	}
	if c.IsSet("port") {
		cfg.Server.Port = c.Int("port")
	}
	if level := c.String("log-level"); level != "" {
		cfg.Logging.Level = level
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := logging.SetupLogger(cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to setup logging: %w", err)
	}
	return cfg, nil
}

func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
}

func openLedger(cfg *config.PipelineConfig, override string) (*storage.SQLiteLedger, *storage.SimpleMetricsCollector, error) {
	path := override
	if path == "" {
		path = cfg.LedgerPath()
	}
	metrics := storage.NewSimpleMetricsCollector()
	ledger, err := storage.OpenSQLiteLedger(path, metrics)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open ledger %s: %w", path, err)
	}
	return ledger, metrics, nil
}

// ProcessAction runs the executor over the input folder
func ProcessAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger := logging.GetPipelineLogger(cfg.Name, "process")

	ctx, cancel := signalContext(c)
	defer cancel()

	var opts []pipeline.Option
	if cfg.Ledger.Enabled && !c.Bool("no-ledger") {
		ledger, _, err := openLedger(cfg, "")
		if err != nil {
			return err
		}
		defer ledger.Close()
		opts = append(opts, pipeline.WithLedger(ledger))
	}

	executor, err := pipeline.NewExecutor(cfg, opts...)
	if err != nil {
		return fmt.Errorf("failed to build executor: %w", err)
	}

	logger.Info().
		Str("input", cfg.Executor.InputDir).
		Str("output", cfg.Executor.OutputDir).
		Int("tasks", cfg.Executor.Tasks).
		Int("workers", cfg.Executor.Workers).
		Strs("stages", cfg.Stages).
		Msg("Starting run")

	summary, err := executor.Run(ctx)
	if summary != nil {
		printSummary(c, summary)
	}
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}
	return nil
}

func printSummary(c *cli.Context, s *pipeline.Summary) {
	w := c.App.Writer
	fmt.Fprintf(w, "Run %s: %d files, %d documents read, %d kept (%s)\n",
		s.RunID, s.Files, s.DocumentsRead, s.DocumentsKept, s.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "%-4s %-22s %10s %10s %10s\n", "#", "Stage", "Total", "Forwarded", "Dropped")
	fmt.Fprintln(w, strings.Repeat("-", 60))
	for _, st := range s.Stages {
		if st.Index < 0 {
			continue
		}
		fmt.Fprintf(w, "%-4d %-22s %10d %10d %10d\n", st.Index, st.Name,
			st.Counters[pipeline.CounterTotal], st.Counters[pipeline.CounterForwarded], st.Counters[pipeline.CounterDropped])
	}
}

// ValidateAction checks that a run could start
func ValidateAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if _, err := pipeline.NewStageFactory(cfg, nil); err != nil {
		return fmt.Errorf("invalid filter settings: %w", err)
	}
	n, err := pipeline.ValidateInputs(cfg.Executor.InputDir, cfg.Executor.GlobPattern, cfg.Executor.OutputDir)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Found %d WARC files to process\n", n)
	return nil
}

// InspectAction prints the first records of a JSONL dump
func InspectAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: darija-curate inspect <file.jsonl.gz>", 2)
	}
	records, err := sink.ReadN(c.Args().First(), c.Int("n"))
	if err != nil {
		return fmt.Errorf("failed to read dump: %w", err)
	}

	seg := segment.New()
	chars := c.Int("chars")
	w := c.App.Writer
	for _, rec := range records {
		fmt.Fprintln(w, strings.Repeat("#", 80))
		fmt.Fprintf(w, "ID:     %s\n", rec.ID)
		if u, ok := rec.Metadata[document.MetaURL]; ok {
			fmt.Fprintf(w, "URL:    %v\n", u)
		}
		if reason := rec.Reason(); reason != "" {
			fmt.Fprintf(w, "Reason: %s\n", reason)
		}
		if lang, ok := rec.Metadata[document.MetaLanguage]; ok {
			fmt.Fprintf(w, "Lang:   %v (%v)\n", lang, rec.Metadata[document.MetaLanguageScore])
		}
		fmt.Fprintf(w, "Words:  %d\n", len(seg.Words(rec.Text)))
		if tokens, ok := rec.Metadata["token_count"]; ok {
			fmt.Fprintf(w, "Tokens: %v\n", tokens)
		}
		fmt.Fprintln(w, "Text preview:")
		fmt.Fprintln(w, preview(rec.Text, chars))
		fmt.Fprintln(w, strings.Repeat("#", 80))
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "%d documents shown\n", len(records))
	return nil
}

func preview(text string, chars int) string {
	if chars <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= chars {
		return text
	}
	return string(runes[:chars]) + "..."
}

// SitemapsAction appends discovered sitemap links to a links file
func SitemapsAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	path := "file.txt"
	if c.NArg() > 0 {
		path = c.Args().First()
	}

	ctx, cancel := signalContext(c)
	defer cancel()

	d := sitemap.NewDiscoverer(sitemap.Config{
		UserAgent:         cfg.Sitemap.UserAgent,
		RequestsPerSecond: cfg.Sitemap.RequestsPerSecond,
		Burst:             cfg.Sitemap.Burst,
		Timeout:           cfg.Sitemap.Timeout,
		MaxSitemaps:       cfg.Sitemap.MaxSitemaps,
	})
	n, err := sitemap.UpdateLinksFile(ctx, path, d)
	if err != nil {
		return err
	}
	origin, _ := sitemap.ReadOrigin(path)
	fmt.Fprintf(c.App.Writer, "Appended %d sitemap links for %s\n", n, origin)
	return nil
}

// StatsAction lists recent runs or details one run
func StatsAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	ledger, _, err := openLedger(cfg, c.String("ledger"))
	if err != nil {
		return err
	}
	defer ledger.Close()

	ctx := c.Context
	w := c.App.Writer

	if c.NArg() == 0 {
		runs, err := ledger.ListRuns(ctx, c.Int("runs"))
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(w, "No runs found")
			return nil
		}
		fmt.Fprintf(w, "%-36s %-20s %-10s %10s %10s\n", "Run", "Started", "Status", "Read", "Kept")
		fmt.Fprintln(w, strings.Repeat("-", 92))
		for _, r := range runs {
			fmt.Fprintf(w, "%-36s %-20s %-10s %10d %10d\n",
				r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Status, r.DocumentsRead, r.DocumentsKept)
		}
		fmt.Fprintf(w, "\nTotal: %d runs\n", len(runs))
		return nil
	}

	run, err := ledger.GetRun(ctx, c.Args().First())
	if errors.Is(err, storage.ErrNotFound) {
		return cli.Exit("run not found: "+c.Args().First(), 1)
	}
	if err != nil {
		return err
	}
	rows, err := ledger.StageStats(ctx, run.ID)
	if err != nil {
		return err
	}
	counts, err := ledger.RejectionCounts(ctx, run.ID)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Run:     %s\nStatus:  %s\nInput:   %s\nOutput:  %s\nRead:    %d\nKept:    %d\n",
		run.ID, run.Status, run.InputDir, run.OutputDir, run.DocumentsRead, run.DocumentsKept)
	if run.Error != "" {
		fmt.Fprintf(w, "Error:   %s\n", run.Error)
	}
	fmt.Fprintln(w)
	for _, row := range rows {
		fmt.Fprintf(w, "%3d %-22s %-22s %10d\n", row.Index, row.Stage, row.Counter, row.Value)
	}

	stages := make([]string, 0, len(counts))
	for stage := range counts {
		stages = append(stages, stage)
	}
	sort.Strings(stages)
	if len(stages) > 0 {
		fmt.Fprintln(w, "\nRejections:")
	}
	for _, stage := range stages {
		reasons := make([]string, 0, len(counts[stage]))
		for reason := range counts[stage] {
			reasons = append(reasons, reason)
		}
		sort.Strings(reasons)
		for _, reason := range reasons {
			fmt.Fprintf(w, "  %-22s %-32s %8d\n", stage, reason, counts[stage][reason])
		}
	}
	return nil
}

// ServeAction exposes the ledger over HTTP until interrupted
func ServeAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger := logging.GetLogger("server")

	ledger, metrics, err := openLedger(cfg, c.String("ledger"))
	if err != nil {
		return err
	}
	defer ledger.Close()

	app := api.NewApp(api.NewHandlers(ledger), api.NewStorageHandler(ledger, metrics), api.ServerOptions{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	})

	ctx, cancel := signalContext(c)
	defer cancel()

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("Starting server")
		errCh <- app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down server")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
		return err
	}
	logger.Info().Msg("Server exited")
	return nil
}

