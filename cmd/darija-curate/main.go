package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/Fatnaoui/crawler-project/internal/api"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "darija-curate",
		Usage:   "curate Darija web crawls into a filtered JSONL corpus",
		Version: api.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML config file; defaults apply when omitted",
				EnvVars: []string{"DARIJA_CURATE_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "override the configured log level (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "process",
				Usage:  "extract and filter every WARC file of the input folder",
				Flags:  append(executorFlags(), &cli.BoolFlag{Name: "no-ledger", Usage: "do not record the run in the ledger"}),
				Action: ProcessAction,
			},
			{
				Name:   "validate",
				Usage:  "check config, input archives and output folder",
				Flags:  executorFlags(),
				Action: ValidateAction,
			},
			{
				Name:      "inspect",
				Usage:     "print the first documents of a JSONL dump",
				ArgsUsage: "<file.jsonl.gz>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "n", Value: 4, Usage: "number of documents to print, 0 for all"},
					&cli.IntFlag{Name: "chars", Value: 300, Usage: "preview length in characters, 0 for full text"},
				},
				Action: InspectAction,
			},
			{
				Name:      "sitemaps",
				Usage:     "append the sitemap links of the origin on the first line of a links file",
				ArgsUsage: "[links-file]",
				Action:    SitemapsAction,
			},
			{
				Name:      "stats",
				Usage:     "show runs recorded in the ledger",
				ArgsUsage: "[run-id]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "ledger", Usage: "ledger path, defaults to <output>/ledger.db"},
					&cli.IntFlag{Name: "runs", Value: 10, Usage: "runs to list when no run id is given"},
				},
				Action: StatsAction,
			},
			{
				Name:  "serve",
				Usage: "serve the ledger over HTTP",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "ledger", Usage: "ledger path, defaults to <output>/ledger.db"},
					&cli.IntFlag{Name: "port", Usage: "override the configured port"},
				},
				Action: ServeAction,
			},
		},
	}
}

func executorFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "folder holding WARC files"},
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "output folder"},
		&cli.IntFlag{Name: "tasks", Usage: "number of shards"},
		&cli.IntFlag{Name: "workers", Usage: "shards processed at once"},
		&cli.IntFlag{Name: "limit", Usage: "documents per shard, 0 for all"},
	}
}
