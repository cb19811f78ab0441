package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Fatnaoui/crawler-project/internal/filters"
	"github.com/Fatnaoui/crawler-project/pkg/logging"
)

// ErrInvalidConfig is returned by Validate
var ErrInvalidConfig = errors.New("invalid pipeline configuration")

// Stage names, in the order they run by default
const (
	StageNormalization = "arabic_normalization"
	StageRepetition    = "gopher_repetition"
	StageGopher        = "gopher_quality"
	StageC4            = "c4_quality"
	StageFineWeb       = "fineweb_quality"
	StageLanguage      = "language"
)

// DefaultStages is the full filter chain
var DefaultStages = []string{
	StageNormalization,
	StageRepetition,
	StageGopher,
	StageC4,
	StageFineWeb,
	StageLanguage,
}

// PipelineConfig holds complete pipeline configuration
type PipelineConfig struct {
	// Name tags log lines and the ledger run
	Name string `yaml:"name" json:"name"`

	// Logging configuration
	Logging *logging.LogConfig `yaml:"logging" json:"logging"`

	// Input sharding and concurrency
	Executor *ExecutorConfig `yaml:"executor" json:"executor"`

	// Text extraction settings
	Extraction *ExtractionConfig `yaml:"extraction" json:"extraction"`

	// Stages lists filter stage names in execution order
	Stages []string `yaml:"stages" json:"stages"`

	// Per-stage thresholds
	Filters *FiltersConfig `yaml:"filters" json:"filters"`

	// Rejection ledger
	Ledger *LedgerConfig `yaml:"ledger" json:"ledger"`

	// Stats API server
	Server *ServerConfig `yaml:"server" json:"server"`

	// Sitemap discovery
	Sitemap *SitemapConfig `yaml:"sitemap" json:"sitemap"`
}

// ExecutorConfig holds input sharding settings
type ExecutorConfig struct {
	InputDir    string `yaml:"input_dir" json:"input_dir"`
	OutputDir   string `yaml:"output_dir" json:"output_dir"`
	GlobPattern string `yaml:"glob_pattern" json:"glob_pattern"`
	Tasks       int    `yaml:"tasks" json:"tasks"`     // number of shards
	Workers     int    `yaml:"workers" json:"workers"` // shards processed at once
	Limit       int    `yaml:"limit" json:"limit"`     // documents per shard, 0 = all
}

// ExtractionConfig holds text extraction settings
type ExtractionConfig struct {
	Timeout         time.Duration `yaml:"timeout" json:"timeout"`
	MaxPayloadBytes int           `yaml:"max_payload_bytes" json:"max_payload_bytes"`
}

// FiltersConfig holds the thresholds of every stage
type FiltersConfig struct {
	Normalization filters.NormalizationConfig `yaml:"normalization" json:"normalization"`
	Repetition    filters.RepetitionConfig    `yaml:"repetition" json:"repetition"`
	Gopher        filters.GopherConfig        `yaml:"gopher" json:"gopher"`
	C4            filters.C4Config            `yaml:"c4" json:"c4"`
	FineWeb       filters.FineWebConfig       `yaml:"fineweb" json:"fineweb"`
	Language      filters.LanguageConfig      `yaml:"language" json:"language"`
}

// LedgerConfig holds rejection ledger settings. An empty Path puts the
// ledger inside the output folder.
type LedgerConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

// ServerConfig holds server settings
type ServerConfig struct {
	Host         string        `yaml:"host" json:"host"`
	Port         int           `yaml:"port" json:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
}

// SitemapConfig holds sitemap discovery settings
type SitemapConfig struct {
	UserAgent         string        `yaml:"user_agent" json:"user_agent"`
	RequestsPerSecond float64       `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int           `yaml:"burst" json:"burst"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	MaxSitemaps       int           `yaml:"max_sitemaps" json:"max_sitemaps"`
}

// DefaultPipelineConfig returns a complete default configuration
func DefaultPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		Name: "darija-curate",

		Logging: &logging.LogConfig{
			Level:   "info",
			Format:  "json",
			Console: true,
		},

		Executor: &ExecutorConfig{
			InputDir:    "input",
			OutputDir:   "output",
			GlobPattern: "*.warc.gz",
			Tasks:       1,
			Workers:     1,
		},

		Extraction: &ExtractionConfig{
			Timeout:         5 * time.Second,
			MaxPayloadBytes: 8 * 1024 * 1024, // 8MB
		},

		Stages: append([]string(nil), DefaultStages...),

		Filters: &FiltersConfig{
			Normalization: filters.DefaultNormalizationConfig(),
			Repetition:    filters.DefaultRepetitionConfig(),
			Gopher:        filters.DefaultGopherConfig(),
			C4:            filters.DefaultC4Config(),
			FineWeb:       filters.DefaultFineWebConfig(),
			Language:      filters.DefaultLanguageConfig(),
		},

		Ledger: &LedgerConfig{
			Enabled: true,
		},

		Server: &ServerConfig{
			Host:         "127.0.0.1",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},

		Sitemap: &SitemapConfig{
			UserAgent:         "darija-curate/1.0",
			RequestsPerSecond: 2,
			Burst:             1,
			Timeout:           30 * time.Second,
			MaxSitemaps:       500,
		},
	}
}

// ProductionPipelineConfig returns production-ready configuration
func ProductionPipelineConfig() *PipelineConfig {
	config := DefaultPipelineConfig()

	config.Logging.Level = "info"
	config.Logging.Format = "json"
	config.Logging.Console = false
	config.Logging.OutputFile = "logs/darija-curate.log"

	config.Executor.Tasks = 16
	config.Executor.Workers = 8

	return config
}

// DevelopmentPipelineConfig returns development configuration
func DevelopmentPipelineConfig() *PipelineConfig {
	config := DefaultPipelineConfig()

	config.Logging.Level = "debug"
	config.Logging.Format = "pretty"
	config.Logging.Console = true

	config.Executor.Tasks = 1
	config.Executor.Workers = 1
	config.Executor.Limit = 100

	return config
}

// LoadConfig reads a YAML file on top of DefaultPipelineConfig. Keys absent
// from the file keep their defaults; an explicit null disables an optional
// threshold.
func LoadConfig(path string) (*PipelineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	config := DefaultPipelineConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// LedgerPath resolves where the ledger lives
func (c *PipelineConfig) LedgerPath() string {
	if c.Ledger != nil && c.Ledger.Path != "" {
		return c.Ledger.Path
	}
	return filepath.Join(c.Executor.OutputDir, "ledger.db")
}

// Validate checks structural settings. Filter thresholds are checked by the
// filter constructors when the chain is built.
func (c *PipelineConfig) Validate() error {
	if c.Logging == nil || c.Executor == nil || c.Extraction == nil || c.Filters == nil ||
		c.Ledger == nil || c.Server == nil || c.Sitemap == nil {
		return fmt.Errorf("%w: missing section", ErrInvalidConfig)
	}

	e := c.Executor
	if e.InputDir == "" {
		return fmt.Errorf("%w: executor.input_dir is required", ErrInvalidConfig)
	}
	if e.OutputDir == "" {
		return fmt.Errorf("%w: executor.output_dir is required", ErrInvalidConfig)
	}
	if e.GlobPattern == "" {
		return fmt.Errorf("%w: executor.glob_pattern is required", ErrInvalidConfig)
	}
	if _, err := filepath.Match(e.GlobPattern, "x"); err != nil {
		return fmt.Errorf("%w: executor.glob_pattern: %v", ErrInvalidConfig, err)
	}
	if e.Tasks < 1 {
		return fmt.Errorf("%w: executor.tasks must be at least 1, got %d", ErrInvalidConfig, e.Tasks)
	}
	if e.Workers < 1 {
		return fmt.Errorf("%w: executor.workers must be at least 1, got %d", ErrInvalidConfig, e.Workers)
	}
	if e.Limit < 0 {
		return fmt.Errorf("%w: executor.limit must not be negative", ErrInvalidConfig)
	}

	if c.Extraction.Timeout < 0 {
		return fmt.Errorf("%w: extraction.timeout must not be negative", ErrInvalidConfig)
	}
	if c.Extraction.MaxPayloadBytes < 0 {
		return fmt.Errorf("%w: extraction.max_payload_bytes must not be negative", ErrInvalidConfig)
	}

	if len(c.Stages) == 0 {
		return fmt.Errorf("%w: at least one stage is required", ErrInvalidConfig)
	}
	known := make(map[string]bool, len(DefaultStages))
	for _, s := range DefaultStages {
		known[s] = true
	}
	seen := make(map[string]bool, len(c.Stages))
	for _, s := range c.Stages {
		if !known[s] {
			return fmt.Errorf("%w: unknown stage %q", ErrInvalidConfig, s)
		}
		if seen[s] {
			return fmt.Errorf("%w: stage %q listed twice", ErrInvalidConfig, s)
		}
		seen[s] = true
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port out of range: %d", ErrInvalidConfig, c.Server.Port)
	}
	if c.Sitemap.RequestsPerSecond <= 0 {
		return fmt.Errorf("%w: sitemap.requests_per_second must be positive", ErrInvalidConfig)
	}
	if c.Sitemap.Burst < 1 {
		return fmt.Errorf("%w: sitemap.burst must be at least 1", ErrInvalidConfig)
	}
	return nil
}
