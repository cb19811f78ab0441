package filters

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Fatnaoui/crawler-project/pkg/document"
	"github.com/Fatnaoui/crawler-project/pkg/segment"
)

// FineWebConfig holds the FineWeb line heuristics. Nil or zero disables a check.
type FineWebConfig struct {
	LinePunctThr         *float64 `yaml:"line_punct_thr" json:"line_punct_thr"`
	LinePunctExcludeZero bool     `yaml:"line_punct_exclude_zero" json:"line_punct_exclude_zero"`
	StopChars            []string `yaml:"stop_chars" json:"stop_chars"`
	ShortLineThr         *float64 `yaml:"short_line_thr" json:"short_line_thr"`
	ShortLineLength      *int     `yaml:"short_line_length" json:"short_line_length"`
	CharDuplicatesRatio  *float64 `yaml:"char_duplicates_ratio" json:"char_duplicates_ratio"`
	NewLineRatio         *float64 `yaml:"new_line_ratio" json:"new_line_ratio"`
}

// DefaultStopChars are the terminal marks for Darija in Arabic and Latin script
var DefaultStopChars = []string{".", "!", "?", "؟", "؛", "…", "..."}

// DefaultFineWebConfig returns the FineWeb defaults
func DefaultFineWebConfig() FineWebConfig {
	return FineWebConfig{
		LinePunctThr:        Float(0.12),
		StopChars:           append([]string(nil), DefaultStopChars...),
		ShortLineThr:        Float(0.67),
		ShortLineLength:     Int(30),
		CharDuplicatesRatio: Float(0.01),
		NewLineRatio:        Float(0.3),
	}
}

func (c FineWebConfig) validate() error {
	for name, p := range map[string]*float64{
		"line_punct_thr":        c.LinePunctThr,
		"short_line_thr":        c.ShortLineThr,
		"char_duplicates_ratio": c.CharDuplicatesRatio,
		"new_line_ratio":        c.NewLineRatio,
	} {
		if p != nil && *p < 0 {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalidConfig, name)
		}
	}
	if c.ShortLineLength != nil && *c.ShortLineLength < 0 {
		return fmt.Errorf("%w: short_line_length must not be negative", ErrInvalidConfig)
	}
	for _, s := range c.StopChars {
		if s == "" {
			return fmt.Errorf("%w: stop_chars must not contain empty strings", ErrInvalidConfig)
		}
	}
	return nil
}

// FineWebQualityFilter applies the FineWeb line statistics
type FineWebQualityFilter struct {
	config    FineWebConfig
	segmenter segment.Segmenter
	stats     *Stats
}

// NewFineWebQualityFilter validates config and builds the stage. An empty
// StopChars list falls back to DefaultStopChars.
func NewFineWebQualityFilter(config FineWebConfig, seg segment.Segmenter) (*FineWebQualityFilter, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	if len(config.StopChars) == 0 {
		config.StopChars = DefaultStopChars
	}
	if seg == nil {
		seg = segment.Default
	}
	return &FineWebQualityFilter{config: config, segmenter: seg, stats: NewStats()}, nil
}

func (f *FineWebQualityFilter) Name() string {
	return "fineweb_quality"
}

func (f *FineWebQualityFilter) Description() string {
	return "Line punctuation, short line, duplicate character and newline ratios"
}

func (f *FineWebQualityFilter) Stats() *Stats {
	return f.stats
}

func (f *FineWebQualityFilter) Filter(doc *document.Document) Verdict {
	v := f.check(doc.Content.Text)
	if !v.Accepted() {
		f.stats.Inc(v.Reason())
	}
	return v
}

func (f *FineWebQualityFilter) check(text string) Verdict {
	cfg := f.config

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return Reject("empty")
	}

	if enabledFloat(cfg.LinePunctThr) {
		ended := 0
		for _, line := range lines {
			if hasAnySuffix(line, cfg.StopChars) {
				ended++
			}
		}
		r, _ := ratio(ended, len(lines))
		if r < *cfg.LinePunctThr && !(r == 0 && cfg.LinePunctExcludeZero) {
			return Reject("line_punct_ratio")
		}
	}

	if enabledFloat(cfg.ShortLineThr) && cfg.ShortLineLength != nil {
		short := 0
		for _, line := range lines {
			if utf8.RuneCountInString(line) <= *cfg.ShortLineLength {
				short++
			}
		}
		if r, _ := ratio(short, len(lines)); r > *cfg.ShortLineThr {
			return Reject("short_line_ratio")
		}
	}

	flat := strings.ReplaceAll(text, "\n", "")
	flatLen := utf8.RuneCountInString(flat)
	if flatLen == 0 {
		return Reject("empty_after_newline_removal")
	}
	if enabledFloat(cfg.CharDuplicatesRatio) {
		_, dupChars := FindDuplicates(lines)
		if r, _ := ratio(dupChars, flatLen); r > *cfg.CharDuplicatesRatio {
			return Reject("char_dup_ratio")
		}
	}

	words := f.segmenter.Words(text)
	if len(words) == 0 {
		return Reject("no_words")
	}

	if enabledFloat(cfg.NewLineRatio) {
		if r, _ := ratio(strings.Count(text, "\n"), len(words)); r > *cfg.NewLineRatio {
			return Reject("list_ratio")
		}
	}
	return Accept()
}
