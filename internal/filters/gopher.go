package filters

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Fatnaoui/crawler-project/pkg/document"
	"github.com/Fatnaoui/crawler-project/pkg/script"
	"github.com/Fatnaoui/crawler-project/pkg/segment"
)

// Alpha check variants. Both measure words holding at least one alphabetic
// (Latin or Arabic) rune; they differ in threshold polarity and reason.
const (
	AlphaModeNonAlphaMax = "non_alpha_max"
	AlphaModeAlphaMin    = "alpha_min"
)

// GopherConfig holds Gopher quality thresholds. Nil or zero disables a check.
type GopherConfig struct {
	MinDocWords           *int     `yaml:"min_doc_words" json:"min_doc_words"`
	MaxDocWords           *int     `yaml:"max_doc_words" json:"max_doc_words"`
	MinAvgWordLength      *float64 `yaml:"min_avg_word_length" json:"min_avg_word_length"`
	MaxAvgWordLength      *float64 `yaml:"max_avg_word_length" json:"max_avg_word_length"`
	MaxSymbolWordRatio    *float64 `yaml:"max_symbol_word_ratio" json:"max_symbol_word_ratio"`
	MaxBulletLinesRatio   *float64 `yaml:"max_bullet_lines_ratio" json:"max_bullet_lines_ratio"`
	MaxEllipsisLinesRatio *float64 `yaml:"max_ellipsis_lines_ratio" json:"max_ellipsis_lines_ratio"`
	AlphaMode             string   `yaml:"alpha_mode" json:"alpha_mode"`
	MaxNonAlphaWordsRatio *float64 `yaml:"max_non_alpha_words_ratio" json:"max_non_alpha_words_ratio"`
	MinAlphaWordsRatio    *float64 `yaml:"min_alpha_words_ratio" json:"min_alpha_words_ratio"`
}

// DefaultGopherConfig returns thresholds tuned for mixed Arabic/Latin Darija
func DefaultGopherConfig() GopherConfig {
	return GopherConfig{
		MinDocWords:           Int(15),
		MinAvgWordLength:      Float(2),
		MaxAvgWordLength:      Float(18),
		MaxSymbolWordRatio:    Float(0.2),
		MaxBulletLinesRatio:   Float(0.9),
		MaxEllipsisLinesRatio: Float(0.3),
		AlphaMode:             AlphaModeNonAlphaMax,
		MaxNonAlphaWordsRatio: Float(0.8),
	}
}

func (c GopherConfig) validate() error {
	if enabledInt(c.MinDocWords) && enabledInt(c.MaxDocWords) && *c.MinDocWords > *c.MaxDocWords {
		return fmt.Errorf("%w: min_doc_words %d exceeds max_doc_words %d", ErrInvalidConfig, *c.MinDocWords, *c.MaxDocWords)
	}
	if enabledFloat(c.MinAvgWordLength) && enabledFloat(c.MaxAvgWordLength) && *c.MinAvgWordLength > *c.MaxAvgWordLength {
		return fmt.Errorf("%w: min_avg_word_length exceeds max_avg_word_length", ErrInvalidConfig)
	}
	for name, p := range map[string]*float64{
		"max_symbol_word_ratio":     c.MaxSymbolWordRatio,
		"max_bullet_lines_ratio":    c.MaxBulletLinesRatio,
		"max_ellipsis_lines_ratio":  c.MaxEllipsisLinesRatio,
		"max_non_alpha_words_ratio": c.MaxNonAlphaWordsRatio,
		"min_alpha_words_ratio":     c.MinAlphaWordsRatio,
	} {
		if p != nil && *p < 0 {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalidConfig, name)
		}
	}
	switch c.AlphaMode {
	case "", AlphaModeNonAlphaMax, AlphaModeAlphaMin:
	default:
		return fmt.Errorf("%w: unknown alpha_mode %q", ErrInvalidConfig, c.AlphaMode)
	}
	return nil
}

// GopherQualityFilter applies the Gopher document statistics heuristics
// (https://arxiv.org/abs/2112.11446), adapted to Arabic and Latin script.
type GopherQualityFilter struct {
	config    GopherConfig
	segmenter segment.Segmenter
	stats     *Stats
}

// NewGopherQualityFilter validates config and builds the stage
func NewGopherQualityFilter(config GopherConfig, seg segment.Segmenter) (*GopherQualityFilter, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	if config.AlphaMode == "" {
		config.AlphaMode = AlphaModeNonAlphaMax
	}
	if seg == nil {
		seg = segment.Default
	}
	return &GopherQualityFilter{config: config, segmenter: seg, stats: NewStats()}, nil
}

func (f *GopherQualityFilter) Name() string {
	return "gopher_quality"
}

func (f *GopherQualityFilter) Description() string {
	return "Document length, word length, symbol, bullet, ellipsis and alphabetic word ratios"
}

func (f *GopherQualityFilter) Stats() *Stats {
	return f.stats
}

func (f *GopherQualityFilter) Filter(doc *document.Document) Verdict {
	v := f.check(doc.Content.Text)
	if !v.Accepted() {
		f.stats.Inc(v.Reason())
	}
	return v
}

func (f *GopherQualityFilter) check(text string) Verdict {
	cfg := f.config

	words := f.segmenter.Words(text)
	nWords := len(words)
	if nWords == 0 {
		return Reject("gopher_no_words")
	}

	nonSymbol := make([]string, 0, nWords)
	for _, w := range words {
		if !script.IsSymbolOnly(w) {
			nonSymbol = append(nonSymbol, w)
		}
	}
	nNonSymbol := len(nonSymbol)

	if enabledInt(cfg.MinDocWords) && nNonSymbol < *cfg.MinDocWords {
		return Reject("gopher_short_doc")
	}
	if enabledInt(cfg.MaxDocWords) && nNonSymbol > *cfg.MaxDocWords {
		return Reject("gopher_long_doc")
	}

	if nNonSymbol > 0 {
		total := 0
		for _, w := range nonSymbol {
			total += utf8.RuneCountInString(w)
		}
		avg := float64(total) / float64(nNonSymbol)
		if enabledFloat(cfg.MinAvgWordLength) && avg < *cfg.MinAvgWordLength {
			return Reject("gopher_below_avg_threshold")
		}
		if enabledFloat(cfg.MaxAvgWordLength) && avg > *cfg.MaxAvgWordLength {
			return Reject("gopher_above_avg_threshold")
		}
	}

	if enabledFloat(cfg.MaxSymbolWordRatio) {
		if r, _ := ratio(strings.Count(text, "#"), nWords); r > *cfg.MaxSymbolWordRatio {
			return Reject("gopher_too_many_hashes")
		}
		ellipses := strings.Count(text, "...") + strings.Count(text, "…")
		if r, _ := ratio(ellipses, nWords); r > *cfg.MaxSymbolWordRatio {
			return Reject("gopher_too_many_ellipsis")
		}
	}

	if lines := SplitLines(text); len(lines) > 0 {
		bullets, endEllipsis := 0, 0
		for _, line := range lines {
			left := strings.TrimLeftFunc(line, unicode.IsSpace)
			if strings.HasPrefix(left, "•") || strings.HasPrefix(left, "-") {
				bullets++
			}
			right := strings.TrimRightFunc(line, unicode.IsSpace)
			if strings.HasSuffix(right, "...") || strings.HasSuffix(right, "…") {
				endEllipsis++
			}
		}
		if enabledFloat(cfg.MaxBulletLinesRatio) {
			if r, _ := ratio(bullets, len(lines)); r > *cfg.MaxBulletLinesRatio {
				return Reject("gopher_too_many_bullets")
			}
		}
		if enabledFloat(cfg.MaxEllipsisLinesRatio) {
			if r, _ := ratio(endEllipsis, len(lines)); r > *cfg.MaxEllipsisLinesRatio {
				return Reject("gopher_too_many_end_ellipsis")
			}
		}
	}

	alpha := 0
	for _, w := range words {
		if script.HasAlpha(w) {
			alpha++
		}
	}

	switch cfg.AlphaMode {
	case AlphaModeAlphaMin:
		alphaRatio, _ := ratio(alpha, nWords)
		if enabledFloat(cfg.MinAlphaWordsRatio) && alphaRatio < *cfg.MinAlphaWordsRatio {
			return Reject("gopher_below_alpha_threshold")
		}
	default:
		nonAlphaRatio, _ := ratio(nWords-alpha, nWords)
		if enabledFloat(cfg.MaxNonAlphaWordsRatio) && nonAlphaRatio > *cfg.MaxNonAlphaWordsRatio {
			return Reject("gopher_too_many_non_alpha")
		}
	}

	return Accept()
}

// SplitLines splits text at line boundaries (\n, \r\n, \r, \v, \f, file and
// group separators, NEL, U+2028, U+2029). A trailing boundary does not open an
// empty final line, and empty text has no lines.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	var lines []string
	start := 0
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if !isLineBoundary(r) {
			i += size
			continue
		}
		lines = append(lines, text[start:i])
		i += size
		if r == '\r' && i < len(text) && text[i] == '\n' {
			i++
		}
		start = i
	}
	if start < len(text) {
		lines = append(lines, text[start:])
	}
	return lines
}

func isLineBoundary(r rune) bool {
	switch r {
	case '\n', '\r', '\v', '\f', '\x1c', '\x1d', '\x1e', '\u0085', '\u2028', '\u2029':
		return true
	}
	return false
}
