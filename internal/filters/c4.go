package filters

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/Fatnaoui/crawler-project/pkg/document"
	"github.com/Fatnaoui/crawler-project/pkg/segment"
)

// Disabled is the sentinel for C4 integer thresholds
const Disabled = -1

var citationRegex = regexp.MustCompile(`\[\d*]|\[edit]|\[citation needed]`)

var (
	terminalPunctuation = []string{".", "؟", "!", ":", "?", "'", `"`}

	placeholderPhrases = []string{"lorem ipsum"}

	// Cookie and terms-of-use boilerplate, English for mixed pages plus Arabic
	policyPhrases = []string{
		"terms of use",
		"privacy policy",
		"cookie policy",
		"uses cookies",
		"use of cookies",
		"use cookies",
		"شروط الاستخدام",
		"شروط الخدمة",
		"سياسة الخصوصية",
		"سياسة حماية الخصوصية",
		"ملفات تعريف الارتباط",
		"الكوكيز",
		"سياسة الكوكيز",
		"نستخدم ملفات",
		"يستخدم هذا الموقع ملفات",
		"جميع الحقوق محفوظة",
		"حقوق النشر",
	}
)

// C4 line counters
const (
	statLineTotal       = "line-total"
	statLineTooLongWord = "line-filter-too_long_word"
	statLineNoTerminal  = "line-filter-no_terminal_punc"
	statLineTooFewWords = "line-filter-too_few_words"
	statLineJavascript  = "line-filter-javascript"
	statLinePolicy      = "line-filter-policy"
	statLineKept        = "line-kept"
)

// C4Config holds the C4 line heuristics. Integer thresholds use Disabled (-1)
// to switch a check off.
type C4Config struct {
	SplitParagraph        bool `yaml:"split_paragraph" json:"split_paragraph"`
	RemoveCitations       bool `yaml:"remove_citations" json:"remove_citations"`
	FilterNoTerminalPunct bool `yaml:"filter_no_terminal_punct" json:"filter_no_terminal_punct"`
	MinNumSentences       int  `yaml:"min_num_sentences" json:"min_num_sentences"`
	MinWordsPerLine       int  `yaml:"min_words_per_line" json:"min_words_per_line"`
	MaxWordLength         int  `yaml:"max_word_length" json:"max_word_length"`
	FilterLoremIpsum      bool `yaml:"filter_lorem_ipsum" json:"filter_lorem_ipsum"`
	FilterJavascript      bool `yaml:"filter_javascript" json:"filter_javascript"`
	FilterCurlyBracket    bool `yaml:"filter_curly_bracket" json:"filter_curly_bracket"`
	FilterPolicy          bool `yaml:"filter_policy" json:"filter_policy"`
}

// DefaultC4Config returns the C4 defaults relaxed for short Darija lines
func DefaultC4Config() C4Config {
	return C4Config{
		SplitParagraph:        true,
		RemoveCitations:       true,
		FilterNoTerminalPunct: false,
		MinNumSentences:       3,
		MinWordsPerLine:       2,
		MaxWordLength:         1000,
		FilterLoremIpsum:      true,
		FilterJavascript:      true,
		FilterCurlyBracket:    false,
		FilterPolicy:          true,
	}
}

func (c C4Config) validate() error {
	if c.MinNumSentences < Disabled {
		return fmt.Errorf("%w: min_num_sentences must be -1 or non-negative, got %d", ErrInvalidConfig, c.MinNumSentences)
	}
	if c.MinWordsPerLine < Disabled {
		return fmt.Errorf("%w: min_words_per_line must be -1 or non-negative, got %d", ErrInvalidConfig, c.MinWordsPerLine)
	}
	if c.MaxWordLength == 0 || c.MaxWordLength < Disabled {
		return fmt.Errorf("%w: max_word_length must be -1 or positive, got %d", ErrInvalidConfig, c.MaxWordLength)
	}
	return nil
}

// C4QualityFilter applies the C4 line rules
// (https://jmlr.org/papers/volume21/20-074/20-074.pdf) and rewrites the
// document text to the lines it keeps.
type C4QualityFilter struct {
	config    C4Config
	segmenter segment.Segmenter
	stats     *Stats
}

// NewC4QualityFilter validates config and builds the stage
func NewC4QualityFilter(config C4Config, seg segment.Segmenter) (*C4QualityFilter, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	if seg == nil {
		seg = segment.Default
	}
	return &C4QualityFilter{config: config, segmenter: seg, stats: NewStats()}, nil
}

func (f *C4QualityFilter) Name() string {
	return "c4_quality"
}

func (f *C4QualityFilter) Description() string {
	return "Drops boilerplate lines (javascript, policy, citations) and short documents"
}

func (f *C4QualityFilter) Stats() *Stats {
	return f.stats
}

func (f *C4QualityFilter) Filter(doc *document.Document) Verdict {
	cfg := f.config

	var lines []string
	if cfg.SplitParagraph {
		lines = SplitLines(doc.Content.Text)
	} else {
		lines = f.segmenter.Sentences(doc.Content.Text)
	}

	numSentences := 0
	kept := make([]string, 0, len(lines))

	for _, line := range lines {
		line = strings.TrimSpace(line)
		f.stats.Inc(statLineTotal)

		if cfg.MaxWordLength != Disabled && hasLongWord(line, cfg.MaxWordLength) {
			f.stats.Inc(statLineTooLongWord)
			continue
		}
		if cfg.RemoveCitations {
			line = citationRegex.ReplaceAllString(line, "")
		}
		if cfg.FilterNoTerminalPunct && (!hasAnySuffix(line, terminalPunctuation) || strings.HasSuffix(line, "...")) {
			f.stats.Inc(statLineNoTerminal)
			continue
		}
		if cfg.MinWordsPerLine != Disabled && len(strings.Fields(line)) < cfg.MinWordsPerLine {
			f.stats.Inc(statLineTooFewWords)
			continue
		}

		lower := strings.ToLower(line)
		if cfg.FilterLoremIpsum && containsAny(lower, placeholderPhrases) {
			return f.reject("lorem_ipsum")
		}
		if cfg.FilterJavascript && strings.Contains(lower, "javascript") {
			f.stats.Inc(statLineJavascript)
			continue
		}
		if cfg.FilterCurlyBracket && strings.Contains(line, "{") {
			return f.reject("curly_bracket")
		}
		if cfg.FilterPolicy && containsAny(lower, policyPhrases) {
			f.stats.Inc(statLinePolicy)
			continue
		}

		if cfg.MinNumSentences != Disabled {
			if cfg.SplitParagraph {
				numSentences += len(f.segmenter.Sentences(line))
			} else {
				numSentences++
			}
		}
		kept = append(kept, line)
		f.stats.Inc(statLineKept)
	}

	if numSentences < cfg.MinNumSentences {
		return f.reject("too_few_sentences")
	}

	sep := " "
	if cfg.SplitParagraph {
		sep = "\n"
	}
	doc.Content.Text = strings.TrimSpace(strings.Join(kept, sep))
	if doc.Content.Text == "" {
		return f.reject("empty_after_filtering")
	}
	return Accept()
}

func (f *C4QualityFilter) reject(reason string) Verdict {
	f.stats.Inc(reason)
	return Reject(reason)
}

func hasLongWord(line string, limit int) bool {
	for _, w := range strings.Fields(line) {
		if utf8.RuneCountInString(w) > limit {
			return true
		}
	}
	return false
}

func hasAnySuffix(s string, suffixes []string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
