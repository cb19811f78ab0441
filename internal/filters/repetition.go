package filters

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/Fatnaoui/crawler-project/pkg/document"
	"github.com/Fatnaoui/crawler-project/pkg/segment"
)

// FindDuplicates counts repeated elements. The first occurrence of each
// element is unique; every later occurrence adds one to elements and its rune
// length to chars.
func FindDuplicates(xs []string) (elements, chars int) {
	seen := make(map[string]struct{}, len(xs))
	for _, x := range xs {
		if _, ok := seen[x]; ok {
			elements++
			chars += utf8.RuneCountInString(x)
			continue
		}
		seen[x] = struct{}{}
	}
	return elements, chars
}

// FindTopDuplicate returns rune length times frequency of the most frequent
// element. Ties go to the element seen first.
func FindTopDuplicate(xs []string) int {
	counts := make(map[string]int, len(xs))
	order := make([]string, 0, len(xs))
	for _, x := range xs {
		if counts[x] == 0 {
			order = append(order, x)
		}
		counts[x]++
	}
	top, topCount := "", 0
	for _, x := range order {
		if counts[x] > topCount {
			top, topCount = x, counts[x]
		}
	}
	return utf8.RuneCountInString(top) * topCount
}

// FindAllDuplicate walks words with an n-word window and sums the rune length
// of every n-gram already seen. After a repeat the window jumps past it, so
// overlapping repeats are not double counted.
func FindAllDuplicate(words []string, n int) int {
	seen := make(map[string]struct{})
	repeated := 0
	for idx := 0; idx < len(words)-n+1; {
		gram := strings.Join(words[idx:idx+n], "")
		if _, ok := seen[gram]; ok {
			repeated += utf8.RuneCountInString(gram)
			idx += n
			continue
		}
		seen[gram] = struct{}{}
		idx++
	}
	return repeated
}

// NGrams returns space-joined n-word windows over words
func NGrams(words []string, n int) []string {
	if n <= 0 || len(words) < n {
		return nil
	}
	grams := make([]string, 0, len(words)-n+1)
	for i := 0; i+n <= len(words); i++ {
		grams = append(grams, strings.Join(words[i:i+n], " "))
	}
	return grams
}

// NGramThreshold pairs an n-gram size with the maximum character fraction it may cover
type NGramThreshold struct {
	N        int     `yaml:"n" json:"n"`
	Fraction float64 `yaml:"fraction" json:"fraction"`
}

// RepetitionConfig holds the Gopher repetition thresholds. A nil or zero
// fraction disables the check.
type RepetitionConfig struct {
	DupLineFrac     *float64         `yaml:"dup_line_frac" json:"dup_line_frac"`
	DupParaFrac     *float64         `yaml:"dup_para_frac" json:"dup_para_frac"`
	DupLineCharFrac *float64         `yaml:"dup_line_char_frac" json:"dup_line_char_frac"`
	DupParaCharFrac *float64         `yaml:"dup_para_char_frac" json:"dup_para_char_frac"`
	TopNGrams       []NGramThreshold `yaml:"top_n_grams" json:"top_n_grams"`
	DupNGrams       []NGramThreshold `yaml:"dup_n_grams" json:"dup_n_grams"`
}

// DefaultRepetitionConfig returns the thresholds from the Gopher paper
func DefaultRepetitionConfig() RepetitionConfig {
	return RepetitionConfig{
		DupLineFrac:     Float(0.3),
		DupParaFrac:     Float(0.3),
		DupLineCharFrac: Float(0.2),
		DupParaCharFrac: Float(0.2),
		TopNGrams:       []NGramThreshold{{2, 0.2}, {3, 0.18}, {4, 0.16}},
		DupNGrams: []NGramThreshold{
			{5, 0.15}, {6, 0.14}, {7, 0.13}, {8, 0.12}, {9, 0.11}, {10, 0.10},
		},
	}
}

func (c RepetitionConfig) validate() error {
	for name, p := range map[string]*float64{
		"dup_line_frac":      c.DupLineFrac,
		"dup_para_frac":      c.DupParaFrac,
		"dup_line_char_frac": c.DupLineCharFrac,
		"dup_para_char_frac": c.DupParaCharFrac,
	} {
		if p != nil && (*p < 0 || *p > 1) {
			return fmt.Errorf("%w: %s must be within [0,1], got %v", ErrInvalidConfig, name, *p)
		}
	}
	for _, t := range append(append([]NGramThreshold{}, c.TopNGrams...), c.DupNGrams...) {
		if t.N < 1 {
			return fmt.Errorf("%w: n-gram size must be positive, got %d", ErrInvalidConfig, t.N)
		}
	}
	return nil
}

var (
	paragraphSplitRegex = regexp.MustCompile(`\n{2,}`)
	lineSplitRegex      = regexp.MustCompile(`\n+`)
)

// GopherRepetitionFilter rejects documents dominated by repeated paragraphs,
// lines or n-grams.
type GopherRepetitionFilter struct {
	config    RepetitionConfig
	segmenter segment.Segmenter
	stats     *Stats
}

// NewGopherRepetitionFilter validates config and builds the stage
func NewGopherRepetitionFilter(config RepetitionConfig, seg segment.Segmenter) (*GopherRepetitionFilter, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	if seg == nil {
		seg = segment.Default
	}
	return &GopherRepetitionFilter{config: config, segmenter: seg, stats: NewStats()}, nil
}

func (f *GopherRepetitionFilter) Name() string {
	return "gopher_repetition"
}

func (f *GopherRepetitionFilter) Description() string {
	return "Rejects documents with repeated paragraphs, lines or n-grams (Gopher repetition rules)"
}

func (f *GopherRepetitionFilter) Stats() *Stats {
	return f.stats
}

func (f *GopherRepetitionFilter) Filter(doc *document.Document) Verdict {
	v := f.check(doc.Content.Text)
	if !v.Accepted() {
		f.stats.Inc(v.Reason())
	}
	return v
}

func (f *GopherRepetitionFilter) check(text string) Verdict {
	textLen := utf8.RuneCountInString(text)
	if textLen == 0 {
		return Reject("empty")
	}

	paragraphs := paragraphSplitRegex.Split(strings.TrimSpace(text), -1)
	paraDups, paraChars := FindDuplicates(paragraphs)
	if enabledFloat(f.config.DupParaFrac) {
		if r, ok := ratio(paraDups, len(paragraphs)); ok && r > *f.config.DupParaFrac {
			return Reject("dup_para_frac")
		}
	}
	if enabledFloat(f.config.DupParaCharFrac) {
		if r, _ := ratio(paraChars, textLen); r > *f.config.DupParaCharFrac {
			return Reject("dup_para_char_frac")
		}
	}

	lines := lineSplitRegex.Split(text, -1)
	lineDups, lineChars := FindDuplicates(lines)
	if enabledFloat(f.config.DupLineFrac) {
		if r, ok := ratio(lineDups, len(lines)); ok && r > *f.config.DupLineFrac {
			return Reject("dup_line_frac")
		}
	}
	if enabledFloat(f.config.DupLineCharFrac) {
		if r, _ := ratio(lineChars, textLen); r > *f.config.DupLineCharFrac {
			return Reject("dup_line_char_frac")
		}
	}

	words := f.segmenter.Words(text)
	for _, t := range f.config.TopNGrams {
		grams := NGrams(words, t.N)
		if len(grams) == 0 || t.Fraction == 0 {
			continue
		}
		if r, _ := ratio(FindTopDuplicate(grams), textLen); r > t.Fraction {
			return Reject(fmt.Sprintf("top_%d_gram", t.N))
		}
	}
	for _, t := range f.config.DupNGrams {
		if t.Fraction == 0 {
			continue
		}
		if r, _ := ratio(FindAllDuplicate(words, t.N), textLen); r > t.Fraction {
			return Reject(fmt.Sprintf("duplicated_%d_n_grams", t.N))
		}
	}
	return Accept()
}
