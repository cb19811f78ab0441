package filters

import (
	"fmt"
	"strings"

	"github.com/pemistahl/lingua-go"

	"github.com/Fatnaoui/crawler-project/pkg/document"
)

// LanguageConfig restricts detection to a candidate set and keeps documents
// whose top language is allowed.
type LanguageConfig struct {
	Candidates    []string `yaml:"candidates" json:"candidates"`
	Allowed       []string `yaml:"allowed" json:"allowed"`
	MinConfidence float64  `yaml:"min_confidence" json:"min_confidence"`
}

// DefaultLanguageConfig keeps Arabic-script Darija and separates it from the
// French and English that share Moroccan pages. Latin-script Darija (Arabizi)
// is usually detected as French or English and is rejected as
// language_mismatch; add those codes to Allowed, or drop the language stage,
// to keep it.
func DefaultLanguageConfig() LanguageConfig {
	return LanguageConfig{
		Candidates:    []string{"ar", "fr", "en"},
		Allowed:       []string{"ar"},
		MinConfidence: 0.5,
	}
}

// ParseLanguage resolves an ISO 639-1 code ("ar") or English name ("Arabic")
func ParseLanguage(name string) (lingua.Language, error) {
	name = strings.TrimSpace(name)
	for _, lang := range lingua.AllLanguages() {
		if strings.EqualFold(lang.String(), name) || strings.EqualFold(lang.IsoCode639_1().String(), name) {
			return lang, nil
		}
	}
	return lingua.Unknown, fmt.Errorf("%w: unknown language %q", ErrInvalidConfig, name)
}

func parseLanguages(names []string) ([]lingua.Language, error) {
	langs := make([]lingua.Language, 0, len(names))
	for _, n := range names {
		lang, err := ParseLanguage(n)
		if err != nil {
			return nil, err
		}
		langs = append(langs, lang)
	}
	return langs, nil
}

func (c LanguageConfig) validate() ([]lingua.Language, map[lingua.Language]bool, error) {
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return nil, nil, fmt.Errorf("%w: min_confidence must be within [0,1], got %v", ErrInvalidConfig, c.MinConfidence)
	}
	candidates, err := parseLanguages(c.Candidates)
	if err != nil {
		return nil, nil, err
	}
	if len(candidates) < 2 {
		return nil, nil, fmt.Errorf("%w: at least two candidate languages are required", ErrInvalidConfig)
	}
	allowedList, err := parseLanguages(c.Allowed)
	if err != nil {
		return nil, nil, err
	}
	if len(allowedList) == 0 {
		return nil, nil, fmt.Errorf("%w: allowed languages must not be empty", ErrInvalidConfig)
	}
	allowed := make(map[lingua.Language]bool, len(allowedList))
	for _, lang := range allowedList {
		allowed[lang] = true
	}
	return candidates, allowed, nil
}

// NewLanguageDetector builds a lingua detector over the configured candidates.
// Detectors are safe for concurrent use and can be shared by every worker.
func NewLanguageDetector(config LanguageConfig) (lingua.LanguageDetector, error) {
	candidates, _, err := config.validate()
	if err != nil {
		return nil, err
	}
	return lingua.NewLanguageDetectorBuilder().FromLanguages(candidates...).Build(), nil
}

// LanguageFilter keeps documents written in an allowed language
type LanguageFilter struct {
	config   LanguageConfig
	detector lingua.LanguageDetector
	allowed  map[lingua.Language]bool
	stats    *Stats
}

// NewLanguageFilter builds the stage. A nil detector is built from config.
func NewLanguageFilter(config LanguageConfig, detector lingua.LanguageDetector) (*LanguageFilter, error) {
	_, allowed, err := config.validate()
	if err != nil {
		return nil, err
	}
	if detector == nil {
		if detector, err = NewLanguageDetector(config); err != nil {
			return nil, err
		}
	}
	return &LanguageFilter{config: config, detector: detector, allowed: allowed, stats: NewStats()}, nil
}

func (f *LanguageFilter) Name() string {
	return "language"
}

func (f *LanguageFilter) Description() string {
	return "Keeps documents whose detected language is allowed with enough confidence"
}

func (f *LanguageFilter) Stats() *Stats {
	return f.stats
}

// Filter records the detected language and its confidence, then keeps the
// document only when that language is allowed. An allowed language below
// MinConfidence counts as undetected.
func (f *LanguageFilter) Filter(doc *document.Document) Verdict {
	lang, score := f.detect(doc.Content.Text)
	if lang == lingua.Unknown {
		f.stats.Inc("language_undetected")
		return Reject("language_undetected")
	}

	meta := doc.Meta()
	meta[document.MetaLanguage] = strings.ToLower(lang.IsoCode639_1().String())
	meta[document.MetaLanguageScore] = score
	f.stats.Inc("language-" + strings.ToLower(lang.IsoCode639_1().String()))

	if !f.allowed[lang] {
		f.stats.Inc("language_mismatch")
		return Reject("language_mismatch")
	}
	if score < f.config.MinConfidence {
		f.stats.Inc("language_undetected")
		return Reject("language_undetected")
	}
	return Accept()
}

func (f *LanguageFilter) detect(text string) (lingua.Language, float64) {
	values := f.detector.ComputeLanguageConfidenceValues(text)
	if len(values) == 0 || values[0].Value() == 0 {
		return lingua.Unknown, 0
	}
	return values[0].Language(), values[0].Value()
}
