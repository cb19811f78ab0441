package filters

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/Fatnaoui/crawler-project/pkg/document"
)

const (
	// ReasonEmptyAfterNormalization is emitted when nothing but whitespace survives normalization
	ReasonEmptyAfterNormalization = "empty_after_normalization"
)

// NormalizationConfig toggles each Arabic normalization step
type NormalizationConfig struct {
	ComposeNFC           bool `yaml:"compose_nfc" json:"compose_nfc"`
	RemoveDiacritics     bool `yaml:"remove_diacritics" json:"remove_diacritics"`
	NormalizeArabicChars bool `yaml:"normalize_arabic_chars" json:"normalize_arabic_chars"`
	RemoveZeroWidth      bool `yaml:"remove_zero_width" json:"remove_zero_width"`
	RemoveTatweel        bool `yaml:"remove_tatweel" json:"remove_tatweel"`
	NormalizeNumbers     bool `yaml:"normalize_numbers" json:"normalize_numbers"`
	NormalizeWhitespace  bool `yaml:"normalize_whitespace" json:"normalize_whitespace"`
	PreserveNewlines     bool `yaml:"preserve_newlines" json:"preserve_newlines"`
}

// DefaultNormalizationConfig returns the defaults used for Darija crawls
func DefaultNormalizationConfig() NormalizationConfig {
	return NormalizationConfig{
		ComposeNFC:           true,
		RemoveDiacritics:     true,
		NormalizeArabicChars: true,
		RemoveZeroWidth:      true,
		RemoveTatweel:        true,
		NormalizeNumbers:     false,
		NormalizeWhitespace:  true,
		PreserveNewlines:     true,
	}
}

var (
	diacriticsRegex      = regexp.MustCompile(`[\x{064B}-\x{065F}\x{0670}]`)
	alefVariantsRegex    = regexp.MustCompile(`[\x{0622}\x{0623}\x{0625}\x{0671}]`)
	zeroWidthRegex       = regexp.MustCompile(`[\x{200B}-\x{200D}\x{FEFF}\x{200E}\x{200F}\x{202A}-\x{202E}\x{2066}-\x{2069}]`)
	horizontalSpaceRegex = regexp.MustCompile(`[ \t]+`)
	anySpaceRegex        = regexp.MustCompile(`[\s\v\x{1C}-\x{1F}\p{Z}\x{0085}]+`)

	easternDigits = strings.NewReplacer(
		"٠", "0", "١", "1", "٢", "2", "٣", "3", "٤", "4",
		"٥", "5", "٦", "6", "٧", "7", "٨", "8", "٩", "9",
	)
)

const (
	alef    = "ا"
	tatweel = "ـ"
)

// ArabicNormalizer canonicalizes Arabic script before scoring.
// Steps run in a fixed order: diacritics, alef variants, zero-width marks,
// tatweel, digits, whitespace.
type ArabicNormalizer struct {
	config NormalizationConfig
	stats  *Stats
}

// NewArabicNormalizer creates a normalizer stage
func NewArabicNormalizer(config NormalizationConfig) *ArabicNormalizer {
	return &ArabicNormalizer{config: config, stats: NewStats()}
}

func (n *ArabicNormalizer) Name() string {
	return "arabic_normalization"
}

func (n *ArabicNormalizer) Description() string {
	return "Strips diacritics, zero-width marks and tatweel, unifies alef variants and collapses whitespace"
}

func (n *ArabicNormalizer) Stats() *Stats {
	return n.stats
}

// Normalize applies the configured steps to text
func (n *ArabicNormalizer) Normalize(text string) string {
	if n.config.ComposeNFC {
		text = norm.NFC.String(text)
	}
	if n.config.RemoveDiacritics {
		text = diacriticsRegex.ReplaceAllString(text, "")
	}
	if n.config.NormalizeArabicChars {
		text = alefVariantsRegex.ReplaceAllString(text, alef)
	}
	if n.config.RemoveZeroWidth {
		text = zeroWidthRegex.ReplaceAllString(text, "")
	}
	if n.config.RemoveTatweel {
		text = strings.ReplaceAll(text, tatweel, "")
	}
	if n.config.NormalizeNumbers {
		text = easternDigits.Replace(text)
	}
	if n.config.NormalizeWhitespace {
		if n.config.PreserveNewlines {
			text = horizontalSpaceRegex.ReplaceAllString(text, " ")
		} else {
			text = anySpaceRegex.ReplaceAllString(text, " ")
		}
		text = strings.TrimFunc(text, isSpace)
	}
	// Stripped marks may have blocked composition on the first pass
	if n.config.ComposeNFC {
		text = norm.NFC.String(text)
	}
	return text
}

// isSpace also treats the ASCII separators U+001C-U+001F as whitespace
func isSpace(r rune) bool {
	return unicode.IsSpace(r) || (r >= 0x1C && r <= 0x1F)
}

// Filter normalizes doc in place. The pre-normalization text is recorded once
// under document.MetaOriginalText and never overwritten.
func (n *ArabicNormalizer) Filter(doc *document.Document) Verdict {
	meta := doc.Meta()
	if _, ok := meta[document.MetaOriginalText]; !ok {
		meta[document.MetaOriginalText] = doc.Content.Text
	}

	doc.Content.Text = n.Normalize(doc.Content.Text)

	if strings.TrimFunc(doc.Content.Text, isSpace) == "" {
		n.stats.Inc(ReasonEmptyAfterNormalization)
		return Reject(ReasonEmptyAfterNormalization)
	}
	return Accept()
}
