// Package segment splits text into words and sentences for the quality filters.
//
// Filters depend on the Segmenter interface only, so a language-specific
// segmenter can be swapped in without touching filter code. The rule-based
// implementation handles mixed Arabic/Latin text: Arabic punctuation
// (، ؛ ؟ ۔) is recognised, and since Arabic has no letter case a sentence
// break only requires terminal punctuation followed by whitespace and a rune
// that is not a lowercase Latin letter.
//
// Known limitations:
//
//   - No abbreviation list; "Dr. Ahmed" splits after "Dr.".
//   - Quotes and brackets are not tracked beyond closing runes directly after
//     terminal punctuation.
package segment

import (
	"strings"
	"unicode"

	"github.com/Fatnaoui/crawler-project/pkg/script"
)

// Segmenter splits text into word and sentence units.
type Segmenter interface {
	// Words returns word and punctuation tokens in order. Punctuation runs
	// are returned as their own tokens so callers can tell symbols from words.
	Words(text string) []string
	// Sentences returns trimmed, non-empty sentences in order.
	Sentences(text string) []string
}

// RuleSegmenter is the default Unicode-class segmenter.
// It is stateless and safe for concurrent use.
type RuleSegmenter struct{}

// New returns a rule-based segmenter.
func New() *RuleSegmenter {
	return &RuleSegmenter{}
}

// Default is the segmenter filters fall back to when none is configured.
var Default Segmenter = New()

// Words splits text into tokens. Letters, marks and digits form words;
// apostrophes, hyphens and underscores join two word runes; a dot or comma
// joins two digits. Runs of the same punctuation rune ("...", "!!") form one
// token, and whitespace is dropped.
func (s *RuleSegmenter) Words(text string) []string {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	words := make([]string, 0, len(runes)/5+1)

	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case script.IsPunctuation(r):
			j := i + 1
			for j < len(runes) && runes[j] == r {
				j++
			}
			words = append(words, string(runes[i:j]))
			i = j
		default:
			j := i + 1
			for j < len(runes) {
				if isWordRune(runes[j]) {
					j++
					continue
				}
				if isJoinable(runes, j) {
					j += 2
					continue
				}
				break
			}
			words = append(words, string(runes[i:j]))
			i = j
		}
	}
	return words
}

// Sentences splits text at newlines and at clusters of terminal punctuation
// followed by whitespace and a sentence start.
func (s *RuleSegmenter) Sentences(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	runes := []rune(text)
	var sentences []string
	start := 0

	emit := func(end int) {
		if sent := strings.TrimSpace(string(runes[start:end])); sent != "" {
			sentences = append(sentences, sent)
		}
		start = end
	}

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '\n' {
			emit(i)
			start = i + 1
			continue
		}
		if !isTerminal(r) {
			continue
		}
		j := i + 1
		for j < len(runes) && (isTerminal(runes[j]) || isCloser(runes[j])) {
			j++
		}
		if j == len(runes) || (unicode.IsSpace(runes[j]) && startsSentence(runes, j)) {
			emit(j)
		}
		i = j - 1
	}
	emit(len(runes))
	return sentences
}

func isWordRune(r rune) bool {
	return !unicode.IsSpace(r) && !script.IsPunctuation(r)
}

// isJoinable reports whether runes[i] is a connector sitting between two word
// runes (l'école, bla-bla, 3.5, 1,000).
func isJoinable(runes []rune, i int) bool {
	if i == 0 || i+1 >= len(runes) {
		return false
	}
	prev, next := runes[i-1], runes[i+1]
	switch runes[i] {
	case '\'', '’', '-', '_':
		return isWordRune(prev) && isWordRune(next)
	case '.', ',', '٫', '٬':
		return unicode.IsDigit(prev) && unicode.IsDigit(next)
	}
	return false
}

func isTerminal(r rune) bool {
	switch r {
	case '.', '!', '?', '؟', '…', '۔':
		return true
	}
	return false
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '»', '”', '’':
		return true
	}
	return false
}

// startsSentence reports whether, after the whitespace at pos, the next rune
// can open a sentence. Only a lowercase Latin continuation keeps the sentence.
func startsSentence(runes []rune, pos int) bool {
	for i := pos; i < len(runes); i++ {
		if unicode.IsSpace(runes[i]) {
			continue
		}
		return !unicode.IsLower(runes[i])
	}
	return true
}
