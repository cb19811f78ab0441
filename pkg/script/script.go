// Package script provides rune-level predicates shared by the quality filters:
// Arabic-script detection, alphabetic tests that cover Arabic, and the
// punctuation set used to tell symbol-only tokens from words.
//
// All functions are pure and safe for concurrent use.
package script

import (
	"unicode"
)

// arabicRanges lists the Arabic Unicode blocks recognised as Arabic script.
var arabicRanges = [...]struct{ lo, hi rune }{
	{0x0600, 0x06FF}, // Arabic
	{0x0750, 0x077F}, // Arabic Supplement
	{0x08A0, 0x08FF}, // Arabic Extended-A
}

// IsArabic reports whether r falls in one of the Arabic script blocks.
func IsArabic(r rune) bool {
	for _, rg := range arabicRanges {
		if r >= rg.lo && r <= rg.hi {
			return true
		}
	}
	return false
}

// IsAlpha reports whether r is a letter in any script or an Arabic-script rune.
func IsAlpha(r rune) bool {
	return unicode.IsLetter(r) || IsArabic(r)
}

// IsPunctuation reports whether r belongs to the punctuation set: Unicode
// punctuation and symbols plus control characters. A token made only of such
// runes is treated as a symbol, not a word.
func IsPunctuation(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSymbol(r) || unicode.IsControl(r)
}

// HasAlpha reports whether s contains at least one alphabetic rune.
func HasAlpha(s string) bool {
	for _, r := range s {
		if IsAlpha(r) {
			return true
		}
	}
	return false
}

// IsSymbolOnly reports whether every rune of s is in the punctuation set.
// The empty string counts as symbol-only.
func IsSymbolOnly(s string) bool {
	for _, r := range s {
		if !IsPunctuation(r) {
			return false
		}
	}
	return true
}

// ArabicRatio returns the share of letters in s that are Arabic script.
// Returns 0 when s has no letters.
func ArabicRatio(s string) float64 {
	var letters, arabic int
	for _, r := range s {
		if !IsAlpha(r) {
			continue
		}
		letters++
		if IsArabic(r) {
			arabic++
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(arabic) / float64(letters)
}
