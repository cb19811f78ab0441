package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsArabic(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		r    rune
		want bool
	}{
		{"alef", 'ا', true},
		{"block start", 0x0600, true},
		{"block end", 0x06FF, true},
		{"supplement", 0x0760, true},
		{"extended-a", 0x08A0, true},
		{"extended-a end", 0x08FF, true},
		{"gap before supplement", 0x0700, false},
		{"gap after supplement", 0x0780, false},
		{"arabic comma", '،', true},
		{"latin", 'a', false},
		{"digit", '7', false},
		{"presentation form", 0xFE8D, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsArabic(tt.r))
		})
	}
}

func TestIsAlpha(t *testing.T) {
	t.Parallel()

	assert.True(t, IsAlpha('b'))
	assert.True(t, IsAlpha('é'))
	assert.True(t, IsAlpha('ب'))
	// Fatha is a mark, not a letter, but it is Arabic script.
	assert.True(t, IsAlpha('َ'))
	assert.False(t, IsAlpha('3'))
	assert.False(t, IsAlpha('#'))
}

func TestIsPunctuation(t *testing.T) {
	t.Parallel()

	for _, r := range []rune{'.', ',', '!', '?', '#', '…', '«', '»', '؟', '،', '؛', '$', '\x01'} {
		assert.True(t, IsPunctuation(r), "%q", r)
	}
	for _, r := range []rune{'a', 'ب', '5', ' '} {
		assert.False(t, IsPunctuation(r), "%q", r)
	}
}

func TestIsSymbolOnly(t *testing.T) {
	t.Parallel()

	assert.True(t, IsSymbolOnly("..."))
	assert.True(t, IsSymbolOnly("؟!"))
	assert.True(t, IsSymbolOnly(""))
	assert.False(t, IsSymbolOnly("a."))
	assert.False(t, IsSymbolOnly("2024"))
	assert.False(t, IsSymbolOnly("واش"))
}

func TestHasAlpha(t *testing.T) {
	t.Parallel()

	assert.True(t, HasAlpha("123abc"))
	assert.True(t, HasAlpha("٣ب"))
	assert.False(t, HasAlpha("1234"))
	assert.False(t, HasAlpha("#!"))
}

func TestArabicRatio(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.0, ArabicRatio("123 !!"))
	assert.Equal(t, 1.0, ArabicRatio("سلام"))
	assert.Equal(t, 0.0, ArabicRatio("salam"))
	assert.InDelta(t, 0.5, ArabicRatio("ab سل"), 1e-9)
}
