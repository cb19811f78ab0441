package filters

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGopherQualityFilter(t *testing.T) {
	tests := []struct {
		name     string
		config   GopherConfig
		text     string
		accepted bool
		reason   string
	}{
		{
			name:   "NoWords",
			config: DefaultGopherConfig(),
			text:   " \n\t ",
			reason: "gopher_no_words",
		},
		{
			name:   "ShortDoc",
			config: DefaultGopherConfig(),
			text:   "a b c",
			reason: "gopher_short_doc",
		},
		{
			name:   "LongDoc",
			config: GopherConfig{MaxDocWords: Int(3)},
			text:   "wahed jouj tlata reb3a",
			reason: "gopher_long_doc",
		},
		{
			name:   "BelowAverageLength",
			config: GopherConfig{MinAvgWordLength: Float(3)},
			text:   "a b c d",
			reason: "gopher_below_avg_threshold",
		},
		{
			name:   "AboveAverageLength",
			config: GopherConfig{MaxAvgWordLength: Float(5)},
			text:   "abcdefghij klmnopqrst",
			reason: "gopher_above_avg_threshold",
		},
		{
			name:   "TooManyHashes",
			config: GopherConfig{MaxSymbolWordRatio: Float(0.1)},
			text:   "#maroc #darija #casa word",
			reason: "gopher_too_many_hashes",
		},
		{
			name:   "TooManyEllipsis",
			config: GopherConfig{MaxSymbolWordRatio: Float(0.1)},
			text:   "wait... what… really...",
			reason: "gopher_too_many_ellipsis",
		},
		{
			name:   "TooManyBullets",
			config: GopherConfig{MaxBulletLinesRatio: Float(0.5)},
			text:   "- wahed\n• jouj\ntlata",
			reason: "gopher_too_many_bullets",
		},
		{
			name:   "TooManyEndEllipsis",
			config: GopherConfig{MaxEllipsisLinesRatio: Float(0.3)},
			text:   "kan ya makan...\nf qdim zzman…\nwahed rajel",
			reason: "gopher_too_many_end_ellipsis",
		},
		{
			name:   "TooManyNonAlpha",
			config: GopherConfig{MaxNonAlphaWordsRatio: Float(0.5)},
			text:   "123 456 789 dirham",
			reason: "gopher_too_many_non_alpha",
		},
		{
			name:   "BelowAlphaThreshold",
			config: GopherConfig{AlphaMode: AlphaModeAlphaMin, MinAlphaWordsRatio: Float(0.5)},
			text:   "123 456 789 dirham",
			reason: "gopher_below_alpha_threshold",
		},
		{
			name:     "ArabicWordsAreAlpha",
			config:   GopherConfig{MaxNonAlphaWordsRatio: Float(0.5)},
			text:     "واش نتا مزيان 100",
			accepted: true,
		},
		{
			name:     "CleanText",
			config:   DefaultGopherConfig(),
			text:     cleanDarija,
			accepted: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewGopherQualityFilter(tt.config, nil)
			require.NoError(t, err)

			v := f.Filter(newDoc(tt.text))
			assert.Equal(t, tt.accepted, v.Accepted(), "verdict %s", v)
			if !tt.accepted {
				assert.Equal(t, tt.reason, v.Reason())
				assert.Equal(t, int64(1), f.Stats().Get(tt.reason))
			}
		})
	}
}

func TestGopherMinDocWordsBoundary(t *testing.T) {
	f, err := NewGopherQualityFilter(GopherConfig{MinDocWords: Int(15)}, nil)
	require.NoError(t, err)

	words := strings.Fields(cleanDarija)
	require.GreaterOrEqual(t, len(words), 15)

	exact := strings.Join(words[:15], " ") + " ..."
	v := f.Filter(newDoc(exact))
	assert.True(t, v.Accepted(), "symbol tokens do not count, 15 words must pass: %s", v)

	short := strings.Join(words[:14], " ")
	v = f.Filter(newDoc(short))
	assert.Equal(t, "gopher_short_doc", v.Reason())
}

// Every check is switched off, either by nil or by zero. Nothing but an
// empty word list may reject.
func TestGopherDisabledThresholdsNeverReject(t *testing.T) {
	configs := map[string]GopherConfig{
		"nil": {},
		"zero": {
			MinDocWords:           Int(0),
			MaxDocWords:           Int(0),
			MinAvgWordLength:      Float(0),
			MaxAvgWordLength:      Float(0),
			MaxSymbolWordRatio:    Float(0),
			MaxBulletLinesRatio:   Float(0),
			MaxEllipsisLinesRatio: Float(0),
			MaxNonAlphaWordsRatio: Float(0),
		},
		"zero alpha min": {AlphaMode: AlphaModeAlphaMin, MinAlphaWordsRatio: Float(0)},
	}
	inputs := []string{
		"a",
		"# # # ###",
		"- x...\n- y...\n- z…",
		"123 456 !!! ...",
		strings.Repeat("supercalifragilistic ", 3),
	}

	for name, cfg := range configs {
		f, err := NewGopherQualityFilter(cfg, nil)
		require.NoError(t, err, name)
		for _, in := range inputs {
			v := f.Filter(newDoc(in))
			assert.True(t, v.Accepted(), "%s config rejected %q with %s", name, in, v)
		}
	}
}

func TestGopherConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		config GopherConfig
	}{
		{"MinAboveMax", GopherConfig{MinDocWords: Int(50), MaxDocWords: Int(10)}},
		{"AvgMinAboveMax", GopherConfig{MinAvgWordLength: Float(10), MaxAvgWordLength: Float(3)}},
		{"NegativeRatio", GopherConfig{MaxSymbolWordRatio: Float(-0.1)}},
		{"UnknownAlphaMode", GopherConfig{AlphaMode: "loose"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGopherQualityFilter(tt.config, nil)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"Empty", "", nil},
		{"Single", "salam", []string{"salam"}},
		{"TrailingNewline", "a\nb\n", []string{"a", "b"}},
		{"CRLF", "a\r\nb\rc", []string{"a", "b", "c"}},
		{"BlankLineKept", "a\n\nb", []string{"a", "", "b"}},
		{"UnicodeSeparators", "a\u2028b\u0085c", []string{"a", "b", "c"}},
		{"FormFeed", "a\fb", []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SplitLines(tt.input))
		})
	}
}

func BenchmarkGopherQualityFilter(b *testing.B) {
	f, err := NewGopherQualityFilter(DefaultGopherConfig(), nil)
	require.NoError(b, err)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f.Filter(newDoc(cleanDarija))
	}
}
