package segment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWords(t *testing.T) {
	t.Parallel()

	seg := New()
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", nil},
		{"whitespace only", " \n\t ", []string{}},
		{"latin", "a b c", []string{"a", "b", "c"}},
		{"punctuation split", "Salam, labas?", []string{"Salam", ",", "labas", "?"}},
		{"ellipsis run", "wait...", []string{"wait", "..."}},
		{"apostrophe joins", "l'école", []string{"l'école"}},
		{"hyphen joins", "bla-bla", []string{"bla-bla"}},
		{"decimal joins", "3.5 dh", []string{"3.5", "dh"}},
		{"trailing hyphen", "x- y", []string{"x", "-", "y"}},
		{"arabic", "واش نتا مزيان؟", []string{"واش", "نتا", "مزيان", "؟"}},
		{"arabic comma", "أنا، نتا", []string{"أنا", "،", "نتا"}},
		{"hash", "#tag", []string{"#", "tag"}},
		{"diacritics stay in word", "كَتَبَ", []string{"كَتَبَ"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := seg.Words(tt.input)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			assert.Equal(t, len(tt.want), len(got))
			if len(tt.want) > 0 {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestSentences(t *testing.T) {
	t.Parallel()

	seg := New()
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "   ", nil},
		{"single no punct", "hello world", []string{"hello world"}},
		{"two latin", "First one. Second one.", []string{"First one.", "Second one."}},
		{"lowercase continuation", "e.g. this stays", []string{"e.g. this stays"}},
		{"arabic question", "واش جيتي؟ اه جيت.", []string{"واش جيتي؟", "اه جيت."}},
		{"newline breaks", "line one\nline two", []string{"line one", "line two"}},
		{"blank lines skipped", "a\n\n\nb", []string{"a", "b"}},
		{"cluster", "Really?! Yes.", []string{"Really?!", "Yes."}},
		{"closing quote", `He said "go." Then left.`, []string{`He said "go."`, "Then left."}},
		{"decimal no break", "It costs 3.5 dirhams.", []string{"It costs 3.5 dirhams."}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, seg.Sentences(tt.input))
		})
	}
}

func TestDefaultIsRuleSegmenter(t *testing.T) {
	_, ok := Default.(*RuleSegmenter)
	assert.True(t, ok)
}

func BenchmarkWords(b *testing.B) {
	seg := New()
	text := "هاد النص فيه بزاف ديال الكلمات، و fih chi klmat b l'latin. Wach mzyan?"
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		seg.Words(text)
	}
}
