package quality_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Papalexios/ai-seo-rank/internal/domain"
	"github.com/Papalexios/ai-seo-rank/internal/quality"
)

func htmlWithWords(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = "word"
	}
	return "<p>" + strings.Join(words, " ") + "</p>"
}

func TestWordCount_StripsMarkup(t *testing.T) {
	html := `<h2>Two words</h2><p>And <strong>three</strong> more</p>`
	require.Equal(t, 5, quality.WordCount(html))
}

func TestEnforceWordCount_Boundaries(t *testing.T) {
	const min, max = 10, 20

	tests := []struct {
		name     string
		words    int
		wantKind domain.WordCountKind
	}{
		{name: "exactly min passes", words: min},
		{name: "exactly max passes", words: max},
		{name: "min minus one is too short", words: min - 1, wantKind: domain.WordCountTooShort},
		{name: "max plus one is too long", words: max + 1, wantKind: domain.WordCountTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count, err := quality.EnforceWordCount(htmlWithWords(tt.words), min, max)
			require.Equal(t, tt.words, count)

			if tt.wantKind == "" {
				require.NoError(t, err)
				return
			}

			var wcErr *domain.WordCountError
			require.ErrorAs(t, err, &wcErr)
			require.Equal(t, tt.wantKind, wcErr.Kind)
			require.Equal(t, tt.words, wcErr.Count)
			require.NotEmpty(t, wcErr.Content, "gate must preserve the offending content")
		})
	}
}
