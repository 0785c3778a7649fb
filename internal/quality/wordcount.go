// Package quality implements the content quality gates applied before
// an item is considered complete.
package quality

import (
	"regexp"
	"strings"

	"github.com/Papalexios/ai-seo-rank/internal/domain"
)

var tagRe = regexp.MustCompile(`<[^>]*>`)

// WordCount strips all markup from html and counts whitespace-separated
// words.
func WordCount(html string) int {
	text := tagRe.ReplaceAllString(html, " ")
	return len(strings.Fields(text))
}

// EnforceWordCount returns the word count of html, or a
// *domain.WordCountError when the count falls outside [min, max]. The
// error carries the offending content so a human can still review and
// publish it; the gate downgrades the item but never discards output.
func EnforceWordCount(html string, min, max int) (int, error) {
	count := WordCount(html)

	if count < min {
		return count, &domain.WordCountError{
			Kind:    domain.WordCountTooShort,
			Count:   count,
			Min:     min,
			Max:     max,
			Content: html,
		}
	}
	if count > max {
		return count, &domain.WordCountError{
			Kind:    domain.WordCountTooLong,
			Count:   count,
			Min:     min,
			Max:     max,
			Content: html,
		}
	}

	return count, nil
}
