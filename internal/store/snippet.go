package store

import (
	"strings"
	"unicode"
)

// span is a byte range [start, end) within a text.
type span struct {
	start, end int
}

// wordSpans splits text into word tokens the way unicode61 does: runs of
// letters, digits and underscores.
func wordSpans(text string) []span {
	var words []span
	start := -1
	for i, r := range text {
		isWord := unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
		switch {
		case isWord && start < 0:
			start = i
		case !isWord && start >= 0:
			words = append(words, span{start, i})
			start = -1
		}
	}
	if start >= 0 {
		words = append(words, span{start, len(text)})
	}
	return words
}

// buildSnippet renders the window of at most cfg.SnippetTokens words that
// contains the most matches. Matched words are wrapped in the highlight
// markers, and elided text on either side is replaced with cfg.Ellipsis.
func buildSnippet(text string, matches []span, cfg Config) string {
	words := wordSpans(text)
	if len(words) == 0 {
		return text
	}

	hit := make([]bool, len(words))
	for i, w := range words {
		for _, m := range matches {
			if m.start < w.end && w.start < m.end {
				hit[i] = true
				break
			}
		}
	}

	n := cfg.SnippetTokens
	if n <= 0 || n > len(words) {
		n = len(words)
	}

	// sliding window; earliest window wins ties
	best, bestCount, count := 0, 0, 0
	for i := 0; i < len(words); i++ {
		if hit[i] {
			count++
		}
		if i >= n && hit[i-n] {
			count--
		}
		if i >= n-1 && count > bestCount {
			best, bestCount = i-n+1, count
		}
	}
	// center the matches within the window
	if bestCount > 0 {
		lo, hi := -1, -1
		for i := best; i < best+n; i++ {
			if hit[i] {
				if lo < 0 {
					lo = i
				}
				hi = i
			}
		}
		best = lo - (n-(hi-lo+1))/2
		if best > len(words)-n {
			best = len(words) - n
		}
		if best < 0 {
			best = 0
		}
	}
	first, last := best, best+n-1

	var sb strings.Builder
	pos := 0
	if first > 0 {
		sb.WriteString(cfg.Ellipsis)
		pos = words[first].start
	}
	for i := first; i <= last; i++ {
		w := words[i]
		sb.WriteString(text[pos:w.start])
		if hit[i] {
			sb.WriteString(cfg.HighlightStart)
			sb.WriteString(text[w.start:w.end])
			sb.WriteString(cfg.HighlightEnd)
		} else {
			sb.WriteString(text[w.start:w.end])
		}
		pos = w.end
	}
	if last < len(words)-1 {
		sb.WriteString(cfg.Ellipsis)
	} else {
		sb.WriteString(text[pos:])
	}
	return sb.String()
}
