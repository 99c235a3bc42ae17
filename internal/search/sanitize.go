package search

import (
	"strings"
	"unicode"
)

// Sanitize turns free text into a prefix match expression. Every rune that is
// not a letter, number, underscore or space becomes a space, and each remaining
// word gets a trailing "*". Words are joined by spaces, which the store treats
// as AND. It returns "" when no words remain.
func Sanitize(query string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || r == '_' || unicode.IsSpace(r) {
			return r
		}
		return ' '
	}, query)

	words := strings.Fields(cleaned)
	for i, w := range words {
		words[i] = w + "*"
	}
	return strings.Join(words, " ")
}
