// Package tokenizer splits raw text into space-delimited terms and validates
// them. Terms are exact byte sequences: no case folding, no stemming.
package tokenizer

import (
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-server/pkg/errors"
)

// SplitIntoWords breaks text on the space character. Runs of spaces never
// produce empty words. The returned words share memory with text.
func SplitIntoWords(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return r == ' '
	})
}

// IsValidWord reports whether word is free of control characters (bytes
// below the space character).
func IsValidWord(word string) bool {
	for i := 0; i < len(word); i++ {
		if word[i] < ' ' {
			return false
		}
	}
	return true
}

// Tokenize splits text into words, rejects the whole text with an
// InvalidWord error if any word contains a control character, and drops stop
// words from the result.
func Tokenize(text string, stopWords StopWords) ([]string, error) {
	words := SplitIntoWords(text)
	terms := make([]string, 0, len(words))
	for _, word := range words {
		if !IsValidWord(word) {
			return nil, apperrors.InvalidWord(word)
		}
		if stopWords.Contains(word) {
			continue
		}
		terms = append(terms, word)
	}
	return terms, nil
}
