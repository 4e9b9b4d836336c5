package tokenizer

import (
	"slices"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-server/pkg/errors"
)

// StopWords is an immutable set of terms excluded from indexing and
// querying. The zero value is an empty set.
type StopWords struct {
	set map[string]struct{}
}

// NewStopWords builds a set from words, ignoring empty strings. A word with a
// control character is rejected with InvalidArgument.
func NewStopWords(words []string) (StopWords, error) {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		if w == "" {
			continue
		}
		if !IsValidWord(w) {
			return StopWords{}, apperrors.InvalidArgument("stop word %q contains control characters", w)
		}
		set[w] = struct{}{}
	}
	return StopWords{set: set}, nil
}

// ParseStopWords builds a set from a space-separated string.
func ParseStopWords(text string) (StopWords, error) {
	return NewStopWords(SplitIntoWords(text))
}

func (s StopWords) Contains(word string) bool {
	_, ok := s.set[word]
	return ok
}

func (s StopWords) Len() int {
	return len(s.set)
}

// Words returns the set in ascending order.
func (s StopWords) Words() []string {
	words := make([]string, 0, len(s.set))
	for w := range s.set {
		words = append(words, w)
	}
	slices.Sort(words)
	return words
}
