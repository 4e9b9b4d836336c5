// Package parser turns a raw query into plus (required) and minus (excluded)
// term sets.
package parser

import (
	"slices"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/search-server/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-server/pkg/errors"
)

// QueryWord is one parsed query token.
type QueryWord struct {
	Term  string
	Minus bool
	Stop  bool
}

type QueryPlan struct {
	PlusTerms  []string
	MinusTerms []string
	RawQuery   string
}

// Empty reports whether the plan has no plus terms and therefore matches
// nothing.
func (p *QueryPlan) Empty() bool {
	return len(p.PlusTerms) == 0
}

// ParseQueryWord classifies a single token. A leading '-' marks an
// exclusion; the remainder must be non-empty, must not start with another
// '-', and must be free of control characters.
func ParseQueryWord(token string, stopWords tokenizer.StopWords) (QueryWord, error) {
	if token == "" {
		return QueryWord{}, apperrors.InvalidQuery("query word is empty")
	}
	word := token
	minus := false
	if word[0] == '-' {
		minus = true
		word = word[1:]
	}
	if word == "" || word[0] == '-' || !tokenizer.IsValidWord(word) {
		return QueryWord{}, apperrors.InvalidQuery("query word %q is invalid", token)
	}
	return QueryWord{
		Term:  word,
		Minus: minus,
		Stop:  stopWords.Contains(word),
	}, nil
}

// Parse builds a plan with sorted, duplicate-free plus and minus terms. Stop
// words are dropped whether or not they are negated. Any malformed token
// fails the whole parse.
func Parse(query string, stopWords tokenizer.StopWords) (*QueryPlan, error) {
	plan, err := ParseRaw(query, stopWords)
	if err != nil {
		return nil, err
	}
	slices.Sort(plan.PlusTerms)
	plan.PlusTerms = slices.Compact(plan.PlusTerms)
	slices.Sort(plan.MinusTerms)
	plan.MinusTerms = slices.Compact(plan.MinusTerms)
	return plan, nil
}

// ParseRaw is Parse without sorting or de-duplication. Terms keep their
// input order and may repeat.
func ParseRaw(query string, stopWords tokenizer.StopWords) (*QueryPlan, error) {
	plan := &QueryPlan{
		PlusTerms:  make([]string, 0),
		MinusTerms: make([]string, 0),
		RawQuery:   query,
	}
	if strings.TrimSpace(query) == "" {
		return plan, nil
	}
	for _, token := range tokenizer.SplitIntoWords(query) {
		word, err := ParseQueryWord(token, stopWords)
		if err != nil {
			return nil, err
		}
		if word.Stop {
			continue
		}
		if word.Minus {
			plan.MinusTerms = append(plan.MinusTerms, word.Term)
		} else {
			plan.PlusTerms = append(plan.PlusTerms, word.Term)
		}
	}
	return plan, nil
}
