package ranker

import (
	"math"
	"slices"
)

const (
	// MaxResultDocumentCount caps every result list.
	MaxResultDocumentCount = 5
	// RelevanceEpsilon is the distance under which two relevances tie and
	// rating decides the order.
	RelevanceEpsilon = 1e-6
)

type Document struct {
	ID        int     `json:"id"`
	Relevance float64 `json:"relevance"`
	Rating    int     `json:"rating"`
}

// IDF is ln(totalDocs/docFreq). docFreq must be positive; callers skip
// terms with no postings.
func IDF(totalDocs int, docFreq int) float64 {
	return math.Log(float64(totalDocs) / float64(docFreq))
}

// Compare orders a before b when it is more relevant, or, within
// RelevanceEpsilon, when it has the higher rating.
func Compare(a, b Document) int {
	if math.Abs(a.Relevance-b.Relevance) < RelevanceEpsilon {
		switch {
		case a.Rating > b.Rating:
			return -1
		case a.Rating < b.Rating:
			return 1
		}
		return 0
	}
	if a.Relevance > b.Relevance {
		return -1
	}
	return 1
}

// Rank sorts docs in place and truncates to MaxResultDocumentCount. The sort
// is stable, so full ties keep the input order.
func Rank(docs []Document) []Document {
	slices.SortStableFunc(docs, Compare)
	if len(docs) > MaxResultDocumentCount {
		docs = docs[:MaxResultDocumentCount]
	}
	return docs
}
