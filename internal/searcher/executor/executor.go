// Package executor scores queries against the index and returns the top
// ranked documents. Scoring runs either on the calling goroutine or fanned out
// across a bounded worker pool; both produce the same ranking.
package executor

import (
	"context"
	"maps"
	"slices"
	"time"

	"github.com/Adithya-Monish-Kumar-K/search-server/internal/execution"
	"github.com/Adithya-Monish-Kumar-K/search-server/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/search-server/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/search-server/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/search-server/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/search-server/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/search-server/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/search-server/pkg/metrics"
)

const defaultAccumulatorShards = 100

// Predicate decides whether a document may contribute to a result. Under
// the parallel policy it is called from several goroutines at once.
type Predicate func(id int, status index.Status, rating int) bool

// StatusIs accepts documents with the given status.
func StatusIs(status index.Status) Predicate {
	return func(_ int, s index.Status, _ int) bool {
		return s == status
	}
}

// Any accepts every document.
func Any(int, index.Status, int) bool {
	return true
}

type Executor struct {
	engine  *indexer.Engine
	shards  int
	metrics *metrics.Metrics
}

// New returns an Executor over engine. m may be nil.
func New(engine *indexer.Engine, cfg config.SearchConfig, m *metrics.Metrics) *Executor {
	shards := cfg.AccumulatorShards
	if shards <= 0 {
		shards = defaultAccumulatorShards
	}
	return &Executor{
		engine:  engine,
		shards:  shards,
		metrics: m,
	}
}

// FindTopDocuments parses rawQuery and returns at most
// ranker.MaxResultDocumentCount documents accepted by pred, best first.
func (e *Executor) FindTopDocuments(ctx context.Context, policy execution.Policy, rawQuery string, pred Predicate) ([]ranker.Document, error) {
	start := time.Now()
	log := logger.FromContext(ctx).With("component", "query-executor")

	plan, err := parser.Parse(rawQuery, e.engine.StopWords())
	if err != nil {
		e.metrics.ObserveSearch(policy.String(), "error", time.Since(start).Seconds(), 0)
		return nil, err
	}

	found := e.FindAllDocuments(policy, plan, pred)
	candidates := len(found)
	top := ranker.Rank(found)

	result := "hit"
	if len(top) == 0 {
		result = "zero_result"
	}
	e.metrics.ObserveSearch(policy.String(), result, time.Since(start).Seconds(), len(top))
	log.Debug("query executed",
		"query", rawQuery,
		"policy", policy,
		"plus_terms", plan.PlusTerms,
		"minus_terms", plan.MinusTerms,
		"candidates", candidates,
		"results", len(top),
	)
	return top, nil
}

func (e *Executor) FindTopDocumentsByStatus(ctx context.Context, policy execution.Policy, rawQuery string, status index.Status) ([]ranker.Document, error) {
	return e.FindTopDocuments(ctx, policy, rawQuery, StatusIs(status))
}

// FindActualDocuments is FindTopDocuments restricted to StatusActual.
func (e *Executor) FindActualDocuments(ctx context.Context, policy execution.Policy, rawQuery string) ([]ranker.Document, error) {
	return e.FindTopDocumentsByStatus(ctx, policy, rawQuery, index.StatusActual)
}

// FindAllDocuments scores every document matching plan, unranked and in
// ascending id order.
func (e *Executor) FindAllDocuments(policy execution.Policy, plan *parser.QueryPlan, pred Predicate) []ranker.Document {
	if plan.Empty() {
		return []ranker.Document{}
	}
	if pred == nil {
		pred = Any
	}
	var docs []ranker.Document
	e.engine.Read(func(idx *index.MemoryIndex) {
		if policy == execution.Parallel {
			docs = e.scoreParallel(idx, plan, pred)
			return
		}
		docs = scoreSequential(idx, plan, pred)
	})
	return docs
}

func scoreSequential(idx *index.MemoryIndex, plan *parser.QueryPlan, pred Predicate) []ranker.Document {
	total := idx.DocumentCount()
	relevance := make(map[int]float64)
	for _, term := range plan.PlusTerms {
		postings := idx.Postings(term)
		if len(postings) == 0 {
			continue
		}
		idf := ranker.IDF(total, len(postings))
		for id, tf := range postings {
			data, _ := idx.Document(id)
			if pred(id, data.Status, data.Rating) {
				relevance[id] += tf * idf
			}
		}
	}
	for _, term := range plan.MinusTerms {
		for id := range idx.Postings(term) {
			delete(relevance, id)
		}
	}

	docs := make([]ranker.Document, 0, len(relevance))
	for _, id := range slices.Sorted(maps.Keys(relevance)) {
		data, _ := idx.Document(id)
		docs = append(docs, ranker.Document{ID: id, Relevance: relevance[id], Rating: data.Rating})
	}
	return docs
}
