package indexer

import (
	"log/slog"
	"maps"
	"math"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/search-server/internal/execution"
	"github.com/Adithya-Monish-Kumar-K/search-server/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/search-server/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/search-server/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/search-server/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-server/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/search-server/pkg/metrics"
)

// MaxDocumentID is the largest id the ordered id set can hold.
const MaxDocumentID = math.MaxUint32

// MatchResult is the outcome of MatchDocument.
type MatchResult struct {
	Terms  []string     `json:"terms"`
	Status index.Status `json:"status"`
}

// Engine owns the memory index. Mutations take the write lock and queries
// the read lock, so every call observes all previously completed calls.
type Engine struct {
	mu         sync.RWMutex
	memIndex   *index.MemoryIndex
	stopWords  tokenizer.StopWords
	maxWorkers int
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewEngine builds an empty index using cfg's stop words and worker bound.
// m may be nil.
func NewEngine(cfg config.SearchConfig, m *metrics.Metrics) (*Engine, error) {
	stopWords, err := tokenizer.NewStopWords(cfg.StopWords)
	if err != nil {
		return nil, err
	}
	maxWorkers := cfg.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = runtime.GOMAXPROCS(0)
	}
	return &Engine{
		memIndex:   index.NewMemoryIndex(),
		stopWords:  stopWords,
		maxWorkers: maxWorkers,
		metrics:    m,
		logger:     slog.Default().With("component", "indexer"),
	}, nil
}

// AddDocument validates and indexes one document. Nothing is modified unless
// every check passes.
func (e *Engine) AddDocument(id int, text string, status index.Status, ratings []int) error {
	if id < 0 || uint64(id) > MaxDocumentID {
		return apperrors.InvalidArgument("document id %d is out of range", id)
	}
	terms, err := tokenizer.Tokenize(text, e.stopWords)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.memIndex.Contains(id) {
		return apperrors.InvalidArgument("document id %d already exists", id)
	}
	e.memIndex.Add(id, terms, index.DocumentData{
		Rating:  index.AverageRating(ratings),
		Status:  status,
		Content: text,
	})
	e.metrics.DocumentIndexed()
	e.metrics.ObserveIndexSize(e.memIndex.DocumentCount(), e.memIndex.TermCount())
	e.logger.Debug("document indexed",
		"doc_id", id,
		"term_count", len(terms),
		"status", status,
	)
	return nil
}

// RemoveDocument deletes a document. An unknown id yields NotFound under
// either policy.
func (e *Engine) RemoveDocument(policy execution.Policy, id int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var removed bool
	switch policy {
	case execution.Parallel:
		removed = e.memIndex.RemoveParallel(id, e.maxWorkers)
	default:
		removed = e.memIndex.Remove(id)
	}
	if !removed {
		return apperrors.NotFound(id)
	}
	e.metrics.DocumentRemoved(policy.String())
	e.metrics.ObserveIndexSize(e.memIndex.DocumentCount(), e.memIndex.TermCount())
	e.logger.Debug("document removed", "doc_id", id, "policy", policy)
	return nil
}

// WordFrequencies returns a copy of the document's term -> frequency map.
func (e *Engine) WordFrequencies(id int) (map[string]float64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	freqs, ok := e.memIndex.WordFrequencies(id)
	if !ok {
		return nil, apperrors.NotFound(id)
	}
	return maps.Clone(freqs), nil
}

func (e *Engine) Document(id int) (index.DocumentData, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	data, ok := e.memIndex.Document(id)
	if !ok {
		return index.DocumentData{}, apperrors.NotFound(id)
	}
	return data, nil
}

// MatchDocument returns the query's plus terms present in the document,
// sorted and duplicate-free. If any minus term is present the term list is
// empty; the status is reported either way.
func (e *Engine) MatchDocument(policy execution.Policy, rawQuery string, id int) (MatchResult, error) {
	if policy == execution.Parallel {
		return e.matchParallel(rawQuery, id)
	}
	return e.matchSequential(rawQuery, id)
}

func (e *Engine) matchSequential(rawQuery string, id int) (MatchResult, error) {
	plan, err := parser.Parse(rawQuery, e.stopWords)
	if err != nil {
		return MatchResult{}, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	data, ok := e.memIndex.Document(id)
	if !ok {
		return MatchResult{}, apperrors.NotFound(id)
	}
	result := MatchResult{Terms: make([]string, 0), Status: data.Status}
	for _, term := range plan.MinusTerms {
		if _, found := e.memIndex.Postings(term)[id]; found {
			return result, nil
		}
	}
	for _, term := range plan.PlusTerms {
		if _, found := e.memIndex.Postings(term)[id]; found {
			result.Terms = append(result.Terms, term)
		}
	}
	return result, nil
}

func (e *Engine) matchParallel(rawQuery string, id int) (MatchResult, error) {
	plan, err := parser.ParseRaw(rawQuery, e.stopWords)
	if err != nil {
		return MatchResult{}, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	data, ok := e.memIndex.Document(id)
	if !ok {
		return MatchResult{}, apperrors.NotFound(id)
	}
	result := MatchResult{Terms: make([]string, 0), Status: data.Status}

	var excluded atomic.Bool
	var minus errgroup.Group
	minus.SetLimit(e.maxWorkers)
	for _, term := range plan.MinusTerms {
		minus.Go(func() error {
			if excluded.Load() {
				return nil
			}
			if _, found := e.memIndex.Postings(term)[id]; found {
				excluded.Store(true)
			}
			return nil
		})
	}
	_ = minus.Wait()
	if excluded.Load() {
		return result, nil
	}

	matched := make([]string, len(plan.PlusTerms))
	var plus errgroup.Group
	plus.SetLimit(e.maxWorkers)
	for i, term := range plan.PlusTerms {
		plus.Go(func() error {
			if _, found := e.memIndex.Postings(term)[id]; found {
				matched[i] = term
			}
			return nil
		})
	}
	_ = plus.Wait()

	matched = slices.DeleteFunc(matched, func(term string) bool { return term == "" })
	slices.Sort(matched)
	result.Terms = append(result.Terms, slices.Compact(matched)...)
	return result, nil
}

// DocumentIDs returns all live ids in ascending order.
func (e *Engine) DocumentIDs() []int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.memIndex.IDs()
}

// EachDocument calls fn for live ids in ascending order until it returns
// false. fn runs under the read lock and must not mutate the engine.
func (e *Engine) EachDocument(fn func(id int) bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	e.memIndex.Each(fn)
}

func (e *Engine) DocumentCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.memIndex.DocumentCount()
}

// Snapshot returns the inverted index in term order.
func (e *Engine) Snapshot() []index.TermEntry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.memIndex.Snapshot()
}

// Read runs fn with the index under the read lock. fn must not retain the
// index or any map it hands out.
func (e *Engine) Read(fn func(idx *index.MemoryIndex)) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	fn(e.memIndex)
}

func (e *Engine) StopWords() tokenizer.StopWords {
	return e.stopWords
}

func (e *Engine) MaxWorkers() int {
	return e.maxWorkers
}
