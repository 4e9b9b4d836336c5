package executor

import (
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/search-server/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/search-server/internal/searcher/accumulator"
	"github.com/Adithya-Monish-Kumar-K/search-server/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/search-server/internal/searcher/ranker"
)

// scoreParallel fans plus terms out over the worker pool, accumulating into a
// sharded map, then erases minus-term documents the same way. The index is
// only read; the accumulator is the one shared structure written by workers.
func (e *Executor) scoreParallel(idx *index.MemoryIndex, plan *parser.QueryPlan, pred Predicate) []ranker.Document {
	total := idx.DocumentCount()
	acc := accumulator.New[int, float64](e.shards)

	var plus errgroup.Group
	plus.SetLimit(e.engine.MaxWorkers())
	for _, term := range plan.PlusTerms {
		postings := idx.Postings(term)
		if len(postings) == 0 {
			continue
		}
		idf := ranker.IDF(total, len(postings))
		plus.Go(func() error {
			for id, tf := range postings {
				data, _ := idx.Document(id)
				if pred(id, data.Status, data.Rating) {
					acc.Add(id, tf*idf)
				}
			}
			return nil
		})
	}
	_ = plus.Wait()

	var minus errgroup.Group
	minus.SetLimit(e.engine.MaxWorkers())
	for _, term := range plan.MinusTerms {
		postings := idx.Postings(term)
		if len(postings) == 0 {
			continue
		}
		minus.Go(func() error {
			for id := range postings {
				acc.Erase(id)
			}
			return nil
		})
	}
	_ = minus.Wait()

	entries := acc.Entries()
	docs := make([]ranker.Document, 0, len(entries))
	for _, entry := range entries {
		data, _ := idx.Document(entry.Key)
		docs = append(docs, ranker.Document{ID: entry.Key, Relevance: entry.Value, Rating: data.Rating})
	}
	return docs
}
