// Package index holds the in-memory forward and inverted indices.
//
// A MemoryIndex is not safe for concurrent mutation. The indexer Engine
// serialises writers and lets readers share it; the only concurrent writes
// happen inside RemoveParallel, where each worker touches a disjoint
// postings list.
package index

import (
	"cmp"
	"slices"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"
)

type MemoryIndex struct {
	// forward maps document -> term -> frequency
	forward map[int]map[string]float64
	// inverted maps term -> document -> frequency
	inverted  map[string]map[int]float64
	documents map[int]DocumentData
	ids       *roaring.Bitmap
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		forward:   make(map[int]map[string]float64),
		inverted:  make(map[string]map[int]float64),
		documents: make(map[int]DocumentData),
		ids:       roaring.New(),
	}
}

// Add stores a document whose terms have already been validated and
// stripped of stop words. Each occurrence contributes 1/len(terms) to the
// term's frequency. The caller guarantees id is not present.
func (m *MemoryIndex) Add(id int, terms []string, data DocumentData) {
	freqs := make(map[string]float64, len(terms))
	if len(terms) > 0 {
		inv := 1.0 / float64(len(terms))
		for _, term := range terms {
			freqs[term] += inv
		}
	}
	for term, tf := range freqs {
		postings, ok := m.inverted[term]
		if !ok {
			postings = make(map[int]float64)
			m.inverted[term] = postings
		}
		postings[id] = tf
	}
	m.forward[id] = freqs
	m.documents[id] = data
	m.ids.Add(uint32(id))
}

// Remove deletes a document from every structure. It reports false if the
// document is unknown.
func (m *MemoryIndex) Remove(id int) bool {
	freqs, ok := m.forward[id]
	if !ok {
		return false
	}
	for term := range freqs {
		m.unpost(term, id)
	}
	m.forget(id)
	return true
}

// RemoveParallel is Remove with the postings-list deletions fanned out over
// at most workers goroutines (0 or less means unbounded). It returns after
// every worker has finished.
func (m *MemoryIndex) RemoveParallel(id int, workers int) bool {
	freqs, ok := m.forward[id]
	if !ok {
		return false
	}
	terms := make([]string, 0, len(freqs))
	for term := range freqs {
		terms = append(terms, term)
	}

	var g errgroup.Group
	if workers > 0 {
		g.SetLimit(workers)
	}
	for _, term := range terms {
		postings := m.inverted[term]
		g.Go(func() error {
			delete(postings, id)
			return nil
		})
	}
	_ = g.Wait()

	for _, term := range terms {
		if len(m.inverted[term]) == 0 {
			delete(m.inverted, term)
		}
	}
	m.forget(id)
	return true
}

func (m *MemoryIndex) unpost(term string, id int) {
	postings := m.inverted[term]
	delete(postings, id)
	if len(postings) == 0 {
		delete(m.inverted, term)
	}
}

func (m *MemoryIndex) forget(id int) {
	delete(m.forward, id)
	delete(m.documents, id)
	m.ids.Remove(uint32(id))
}

func (m *MemoryIndex) Contains(id int) bool {
	_, ok := m.documents[id]
	return ok
}

func (m *MemoryIndex) Document(id int) (DocumentData, bool) {
	data, ok := m.documents[id]
	return data, ok
}

// WordFrequencies returns the document's term -> frequency map. The map is
// owned by the index and must not be modified.
func (m *MemoryIndex) WordFrequencies(id int) (map[string]float64, bool) {
	freqs, ok := m.forward[id]
	return freqs, ok
}

// Postings returns the term's document -> frequency map, or nil. The map is
// owned by the index and must not be modified.
func (m *MemoryIndex) Postings(term string) map[int]float64 {
	return m.inverted[term]
}

func (m *MemoryIndex) DocumentCount() int {
	return len(m.documents)
}

func (m *MemoryIndex) TermCount() int {
	return len(m.inverted)
}

// IDs returns every live document id in ascending order.
func (m *MemoryIndex) IDs() []int {
	ids := make([]int, 0, m.ids.GetCardinality())
	it := m.ids.Iterator()
	for it.HasNext() {
		ids = append(ids, int(it.Next()))
	}
	return ids
}

// Each calls fn for live document ids in ascending order until fn returns
// false.
func (m *MemoryIndex) Each(fn func(id int) bool) {
	it := m.ids.Iterator()
	for it.HasNext() {
		if !fn(int(it.Next())) {
			return
		}
	}
}

// Snapshot returns the inverted index as term-sorted entries with postings
// sorted by document id.
func (m *MemoryIndex) Snapshot() []TermEntry {
	entries := make([]TermEntry, 0, len(m.inverted))
	for term, docs := range m.inverted {
		postings := make(PostingList, 0, len(docs))
		for docID, tf := range docs {
			postings = append(postings, Posting{DocID: docID, Frequency: tf})
		}
		slices.SortFunc(postings, func(a, b Posting) int {
			return cmp.Compare(a.DocID, b.DocID)
		})
		entries = append(entries, TermEntry{
			Term:     term,
			Postings: postings,
		})
	}
	slices.SortFunc(entries, func(a, b TermEntry) int {
		return strings.Compare(a.Term, b.Term)
	})
	return entries
}
