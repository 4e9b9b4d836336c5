// Package dedup removes documents whose set of terms repeats that of a
// document with a lower id.
package dedup

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/search-server/internal/execution"
	"github.com/Adithya-Monish-Kumar-K/search-server/pkg/metrics"
)

// Index is the part of the engine the finder reads and mutates.
type Index interface {
	DocumentIDs() []int
	WordFrequencies(id int) (map[string]float64, error)
	RemoveDocument(policy execution.Policy, id int) error
}

type Remover struct {
	index   Index
	policy  execution.Policy
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New returns a Remover deleting through idx with policy. m may be nil.
func New(idx Index, policy execution.Policy, m *metrics.Metrics) *Remover {
	return &Remover{
		index:   idx,
		policy:  policy,
		metrics: m,
		logger:  slog.Default().With("component", "dedup"),
	}
}

// FindDuplicates lists, in ascending order, the ids whose term set was
// already seen at a lower id. Frequencies are ignored.
func (r *Remover) FindDuplicates() ([]int, error) {
	seen := make(map[string]struct{})
	var duplicates []int
	for _, id := range r.index.DocumentIDs() {
		freqs, err := r.index.WordFrequencies(id)
		if err != nil {
			return nil, fmt.Errorf("reading terms of document %d: %w", id, err)
		}
		sig := signature(freqs)
		if _, dup := seen[sig]; dup {
			duplicates = append(duplicates, id)
			continue
		}
		seen[sig] = struct{}{}
	}
	return duplicates, nil
}

// RemoveDuplicates deletes every duplicate and returns the removed ids.
func (r *Remover) RemoveDuplicates() ([]int, error) {
	duplicates, err := r.FindDuplicates()
	if err != nil {
		return nil, err
	}
	removed := make([]int, 0, len(duplicates))
	for _, id := range duplicates {
		r.logger.Info("found duplicate document", "doc_id", id)
		if err := r.index.RemoveDocument(r.policy, id); err != nil {
			return removed, fmt.Errorf("removing duplicate %d: %w", id, err)
		}
		r.metrics.DuplicateRemoved()
		removed = append(removed, id)
	}
	return removed, nil
}

// signature joins the sorted terms with a control character, which no term
// can contain.
func signature(freqs map[string]float64) string {
	return strings.Join(slices.Sorted(maps.Keys(freqs)), "\x1f")
}
