package index

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T) *MemoryIndex {
	t.Helper()
	m := NewMemoryIndex()
	m.Add(3, []string{"white", "cat", "fancy", "collar"}, DocumentData{Rating: 2, Content: "white cat and fancy collar"})
	m.Add(1, []string{"fluffy", "cat", "fluffy", "tail"}, DocumentData{Rating: 5, Content: "fluffy cat fluffy tail"})
	m.Add(2, []string{"groomed", "dog", "expressive", "eyes"}, DocumentData{Rating: -1, Status: StatusBanned})
	return m
}

func TestAddComputesFrequencies(t *testing.T) {
	m := seed(t)

	freqs, ok := m.WordFrequencies(1)
	require.True(t, ok)
	assert.InDelta(t, 0.5, freqs["fluffy"], 1e-12)
	assert.InDelta(t, 0.25, freqs["cat"], 1e-12)
	assert.InDelta(t, 0.25, freqs["tail"], 1e-12)

	postings := m.Postings("cat")
	assert.Len(t, postings, 2)
	assert.Equal(t, freqs["cat"], postings[1])
	assert.Nil(t, m.Postings("missing"))
}

func TestFrequenciesSumToOne(t *testing.T) {
	m := seed(t)
	m.Add(10, nil, DocumentData{})

	for _, id := range m.IDs() {
		freqs, ok := m.WordFrequencies(id)
		require.True(t, ok)
		sum := 0.0
		for _, tf := range freqs {
			sum += tf
		}
		if len(freqs) == 0 {
			assert.Zero(t, sum, "doc %d", id)
			continue
		}
		assert.InDelta(t, 1.0, sum, 1e-9, "doc %d", id)
	}
}

func TestForwardAndInvertedInSync(t *testing.T) {
	m := seed(t)
	m.RemoveParallel(3, 2)
	m.Add(7, []string{"cat", "cat", "bird"}, DocumentData{})

	pairs := 0
	for id, freqs := range m.forward {
		for term, tf := range freqs {
			got, ok := m.inverted[term][id]
			require.True(t, ok, "term %q doc %d missing from inverted index", term, id)
			assert.Equal(t, tf, got)
			pairs++
		}
	}
	for term, docs := range m.inverted {
		for id, tf := range docs {
			assert.Equal(t, tf, m.forward[id][term])
			pairs--
		}
	}
	assert.Zero(t, pairs)
}

func TestIDsAscending(t *testing.T) {
	m := seed(t)
	assert.Equal(t, []int{1, 2, 3}, m.IDs())

	var seen []int
	m.Each(func(id int) bool {
		seen = append(seen, id)
		return id < 2
	})
	assert.Equal(t, []int{1, 2}, seen)
}

func TestAddThenRemoveRestoresState(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		t.Run(fmt.Sprintf("parallel=%v", parallel), func(t *testing.T) {
			m := seed(t)
			before := m.Snapshot()
			beforeIDs := m.IDs()
			beforeCount := m.DocumentCount()

			m.Add(42, []string{"cat", "unique", "words", "only"}, DocumentData{Rating: 9})
			require.True(t, m.Contains(42))

			var removed bool
			if parallel {
				removed = m.RemoveParallel(42, 0)
			} else {
				removed = m.Remove(42)
			}
			require.True(t, removed)

			assert.Equal(t, before, m.Snapshot())
			assert.Equal(t, beforeIDs, m.IDs())
			assert.Equal(t, beforeCount, m.DocumentCount())
			_, ok := m.Document(42)
			assert.False(t, ok)
			_, ok = m.WordFrequencies(42)
			assert.False(t, ok)
		})
	}
}

func TestRemoveUnknown(t *testing.T) {
	m := seed(t)
	assert.False(t, m.Remove(99))
	assert.False(t, m.RemoveParallel(99, 4))
	assert.Equal(t, 3, m.DocumentCount())
}

func TestRemovePrunesEmptyTerms(t *testing.T) {
	m := seed(t)
	require.NotNil(t, m.Postings("dog"))
	m.Remove(2)
	assert.Nil(t, m.Postings("dog"))
	assert.Len(t, m.Postings("cat"), 2)
}

func TestSequentialAndParallelRemoveAgree(t *testing.T) {
	a, b := NewMemoryIndex(), NewMemoryIndex()
	for i := 0; i < 200; i++ {
		terms := []string{fmt.Sprintf("t%d", i%7), fmt.Sprintf("t%d", i%11), fmt.Sprintf("u%d", i)}
		a.Add(i, terms, DocumentData{Rating: i})
		b.Add(i, terms, DocumentData{Rating: i})
	}
	for i := 0; i < 200; i += 3 {
		a.Remove(i)
		b.RemoveParallel(i, 4)
	}
	assert.Equal(t, a.Snapshot(), b.Snapshot())
	assert.Equal(t, a.IDs(), b.IDs())
	assert.Equal(t, a.TermCount(), b.TermCount())
}

func TestAverageRating(t *testing.T) {
	tests := []struct {
		ratings []int
		want    int
	}{
		{nil, 0},
		{[]int{5}, 5},
		{[]int{7, 2, 7}, 5},
		{[]int{8, -3}, 2},
		{[]int{-3, -4}, -3},
		{[]int{1, -5, 8}, 1},
		{[]int{5, -12, 2, 1}, -1},
		{[]int{-1, 0}, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AverageRating(tt.ratings), "AverageRating(%v)", tt.ratings)
	}
}

func TestStatusText(t *testing.T) {
	for _, s := range []Status{StatusActual, StatusIrrelevant, StatusBanned, StatusRemoved} {
		text, err := s.MarshalText()
		require.NoError(t, err)
		var back Status
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, s, back)
	}

	got, err := ParseStatus("banned")
	require.NoError(t, err)
	assert.Equal(t, StatusBanned, got)

	_, err = ParseStatus("archived")
	assert.Error(t, err)
	_, err = Status(12).MarshalText()
	assert.Error(t, err)
	assert.Equal(t, "Status(12)", Status(12).String())
}

func TestWordFrequencyPrecision(t *testing.T) {
	m := NewMemoryIndex()
	terms := make([]string, 0, 7)
	for i := 0; i < 7; i++ {
		terms = append(terms, fmt.Sprintf("w%d", i%3))
	}
	m.Add(0, terms, DocumentData{})
	freqs, _ := m.WordFrequencies(0)
	assert.InDelta(t, 3.0/7.0, freqs["w0"], 1e-12)
	assert.False(t, math.IsNaN(freqs["w1"]))
}
