package executor

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/search-server/internal/execution"
	"github.com/Adithya-Monish-Kumar-K/search-server/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/search-server/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/search-server/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/search-server/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/search-server/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-server/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/search-server/pkg/metrics"
)

var policies = []execution.Policy{execution.Sequential, execution.Parallel}

type doc struct {
	id      int
	text    string
	status  index.Status
	ratings []int
}

func newExecutor(t testing.TB, m *metrics.Metrics, stopWords []string, docs ...doc) *Executor {
	t.Helper()
	cfg := config.SearchConfig{StopWords: stopWords, AccumulatorShards: 7, MaxWorkers: 4}
	engine, err := indexer.NewEngine(cfg, nil)
	require.NoError(t, err)
	for _, d := range docs {
		require.NoError(t, engine.AddDocument(d.id, d.text, d.status, d.ratings))
	}
	return New(engine, cfg, m)
}

func ids(docs []ranker.Document) []int {
	out := make([]int, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}

func TestTieBrokenByRating(t *testing.T) {
	ex := newExecutor(t, nil, nil,
		doc{1, "cat dog", index.StatusActual, []int{5}},
		doc{2, "cat bird", index.StatusActual, []int{3}},
	)
	for _, policy := range policies {
		t.Run(policy.String(), func(t *testing.T) {
			got, err := ex.FindActualDocuments(context.Background(), policy, "cat")
			require.NoError(t, err)
			assert.Equal(t, []ranker.Document{
				{ID: 1, Relevance: 0, Rating: 5},
				{ID: 2, Relevance: 0, Rating: 3},
			}, got)
		})
	}
}

func TestRelevanceIsTFIDF(t *testing.T) {
	ex := newExecutor(t, nil, []string{"and", "in", "on"},
		doc{0, "white cat and fancy collar", index.StatusActual, []int{8, -3}},
		doc{1, "fluffy cat fluffy tail", index.StatusActual, []int{7, 2, 7}},
		doc{2, "groomed dog expressive eyes", index.StatusActual, []int{5, -12, 2, 1}},
		doc{3, "groomed starling eugene", index.StatusBanned, []int{9}},
	)
	for _, policy := range policies {
		t.Run(policy.String(), func(t *testing.T) {
			got, err := ex.FindActualDocuments(context.Background(), policy, "fluffy groomed cat")
			require.NoError(t, err)
			require.Equal(t, []int{1, 0, 2}, ids(got))

			// fluffy: tf 0.5, idf ln(4); cat: tf 0.25, idf ln(2)
			assert.InDelta(t, 0.5*math.Log(4)+0.25*math.Log(2), got[0].Relevance, 1e-9)
			assert.InDelta(t, 0.25*math.Log(2), got[1].Relevance, 1e-9)
			assert.InDelta(t, 0.25*math.Log(2), got[2].Relevance, 1e-9)
			assert.Equal(t, 5, got[0].Rating)
			assert.Equal(t, 2, got[1].Rating)
			assert.Equal(t, -1, got[2].Rating)
		})
	}
}

func TestMinusTermExcludesEverything(t *testing.T) {
	ex := newExecutor(t, nil, nil,
		doc{1, "cat dog", index.StatusActual, nil},
		doc{2, "cat bird", index.StatusBanned, nil},
		doc{3, "big cat", index.StatusIrrelevant, nil},
	)
	preds := map[string]Predicate{
		"any":    Any,
		"actual": StatusIs(index.StatusActual),
		"banned": StatusIs(index.StatusBanned),
		"odd":    func(id int, _ index.Status, _ int) bool { return id%2 == 1 },
	}
	for _, policy := range policies {
		for name, pred := range preds {
			t.Run(policy.String()+"/"+name, func(t *testing.T) {
				got, err := ex.FindTopDocuments(context.Background(), policy, "cat dog bird big -cat", pred)
				require.NoError(t, err)
				assert.Empty(t, got)
			})
		}
	}
}

func TestStopWordsAndUnknownTermsYieldNothing(t *testing.T) {
	ex := newExecutor(t, nil, []string{"in", "the"},
		doc{1, "cat in the city", index.StatusActual, nil},
	)
	for _, policy := range policies {
		for _, query := range []string{"in the", "-the in", "parrot", ""} {
			got, err := ex.FindActualDocuments(context.Background(), policy, query)
			require.NoError(t, err, query)
			assert.Empty(t, got, query)
			assert.NotNil(t, got, query)
		}
	}
}

func TestPredicateFilters(t *testing.T) {
	ex := newExecutor(t, nil, nil,
		doc{1, "cat", index.StatusActual, []int{1}},
		doc{2, "cat", index.StatusBanned, []int{2}},
		doc{3, "cat", index.StatusBanned, []int{3}},
		doc{4, "cat", index.StatusRemoved, []int{4}},
	)
	for _, policy := range policies {
		t.Run(policy.String(), func(t *testing.T) {
			got, err := ex.FindTopDocumentsByStatus(context.Background(), policy, "cat", index.StatusBanned)
			require.NoError(t, err)
			assert.Equal(t, []int{3, 2}, ids(got))

			got, err = ex.FindTopDocuments(context.Background(), policy, "cat",
				func(id int, _ index.Status, rating int) bool { return id > 1 && rating < 4 })
			require.NoError(t, err)
			assert.Equal(t, []int{3, 2}, ids(got))

			got, err = ex.FindTopDocuments(context.Background(), policy, "cat", nil)
			require.NoError(t, err)
			assert.Equal(t, []int{4, 3, 2, 1}, ids(got))
		})
	}
}

func TestResultsCappedAtFive(t *testing.T) {
	docs := make([]doc, 0, 12)
	for i := 0; i < 12; i++ {
		docs = append(docs, doc{i, "cat", index.StatusActual, []int{i}})
	}
	ex := newExecutor(t, nil, nil, docs...)
	for _, policy := range policies {
		got, err := ex.FindActualDocuments(context.Background(), policy, "cat")
		require.NoError(t, err)
		assert.Equal(t, []int{11, 10, 9, 8, 7}, ids(got))
	}
}

func TestInvalidQuery(t *testing.T) {
	reg := prometheus.NewRegistry()
	ex := newExecutor(t, metrics.New(reg), nil, doc{1, "cat", index.StatusActual, nil})
	for _, policy := range policies {
		for _, query := range []string{"cat --dog", "cat -", "c\x01at"} {
			_, err := ex.FindActualDocuments(context.Background(), policy, query)
			assert.ErrorIs(t, err, apperrors.ErrInvalidQuery, query)
		}
	}
	assert.Equal(t, 3.0, testutil.ToFloat64(ex.metrics.SearchQueriesTotal.WithLabelValues("par", "error")))
}

func TestSearchMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	ex := newExecutor(t, metrics.New(reg), nil, doc{1, "cat", index.StatusActual, nil})

	_, err := ex.FindActualDocuments(context.Background(), execution.Sequential, "cat")
	require.NoError(t, err)
	_, err = ex.FindActualDocuments(context.Background(), execution.Sequential, "dog")
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(ex.metrics.SearchQueriesTotal.WithLabelValues("seq", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ex.metrics.SearchQueriesTotal.WithLabelValues("seq", "zero_result")))
}

func TestFindAllDocumentsEmitsInIDOrder(t *testing.T) {
	ex := newExecutor(t, nil, nil,
		doc{9, "cat", index.StatusActual, nil},
		doc{3, "cat dog", index.StatusActual, nil},
		doc{5, "dog", index.StatusActual, nil},
	)
	plan, err := parser.Parse("cat dog", ex.engine.StopWords())
	require.NoError(t, err)
	for _, policy := range policies {
		got := ex.FindAllDocuments(policy, plan, Any)
		assert.Equal(t, []int{3, 5, 9}, ids(got))
	}
}

func randomCorpus(r *rand.Rand, size int, vocab []string) []doc {
	docs := make([]doc, 0, size)
	for id := 0; id < size; id++ {
		words := make([]string, 3+r.Intn(10))
		for i := range words {
			words[i] = vocab[r.Intn(len(vocab))]
		}
		ratings := make([]int, r.Intn(4))
		for i := range ratings {
			ratings[i] = r.Intn(21) - 10
		}
		docs = append(docs, doc{id, strings.Join(words, " "), index.Status(r.Intn(4)), ratings})
	}
	return docs
}

func vocabulary(n int) []string {
	vocab := make([]string, n)
	for i := range vocab {
		vocab[i] = fmt.Sprintf("w%d", i)
	}
	return vocab
}

func TestSequentialAndParallelAgree(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	vocab := vocabulary(60)
	ex := newExecutor(t, nil, []string{"w0", "w1"}, randomCorpus(r, 500, vocab)...)

	for q := 0; q < 50; q++ {
		terms := make([]string, 1+r.Intn(6))
		for i := range terms {
			terms[i] = vocab[r.Intn(len(vocab))]
			if r.Intn(5) == 0 {
				terms[i] = "-" + terms[i]
			}
		}
		query := strings.Join(terms, " ")
		pred := StatusIs(index.Status(q % 4))

		seq, err := ex.FindTopDocuments(context.Background(), execution.Sequential, query, pred)
		require.NoError(t, err)
		par, err := ex.FindTopDocuments(context.Background(), execution.Parallel, query, pred)
		require.NoError(t, err)

		require.Equal(t, ids(seq), ids(par), query)
		for i := range seq {
			assert.Equal(t, seq[i].Rating, par[i].Rating, query)
			assert.InDelta(t, seq[i].Relevance, par[i].Relevance, ranker.RelevanceEpsilon, query)
		}
	}
}

func benchmarkFind(b *testing.B, policy execution.Policy) {
	r := rand.New(rand.NewSource(7))
	vocab := vocabulary(2000)
	ex := newExecutor(b, nil, nil, randomCorpus(r, 10000, vocab)...)
	query := strings.Join(vocab[:40], " ") + " -" + vocab[41]

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ex.FindTopDocuments(context.Background(), policy, query, Any); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkFindTopDocumentsSequential(b *testing.B) {
	benchmarkFind(b, execution.Sequential)
}

func BenchmarkFindTopDocumentsParallel(b *testing.B) {
	benchmarkFind(b, execution.Parallel)
}
