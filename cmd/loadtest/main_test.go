package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/search-server/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/search-server/internal/searcher/ranker"
)

func TestPercentile(t *testing.T) {
	sorted := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, time.Duration(5), percentile(sorted, 50))
	assert.Equal(t, time.Duration(10), percentile(sorted, 99))
	assert.Equal(t, time.Duration(1), percentile(sorted, 0))
	assert.Zero(t, percentile(nil, 50))
}

func TestReadQueries(t *testing.T) {
	queries, err := readQueries(strings.NewReader("cat\n\n  dog -collar \n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"cat", "dog -collar"}, queries)

	_, err = readQueries(strings.NewReader("\n \n"))
	assert.Error(t, err)
}

func TestSearchURLEscapesQuery(t *testing.T) {
	u := searchURL(Config{BaseURL: "http://x", Policy: "par", Status: "ACTUAL"}, "cat -dog")
	assert.Equal(t, "http://x/api/v1/search?policy=par&q=cat+-dog&status=ACTUAL", u)
}

func TestDoRecordsCacheHits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(handler.SearchResponse{
			Query:    r.URL.Query().Get("q"),
			CacheHit: true,
			Results:  []ranker.Document{{ID: 1}},
		})
	}))
	defer srv.Close()

	stats := NewStats()
	do(t.Context(), srv.Client(), srv.URL+"/api/v1/search?q=cat", stats)
	do(t.Context(), srv.Client(), srv.URL+"/api/v1/search?q=dog", stats)

	assert.Equal(t, int64(2), stats.success.Load())
	assert.Equal(t, int64(2), stats.cacheHits.Load())
	assert.Zero(t, stats.empty.Load())
}

func TestPrintReport(t *testing.T) {
	stats := NewStats()
	stats.Record(2*time.Millisecond, 200, &handler.SearchResponse{}, nil)
	stats.Record(4*time.Millisecond, 400, nil, nil)
	stats.Record(0, 0, nil, errors.New("refused"))

	var buf bytes.Buffer
	assert.True(t, printReport(&buf, stats, time.Second))
	out := buf.String()
	assert.Contains(t, out, "Total Requests:  3")
	assert.Contains(t, out, "Errors:          2")
	assert.Contains(t, out, "Empty Results:   1")
	assert.Contains(t, out, "  400: 1")

	assert.False(t, printReport(&bytes.Buffer{}, NewStats(), time.Second))
}
