package history

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/search-server/internal/searcher/ranker"
)

func fixedResults(n int) SearchFunc {
	return func(context.Context, string) ([]ranker.Document, error) {
		docs := make([]ranker.Document, n)
		for i := range docs {
			docs[i].ID = i
		}
		return docs, nil
	}
}

func TestNoResultRequestsWithinWindow(t *testing.T) {
	q := NewRequestQueue(0)
	ctx := context.Background()

	// 1439 empty requests, then one hit fills the day.
	for i := 0; i < DefaultWindow-1; i++ {
		_, err := q.AddFindRequest(ctx, "empty request", fixedResults(0))
		require.NoError(t, err)
	}
	_, err := q.AddFindRequest(ctx, "curly dog", fixedResults(2))
	require.NoError(t, err)
	assert.Equal(t, DefaultWindow-1, q.NoResultRequests())
	assert.Equal(t, DefaultWindow, q.Len())

	// Each further hit pushes out one empty request.
	_, err = q.AddFindRequest(ctx, "big collar", fixedResults(1))
	require.NoError(t, err)
	_, err = q.AddFindRequest(ctx, "sparrow", fixedResults(1))
	require.NoError(t, err)
	assert.Equal(t, DefaultWindow-3, q.NoResultRequests())
	assert.Equal(t, DefaultWindow, q.Len())
}

func TestRequestsOldestFirst(t *testing.T) {
	q := NewRequestQueue(3)
	for i := 0; i < 5; i++ {
		_, err := q.AddFindRequest(context.Background(), fmt.Sprintf("q%d", i), fixedResults(i%2))
		require.NoError(t, err)
	}

	reqs := q.Requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, "q2", reqs[0].Query)
	assert.Equal(t, "q4", reqs[2].Query)
	assert.Equal(t, 2, q.NoResultRequests())
}

func TestFailedSearchIsNotRecorded(t *testing.T) {
	q := NewRequestQueue(10)
	boom := errors.New("invalid query")

	_, err := q.AddFindRequest(context.Background(), "--cat", func(context.Context, string) ([]ranker.Document, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, q.Len())
	assert.Zero(t, q.NoResultRequests())
}
