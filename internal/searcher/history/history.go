// Package history keeps a sliding window of the most recent search requests
// and how many of them returned nothing.
package history

import (
	"context"
	"sync"
	"time"

	"github.com/emirpasic/gods/queues/circularbuffer"

	"github.com/Adithya-Monish-Kumar-K/search-server/internal/searcher/ranker"
)

// DefaultWindow is one request per minute for a day.
const DefaultWindow = 1440

// Request is one recorded search.
type Request struct {
	Query   string    `json:"query"`
	Results int       `json:"results"`
	At      time.Time `json:"at"`
}

// SearchFunc runs a query on behalf of the queue.
type SearchFunc func(ctx context.Context, rawQuery string) ([]ranker.Document, error)

type RequestQueue struct {
	mu        sync.Mutex
	requests  *circularbuffer.Queue
	noResults int
	now       func() time.Time
}

// NewRequestQueue keeps the last window requests; window <= 0 selects
// DefaultWindow.
func NewRequestQueue(window int) *RequestQueue {
	if window <= 0 {
		window = DefaultWindow
	}
	return &RequestQueue{
		requests: circularbuffer.New(window),
		now:      time.Now,
	}
}

// AddFindRequest runs search and records its outcome. Failed searches are
// not recorded.
func (q *RequestQueue) AddFindRequest(ctx context.Context, rawQuery string, search SearchFunc) ([]ranker.Document, error) {
	docs, err := search(ctx, rawQuery)
	if err != nil {
		return nil, err
	}
	q.record(Request{Query: rawQuery, Results: len(docs), At: q.now()})
	return docs, nil
}

func (q *RequestQueue) record(req Request) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.requests.Full() {
		if oldest, ok := q.requests.Dequeue(); ok && oldest.(Request).Results == 0 {
			q.noResults--
		}
	}
	q.requests.Enqueue(req)
	if req.Results == 0 {
		q.noResults++
	}
}

// NoResultRequests counts empty results within the window.
func (q *RequestQueue) NoResultRequests() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.noResults
}

func (q *RequestQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.requests.Size()
}

// Requests returns the window oldest first.
func (q *RequestQueue) Requests() []Request {
	q.mu.Lock()
	defer q.mu.Unlock()
	values := q.requests.Values()
	out := make([]Request, len(values))
	for i, v := range values {
		out[i] = v.(Request)
	}
	return out
}
