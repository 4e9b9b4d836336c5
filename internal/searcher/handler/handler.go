// Package handler exposes the index and the query engine over HTTP/JSON.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/search-server/internal/execution"
	"github.com/Adithya-Monish-Kumar-K/search-server/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/search-server/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/search-server/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/search-server/internal/searcher/dedup"
	"github.com/Adithya-Monish-Kumar-K/search-server/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/search-server/internal/searcher/history"
	"github.com/Adithya-Monish-Kumar-K/search-server/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/search-server/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/search-server/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-server/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/search-server/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/search-server/pkg/pagination"
)

// statusAny disables status filtering in search requests.
const statusAny = "any"

type Handler struct {
	engine          *indexer.Engine
	executor        *executor.Executor
	cache           *cache.QueryCache
	history         *history.RequestQueue
	dedup           *dedup.Remover
	defaultPolicy   execution.Policy
	defaultPageSize int
	logger          *slog.Logger
}

// New wires the handler. queryCache may be nil to disable caching.
func New(
	engine *indexer.Engine,
	exec *executor.Executor,
	queryCache *cache.QueryCache,
	requests *history.RequestQueue,
	remover *dedup.Remover,
	cfg config.SearchConfig,
) *Handler {
	policy := execution.Sequential
	if cfg.Parallel {
		policy = execution.Parallel
	}
	pageSize := cfg.DefaultPageSize
	if pageSize <= 0 {
		pageSize = ranker.MaxResultDocumentCount
	}
	return &Handler{
		engine:          engine,
		executor:        exec,
		cache:           queryCache,
		history:         requests,
		dedup:           remover,
		defaultPolicy:   policy,
		defaultPageSize: pageSize,
		logger:          slog.Default().With("component", "search-handler"),
	}
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/documents", h.ListDocuments)
	mux.HandleFunc("POST /api/v1/documents", h.AddDocument)
	mux.HandleFunc("POST /api/v1/documents/deduplicate", h.Deduplicate)
	mux.HandleFunc("GET /api/v1/documents/{id}", h.GetDocument)
	mux.HandleFunc("DELETE /api/v1/documents/{id}", h.RemoveDocument)
	mux.HandleFunc("GET /api/v1/documents/{id}/frequencies", h.WordFrequencies)
	mux.HandleFunc("GET /api/v1/documents/{id}/match", h.MatchDocument)
	mux.HandleFunc("GET /api/v1/history", h.History)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

type SearchResponse struct {
	Query      string            `json:"query"`
	Policy     string            `json:"policy"`
	Status     string            `json:"status"`
	CacheHit   bool              `json:"cache_hit"`
	Results    []ranker.Document `json:"results"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
	TotalPages int               `json:"total_pages"`
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)
	params := r.URL.Query()

	query := params.Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	policy, err := execution.Parse(params.Get("policy"), h.defaultPolicy)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	page, err := positiveParam(params.Get("page"), 1)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "page must be a positive integer")
		return
	}
	pageSize, err := positiveParam(params.Get("page_size"), h.defaultPageSize)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "page_size must be a positive integer")
		return
	}

	statusName := params.Get("status")
	filterByStatus := !strings.EqualFold(statusName, statusAny)
	status := index.StatusActual
	if filterByStatus && statusName != "" {
		if status, err = index.ParseStatus(statusName); err != nil {
			h.writeAppError(w, err)
			return
		}
	}

	cacheHit := false
	search := func(ctx context.Context, rawQuery string) ([]ranker.Document, error) {
		if !filterByStatus {
			return h.executor.FindTopDocuments(ctx, policy, rawQuery, executor.Any)
		}
		if h.cache == nil {
			return h.executor.FindTopDocumentsByStatus(ctx, policy, rawQuery, status)
		}
		plan, err := parser.Parse(rawQuery, h.engine.StopWords())
		if err != nil {
			return nil, err
		}
		var docs []ranker.Document
		docs, cacheHit, err = h.cache.GetOrCompute(ctx, plan, status, func() ([]ranker.Document, error) {
			return h.executor.FindTopDocumentsByStatus(ctx, policy, rawQuery, status)
		})
		return docs, err
	}

	docs, err := h.history.AddFindRequest(ctx, query, search)
	if err != nil {
		log.Warn("search rejected", "query", query, "error", err)
		h.writeAppError(w, err)
		return
	}

	results, totalPages := pagination.Page(docs, page, pageSize)
	resp := SearchResponse{
		Query:      query,
		Policy:     policy.String(),
		Status:     status.String(),
		CacheHit:   cacheHit,
		Results:    results,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
	if !filterByStatus {
		resp.Status = statusAny
	}

	log.Info("search completed",
		"query", query,
		"policy", policy,
		"returned", len(docs),
		"cache_hit", cacheHit,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, resp)
}

type addDocumentRequest struct {
	ID      *int         `json:"id"`
	Text    string       `json:"text"`
	Status  index.Status `json:"status"`
	Ratings []int        `json:"ratings"`
}

func (h *Handler) AddDocument(w http.ResponseWriter, r *http.Request) {
	var req addDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.ID == nil {
		h.writeError(w, http.StatusBadRequest, "field 'id' is required")
		return
	}
	if err := h.engine.AddDocument(*req.ID, req.Text, req.Status, req.Ratings); err != nil {
		h.writeAppError(w, err)
		return
	}
	h.invalidate(r.Context())
	h.writeJSON(w, http.StatusCreated, map[string]int{"id": *req.ID})
}

func (h *Handler) RemoveDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	policy, err := execution.Parse(r.URL.Query().Get("policy"), h.defaultPolicy)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	if err := h.engine.RemoveDocument(policy, id); err != nil {
		h.writeAppError(w, err)
		return
	}
	h.invalidate(r.Context())
	logger.FromContext(r.Context()).Info("document removed", "doc_id", id, "policy", policy)
	w.WriteHeader(http.StatusNoContent)
}

type documentResponse struct {
	ID     int          `json:"id"`
	Rating int          `json:"rating"`
	Status index.Status `json:"status"`
	Text   string       `json:"text"`
}

func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	data, err := h.engine.Document(id)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, documentResponse{
		ID:     id,
		Rating: data.Rating,
		Status: data.Status,
		Text:   data.Content,
	})
}

func (h *Handler) WordFrequencies(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	freqs, err := h.engine.WordFrequencies(id)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"id":          id,
		"frequencies": freqs,
	})
}

func (h *Handler) MatchDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	policy, err := execution.Parse(r.URL.Query().Get("policy"), h.defaultPolicy)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	result, err := h.engine.MatchDocument(policy, r.URL.Query().Get("q"), id)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	ids := h.engine.DocumentIDs()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"count": len(ids),
		"ids":   ids,
	})
}

func (h *Handler) Deduplicate(w http.ResponseWriter, r *http.Request) {
	removed, err := h.dedup.RemoveDuplicates()
	if len(removed) > 0 {
		h.invalidate(r.Context())
	}
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"removed": removed,
	})
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]int{
		"requests":           h.history.Len(),
		"no_result_requests": h.history.NoResultRequests(),
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

// invalidate drops cached results after a mutation. Failure only costs
// stale reads until the TTL expires, so it is logged, not returned.
func (h *Handler) invalidate(ctx context.Context) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Invalidate(ctx); err != nil {
		logger.FromContext(ctx).Error("cache invalidation failed", "error", err)
	}
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "document id must be an integer")
		return 0, false
	}
	return id, true
}

func positiveParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid positive integer %q", raw)
	}
	return n, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// writeAppError maps err to its HTTP status. Server-side failures are logged
// and reported without detail.
func (h *Handler) writeAppError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "error", err)
		h.writeError(w, status, http.StatusText(status))
		return
	}
	h.writeError(w, status, err.Error())
}
