package search

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/chatsearch/internal/async"
	"github.com/Aman-CERP/chatsearch/internal/errors"
	"github.com/Aman-CERP/chatsearch/internal/store"
	"github.com/Aman-CERP/chatsearch/internal/telemetry"
)

// Limits and cache defaults.
const (
	DefaultLimit     = 50
	MaxLimit         = 200
	DefaultCacheSize = 256
)

// EngineConfig configures an Engine.
type EngineConfig struct {
	DefaultLimit int
	MaxLimit     int

	// CacheSize bounds the response cache. Negative disables caching.
	CacheSize int
}

// DefaultEngineConfig returns the standard limits.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		DefaultLimit: DefaultLimit,
		MaxLimit:     MaxLimit,
		CacheSize:    DefaultCacheSize,
	}
}

// cacheKey identifies a cached response. gen changes after each rebuild.
type cacheKey struct {
	gen   uint64
	match string
	limit int
}

// EngineOption configures the search engine.
type EngineOption func(*Engine)

// WithMetrics records every search in m.
func WithMetrics(m *telemetry.QueryMetrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// Engine serves queries against a Store. Safe for concurrent use.
type Engine struct {
	store     store.Store
	rebuilder Rebuilder
	config    EngineConfig
	metrics   *telemetry.QueryMetrics

	cache      *lru.Cache[cacheKey, *SearchResponse]
	generation atomic.Uint64
}

// NewEngine creates an engine. rebuilder may be nil, in which case status
// reports an idle job and reindex requests are refused.
func NewEngine(st store.Store, rebuilder Rebuilder, cfg EngineConfig, opts ...EngineOption) (*Engine, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}

	def := DefaultEngineConfig()
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = def.DefaultLimit
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = def.MaxLimit
	}
	if cfg.CacheSize == 0 {
		cfg.CacheSize = def.CacheSize
	}

	e := &Engine{store: st, rebuilder: rebuilder, config: cfg}
	if cfg.CacheSize > 0 {
		cache, err := lru.New[cacheKey, *SearchResponse](cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create search cache: %w", err)
		}
		e.cache = cache
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Invalidate drops cached responses. Called when a rebuild finishes.
func (e *Engine) Invalidate() {
	e.generation.Add(1)
	if e.cache != nil {
		e.cache.Purge()
	}
}

// OnRebuildComplete adapts Invalidate for async.Coordinator.OnComplete.
func (e *Engine) OnRebuildComplete(state async.JobState) {
	e.Invalidate()
	slog.Debug("search_cache_invalidated",
		slog.String("job_id", state.JobID),
		slog.Uint64("generation", e.generation.Load()))
}

// Limit clamps a requested result count: non-positive means the default.
func (e *Engine) Limit(limit int) int {
	if limit <= 0 {
		return e.config.DefaultLimit
	}
	return min(limit, e.config.MaxLimit)
}

// Search runs a prefix query. It never returns a transport-level failure:
// blank queries yield no results and store errors are reported in Error.
func (e *Engine) Search(ctx context.Context, query string, limit int) *SearchResponse {
	start := time.Now()
	query = strings.TrimSpace(query)
	resp := &SearchResponse{Results: []*store.Hit{}, Query: query}

	match := Sanitize(query)
	if match == "" {
		return resp
	}
	limit = e.Limit(limit)

	// both backends match case-insensitively
	key := cacheKey{gen: e.generation.Load(), match: strings.ToLower(match), limit: limit}
	if cached, ok := e.lookup(key); ok {
		e.record(query, cached, time.Since(start), true)
		return &SearchResponse{Results: cached.Results, Query: query, Count: cached.Count}
	}

	hits, err := e.store.Search(ctx, match, limit)
	if err != nil {
		resp.Error = queryErrorText(err)
		attrs := append([]any{slog.String("match", match)}, errors.LogAttrs(err)...)
		slog.Warn("search_failed", attrs...)
		e.record(query, resp, time.Since(start), false)
		return resp
	}

	if hits != nil {
		resp.Results = hits
	}
	resp.Count = len(resp.Results)
	e.remember(key, resp)
	e.record(query, resp, time.Since(start), false)

	slog.Debug("search_complete",
		slog.String("match", match),
		slog.Int("limit", limit),
		slog.Int("results", resp.Count),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))
	return resp
}

func (e *Engine) lookup(key cacheKey) (*SearchResponse, bool) {
	if e.cache == nil {
		return nil, false
	}
	resp, ok := e.cache.Get(key)
	if m := e.prometheus(); m != nil {
		m.ObserveCache(ok)
	}
	return resp, ok
}

// remember caches a response. Nothing is cached while a rebuild is in flight
// or after the generation moved on.
func (e *Engine) remember(key cacheKey, resp *SearchResponse) {
	if e.cache == nil {
		return
	}
	if e.rebuilder != nil && e.rebuilder.State().Running {
		return
	}
	if key.gen != e.generation.Load() {
		return
	}
	e.cache.Add(key, resp)
}

func (e *Engine) prometheus() *telemetry.Metrics {
	if e.metrics == nil {
		return nil
	}
	return e.metrics.Prometheus()
}

func (e *Engine) record(query string, resp *SearchResponse, latency time.Duration, cached bool) {
	if e.metrics == nil {
		return
	}
	e.metrics.Record(telemetry.QueryEvent{
		Query:       query,
		ResultCount: resp.Count,
		Latency:     latency,
		Failed:      resp.Error != "",
		Cached:      cached,
		Timestamp:   time.Now(),
	})
}

// queryErrorText returns the store's own message for query errors and the
// full error text otherwise.
func queryErrorText(err error) string {
	if ae, ok := errors.As(err); ok && ae.Code == errors.ErrCodeInvalidQuery {
		return ae.Message
	}
	return err.Error()
}

// Conversation returns every message of a session. Unknown sessions and
// store errors yield an empty list.
func (e *Engine) Conversation(ctx context.Context, sessionID string) *ConversationResponse {
	resp := &ConversationResponse{SessionID: sessionID, Messages: []*store.Message{}}

	msgs, err := e.store.Conversation(ctx, sessionID)
	if err != nil {
		attrs := append([]any{slog.String("session_id", sessionID)}, errors.LogAttrs(err)...)
		slog.Warn("conversation_failed", attrs...)
		return resp
	}
	if msgs != nil {
		resp.Messages = msgs
	}
	return resp
}

// Status reports whether an index exists and the rebuild job state.
func (e *Engine) Status(ctx context.Context) *StatusResponse {
	resp := &StatusResponse{}
	if e.rebuilder != nil {
		resp.IndexingJob = NewIndexingJob(e.rebuilder.State())
	}

	meta, err := e.store.Metadata(ctx)
	if err != nil {
		slog.Warn("status_metadata_failed", errors.LogAttrs(err)...)
		return resp
	}

	if ts, ok := meta[store.MetaLastIndexed]; ok {
		resp.Indexed = true
		resp.LastIndexed = &ts
	}
	if n, err := strconv.Atoi(meta[store.MetaMessageCount]); err == nil {
		resp.MessageCount = n
	}
	return resp
}

// TriggerReindex starts a rebuild unless one is running.
func (e *Engine) TriggerReindex() *ReindexResponse {
	if e.rebuilder == nil {
		return &ReindexResponse{Status: async.StatusAlreadyRunning}
	}
	status := e.rebuilder.Start()
	slog.Info("reindex_requested", slog.String("status", string(status)))
	return &ReindexResponse{Status: status}
}

// Telemetry returns the query metrics snapshot, or nil when not collected.
func (e *Engine) Telemetry() *telemetry.QueryMetricsSnapshot {
	if e.metrics == nil {
		return nil
	}
	return e.metrics.Snapshot()
}
