// Package observability provides hooks for metrics, tracing, and logging.
//
// The pipeline, cache and HTTP layers emit events through a small hook
// registry so instrumentation backends can be attached at startup without
// the libraries depending on any observability framework. Defaults are
// no-ops; main registers real implementations if it wants them.
//
// Merge progress cadence is purely observational: the scheduler calls
// OnMergeStep for every fusion, and whatever the hook does with that has no
// effect on the algorithm's result.
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Pipeline Hooks
// =============================================================================

// PipelineHooks receives events from the merge pipeline.
type PipelineHooks interface {
	// Fetch events cover population and boundary retrieval.
	OnFetchStart(ctx context.Context, year int)
	OnFetchComplete(ctx context.Context, year, unitCount int, duration time.Duration, err error)

	// Adjacency events cover the touches-relation build.
	OnAdjacencyStart(ctx context.Context, unitCount int)
	OnAdjacencyComplete(ctx context.Context, edgeCount int, duration time.Duration, err error)

	// Merge events cover the greedy fixed-point loop. OnMergeStep fires
	// once per fusion with the successor id and population.
	OnMergeStart(ctx context.Context, regionCount, threshold int)
	OnMergeStep(ctx context.Context, step int, mergedID string, population int)
	OnMergeComplete(ctx context.Context, iterations, finalCount int, duration time.Duration, err error)

	// Export events cover record projection and GeoJSON encoding.
	OnExportStart(ctx context.Context, regionCount int)
	OnExportComplete(ctx context.Context, duration time.Duration, err error)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from HTTP client operations.
type HTTPHooks interface {
	// OnRequest records an outgoing HTTP request.
	OnRequest(ctx context.Context, method, host, path string)

	// OnResponse records an HTTP response.
	OnResponse(ctx context.Context, method, host, path string, statusCode int, duration time.Duration)

	// OnError records an HTTP error (network failure, timeout).
	OnError(ctx context.Context, method, host, path string, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopPipelineHooks is a no-op implementation of PipelineHooks.
type NoopPipelineHooks struct{}

func (NoopPipelineHooks) OnFetchStart(context.Context, int)                               {}
func (NoopPipelineHooks) OnFetchComplete(context.Context, int, int, time.Duration, error) {}
func (NoopPipelineHooks) OnAdjacencyStart(context.Context, int)                           {}
func (NoopPipelineHooks) OnAdjacencyComplete(context.Context, int, time.Duration, error)  {}
func (NoopPipelineHooks) OnMergeStart(context.Context, int, int)                          {}
func (NoopPipelineHooks) OnMergeStep(context.Context, int, string, int)                   {}
func (NoopPipelineHooks) OnMergeComplete(context.Context, int, int, time.Duration, error) {}
func (NoopPipelineHooks) OnExportStart(context.Context, int)                              {}
func (NoopPipelineHooks) OnExportComplete(context.Context, time.Duration, error)          {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnError(context.Context, string, string, string, error)                 {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	pipelineHooks PipelineHooks = NoopPipelineHooks{}
	cacheHooks    CacheHooks    = NoopCacheHooks{}
	httpHooks     HTTPHooks     = NoopHTTPHooks{}
	hooksMu       sync.RWMutex
)

// SetPipelineHooks registers custom pipeline hooks.
// This should be called once at application startup before any pipeline runs.
func SetPipelineHooks(h PipelineHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		pipelineHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
// This should be called once at application startup before any cache operations.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetHTTPHooks registers custom HTTP hooks.
// This should be called once at application startup before any HTTP operations.
func SetHTTPHooks(h HTTPHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		httpHooks = h
	}
}

// Pipeline returns the registered pipeline hooks.
func Pipeline() PipelineHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return pipelineHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// HTTP returns the registered HTTP hooks.
func HTTP() HTTPHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return httpHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	pipelineHooks = NoopPipelineHooks{}
	cacheHooks = NoopCacheHooks{}
	httpHooks = NoopHTTPHooks{}
}
