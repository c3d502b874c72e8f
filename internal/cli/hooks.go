package cli

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/geomap/pkg/observability"
)

// metrics counts pipeline, fetch and cache events for the server's /stats
// endpoint and echoes them to the debug log.
type metrics struct {
	logger *log.Logger

	runs        atomic.Int64
	runFailures atomic.Int64
	masks       atomic.Int64
	requests    atomic.Int64
	rateLimited atomic.Int64
	degraded    atomic.Int64
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
	cacheBytes  atomic.Int64
}

func newMetrics(logger *log.Logger) *metrics {
	return &metrics{logger: logger}
}

// register installs m as the process-wide hook set.
func (m *metrics) register() {
	observability.SetPipelineHooks(m)
	observability.SetFetchHooks(m)
	observability.SetCacheHooks(m)
}

// metricsSnapshot is the JSON form of the counters.
type metricsSnapshot struct {
	Runs        int64 `json:"runs"`
	RunFailures int64 `json:"run_failures"`
	Masks       int64 `json:"masks"`
	Requests    int64 `json:"requests"`
	RateLimited int64 `json:"rate_limited"`
	Degraded    int64 `json:"degraded"`
	CacheHits   int64 `json:"cache_hits"`
	CacheMisses int64 `json:"cache_misses"`
	CacheBytes  int64 `json:"cache_bytes"`
}

func (m *metrics) snapshot() metricsSnapshot {
	return metricsSnapshot{
		Runs:        m.runs.Load(),
		RunFailures: m.runFailures.Load(),
		Masks:       m.masks.Load(),
		Requests:    m.requests.Load(),
		RateLimited: m.rateLimited.Load(),
		Degraded:    m.degraded.Load(),
		CacheHits:   m.cacheHits.Load(),
		CacheMisses: m.cacheMisses.Load(),
		CacheBytes:  m.cacheBytes.Load(),
	}
}

func (m *metrics) OnFetchStart(ctx context.Context, runID string, sectors int) {
	m.runs.Add(1)
	m.logger.Debug("fetch start", "run", runID, "sectors", sectors)
}

func (m *metrics) OnFetchComplete(ctx context.Context, runID string, entities int, d time.Duration, err error) {
	if err != nil {
		m.runFailures.Add(1)
	}
	m.logger.Debug("fetch complete", "run", runID, "entities", entities, "duration", d, "err", err)
}

func (m *metrics) OnRenderStart(ctx context.Context, runID string, areas, ways int) {
	m.logger.Debug("render start", "run", runID, "areas", areas, "ways", ways)
}

func (m *metrics) OnRenderComplete(ctx context.Context, runID string, masks int, d time.Duration, err error) {
	if err != nil {
		m.runFailures.Add(1)
	}
	m.masks.Add(int64(masks))
	m.logger.Debug("render complete", "run", runID, "masks", masks, "duration", d, "err", err)
}

func (m *metrics) OnRequest(ctx context.Context, op, target string) {
	m.requests.Add(1)
	m.logger.Debug("fetch", "op", op, "target", target)
}

func (m *metrics) OnResponse(ctx context.Context, op string, entities int, d time.Duration) {
	m.logger.Debug("fetched", "op", op, "entities", entities, "duration", d)
}

func (m *metrics) OnRateLimited(ctx context.Context, op string, wait time.Duration) {
	m.rateLimited.Add(1)
}

func (m *metrics) OnError(ctx context.Context, op string, err error) {
	m.degraded.Add(1)
}

func (m *metrics) OnCacheHit(ctx context.Context, keyType string) {
	m.cacheHits.Add(1)
}

func (m *metrics) OnCacheMiss(ctx context.Context, keyType string) {
	m.cacheMisses.Add(1)
}

func (m *metrics) OnCacheSet(ctx context.Context, keyType string, size int) {
	m.cacheBytes.Add(int64(size))
}

var (
	_ observability.PipelineHooks = (*metrics)(nil)
	_ observability.FetchHooks    = (*metrics)(nil)
	_ observability.CacheHooks    = (*metrics)(nil)
)
