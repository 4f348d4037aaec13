// Package engine orchestrates keyword expansion runs: it drains a FIFO
// frontier of phrases, consults the result cache, falls back to the rate
// limiter plus the Wordstat client on a miss, and emits progress events to
// the caller's sink.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/komyaka/wordstat/internal/cache"
	"github.com/komyaka/wordstat/internal/events"
	"github.com/komyaka/wordstat/internal/filter"
	"github.com/komyaka/wordstat/internal/models"
	"github.com/komyaka/wordstat/internal/normalize"
	"github.com/komyaka/wordstat/internal/ratelimit"
	"github.com/komyaka/wordstat/internal/wordstat"
)

// CacheMode controls how a run uses the result cache.
type CacheMode string

const (
	// CacheOn reads and writes the cache (default).
	CacheOn CacheMode = "on"
	// CacheOff bypasses the cache entirely.
	CacheOff CacheMode = "off"
	// CacheOnly serves hits and skips the API on misses.
	CacheOnly CacheMode = "only"
	// CacheRefresh queries the API and overwrites cached entries.
	CacheRefresh CacheMode = "refresh"
)

// ParseCacheMode maps a config string to a CacheMode; empty means CacheOn.
func ParseCacheMode(s string) (CacheMode, error) {
	switch CacheMode(s) {
	case "", CacheOn:
		return CacheOn, nil
	case CacheOff, CacheOnly, CacheRefresh:
		return CacheMode(s), nil
	}
	return "", fmt.Errorf("unknown cache mode %q (want on, off, only, or refresh)", s)
}

// Options tune a run independent of the request.
type Options struct {
	// CacheTTL is the expiry applied to fresh cache entries.
	CacheTTL time.Duration
	// CacheMode selects the cache policy; zero value behaves as CacheOn.
	CacheMode CacheMode
	// AcquireTimeout bounds the wait for rate-limit admission per phrase.
	AcquireTimeout time.Duration
	// MaxRetries caps attempts per API call; retried only for transient errors.
	MaxRetries int
	// RetryBaseDelay is the first backoff delay; it doubles per attempt.
	RetryBaseDelay time.Duration
	// ParamsKey discriminates cache keys by query parameters.
	ParamsKey string
}

func (o *Options) applyDefaults() {
	if o.CacheTTL <= 0 {
		o.CacheTTL = 7 * 24 * time.Hour
	}
	if o.CacheMode == "" {
		o.CacheMode = CacheOn
	}
	if o.AcquireTimeout <= 0 {
		o.AcquireTimeout = 60 * time.Second
	}
	if o.MaxRetries < 1 {
		o.MaxRetries = 3
	}
	if o.RetryBaseDelay <= 0 {
		o.RetryBaseDelay = 500 * time.Millisecond
	}
}

// Engine expands seed phrases into a scored keyword set. It is safe to run
// multiple runs concurrently; each run owns its own state, while the limiter
// and cache are shared and internally synchronized.
type Engine struct {
	client  wordstat.Client
	limiter *ratelimit.Limiter
	cache   *cache.Cache // nil when caching is disabled
	filter  *filter.Filter
	opts    Options
	logger  *zap.Logger
}

// New creates an engine. cache and flt may be nil.
func New(client wordstat.Client, limiter *ratelimit.Limiter, c *cache.Cache, flt *filter.Filter, opts Options, logger *zap.Logger) (*Engine, error) {
	if client == nil {
		return nil, fmt.Errorf("client cannot be nil")
	}
	if limiter == nil {
		return nil, fmt.Errorf("limiter cannot be nil")
	}
	opts.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		client:  client,
		limiter: limiter,
		cache:   c,
		filter:  flt,
		opts:    opts,
		logger:  logger,
	}, nil
}

type frontierItem struct {
	phrase string
	depth  int
	seed   string
}

// errQuotaTimeout marks a phrase skipped because admission was not granted
// within the acquire timeout.
var errQuotaTimeout = errors.New("rate limit admission timed out")

// Run executes one expansion run to exhaustion or cancellation, emitting
// events to sink and returning the terminal status. Cancellation is
// cooperative via ctx, checked before each phrase. Per-phrase failures never
// abort the run; only a panic in the loop maps to StatusFailed.
func (e *Engine) Run(ctx context.Context, runID string, req models.RunRequest, sink events.Sink) (status models.RunStatus) {
	results := make([]models.KeywordRecord, 0, 64)
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("run failed", zap.String("run_id", runID), zap.Any("panic", r))
			status = models.StatusFailed
			sink.Emit(events.Event{
				Type:    events.TypeFailed,
				RunID:   runID,
				Message: fmt.Sprintf("fatal: %v", r),
				Results: results,
			})
		}
	}()

	seeds := normalize.Seeds(req.Seeds)
	frontier := make([]frontierItem, 0, len(seeds))
	enqueued := make(map[string]struct{}, len(seeds))
	for _, s := range seeds {
		frontier = append(frontier, frontierItem{phrase: s, depth: 0, seed: s})
		enqueued[s] = struct{}{}
	}

	visited := make(map[string]struct{})
	resultIndex := make(map[string]struct{})
	processed := 0

	e.logger.Info("run started",
		zap.String("run_id", runID),
		zap.Int("seeds", len(seeds)),
		zap.Int("max_depth", req.MaxDepth),
	)

	for len(frontier) > 0 {
		select {
		case <-ctx.Done():
			e.logger.Info("run cancelled", zap.String("run_id", runID), zap.Int("processed", processed))
			sink.Emit(events.Event{
				Type:    events.TypeCancelled,
				RunID:   runID,
				Message: fmt.Sprintf("cancelled after %d phrases", processed),
				Results: results,
			})
			return models.StatusCancelled
		default:
		}

		item := frontier[0]
		frontier = frontier[1:]
		if _, seen := visited[item.phrase]; seen {
			continue
		}
		visited[item.phrase] = struct{}{}

		rows, source, err := e.fetch(ctx, item.phrase)
		if err != nil {
			if errors.Is(err, errQuotaTimeout) {
				sink.Emit(events.Event{
					Type:    events.TypeWarning,
					RunID:   runID,
					Phrase:  item.phrase,
					Message: "quota exhausted: admission not granted within timeout, phrase skipped",
				})
			} else if ctx.Err() != nil {
				// Cancelled mid-fetch; the loop top emits the terminal event.
				frontier = append([]frontierItem{item}, frontier...)
				delete(visited, item.phrase)
				continue
			} else {
				e.logger.Warn("phrase failed",
					zap.String("run_id", runID),
					zap.String("phrase", item.phrase),
					zap.Error(err),
				)
				sink.Emit(events.Event{
					Type:    events.TypeError,
					RunID:   runID,
					Phrase:  item.phrase,
					Message: err.Error(),
				})
			}
			processed++
			sink.Emit(progressEvent(runID, processed, len(frontier), item.phrase))
			continue
		}

		kept := make([]wordstat.Row, 0, len(rows))
		for _, row := range rows {
			phrase := normalize.Phrase(row.Phrase)
			if phrase == "" {
				continue
			}
			if ok, _ := e.filter.Apply(phrase, row.Count); !ok {
				continue
			}
			kept = append(kept, wordstat.Row{Phrase: phrase, Count: row.Count})
			if _, dup := resultIndex[phrase]; dup {
				// First-seen record wins; never overwritten by a later duplicate.
				continue
			}
			resultIndex[phrase] = struct{}{}
			results = append(results, models.KeywordRecord{
				Phrase: phrase,
				Count:  row.Count,
				Depth:  item.depth + 1,
				Seed:   item.seed,
				Source: source,
			})
		}

		if item.depth+1 <= req.MaxDepth {
			children := kept
			if req.TopN > 0 && len(children) > req.TopN {
				children = append([]wordstat.Row(nil), kept...)
				sort.SliceStable(children, func(i, j int) bool { return children[i].Count > children[j].Count })
				children = children[:req.TopN]
			}
			for _, child := range children {
				if _, seen := visited[child.Phrase]; seen {
					continue
				}
				if _, queued := enqueued[child.Phrase]; queued {
					continue
				}
				enqueued[child.Phrase] = struct{}{}
				frontier = append(frontier, frontierItem{phrase: child.Phrase, depth: item.depth + 1, seed: item.seed})
			}
		}

		processed++
		sink.Emit(progressEvent(runID, processed, len(frontier), item.phrase))
	}

	e.logger.Info("run completed",
		zap.String("run_id", runID),
		zap.Int("processed", processed),
		zap.Int("results", len(results)),
	)
	sink.Emit(events.Event{
		Type:      events.TypeCompleted,
		RunID:     runID,
		Processed: processed,
		Results:   results,
	})
	return models.StatusCompleted
}

func progressEvent(runID string, processed, remaining int, phrase string) events.Event {
	return events.Event{
		Type:      events.TypeProgress,
		RunID:     runID,
		Phrase:    phrase,
		Processed: processed,
		Remaining: remaining,
	}
}

// fetch resolves one phrase to rows: cache first (per mode), then
// admission-checked API call with bounded backoff on transient failures.
func (e *Engine) fetch(ctx context.Context, phrase string) ([]wordstat.Row, models.Source, error) {
	key := phrase
	if e.opts.ParamsKey != "" {
		key = phrase + "|" + e.opts.ParamsKey
	}
	mode := e.opts.CacheMode
	useCache := e.cache != nil && mode != CacheOff

	if useCache && mode != CacheRefresh {
		if records, ok := e.cache.Get(ctx, key); ok {
			rows := make([]wordstat.Row, 0, len(records))
			for _, r := range records {
				rows = append(rows, wordstat.Row{Phrase: r.Phrase, Count: r.Count})
			}
			return rows, models.SourceCache, nil
		}
		if mode == CacheOnly {
			// Nothing cached and the API is off limits: no data, not an error.
			return nil, models.SourceCache, nil
		}
	}

	if !e.limiter.WaitAcquire(ctx, e.opts.AcquireTimeout) {
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		return nil, "", errQuotaTimeout
	}

	rows, err := e.query(ctx, phrase)
	if err != nil {
		return nil, "", err
	}

	if useCache {
		records := make([]models.KeywordRecord, 0, len(rows))
		for _, r := range rows {
			records = append(records, models.KeywordRecord{Phrase: r.Phrase, Count: r.Count, Depth: 1})
		}
		e.cache.Set(ctx, key, records, e.opts.CacheTTL)
	}
	return rows, models.SourceAPI, nil
}

// query calls the client, retrying transient failures with exponential
// backoff up to MaxRetries attempts.
func (e *Engine) query(ctx context.Context, phrase string) ([]wordstat.Row, error) {
	delay := e.opts.RetryBaseDelay
	var lastErr error
	for attempt := 1; attempt <= e.opts.MaxRetries; attempt++ {
		rows, err := e.client.TopRequests(ctx, phrase)
		if err == nil {
			return rows, nil
		}
		lastErr = err

		var apiErr *wordstat.APIError
		if !errors.As(err, &apiErr) || !apiErr.Retryable() || attempt == e.opts.MaxRetries {
			break
		}
		e.logger.Debug("transient api error, backing off",
			zap.String("phrase", phrase),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return nil, lastErr
}
