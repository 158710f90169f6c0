// Package indexer keeps one live search index per configured collection.
// Indexes are rebuilt from their record source and swapped in atomically,
// so queries always run against a complete, immutable index.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/kikaihonyaku/cocosumo-sub004/internal/indexer/index"
	"github.com/kikaihonyaku/cocosumo-sub004/internal/indexer/record"
	"github.com/kikaihonyaku/cocosumo-sub004/internal/indexer/source"
	"github.com/kikaihonyaku/cocosumo-sub004/internal/indexer/tokenizer"
	"github.com/kikaihonyaku/cocosumo-sub004/internal/searcher/ranker"
	"github.com/kikaihonyaku/cocosumo-sub004/internal/searcher/suggest"
	"github.com/kikaihonyaku/cocosumo-sub004/pkg/config"
	apperrors "github.com/kikaihonyaku/cocosumo-sub004/pkg/errors"
	"github.com/kikaihonyaku/cocosumo-sub004/pkg/metrics"
	"github.com/kikaihonyaku/cocosumo-sub004/pkg/resilience"
)

// Snapshot is one built index of a collection. Version changes on every
// rebuild and is unique across processes.
type Snapshot struct {
	Collection string
	Version    string
	BuiltAt    time.Time
	Index      *index.SearchIndex[record.Map]
}

// Search ranks the snapshot's records against query.
func (s *Snapshot) Search(query string, opts ranker.Options) []ranker.Result[record.Map] {
	return ranker.Search(s.Index, query, opts)
}

// Suggest completes prefix from the snapshot's vocabulary.
func (s *Snapshot) Suggest(prefix string, opts suggest.Options) []suggest.Entry {
	return suggest.Suggestions(s.Index, prefix, opts)
}

// SwapFunc is notified after a collection's index has been replaced.
type SwapFunc func(ctx context.Context, collection, version string)

type collection struct {
	cfg     config.CollectionConfig
	current atomic.Pointer[Snapshot]
}

// Engine owns the collections.
type Engine struct {
	collections map[string]*collection
	names       []string
	src         source.Source
	metrics     *metrics.Metrics
	retry       resilience.RetryConfig
	timeout     time.Duration
	group       singleflight.Group
	logger      *slog.Logger

	mu     sync.RWMutex
	onSwap []SwapFunc
}

// NewEngine registers every configured collection. No index is built until
// Rebuild or RebuildAll is called. m may be nil.
func NewEngine(cols []config.CollectionConfig, src source.Source, m *metrics.Metrics) *Engine {
	e := &Engine{
		collections: make(map[string]*collection, len(cols)),
		src:         src,
		metrics:     m,
		retry:       resilience.RetryConfig{MaxAttempts: 3, InitialDelay: 200 * time.Millisecond},
		timeout:     2 * time.Minute,
		logger:      slog.Default().With("component", "index-engine"),
	}
	for _, col := range cols {
		e.collections[col.Name] = &collection{cfg: col}
		e.names = append(e.names, col.Name)
	}
	sort.Strings(e.names)
	return e
}

// OnSwap registers fn to run after every successful rebuild.
func (e *Engine) OnSwap(fn SwapFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onSwap = append(e.onSwap, fn)
}

// Collections lists collection names in sorted order.
func (e *Engine) Collections() []string {
	return append([]string(nil), e.names...)
}

// Snapshot returns the live index of a collection.
func (e *Engine) Snapshot(name string) (*Snapshot, error) {
	col, ok := e.collections[name]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrUnknownCollection, 0, "collection %q is not configured", name)
	}
	snap := col.current.Load()
	if snap == nil {
		return nil, apperrors.Newf(apperrors.ErrIndexNotReady, 0, "collection %q has not been indexed yet", name)
	}
	return snap, nil
}

// Rebuild loads the collection's records and swaps in a fresh index.
// Concurrent calls for the same collection share one build. The shared
// build is detached from the caller's cancellation and bounded by the
// engine's build timeout; a cancelled caller stops waiting but the build
// completes for the others.
func (e *Engine) Rebuild(ctx context.Context, name string) (*Snapshot, error) {
	col, ok := e.collections[name]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrUnknownCollection, 0, "collection %q is not configured", name)
	}
	ch := e.group.DoChan(name, func() (any, error) {
		buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
		defer cancel()
		return e.rebuild(buildCtx, col)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			e.logger.Debug("rebuild coalesced", "collection", name)
		}
		return res.Val.(*Snapshot), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for %s rebuild: %w", name, ctx.Err())
	}
}

func (e *Engine) rebuild(ctx context.Context, col *collection) (*Snapshot, error) {
	name := col.cfg.Name
	start := time.Now()

	var records []record.Map
	err := resilience.Retry(ctx, "load "+name, e.retry, func(ctx context.Context) error {
		var err error
		records, err = e.src.Load(ctx, col.cfg)
		return err
	})
	if err != nil {
		e.observeBuild(name, "error", time.Since(start))
		e.logger.Error("rebuild failed", "collection", name, "error", err)
		return nil, fmt.Errorf("rebuilding %s: %w", name, err)
	}

	idx := index.Build(records, col.cfg.Fields, buildOptions(col.cfg))
	snap := &Snapshot{
		Collection: name,
		Version:    uuid.NewString(),
		BuiltAt:    time.Now().UTC(),
		Index:      idx,
	}
	prev := col.current.Swap(snap)

	stats := idx.Stats()
	elapsed := time.Since(start)
	e.observeBuild(name, "ok", elapsed)
	if e.metrics != nil {
		e.metrics.IndexedDocuments.WithLabelValues(name).Set(float64(stats.Documents))
		e.metrics.IndexVocabulary.WithLabelValues(name).Set(float64(stats.Terms))
	}
	e.logger.Info("index rebuilt",
		"collection", name,
		"version", snap.Version,
		"documents", stats.Documents,
		"terms", stats.Terms,
		"tokens", stats.Tokens,
		"duration_ms", elapsed.Milliseconds(),
	)

	if prev != nil {
		e.mu.RLock()
		hooks := append([]SwapFunc(nil), e.onSwap...)
		e.mu.RUnlock()
		for _, fn := range hooks {
			fn(ctx, name, prev.Version)
		}
	}
	return snap, nil
}

// RebuildAll rebuilds every collection in parallel and returns the first
// error encountered. Collections that built successfully stay swapped in.
func (e *Engine) RebuildAll(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, name := range e.names {
		g.Go(func() error {
			_, err := e.Rebuild(ctx, name)
			return err
		})
	}
	return g.Wait()
}

// Ready reports an error when any collection has no index yet.
func (e *Engine) Ready(context.Context) error {
	for _, name := range e.names {
		if e.collections[name].current.Load() == nil {
			return apperrors.Newf(apperrors.ErrIndexNotReady, 0, "collection %q has not been indexed yet", name)
		}
	}
	return nil
}

func (e *Engine) observeBuild(name, status string, d time.Duration) {
	if e.metrics == nil {
		return
	}
	e.metrics.IndexBuildsTotal.WithLabelValues(name, status).Inc()
	e.metrics.IndexBuildDuration.WithLabelValues(name).Observe(d.Seconds())
}

func buildOptions(col config.CollectionConfig) index.BuildOptions {
	tok := tokenizer.DefaultOptions()
	if col.MinTokenLength > 0 {
		tok.MinLength = col.MinTokenLength
	}
	tok.Lowercase = !col.CaseSensitive
	tok.RemoveStopWords = col.RemoveStopWords
	tok.Normalize = col.Normalize
	return index.BuildOptions{Weights: col.Weights, TokenizeOptions: tok}
}
