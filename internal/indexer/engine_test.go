package indexer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kikaihonyaku/cocosumo-sub004/internal/indexer/record"
	"github.com/kikaihonyaku/cocosumo-sub004/internal/searcher/ranker"
	"github.com/kikaihonyaku/cocosumo-sub004/internal/searcher/suggest"
	"github.com/kikaihonyaku/cocosumo-sub004/pkg/config"
	apperrors "github.com/kikaihonyaku/cocosumo-sub004/pkg/errors"
	"github.com/kikaihonyaku/cocosumo-sub004/pkg/metrics"
	"github.com/kikaihonyaku/cocosumo-sub004/pkg/resilience"
)

type fakeSource struct {
	mu      sync.Mutex
	records map[string][]record.Map
	err     error
	calls   atomic.Int32
	block   chan struct{}
}

func (f *fakeSource) Load(ctx context.Context, col config.CollectionConfig) ([]record.Map, error) {
	f.calls.Add(1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.records[col.Name], nil
}

func (f *fakeSource) set(name string, recs []record.Map) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[name] = recs
}

var testCollections = []config.CollectionConfig{
	{Name: "rooms", Fields: []string{"name", "building.name"}, Weights: map[string]float64{"name": 2}},
	{Name: "buildings", Fields: []string{"name", "address"}},
}

func newTestEngine(t *testing.T) (*Engine, *fakeSource) {
	t.Helper()
	src := &fakeSource{records: map[string][]record.Map{
		"rooms": {
			{"id": "r1", "name": "Sunny Room", "building": map[string]any{"name": "Shibuya Tower"}},
			{"id": "r2", "name": "Quiet Room", "building": map[string]any{"name": "Ebisu House"}},
		},
		"buildings": {
			{"id": "b1", "name": "渋谷マンション", "address": "東京都渋谷区"},
			{"id": "b2", "name": "恵比寿ハウス", "address": "東京都渋谷区恵比寿"},
		},
	}}
	e := NewEngine(testCollections, src, nil)
	e.retry = resilience.RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond}
	return e, src
}

func TestEngine_SnapshotBeforeBuild(t *testing.T) {
	e, _ := newTestEngine(t)
	if _, err := e.Snapshot("rooms"); !errors.Is(err, apperrors.ErrIndexNotReady) {
		t.Errorf("err = %v, want ErrIndexNotReady", err)
	}
	if _, err := e.Snapshot("nope"); !errors.Is(err, apperrors.ErrUnknownCollection) {
		t.Errorf("err = %v, want ErrUnknownCollection", err)
	}
	if err := e.Ready(context.Background()); err == nil {
		t.Error("Ready should fail before any build")
	}
}

func TestEngine_RebuildAllAndSearch(t *testing.T) {
	e, _ := newTestEngine(t)
	if err := e.RebuildAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := e.Ready(context.Background()); err != nil {
		t.Errorf("Ready = %v", err)
	}

	snap, err := e.Snapshot("rooms")
	if err != nil {
		t.Fatal(err)
	}
	results := snap.Search("shibuya", ranker.DefaultOptions())
	if len(results) != 1 || results[0].ID != "r1" {
		t.Fatalf("results = %+v, want r1", results)
	}

	bsnap, _ := e.Snapshot("buildings")
	entries := bsnap.Suggest("渋", suggest.DefaultOptions())
	if len(entries) == 0 {
		t.Error("expected suggestions for 渋")
	}
}

func TestEngine_RebuildSwapsVersion(t *testing.T) {
	e, src := newTestEngine(t)
	first, err := e.Rebuild(context.Background(), "rooms")
	if err != nil {
		t.Fatal(err)
	}

	var swapped []string
	e.OnSwap(func(_ context.Context, collection, version string) {
		swapped = append(swapped, collection+"@"+version)
	})

	src.set("rooms", []record.Map{{"id": "r3", "name": "Loft"}})
	second, err := e.Rebuild(context.Background(), "rooms")
	if err != nil {
		t.Fatal(err)
	}
	if first.Version == second.Version {
		t.Error("version did not change across rebuilds")
	}
	if len(swapped) != 1 || swapped[0] != "rooms@"+first.Version {
		t.Errorf("swap hooks = %v, want previous version", swapped)
	}

	live, _ := e.Snapshot("rooms")
	if live.Index.DocumentCount != 1 {
		t.Errorf("live DocumentCount = %d, want 1", live.Index.DocumentCount)
	}
	if first.Index.DocumentCount != 2 {
		t.Error("old snapshot was mutated by rebuild")
	}
}

func TestEngine_RebuildFailureKeepsPreviousIndex(t *testing.T) {
	reg := prometheus.NewRegistry()
	e, src := newTestEngine(t)
	e.metrics = metrics.New(reg)

	if _, err := e.Rebuild(context.Background(), "rooms"); err != nil {
		t.Fatal(err)
	}
	src.mu.Lock()
	src.err = errors.New("connection reset")
	src.mu.Unlock()

	if _, err := e.Rebuild(context.Background(), "rooms"); err == nil {
		t.Fatal("expected rebuild error")
	}
	snap, err := e.Snapshot("rooms")
	if err != nil || snap.Index.DocumentCount != 2 {
		t.Errorf("previous index lost: %v", err)
	}
	if got := testutil.ToFloat64(e.metrics.IndexBuildsTotal.WithLabelValues("rooms", "error")); got != 1 {
		t.Errorf("error builds = %v, want 1", got)
	}
	if got := testutil.ToFloat64(e.metrics.IndexedDocuments.WithLabelValues("rooms")); got != 2 {
		t.Errorf("index_documents = %v, want 2", got)
	}
}

func TestEngine_RebuildCoalescesConcurrentCalls(t *testing.T) {
	e, src := newTestEngine(t)
	src.block = make(chan struct{})

	var wg sync.WaitGroup
	snaps := make([]*Snapshot, 4)
	for i := range snaps {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snaps[i], _ = e.Rebuild(context.Background(), "rooms")
		}()
	}
	// Let every goroutine join the in-flight build before releasing it.
	time.Sleep(50 * time.Millisecond)
	close(src.block)
	wg.Wait()

	if n := src.calls.Load(); n != 1 {
		t.Errorf("source loaded %d times, want 1", n)
	}
	for _, s := range snaps[1:] {
		if s == nil || s.Version != snaps[0].Version {
			t.Fatalf("callers observed different builds")
		}
	}
}

func TestEngine_RebuildSurvivesCancelledCaller(t *testing.T) {
	e, src := newTestEngine(t)
	src.block = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := e.Rebuild(ctx, "rooms")
		firstErr <- err
	}()
	time.Sleep(20 * time.Millisecond)

	second := make(chan *Snapshot, 1)
	go func() {
		snap, _ := e.Rebuild(context.Background(), "rooms")
		second <- snap
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled caller err = %v, want context.Canceled", err)
	}
	close(src.block)

	snap := <-second
	if snap == nil {
		t.Fatal("joined caller got no snapshot after the first caller was cancelled")
	}
	if n := src.calls.Load(); n != 1 {
		t.Errorf("source loaded %d times, want 1", n)
	}
	if _, err := e.Snapshot("rooms"); err != nil {
		t.Errorf("snapshot after rebuild: %v", err)
	}
}

func TestEngine_UnknownCollectionRebuild(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.Rebuild(context.Background(), "nope")
	if !errors.Is(err, apperrors.ErrUnknownCollection) {
		t.Errorf("err = %v", err)
	}
}

func TestBuildOptions(t *testing.T) {
	opts := buildOptions(config.CollectionConfig{MinTokenLength: 2, CaseSensitive: true, RemoveStopWords: true})
	tok := opts.TokenizeOptions
	if tok.MinLength != 2 || tok.Lowercase || !tok.RemoveStopWords {
		t.Errorf("tokenize options = %+v", tok)
	}
	if buildOptions(config.CollectionConfig{}).TokenizeOptions.MinLength != 1 {
		t.Error("zero MinTokenLength should keep the default")
	}
}
