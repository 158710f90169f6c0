package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew_RegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.SearchQueriesTotal.WithLabelValues("rooms", "hit").Inc()
	m.IndexedDocuments.WithLabelValues("rooms").Set(42)

	if got := testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("rooms", "hit")); got != 1 {
		t.Errorf("search_queries_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.IndexedDocuments.WithLabelValues("rooms")); got != 42 {
		t.Errorf("index_documents = %v, want 42", got)
	}
	if n, err := testutil.GatherAndCount(reg, "index_documents"); err != nil || n != 1 {
		t.Errorf("GatherAndCount = %d, %v", n, err)
	}
}

func TestNew_SeparateRegistries(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("registering twice on fresh registries panicked: %v", r)
		}
	}()
	New(prometheus.NewRegistry())
	New(prometheus.NewRegistry())
}
