package ranker

import (
	"encoding/json"
	"fmt"
	"math"
	"testing"

	"github.com/kikaihonyaku/cocosumo-sub004/internal/indexer/index"
	"github.com/kikaihonyaku/cocosumo-sub004/internal/indexer/record"
)

func buildIndex(items []record.Map, fields ...string) *index.SearchIndex[record.Map] {
	return index.Build(items, fields, index.DefaultBuildOptions())
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSearch_JapaneseListing(t *testing.T) {
	idx := buildIndex([]record.Map{
		{"id": json.Number("1"), "name": "東京マンション"},
		{"id": json.Number("2"), "name": "大阪ビル"},
	}, "name")

	results := Search(idx, "東京", DefaultOptions())
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1: %+v", len(results), results)
	}
	if results[0].ID != "1" {
		t.Errorf("ID = %q, want 1", results[0].ID)
	}
	// weight 1 × tf 1/2 × ln(2/1) × boost 2
	if want := math.Log(2); !almostEqual(results[0].Score, want) {
		t.Errorf("Score = %v, want %v", results[0].Score, want)
	}
	if results[0].Item["name"] != "東京マンション" {
		t.Errorf("Item = %v, want the stored record", results[0].Item)
	}
}

func TestSearch_BlankQuery(t *testing.T) {
	idx := buildIndex([]record.Map{{"id": "1", "name": "東京"}}, "name")
	for _, q := range []string{"", "   ", "\t\n", "、。"} {
		if got := Search(idx, q, DefaultOptions()); len(got) != 0 {
			t.Errorf("Search(%q) = %+v, want empty", q, got)
		}
	}
	if got := Search[record.Map](nil, "東京", DefaultOptions()); len(got) != 0 {
		t.Errorf("nil index returned %+v", got)
	}
	empty := buildIndex(nil, "name")
	if got := Search(empty, "東京", DefaultOptions()); len(got) != 0 {
		t.Errorf("empty index returned %+v", got)
	}
}

func TestSearch_UnknownToken(t *testing.T) {
	idx := buildIndex([]record.Map{{"id": "1", "name": "東京"}, {"id": "2", "name": "大阪"}}, "name")
	if got := Search(idx, "名古屋", DefaultOptions()); len(got) != 0 {
		t.Errorf("unknown token returned %+v", got)
	}
}

func TestSearch_TokenInEveryDocumentScoresZero(t *testing.T) {
	idx := buildIndex([]record.Map{
		{"id": "1", "name": "東京マンション"},
		{"id": "2", "name": "東京ビル"},
	}, "name")
	if got := Search(idx, "東京", DefaultOptions()); len(got) != 0 {
		t.Errorf("IDF of a ubiquitous token must be 0, got %+v", got)
	}
	got := Search(idx, "東京", Options{Threshold: -1})
	if len(got) != 2 {
		t.Fatalf("with negative threshold expected both items, got %+v", got)
	}
	for _, r := range got {
		if r.Score != 0 {
			t.Errorf("item %s score = %v, want 0", r.ID, r.Score)
		}
	}
}

func TestSearch_FieldWeightsAndFrequency(t *testing.T) {
	items := []record.Map{
		{"id": "a", "name": "渋谷", "note": "静か"},
		{"id": "b", "name": "静か", "note": "渋谷"},
		{"id": "c", "name": "新宿", "note": "駅前"},
	}
	opts := index.DefaultBuildOptions()
	opts.Weights = map[string]float64{"name": 3}
	idx := index.Build(items, []string{"name", "note"}, opts)

	results := Search(idx, "渋谷", DefaultOptions())
	if len(results) != 2 {
		t.Fatalf("got %+v", results)
	}
	if results[0].ID != "a" || results[1].ID != "b" {
		t.Errorf("order = %s, %s; want a, b", results[0].ID, results[1].ID)
	}
	idf := math.Log(3.0 / 2.0)
	if !almostEqual(results[0].Score, 3*idf*2) || !almostEqual(results[1].Score, 1*idf*2) {
		t.Errorf("scores = %v, %v", results[0].Score, results[1].Score)
	}
}

func TestSearch_BoostAndThresholdAndLimit(t *testing.T) {
	items := make([]record.Map, 0, 10)
	for i := 0; i < 10; i++ {
		name := "新宿"
		if i%2 == 0 {
			name = "渋谷 ハイツ"
		}
		items = append(items, record.Map{"id": fmt.Sprint(i), "name": name})
	}
	idx := buildIndex(items, "name")

	base := Search(idx, "渋谷", DefaultOptions())
	if len(base) != 5 {
		t.Fatalf("got %d results, want 5", len(base))
	}
	boosted := Search(idx, "渋谷", Options{BoostExact: 4})
	if !almostEqual(boosted[0].Score, base[0].Score*2) {
		t.Errorf("boost 4 score = %v, want double of %v", boosted[0].Score, base[0].Score)
	}
	limited := Search(idx, "渋谷", Options{Limit: 2})
	if len(limited) != 2 {
		t.Errorf("limit 2 returned %d", len(limited))
	}
	if got := Search(idx, "渋谷", Options{Threshold: base[0].Score}); len(got) != 0 {
		t.Errorf("threshold equal to score should exclude, got %d", len(got))
	}
}

func TestSearch_ZeroBoostAndFuzzyThresholdMeanDefaults(t *testing.T) {
	idx := buildIndex([]record.Map{
		{"id": "1", "name": "tokyo tower"},
		{"id": "2", "name": "osaka castle"},
		{"id": "3", "name": "tokio hotel"},
	}, "name")

	want := scoresByID(Search(idx, "tokyo", Options{Fuzzy: true, FuzzyThreshold: DefaultFuzzyThreshold, BoostExact: DefaultBoostExact}))
	got := scoresByID(Search(idx, "tokyo", Options{Fuzzy: true}))
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for id, score := range want {
		if !almostEqual(got[id], score) {
			t.Errorf("score[%s] = %v, want %v", id, got[id], score)
		}
	}
}

func TestSearch_TiesKeepInsertionOrder(t *testing.T) {
	items := []record.Map{
		{"id": "z", "name": "渋谷"},
		{"id": "m", "name": "新宿"},
		{"id": "a", "name": "渋谷"},
		{"id": "k", "name": "渋谷"},
	}
	idx := buildIndex(items, "name")
	for i := 0; i < 20; i++ {
		results := Search(idx, "渋谷", DefaultOptions())
		got := []string{results[0].ID, results[1].ID, results[2].ID}
		if got[0] != "z" || got[1] != "a" || got[2] != "k" {
			t.Fatalf("tie order = %v, want [z a k]", got)
		}
	}
}

func TestSearch_OrderIndependentScores(t *testing.T) {
	a := record.Map{"id": "A", "name": "渋谷 マンション", "city": "東京"}
	b := record.Map{"id": "B", "name": "新宿 マンション 新宿", "city": "東京"}
	c := record.Map{"id": "C", "name": "大阪 ビル", "city": "大阪"}

	forward := buildIndex([]record.Map{a, b, c}, "name", "city")
	reverse := buildIndex([]record.Map{c, b, a}, "name", "city")

	for _, q := range []string{"マンション", "新宿 東京", "大阪"} {
		got := scoresByID(Search(forward, q, DefaultOptions()))
		want := scoresByID(Search(reverse, q, DefaultOptions()))
		if len(got) != len(want) {
			t.Fatalf("query %q: %v vs %v", q, got, want)
		}
		for id, s := range got {
			if !almostEqual(s, want[id]) {
				t.Errorf("query %q item %s: %v vs %v", q, id, s, want[id])
			}
		}
	}
}

func TestSearch_Fuzzy(t *testing.T) {
	idx := buildIndex([]record.Map{
		{"id": "1", "name": "mansion"},
		{"id": "2", "name": "office"},
		{"id": "3", "name": "tower"},
	}, "name")

	if got := Search(idx, "mension", DefaultOptions()); len(got) != 0 {
		t.Fatalf("exact-only search should miss a typo, got %+v", got)
	}
	opts := DefaultOptions()
	opts.Fuzzy = true
	got := Search(idx, "mension", opts)
	if len(got) != 1 || got[0].ID != "1" {
		t.Fatalf("fuzzy search = %+v, want item 1", got)
	}
	sim := 6.0 / 7.0
	want := 1.0 * 1.0 * math.Log(3) * sim
	if !almostEqual(got[0].Score, want) {
		t.Errorf("fuzzy score = %v, want %v (no exact boost)", got[0].Score, want)
	}

	opts.FuzzyThreshold = 0.9
	if got := Search(idx, "mension", opts); len(got) != 0 {
		t.Errorf("threshold 0.9 should reject similarity %v, got %+v", sim, got)
	}
}

func TestSearch_FuzzyAddsToExact(t *testing.T) {
	idx := buildIndex([]record.Map{
		{"id": "1", "name": "tower"},
		{"id": "2", "name": "towers"},
		{"id": "3", "name": "plaza"},
	}, "name")
	exact := Search(idx, "tower", DefaultOptions())
	opts := DefaultOptions()
	opts.Fuzzy = true
	fuzzy := Search(idx, "tower", opts)

	if len(exact) != 1 || len(fuzzy) != 2 {
		t.Fatalf("exact %+v, fuzzy %+v", exact, fuzzy)
	}
	if fuzzy[0].ID != "1" || !almostEqual(fuzzy[0].Score, exact[0].Score) {
		t.Errorf("exact item should keep its score under fuzzy: %+v vs %+v", fuzzy[0], exact[0])
	}
	if fuzzy[1].ID != "2" {
		t.Errorf("fuzzy neighbour = %+v", fuzzy[1])
	}
}

func scoresByID(results []Result[record.Map]) map[string]float64 {
	out := make(map[string]float64, len(results))
	for _, r := range results {
		out[r.ID] = r.Score
	}
	return out
}

func BenchmarkSearch(b *testing.B) {
	items := make([]record.Map, 5000)
	for i := range items {
		items[i] = record.Map{
			"id":   i,
			"name": fmt.Sprintf("サニーハイツ%d 渋谷区神南", i%50),
		}
	}
	idx := buildIndex(items, "name")
	b.Run("exact", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			_ = Search(idx, "渋谷区神南", DefaultOptions())
		}
	})
	b.Run("fuzzy", func(b *testing.B) {
		opts := DefaultOptions()
		opts.Fuzzy = true
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			_ = Search(idx, "渋谷区神北", opts)
		}
	})
}
