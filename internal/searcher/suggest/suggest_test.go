package suggest

import (
	"reflect"
	"testing"

	"github.com/kikaihonyaku/cocosumo-sub004/internal/indexer/index"
	"github.com/kikaihonyaku/cocosumo-sub004/internal/indexer/record"
)

func buildIndex() *index.SearchIndex[record.Map] {
	items := []record.Map{
		{"id": "1", "area": "渋谷"},
		{"id": "2", "area": "渋谷区"},
		{"id": "3", "area": "新宿"},
		{"id": "4", "area": "渋谷区"},
		{"id": "5", "area": "Shibuya Shinjuku"},
	}
	return index.Build(items, []string{"area"}, index.DefaultBuildOptions())
}

func TestSuggestions_Kanji(t *testing.T) {
	got := Suggestions(buildIndex(), "渋", DefaultOptions())
	want := []Entry{{Term: "渋谷区", Count: 2}, {Term: "渋谷", Count: 1}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Suggestions(渋) = %+v, want %+v", got, want)
	}
}

func TestSuggestions_EqualFrequencyKeepsIndexOrder(t *testing.T) {
	items := []record.Map{
		{"id": "1", "area": "渋谷"},
		{"id": "2", "area": "渋谷区"},
		{"id": "3", "area": "新宿"},
	}
	idx := index.Build(items, []string{"area"}, index.DefaultBuildOptions())
	got := Suggestions(idx, "渋", DefaultOptions())
	want := []Entry{{Term: "渋谷", Count: 1}, {Term: "渋谷区", Count: 1}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Suggestions(渋) = %+v, want %+v", got, want)
	}
}

func TestSuggestions_CaseInsensitive(t *testing.T) {
	got := Suggestions(buildIndex(), "SH", DefaultOptions())
	want := []Entry{{Term: "shibuya", Count: 1}, {Term: "shinjuku", Count: 1}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Suggestions(SH) = %+v, want %+v", got, want)
	}
}

func TestSuggestions_ShortPrefix(t *testing.T) {
	if got := Suggestions(buildIndex(), "s", DefaultOptions()); len(got) != 0 {
		t.Errorf("one-column prefix should return nothing, got %+v", got)
	}
	if got := Suggestions(buildIndex(), "", DefaultOptions()); len(got) != 0 {
		t.Errorf("empty prefix should return nothing, got %+v", got)
	}
	got := Suggestions(buildIndex(), "s", Options{MinLength: 1})
	if len(got) != 2 {
		t.Errorf("MinLength 1 should allow single letters, got %+v", got)
	}
}

func TestSuggestions_Limit(t *testing.T) {
	got := Suggestions(buildIndex(), "渋", Options{Limit: 1})
	if len(got) != 1 || got[0].Term != "渋谷区" {
		t.Errorf("Limit 1 = %+v", got)
	}
	if got := Suggestions[record.Map](nil, "渋谷", DefaultOptions()); len(got) != 0 {
		t.Errorf("nil index = %+v", got)
	}
}

func TestDisplayWidth(t *testing.T) {
	tests := map[string]int{"": 0, "a": 1, "ab": 2, "渋": 2, "ｱ": 1, "Ａ": 2}
	for in, want := range tests {
		if got := displayWidth(in); got != want {
			t.Errorf("displayWidth(%q) = %d, want %d", in, got, want)
		}
	}
}
