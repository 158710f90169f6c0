package history

import (
	"fmt"
	"reflect"
	"sync"
	"testing"
)

func TestHistory_EvictsOldest(t *testing.T) {
	h := New(2)
	h.Add("a")
	h.Add("b")
	h.Add("c")
	if got, want := h.Get(), []string{"c", "b"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Get() = %v, want %v", got, want)
	}
}

func TestHistory_DedupMovesToFront(t *testing.T) {
	h := New(5)
	for _, q := range []string{"渋谷", "新宿", "池袋", "渋谷"} {
		h.Add(q)
	}
	if got, want := h.Get(), []string{"渋谷", "池袋", "新宿"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Get() = %v, want %v", got, want)
	}
	h.Add("Shibuya")
	h.Add("shibuya")
	if h.Len() != 5 {
		t.Errorf("dedup must be exact; Len() = %d, want 5", h.Len())
	}
}

func TestHistory_IgnoresBlank(t *testing.T) {
	h := New(3)
	h.Add("")
	h.Add("   ")
	if h.Len() != 0 {
		t.Errorf("blank queries stored: %v", h.Get())
	}
}

func TestHistory_RemoveAndClear(t *testing.T) {
	h := New(0)
	for i := 0; i < 25; i++ {
		h.Add(fmt.Sprintf("q%d", i))
	}
	if h.Len() != DefaultMaxItems {
		t.Fatalf("Len() = %d, want %d", h.Len(), DefaultMaxItems)
	}
	h.Remove("q24")
	h.Remove("missing")
	if got := h.Get(); got[0] != "q23" || len(got) != DefaultMaxItems-1 {
		t.Errorf("after Remove: %v", got)
	}
	h.Clear()
	if h.Len() != 0 {
		t.Errorf("after Clear: %v", h.Get())
	}
}

func TestHistory_GetReturnsCopy(t *testing.T) {
	h := New(3)
	h.Add("a")
	got := h.Get()
	got[0] = "mutated"
	if h.Get()[0] != "a" {
		t.Error("Get must return a copy")
	}
}

func TestHistory_Search(t *testing.T) {
	h := New(10)
	for _, q := range []string{"Shibuya 1LDK", "新宿 ペット可", "shibuya station", "渋谷"} {
		h.Add(q)
	}
	got := h.Search("SHIBUYA")
	want := []string{"shibuya station", "Shibuya 1LDK"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Search(SHIBUYA) = %v, want %v", got, want)
	}
	if got := h.Search("ペット"); !reflect.DeepEqual(got, []string{"新宿 ペット可"}) {
		t.Errorf("Search(ペット) = %v", got)
	}
	if got := h.Search("nothing"); len(got) != 0 {
		t.Errorf("Search(nothing) = %v", got)
	}
}

func TestHistory_Concurrent(t *testing.T) {
	h := New(50)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				h.Add(fmt.Sprintf("g%d-%d", g, i%10))
				_ = h.Get()
				_ = h.Search("g")
			}
		}(g)
	}
	wg.Wait()
	if h.Len() > 50 {
		t.Errorf("Len() = %d exceeds capacity", h.Len())
	}
}

func TestStore(t *testing.T) {
	s := NewStore(3, 2)
	s.For("alice").Add("渋谷")
	s.For("bob").Add("新宿")
	if got := s.For("alice").Get(); !reflect.DeepEqual(got, []string{"渋谷"}) {
		t.Errorf("alice history = %v", got)
	}
	// bob is now least recently used
	s.For("carol")
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}
	if got := s.For("bob").Get(); len(got) != 0 {
		t.Errorf("evicted session should start empty, got %v", got)
	}
}
