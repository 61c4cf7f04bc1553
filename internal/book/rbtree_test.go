package book

import "testing"

func TestRBTree_AscendingMinIsLowest(t *testing.T) {
	tr := newRBTree(false)
	for _, p := range []uint64{50, 10, 70, 30, 90, 20} {
		tr.Insert(newPriceLevel(p))
	}
	if tr.Min().price != 10 {
		t.Errorf("got %d, want 10", tr.Min().price)
	}
	tr.Delete(10)
	if tr.Min().price != 20 {
		t.Errorf("after deleting min, got %d, want 20", tr.Min().price)
	}
	if tr.Size() != 5 {
		t.Errorf("expected size 5, got %d", tr.Size())
	}
}

func TestRBTree_DescendingMinIsHighest(t *testing.T) {
	tr := newRBTree(true)
	for _, p := range []uint64{50, 10, 70, 30, 90, 20} {
		tr.Insert(newPriceLevel(p))
	}
	if tr.Min().price != 90 {
		t.Errorf("got %d, want 90 (best bid = highest price)", tr.Min().price)
	}
}

func TestRBTree_GetMissingReturnsNil(t *testing.T) {
	tr := newRBTree(false)
	tr.Insert(newPriceLevel(10))
	if tr.Get(999) != nil {
		t.Errorf("expected nil for missing price")
	}
}

func TestRBTree_ForEachOrdering(t *testing.T) {
	tr := newRBTree(false)
	for _, p := range []uint64{50, 10, 70, 30} {
		tr.Insert(newPriceLevel(p))
	}
	var seen []uint64
	tr.ForEach(func(l *priceLevel) bool {
		seen = append(seen, l.price)
		return true
	})
	want := []uint64{10, 30, 50, 70}
	if len(seen) != len(want) {
		t.Fatalf("got %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("position %d: got %d, want %d", i, seen[i], want[i])
		}
	}
}

func TestRBTree_DeleteAllEmptiesTree(t *testing.T) {
	tr := newRBTree(false)
	prices := []uint64{50, 10, 70, 30, 90, 20, 5, 100}
	for _, p := range prices {
		tr.Insert(newPriceLevel(p))
	}
	for _, p := range prices {
		tr.Delete(p)
	}
	if tr.Size() != 0 || tr.Min() != nil {
		t.Errorf("expected empty tree, size=%d min=%v", tr.Size(), tr.Min())
	}
}
