package aggo

import "testing"

func scoreDoc(score int64) Document {
	o := NewObject()
	o.Set("score", Int(score))
	return NewDocument(o)
}

func TestTopKKeepsHighestByDescendingKey(t *testing.T) {
	keys := []SortKey{{Field: "score", Ascending: false}}
	tk := NewTopK(3, keys)
	for _, s := range []int64{5, 1, 9, 3, 7, 2, 8} {
		tk.Add(scoreDoc(s), PhysicalRowId(uint32(s)))
	}
	items := tk.Result()
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	want := []int64{9, 8, 7}
	for i, it := range items {
		if it.doc.Get("score").AsInt() != want[i] {
			t.Errorf("position %d: expected score %d, got %d", i, want[i], it.doc.Get("score").AsInt())
		}
	}
}

func TestTopKAscendingOrder(t *testing.T) {
	keys := []SortKey{{Field: "score", Ascending: true}}
	tk := NewTopK(2, keys)
	for _, s := range []int64{5, 1, 9, 3} {
		tk.Add(scoreDoc(s), PhysicalRowId(uint32(s)))
	}
	items := tk.Result()
	if len(items) != 2 || items[0].doc.Get("score").AsInt() != 1 || items[1].doc.Get("score").AsInt() != 3 {
		t.Fatalf("expected ascending top-2 [1,3], got %+v", items)
	}
}

func TestTopKWithFewerRowsThanK(t *testing.T) {
	keys := []SortKey{{Field: "score", Ascending: false}}
	tk := NewTopK(10, keys)
	tk.Add(scoreDoc(1), PhysicalRowId(1))
	tk.Add(scoreDoc(2), PhysicalRowId(2))
	items := tk.Result()
	if len(items) != 2 {
		t.Fatalf("expected all rows returned when fewer than k, got %d", len(items))
	}
}

func TestTopKZeroLimitKeepsNothing(t *testing.T) {
	tk := NewTopK(0, []SortKey{{Field: "score", Ascending: false}})
	tk.Add(scoreDoc(1), PhysicalRowId(1))
	items := tk.Result()
	if len(items) != 0 {
		t.Fatalf("expected a zero-limit TopK to keep nothing, got %d", len(items))
	}
}

func TestTopKStableTieBreakByInsertionOrder(t *testing.T) {
	keys := []SortKey{{Field: "score", Ascending: false}}
	tk := NewTopK(2, keys)
	tk.Add(scoreDoc(5), PhysicalRowId(1))
	tk.Add(scoreDoc(5), PhysicalRowId(2))
	tk.Add(scoreDoc(5), PhysicalRowId(3))
	items := tk.Result()
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].rowID != PhysicalRowId(1) || items[1].rowID != PhysicalRowId(2) {
		t.Fatalf("expected ties broken by insertion order (rows 1 then 2), got %v then %v", items[0].rowID, items[1].rowID)
	}
}
