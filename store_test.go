package rangestream

import (
	"reflect"
	"testing"
)

func emptyResponse(iv Interval) *RangeResponse {
	return newRangeResponse(iv, nopBody{})
}

type nopBody struct{}

func (nopBody) Read(p []byte) (int, error) { return 0, nil }
func (nopBody) Close() error               { return nil }

func TestRangeStoreInsertAndKeys(t *testing.T) {
	s := NewRangeStore()
	s.Insert(Interval{20, 30}, emptyResponse(Interval{20, 30}))
	s.Insert(Interval{0, 10}, emptyResponse(Interval{0, 10}))
	s.Insert(Interval{10, 20}, emptyResponse(Interval{10, 20}))

	got := s.Keys()
	want := []Interval{{0, 10}, {10, 20}, {20, 30}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Keys: got %v want %v", got, want)
	}
}

func TestRangeStoreFindContaining(t *testing.T) {
	s := NewRangeStore()
	s.Insert(Interval{0, 10}, emptyResponse(Interval{0, 10}))
	s.Insert(Interval{20, 30}, emptyResponse(Interval{20, 30}))

	key, _, ok := s.FindContaining(25)
	if !ok || key != (Interval{20, 30}) {
		t.Fatalf("FindContaining(25): key=%s ok=%v", key, ok)
	}

	if _, _, ok := s.FindContaining(15); ok {
		t.Fatal("expected no containing entry at 15")
	}
}

func TestRangeStoreIntersecting(t *testing.T) {
	s := NewRangeStore()
	s.Insert(Interval{0, 10}, emptyResponse(Interval{0, 10}))
	s.Insert(Interval{20, 30}, emptyResponse(Interval{20, 30}))
	s.Insert(Interval{40, 50}, emptyResponse(Interval{40, 50}))

	got := s.Intersecting(Interval{5, 25})
	want := []Interval{{0, 10}, {20, 30}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Intersecting: got %v want %v", got, want)
	}
}

func TestRangeStoreRemove(t *testing.T) {
	s := NewRangeStore()
	key := Interval{0, 10}
	s.Insert(key, emptyResponse(key))

	if !s.Remove(key) {
		t.Fatal("expected Remove to report found")
	}
	if s.Len() != 0 {
		t.Fatalf("Len: got %d want 0", s.Len())
	}
	if s.Remove(key) {
		t.Fatal("expected second Remove to report not found")
	}
}

func TestRangeStoreRekeyPreservesOrder(t *testing.T) {
	s := NewRangeStore()
	s.Insert(Interval{0, 10}, emptyResponse(Interval{0, 10}))
	s.Insert(Interval{10, 20}, emptyResponse(Interval{10, 20}))
	s.Insert(Interval{20, 30}, emptyResponse(Interval{20, 30}))

	if !s.rekey(Interval{10, 20}, Interval{15, 20}) {
		t.Fatal("expected rekey to find the entry")
	}

	got := s.Keys()
	want := []Interval{{0, 10}, {15, 20}, {20, 30}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Keys after rekey: got %v want %v", got, want)
	}
}

func TestRangeStoreMostRecent(t *testing.T) {
	s := NewRangeStore()
	a := Interval{0, 10}
	b := Interval{10, 20}
	s.Insert(a, emptyResponse(a))
	s.Insert(b, emptyResponse(b))

	best, ok := s.MostRecent([]Interval{a, b})
	if !ok || best != b {
		t.Fatalf("MostRecent: got %s ok=%v want %s", best, ok, b)
	}
}
