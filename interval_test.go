package rangestream

import "testing"

func TestIntervalNew(t *testing.T) {
	if _, err := New(5, 3); err == nil {
		t.Fatal("expected error for start > stop")
	}
	iv, err := New(3, 5)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if iv.Len() != 2 {
		t.Fatalf("Len: got %d want 2", iv.Len())
	}
}

func TestIntervalEmpty(t *testing.T) {
	iv := Interval{Start: 4, Stop: 4}
	if !iv.Empty() {
		t.Fatal("expected empty interval")
	}
	if (Interval{Start: 4, Stop: 5}).Empty() {
		t.Fatal("expected non-empty interval")
	}
}

func TestIntervalTermini(t *testing.T) {
	iv := Interval{Start: 10, Stop: 20}
	first, last, err := iv.Termini()
	if err != nil {
		t.Fatalf("Termini: %v", err)
	}
	if first != 10 || last != 19 {
		t.Fatalf("Termini: got (%d,%d) want (10,19)", first, last)
	}

	if _, _, err := (Interval{}).Termini(); err == nil {
		t.Fatal("expected error on empty interval")
	}
}

func TestIntervalContains(t *testing.T) {
	iv := Interval{Start: 10, Stop: 20}
	cases := []struct {
		pos  int64
		want bool
	}{
		{9, false}, {10, true}, {19, true}, {20, false},
	}
	for _, c := range cases {
		if got := iv.Contains(c.pos); got != c.want {
			t.Errorf("Contains(%d): got %v want %v", c.pos, got, c.want)
		}
	}
}

func TestIntervalIntersects(t *testing.T) {
	cases := []struct {
		a, b Interval
		want bool
	}{
		{Interval{0, 10}, Interval{10, 20}, false},
		{Interval{0, 10}, Interval{9, 20}, true},
		{Interval{0, 10}, Interval{2, 5}, true},
		{Interval{5, 5}, Interval{0, 10}, false},
	}
	for _, c := range cases {
		if got := c.a.Intersects(c.b); got != c.want {
			t.Errorf("Intersects(%s, %s): got %v want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestSpan(t *testing.T) {
	got := Span(Interval{5, 10}, Interval{2, 7})
	want := Interval{Start: 2, Stop: 10}
	if got != want {
		t.Fatalf("Span: got %s want %s", got, want)
	}
}

func TestResolveIntervalAbsolute(t *testing.T) {
	stop := int64(10)
	iv, err := ResolveInterval(2, &stop, nil)
	if err != nil {
		t.Fatalf("ResolveInterval: %v", err)
	}
	if iv != (Interval{Start: 2, Stop: 10}) {
		t.Fatalf("got %s", iv)
	}
}

func TestResolveIntervalNegative(t *testing.T) {
	total := int64(100)
	stop := int64(-1)

	iv, err := ResolveInterval(-10, &stop, &total)
	if err != nil {
		t.Fatalf("ResolveInterval: %v", err)
	}
	want := Interval{Start: 90, Stop: 99}
	if iv != want {
		t.Fatalf("got %s want %s", iv, want)
	}
}

func TestResolveIntervalOpenEnded(t *testing.T) {
	total := int64(50)
	iv, err := ResolveInterval(40, nil, &total)
	if err != nil {
		t.Fatalf("ResolveInterval: %v", err)
	}
	if iv != (Interval{Start: 40, Stop: 50}) {
		t.Fatalf("got %s", iv)
	}
}

func TestResolveIntervalNegativeWithoutLength(t *testing.T) {
	stop := int64(-1)
	if _, err := ResolveInterval(-5, &stop, nil); err == nil {
		t.Fatal("expected ErrLengthUnknown")
	}
}

func TestValidate(t *testing.T) {
	total := int64(100)
	if err := Validate(Interval{Start: 0, Stop: 100}, &total); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if err := Validate(Interval{Start: 0, Stop: 101}, &total); err == nil {
		t.Fatal("expected ErrOutOfRange")
	}
	if err := Validate(Interval{Start: -1, Stop: 5}, nil); err == nil {
		t.Fatal("expected ErrInvalidInterval")
	}
}
