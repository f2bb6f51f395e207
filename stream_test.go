package rangestream

import (
	"io"
	"testing"
)

func TestRangeStreamLengthProbe(t *testing.T) {
	data := []byte("PK\x03\x04aaaaaa")
	srv := serveBytesRange(data)
	defer srv.Close()

	s, err := New(srv.URL, NewHTTPFetcherWithClient(srv.Client()), Interval{}, Replant)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	total, err := s.TotalBytes()
	if err != nil {
		t.Fatalf("TotalBytes: %v", err)
	}
	if total != int64(len(data)) {
		t.Fatalf("TotalBytes: got %d want %d", total, len(data))
	}
	if len(s.ListRanges()) != 0 {
		t.Fatalf("expected empty store after a probe, got %v", s.ListRanges())
	}
}

func TestRangeStreamTwoDisjointAdds(t *testing.T) {
	data := []byte("0123456789ab")
	srv := serveBytesRange(data)
	defer srv.Close()

	s, err := New(srv.URL, NewHTTPFetcherWithClient(srv.Client()), Interval{0, 3}, Replant)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	if err := s.Add(Interval{7, 9}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	ranges := s.ListRanges()
	want := []Interval{{0, 3}, {7, 9}}
	if len(ranges) != 2 || ranges[0] != want[0] || ranges[1] != want[1] {
		t.Fatalf("got %v want %v", ranges, want)
	}
	if s.SpanningRange() != (Interval{0, 9}) {
		t.Fatalf("SpanningRange: got %s", s.SpanningRange())
	}
}

func TestRangeStreamEndRelativeTailRead(t *testing.T) {
	data := make([]byte, 100)
	for i := range data {
		data[i] = byte('a' + i%26)
	}
	srv := serveBytesRange(data)
	defer srv.Close()

	s, err := New(srv.URL, NewHTTPFetcherWithClient(srv.Client()), Interval{}, Replant)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	if err := s.AddRange(-22, nil); err != nil {
		t.Fatalf("AddRange: %v", err)
	}

	got, err := readAllStream(s, 22)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := data[78:100]
	if string(got) != string(want) {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestRangeStreamEndRelativeOutOfRangeWithoutLength(t *testing.T) {
	data := []byte("PK\x03\x04aaaaaa")
	srv := serveBytesRange(data)
	defer srv.Close()

	s, err := New(srv.URL, NewHTTPFetcherWithClient(srv.Client()), Interval{}, Replant)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	// data is 10 bytes: 10-22 < 0, so this must fail, matching scenario 6.
	if err := s.AddRange(-22, nil); err == nil {
		t.Fatal("expected an out-of-range error for a too-large negative start")
	}
}

func TestRangeStreamStrictRejection(t *testing.T) {
	data := []byte("0123456789ab")
	srv := serveBytesRange(data)
	defer srv.Close()

	s, err := New(srv.URL, NewHTTPFetcherWithClient(srv.Client()), Interval{0, 5}, Strict)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	if err := s.Add(Interval{4, 8}); err == nil {
		t.Fatal("expected ErrOverlapDisallowed")
	}
	if len(s.ListRanges()) != 1 || s.ListRanges()[0] != (Interval{0, 5}) {
		t.Fatalf("store mutated on rejected add: %v", s.ListRanges())
	}
}

func TestRangeStreamReadAndSeek(t *testing.T) {
	data := []byte("abcdefghij")
	srv := serveBytesRange(data)
	defer srv.Close()

	s, err := New(srv.URL, NewHTTPFetcherWithClient(srv.Client()), Interval{0, 10}, Replant)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	if _, err := s.Seek(4, io.SeekStart); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	chunk, err := s.Read(3)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(chunk) != "efg" {
		t.Fatalf("got %q want efg", chunk)
	}
	tell, err := s.Tell()
	if err != nil || tell != 7 {
		t.Fatalf("Tell: got %d err=%v want 7", tell, err)
	}
}

// TestRangeStreamReadThenReAddDoesNotServeConsumedBytes guards against the
// store holding a stale key after Read advances the active response's head
// offset: once bytes have been read off the front of [0,5), re-adding
// [0,2) must re-fetch those bytes rather than classify against the
// pre-read [0,5) key and splice data that is no longer externally visible.
func TestRangeStreamReadThenReAddDoesNotServeConsumedBytes(t *testing.T) {
	data := []byte("01234")
	srv := serveBytesRange(data)
	defer srv.Close()

	s, err := New(srv.URL, NewHTTPFetcherWithClient(srv.Client()), Interval{0, 5}, Replant)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	if _, err := s.Read(3); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got := s.ListRanges(); len(got) != 1 || got[0] != (Interval{3, 5}) {
		t.Fatalf("store key after Read: got %v want [3,5)", got)
	}

	if err := s.Add(Interval{0, 2}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if got := s.ListRanges(); len(got) != 2 {
		t.Fatalf("expected the re-added [0,2) to land disjoint from [3,5), got %v", got)
	}

	chunk, err := readAllStream(s, 2)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(chunk) != "01" {
		t.Fatalf("got %q want %q", chunk, "01")
	}
}

func readAllStream(s *RangeStream, want int) ([]byte, error) {
	out := make([]byte, 0, want)
	for len(out) < want {
		chunk, err := s.Read(want - len(out))
		out = append(out, chunk...)
		if err != nil {
			if err == io.EOF {
				break
			}
			return out, err
		}
		if len(chunk) == 0 {
			break
		}
	}
	return out, nil
}
