package rangestream

import (
	"bytes"
	"io"
	"testing"
)

func mustResponse(t *testing.T, request Interval, data []byte) *RangeResponse {
	t.Helper()
	return newRangeResponse(request, io.NopCloser(bytes.NewReader(data)))
}

func TestRangeResponseReadSequential(t *testing.T) {
	data := []byte("abcdefghij")
	r := mustResponse(t, Interval{Start: 0, Stop: 10}, data)
	defer r.Close()

	var got []byte
	for {
		chunk, err := r.Read(3)
		got = append(got, chunk...)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("got %q want %q", got, data)
	}
}

func TestRangeResponseSeek(t *testing.T) {
	data := []byte("0123456789")
	r := mustResponse(t, Interval{Start: 100, Stop: 110}, data)
	defer r.Close()

	if pos, err := r.Seek(104, io.SeekStart); err != nil || pos != 104 {
		t.Fatalf("Seek: pos=%d err=%v", pos, err)
	}
	chunk, err := r.Read(3)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(chunk) != "456" {
		t.Fatalf("got %q want %q", chunk, "456")
	}
}

func TestRangeResponseSeekBehindConsumedFails(t *testing.T) {
	data := []byte("abcdef")
	r := mustResponse(t, Interval{Start: 0, Stop: 6}, data)
	defer r.Close()

	if _, err := r.Read(4); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if _, err := r.Seek(1, io.SeekStart); err == nil {
		t.Fatal("expected ErrSeekBehindConsumed")
	}
}

func TestRangeResponseMarkTail(t *testing.T) {
	data := []byte("abcdefghij")
	r := mustResponse(t, Interval{Start: 0, Stop: 10}, data)
	defer r.Close()

	if err := r.MarkTail(3); err != nil {
		t.Fatalf("MarkTail: %v", err)
	}
	ext := r.External()
	if ext != (Interval{Start: 0, Stop: 7}) {
		t.Fatalf("External: got %s want [0,7)", ext)
	}

	chunk, err := r.Read(100)
	if err != nil && err != io.EOF {
		t.Fatalf("Read: %v", err)
	}
	if string(chunk) != "abcdefg" {
		t.Fatalf("got %q want %q", chunk, "abcdefg")
	}
}

func TestRangeResponseAdvanceHead(t *testing.T) {
	data := []byte("abcdefghij")
	r := mustResponse(t, Interval{Start: 0, Stop: 10}, data)
	defer r.Close()

	if err := r.AdvanceHead(4); err != nil {
		t.Fatalf("AdvanceHead: %v", err)
	}
	if r.External() != (Interval{Start: 4, Stop: 10}) {
		t.Fatalf("External: got %s", r.External())
	}
	chunk, _ := r.Read(3)
	if string(chunk) != "efg" {
		t.Fatalf("got %q want efg", chunk)
	}
}

func TestRangeResponsePeekExternal(t *testing.T) {
	data := []byte("abcdefghij")
	r := mustResponse(t, Interval{Start: 0, Stop: 10}, data)
	defer r.Close()

	peeked, err := r.PeekExternal(4)
	if err != nil {
		t.Fatalf("PeekExternal: %v", err)
	}
	if string(peeked) != "abcd" {
		t.Fatalf("got %q want abcd", peeked)
	}
	// Peeking must not disturb the read cursor.
	if r.Tell() != 0 {
		t.Fatalf("Tell: got %d want 0", r.Tell())
	}
}

func TestRangeResponseIsConsumed(t *testing.T) {
	data := []byte("abc")
	r := mustResponse(t, Interval{Start: 0, Stop: 3}, data)
	defer r.Close()

	if r.IsConsumed() {
		t.Fatal("expected not consumed yet")
	}
	r.Read(3)
	if !r.IsConsumed() {
		t.Fatal("expected consumed after reading all bytes")
	}
}
