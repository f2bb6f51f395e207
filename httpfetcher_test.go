package rangestream

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

// serveBytesRange serves data over Range GETs, mirroring the teacher's own
// serveBytes test helper.
func serveBytesRange(data []byte) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Accept-Ranges", "bytes")

		rangeHdr := r.Header.Get("Range")
		if rangeHdr == "" {
			w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
			w.WriteHeader(http.StatusOK)
			w.Write(data)
			return
		}

		var start, end int
		n, _ := fmt.Sscanf(rangeHdr, "bytes=%d-%d", &start, &end)
		if n != 2 || start < 0 || end >= len(data) || start > end {
			http.Error(w, "invalid range", http.StatusRequestedRangeNotSatisfiable)
			return
		}
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, len(data)))
		w.WriteHeader(http.StatusPartialContent)
		w.Write(data[start : end+1])
	}))
}

func TestHTTPFetcherFetch(t *testing.T) {
	data := []byte("abcdefghijklmnopqrstuvwxyz")
	srv := serveBytesRange(data)
	defer srv.Close()

	f := NewHTTPFetcherWithClient(http.DefaultClient)
	result, err := f.Fetch(srv.URL, Interval{Start: 3, Stop: 8})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	defer result.Body.Close()

	if result.Total == nil || *result.Total != int64(len(data)) {
		t.Fatalf("Total: got %v want %d", result.Total, len(data))
	}

	buf := make([]byte, 5)
	n, _ := result.Body.Read(buf)
	if string(buf[:n]) != "defgh" {
		t.Fatalf("got %q want %q", buf[:n], "defgh")
	}
}

func TestHTTPFetcherRangeNotSatisfiable(t *testing.T) {
	data := []byte("abc")
	srv := serveBytesRange(data)
	defer srv.Close()

	f := NewHTTPFetcherWithClient(http.DefaultClient)
	if _, err := f.Fetch(srv.URL, Interval{Start: 10, Stop: 20}); err == nil {
		t.Fatal("expected an error for an unsatisfiable range")
	}
}

func TestParseContentRange(t *testing.T) {
	first, last, total, err := ParseContentRange("bytes 0-499/1234")
	if err != nil {
		t.Fatalf("ParseContentRange: %v", err)
	}
	if first != 0 || last != 499 || total == nil || *total != 1234 {
		t.Fatalf("got (%d,%d,%v)", first, last, total)
	}

	_, _, total, err = ParseContentRange("bytes 0-499/*")
	if err != nil {
		t.Fatalf("ParseContentRange: %v", err)
	}
	if total != nil {
		t.Fatalf("expected nil total for unknown length, got %v", *total)
	}
}
