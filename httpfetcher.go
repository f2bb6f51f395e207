package rangestream

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-range/rangestream/internal/obs"
	"github.com/go-range/rangestream/internal/obslog"
)

// HTTPFetcher implements Fetcher using HTTP Range GETs. It is the default,
// production Fetcher: it dedupes concurrent identical requests via a
// CachedRangeTransport, retries failed requests via RetryHTTPClient, and
// revalidates the resource's identity across requests using ETag/
// Last-Modified (see httpmeta.go).
type HTTPFetcher struct {
	client httpDoer
	logger obslog.Logger
	timing *log.Logger

	mu   sync.Mutex
	meta Metadata
}

// NewHTTPFetcher returns an HTTPFetcher with default retry (up to 3
// retries, so 4 attempts in all, with 250ms constant backoff) and a
// singleflight-deduplicating, in-memory
// caching transport.
func NewHTTPFetcher() *HTTPFetcher {
	transport := &CachedRangeTransport{
		Transport: http.DefaultTransport,
		Cache:     NewMemoryWireCache(),
	}
	return &HTTPFetcher{
		client: NewRetryHTTPClient(3, 250*time.Millisecond, transport),
		logger: obslog.Noop(),
	}
}

// NewHTTPFetcherWithClient returns an HTTPFetcher that issues requests
// through client directly, bypassing the default retry/caching transport.
// Useful for tests and for callers supplying their own retry policy.
func NewHTTPFetcherWithClient(client httpDoer) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{client: client, logger: obslog.Noop()}
}

// SetLogger configures debug/error logging of requests and responses.
func (f *HTTPFetcher) SetLogger(l obslog.Logger) {
	if l == nil {
		l = obslog.Noop()
	}
	f.logger = l
}

// SetTimingLog configures where per-fetch elapsed-time lines are written.
// Nil discards them.
func (f *HTTPFetcher) SetTimingLog(out *log.Logger) {
	f.timing = out
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(url string, interval Interval) (FetchResult, error) {
	callID := obs.NextCallID()
	stop := obs.Track(fmt.Sprintf("[%s] HTTPFetcher.Fetch %s", callID, interval), f.timing)
	defer stop()

	first, last := interval.Start, interval.Stop-1
	if interval.Empty() {
		first, last = 0, 0
	}

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return FetchResult{}, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", first, last))

	f.mu.Lock()
	f.meta.ApplyValidators(req.Header)
	f.mu.Unlock()

	obslog.DumpRequest(f.logger, req)

	resp, err := f.client.Do(req)
	if err != nil {
		return FetchResult{}, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	obslog.DumpResponse(f.logger, resp)

	switch resp.StatusCode {
	case http.StatusPartialContent, http.StatusOK:
		// accepted
	case http.StatusPreconditionFailed:
		resp.Body.Close()
		return FetchResult{}, fmt.Errorf("%w: precondition failed (HTTP 412), resource changed mid-read", ErrNetwork)
	case http.StatusRequestedRangeNotSatisfiable:
		resp.Body.Close()
		return FetchResult{}, fmt.Errorf("%w: range not satisfiable for %s", ErrOutOfRange, interval)
	default:
		resp.Body.Close()
		return FetchResult{}, fmt.Errorf("%w: unexpected HTTP status %s", ErrNonPartial, resp.Status)
	}

	if ar := resp.Header.Get("Accept-Ranges"); ar != "" && !strings.Contains(ar, "bytes") {
		resp.Body.Close()
		return FetchResult{}, fmt.Errorf("%w: Accept-Ranges: %s", ErrUnsupportedRanges, ar)
	}

	newMeta := MetadataFromHeaders(resp.Header)
	f.mu.Lock()
	if !f.meta.Equal(newMeta) {
		f.meta = newMeta
	}
	f.mu.Unlock()

	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	var total *int64
	if cr := resp.Header.Get("Content-Range"); cr != "" {
		if _, _, t, err := parseContentRange(cr); err == nil {
			total = t
		}
	}

	return FetchResult{
		Status:  resp.StatusCode,
		Headers: headers,
		Body:    resp.Body,
		Total:   total,
	}, nil
}

// parseContentRange parses "bytes first-last/total" (total may be "*").
func parseContentRange(value string) (first, last int64, total *int64, err error) {
	value = strings.TrimSpace(value)
	const prefix = "bytes "
	if !strings.HasPrefix(value, prefix) {
		return 0, 0, nil, fmt.Errorf("rangestream: malformed Content-Range %q", value)
	}
	value = value[len(prefix):]

	parts := strings.SplitN(value, "/", 2)
	if len(parts) != 2 {
		return 0, 0, nil, fmt.Errorf("rangestream: malformed Content-Range %q", value)
	}

	rangePart, totalPart := parts[0], parts[1]
	dash := strings.IndexByte(rangePart, '-')
	if dash < 0 {
		return 0, 0, nil, fmt.Errorf("rangestream: malformed Content-Range %q", value)
	}

	first, err = strconv.ParseInt(rangePart[:dash], 10, 64)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("rangestream: malformed Content-Range %q: %w", value, err)
	}
	last, err = strconv.ParseInt(rangePart[dash+1:], 10, 64)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("rangestream: malformed Content-Range %q: %w", value, err)
	}

	if totalPart != "*" {
		t, err := strconv.ParseInt(totalPart, 10, 64)
		if err != nil {
			return 0, 0, nil, fmt.Errorf("rangestream: malformed Content-Range %q: %w", value, err)
		}
		total = &t
	}
	return first, last, total, nil
}

var _ Fetcher = (*HTTPFetcher)(nil)
