package rangestream

import "io"

// FetchResult is what a Fetcher returns for one Range request: the HTTP
// status actually observed, the response headers, and a lazy byte source
// that yields exactly Len(interval) bytes as it is read. Total, if known
// (parsed from a Content-Range header), reports the resource's full size.
type FetchResult struct {
	Status  int
	Headers map[string]string
	Body    io.ReadCloser
	Total   *int64
}

// Fetcher is the single collaborator contract the core depends on: given a
// URL and a byte interval, return headers plus a lazy byte stream. The core
// calls Fetch synchronously from Add and does not assume any ordering with
// other Fetch calls; a Fetcher may be backed by a synchronous or
// asynchronous transport internally.
//
// A Fetcher owns retry/backoff policy entirely; the core never retries a
// failed Fetch (see Non-goals in SPEC_FULL.md §1).
type Fetcher interface {
	// Fetch issues (or simulates) a Range GET for interval against url.
	// Empty intervals are probes: Fetch must send Range: bytes=0-0 and
	// the core discards the single returned byte.
	Fetch(url string, interval Interval) (FetchResult, error)
}

// ParseContentRange parses a "bytes first-last/total" Content-Range header
// value. total is nil if the server sent "*" for an unknown length.
func ParseContentRange(value string) (first, last int64, total *int64, err error) {
	return parseContentRange(value)
}
