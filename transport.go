package rangestream

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"sync"

	"golang.org/x/sync/singleflight"
)

// wireCacheEntry holds a cached response body alongside the Content-Range
// value it actually arrived with, so a cache hit can reproduce a
// byte-identical synthetic response instead of guessing one from the
// request's Range header.
type wireCacheEntry struct {
	data         []byte
	contentRange string
}

// WireCache is a minimal key-value interface for storing exact-match Range
// response bodies. Implementations must be safe for concurrent use.
type WireCache interface {
	Clear()
	Delete(key string)
	Get(key string) (wireCacheEntry, bool)
	Put(key string, entry wireCacheEntry)
}

// MemoryWireCache is a simple in-memory WireCache.
type MemoryWireCache struct {
	mu sync.Mutex
	m  map[string]wireCacheEntry
}

// NewMemoryWireCache returns an empty MemoryWireCache.
func NewMemoryWireCache() *MemoryWireCache {
	return &MemoryWireCache{m: make(map[string]wireCacheEntry)}
}

func (c *MemoryWireCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m = make(map[string]wireCacheEntry)
}

func (c *MemoryWireCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, key)
}

func (c *MemoryWireCache) Get(key string) (wireCacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[key]
	return v, ok
}

func (c *MemoryWireCache) Put(key string, entry wireCacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = entry
}

// CachedRangeTransport wraps an http.RoundTripper, caching exact-match
// Range GET responses by "url|Range" key and deduplicating concurrent
// fetches of the same key via singleflight. It exists so that two
// RangeStreams (e.g. two codecs walking the same container concurrently)
// sharing a transport never issue the same wire request twice — a purely
// transport-level optimization, invisible to the core's own interval
// bookkeeping.
type CachedRangeTransport struct {
	Transport http.RoundTripper
	Cache     WireCache
	group     singleflight.Group
}

var _ http.RoundTripper = (*CachedRangeTransport)(nil)

// RoundTrip implements http.RoundTripper.
func (t *CachedRangeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Transport == nil {
		t.Transport = http.DefaultTransport
	}

	if req.Method != http.MethodGet {
		return t.Transport.RoundTrip(req)
	}
	rangeHdr := req.Header.Get("Range")
	if rangeHdr == "" {
		return t.Transport.RoundTrip(req)
	}

	key := req.URL.String() + "|" + rangeHdr

	if t.Cache != nil {
		if entry, ok := t.Cache.Get(key); ok {
			header := http.Header{}
			if entry.contentRange != "" {
				header.Set("Content-Range", entry.contentRange)
			}
			return &http.Response{
				StatusCode:    http.StatusPartialContent,
				Status:        "206 Partial Content",
				Body:          io.NopCloser(bytes.NewReader(entry.data)),
				ContentLength: int64(len(entry.data)),
				Header:        header,
				Request:       req,
				Proto:         "HTTP/1.1",
				ProtoMajor:    1,
				ProtoMinor:    1,
			}, nil
		}
	}

	v, err, _ := t.group.Do(key, func() (any, error) {
		resp, err := t.Transport.RoundTrip(req)
		if err != nil {
			return nil, err
		}

		switch resp.StatusCode {
		case http.StatusPreconditionFailed:
			if t.Cache != nil {
				t.Cache.Delete(key)
			}
			return resp, nil

		case http.StatusPartialContent, http.StatusOK:
			body, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				return nil, err
			}
			if t.Cache != nil {
				t.Cache.Put(key, wireCacheEntry{data: body, contentRange: resp.Header.Get("Content-Range")})
			}
			resp.Body = io.NopCloser(bytes.NewReader(body))
			resp.ContentLength = int64(len(body))
			return resp, nil

		default:
			return resp, nil
		}
	})
	if err != nil {
		return nil, err
	}
	resp, ok := v.(*http.Response)
	if !ok {
		return nil, fmt.Errorf("rangestream: unexpected round-trip result type %T", v)
	}
	return resp, nil
}
