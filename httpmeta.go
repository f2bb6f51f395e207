package rangestream

import "net/http"

// Metadata captures ETag and Last-Modified headers for cache validation
// across successive Range requests against the same resource. The HTTP
// Fetcher attaches these as conditional headers so that a resource that
// changes mid-read fails fast with a 412 instead of silently splicing
// bytes from two different versions of the file.
type Metadata struct {
	ETag         string
	LastModified string
}

// MetadataFromHeaders extracts Metadata from response headers.
func MetadataFromHeaders(h http.Header) Metadata {
	return Metadata{
		ETag:         h.Get("ETag"),
		LastModified: h.Get("Last-Modified"),
	}
}

// Equal reports whether two metadata values plausibly describe the same
// resource version. Empty fields are treated as unknown, not mismatched.
func (m Metadata) Equal(other Metadata) bool {
	if m.ETag != "" && other.ETag != "" && m.ETag != other.ETag {
		return false
	}
	if m.LastModified != "" && other.LastModified != "" && m.LastModified != other.LastModified {
		return false
	}
	return true
}

// ApplyValidators adds conditional headers to a request so the origin can
// reject it with 412 if the resource changed since the last response.
func (m Metadata) ApplyValidators(h http.Header) {
	if m.ETag != "" {
		h.Set("If-Match", m.ETag)
	}
	if m.LastModified != "" {
		h.Set("If-Unmodified-Since", m.LastModified)
	}
}
