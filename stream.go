package rangestream

import (
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/go-range/rangestream/internal/obs"
	"github.com/go-range/rangestream/internal/obslog"
)

// RangeStream presents a remote byte-addressable HTTP resource as a
// single logical, file-like object. Callers register the byte intervals
// they intend to read via Add; the stream issues the corresponding Range
// fetches, keeps each response as an independently consumable stream, and
// arbitrates overlaps so that every byte position is associated with at
// most one live response stream.
//
// A RangeStream is single-threaded and cooperative with respect to its own
// mutations: concurrent Add calls on the same stream are not supported,
// though the public methods do serialize behind a mutex the way the
// teacher's HTTPFile serializes Read/Seek, so accidental concurrent use
// fails safely rather than corrupting the store.
type RangeStream struct {
	url     string
	fetcher Fetcher
	pruning PruningLevel
	id      string
	logger  obslog.Logger
	timing  *log.Logger

	mu          sync.Mutex
	store       *RangeStore
	activeKey   Interval
	hasActive   bool
	totalLength *int64
}

// New creates a RangeStream and issues its initial fetch. If initial is
// empty (the default, [0,0)), that fetch is a zero-length probe used
// solely to learn the resource's total length.
func New(url string, fetcher Fetcher, initial Interval, pruning PruningLevel) (*RangeStream, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("rangestream: fetcher must not be nil")
	}
	s := &RangeStream{
		url:     url,
		fetcher: fetcher,
		pruning: pruning,
		id:      obs.NewStreamID(),
		logger:  obslog.Noop(),
		store:   NewRangeStore(),
	}

	if err := Validate(initial, s.totalLength); err != nil {
		return nil, err
	}

	if initial.Empty() {
		if err := s.probe(); err != nil {
			return nil, err
		}
		return s, nil
	}

	if err := s.Add(initial); err != nil {
		return nil, err
	}
	return s, nil
}

// SetLogger configures debug/error logging for this stream.
func (s *RangeStream) SetLogger(l obslog.Logger) {
	if l == nil {
		l = obslog.Noop()
	}
	s.logger = l
}

// SetTimingLog configures where per-Add elapsed-time lines are written.
func (s *RangeStream) SetTimingLog(out *log.Logger) {
	s.timing = out
}

// ID returns the stream's stable correlation id. It is included in the
// name of every Add timing line the stream writes.
func (s *RangeStream) ID() string { return s.id }

// Pruning returns the overlap resolution policy. It is immutable after
// construction.
func (s *RangeStream) Pruning() PruningLevel { return s.pruning }

// probe issues a zero-length fetch solely to learn total length.
func (s *RangeStream) probe() error {
	result, err := s.fetcher.Fetch(s.url, Interval{})
	if err != nil {
		return err
	}
	if result.Body != nil {
		result.Body.Close()
	}
	if result.Total != nil {
		s.totalLength = result.Total
	}
	return nil
}

// Add registers interval as a byte range this stream should serve.
// interval must be absolute: it is validated as given, so a negative
// endpoint fails with ErrInvalidInterval. Use AddRange for end-relative
// coordinates. Add is idempotent on a REPLANT stream: adding an interval
// already present leaves the same set of external intervals in the store.
func (s *RangeStream) Add(interval Interval) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(interval)
}

// AddRange resolves possibly end-relative (start, stop) coordinates and
// adds the resulting interval. A nil stop means "to the end of the
// resource".
func (s *RangeStream) AddRange(start int64, stop *int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	iv, err := ResolveInterval(start, stop, s.totalLength)
	if err != nil {
		return err
	}
	return s.addLocked(iv)
}

func (s *RangeStream) addLocked(interval Interval) error {
	callID := obs.NextCallID()
	stop := obs.Track(fmt.Sprintf("[%s/%s] RangeStream.Add %s", s.id, callID, interval), s.timing)
	defer stop()

	if err := Validate(interval, s.totalLength); err != nil {
		return err
	}

	key, total, err := resolveAdd(s.store, s.fetcher, s.url, interval, s.pruning)
	if err != nil {
		s.logger.Error("add failed", interval, err)
		return err
	}
	if total != nil && s.totalLength == nil {
		s.totalLength = total
	}

	s.activeKey = key
	s.hasActive = true
	s.logger.Debug("add committed", interval, key)
	return nil
}

// activeResponse returns the RangeResponse at activeKey, or
// ErrNoActiveRange.
func (s *RangeStream) activeResponse() (*RangeResponse, error) {
	if !s.hasActive {
		return nil, ErrNoActiveRange
	}
	resp, ok := s.store.Get(s.activeKey)
	if !ok {
		return nil, ErrNoActiveRange
	}
	return resp, nil
}

// Read returns at most n bytes from the active range, per RangeResponse.Read.
func (s *RangeStream) Read(n int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp, err := s.activeResponse()
	if err != nil {
		return nil, err
	}
	before := resp.External()
	data, rerr := resp.Read(n)
	s.syncActiveKey(before, resp)
	return data, rerr
}

// Seek adjusts the read cursor within the active range.
func (s *RangeStream) Seek(offset int64, whence int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp, err := s.activeResponse()
	if err != nil {
		return 0, err
	}
	before := resp.External()
	pos, serr := resp.Seek(offset, whence)
	s.syncActiveKey(before, resp)
	return pos, serr
}

// syncActiveKey keeps the store's key for the active entry in step with
// resp's live External() after a Read or Seek advances its head offset.
// Without this, a later Add's overlap classification (Classify, in
// resolver.go) would consult the stale, pre-read key and could splice or
// burn against bytes that are no longer externally visible, producing
// wrong data with no error. This mirrors the rekey the resolver itself
// does in commitShrink after AdvanceHead/MarkTail.
func (s *RangeStream) syncActiveKey(oldKey Interval, resp *RangeResponse) {
	newKey := resp.External()
	if newKey == oldKey {
		return
	}
	if s.store.rekey(oldKey, newKey) {
		s.activeKey = newKey
	}
}

// Tell returns the absolute position of the active range's read cursor.
func (s *RangeStream) Tell() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp, err := s.activeResponse()
	if err != nil {
		return 0, err
	}
	return resp.Tell(), nil
}

// TotalBytes returns the resource's total length, learned from the first
// response that carried a Content-Range header.
func (s *RangeStream) TotalBytes() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.totalLength == nil {
		return 0, ErrLengthUnknown
	}
	return *s.totalLength, nil
}

// TotalRange returns [0, TotalBytes).
func (s *RangeStream) TotalRange() (Interval, error) {
	total, err := s.TotalBytes()
	if err != nil {
		return Interval{}, err
	}
	return Interval{Start: 0, Stop: total}, nil
}

// SpanningRange returns the smallest interval containing every external
// interval currently in the store, or the empty interval [0,0) if the
// store has no entries (as after a length probe, or after Close). The
// initial interval passed to New is not kept, so it is not returned here.
func (s *RangeStream) SpanningRange() Interval {
	s.mu.Lock()
	defer s.mu.Unlock()

	first, ok := s.store.FirstKey()
	if !ok {
		return Interval{}
	}
	last, _ := s.store.LastKey()
	return Interval{Start: first.Start, Stop: last.Stop}
}

// ListRanges returns the stream's external intervals in ascending order.
// The returned slice is a read-only snapshot.
func (s *RangeStream) ListRanges() []Interval {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Keys()
}

// Close releases every RangeResponse currently held by the stream,
// closing their underlying lazy bodies. A RangeStream that is never
// closed leaks its open connections.
func (s *RangeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for _, key := range s.store.Keys() {
		resp, ok := s.store.Get(key)
		if !ok {
			continue
		}
		if err := resp.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.store = NewRangeStore()
	s.hasActive = false
	return firstErr
}

var _ io.Closer = (*RangeStream)(nil)
