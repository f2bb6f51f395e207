package rangestream

import (
	"fmt"
	"io"
)

// RangeResponse is a per-request streaming buffer over the bytes of one
// Fetcher.Fetch call. It tracks how much of its head has been consumed
// (HeadOffset) and how much of its tail has been virtually truncated
// (TailMark); the portion still visible to callers is its external
// interval, External().
type RangeResponse struct {
	request    Interval
	body       io.ReadCloser
	buffered   []byte
	headOffset int64
	tailMark   int64
	closed     bool
}

// newRangeResponse wraps a fetched body for the given request interval.
func newRangeResponse(request Interval, body io.ReadCloser) *RangeResponse {
	return &RangeResponse{
		request:  request,
		body:     body,
		buffered: make([]byte, 0, request.Len()),
	}
}

// Request returns the interval originally sent on the wire. It is never
// mutated after creation.
func (r *RangeResponse) Request() Interval { return r.request }

// External returns the currently visible interval:
// [request.Start+HeadOffset, request.Stop-TailMark).
func (r *RangeResponse) External() Interval {
	return Interval{
		Start: r.request.Start + r.headOffset,
		Stop:  r.request.Stop - r.tailMark,
	}
}

// HeadOffset returns the number of bytes consumed from the head.
func (r *RangeResponse) HeadOffset() int64 { return r.headOffset }

// TailMark returns the number of bytes virtually truncated from the tail.
func (r *RangeResponse) TailMark() int64 { return r.tailMark }

// IsConsumed reports whether the response has no external bytes left.
func (r *RangeResponse) IsConsumed() bool {
	return r.headOffset+r.tailMark == r.request.Len()
}

// fill drains body until buffered holds at least upTo bytes (relative to
// request.Start), or the body is exhausted.
func (r *RangeResponse) fill(upTo int64) error {
	if upTo > r.request.Len() {
		upTo = r.request.Len()
	}
	for int64(len(r.buffered)) < upTo {
		chunk := make([]byte, upTo-int64(len(r.buffered)))
		n, err := r.body.Read(chunk)
		if n > 0 {
			r.buffered = append(r.buffered, chunk[:n]...)
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("%w: %v", ErrNetwork, err)
		}
	}
	return nil
}

// Read returns at most n bytes from the external interval, advancing
// HeadOffset by the number of bytes returned. At the external tail
// boundary it returns (0, io.EOF) without ever draining body past
// TailMark bytes from the end of request.
func (r *RangeResponse) Read(n int) ([]byte, error) {
	if n < 0 {
		n = 0
	}
	avail := r.request.Len() - r.tailMark - r.headOffset
	if avail <= 0 {
		return nil, io.EOF
	}
	if int64(n) > avail {
		n = int(avail)
	}

	want := r.headOffset + int64(n)
	if err := r.fill(want); err != nil {
		return nil, err
	}
	have := int64(len(r.buffered)) - r.headOffset
	if have <= 0 {
		return nil, io.EOF
	}
	if have < int64(n) {
		n = int(have)
	}

	out := make([]byte, n)
	copy(out, r.buffered[r.headOffset:r.headOffset+int64(n)])
	r.headOffset += int64(n)
	return out, nil
}

// Tell returns the absolute position of the read cursor: request.Start +
// HeadOffset.
func (r *RangeResponse) Tell() int64 {
	return r.request.Start + r.headOffset
}

// Seek adjusts the read cursor within the external interval. Forward
// seeks within the external interval advance HeadOffset by discarding
// buffered bytes (draining the body as needed); seeks below the current
// HeadOffset fail with ErrSeekBehindConsumed, since those bytes are no
// longer externally visible.
func (r *RangeResponse) Seek(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = r.Tell() + offset
	case io.SeekEnd:
		target = (r.request.Stop - r.tailMark) + offset
	default:
		return 0, ErrInvalidSeek
	}

	if target < r.request.Start+r.headOffset {
		return 0, fmt.Errorf("%w: target %d < consumed head %d", ErrSeekBehindConsumed, target, r.request.Start+r.headOffset)
	}
	if target > r.request.Stop-r.tailMark {
		target = r.request.Stop - r.tailMark
	}

	newOffset := target - r.request.Start
	if err := r.fill(newOffset); err != nil {
		return 0, err
	}
	r.headOffset = newOffset
	return r.Tell(), nil
}

// MarkTail increases TailMark by n, virtually truncating the tail without
// discarding the buffered prefix. It fails with ErrTailOverrun if the new
// tail mark would cross HeadOffset.
func (r *RangeResponse) MarkTail(n int64) error {
	if n < 0 {
		n = 0
	}
	newTail := r.tailMark + n
	if r.request.Len()-newTail < r.headOffset {
		return fmt.Errorf("%w: tail %d would cross head offset %d on a %d-byte request", ErrTailOverrun, newTail, r.headOffset, r.request.Len())
	}
	r.tailMark = newTail
	return nil
}

// AdvanceHead absorbs n bytes at the head into HeadOffset directly,
// without going through Read — used by the overlap resolver's HEAD case,
// which reassigns already-fetched-but-unconsumed bytes to a new response
// rather than having the caller read and discard them.
func (r *RangeResponse) AdvanceHead(n int64) error {
	if n < 0 {
		n = 0
	}
	newOffset := r.headOffset + n
	if newOffset+r.tailMark > r.request.Len() {
		return fmt.Errorf("%w: head offset %d would exceed request length %d", ErrTailOverrun, newOffset, r.request.Len())
	}
	if err := r.fill(newOffset); err != nil {
		return err
	}
	r.headOffset = newOffset
	return nil
}

// PeekExternal returns a copy of up to n bytes starting at the current
// external head, without disturbing this response's own read cursor. It
// is the "optional iterator splicing" optimisation of the HEAD overlap
// case: bytes already drained into buffered (or still to be lazily
// drained) but not yet externally consumed can be copied into a new
// response instead of being re-fetched over the wire. Returned bytes are
// copies; no buffer is shared between responses.
func (r *RangeResponse) PeekExternal(n int64) ([]byte, error) {
	if err := r.fill(r.headOffset + n); err != nil {
		return nil, err
	}
	have := int64(len(r.buffered)) - r.headOffset
	if have < n {
		n = have
	}
	if n <= 0 {
		return nil, nil
	}
	out := make([]byte, n)
	copy(out, r.buffered[r.headOffset:r.headOffset+n])
	return out, nil
}

// Close releases the underlying lazy body. A RangeResponse that is never
// closed leaks its connection.
func (r *RangeResponse) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.body != nil {
		return r.body.Close()
	}
	return nil
}
