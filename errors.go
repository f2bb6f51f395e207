package rangestream

import "errors"

// Sentinel errors returned by the core. Callers should use errors.Is, since
// most are wrapped with interval/URL/policy context via fmt.Errorf's %w.
var (
	// ErrLengthUnknown is returned when an end-relative interval is
	// requested before any fetch has returned a total length.
	ErrLengthUnknown = errors.New("rangestream: total length not yet known")

	// ErrInvalidInterval is returned for a malformed interval (start>stop).
	ErrInvalidInterval = errors.New("rangestream: invalid interval")

	// ErrEmptyInterval is returned by operations that require a non-empty
	// interval, such as Interval.Termini.
	ErrEmptyInterval = errors.New("rangestream: empty interval")

	// ErrOutOfRange is returned when an endpoint exceeds total length.
	ErrOutOfRange = errors.New("rangestream: interval out of range")

	// ErrOverlapDisallowed is returned by the STRICT policy when a new
	// interval intersects any stored interval.
	ErrOverlapDisallowed = errors.New("rangestream: overlap disallowed under strict policy")

	// ErrNoActiveRange is returned by Read/Seek/Tell before any
	// successful Add.
	ErrNoActiveRange = errors.New("rangestream: no active range")

	// ErrSeekBehindConsumed is returned by Seek when the target offset
	// falls behind the already-consumed head of the active response.
	ErrSeekBehindConsumed = errors.New("rangestream: seek behind consumed bytes")

	// ErrTailOverrun is returned by MarkTail when the new tail mark
	// would cross the head offset.
	ErrTailOverrun = errors.New("rangestream: tail mark overruns head offset")

	// ErrInvalidSeek is returned for a malformed whence or a resulting
	// negative offset.
	ErrInvalidSeek = errors.New("rangestream: invalid seek")

	// ErrNetwork signals a transport-level failure from the Fetcher.
	ErrNetwork = errors.New("rangestream: network error")

	// ErrNonPartial signals that the origin did not honor the Range
	// request with a 206 (or a full 200 for a whole-resource request).
	ErrNonPartial = errors.New("rangestream: non-partial response")

	// ErrUnsupportedRanges signals that the origin does not advertise
	// Accept-Ranges: bytes.
	ErrUnsupportedRanges = errors.New("rangestream: server does not support byte ranges")
)
